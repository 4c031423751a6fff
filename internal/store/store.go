// Package store provides the durable document store for identities,
// orders and products.
package store

import (
	"context"
	"errors"

	"storefront/internal/models"
)

// Sentinel conditions reported by stores. Transport failures are wrapped
// as apperr.UpstreamUnavailable and never collapse into these.
var (
	// ErrNotFound is returned when a document is not found.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateUser is returned when the email or username is taken.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrDuplicatePayment is returned when an order with the same gateway
	// payment reference already exists. Payment confirmation treats it as
	// "already processed".
	ErrDuplicatePayment = errors.New("payment already recorded")
)

// UserStore persists identities.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// ExistsByEmailOrUsername reports whether either value is taken.
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
}

// OrderStore persists verified payment orders.
type OrderStore interface {
	// CreateTx inserts the order inside a single transaction. The unique
	// index on the gateway payment reference makes a duplicate insert fail
	// with ErrDuplicatePayment and roll back cleanly.
	CreateTx(ctx context.Context, order *models.Order) error
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	// MarkRefunded sets status refunded and records the refund reference,
	// returning the updated order or ErrNotFound.
	MarkRefunded(ctx context.Context, paymentID, refundID string) (*models.Order, error)
}

// ProductStore persists catalog entries.
type ProductStore interface {
	All(ctx context.Context) ([]models.Product, error)
	Featured(ctx context.Context) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	// ToggleFeatured flips the featured flag and returns the updated
	// product or ErrNotFound.
	ToggleFeatured(ctx context.Context, id string) (*models.Product, error)
}

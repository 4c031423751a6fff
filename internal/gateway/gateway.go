// Package gateway defines the contract to the external payment processor.
// The processor is authoritative for payment and order state; this package
// only consumes its API, it never mirrors its logic.
package gateway

import "context"

// Order is a gateway-side order. Amount is in minor currency units
// (paise for INR).
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
	Notes    map[string]string
}

// Payment is a gateway-side payment record.
type Payment struct {
	ID       string
	OrderID  string
	Amount   int64
	Currency string
	Status   string
	Method   string
}

// Refund is a gateway-side refund record.
type Refund struct {
	ID        string
	PaymentID string
	Amount    int64
	Status    string
}

// CreateOrderInput is the request to open a gateway order.
type CreateOrderInput struct {
	// Amount in minor currency units.
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Gateway is the payment processor contract consumed by the payment
// coordinator. All calls are bounded by the caller's context.
type Gateway interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	// RefundPayment refunds amount minor units. The amount must be the
	// exact positive figure to refund; the gateway rejects zero.
	RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*Refund, error)
}

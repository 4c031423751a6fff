// Package payment coordinates the transaction lifecycle against the
// external gateway: initiating remote orders, verifying inbound payment
// confirmations, and committing exactly one durable local order per
// successful payment.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/store"
)

// Coordinator implements the payment flows. The gateway is authoritative
// for amounts and payment state; client-supplied values are never trusted
// past initiation.
type Coordinator struct {
	gw     gateway.Gateway
	orders store.OrderStore
	// keySecret signs gateway confirmations and keys the HMAC check.
	keySecret string
	keyID     string
	logger    *slog.Logger
	now       func() time.Time
}

// NewCoordinator wires the payment flows.
func NewCoordinator(gw gateway.Gateway, orders store.OrderStore, keyID, keySecret string, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		gw:        gw,
		orders:    orders,
		keySecret: keySecret,
		keyID:     keyID,
		logger:    logger,
		now:       time.Now,
	}
}

// InitiateResult is returned to the client for the client-side payment
// step. Amount is in minor currency units, as the gateway reports it.
type InitiateResult struct {
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Key      string            `json:"key"`
	Prefill  Prefill           `json:"prefill"`
	Notes    map[string]string `json:"notes"`
}

// Prefill carries checkout display hints for the gateway widget.
type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Initiate opens a gateway order tagged with the initiating identity.
// Nothing is written locally; reconciliation happens at Confirm.
func (c *Coordinator) Initiate(ctx context.Context, user *models.User, amount float64, currency string, notes map[string]string) (*InitiateResult, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.Validation, "invalid amount")
	}
	if currency == "" {
		currency = "INR"
	}

	merged := map[string]string{}
	for k, v := range notes {
		merged[k] = v
	}
	merged["userId"] = user.ID.Hex()

	order, err := c.gw.CreateOrder(ctx, gateway.CreateOrderInput{
		Amount:   int64(math.Round(amount * 100)),
		Currency: currency,
		Receipt:  receipt(user.ID.Hex(), c.now()),
		Notes:    merged,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("payment initiated",
		"userId", user.ID.Hex(), "gatewayOrderId", order.ID, "amount", order.Amount)

	return &InitiateResult{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Key:      c.keyID,
		Prefill:  Prefill{Name: user.Username, Email: user.Email},
		Notes:    order.Notes,
	}, nil
}

// receipt builds a short reference from the timestamp and identity tails,
// falling back to a random tail for very short ids.
func receipt(identityID string, now time.Time) string {
	ts := fmt.Sprintf("%d", now.UnixMilli())
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	tail := identityID
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	} else if tail == "" {
		tail = uuid.NewString()[:8]
	}
	return fmt.Sprintf("rcpt_%s_%s", ts, tail)
}

// ConfirmResult reports the outcome of a verified confirmation.
type ConfirmResult struct {
	OrderID          string `json:"order"`
	Status           string `json:"status"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

// Confirm verifies an inbound payment confirmation and durably records
// exactly one local order for it.
//
// The HMAC check runs first; a forged confirmation triggers no gateway
// fetch and no write. The authoritative payment and order records are
// then fetched from the gateway, and the local order is created inside a
// single transaction keyed by the gateway payment reference. A duplicate
// delivery hits the uniqueness constraint and is reported as already
// processed, not as an error.
func (c *Coordinator) Confirm(ctx context.Context, paymentID, orderID, signature string) (*ConfirmResult, error) {
	if paymentID == "" || orderID == "" || signature == "" {
		return nil, apperr.New(apperr.Validation, "missing payment confirmation fields")
	}
	if !validSignature(c.keySecret, orderID, paymentID, signature) {
		c.logger.Warn("payment confirmation signature mismatch",
			"gatewayOrderId", orderID, "gatewayPaymentId", paymentID)
		return nil, apperr.New(apperr.InvalidSignature, "invalid signature")
	}

	pmt, err := c.gw.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	ord, err := c.gw.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	userID, err := primitive.ObjectIDFromHex(ord.Notes["userId"])
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "payment verification failed",
			fmt.Errorf("gateway order %s carries no user reference", orderID))
	}

	status := models.OrderPending
	if pmt.Status == "captured" || pmt.Status == "authorized" {
		status = models.OrderConfirmed
	}
	order := &models.Order{
		User:              userID,
		Products:          []models.OrderItem{},
		TotalAmount:       float64(ord.Amount) / 100,
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		Status:            status,
		PaymentStatus:     models.PaymentPaid,
		CreatedAt:         c.now().UTC(),
	}

	if err := c.orders.CreateTx(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicatePayment) {
			existing, findErr := c.orders.FindByPaymentID(ctx, paymentID)
			if findErr != nil {
				return nil, findErr
			}
			c.logger.Info("duplicate payment confirmation ignored",
				"gatewayPaymentId", paymentID, "orderId", existing.ID.Hex())
			return &ConfirmResult{
				OrderID:          existing.ID.Hex(),
				Status:           pmt.Status,
				AlreadyProcessed: true,
			}, nil
		}
		return nil, err
	}

	c.logger.Info("payment confirmed",
		"userId", userID.Hex(), "gatewayPaymentId", paymentID, "orderId", order.ID.Hex())
	return &ConfirmResult{OrderID: order.ID.Hex(), Status: pmt.Status}, nil
}

// StatusResult is the display form of a gateway payment: amount converted
// from minor to major units.
type StatusResult struct {
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Method   string  `json:"method"`
}

// Status passes through the gateway's view of a payment.
func (c *Coordinator) Status(ctx context.Context, paymentID string) (*StatusResult, error) {
	pmt, err := c.gw.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		Status:   pmt.Status,
		Amount:   float64(pmt.Amount) / 100,
		Currency: pmt.Currency,
		Method:   pmt.Method,
	}, nil
}

// RefundResult reports a completed refund.
type RefundResult struct {
	RefundID string `json:"refundId"`
	Status   string `json:"status"`
	OrderID  string `json:"order"`
}

// Refund refunds the payment at the gateway and marks the matching local
// order. A payment with no local order, or one already refunded, is a
// user-facing failure and is never retried here.
func (c *Coordinator) Refund(ctx context.Context, paymentID string, amount float64, notes map[string]string) (*RefundResult, error) {
	existing, err := c.orders.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "no order found for payment", err)
		}
		return nil, err
	}
	if existing.Status == models.OrderRefunded {
		return nil, apperr.New(apperr.Conflict, "order already refunded")
	}

	// The gateway refuses a zero amount, so a full refund has to name the
	// captured amount explicitly.
	minor := int64(math.Round(amount * 100))
	if minor <= 0 {
		pmt, err := c.gw.FetchPayment(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		minor = pmt.Amount
	}
	refund, err := c.gw.RefundPayment(ctx, paymentID, minor, notes)
	if err != nil {
		return nil, err
	}

	order, err := c.orders.MarkRefunded(ctx, paymentID, refund.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "no order found for payment", err)
		}
		return nil, err
	}

	c.logger.Info("payment refunded",
		"gatewayPaymentId", paymentID, "refundId", refund.ID, "orderId", order.ID.Hex())
	return &RefundResult{RefundID: refund.ID, Status: refund.Status, OrderID: order.ID.Hex()}, nil
}

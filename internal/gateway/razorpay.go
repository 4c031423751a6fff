package gateway

import (
	"context"
	"errors"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"

	"storefront/internal/apperr"
)

// RazorpayGateway implements Gateway on the Razorpay REST API.
type RazorpayGateway struct {
	client *razorpay.Client
}

// NewRazorpay constructs a gateway client. timeout bounds every API call.
func NewRazorpay(keyID, keySecret string, timeout time.Duration) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	client.SetTimeout(int16(timeout / time.Second))
	return &RazorpayGateway{client: client}
}

// classify maps an SDK error onto the taxonomy. The SDK reports API
// rejections (unknown ids, refused refunds) as BadRequestError; those
// are terminal for the caller, not retryable, so only transport and
// server-side failures become UpstreamUnavailable.
func classify(err error, terminal apperr.Kind, terminalMessage string) error {
	var badRequest *rzperrors.BadRequestError
	if errors.As(err, &badRequest) {
		return apperr.Wrap(terminal, terminalMessage, err)
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, "payment gateway unavailable", err)
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "payment gateway unavailable", err)
	}
	data := map[string]interface{}{
		"amount":   in.Amount,
		"currency": in.Currency,
		"receipt":  in.Receipt,
		"notes":    in.Notes,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, classify(err, apperr.Validation, "payment gateway rejected the order")
	}
	return orderFromBody(body), nil
}

func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "payment gateway unavailable", err)
	}
	body, err := g.client.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, classify(err, apperr.NotFound, "order not found at gateway")
	}
	return orderFromBody(body), nil
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "payment gateway unavailable", err)
	}
	body, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, classify(err, apperr.NotFound, "payment not found at gateway")
	}
	return &Payment{
		ID:       stringField(body, "id"),
		OrderID:  stringField(body, "order_id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Status:   stringField(body, "status"),
		Method:   stringField(body, "method"),
	}, nil
}

func (g *RazorpayGateway) RefundPayment(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "payment gateway unavailable", err)
	}
	data := map[string]interface{}{}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	body, err := g.client.Payment.Refund(paymentID, int(amount), data, nil)
	if err != nil {
		return nil, classify(err, apperr.Validation, "payment gateway rejected the refund")
	}
	return &Refund{
		ID:        stringField(body, "id"),
		PaymentID: stringField(body, "payment_id"),
		Amount:    intField(body, "amount"),
		Status:    stringField(body, "status"),
	}, nil
}

func orderFromBody(body map[string]interface{}) *Order {
	return &Order{
		ID:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
		Status:   stringField(body, "status"),
		Notes:    notesField(body),
	}
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

// intField tolerates the number representations the SDK's JSON decoding
// produces.
func intField(body map[string]interface{}, key string) int64 {
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func notesField(body map[string]interface{}) map[string]string {
	notes := map[string]string{}
	raw, ok := body["notes"].(map[string]interface{})
	if !ok {
		return notes
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			notes[k] = s
		}
	}
	return notes
}

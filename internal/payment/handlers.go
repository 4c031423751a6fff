package payment

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/respond"
)

// Handler exposes the coordinator over HTTP.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler wires the payment endpoints.
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, h.coordinator.logger, err, "path", r.URL.Path)
}

type createPaymentRequest struct {
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency"`
	Notes    map[string]string `json:"notes"`
}

// CreatePayment opens a gateway order for the authenticated user.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.respondErr(w, r, apperr.New(apperr.Unauthenticated, "no access token provided"))
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(w, r, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}

	result, err := h.coordinator.Initiate(r.Context(), user, req.Amount, req.Currency, req.Notes)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

type verifyPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature"`
}

// VerifyPayment confirms an externally reported payment. The endpoint is
// unauthenticated; the HMAC signature is the credential.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(w, r, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}

	result, err := h.coordinator.Confirm(r.Context(), req.PaymentID, req.OrderID, req.Signature)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   result.OrderID,
		"status":  result.Status,
	})
}

// PaymentStatus returns the gateway's view of a payment for display.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentId"]

	result, err := h.coordinator.Status(r.Context(), paymentID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

type refundRequest struct {
	Amount float64           `json:"amount"`
	Notes  map[string]string `json:"notes"`
}

// RefundPayment refunds a payment and marks its local order.
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentId"]

	var req refundRequest
	if r.Body != nil {
		// Body is optional; an empty body means a full refund.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.coordinator.Refund(r.Context(), paymentID, req.Amount, req.Notes)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"refundId": result.RefundID,
		"status":   result.Status,
		"order":    result.OrderID,
	})
}

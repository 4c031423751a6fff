package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/auth"
	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/product"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/token"
)

const gatewaySecret = "rzp_test_secret"

// In-memory collaborators standing in for Mongo, Redis and the gateway.

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (s *memUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return store.ErrDuplicateUser
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID.Hex()] = u
	return nil
}

func (s *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memUsers) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

type memSessions struct {
	mu      sync.Mutex
	entries map[string]string
}

func (s *memSessions) Put(_ context.Context, id, refreshToken string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = refreshToken
	return nil
}

func (s *memSessions) Get(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.entries[id]
	if !ok {
		return "", session.ErrNoSession
	}
	return tok, nil
}

func (s *memSessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func (s *memOrders) CreateTx(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.RazorpayPaymentID]; ok {
		return store.ErrDuplicatePayment
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	s.orders[o.RazorpayPaymentID] = o
	return nil
}

func (s *memOrders) FindByPaymentID(_ context.Context, paymentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[paymentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (s *memOrders) MarkRefunded(_ context.Context, paymentID, refundID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[paymentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	o.Status = models.OrderRefunded
	o.RefundID = refundID
	return o, nil
}

type memProducts struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func (s *memProducts) All(_ context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Product{}
	for _, p := range s.products {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memProducts) Featured(_ context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Product{}
	for _, p := range s.products {
		if p.IsFeatured {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memProducts) FindByID(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *memProducts) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID.Hex()] = p
	return nil
}

func (s *memProducts) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *memProducts) ToggleFeatured(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.IsFeatured = !p.IsFeatured
	return p, nil
}

// memGateway opens orders and "captures" payments on demand.
type memGateway struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*gateway.Order
	payments map[string]*gateway.Payment
}

func (g *memGateway) CreateOrder(_ context.Context, in gateway.CreateOrderInput) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := &gateway.Order{
		ID:       fmt.Sprintf("order_e2e_%d", g.seq),
		Amount:   in.Amount,
		Currency: in.Currency,
		Receipt:  in.Receipt,
		Status:   "created",
		Notes:    in.Notes,
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *memGateway) FetchOrder(_ context.Context, id string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (g *memGateway) FetchPayment(_ context.Context, id string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (g *memGateway) RefundPayment(_ context.Context, id string, amount int64, _ map[string]string) (*gateway.Refund, error) {
	return &gateway.Refund{ID: "rfnd_e2e_1", PaymentID: id, Amount: amount, Status: "processed"}, nil
}

// capture simulates the client-side checkout completing at the gateway.
func (g *memGateway) capture(orderID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.orders[orderID]
	o.Status = "paid"
	paymentID := "pay_e2e_1"
	g.payments[paymentID] = &gateway.Payment{
		ID:       paymentID,
		OrderID:  orderID,
		Amount:   o.Amount,
		Currency: o.Currency,
		Status:   "captured",
		Method:   "card",
	}
	return paymentID
}

type testServer struct {
	router http.Handler
	orders *memOrders
	gw     *memGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := token.NewSigner("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)

	users := &memUsers{users: map[string]*models.User{}}
	sessions := &memSessions{entries: map[string]string{}}
	orders := &memOrders{orders: map[string]*models.Order{}}
	products := &memProducts{products: map[string]*models.Product{}}
	gw := &memGateway{orders: map[string]*gateway.Order{}, payments: map[string]*gateway.Payment{}}

	authH := auth.NewHandler(signer, sessions, users, logger, false)
	coordinator := payment.NewCoordinator(gw, orders, "rzp_test_key", gatewaySecret, logger)

	return &testServer{
		router: NewRouter(authH, payment.NewHandler(coordinator), product.NewHandler(product.NewService(products, nil, logger)), 5*time.Second),
		orders: orders,
		gw:     gw,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func signConfirmation(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(gatewaySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestEndToEndPaymentFlow(t *testing.T) {
	ts := newTestServer(t)

	// Register and log in.
	w := ts.do(t, "POST", "/auth/register", `{"username":"user1","email":"u1@example.com","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, "POST", "/auth/login", `{"email":"u1@example.com","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "login must set the credential carriers")

	// Initiate a 500 INR payment.
	w = ts.do(t, "POST", "/payment/create-payment", `{"amount":500,"currency":"INR"}`, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.OrderID)
	assert.Equal(t, int64(50000), created.Amount)

	// Checkout completes at the gateway; it reports the payment back.
	paymentID := ts.gw.capture(created.OrderID)
	confirmBody, _ := json.Marshal(map[string]string{
		"paymentId": paymentID,
		"orderId":   created.OrderID,
		"signature": signConfirmation(created.OrderID, paymentID),
	})

	// verify-payment is unauthenticated; the signature is the credential.
	w = ts.do(t, "POST", "/payment/verify-payment", string(confirmBody), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	order, err := ts.orders.FindByPaymentID(context.Background(), paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, 500.0, order.TotalAmount)

	// A duplicate delivery completes without a second order.
	w = ts.do(t, "POST", "/payment/verify-payment", string(confirmBody), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, ts.orders.orders, 1)

	// Status passthrough with unit conversion, behind the access gate.
	w = ts.do(t, "GET", "/payment/payment-status/"+paymentID, "", cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status struct {
		Amount float64 `json:"amount"`
		Status string  `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 500.0, status.Amount)
	assert.Equal(t, "captured", status.Status)

	w = ts.do(t, "GET", "/payment/payment-status/"+paymentID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Refund, then refuse the second refund.
	w = ts.do(t, "POST", "/payment/refund-payment/"+paymentID, "", cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, "POST", "/payment/refund-payment/"+paymentID, "", cookies)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVerifyPaymentRejectsForgery(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/payment/verify-payment",
		`{"paymentId":"pay_x","orderId":"order_x","signature":"deadbeef"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.orders.orders)
}

func TestProductAdminGate(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/auth/register", `{"username":"plain","email":"plain@example.com","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	customer := w.Result().Cookies()

	w = ts.do(t, "POST", "/auth/register", `{"username":"boss","email":"boss@example.com","password":"hunter22","role":"admin"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	admin := w.Result().Cookies()

	body := `{"name":"mug","price":9.5,"imageUrl":"http://img","category":["kitchen"],"isFeatured":true}`

	w = ts.do(t, "POST", "/products", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, "POST", "/products", body, customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, "POST", "/products", body, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The featured list is public.
	w = ts.do(t, "GET", "/products/featured", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var featured []models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &featured))
	assert.Len(t, featured, 1)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimeoutMiddlewareBoundsRequestContext(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := timeoutMiddleware(2 * time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok, "handlers must receive a context with a deadline")
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

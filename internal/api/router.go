// Package api assembles the HTTP surface.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/auth"
	"storefront/internal/payment"
	"storefront/internal/product"
)

// NewRouter wires every route. Auth requirements follow the endpoint
// table: verify-payment is open because the HMAC signature protects it;
// the rest of the payment routes and the profile sit behind the access
// gate, and catalog mutations behind the admin gate. requestTimeout
// bounds the context handed to every handler.
func NewRouter(authH *auth.Handler, paymentH *payment.Handler, productH *product.Handler, requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(timeoutMiddleware(requestTimeout))
	r.Use(metricsMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	a := r.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/register", authH.Register).Methods("POST")
	a.HandleFunc("/login", authH.Login).Methods("POST")
	a.Handle("/logout", authH.RequireAuth(http.HandlerFunc(authH.Logout))).Methods("POST")
	a.HandleFunc("/refresh_token", authH.Refresh).Methods("POST")
	a.Handle("/profile", authH.RequireAuth(http.HandlerFunc(authH.Profile))).Methods("GET")

	p := r.PathPrefix("/payment").Subrouter()
	p.Handle("/create-payment", authH.RequireAuth(http.HandlerFunc(paymentH.CreatePayment))).Methods("POST")
	p.HandleFunc("/verify-payment", paymentH.VerifyPayment).Methods("POST")
	p.Handle("/payment-status/{paymentId}", authH.RequireAuth(http.HandlerFunc(paymentH.PaymentStatus))).Methods("GET")
	p.Handle("/refund-payment/{paymentId}", authH.RequireAuth(http.HandlerFunc(paymentH.RefundPayment))).Methods("POST")

	pr := r.PathPrefix("/products").Subrouter()
	pr.Handle("", authH.RequireAuth(authH.RequireAdmin(http.HandlerFunc(productH.List)))).Methods("GET")
	pr.HandleFunc("/featured", productH.Featured).Methods("GET")
	pr.Handle("/{id}", authH.RequireAuth(http.HandlerFunc(productH.Get))).Methods("GET")
	pr.Handle("", authH.RequireAuth(authH.RequireAdmin(http.HandlerFunc(productH.Create)))).Methods("POST")
	pr.Handle("/{id}", authH.RequireAuth(authH.RequireAdmin(http.HandlerFunc(productH.Delete)))).Methods("DELETE")
	pr.Handle("/{id}", authH.RequireAuth(authH.RequireAdmin(http.HandlerFunc(productH.ToggleFeatured)))).Methods("PATCH")

	return r
}

// timeoutMiddleware puts a deadline on every request context so store,
// database and gateway calls cannot hang a request indefinitely.
func timeoutMiddleware(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

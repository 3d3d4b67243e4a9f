package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the public surface: cart and checkout APIs plus the
// provider webhook. The webhook route skips the session middleware since the
// provider has no cookies.
func NewRouter(carts CartAPI, orders CheckoutAPI, intents PaymentIntentAPI, stripeWebhook http.Handler, timeout time.Duration) chi.Router {
	cartHandler := NewCartHandler(carts, timeout)
	checkoutHandler := NewCheckoutHandler(orders, intents, timeout)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Use(SessionCartMiddleware)
		r.Use(MockAuthMiddleware)

		r.Get("/cart", cartHandler.GetCart)
		r.Post("/cart/items", cartHandler.AddItem)
		r.Delete("/cart/items/{productID}", cartHandler.RemoveItem)

		r.Post("/auth/signin", cartHandler.SignIn)

		r.Post("/checkout", checkoutHandler.CreateOrder)
		r.Get("/orders/{orderID}", checkoutHandler.GetOrder)
		r.Get("/orders/{orderID}/payment-intent", checkoutHandler.PaymentIntent)
	})

	r.Method(http.MethodPost, "/webhooks/stripe", stripeWebhook)

	return r
}

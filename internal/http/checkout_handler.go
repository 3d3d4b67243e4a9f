package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/domain"
	"github.com/marc100s/store-core/internal/money"
	"github.com/marc100s/store-core/internal/service"
)

// CheckoutAPI is what this handler needs from the order service.
type CheckoutAPI interface {
	CreateOrder(ctx context.Context, userID string) (*service.CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// PaymentIntentAPI hands out client secrets for the payment page.
type PaymentIntentAPI interface {
	GetOrCreatePaymentIntent(ctx context.Context, orderID uuid.UUID, expectedTotal money.Amount) (string, error)
}

type CheckoutHandler struct {
	orders  CheckoutAPI
	intents PaymentIntentAPI
	timeout time.Duration
}

func NewCheckoutHandler(orders CheckoutAPI, intents PaymentIntentAPI, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		orders:  orders,
		intents: intents,
		timeout: timeout,
	}
}

type CreateOrderResponseDTO struct {
	OrderID    string `json:"order_id,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type PaymentIntentResponseDTO struct {
	ClientSecret string `json:"client_secret"`
}

func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	identity := identityFromContext(r.Context())
	if identity.UserID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	result, err := h.orders.CreateOrder(ctx, identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if result.RedirectTo != "" {
		respondJSON(w, http.StatusOK, CreateOrderResponseDTO{RedirectTo: result.RedirectTo})
		return
	}
	respondJSON(w, http.StatusCreated, CreateOrderResponseDTO{OrderID: result.OrderID.String()})
}

func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PaymentIntent backs the order payment page: it returns a client secret for
// the order's current total, creating or revalidating the provider intent as
// needed. The timeout here is deliberately wider than the handler default
// because a cold call does a provider round-trip.
func (h *CheckoutHandler) PaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 35*time.Second)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	secret, err := h.intents.GetOrCreatePaymentIntent(ctx, orderID, order.TotalPrice)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, PaymentIntentResponseDTO{ClientSecret: secret})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/cache"
	"github.com/marc100s/store-core/internal/domain"
	"github.com/marc100s/store-core/internal/repository"
)

// CreateOrderResult is either a new order id or a redirect hint back to the
// checkout step that is still missing. Redirects are ordinary outcomes, not
// errors.
type CreateOrderResult struct {
	OrderID    uuid.UUID
	RedirectTo string
}

type OrderService struct {
	carts    repository.CartRepository
	orders   repository.OrderRepository
	profiles repository.ProfileReader
	cache    cache.CartCache
}

func NewOrderService(carts repository.CartRepository, orders repository.OrderRepository, profiles repository.ProfileReader, cartCache cache.CartCache) *OrderService {
	return &OrderService{
		carts:    carts,
		orders:   orders,
		profiles: profiles,
		cache:    cartCache,
	}
}

// CreateOrder converts the user's cart into an order. The precondition chain
// short-circuits with a redirect hint; after that the order insert, the
// order-item inserts and the cart clear commit in one transaction or not at
// all.
func (s *OrderService) CreateOrder(ctx context.Context, userID string) (*CreateOrderResult, error) {
	cart, err := s.carts.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) || (err == nil && cart.IsEmpty()) {
		return &CreateOrderResult{RedirectTo: "/cart"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.Address == nil {
		return &CreateOrderResult{RedirectTo: "/shipping-address"}, nil
	}
	if profile.PaymentMethod == "" {
		return &CreateOrderResult{RedirectTo: "/payment-method"}, nil
	}

	order := domain.NewOrderFromCart(userID, *profile.Address, profile.PaymentMethod, cart)

	if err := s.orders.CreateFromCart(ctx, order, cart.ID, cart.Revision); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.invalidateCart(userID)

	return &CreateOrderResult{OrderID: order.ID}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *OrderService) invalidateCart(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, cacheKeyFor(domain.Identity{UserID: userID})); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/domain"
	"github.com/marc100s/store-core/internal/money"
	"github.com/marc100s/store-core/internal/payment"
	"github.com/marc100s/store-core/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	defaultProviderTimeout = 30 * time.Second
	defaultSecretGrace     = 3 * time.Second
)

// PaymentIntentService hands the browser a client secret for an order,
// creating at most one live provider intent per order. Concurrent callers
// for the same order collapse onto a single in-flight attempt; a successful
// secret is held for a short grace window so rapid repeat page loads skip
// the provider round-trip, while a failed attempt is forgotten immediately
// so the next call can retry.
type PaymentIntentService struct {
	orders   repository.OrderRepository
	provider payment.Provider

	currency        string
	providerTimeout time.Duration
	grace           time.Duration
	now             func() time.Time

	sfg    singleflight.Group
	mu     sync.Mutex
	recent map[string]recentSecret
}

type recentSecret struct {
	secret  string
	expires time.Time
}

func NewPaymentIntentService(orders repository.OrderRepository, provider payment.Provider, currency string) *PaymentIntentService {
	return &PaymentIntentService{
		orders:          orders,
		provider:        provider,
		currency:        currency,
		providerTimeout: defaultProviderTimeout,
		grace:           defaultSecretGrace,
		now:             time.Now,
		recent:          make(map[string]recentSecret),
	}
}

// GetOrCreatePaymentIntent returns a client secret for orderID whose
// provider intent matches expectedTotal. A stored intent is reused only
// after re-validating it against the provider; anything stale (amount or
// currency drift, wrong order metadata, terminal status) is replaced.
func (s *PaymentIntentService) GetOrCreatePaymentIntent(ctx context.Context, orderID uuid.UUID, expectedTotal money.Amount) (string, error) {
	key := orderID.String()

	if secret, ok := s.recentSecretFor(key); ok {
		return secret, nil
	}

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		secret, err := s.reconcile(ctx, orderID, expectedTotal)
		if err != nil {
			// The singleflight entry drops as soon as this returns, so a
			// retry after failure starts a fresh attempt.
			return nil, err
		}
		s.holdSecret(key, secret)
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *PaymentIntentService) reconcile(ctx context.Context, orderID uuid.UUID, expectedTotal money.Amount) (string, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.IsPaid {
		return "", ErrOrderAlreadyPaid
	}

	if pr := order.PaymentResult; pr != nil && pr.ProviderRef != "" {
		pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		intent, errRetrieve := s.provider.RetrieveIntent(pctx, pr.ProviderRef)
		cancel()
		if errRetrieve != nil {
			return "", fmt.Errorf("%w: retrieve intent %s: %v", ErrPaymentProvider, pr.ProviderRef, errRetrieve)
		}
		if s.reusable(intent, orderID, expectedTotal) {
			return intent.ClientSecret, nil
		}
		// Stale: amount/currency/order drifted or the intent went terminal.
	}

	pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	intent, errCreate := s.provider.CreateIntent(pctx, expectedTotal.MinorUnits(), s.currency, map[string]string{
		"order_id": orderID.String(),
	})
	cancel()
	if errCreate != nil {
		return "", fmt.Errorf("%w: create intent: %v", ErrPaymentProvider, errCreate)
	}

	// Persist the binding before handing out the secret so the next
	// reconciliation finds and validates this intent instead of minting
	// another one.
	errSet := s.orders.SetPaymentResult(ctx, orderID, domain.PaymentResult{
		ProviderRef: intent.ID,
		Status:      domain.PaymentStatusPending,
		AmountPaid:  money.Zero(),
	})
	if errSet != nil {
		return "", fmt.Errorf("persist intent binding: %w", errSet)
	}

	return intent.ClientSecret, nil
}

func (s *PaymentIntentService) reusable(intent *payment.Intent, orderID uuid.UUID, expectedTotal money.Amount) bool {
	return intent.AmountMinor == expectedTotal.MinorUnits() &&
		intent.Currency == s.currency &&
		intent.Metadata["order_id"] == orderID.String() &&
		payment.IsAwaitingAction(intent.Status)
}

func (s *PaymentIntentService) recentSecretFor(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.recent[key]
	if !ok || s.now().After(entry.expires) {
		delete(s.recent, key)
		return "", false
	}
	return entry.secret, true
}

func (s *PaymentIntentService) holdSecret(key, secret string) {
	s.mu.Lock()
	s.recent[key] = recentSecret{secret: secret, expires: s.now().Add(s.grace)}
	s.mu.Unlock()

	time.AfterFunc(s.grace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if entry, ok := s.recent[key]; ok && !s.now().Before(entry.expires) {
			delete(s.recent, key)
		}
	})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/domain"
	"github.com/marc100s/store-core/internal/money"
	"github.com/marc100s/store-core/internal/payment"
	"github.com/marc100s/store-core/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	m sync.Mutex

	createCalls   int
	retrieveCalls int
	createDelay   time.Duration
	createErr     error
	retrieveErr   error

	intents map[string]*payment.Intent
}

func newMockProvider() *mockProvider {
	return &mockProvider{intents: make(map[string]*payment.Intent)}
}

func (p *mockProvider) CreateIntent(_ context.Context, amountMinor int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	p.m.Lock()
	p.createCalls++
	n := p.createCalls
	delay := p.createDelay
	err := p.createErr
	p.m.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	intent := &payment.Intent{
		ID:           fmt.Sprintf("pi_%d", n),
		ClientSecret: fmt.Sprintf("pi_%d_secret", n),
		AmountMinor:  amountMinor,
		Currency:     currency,
		Status:       payment.StatusRequiresPaymentMethod,
		Metadata:     meta,
	}
	p.m.Lock()
	p.intents[intent.ID] = intent
	p.m.Unlock()
	return intent, nil
}

func (p *mockProvider) RetrieveIntent(_ context.Context, id string) (*payment.Intent, error) {
	p.m.Lock()
	defer p.m.Unlock()
	p.retrieveCalls++
	if p.retrieveErr != nil {
		return nil, p.retrieveErr
	}
	intent, ok := p.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such intent: %s", id)
	}
	cp := *intent
	return &cp, nil
}

func (p *mockProvider) created() int {
	p.m.Lock()
	defer p.m.Unlock()
	return p.createCalls
}

func (p *mockProvider) setStatus(id, status string) {
	p.m.Lock()
	defer p.m.Unlock()
	p.intents[id].Status = status
}

func unpaidOrder(total string) *domain.Order {
	amount := money.MustParse(total)
	return &domain.Order{
		ID:            uuid.New(),
		UserID:        "u1",
		PaymentMethod: "stripe",
		ItemsPrice:    amount,
		ShippingPrice: money.Zero(),
		TaxPrice:      money.Zero(),
		TotalPrice:    amount,
	}
}

func newIntentFixture(t *testing.T) (*PaymentIntentService, *mockOrderRepo, *mockProvider) {
	t.Helper()
	orderRepo := newMockOrderRepo(nil)
	provider := newMockProvider()
	svc := NewPaymentIntentService(orderRepo, provider, "eur")
	return svc, orderRepo, provider
}

func TestGetOrCreatePaymentIntent_CreatesAndPersistsBinding(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	order := unpaidOrder("40.25")
	orderRepo.put(order)

	secret, err := svc.GetOrCreatePaymentIntent(context.Background(), order.ID, order.TotalPrice)
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", secret)
	assert.Equal(t, 1, provider.created())

	stored, err := orderRepo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentResult)
	assert.Equal(t, "pi_1", stored.PaymentResult.ProviderRef)
	assert.Equal(t, domain.PaymentStatusPending, stored.PaymentResult.Status)
}

func TestGetOrCreatePaymentIntent_ConcurrentCallersShareOneIntent(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	provider.createDelay = 50 * time.Millisecond
	order := unpaidOrder("40.25")
	orderRepo.put(order)

	var wg sync.WaitGroup
	secrets := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			secrets[i], errs[i] = svc.GetOrCreatePaymentIntent(context.Background(), order.ID, order.TotalPrice)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, secrets[0], secrets[1])
	assert.Equal(t, 1, provider.created())
}

func TestGetOrCreatePaymentIntent_ReusesMatchingIntent(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	svc.grace = 0 // force every call through reconciliation
	order := unpaidOrder("40.25")
	orderRepo.put(order)

	ctx := context.Background()
	first, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.NoError(t, err)

	second, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.created())
}

func TestGetOrCreatePaymentIntent_ReplacesStaleAmount(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	svc.grace = 0
	order := unpaidOrder("40.25")
	orderRepo.put(order)

	ctx := context.Background()
	_, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.NoError(t, err)

	// The order total changed after the first intent was minted.
	secret, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, money.MustParse("52.00"))
	require.NoError(t, err)
	assert.Equal(t, "pi_2_secret", secret)
	assert.Equal(t, 2, provider.created())

	stored, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_2", stored.PaymentResult.ProviderRef)
}

func TestGetOrCreatePaymentIntent_ReplacesTerminalIntent(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	svc.grace = 0
	order := unpaidOrder("40.25")
	orderRepo.put(order)

	ctx := context.Background()
	_, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.NoError(t, err)
	provider.setStatus("pi_1", payment.StatusCanceled)

	secret, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.NoError(t, err)
	assert.Equal(t, "pi_2_secret", secret)
}

func TestGetOrCreatePaymentIntent_FailureAllowsImmediateRetry(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	order := unpaidOrder("40.25")
	orderRepo.put(order)

	ctx := context.Background()
	provider.createErr = errors.New("provider down")
	_, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.ErrorIs(t, err, ErrPaymentProvider)

	provider.m.Lock()
	provider.createErr = nil
	provider.m.Unlock()

	secret, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
}

func TestGetOrCreatePaymentIntent_AlreadyPaid(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	order := unpaidOrder("40.25")
	order.IsPaid = true
	orderRepo.put(order)

	_, err := svc.GetOrCreatePaymentIntent(context.Background(), order.ID, order.TotalPrice)
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
	assert.Equal(t, 0, provider.created())
}

func TestGetOrCreatePaymentIntent_UnknownOrder(t *testing.T) {
	svc, _, provider := newIntentFixture(t)

	_, err := svc.GetOrCreatePaymentIntent(context.Background(), uuid.New(), money.MustParse("1.00"))
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.Equal(t, 0, provider.created())
}

func TestGetOrCreatePaymentIntent_RetrieveFailureWrapsProviderError(t *testing.T) {
	svc, orderRepo, provider := newIntentFixture(t)
	svc.grace = 0
	order := unpaidOrder("40.25")
	orderRepo.put(order)

	ctx := context.Background()
	_, err := svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	require.NoError(t, err)

	provider.m.Lock()
	provider.retrieveErr = errors.New("timeout")
	provider.m.Unlock()

	_, err = svc.GetOrCreatePaymentIntent(ctx, order.ID, order.TotalPrice)
	assert.ErrorIs(t, err, ErrPaymentProvider)
}

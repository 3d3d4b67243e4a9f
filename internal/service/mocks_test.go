package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/cache"
	"github.com/marc100s/store-core/internal/domain"
	"github.com/marc100s/store-core/internal/money"
	"github.com/marc100s/store-core/internal/repository"
)

// mockCartRepo keeps carts in memory with real revision-guard semantics so
// concurrency tests exercise the same conflict paths the store would.
type mockCartRepo struct {
	m     sync.Mutex
	carts map[uuid.UUID]*domain.Cart

	insertErr error
	updateErr error
	getErr    error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[uuid.UUID]*domain.Cart)}
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

func (m *mockCartRepo) GetByUserID(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, c := range m.carts {
		if c.UserID == userID && userID != "" {
			return copyCart(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockCartRepo) GetBySessionCartID(_ context.Context, sessionCartID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, c := range m.carts {
		if c.SessionCartID == sessionCartID && sessionCartID != "" {
			return copyCart(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockCartRepo) Insert(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, c := range m.carts {
		if (cart.UserID != "" && c.UserID == cart.UserID) ||
			(cart.SessionCartID != "" && c.SessionCartID == cart.SessionCartID) {
			return repository.ErrCartExists
		}
	}
	m.carts[cart.ID] = copyCart(cart)
	return nil
}

func (m *mockCartRepo) UpdateGuarded(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.carts[cart.ID]
	if !ok {
		return repository.ErrCartNotFound
	}
	if stored.Revision != cart.Revision {
		return repository.ErrRevisionConflict
	}
	cp := copyCart(cart)
	cp.Revision++
	m.carts[cart.ID] = cp
	cart.Revision++
	return nil
}

func (m *mockCartRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	for id, c := range m.carts {
		if c.UserID == userID {
			delete(m.carts, id)
			return nil
		}
	}
	return repository.ErrCartNotFound
}

func (m *mockCartRepo) Rebind(_ context.Context, sessionCartID, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, c := range m.carts {
		if c.SessionCartID == sessionCartID {
			c.UserID = userID
			c.SessionCartID = ""
			c.Revision++
			return nil
		}
	}
	return repository.ErrCartNotFound
}

// stored returns the authoritative copy, for assertions.
func (m *mockCartRepo) stored(id uuid.UUID) *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	if c, ok := m.carts[id]; ok {
		return copyCart(c)
	}
	return nil
}

func (m *mockCartRepo) any() *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	for _, c := range m.carts {
		return copyCart(c)
	}
	return nil
}

type mockCatalog struct {
	m        sync.Mutex
	products map[string]*domain.Product
	err      error
}

func newMockCatalog(products ...*domain.Product) *mockCatalog {
	byID := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockCatalog{products: byID}
}

func (m *mockCatalog) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockCatalog) setStock(productID string, stock int) {
	m.m.Lock()
	defer m.m.Unlock()
	m.products[productID].Stock = stock
}

type mockCache struct {
	m       sync.RWMutex
	entries map[string]*domain.Cart
	getErr  error

	invalidatedProducts []string
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, key string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if c, ok := m.entries[key]; ok {
		return copyCart(c), nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *mockCache) Set(_ context.Context, key string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.entries[key] = copyCart(cart)
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *mockCache) InvalidateProduct(_ context.Context, slug string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.invalidatedProducts = append(m.invalidatedProducts, slug)
	return nil
}

type mockProfiles struct {
	profile *domain.UserProfile
	err     error
}

func (m *mockProfiles) GetProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.profile != nil {
		return m.profile, nil
	}
	return &domain.UserProfile{UserID: userID}, nil
}

// mockOrderRepo records orders and supports the fault injection the
// atomicity tests need.
type mockOrderRepo struct {
	m      sync.Mutex
	orders map[uuid.UUID]*domain.Order
	carts  *mockCartRepo // to clear on CreateFromCart, mirrors the tx

	createErr error
	setErr    error
	markErr   error

	setResults []domain.PaymentResult
}

func newMockOrderRepo(carts *mockCartRepo) *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*domain.Order), carts: carts}
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		cp.PaymentResult = &pr
	}
	return &cp, nil
}

func (m *mockOrderRepo) CreateFromCart(_ context.Context, order *domain.Order, cartID uuid.UUID, cartRevision int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr // nothing applied, like a rolled-back tx
	}
	if m.carts != nil {
		m.carts.m.Lock()
		stored, ok := m.carts.carts[cartID]
		if !ok {
			m.carts.m.Unlock()
			return repository.ErrCartNotFound
		}
		if stored.Revision != cartRevision {
			m.carts.m.Unlock()
			return repository.ErrRevisionConflict
		}
		stored.Items = nil
		stored.ItemsPrice, stored.ShippingPrice, stored.TaxPrice, stored.TotalPrice =
			zeroAmount(), zeroAmount(), zeroAmount(), zeroAmount()
		stored.Revision++
		m.carts.m.Unlock()
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepo) SetPaymentResult(_ context.Context, orderID uuid.UUID, result domain.PaymentResult) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	r := result
	o.PaymentResult = &r
	m.setResults = append(m.setResults, result)
	return nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, orderID uuid.UUID, result domain.PaymentResult, paidAt time.Time) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return false, repository.ErrOrderNotFound
	}
	if o.IsPaid {
		return false, nil
	}
	o.IsPaid = true
	t := paidAt
	o.PaidAt = &t
	r := result
	o.PaymentResult = &r
	return true, nil
}

func (m *mockOrderRepo) put(order *domain.Order) {
	m.m.Lock()
	defer m.m.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
}

func zeroAmount() money.Amount { return money.Zero() }

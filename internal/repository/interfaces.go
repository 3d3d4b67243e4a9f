package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/domain"
)

// CartRepository is the store surface the cart service mutates through. All
// writes replace the full item list and all four totals together, so a
// reader can never see items paired with stale totals.
type CartRepository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Cart, error)
	GetBySessionCartID(ctx context.Context, sessionCartID string) (*domain.Cart, error)
	Insert(ctx context.Context, cart *domain.Cart) error
	// UpdateGuarded writes items+totals conditioned on cart.Revision and
	// bumps it; ErrRevisionConflict when another writer got there first.
	UpdateGuarded(ctx context.Context, cart *domain.Cart) error
	DeleteByUserID(ctx context.Context, userID string) error
	// Rebind promotes a session cart to be owned by userID.
	Rebind(ctx context.Context, sessionCartID, userID string) error
}

// OrderRepository owns the order lifecycle, including the one transaction in
// the system that spans tables: order + items + cart clear.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// CreateFromCart atomically inserts the order with its items, empties
	// the source cart (guarded by cartRevision) and records an
	// order_created outbox event. All or nothing.
	CreateFromCart(ctx context.Context, order *domain.Order, cartID uuid.UUID, cartRevision int64) error
	// SetPaymentResult stores the pending intent binding on an unpaid order.
	SetPaymentResult(ctx context.Context, orderID uuid.UUID, result domain.PaymentResult) error
	// MarkPaid transitions the order to paid at most once. Returns false
	// when the order was already paid (redelivered webhook).
	MarkPaid(ctx context.Context, orderID uuid.UUID, result domain.PaymentResult, paidAt time.Time) (bool, error)
}

// ProductReader supplies the catalog facts cart mutation validates against.
// The core never writes stock.
type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// ProfileReader supplies the checkout preconditions recorded on the user.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// OutboxSource feeds the kafka poller.
type OutboxSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

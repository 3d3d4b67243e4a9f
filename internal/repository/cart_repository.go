package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/marc100s/store-core/internal/domain"
)

const cartColumns = `id, user_id, session_cart_id, items, items_price, shipping_price, tax_price, total_price, revision, created_at, updated_at`

func (r *Repository) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1`
	return r.scanCart(r.db.QueryRowContext(ctx, query, userID))
}

func (r *Repository) GetBySessionCartID(ctx context.Context, sessionCartID string) (*domain.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE session_cart_id = $1`
	return r.scanCart(r.db.QueryRowContext(ctx, query, sessionCartID))
}

func (r *Repository) scanCart(row *sql.Row) (*domain.Cart, error) {
	var cart domain.Cart
	var userID, sessionCartID sql.NullString
	var itemsJSON []byte

	err := row.Scan(
		&cart.ID,
		&userID,
		&sessionCartID,
		&itemsJSON,
		&cart.ItemsPrice,
		&cart.ShippingPrice,
		&cart.TaxPrice,
		&cart.TotalPrice,
		&cart.Revision,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	cart.UserID = userID.String
	cart.SessionCartID = sessionCartID.String

	if err := json.Unmarshal(itemsJSON, &cart.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}

	return &cart, nil
}

func (r *Repository) Insert(ctx context.Context, cart *domain.Cart) error {
	itemsJSON, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}

	query := `INSERT INTO carts (id, user_id, session_cart_id, items, items_price, shipping_price, tax_price, total_price, revision, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		cart.ID,
		nullable(cart.UserID),
		nullable(cart.SessionCartID),
		itemsJSON,
		cart.ItemsPrice,
		cart.ShippingPrice,
		cart.TaxPrice,
		cart.TotalPrice)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrCartExists
		}
		return fmt.Errorf("insert cart: %w", insertErr)
	}
	return nil
}

// UpdateGuarded replaces the item list and all four totals in one write,
// conditioned on the revision the caller read. Zero matched rows means a
// concurrent writer bumped the revision first.
func (r *Repository) UpdateGuarded(ctx context.Context, cart *domain.Cart) error {
	itemsJSON, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}

	query := `UPDATE carts
	          SET items = $1, items_price = $2, shipping_price = $3, tax_price = $4, total_price = $5,
	              revision = revision + 1, updated_at = NOW()
	          WHERE id = $6 AND revision = $7`

	result, execErr := r.db.ExecContext(ctx, query,
		itemsJSON,
		cart.ItemsPrice,
		cart.ShippingPrice,
		cart.TaxPrice,
		cart.TotalPrice,
		cart.ID,
		cart.Revision)
	if execErr != nil {
		return fmt.Errorf("update cart: %w", execErr)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRevisionConflict
	}

	cart.Revision++
	return nil
}

func (r *Repository) DeleteByUserID(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCartNotFound
	}
	return nil
}

// Rebind hands a session cart over to the newly signed-in user. The session
// binding is cleared so a later request with the same cookie starts fresh.
func (r *Repository) Rebind(ctx context.Context, sessionCartID, userID string) error {
	query := `UPDATE carts
	          SET user_id = $1, session_cart_id = NULL, revision = revision + 1, updated_at = NOW()
	          WHERE session_cart_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, sessionCartID)
	if err != nil {
		return fmt.Errorf("rebind cart: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marc100s/store-core/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

func (r *Repository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, image, price, stock FROM products WHERE id = $1`,
		productID).Scan(&p.ID, &p.Name, &p.Slug, &p.Image, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	profile := domain.UserProfile{UserID: userID}
	var addrJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT shipping_address, payment_method FROM user_profiles WHERE user_id = $1`,
		userID).Scan(&addrJSON, &profile.PaymentMethod)
	if errors.Is(err, sql.ErrNoRows) {
		// No profile row is the same as an empty profile: the checkout
		// precondition chain redirects on the missing pieces.
		return &profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user profile: %w", err)
	}

	if len(addrJSON) > 0 {
		profile.Address = &domain.ShippingAddress{}
		if err := json.Unmarshal(addrJSON, profile.Address); err != nil {
			return nil, fmt.Errorf("unmarshal profile address: %w", err)
		}
	}
	return &profile, nil
}

package cache

import (
	"context"
	"errors"

	"github.com/marc100s/store-core/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, key string) (*domain.Cart, error)
	Set(ctx context.Context, key string, cart *domain.Cart) error
	Delete(ctx context.Context, key string) error
	// InvalidateProduct drops the rendered product page for slug, since its
	// displayed availability depends on carts being mutated.
	InvalidateProduct(ctx context.Context, slug string) error
}

var ErrCacheMiss = errors.New("cache miss")

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
	"golang.org/x/sync/singleflight"
)

// maxWriteRetries bounds the optimistic read-modify-write loop before the
// caller gets ErrConcurrentModification.
const maxWriteRetries = 3

type CartService struct {
	repo    repository.CartRepository
	catalog repository.ProductReader
	cache   cache.CartCache
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, catalog repository.ProductReader, cartCache cache.CartCache) *CartService {
	return &CartService{
		repo:    repo,
		catalog: catalog,
		cache:   cartCache,
	}
}

// GetCart returns the identity's cart. An absent cart comes back as an empty
// cart value, never as an error: not having shopped yet is not a fault.
func (s *CartService) GetCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	key := cacheKeyFor(identity)

	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, key)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.lookup(ctx, identity)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) {
			return emptyCart(identity), nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			errSet := s.cache.Set(context.Background(), key, cart)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem puts one unit of productID into the identity's cart: a new cart is
// created lazily, an existing line is incremented by one, a missing line is
// appended. Stock is checked against the catalog at call time, and the item
// list plus all four totals go to the store in a single guarded write.
func (s *CartService) AddItem(ctx context.Context, identity domain.Identity, productID string) (*domain.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		cart, errGet := s.lookup(ctx, identity)
		if errGet != nil && !errors.Is(errGet, repository.ErrCartNotFound) {
			return nil, errGet
		}

		if errGet != nil { // no cart yet, create one with the single item
			if product.Stock < 1 {
				return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.ID)
			}
			cart = emptyCart(identity)
			cart.ID = uuid.New()
			cart.Items = []domain.CartItem{itemFromProduct(product)}
			cart.ApplyTotals()

			errInsert := s.repo.Insert(ctx, cart)
			if errors.Is(errInsert, repository.ErrCartExists) {
				continue // another request created the cart first, re-read
			}
			if errInsert != nil {
				return nil, errInsert
			}
			s.invalidate(identity, product.Slug)
			return cart, nil
		}

		if line := cart.Item(productID); line != nil {
			if line.Quantity+1 > product.Stock {
				return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.ID)
			}
			line.Quantity++
		} else {
			if product.Stock < 1 {
				return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.ID)
			}
			cart.Items = append(cart.Items, itemFromProduct(product))
		}
		cart.ApplyTotals()

		errUpdate := s.repo.UpdateGuarded(ctx, cart)
		if errors.Is(errUpdate, repository.ErrRevisionConflict) {
			continue
		}
		if errUpdate != nil {
			return nil, errUpdate
		}
		s.invalidate(identity, product.Slug)
		return cart, nil
	}

	return nil, ErrConcurrentModification
}

// RemoveItem takes one unit off the line, dropping the line entirely when it
// was the last unit.
func (s *CartService) RemoveItem(ctx context.Context, identity domain.Identity, productID string) (*domain.Cart, error) {
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		cart, errGet := s.lookup(ctx, identity)
		if errGet != nil {
			return nil, errGet
		}

		line := cart.Item(productID)
		if line == nil {
			return nil, fmt.Errorf("%w: %s", repository.ErrItemNotFound, productID)
		}

		slug := line.Slug
		if line.Quantity > 1 {
			line.Quantity--
		} else {
			items := make([]domain.CartItem, 0, len(cart.Items)-1)
			for _, it := range cart.Items {
				if it.ProductID != productID {
					items = append(items, it)
				}
			}
			cart.Items = items
		}
		cart.ApplyTotals()

		errUpdate := s.repo.UpdateGuarded(ctx, cart)
		if errors.Is(errUpdate, repository.ErrRevisionConflict) {
			continue
		}
		if errUpdate != nil {
			return nil, errUpdate
		}
		s.invalidate(identity, slug)
		return cart, nil
	}

	return nil, ErrConcurrentModification
}

// MergeOnSignIn reconciles the anonymous session cart with the user's cart,
// called exactly once during the sign-in transition. Session cart wins: a
// pre-existing user cart is discarded before the rebind. Failures are logged
// and swallowed so a broken merge can never block authentication.
func (s *CartService) MergeOnSignIn(ctx context.Context, sessionCartID, userID string) {
	if sessionCartID == "" || userID == "" {
		return
	}

	_, err := s.repo.GetBySessionCartID(ctx, sessionCartID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return // nothing to merge
	}
	if err != nil {
		log.Printf("cart merge: session cart lookup failed: %v", err)
		return
	}

	_, err = s.repo.GetByUserID(ctx, userID)
	if err == nil {
		if errDel := s.repo.DeleteByUserID(ctx, userID); errDel != nil {
			log.Printf("cart merge: discarding user cart failed: %v", errDel)
			return
		}
	} else if !errors.Is(err, repository.ErrCartNotFound) {
		log.Printf("cart merge: user cart lookup failed: %v", err)
		return
	}

	if errRebind := s.repo.Rebind(ctx, sessionCartID, userID); errRebind != nil {
		log.Printf("cart merge: rebind failed: %v", errRebind)
		return
	}

	s.invalidate(domain.Identity{UserID: userID, SessionCartID: sessionCartID}, "")
}

func (s *CartService) lookup(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	if identity.UserID != "" {
		cart, err := s.repo.GetByUserID(ctx, identity.UserID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrCartNotFound) {
			return nil, err
		}
	}
	if identity.SessionCartID != "" {
		return s.repo.GetBySessionCartID(ctx, identity.SessionCartID)
	}
	return nil, repository.ErrCartNotFound
}

// invalidate drops the cart cache entries for both identity bindings and the
// affected product's rendered page.
func (s *CartService) invalidate(identity domain.Identity, slug string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if identity.UserID != "" {
		if err := s.cache.Delete(ctx, cacheKeyFor(domain.Identity{UserID: identity.UserID})); err != nil {
			log.Printf("cache invalidate error: %v", err)
		}
	}
	if identity.SessionCartID != "" {
		if err := s.cache.Delete(ctx, cacheKeyFor(domain.Identity{SessionCartID: identity.SessionCartID})); err != nil {
			log.Printf("cache invalidate error: %v", err)
		}
	}
	if slug != "" {
		if err := s.cache.InvalidateProduct(ctx, slug); err != nil {
			log.Printf("product page invalidate error: %v", err)
		}
	}
}

func cacheKeyFor(identity domain.Identity) string {
	if identity.UserID != "" {
		return "u:" + identity.UserID
	}
	return "s:" + identity.SessionCartID
}

func emptyCart(identity domain.Identity) *domain.Cart {
	cart := &domain.Cart{}
	if identity.UserID != "" {
		cart.UserID = identity.UserID
	} else {
		cart.SessionCartID = identity.SessionCartID
	}
	return cart
}

func itemFromProduct(p *domain.Product) domain.CartItem {
	return domain.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Image:     p.Image,
		Price:     p.Price,
		Quantity:  1,
	}
}

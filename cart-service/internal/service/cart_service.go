package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ecozbite/ecozbite/cart-service/internal/cache"
	"github.com/ecozbite/ecozbite/cart-service/internal/domain"
	"github.com/ecozbite/ecozbite/cart-service/internal/repository"
	"github.com/ecozbite/ecozbite/pkg/logger"
)

// CartService owns the cart of each session. Reads go cache -> slot; every
// mutation loads from the slot, applies the change, writes the whole cart back
// and drops the cached copy.
type CartService struct {
	slot     repository.CartSlot
	cache    cache.CartCache
	log      *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede
	locks    sync.Map           // sessionID -> *sync.Mutex
	versions sync.Map           // sessionID -> *atomic.Uint64, bumped on every invalidation
}

func NewCartService(slot repository.CartSlot, cache cache.CartCache, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		slot:  slot,
		cache: cache,
		log:   log,
	}
}

func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContextOr(ctx, s.log).Warn("cache get error", zap.String("session_id", sessionID), zap.Error(err))
		}

		version := s.version(sessionID).Load()
		cart, err = s.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		go s.fillCache(sessionID, version, clone(cart))

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight hands the same pointer to every waiter
	return clone(v.(*domain.Cart)), nil
}

// AddItem returns the updated cart. A rejected add leaves the stored cart untouched.
func (s *CartService) AddItem(ctx context.Context, sessionID string, item domain.LineItem, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		return c.Add(item, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		c.UpdateQuantity(productID, quantity)
		return nil
	})
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	unlock := s.lock(sessionID)
	defer unlock()

	if err := s.slot.Delete(ctx, repository.SlotKey(sessionID)); err != nil {
		logger.FromContextOr(ctx, s.log).Error("slot delete error", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	s.invalidateCache(ctx, sessionID)

	// a refilled cart is a new generation and must not reuse the old order keys
	if err := s.slot.Delete(ctx, repository.GenerationKey(sessionID)); err != nil {
		logger.FromContextOr(ctx, s.log).Error("generation rotate error", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("rotate cart generation: %w", err)
	}
	return nil
}

// CheckoutGeneration returns the nonce of the session's current cart
// generation, creating it on first use. ClearCart rotates it.
func (s *CartService) CheckoutGeneration(ctx context.Context, sessionID string) (string, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	key := repository.GenerationKey(sessionID)
	gen, err := s.slot.Get(ctx, key)
	if err == nil {
		return gen, nil
	}
	if !errors.Is(err, repository.ErrSlotEmpty) {
		return "", fmt.Errorf("load cart generation: %w", err)
	}

	gen = uuid.NewString()
	if err := s.slot.Set(ctx, key, gen); err != nil {
		return "", fmt.Errorf("save cart generation: %w", err)
	}
	return gen, nil
}

func (s *CartService) mutate(ctx context.Context, sessionID string, apply func(*domain.Cart) error) (*domain.Cart, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := apply(cart); err != nil {
		return nil, err
	}

	if err := s.save(ctx, sessionID, cart); err != nil {
		logger.FromContextOr(ctx, s.log).Error("slot save error", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(ctx, sessionID)
	return cart, nil
}

func (s *CartService) load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	raw, err := s.slot.Get(ctx, repository.SlotKey(sessionID))
	if errors.Is(err, repository.ErrSlotEmpty) {
		return domain.NewCart(), nil
	}
	if err != nil {
		return nil, err
	}

	cart, err := domain.Restore([]byte(raw))
	if err != nil {
		// an unreadable slot is treated as an empty cart and overwritten on the next save
		logger.FromContextOr(ctx, s.log).Warn("discarding unreadable cart", zap.String("session_id", sessionID), zap.Error(err))
		return domain.NewCart(), nil
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, sessionID string, cart *domain.Cart) error {
	data, err := cart.Marshal()
	if err != nil {
		return err
	}
	if err := s.slot.Set(ctx, repository.SlotKey(sessionID), string(data)); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// fillCache stores a cart read from the slot unless the session was
// invalidated after that read.
func (s *CartService) fillCache(sessionID string, version uint64, cart *domain.Cart) {
	unlock := s.lock(sessionID)
	defer unlock()

	if s.version(sessionID).Load() != version {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, sessionID, cart); err != nil {
		s.log.Warn("cache set error", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// invalidateCache must be called with the session lock held.
func (s *CartService) invalidateCache(ctx context.Context, sessionID string) {
	s.version(sessionID).Add(1)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		logger.FromContextOr(ctx, s.log).Warn("cache invalidate error", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *CartService) lock(sessionID string) func() {
	v, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *CartService) version(sessionID string) *atomic.Uint64 {
	v, _ := s.versions.LoadOrStore(sessionID, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func clone(c *domain.Cart) *domain.Cart {
	out := domain.NewCart()
	if len(c.Items) > 0 {
		out.Items = append([]domain.LineItem(nil), c.Items...)
	}
	return out
}

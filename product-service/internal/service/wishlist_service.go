package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/product-service/internal/domain"
	"github.com/ecozbite/ecozbite/product-service/internal/repository"
)

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Wishlist struct {
	Items []*domain.WishlistEntry `json:"wishlist"`
	Count int                     `json:"count"`
}

type WishlistService struct {
	repo     repository.WishlistRepository
	products ProductLookup
	log      *zap.Logger
	now      func() time.Time
}

func NewWishlistService(repo repository.WishlistRepository, products ProductLookup, log *zap.Logger) *WishlistService {
	if log == nil {
		log = zap.NewNop()
	}
	return &WishlistService{repo: repo, products: products, log: log, now: time.Now}
}

// Add saves a product for the user and remembers the price it had at that
// moment.
func (s *WishlistService) Add(ctx context.Context, userID, productID string) (*domain.WishlistItem, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	item := domain.WishlistItem{
		UserID:         userID,
		ProductID:      p.ID,
		PriceWhenAdded: p.EffectivePrice(),
		AddedAt:        s.now().UTC(),
	}
	if err := s.repo.AddWishlistItem(ctx, item); err != nil {
		return nil, err
	}
	s.log.Info("wishlist item added", zap.String("user_id", userID), zap.String("product_id", p.ID))
	return &item, nil
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID string) error {
	return s.repo.RemoveWishlistItem(ctx, userID, productID)
}

func (s *WishlistService) List(ctx context.Context, userID string) (*Wishlist, error) {
	items, err := s.repo.ListWishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, it := range items {
		it.Product.Refresh(now)
	}
	return &Wishlist{Items: items, Count: len(items)}, nil
}

func (s *WishlistService) Count(ctx context.Context, userID string) (int, error) {
	return s.repo.CountWishlist(ctx, userID)
}

func (s *WishlistService) Contains(ctx context.Context, userID, productID string) (bool, error) {
	return s.repo.InWishlist(ctx, userID, productID)
}

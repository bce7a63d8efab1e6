package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/estimator"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/product-service/internal/domain"
	"github.com/ecozbite/ecozbite/product-service/internal/repository"
)

var ErrForbidden = errors.New("only the owning store can reprice this product")

const (
	SortNewest = ""
	SortPrice  = "price"
	SortExpiry = "expiry"
)

// Predictor recommends a discount for a product close to expiry. Implementations
// are expected to fall back on their own instead of failing.
type Predictor interface {
	RecommendDiscount(ctx context.Context, daysUntilExpiry int, originalPrice float64) estimator.DiscountRecommendation
}

type ListQuery struct {
	StoreID  string
	Category string
	Sort     string
	// IncludeUnavailable also returns sold out and expired products.
	IncludeUnavailable bool
}

type ComparisonEntry struct {
	StoreID         string    `json:"store_id"`
	StoreName       string    `json:"store_name"`
	ProductID       string    `json:"product_id"`
	ProductName     string    `json:"product_name"`
	OriginalPrice   float64   `json:"original_price"`
	DiscountedPrice float64   `json:"discounted_price"`
	DiscountPercent int       `json:"discount_percent"`
	Savings         float64   `json:"savings"`
	ExpiryDate      time.Time `json:"expiry_date"`
	Stock           int       `json:"stock"`
	Unit            string    `json:"unit"`
}

type PriceComparison struct {
	ProductName     string            `json:"product_name"`
	Category        string            `json:"category"`
	TotalStores     int               `json:"total_stores"`
	BestDeal        *ComparisonEntry  `json:"best_deal"`
	PriceComparison []ComparisonEntry `json:"price_comparison"`
}

type RepriceResult struct {
	Product        *domain.Product                  `json:"product"`
	Recommendation estimator.DiscountRecommendation `json:"recommendation"`
}

type CatalogService struct {
	repo      repository.RepoInterface
	predictor Predictor
	log       *zap.Logger
	now       func() time.Time
}

func NewCatalogService(repo repository.RepoInterface, predictor Predictor, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{
		repo:      repo,
		predictor: predictor,
		log:       log,
		now:       time.Now,
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, q ListQuery) ([]*domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, repository.Filter{
		StoreID:  strings.TrimSpace(q.StoreID),
		Category: strings.TrimSpace(q.Category),
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := products[:0]
	for _, p := range products {
		p.Refresh(now)
		if q.IncludeUnavailable || p.Available() {
			out = append(out, p)
		}
	}

	switch q.Sort {
	case SortPrice:
		sort.SliceStable(out, func(i, j int) bool { return out[i].EffectivePrice() < out[j].EffectivePrice() })
	case SortExpiry:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	}
	return out, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Refresh(s.now())
	return p, nil
}

// ComparePrices lists available products of the same category across all
// stores, cheapest first.
func (s *CatalogService) ComparePrices(ctx context.Context, id string) (*PriceComparison, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	similar, err := s.ListProducts(ctx, ListQuery{Category: product.Category, Sort: SortPrice})
	if err != nil {
		return nil, err
	}

	entries := make([]ComparisonEntry, 0, len(similar))
	for _, p := range similar {
		entries = append(entries, ComparisonEntry{
			StoreID:         p.StoreID,
			StoreName:       p.StoreName,
			ProductID:       p.ID,
			ProductName:     p.Name,
			OriginalPrice:   p.OriginalPrice,
			DiscountedPrice: p.EffectivePrice(),
			DiscountPercent: p.DiscountPercentage,
			Savings:         decimal.NewFromFloat(p.Savings()).Round(2).InexactFloat64(),
			ExpiryDate:      p.ExpiryDate,
			Stock:           p.Stock,
			Unit:            p.Unit,
		})
	}

	cmp := &PriceComparison{
		ProductName:     product.Name,
		Category:        product.Category,
		TotalStores:     len(entries),
		PriceComparison: entries,
	}
	if len(entries) > 0 {
		cmp.BestDeal = &entries[0]
	}
	return cmp, nil
}

// Reprice asks the predictor for a discount based on the days left before
// expiry and stores the resulting price. Store owners may only reprice their
// own products; admins may reprice any.
func (s *CatalogService) Reprice(ctx context.Context, actor auth.Identity, id string) (*RepriceResult, error) {
	if !actor.HasRole(auth.RoleStoreOwner, auth.RoleAdmin) {
		return nil, ErrForbidden
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && p.StoreID != actor.UserID {
		return nil, ErrForbidden
	}
	p.Refresh(s.now())

	rec := s.predictor.RecommendDiscount(ctx, p.DaysUntilExpiry, p.OriginalPrice)
	if err := s.repo.UpdatePricing(ctx, p.ID, rec.DiscountedPrice, rec.DiscountPercentage); err != nil {
		return nil, fmt.Errorf("reprice %s: %w", p.ID, err)
	}
	p.DiscountedPrice = rec.DiscountedPrice
	p.DiscountPercentage = rec.DiscountPercentage

	logger.FromContextOr(ctx, s.log).Info("product repriced",
		zap.String("product_id", p.ID),
		zap.String("by", actor.UserID),
		zap.Int("days_until_expiry", p.DaysUntilExpiry),
		zap.Int("discount_percentage", rec.DiscountPercentage),
		zap.Float64("discounted_price", rec.DiscountedPrice),
	)
	return &RepriceResult{Product: p, Recommendation: rec}, nil
}

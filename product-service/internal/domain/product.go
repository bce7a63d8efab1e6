package domain

import (
	"errors"
	"time"

	"github.com/ecozbite/ecozbite/pkg/estimator"
)

type ProductStatus string

const (
	StatusActive   ProductStatus = "active"
	StatusExpiring ProductStatus = "expiring"
	StatusExpired  ProductStatus = "expired"
	StatusSoldOut  ProductStatus = "sold_out"
)

// ExpiringWithinDays marks a product as expiring once its days until expiry
// drop to this value.
const ExpiringWithinDays = 2

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID                 string        `json:"id"`
	StoreID            string        `json:"store_id"`
	StoreName          string        `json:"store_name"`
	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	Category           string        `json:"category"`
	Unit               string        `json:"unit"`
	OriginalPrice      float64       `json:"original_price"`
	DiscountedPrice    float64       `json:"discounted_price"`
	DiscountPercentage int           `json:"discount_percentage"`
	Stock              int           `json:"stock"`
	ExpiryDate         time.Time     `json:"expiry_date"`
	DaysUntilExpiry    int           `json:"days_until_expiry"`
	Status             ProductStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Refresh recomputes the time-dependent fields against now.
func (p *Product) Refresh(now time.Time) {
	p.DaysUntilExpiry = estimator.DaysUntil(p.ExpiryDate, now)
	p.Status = DeriveStatus(p.Stock, p.DaysUntilExpiry)
}

func DeriveStatus(stock, daysUntilExpiry int) ProductStatus {
	switch {
	case stock <= 0:
		return StatusSoldOut
	case daysUntilExpiry <= 0:
		return StatusExpired
	case daysUntilExpiry <= ExpiringWithinDays:
		return StatusExpiring
	default:
		return StatusActive
	}
}

// Available reports whether the product can still be bought.
func (p *Product) Available() bool {
	return p.Status == StatusActive || p.Status == StatusExpiring
}

// Savings is the per-unit amount saved against the original price.
func (p *Product) Savings() float64 {
	if p.DiscountedPrice <= 0 || p.DiscountedPrice >= p.OriginalPrice {
		return 0
	}
	return p.OriginalPrice - p.DiscountedPrice
}

// EffectivePrice is what a buyer pays: the discounted price when one is set.
func (p *Product) EffectivePrice() float64 {
	if p.DiscountedPrice > 0 {
		return p.DiscountedPrice
	}
	return p.OriginalPrice
}

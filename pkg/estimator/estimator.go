// Package estimator holds the rule-based expiry and discount estimates used
// when the AI prediction service cannot be reached.
package estimator

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultShelfLifeDays = 7

var shelfLifeDays = map[string]int{
	"dairy":      7,
	"meat":       3,
	"vegetables": 5,
	"fruits":     4,
	"bakery":     2,
	"frozen":     30,
	"canned":     365,
	"dry_goods":  180,
	"beverages":  14,
}

const (
	StatusExpired  = "expired"
	StatusCritical = "critical"
	StatusWarning  = "warning"
	StatusFresh    = "fresh"
)

const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

type ExpiryEstimate struct {
	ExpiryDate          time.Time `json:"expiry_date"`
	DaysUntilExpiry     int       `json:"days_until_expiry"`
	Status              string    `json:"status"`
	Category            string    `json:"category"`
	EstimatedExpiryDays int       `json:"estimated_expiry_days"`
}

type DiscountRecommendation struct {
	DiscountPercentage int     `json:"discount_percentage"`
	OriginalPrice      float64 `json:"original_price"`
	DiscountedPrice    float64 `json:"discounted_price"`
	DaysUntilExpiry    int     `json:"days_until_expiry"`
	Urgency            string  `json:"urgency"`
}

// ShelfLife returns the table entry for category, case-insensitively.
func ShelfLife(category string) int {
	if days, ok := shelfLifeDays[strings.ToLower(strings.TrimSpace(category))]; ok {
		return days
	}
	return defaultShelfLifeDays
}

// EstimateExpiry projects an expiry date from the category shelf life.
// Days until expiry are measured from now, not from purchaseDate; a zero
// purchaseDate means now.
func EstimateExpiry(category string, purchaseDate, now time.Time) ExpiryEstimate {
	if purchaseDate.IsZero() {
		purchaseDate = now
	}
	days := ShelfLife(category)
	expiry := purchaseDate.AddDate(0, 0, days)
	until := DaysUntil(expiry, now)

	return ExpiryEstimate{
		ExpiryDate:          expiry,
		DaysUntilExpiry:     until,
		Status:              expiryStatus(until),
		Category:            category,
		EstimatedExpiryDays: days,
	}
}

// DaysUntil is ceil((t - now) / 24h).
func DaysUntil(t, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

func expiryStatus(days int) string {
	switch {
	case days < 0:
		return StatusExpired
	case days <= 1:
		return StatusCritical
	case days <= 3:
		return StatusWarning
	default:
		return StatusFresh
	}
}

// EstimateDiscount maps days until expiry onto a fixed discount ladder.
// Four or more days gets no discount.
func EstimateDiscount(daysUntilExpiry int, originalPrice float64) DiscountRecommendation {
	pct := discountPercentage(daysUntilExpiry)

	price := decimal.NewFromFloat(originalPrice)
	factor := decimal.NewFromInt(100 - int64(pct)).Div(decimal.NewFromInt(100))
	discounted, _ := price.Mul(factor).Round(2).Float64()

	return DiscountRecommendation{
		DiscountPercentage: pct,
		OriginalPrice:      originalPrice,
		DiscountedPrice:    discounted,
		DaysUntilExpiry:    daysUntilExpiry,
		Urgency:            urgency(daysUntilExpiry),
	}
}

func discountPercentage(days int) int {
	switch {
	case days <= 0:
		return 70
	case days == 1:
		return 50
	case days == 2:
		return 30
	case days == 3:
		return 20
	default:
		return 0
	}
}

func urgency(days int) string {
	switch {
	case days <= 1:
		return UrgencyHigh
	case days <= 3:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

package domain

import (
	"errors"
	"time"
)

var (
	ErrAlreadyInWishlist = errors.New("product already in wishlist")
	ErrNotInWishlist     = errors.New("product not found in wishlist")
)

type WishlistItem struct {
	UserID         string    `json:"user_id"`
	ProductID      string    `json:"product_id"`
	PriceWhenAdded float64   `json:"price_when_added"`
	AddedAt        time.Time `json:"added_at"`
}

// WishlistEntry is a saved item joined with the product as it is now.
type WishlistEntry struct {
	WishlistItem
	Product *Product `json:"product"`
}

// PriceDrop is how much cheaper the product is than when it was saved.
func (e WishlistEntry) PriceDrop() float64 {
	if e.Product == nil {
		return 0
	}
	return max(e.PriceWhenAdded-e.Product.EffectivePrice(), 0)
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrCrossStoreConflict = errors.New("cart already holds items from another store")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidProduct     = errors.New("product id and store id are required")
	ErrInvalidPrice       = errors.New("prices must not be negative")
)

// LineItem is one product in the cart. ID is the product id.
type LineItem struct {
	ID              string  `json:"id"`
	StoreID         string  `json:"storeId"`
	StoreName       string  `json:"storeName,omitempty"`
	Name            string  `json:"name"`
	Unit            string  `json:"unit,omitempty"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountedPrice float64 `json:"discountedPrice"`
	Quantity        int     `json:"quantity"`
}

func (i LineItem) LineTotal() float64 {
	return i.DiscountedPrice * float64(i.Quantity)
}

// Cart holds the line items of one session. All items share a store and no
// two items share an ID.
type Cart struct {
	Items []LineItem
}

type StorePartition struct {
	StoreID string
	Items   []LineItem
}

func NewCart() *Cart {
	return &Cart{}
}

// Add puts quantity units of item into the cart. An item from a store other
// than the cart's current one is rejected with ErrCrossStoreConflict and the
// cart is left untouched.
func (c *Cart) Add(item LineItem, quantity int) error {
	if item.ID == "" || item.StoreID == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if item.OriginalPrice < 0 || item.DiscountedPrice < 0 {
		return ErrInvalidPrice
	}

	if store, ok := c.CurrentStoreID(); ok && store != item.StoreID {
		return fmt.Errorf("%w: cart store %s, product store %s", ErrCrossStoreConflict, store, item.StoreID)
	}

	if idx := c.indexOf(item.ID); idx >= 0 {
		c.Items[idx].Quantity += quantity
		return nil
	}

	item.Quantity = quantity
	c.Items = append(c.Items, item)
	return nil
}

// Remove drops the item with productID; absent ids are ignored.
func (c *Cart) Remove(productID string) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}

// UpdateQuantity sets an absolute quantity. Zero or less removes the item.
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	if idx := c.indexOf(productID); idx >= 0 {
		c.Items[idx].Quantity = quantity
	}
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.DiscountedPrice * float64(it.Quantity)
	}
	return total
}

func (c *Cart) OriginalTotal() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.OriginalPrice * float64(it.Quantity)
	}
	return total
}

// Savings can be negative when a discounted price exceeds the original.
func (c *Cart) Savings() float64 {
	return c.OriginalTotal() - c.Total()
}

// Count is the sum of quantities, not the number of distinct items.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) CurrentStoreID() (string, bool) {
	if len(c.Items) == 0 {
		return "", false
	}
	return c.Items[0].StoreID, true
}

// PartitionByStore groups items by store in first-seen order. Item order
// within a partition follows the cart.
func (c *Cart) PartitionByStore() []StorePartition {
	var parts []StorePartition
	index := make(map[string]int)
	for _, it := range c.Items {
		i, ok := index[it.StoreID]
		if !ok {
			i = len(parts)
			index[it.StoreID] = i
			parts = append(parts, StorePartition{StoreID: it.StoreID})
		}
		parts[i].Items = append(parts[i].Items, it)
	}
	return parts
}

func (c *Cart) indexOf(productID string) int {
	for i, it := range c.Items {
		if it.ID == productID {
			return i
		}
	}
	return -1
}

// Marshal serializes the cart as a JSON array of line items.
func (c *Cart) Marshal() ([]byte, error) {
	items := c.Items
	if items == nil {
		items = []LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}
	return data, nil
}

// Restore rebuilds a cart from Marshal output. Items with a non-positive
// quantity are dropped.
func Restore(data []byte) (*Cart, error) {
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	c := NewCart()
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		c.Items = append(c.Items, it)
	}
	return c, nil
}

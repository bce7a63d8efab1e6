package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PickupWindow is how long a placed order stays claimable at the store.
const PickupWindow = 24 * time.Hour

// CustomerCancelWindow is how long after placing an order the customer may
// still cancel it.
const CustomerCancelWindow = 2 * time.Minute

// TotalTolerance is the accepted drift between the client total and the
// sum of its line totals.
var TotalTolerance = decimal.RequireFromString("0.01")

var (
	ErrNoItems           = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("item quantity must be at least 1")
	ErrInvalidItem       = errors.New("item product_id is required")
	ErrMissingStore      = errors.New("store_id is required")
	ErrTotalMismatch     = errors.New("total_amount does not match item totals")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown order status")

	ErrUnknownProduct     = errors.New("product not found")
	ErrStoreMismatch      = errors.New("all products must be from the same store")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInsufficientStock  = errors.New("insufficient stock")

	ErrCancelWindowExpired = errors.New("cancel period expired, orders can only be cancelled within 2 minutes")
	ErrNotCancellable      = errors.New("order cannot be cancelled in current status")
)

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusConfirmed: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusCompleted, OrderStatusCancelled},
}

type OrderItem struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	LineTotal       float64 `json:"line_total"`
	Unit            string  `json:"unit,omitempty"`
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// StoreStats summarises a store's orders across all pages.
type StoreStats struct {
	Pending      int     `json:"pending"`
	Completed    int     `json:"completed"`
	TotalRevenue float64 `json:"total_revenue"`
}

type Order struct {
	ID             uuid.UUID     `json:"id"`
	OrderNumber    string        `json:"order_number"`
	UserID         string        `json:"user_id"`
	StoreID        string        `json:"store_id"`
	Items          []OrderItem   `json:"items"`
	TotalAmount    float64       `json:"total_amount"`
	TotalSavings   float64       `json:"total_savings"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	CustomerInfo   CustomerInfo  `json:"customer_info"`
	IdempotencyKey string        `json:"-"`
	ExpiresAt      time.Time     `json:"expires_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewOrder validates the submitted items against the client total and builds
// a pending order. Line totals are recomputed from price and quantity.
func NewOrder(userID, storeID string, items []OrderItem, total float64, customer CustomerInfo, now time.Time) (*Order, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, ErrMissingStore
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	sum := decimal.Zero
	original := decimal.Zero
	lines := make([]OrderItem, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, ErrInvalidItem
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		line := decimal.NewFromFloat(it.DiscountedPrice).Mul(qty)
		sum = sum.Add(line)
		original = original.Add(decimal.NewFromFloat(it.OriginalPrice).Mul(qty))

		it.LineTotal = line.Round(2).InexactFloat64()
		lines[i] = it
	}

	if decimal.NewFromFloat(total).Sub(sum).Abs().GreaterThan(TotalTolerance) {
		return nil, fmt.Errorf("%w: got %.2f, expected %s", ErrTotalMismatch, total, sum.StringFixed(2))
	}

	savings := original.Sub(sum)
	if savings.IsNegative() {
		savings = decimal.Zero
	}

	number, err := NewOrderNumber(now)
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:            uuid.New(),
		OrderNumber:   number,
		UserID:        userID,
		StoreID:       storeID,
		Items:         lines,
		TotalAmount:   sum.Round(2).InexactFloat64(),
		TotalSavings:  savings.Round(2).InexactFloat64(),
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		CustomerInfo:  customer,
		ExpiresAt:     now.Add(PickupWindow),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NewOrderNumber returns "EZ" + base36 unix millis + 5 random base36 chars,
// upper-cased.
func NewOrderNumber(now time.Time) (string, error) {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 5)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generate order number: %w", err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return strings.ToUpper("EZ" + strconv.FormatInt(now.UnixMilli(), 36) + string(suffix)), nil
}

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusReady,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the order to next, or returns ErrInvalidTransition.
func (o *Order) Transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// CancelByCustomer cancels a pending order placed no more than
// CustomerCancelWindow ago.
func (o *Order) CancelByCustomer(now time.Time) error {
	if now.Sub(o.CreatedAt) > CustomerCancelWindow {
		return ErrCancelWindowExpired
	}
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: %s", ErrNotCancellable, o.Status)
	}
	return o.Transition(OrderStatusCancelled, now)
}

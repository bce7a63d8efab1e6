// Package checkout turns a session's cart into one order per store.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/cart-service/internal/domain"
	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/logger"
)

const GenericFailureMessage = "Failed to place orders"

var (
	ErrNotAuthenticated = errors.New("please log in to place orders")
	ErrEmptyCart        = errors.New("cart is empty")
)

var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("checkout.ecozbite"))

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

// OrderRequest is the payload for one store partition.
type OrderRequest struct {
	StoreID        string       `json:"store_id"`
	Items          []OrderItem  `json:"items"`
	TotalAmount    float64      `json:"total_amount"`
	CustomerInfo   CustomerInfo `json:"customer_info"`
	IdempotencyKey string       `json:"-"`
}

type OrderConfirmation struct {
	OrderID      string    `json:"id"`
	OrderNumber  string    `json:"order_number"`
	StoreID      string    `json:"store_id"`
	TotalAmount  float64   `json:"total_amount"`
	TotalSavings float64   `json:"total_savings"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// OrderCreator submits one order. Implementations return *RejectedError when
// the order service answered with a message meant for the customer.
type OrderCreator interface {
	CreateOrder(ctx context.Context, bearer string, req OrderRequest) (OrderConfirmation, error)
}

// CartStore is the session cart. CheckoutGeneration identifies the cart's
// current fill: it stays the same across retries and changes once the cart is
// cleared.
type CartStore interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	CheckoutGeneration(ctx context.Context, sessionID string) (string, error)
	ClearCart(ctx context.Context, sessionID string) error
}

// RejectedError carries the order service's own error message.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected (%d): %s", e.StatusCode, e.Message)
}

// SubmissionError reports the partition that failed. Orders in Submitted were
// already created and are not rolled back; the cart is left as it was.
type SubmissionError struct {
	StoreID   string
	Message   string
	Submitted []OrderConfirmation
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("checkout failed for store %s: %s", e.StoreID, e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

type Aggregator struct {
	carts   CartStore
	orders  OrderCreator
	log     *zap.Logger
	results *prometheus.CounterVec
}

func NewAggregator(carts CartStore, orders OrderCreator, log *zap.Logger, reg prometheus.Registerer) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecozbite",
		Subsystem: "checkout",
		Name:      "orders_total",
		Help:      "Per-store order submissions by outcome.",
	}, []string{"outcome"})
	if reg != nil {
		reg.MustRegister(results)
	}
	return &Aggregator{carts: carts, orders: orders, log: log, results: results}
}

// Checkout submits one order per store partition, one after another, and
// clears the cart only once every submission succeeded.
func (a *Aggregator) Checkout(ctx context.Context, sessionID string, customer *auth.Identity, bearer string) ([]OrderConfirmation, error) {
	if customer == nil {
		return nil, ErrNotAuthenticated
	}

	cart, err := a.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	generation, err := a.carts.CheckoutGeneration(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart generation: %w", err)
	}

	log := logger.FromContextOr(ctx, a.log).With(zap.String("session_id", sessionID), zap.String("user_id", customer.UserID))

	info := CustomerInfo{Name: customer.Name, Phone: customer.Phone, Email: customer.Email}
	partitions := cart.PartitionByStore()
	confirmations := make([]OrderConfirmation, 0, len(partitions))

	for _, p := range partitions {
		req := BuildOrderRequest(sessionID, generation, p, info)

		conf, err := a.orders.CreateOrder(ctx, bearer, req)
		if err != nil {
			a.results.WithLabelValues("failed").Inc()
			log.Warn("order submission failed",
				zap.String("store_id", p.StoreID),
				zap.Int("already_submitted", len(confirmations)),
				zap.Error(err))
			return nil, &SubmissionError{
				StoreID:   p.StoreID,
				Message:   failureMessage(err),
				Submitted: confirmations,
				Err:       err,
			}
		}

		a.results.WithLabelValues("created").Inc()
		log.Info("order submitted", zap.String("store_id", p.StoreID), zap.String("order_number", conf.OrderNumber))
		confirmations = append(confirmations, conf)
	}

	if err := a.carts.ClearCart(ctx, sessionID); err != nil {
		// the orders exist; a stale cart is the lesser problem
		log.Error("clear cart after checkout failed", zap.Error(err))
	}

	return confirmations, nil
}

// BuildOrderRequest normalizes one partition into an order payload.
func BuildOrderRequest(sessionID, generation string, p domain.StorePartition, customer CustomerInfo) OrderRequest {
	items := make([]OrderItem, 0, len(p.Items))
	total := decimal.Zero

	for _, it := range p.Items {
		line := decimal.NewFromFloat(it.DiscountedPrice).Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(line)

		items = append(items, OrderItem{
			ProductID:       it.ID,
			Name:            it.Name,
			Quantity:        it.Quantity,
			OriginalPrice:   it.OriginalPrice,
			DiscountedPrice: it.DiscountedPrice,
			LineTotal:       line.InexactFloat64(),
			Unit:            it.Unit,
		})
	}

	return OrderRequest{
		StoreID:        p.StoreID,
		Items:          items,
		TotalAmount:    total.InexactFloat64(),
		CustomerInfo:   customer,
		IdempotencyKey: idempotencyKey(sessionID, generation, p),
	}
}

// idempotencyKey is stable for the same session, cart generation and partition
// contents, so retrying after a partial failure replays the partitions that
// went through while a refilled cart gets new keys.
func idempotencyKey(sessionID, generation string, p domain.StorePartition) string {
	var b strings.Builder
	b.WriteString(sessionID)
	b.WriteByte('|')
	b.WriteString(generation)
	b.WriteByte('|')
	b.WriteString(p.StoreID)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "|%s:%d:%s", it.ID, it.Quantity, decimal.NewFromFloat(it.DiscountedPrice).String())
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(b.String())).String()
}

func failureMessage(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) && strings.TrimSpace(rejected.Message) != "" {
		return rejected.Message
	}
	return GenericFailureMessage
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ecozbite/ecozbite/orders-service/internal/catalog"
	"github.com/ecozbite/ecozbite/orders-service/internal/domain"
	"github.com/ecozbite/ecozbite/orders-service/internal/repository"
	"github.com/ecozbite/ecozbite/pkg/logger"
)

var ErrForbidden = errors.New("not allowed to access this order")

const (
	notificationsLimit = 50

	DefaultStorePageSize = 10
	maxStorePageSize     = 100
)

// ProductCatalog is the source of truth for prices, stock and store ownership.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

type CreateOrderInput struct {
	StoreID        string
	Items          []domain.OrderItem
	TotalAmount    float64
	CustomerInfo   domain.CustomerInfo
	IdempotencyKey string
}

type StoreOrderQuery struct {
	// Status filters the page; empty means every status.
	Status domain.OrderStatus
	Page   int
	Limit  int
}

type Pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	Total       int `json:"total"`
}

type StoreOrderPage struct {
	Orders     []*domain.Order   `json:"orders"`
	Pagination Pagination        `json:"pagination"`
	Stats      domain.StoreStats `json:"stats"`
}

type NotificationInbox struct {
	Notifications []*domain.Notification `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
}

type OrderService struct {
	orders        repository.OrderRepository
	notifications repository.NotificationRepository
	catalog       ProductCatalog
	log           *zap.Logger
	now           func() time.Time
}

func NewOrderService(orders repository.OrderRepository, notifications repository.NotificationRepository, products ProductCatalog, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		orders:        orders,
		notifications: notifications,
		catalog:       products,
		log:           log,
		now:           time.Now,
	}
}

// CreateOrder places a pending order for userID. Item names and prices are
// taken from the catalog, never from the request. When the idempotency key
// was already used by this user the stored order is returned with
// created=false.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*domain.Order, bool, error) {
	if in.IdempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, userID, in.IdempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, false, err
		}
	}

	items, err := s.priceItems(ctx, in.StoreID, in.Items)
	if err != nil {
		return nil, false, err
	}

	order, err := domain.NewOrder(userID, in.StoreID, items, in.TotalAmount, in.CustomerInfo, s.now().UTC())
	if err != nil {
		return nil, false, err
	}
	order.IdempotencyKey = in.IdempotencyKey

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotency) {
			// lost a race with a concurrent retry of the same request
			existing, getErr := s.orders.GetOrderByIdempotencyKey(ctx, userID, in.IdempotencyKey)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create order: %w", err)
	}

	logger.FromContextOr(ctx, s.log).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("store_id", order.StoreID),
		zap.Float64("total_amount", order.TotalAmount),
	)
	return order, true, nil
}

// priceItems checks every item against the catalog and replaces the client's
// name, unit and prices with the catalog's.
func (s *OrderService) priceItems(ctx context.Context, storeID string, items []domain.OrderItem) ([]domain.OrderItem, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, domain.ErrMissingStore
	}
	if len(items) == 0 {
		return nil, domain.ErrNoItems
	}

	priced := make([]domain.OrderItem, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, domain.ErrInvalidItem
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, it.ProductID)
		}

		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, it.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("look up product: %w", err)
		}

		switch {
		case p.StoreID != storeID:
			return nil, fmt.Errorf("%w: %s is sold by another store", domain.ErrStoreMismatch, p.Name)
		case !p.Orderable():
			return nil, fmt.Errorf("%w: %s is %s", domain.ErrProductUnavailable, p.Name, p.Status)
		case p.Stock < it.Quantity:
			return nil, fmt.Errorf("%w for %s. Only %d available", domain.ErrInsufficientStock, p.Name, p.Stock)
		}

		priced[i] = domain.OrderItem{
			ProductID:       p.ID,
			Name:            p.Name,
			Quantity:        it.Quantity,
			OriginalPrice:   p.OriginalPrice,
			DiscountedPrice: p.Price(),
			Unit:            p.Unit,
		}
	}
	return priced, nil
}

// GetOrder returns the order if userID placed it or owns the store it was placed at.
func (s *OrderService) GetOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && order.StoreID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListOrdersByUserID(ctx, userID)
}

// ListStoreOrders returns one page of the store's orders together with
// totals that ignore the status filter.
func (s *OrderService) ListStoreOrders(ctx context.Context, storeID string, q StoreOrderQuery) (*StoreOrderPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultStorePageSize
	}
	q.Limit = min(q.Limit, maxStorePageSize)

	var (
		orders []*domain.Order
		total  int
		stats  domain.StoreStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, total, err = s.orders.ListOrdersByStoreID(gctx, storeID, q.Status, q.Limit, (q.Page-1)*q.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.orders.GetStoreStats(gctx, storeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	return &StoreOrderPage{
		Orders: orders,
		Pagination: Pagination{
			CurrentPage: q.Page,
			TotalPages:  (total + q.Limit - 1) / q.Limit,
			Total:       total,
		},
		Stats: stats,
	}, nil
}

// UpdateStatus applies a status transition on behalf of the store that owns
// the order. Admins may update any order.
func (s *OrderService) UpdateStatus(ctx context.Context, userID string, admin bool, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && order.StoreID != userID {
		return nil, ErrForbidden
	}

	from := order.Status
	if err := order.Transition(next, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.saveStatus(ctx, order, from); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder lets the customer withdraw a pending order shortly after
// placing it.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}

	from := order.Status
	if err := order.CancelByCustomer(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.saveStatus(ctx, order, from); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) saveStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	if err := s.orders.UpdateOrderStatus(ctx, order, from); err != nil {
		return err
	}
	logger.FromContextOr(ctx, s.log).Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
	)
	return nil
}

// ExpireOverdue moves pending orders past their pickup window to expired and
// returns how many were changed.
func (s *OrderService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	overdue, err := s.orders.ListOverdueOrders(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range overdue {
		if err := order.Transition(domain.OrderStatusExpired, now); err != nil {
			continue
		}
		if err := s.orders.UpdateOrderStatus(ctx, order, domain.OrderStatusPending); err != nil {
			s.log.Warn("failed to expire order", zap.String("order_id", order.ID.String()), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *OrderService) ListNotifications(ctx context.Context, recipientID string) (*NotificationInbox, error) {
	list, err := s.notifications.ListNotifications(ctx, recipientID, notificationsLimit)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.CountUnreadNotifications(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return &NotificationInbox{Notifications: list, UnreadCount: unread}, nil
}

func (s *OrderService) MarkNotificationRead(ctx context.Context, recipientID string, id uuid.UUID) (*domain.Notification, error) {
	return s.notifications.MarkNotificationRead(ctx, recipientID, id)
}

func (s *OrderService) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	return s.notifications.MarkAllNotificationsRead(ctx, recipientID)
}

func (s *OrderService) DeleteNotification(ctx context.Context, recipientID string, id uuid.UUID) error {
	return s.notifications.DeleteNotification(ctx, recipientID, id)
}

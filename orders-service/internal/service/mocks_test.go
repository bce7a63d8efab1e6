package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecozbite/ecozbite/orders-service/internal/catalog"
	"github.com/ecozbite/ecozbite/orders-service/internal/domain"
	"github.com/ecozbite/ecozbite/orders-service/internal/repository"
)

type MockOrderRepository struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	CreateErr error
	UpdateErr error
	StatsErr  error
	Updates   int
}

func newMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: map[uuid.UUID]*domain.Order{}}
}

func (m *MockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, o := range m.orders {
		if order.IdempotencyKey != "" && o.IdempotencyKey == order.IdempotencyKey {
			return repository.ErrDuplicateIdempotency
		}
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MockOrderRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepository) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey == key && o.UserID == userID && o.Status == domain.OrderStatusPending {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockOrderRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) ListOrdersByStoreID(_ context.Context, storeID string, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*domain.Order
	for _, o := range m.orders {
		if o.StoreID == storeID && (status == "" || o.Status == status) {
			cp := *o
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if offset >= len(matched) {
		return nil, len(matched), nil
	}
	return matched[offset:min(offset+limit, len(matched))], len(matched), nil
}

func (m *MockOrderRepository) GetStoreStats(_ context.Context, storeID string) (domain.StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return domain.StoreStats{}, m.StatsErr
	}
	var stats domain.StoreStats
	revenue := decimal.Zero
	for _, o := range m.orders {
		if o.StoreID != storeID {
			continue
		}
		switch o.Status {
		case domain.OrderStatusPending:
			stats.Pending++
		case domain.OrderStatusCompleted:
			stats.Completed++
			revenue = revenue.Add(decimal.NewFromFloat(o.TotalAmount))
		}
	}
	stats.TotalRevenue = revenue.InexactFloat64()
	return stats, nil
}

func (m *MockOrderRepository) ListOverdueOrders(_ context.Context, now time.Time, _ int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusPending && o.ExpiresAt.Before(now) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) UpdateOrderStatus(_ context.Context, order *domain.Order, from domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	stored, ok := m.orders[order.ID]
	if !ok || stored.Status != from {
		return repository.ErrStatusConflict
	}
	stored.Status = order.Status
	stored.UpdatedAt = order.UpdatedAt
	m.Updates++
	return nil
}

func (m *MockOrderRepository) RunMigrations(*repository.Credentials) error {
	return nil
}

func (m *MockOrderRepository) Close() error {
	return nil
}

type MockNotificationRepository struct {
	Saved []*domain.Notification
}

func (m *MockNotificationRepository) SaveNotification(_ context.Context, n *domain.Notification) error {
	m.Saved = append(m.Saved, n)
	return nil
}

func (m *MockNotificationRepository) ListNotifications(_ context.Context, recipientID string, _ int) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, n := range m.Saved {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *MockNotificationRepository) CountUnreadNotifications(_ context.Context, recipientID string) (int, error) {
	count := 0
	for _, n := range m.Saved {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MockNotificationRepository) MarkNotificationRead(_ context.Context, recipientID string, id uuid.UUID) (*domain.Notification, error) {
	for _, n := range m.Saved {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return n, nil
		}
	}
	return nil, repository.ErrNotificationNotFound
}

func (m *MockNotificationRepository) MarkAllNotificationsRead(_ context.Context, recipientID string) (int, error) {
	count := 0
	for _, n := range m.Saved {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (m *MockNotificationRepository) DeleteNotification(_ context.Context, recipientID string, id uuid.UUID) error {
	for i, n := range m.Saved {
		if n.ID == id && n.RecipientID == recipientID {
			m.Saved = append(m.Saved[:i], m.Saved[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

// MockCatalog serves products by id and records every lookup.
type MockCatalog struct {
	Products map[string]catalog.Product
	Err      error
	Lookups  int
}

func (m *MockCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	m.Lookups++
	if m.Err != nil {
		return catalog.Product{}, m.Err
	}
	p, ok := m.Products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

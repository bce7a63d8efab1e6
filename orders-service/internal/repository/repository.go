package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ecozbite/ecozbite/orders-service/internal/domain"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateIdempotency = errors.New("order for this idempotency key already exists")
	ErrStatusConflict       = errors.New("order status changed concurrently")
	ErrNotificationNotFound = errors.New("notification not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a row of outbox_events waiting to be published.
type OutboxEvent struct {
	ID          int
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type OrderRepository interface {
	// CreateOrder stores the order and its order.created outbox event atomically.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// ListOrdersByStoreID returns one page of the store's orders, newest first,
	// and the number of orders matching status. An empty status matches all.
	ListOrdersByStoreID(ctx context.Context, storeID string, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int, error)
	GetStoreStats(ctx context.Context, storeID string) (domain.StoreStats, error)
	ListOverdueOrders(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error)
	// UpdateOrderStatus persists order.Status if the stored status is still
	// from, and records order.status_changed in the outbox.
	UpdateOrderStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error
	RunMigrations(*Credentials) error
	Close() error
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

type NotificationRepository interface {
	// SaveNotification is idempotent per (order, type, recipient).
	SaveNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientID string) (int, error)
	// MarkNotificationRead returns ErrNotificationNotFound unless the
	// notification belongs to recipientID.
	MarkNotificationRead(ctx context.Context, recipientID string, id uuid.UUID) (*domain.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, recipientID string, id uuid.UUID) error
}

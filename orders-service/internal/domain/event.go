package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload written to the outbox and published to Kafka.
type OrderEvent struct {
	Type        string      `json:"type"`
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	StoreID     string      `json:"store_id"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func NewOrderEvent(eventType string, o *Order) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		StoreID:     o.StoreID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		OccurredAt:  o.UpdatedAt,
	}
}

type NotificationType string

const (
	NotificationNewOrder       NotificationType = "new_order"
	NotificationOrderConfirmed NotificationType = "order_confirmed"
	NotificationOrderReady     NotificationType = "order_ready"
	NotificationOrderExpired   NotificationType = "order_expired"
	NotificationOrderCancelled NotificationType = "order_cancelled"
)

type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID string           `json:"recipient_id"`
	OrderID     uuid.UUID        `json:"order_id"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationFor maps an order event to the in-app notification it produces.
// Events that nobody is notified about return false.
func NotificationFor(ev OrderEvent, now time.Time) (Notification, bool) {
	n := Notification{
		ID:        uuid.New(),
		OrderID:   ev.OrderID,
		CreatedAt: now,
	}

	if ev.Type == EventOrderCreated {
		n.RecipientID = ev.StoreID
		n.Type = NotificationNewOrder
		n.Message = "New order " + ev.OrderNumber + " received"
		return n, true
	}
	if ev.Type != EventOrderStatusChanged {
		return Notification{}, false
	}

	n.RecipientID = ev.UserID
	switch ev.Status {
	case OrderStatusConfirmed:
		n.Type = NotificationOrderConfirmed
		n.Message = "Your order " + ev.OrderNumber + " has been confirmed"
	case OrderStatusReady:
		n.Type = NotificationOrderReady
		n.Message = "Your order " + ev.OrderNumber + " is ready for pickup"
	case OrderStatusExpired:
		n.Type = NotificationOrderExpired
		n.Message = "Your order " + ev.OrderNumber + " has expired"
	case OrderStatusCancelled:
		n.Type = NotificationOrderCancelled
		n.Message = "Your order " + ev.OrderNumber + " was cancelled"
	default:
		return Notification{}, false
	}
	return n, true
}

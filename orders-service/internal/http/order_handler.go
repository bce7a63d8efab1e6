package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/orders-service/internal/domain"
	"github.com/ecozbite/ecozbite/orders-service/internal/repository"
	"github.com/ecozbite/ecozbite/orders-service/internal/service"
	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

const IdempotencyHeader = "Idempotency-Key"

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, in service.CreateOrderInput) (*domain.Order, bool, error)
	GetOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	ListStoreOrders(ctx context.Context, storeID string, q service.StoreOrderQuery) (*service.StoreOrderPage, error)
	UpdateStatus(ctx context.Context, userID string, admin bool, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error)
	ListNotifications(ctx context.Context, recipientID string) (*service.NotificationInbox, error)
	MarkNotificationRead(ctx context.Context, recipientID string, id uuid.UUID) (*domain.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, recipientID string, id uuid.UUID) error
}

type OrderHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrderHandler(orders OrderService, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type CreateOrderRequestDTO struct {
	StoreID      string              `json:"store_id"`
	Items        []domain.OrderItem  `json:"items"`
	TotalAmount  float64             `json:"total_amount"`
	CustomerInfo domain.CustomerInfo `json:"customer_info"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type OrderListResponseDTO struct {
	Orders []*domain.Order `json:"orders"`
	Count  int             `json:"count"`
}

type MarkAllReadResponseDTO struct {
	Updated int `json:"updated"`
}

// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	customer := req.CustomerInfo
	if customer.Name == "" {
		customer.Name = id.Name
	}
	if customer.Email == "" {
		customer.Email = id.Email
	}
	if customer.Phone == "" {
		customer.Phone = id.Phone
	}

	order, created, err := h.orders.CreateOrder(ctx, id.UserID, service.CreateOrderInput{
		StoreID:        req.StoreID,
		Items:          req.Items,
		TotalAmount:    req.TotalAmount,
		CustomerInfo:   customer,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
	})
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	respond.JSON(w, status, order)
}

// GET /api/orders/my-orders
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	orders, err := h.orders.ListMyOrders(ctx, id.UserID)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respond.JSON(w, http.StatusOK, OrderListResponseDTO{Orders: orders, Count: len(orders)})
}

// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	id, _ := auth.FromContext(r.Context())
	order, err := h.orders.GetOrder(ctx, id.UserID, orderID)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, order)
}

// GET /api/orders/store?status=&page=&limit=
func (h *OrderHandler) ListStoreOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	var query service.StoreOrderQuery
	if raw := q.Get("status"); raw != "" && raw != "all" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		query.Status = st
	}
	var ok bool
	if query.Page, ok = intParam(w, q.Get("page"), "page"); !ok {
		return
	}
	if query.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}

	id, _ := auth.FromContext(r.Context())
	page, err := h.orders.ListStoreOrders(ctx, id.UserID, query)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, page)
}

// PATCH /api/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	id, _ := auth.FromContext(r.Context())
	order, err := h.orders.CancelOrder(ctx, id.UserID, orderID)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, order)
}

// PATCH /api/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	id, _ := auth.FromContext(r.Context())
	order, err := h.orders.UpdateStatus(ctx, id.UserID, id.Role == auth.RoleAdmin, orderID, next)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, order)
}

// GET /api/notifications
func (h *OrderHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	inbox, err := h.orders.ListNotifications(ctx, id.UserID)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, inbox)
}

// PATCH /api/notifications/{id}/read
func (h *OrderHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	noteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_notification_id", "notification id must be a UUID")
		return
	}

	id, _ := auth.FromContext(r.Context())
	n, err := h.orders.MarkNotificationRead(ctx, id.UserID, noteID)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, n)
}

// PATCH /api/notifications/mark-all-read
func (h *OrderHandler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	n, err := h.orders.MarkAllNotificationsRead(ctx, id.UserID)
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, MarkAllReadResponseDTO{Updated: n})
}

// DELETE /api/notifications/{id}
func (h *OrderHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	noteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_notification_id", "notification id must be a UUID")
		return
	}

	id, _ := auth.FromContext(r.Context())
	if err := h.orders.DeleteNotification(ctx, id.UserID, noteID); err != nil {
		handleOrderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// intParam parses an optional positive query parameter; zero means unset.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		respond.Error(w, http.StatusBadRequest, "invalid_pagination", name+" must be a positive integer")
		return 0, false
	}
	return n, true
}

func handleOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrMissingStore):
		respond.Error(w, http.StatusBadRequest, "invalid_order", err.Error())
	case errors.Is(err, domain.ErrTotalMismatch):
		respond.Error(w, http.StatusBadRequest, "total_mismatch", err.Error())
	case errors.Is(err, domain.ErrUnknownProduct):
		respond.Error(w, http.StatusBadRequest, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrStoreMismatch):
		respond.Error(w, http.StatusBadRequest, "store_mismatch", err.Error())
	case errors.Is(err, domain.ErrProductUnavailable):
		respond.Error(w, http.StatusBadRequest, "product_unavailable", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respond.Error(w, http.StatusBadRequest, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrCancelWindowExpired):
		respond.Error(w, http.StatusBadRequest, "cancel_window_expired", err.Error())
	case errors.Is(err, domain.ErrNotCancellable):
		respond.Error(w, http.StatusBadRequest, "not_cancellable", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, repository.ErrStatusConflict):
		respond.Error(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		respond.Error(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, repository.ErrNotificationNotFound):
		respond.Error(w, http.StatusNotFound, "notification_not_found", err.Error())
	case errors.Is(err, gobreaker.ErrOpenState):
		respond.Error(w, http.StatusServiceUnavailable, "catalog_unavailable", "product catalog is unavailable, try again shortly")
	case errors.Is(err, service.ErrForbidden):
		respond.Error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respond.Error(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context()).Error("order request failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecozbite/ecozbite/orders-service/internal/catalog"
	"github.com/ecozbite/ecozbite/orders-service/internal/domain"
	"github.com/ecozbite/ecozbite/orders-service/internal/repository"
)

var testNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestCatalog() *MockCatalog {
	return &MockCatalog{Products: map[string]catalog.Product{
		"p1": {ID: "p1", StoreID: "store-1", Name: "Cheese", Unit: "200g", OriginalPrice: 6, DiscountedPrice: 3, Stock: 5, Status: "expiring"},
		"p2": {ID: "p2", StoreID: "store-1", Name: "Bread", OriginalPrice: 4, Stock: 1, Status: "active"},
		"p3": {ID: "p3", StoreID: "store-2", Name: "Milk", OriginalPrice: 2, DiscountedPrice: 1, Stock: 9, Status: "active"},
		"p4": {ID: "p4", StoreID: "store-1", Name: "Yogurt", OriginalPrice: 3, DiscountedPrice: 1, Stock: 0, Status: "sold_out"},
	}}
}

func newTestService() (*OrderService, *MockOrderRepository, *MockNotificationRepository) {
	svc, orders, notes, _ := newTestServiceWithCatalog()
	return svc, orders, notes
}

func newTestServiceWithCatalog() (*OrderService, *MockOrderRepository, *MockNotificationRepository, *MockCatalog) {
	orders := newMockOrderRepository()
	notes := &MockNotificationRepository{}
	products := newTestCatalog()
	svc := NewOrderService(orders, notes, products, nil)
	svc.now = func() time.Time { return testNow }
	return svc, orders, notes, products
}

func validInput(key string) CreateOrderInput {
	return CreateOrderInput{
		StoreID: "store-1",
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Cheese", Quantity: 1, OriginalPrice: 6, DiscountedPrice: 3},
		},
		TotalAmount:    3,
		CustomerInfo:   domain.CustomerInfo{Name: "Bo"},
		IdempotencyKey: key,
	}
}

func TestCreateOrder_Success(t *testing.T) {
	svc, _, _ := newTestService()

	order, created, err := svc.CreateOrder(context.Background(), "user-1", validInput(""))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, testNow.Add(24*time.Hour), order.ExpiresAt)
	assert.Equal(t, "200g", order.Items[0].Unit)
}

func TestCreateOrder_UsesCatalogPrices(t *testing.T) {
	svc, _, _ := newTestService()

	in := validInput("")
	in.Items = []domain.OrderItem{
		{ProductID: "p1", Name: "Free cheese", Quantity: 2, OriginalPrice: 0.01, DiscountedPrice: 0.01},
		{ProductID: "p2", Quantity: 1},
	}
	in.TotalAmount = 10

	order, _, err := svc.CreateOrder(context.Background(), "user-1", in)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Cheese", order.Items[0].Name)
	assert.Equal(t, 3.0, order.Items[0].DiscountedPrice)
	assert.Equal(t, 6.0, order.Items[0].LineTotal)
	// no discount means the original price is charged
	assert.Equal(t, 4.0, order.Items[1].DiscountedPrice)
	assert.Equal(t, 10.0, order.TotalAmount)
	assert.Equal(t, 6.0, order.TotalSavings)
}

func TestCreateOrder_TamperedPriceRejected(t *testing.T) {
	svc, orders, _ := newTestService()

	in := validInput("")
	in.Items[0].DiscountedPrice = 0.01
	in.TotalAmount = 0.01

	_, _, err := svc.CreateOrder(context.Background(), "user-1", in)
	assert.ErrorIs(t, err, domain.ErrTotalMismatch)
	assert.Empty(t, orders.orders)
}

func TestCreateOrder_CatalogChecks(t *testing.T) {
	tests := []struct {
		name    string
		storeID string
		items   []domain.OrderItem
		wantErr error
	}{
		{"unknown product", "store-1", []domain.OrderItem{{ProductID: "nope", Quantity: 1}}, domain.ErrUnknownProduct},
		{"mixed stores", "store-1", []domain.OrderItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p3", Quantity: 1}}, domain.ErrStoreMismatch},
		{"store_id does not own product", "store-2", []domain.OrderItem{{ProductID: "p1", Quantity: 1}}, domain.ErrStoreMismatch},
		{"sold out", "store-1", []domain.OrderItem{{ProductID: "p4", Quantity: 1}}, domain.ErrProductUnavailable},
		{"insufficient stock", "store-1", []domain.OrderItem{{ProductID: "p2", Quantity: 2}}, domain.ErrInsufficientStock},
		{"missing store", "", []domain.OrderItem{{ProductID: "p1", Quantity: 1}}, domain.ErrMissingStore},
		{"no items", "store-1", nil, domain.ErrNoItems},
		{"zero quantity", "store-1", []domain.OrderItem{{ProductID: "p1"}}, domain.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, orders, _ := newTestService()

			_, _, err := svc.CreateOrder(context.Background(), "user-1", CreateOrderInput{
				StoreID:     tt.storeID,
				Items:       tt.items,
				TotalAmount: 3,
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, orders.orders)
		})
	}
}

func TestCreateOrder_InsufficientStockMessage(t *testing.T) {
	svc, _, _ := newTestService()

	_, _, err := svc.CreateOrder(context.Background(), "user-1", CreateOrderInput{
		StoreID: "store-1",
		Items:   []domain.OrderItem{{ProductID: "p2", Quantity: 3}},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Bread. Only 1 available")
}

func TestCreateOrder_CatalogDown(t *testing.T) {
	svc, orders, _, products := newTestServiceWithCatalog()
	products.Err = errors.New("connection refused")

	_, _, err := svc.CreateOrder(context.Background(), "user-1", validInput(""))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnknownProduct)
	assert.Empty(t, orders.orders)
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	svc, orders, _, products := newTestServiceWithCatalog()
	ctx := context.Background()

	first, created, err := svc.CreateOrder(ctx, "user-1", validInput("k1"))
	require.NoError(t, err)
	require.True(t, created)
	lookups := products.Lookups

	again, created, err := svc.CreateOrder(ctx, "user-1", validInput("k1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, orders.orders, 1)
	assert.Equal(t, lookups, products.Lookups)
}

func TestCreateOrder_ValidationError(t *testing.T) {
	svc, _, _ := newTestService()

	in := validInput("")
	in.TotalAmount = 99
	_, _, err := svc.CreateOrder(context.Background(), "user-1", in)
	assert.ErrorIs(t, err, domain.ErrTotalMismatch)
}

func TestCreateOrder_RepositoryError(t *testing.T) {
	svc, orders, _ := newTestService()
	orders.CreateErr = errors.New("db down")

	_, _, err := svc.CreateOrder(context.Background(), "user-1", validInput(""))
	assert.Error(t, err)
}

func TestGetOrder_Access(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, _, err := svc.CreateOrder(ctx, "user-1", validInput(""))
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, "user-1", order.ID)
	assert.NoError(t, err)
	_, err = svc.GetOrder(ctx, "store-1", order.ID)
	assert.NoError(t, err)
	_, err = svc.GetOrder(ctx, "stranger", order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.GetOrder(ctx, "user-1", uuid.New())
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestUpdateStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, _, err := svc.CreateOrder(ctx, "user-1", validInput(""))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "user-1", false, order.ID, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateStatus(ctx, "store-2", false, order.ID, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateStatus(ctx, "store-1", false, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)

	_, err = svc.UpdateStatus(ctx, "store-1", false, order.ID, domain.OrderStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	ready, err := svc.UpdateStatus(ctx, "admin-1", true, order.ID, domain.OrderStatusReady)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReady, ready.Status)
}

func TestCancelOrder(t *testing.T) {
	svc, orders, _ := newTestService()
	ctx := context.Background()
	order, _, err := svc.CreateOrder(ctx, "user-1", validInput(""))
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, "store-1", order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	svc.now = func() time.Time { return testNow.Add(90 * time.Second) }
	cancelled, err := svc.CancelOrder(ctx, "user-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	stored, err := orders.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
}

func TestCancelOrder_WindowExpired(t *testing.T) {
	svc, orders, _ := newTestService()
	ctx := context.Background()
	order, _, err := svc.CreateOrder(ctx, "user-1", validInput(""))
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(domain.CustomerCancelWindow + time.Second) }
	_, err = svc.CancelOrder(ctx, "user-1", order.ID)
	assert.ErrorIs(t, err, domain.ErrCancelWindowExpired)
	assert.Zero(t, orders.Updates)
}

func TestCancelOrder_NotPending(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, _, err := svc.CreateOrder(ctx, "user-1", validInput(""))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, "store-1", false, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, "user-1", order.ID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
}

func TestListStoreOrders(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var placed []*domain.Order
	for i := range 3 {
		svc.now = func() time.Time { return testNow.Add(time.Duration(i) * time.Minute) }
		o, _, err := svc.CreateOrder(ctx, "user-1", validInput(""))
		require.NoError(t, err)
		placed = append(placed, o)
	}
	for _, next := range []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusReady, domain.OrderStatusCompleted} {
		_, err := svc.UpdateStatus(ctx, "store-1", false, placed[0].ID, next)
		require.NoError(t, err)
	}

	page, err := svc.ListStoreOrders(ctx, "store-1", StoreOrderQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, placed[2].ID, page.Orders[0].ID)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 2, Total: 3}, page.Pagination)
	assert.Equal(t, domain.StoreStats{Pending: 2, Completed: 1, TotalRevenue: 3}, page.Stats)

	pending, err := svc.ListStoreOrders(ctx, "store-1", StoreOrderQuery{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending.Orders, 2)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 1, Total: 2}, pending.Pagination)
	// stats ignore the status filter
	assert.Equal(t, 1, pending.Stats.Completed)

	beyond, err := svc.ListStoreOrders(ctx, "store-1", StoreOrderQuery{Page: 5})
	require.NoError(t, err)
	assert.NotNil(t, beyond.Orders)
	assert.Empty(t, beyond.Orders)
}

func TestListStoreOrders_StatsError(t *testing.T) {
	svc, orders, _ := newTestService()
	orders.StatsErr = errors.New("db down")

	_, err := svc.ListStoreOrders(context.Background(), "store-1", StoreOrderQuery{})
	assert.Error(t, err)
}

func TestExpireOverdue(t *testing.T) {
	svc, orders, _ := newTestService()
	ctx := context.Background()
	order, _, err := svc.CreateOrder(ctx, "user-1", validInput(""))
	require.NoError(t, err)

	n, err := svc.ExpireOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	svc.now = func() time.Time { return testNow.Add(25 * time.Hour) }
	n, err = svc.ExpireOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := orders.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusExpired, stored.Status)
}

func TestListNotifications(t *testing.T) {
	svc, _, notes := newTestService()
	notes.Saved = []*domain.Notification{
		{ID: uuid.New(), RecipientID: "user-1", Type: domain.NotificationOrderReady},
		{ID: uuid.New(), RecipientID: "user-1", Type: domain.NotificationOrderConfirmed, Read: true},
		{ID: uuid.New(), RecipientID: "store-1", Type: domain.NotificationNewOrder},
	}

	inbox, err := svc.ListNotifications(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 2)
	assert.Equal(t, domain.NotificationOrderReady, inbox.Notifications[0].Type)
	assert.Equal(t, 1, inbox.UnreadCount)

	empty, err := svc.ListNotifications(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty.Notifications)
}

func TestMarkNotificationsRead(t *testing.T) {
	svc, _, notes := newTestService()
	ctx := context.Background()
	mine := &domain.Notification{ID: uuid.New(), RecipientID: "user-1"}
	other := &domain.Notification{ID: uuid.New(), RecipientID: "user-2"}
	notes.Saved = []*domain.Notification{mine, other, {ID: uuid.New(), RecipientID: "user-1"}}

	_, err := svc.MarkNotificationRead(ctx, "user-1", other.ID)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
	assert.False(t, other.Read)

	n, err := svc.MarkNotificationRead(ctx, "user-1", mine.ID)
	require.NoError(t, err)
	assert.True(t, n.Read)

	count, err := svc.MarkAllNotificationsRead(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, other.Read)

	require.NoError(t, svc.DeleteNotification(ctx, "user-1", mine.ID))
	assert.ErrorIs(t, svc.DeleteNotification(ctx, "user-1", mine.ID), repository.ErrNotificationNotFound)
}

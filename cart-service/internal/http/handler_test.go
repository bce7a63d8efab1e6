package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecozbite/ecozbite/cart-service/internal/checkout"
	"github.com/ecozbite/ecozbite/cart-service/internal/domain"
	"github.com/ecozbite/ecozbite/cart-service/internal/products"
	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

var jwtSecret = []byte("handler-secret")

// memoryCarts applies the real domain rules over an in-memory map.
type memoryCarts struct {
	m     sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newMemoryCarts() *memoryCarts {
	return &memoryCarts{carts: map[string]*domain.Cart{}}
}

func (m *memoryCarts) get(sessionID string) *domain.Cart {
	c, ok := m.carts[sessionID]
	if !ok {
		c = domain.NewCart()
		m.carts[sessionID] = c
	}
	return c
}

func (m *memoryCarts) GetCart(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.get(sessionID), nil
}

func (m *memoryCarts) AddItem(_ context.Context, sessionID string, item domain.LineItem, quantity int) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.get(sessionID)
	if err := c.Add(item, quantity); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *memoryCarts) RemoveItem(_ context.Context, sessionID, productID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	c := m.get(sessionID)
	c.Remove(productID)
	return c, nil
}

func (m *memoryCarts) UpdateQuantity(_ context.Context, sessionID, productID string, quantity int) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	c := m.get(sessionID)
	c.UpdateQuantity(productID, quantity)
	return c, nil
}

func (m *memoryCarts) ClearCart(_ context.Context, sessionID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, sessionID)
	return nil
}

type mockProducts map[string]domain.LineItem

func (m mockProducts) Lookup(_ context.Context, id string) (domain.LineItem, error) {
	if id == "gone" {
		return domain.LineItem{}, products.ErrProductUnavailable
	}
	item, ok := m[id]
	if !ok {
		return domain.LineItem{}, products.ErrProductNotFound
	}
	return item, nil
}

type mockCheckout struct {
	confs    []checkout.OrderConfirmation
	err      error
	customer *auth.Identity
	bearer   string
	session  string
}

func (m *mockCheckout) Checkout(_ context.Context, sessionID string, customer *auth.Identity, bearer string) ([]checkout.OrderConfirmation, error) {
	m.session, m.customer, m.bearer = sessionID, customer, bearer
	if customer == nil {
		return nil, checkout.ErrNotAuthenticated
	}
	return m.confs, m.err
}

var catalog = mockProducts{
	"p1": {ID: "p1", StoreID: "s1", Name: "Milk", OriginalPrice: 60, DiscountedPrice: 30},
	"p2": {ID: "p2", StoreID: "s1", Name: "Bread", OriginalPrice: 40, DiscountedPrice: 20},
	"x1": {ID: "x1", StoreID: "s2", Name: "Apples", OriginalPrice: 50, DiscountedPrice: 25},
}

func newTestRouter(carts CartService, co Checkouter) http.Handler {
	return NewRouter(RouterConfig{
		Cart:      NewCartHandler(carts, catalog, 5*time.Second),
		Checkout:  NewCheckoutHandler(co, 5*time.Second),
		JWTSecret: jwtSecret,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func session(id string) map[string]string {
	return map[string]string{SessionHeader: id}
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartResponseDTO {
	t.Helper()
	var resp CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) respond.ErrorResponse {
	t.Helper()
	var resp respond.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetCart_Empty(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})

	rec := do(t, h, http.MethodGet, "/api/v1/cart", "", session("sess"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCart(t, rec)
	assert.Empty(t, resp.Items)
	assert.NotNil(t, resp.Items)
	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.StoreID)
}

func TestGetCart_MissingSession(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})

	rec := do(t, h, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_session", decodeError(t, rec).Code)
}

func TestGetCart_SessionFromToken(t *testing.T) {
	carts := newMemoryCarts()
	h := newTestRouter(carts, &mockCheckout{})
	token, err := auth.IssueToken(jwtSecret, auth.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p1"}`, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, rec.Code)

	_, ok := carts.carts["user:u1"]
	assert.True(t, ok)
}

func TestSession_TokenOverridesHeader(t *testing.T) {
	carts := newMemoryCarts()
	h := newTestRouter(carts, &mockCheckout{})

	rec := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p1"}`, session("victim-session"))
	require.Equal(t, http.StatusCreated, rec.Code)

	token, err := auth.IssueToken(jwtSecret, auth.Identity{UserID: "u2"}, time.Hour)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/v1/cart", "", map[string]string{
		SessionHeader:   "victim-session",
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)

	co := &mockCheckout{}
	h = newTestRouter(carts, co)
	do(t, h, http.MethodPost, "/api/v1/cart/checkout", "", map[string]string{
		SessionHeader:   "victim-session",
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, "user:u2", co.session)
}

func TestGetCart_ServiceError(t *testing.T) {
	carts := newMemoryCarts()
	carts.err = errors.New("mongo down")
	h := newTestRouter(carts, &mockCheckout{})

	rec := do(t, h, http.MethodGet, "/api/v1/cart", "", session("sess"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Code)
}

func TestAddItem_Success(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})

	rec := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p1","quantity":2}`, session("sess"))
	require.Equal(t, http.StatusCreated, rec.Code)
	do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p2"}`, session("sess"))

	rec = do(t, h, http.MethodGet, "/api/v1/cart", "", session("sess"))
	resp := decodeCart(t, rec)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "s1", resp.StoreID)
	assert.Equal(t, 80.0, resp.Total)
	assert.Equal(t, 160.0, resp.OriginalTotal)
	assert.Equal(t, 80.0, resp.Savings)
}

func TestAddItem_CrossStoreConflict(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})
	do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p1"}`, session("sess"))

	rec := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"x1"}`, session("sess"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cross_store_conflict", decodeError(t, rec).Code)

	resp := decodeCart(t, do(t, h, http.MethodGet, "/api/v1/cart", "", session("sess")))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "s1", resp.StoreID)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "invalid_request"},
		{"missing product", `{"quantity":1}`, http.StatusBadRequest, "invalid_product_id"},
		{"zero quantity", `{"product_id":"p1","quantity":0}`, http.StatusBadRequest, "invalid_quantity"},
		{"too many", `{"product_id":"p1","quantity":100}`, http.StatusBadRequest, "invalid_quantity"},
		{"unknown product", `{"product_id":"nope"}`, http.StatusNotFound, "product_not_found"},
		{"unavailable product", `{"product_id":"gone"}`, http.StatusConflict, "product_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(newMemoryCarts(), &mockCheckout{})
			rec := do(t, h, http.MethodPost, "/api/v1/cart/items", tt.body, session("sess"))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestUpdateQuantity(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})
	do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p1"}`, session("sess"))

	rec := do(t, h, http.MethodPut, "/api/v1/cart/items/p1", `{"quantity":7}`, session("sess"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decodeCart(t, rec).Count)

	rec = do(t, h, http.MethodPut, "/api/v1/cart/items/p1", `{"quantity":100}`, session("sess"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/v1/cart/items/p1", `{"quantity":0}`, session("sess"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestRemoveItemAndClear(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})
	do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p1"}`, session("sess"))
	do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"p2"}`, session("sess"))

	rec := do(t, h, http.MethodDelete, "/api/v1/cart/items/p1", "", session("sess"))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "p2", resp.Items[0].ID)

	rec = do(t, h, http.MethodDelete, "/api/v1/cart", "", session("sess"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeCart(t, rec).Count)

	// a cleared cart accepts another store
	rec = do(t, h, http.MethodPost, "/api/v1/cart/items", `{"product_id":"x1"}`, session("sess"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCheckout_RequiresLogin(t *testing.T) {
	co := &mockCheckout{}
	h := newTestRouter(newMemoryCarts(), co)

	rec := do(t, h, http.MethodPost, "/api/v1/cart/checkout", "", session("sess"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, co.customer)
}

func TestCheckout_InvalidToken(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})

	rec := do(t, h, http.MethodPost, "/api/v1/cart/checkout", "", map[string]string{
		SessionHeader:   "sess",
		"Authorization": "Bearer nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_Success(t *testing.T) {
	co := &mockCheckout{confs: []checkout.OrderConfirmation{{OrderID: "o1", OrderNumber: "EZ1", StoreID: "s1", TotalAmount: 160}}}
	h := newTestRouter(newMemoryCarts(), co)
	token, err := auth.IssueToken(jwtSecret, auth.Identity{UserID: "u1", Name: "Asha"}, time.Hour)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/api/v1/cart/checkout", "", map[string]string{
		SessionHeader:   "sess",
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CheckoutResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "EZ1", resp.Orders[0].OrderNumber)
	assert.Equal(t, "user:u1", co.session)
	assert.Equal(t, token, co.bearer)
	assert.Equal(t, "Asha", co.customer.Name)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"empty cart", checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart", "cart is empty"},
		{"submission failure", &checkout.SubmissionError{
			StoreID:   "s2",
			Message:   "Product Bread is out of stock",
			Submitted: []checkout.OrderConfirmation{{OrderNumber: "EZ1"}},
		}, http.StatusBadGateway, "order_submission_failed", "Product Bread is out of stock"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	token, err := auth.IssueToken(jwtSecret, auth.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(newMemoryCarts(), &mockCheckout{err: tt.err})
			rec := do(t, h, http.MethodPost, "/api/v1/cart/checkout", "", map[string]string{
				SessionHeader:   "sess",
				"Authorization": "Bearer " + token,
			})
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Error)
			if tt.code == "order_submission_failed" {
				assert.True(t, strings.Contains(body.Details, "EZ1"))
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := newTestRouter(newMemoryCarts(), &mockCheckout{})
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

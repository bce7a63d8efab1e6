package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/cart-service/internal/domain"
	"github.com/ecozbite/ecozbite/cart-service/internal/products"
	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

const (
	SessionHeader = "X-Session-ID"
	maxQuantity   = 99
)

type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	AddItem(ctx context.Context, sessionID string, item domain.LineItem, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
}

type ProductLookup interface {
	Lookup(ctx context.Context, productID string) (domain.LineItem, error)
}

type CartHandler struct {
	carts    CartService
	products ProductLookup
	timeout  time.Duration
}

func NewCartHandler(carts CartService, products ProductLookup, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items         []domain.LineItem `json:"items"`
	StoreID       string            `json:"store_id,omitempty"`
	Count         int               `json:"count"`
	Total         float64           `json:"total"`
	OriginalTotal float64           `json:"original_total"`
	Savings       float64           `json:"savings"`
}

func toCartResponse(c *domain.Cart) CartResponseDTO {
	items := c.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	store, _ := c.CurrentStoreID()
	return CartResponseDTO{
		Items:         items,
		StoreID:       store,
		Count:         c.Count(),
		Total:         c.Total(),
		OriginalTotal: c.OriginalTotal(),
		Savings:       c.Savings(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		handleCartError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCartResponse(cart))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.ProductID) == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 || quantity > maxQuantity {
		respond.Error(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	item, err := h.products.Lookup(ctx, req.ProductID)
	if err != nil {
		handleCartError(w, r, err)
		return
	}

	cart, err := h.carts.AddItem(ctx, sessionID, item, quantity)
	if err != nil {
		handleCartError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toCartResponse(cart))
}

// PUT /api/v1/cart/items/{product_id}
// A quantity of zero or less removes the item.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respond.Error(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, sessionID, productID, req.Quantity)
	if err != nil {
		handleCartError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCartResponse(cart))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	cart, err := h.carts.RemoveItem(ctx, sessionID, productID)
	if err != nil {
		handleCartError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCartResponse(cart))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, sessionID); err != nil {
		handleCartError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toCartResponse(domain.NewCart()))
}

// sessionFromRequest resolves the cart session. A logged-in caller always gets
// their own cart; X-Session-ID only identifies anonymous carts.
func sessionFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	if id, ok := auth.FromContext(r.Context()); ok {
		return "user:" + id.UserID, true
	}
	if s := strings.TrimSpace(r.Header.Get(SessionHeader)); s != "" {
		return s, true
	}
	respond.Error(w, http.StatusBadRequest, "missing_session", "X-Session-ID header is required")
	return "", false
}

func handleCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrCrossStoreConflict):
		respond.Error(w, http.StatusConflict, "cross_store_conflict",
			"You can only order from one store at a time. Clear your cart to add items from a different store.")
	case errors.Is(err, domain.ErrInvalidQuantity):
		respond.Error(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrInvalidProduct), errors.Is(err, domain.ErrInvalidPrice):
		respond.Error(w, http.StatusBadRequest, "invalid_product", err.Error())
	case errors.Is(err, products.ErrProductNotFound):
		respond.Error(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, products.ErrProductUnavailable):
		respond.Error(w, http.StatusConflict, "product_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respond.Error(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context()).Error("cart request failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

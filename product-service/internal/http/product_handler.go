package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/respond"
	"github.com/ecozbite/ecozbite/product-service/internal/domain"
	"github.com/ecozbite/ecozbite/product-service/internal/service"
)

type Catalog interface {
	ListProducts(ctx context.Context, q service.ListQuery) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ComparePrices(ctx context.Context, id string) (*service.PriceComparison, error)
	Reprice(ctx context.Context, actor auth.Identity, id string) (*service.RepriceResult, error)
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewProductHandler(catalog Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductListResponseDTO struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
}

// GET /api/v1/products?store_id=&category=&sort=price|expiry&include_unavailable=true
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	sortBy := q.Get("sort")
	if sortBy != service.SortNewest && sortBy != service.SortPrice && sortBy != service.SortExpiry {
		respond.Error(w, http.StatusBadRequest, "invalid_sort", "sort must be one of: price, expiry")
		return
	}
	includeUnavailable, _ := strconv.ParseBool(q.Get("include_unavailable"))

	products, err := h.catalog.ListProducts(ctx, service.ListQuery{
		StoreID:            q.Get("store_id"),
		Category:           q.Get("category"),
		Sort:               sortBy,
		IncludeUnavailable: includeUnavailable,
	})
	if err != nil {
		handleProductError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ProductListResponseDTO{Products: products, Total: len(products)})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleProductError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, p)
}

// GET /api/v1/products/{id}/price-comparison
func (h *ProductHandler) PriceComparison(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cmp, err := h.catalog.ComparePrices(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleProductError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, cmp)
}

// POST /api/v1/products/{id}/reprice
func (h *ProductHandler) Reprice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor, ok := auth.FromContext(ctx)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	res, err := h.catalog.Reprice(ctx, *actor, chi.URLParam(r, "id"))
	if err != nil {
		handleProductError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, res)
}

func handleProductError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		respond.Error(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, service.ErrForbidden):
		respond.Error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respond.Error(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context()).Error("product request failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

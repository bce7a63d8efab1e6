package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/respond"
	"github.com/ecozbite/ecozbite/product-service/internal/domain"
	"github.com/ecozbite/ecozbite/product-service/internal/service"
)

type WishlistService interface {
	Add(ctx context.Context, userID, productID string) (*domain.WishlistItem, error)
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) (*service.Wishlist, error)
	Count(ctx context.Context, userID string) (int, error)
	Contains(ctx context.Context, userID, productID string) (bool, error)
}

type WishlistHandler struct {
	wishlist WishlistService
	timeout  time.Duration
}

func NewWishlistHandler(wishlist WishlistService, timeout time.Duration) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist, timeout: timeout}
}

type WishlistCountResponseDTO struct {
	Count int `json:"count"`
}

type WishlistCheckResponseDTO struct {
	InWishlist bool `json:"in_wishlist"`
}

// GET /api/v1/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	list, err := h.wishlist.List(ctx, id.UserID)
	if err != nil {
		handleWishlistError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// GET /api/v1/wishlist/count
func (h *WishlistHandler) Count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	n, err := h.wishlist.Count(ctx, id.UserID)
	if err != nil {
		handleWishlistError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, WishlistCountResponseDTO{Count: n})
}

// POST /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	item, err := h.wishlist.Add(ctx, id.UserID, chi.URLParam(r, "productId"))
	if err != nil {
		handleWishlistError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, item)
}

// DELETE /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	if err := h.wishlist.Remove(ctx, id.UserID, chi.URLParam(r, "productId")); err != nil {
		handleWishlistError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, _ := auth.FromContext(r.Context())
	in, err := h.wishlist.Contains(ctx, id.UserID, chi.URLParam(r, "productId"))
	if err != nil {
		handleWishlistError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, WishlistCheckResponseDTO{InWishlist: in})
}

func handleWishlistError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		respond.Error(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrNotInWishlist):
		respond.Error(w, http.StatusNotFound, "not_in_wishlist", err.Error())
	case errors.Is(err, domain.ErrAlreadyInWishlist):
		respond.Error(w, http.StatusConflict, "already_in_wishlist", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respond.Error(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context()).Error("wishlist request failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/cart-service/internal/checkout"
	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

type Checkouter interface {
	Checkout(ctx context.Context, sessionID string, customer *auth.Identity, bearer string) ([]checkout.OrderConfirmation, error)
}

type CheckoutHandler struct {
	checkout Checkouter
	timeout  time.Duration
}

func NewCheckoutHandler(c Checkouter, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: c,
		timeout:  timeout,
	}
}

type CheckoutResponseDTO struct {
	Message string                       `json:"message"`
	Orders  []checkout.OrderConfirmation `json:"orders"`
}

// POST /api/v1/cart/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	// an anonymous caller reaches the aggregator with a nil identity and is
	// rejected there before any order is sent
	customer, _ := auth.FromContext(r.Context())
	confs, err := h.checkout.Checkout(ctx, sessionID, customer, auth.BearerToken(r.Context()))
	if err != nil {
		handleCheckoutError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, CheckoutResponseDTO{
		Message: "Orders placed successfully",
		Orders:  confs,
	})
}

func handleCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var subErr *checkout.SubmissionError

	switch {
	case errors.Is(err, checkout.ErrNotAuthenticated):
		respond.Error(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respond.Error(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.As(err, &subErr):
		placed := make([]string, 0, len(subErr.Submitted))
		for _, c := range subErr.Submitted {
			placed = append(placed, c.OrderNumber)
		}
		respond.JSON(w, http.StatusBadGateway, respond.ErrorResponse{
			Error:   subErr.Message,
			Code:    "order_submission_failed",
			Details: strings.Join(placed, ","),
		})
	default:
		logger.FromContext(r.Context()).Error("checkout failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

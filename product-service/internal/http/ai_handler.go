package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ecozbite/ecozbite/pkg/ai"
	"github.com/ecozbite/ecozbite/pkg/estimator"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

// AIService is the prediction client. Every call answers, falling back to
// local estimates when the remote service is unavailable.
type AIService interface {
	PredictExpiry(ctx context.Context, category string, purchaseDate time.Time) estimator.ExpiryEstimate
	RecommendDiscount(ctx context.Context, daysUntilExpiry int, originalPrice float64) estimator.DiscountRecommendation
	AnalyzeWaste(ctx context.Context, products []ai.WasteProduct) ai.WasteAnalysis
	CheckHealth(ctx context.Context) ai.Health
}

type AIHandler struct {
	ai      AIService
	timeout time.Duration
}

func NewAIHandler(svc AIService, timeout time.Duration) *AIHandler {
	return &AIHandler{
		ai:      svc,
		timeout: timeout,
	}
}

type PredictExpiryRequestDTO struct {
	Category     string `json:"category"`
	PurchaseDate string `json:"purchase_date"`
}

type RecommendDiscountRequestDTO struct {
	DaysUntilExpiry *int    `json:"days_until_expiry"`
	OriginalPrice   float64 `json:"original_price"`
}

type AnalyzeWasteRequestDTO struct {
	Products []ai.WasteProduct `json:"products"`
}

// POST /api/v1/ai/predict-expiry
func (h *AIHandler) PredictExpiry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PredictExpiryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_category", "category is required")
		return
	}

	var purchased time.Time
	if req.PurchaseDate != "" {
		t, err := parseDate(req.PurchaseDate)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_purchase_date", "purchase_date must be an ISO date")
			return
		}
		purchased = t
	}

	respond.JSON(w, http.StatusOK, h.ai.PredictExpiry(ctx, req.Category, purchased))
}

// POST /api/v1/ai/recommend-discount
func (h *AIHandler) RecommendDiscount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RecommendDiscountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.DaysUntilExpiry == nil {
		respond.Error(w, http.StatusBadRequest, "invalid_days", "days_until_expiry is required")
		return
	}
	if req.OriginalPrice < 0 {
		respond.Error(w, http.StatusBadRequest, "invalid_price", "original_price must not be negative")
		return
	}

	respond.JSON(w, http.StatusOK, h.ai.RecommendDiscount(ctx, *req.DaysUntilExpiry, req.OriginalPrice))
}

// POST /api/v1/ai/analyze-waste
func (h *AIHandler) AnalyzeWaste(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AnalyzeWasteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	respond.JSON(w, http.StatusOK, h.ai.AnalyzeWaste(ctx, req.Products))
}

// GET /api/v1/ai/health
func (h *AIHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	health := h.ai.CheckHealth(ctx)
	status := http.StatusOK
	if health.Status == ai.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	respond.JSON(w, status, health)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// Package ai is the client for the external expiry/discount prediction
// service. Every call degrades to a local answer when the service is down.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/pkg/circuitbreaker"
	"github.com/ecozbite/ecozbite/pkg/estimator"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	StatusUnhealthy = "unhealthy"

	WasteFallbackSuggestion = "AI service unavailable - manual analysis recommended"
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

func NewClient(baseURL string, log *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New(circuitbreaker.Settings{Name: "ai-service", Logger: log})
	}
	return c
}

// WasteProduct is one product submitted for waste analysis.
type WasteProduct struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Stock         int       `json:"stock"`
	OriginalPrice float64   `json:"original_price"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Status        string    `json:"status"`
}

type WasteAnalysis struct {
	TotalWasteValue float64            `json:"total_waste_value"`
	WasteByCategory map[string]float64 `json:"waste_by_category"`
	Suggestions     []string           `json:"suggestions"`
	AnalysisDate    time.Time          `json:"analysis_date"`
}

type Health struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type discountResponse struct {
	RecommendedDiscountPercentage int     `json:"recommended_discount_percentage"`
	OriginalPrice                 float64 `json:"original_price"`
	DiscountedPrice               float64 `json:"discounted_price"`
	DaysUntilExpiry               int     `json:"days_until_expiry"`
	Urgency                       string  `json:"urgency"`
}

// PredictExpiry asks the service for an expiry estimate. A zero purchaseDate means now.
func (c *Client) PredictExpiry(ctx context.Context, category string, purchaseDate time.Time) estimator.ExpiryEstimate {
	now := c.now()
	if purchaseDate.IsZero() {
		purchaseDate = now
	}

	req := map[string]any{
		"category":      category,
		"purchase_date": purchaseDate.UTC().Format(time.RFC3339Nano),
	}
	var out estimator.ExpiryEstimate
	if err := c.post(ctx, "/predict-expiry", req, &out); err != nil {
		c.log.Warn("predict expiry failed, using fallback", zap.String("category", category), zap.Error(err))
		return estimator.EstimateExpiry(category, purchaseDate, now)
	}
	return out
}

func (c *Client) RecommendDiscount(ctx context.Context, daysUntilExpiry int, originalPrice float64) estimator.DiscountRecommendation {
	req := map[string]any{
		"days_until_expiry": daysUntilExpiry,
		"original_price":    originalPrice,
	}
	var out discountResponse
	if err := c.post(ctx, "/recommend-discount", req, &out); err != nil {
		c.log.Warn("recommend discount failed, using fallback", zap.Int("days_until_expiry", daysUntilExpiry), zap.Error(err))
		return estimator.EstimateDiscount(daysUntilExpiry, originalPrice)
	}
	return estimator.DiscountRecommendation{
		DiscountPercentage: out.RecommendedDiscountPercentage,
		OriginalPrice:      out.OriginalPrice,
		DiscountedPrice:    out.DiscountedPrice,
		DaysUntilExpiry:    out.DaysUntilExpiry,
		Urgency:            out.Urgency,
	}
}

func (c *Client) AnalyzeWaste(ctx context.Context, products []WasteProduct) WasteAnalysis {
	var out WasteAnalysis
	if err := c.post(ctx, "/analyze-waste", map[string]any{"products": products}, &out); err != nil {
		c.log.Warn("analyze waste failed, using fallback", zap.Int("products", len(products)), zap.Error(err))
		return WasteAnalysis{
			TotalWasteValue: 0,
			WasteByCategory: map[string]float64{},
			Suggestions:     []string{WasteFallbackSuggestion},
			AnalysisDate:    c.now().UTC(),
		}
	}
	return out
}

func (c *Client) CheckHealth(ctx context.Context) Health {
	var out Health
	err := c.breaker.Execute(func() error {
		return c.do(ctx, http.MethodGet, "/health", nil, &out)
	})
	if err != nil {
		c.log.Warn("ai health check failed", zap.Error(err))
		return Health{Status: StatusUnhealthy, Error: err.Error()}
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.breaker.Execute(func() error {
		return c.do(ctx, http.MethodPost, path, body, out)
	})
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecozbite/ecozbite/pkg/circuitbreaker"
	"github.com/ecozbite/ecozbite/pkg/estimator"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestClient(url string) *Client {
	return NewClient(url, nil, WithClock(func() time.Time { return fixedNow }))
}

func TestRecommendDiscount_UsesService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recommend-discount", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["days_until_expiry"])
		assert.EqualValues(t, 40, body["original_price"])

		json.NewEncoder(w).Encode(map[string]any{
			"recommended_discount_percentage": 35,
			"original_price":                  40,
			"discounted_price":                26,
			"days_until_expiry":               2,
			"urgency":                         "medium",
		})
	}))
	defer srv.Close()

	got := newTestClient(srv.URL).RecommendDiscount(t.Context(), 2, 40)
	assert.Equal(t, 35, got.DiscountPercentage)
	assert.Equal(t, 26.0, got.DiscountedPrice)
	assert.Equal(t, "medium", got.Urgency)
}

func TestRecommendDiscount_FallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	got := newTestClient(srv.URL).RecommendDiscount(t.Context(), 1, 100)
	assert.Equal(t, estimator.EstimateDiscount(1, 100), got)
}

func TestPredictExpiry_FallsBackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	got := newTestClient(url).PredictExpiry(t.Context(), "dairy", time.Time{})
	assert.Equal(t, 7, got.DaysUntilExpiry)
	assert.Equal(t, estimator.StatusFresh, got.Status)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), got.ExpiryDate)
}

func TestPredictExpiry_FallsBackOnBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	got := newTestClient(srv.URL).PredictExpiry(t.Context(), "meat", fixedNow)
	assert.Equal(t, 3, got.EstimatedExpiryDays)
}

func TestAnalyzeWaste_Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	got := newTestClient(srv.URL).AnalyzeWaste(t.Context(), []WasteProduct{{ID: "p1", Category: "dairy"}})
	assert.Zero(t, got.TotalWasteValue)
	assert.Empty(t, got.WasteByCategory)
	assert.Equal(t, []string{WasteFallbackSuggestion}, got.Suggestions)
	assert.Equal(t, fixedNow, got.AnalysisDate)
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	assert.Equal(t, Health{Status: "healthy"}, newTestClient(srv.URL).CheckHealth(t.Context()))
}

func TestCheckHealth_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	got := newTestClient(srv.URL).CheckHealth(t.Context())
	assert.Equal(t, "unhealthy", got.Status)
	assert.Contains(t, got.Error, "502")
}

func TestOpenBreakerSkipsService(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := circuitbreaker.New(circuitbreaker.Settings{Name: "ai-test", ConsecutiveFailures: 1, OpenTimeout: time.Minute})
	c := NewClient(srv.URL, nil, WithBreaker(b))

	c.RecommendDiscount(t.Context(), 3, 10)
	got := c.RecommendDiscount(t.Context(), 3, 10)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 20, got.DiscountPercentage)
	assert.Equal(t, 8.0, got.DiscountedPrice)
}

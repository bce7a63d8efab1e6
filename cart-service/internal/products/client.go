// Package products looks up catalog entries so the cart never trusts
// client-supplied prices.
package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ecozbite/ecozbite/cart-service/internal/domain"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
)

type product struct {
	ID              string  `json:"id"`
	StoreID         string  `json:"store_id"`
	StoreName       string  `json:"store_name"`
	Name            string  `json:"name"`
	Unit            string  `json:"unit"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	Stock           int     `json:"stock"`
	Status          string  `json:"status"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Lookup returns the product as a cart line item with quantity zero.
// Sold-out and expired products are rejected with ErrProductUnavailable.
func (c *Client) Lookup(ctx context.Context, productID string) (domain.LineItem, error) {
	endpoint := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("build product request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.LineItem{}, ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		return domain.LineItem{}, fmt.Errorf("get product %s: unexpected status %d", productID, resp.StatusCode)
	}

	var p product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return domain.LineItem{}, fmt.Errorf("decode product: %w", err)
	}
	if p.Stock <= 0 || p.Status == "sold_out" || p.Status == "expired" {
		return domain.LineItem{}, fmt.Errorf("%w: %s is %s", ErrProductUnavailable, p.Name, p.Status)
	}

	return domain.LineItem{
		ID:              p.ID,
		StoreID:         p.StoreID,
		StoreName:       p.StoreName,
		Name:            p.Name,
		Unit:            p.Unit,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.DiscountedPrice,
	}, nil
}

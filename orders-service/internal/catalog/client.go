// Package catalog reads authoritative product data from product-service when
// an order is placed.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ecozbite/ecozbite/pkg/circuitbreaker"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID              string  `json:"id"`
	StoreID         string  `json:"store_id"`
	Name            string  `json:"name"`
	Unit            string  `json:"unit"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	Stock           int     `json:"stock"`
	Status          string  `json:"status"`
}

// Price is what a customer pays per unit. Products without a discount sell at
// their original price.
func (p Product) Price() float64 {
	if p.DiscountedPrice > 0 {
		return p.DiscountedPrice
	}
	return p.OriginalPrice
}

func (p Product) Orderable() bool {
	return p.Status != "sold_out" && p.Status != "expired"
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// NewClient returns a product-service client. A nil breaker disables circuit
// breaking.
func NewClient(baseURL string, httpClient *http.Client, breaker *circuitbreaker.Breaker) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		breaker: breaker,
	}
}

func (c *Client) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	var notFound bool
	call := func() error {
		var err error
		p, notFound, err = c.fetch(ctx, id)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	if notFound {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, nil
}

// fetch reports a 404 through notFound so that unknown ids do not count
// against the breaker.
func (c *Client) fetch(ctx context.Context, id string) (Product, bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Product{}, false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Product{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Product{}, true, nil
	default:
		return Product{}, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var p Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Product{}, false, fmt.Errorf("decode product: %w", err)
	}
	return p, false, nil
}

package products

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/products/p1":
			w.Write([]byte(`{"id":"p1","store_id":"s1","store_name":"Green Grocer","name":"Milk","unit":"1L","original_price":60,"discounted_price":30,"stock":4,"status":"expiring"}`))
		case "/api/v1/products/p2":
			w.Write([]byte(`{"id":"p2","store_id":"s1","name":"Bread","stock":0,"status":"sold_out"}`))
		case "/api/v1/products/p3":
			w.Write([]byte(`{"id":"p3","store_id":"s1","name":"Yogurt","stock":3,"status":"expired"}`))
		case "/api/v1/products/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	ctx := context.Background()

	item, err := c.Lookup(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "s1", item.StoreID)
	assert.Equal(t, "Green Grocer", item.StoreName)
	assert.Equal(t, 30.0, item.DiscountedPrice)
	assert.Equal(t, 60.0, item.OriginalPrice)
	assert.Zero(t, item.Quantity)

	_, err = c.Lookup(ctx, "p2")
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = c.Lookup(ctx, "p3")
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = c.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = c.Lookup(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProductNotFound)
}

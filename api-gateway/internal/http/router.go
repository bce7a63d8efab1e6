package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/metrics"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

type RouterConfig struct {
	Cart         Upstream
	Orders       Upstream
	Products     Upstream
	Transport    http.RoundTripper
	Logger       *zap.Logger
	Metrics      *metrics.ServerMetrics
	MetricsRoute http.Handler
	MaxBodyBytes int64
	RouteTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(EchoRequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	if cfg.RouteTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RouteTimeout))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsRoute != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsRoute)
	}

	cart := NewProxy(cfg.Cart, cfg.Transport, cfg.Logger)
	orders := NewProxy(cfg.Orders, cfg.Transport, cfg.Logger)
	products := NewProxy(cfg.Products, cfg.Transport, cfg.Logger)

	r.Mount("/api/v1/cart", cart)
	r.Mount("/api/orders", orders)
	r.Mount("/api/notifications", orders)
	r.Mount("/api/v1/products", products)
	r.Mount("/api/v1/ai", products)
	r.Mount("/api/v1/wishlist", products)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "route_not_found", "no upstream serves "+r.URL.Path)
	})

	return r
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/pkg/auth"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/metrics"
	"github.com/ecozbite/ecozbite/pkg/respond"
)

type RouterConfig struct {
	Cart         *CartHandler
	Checkout     *CheckoutHandler
	JWTSecret    []byte
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

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.JWTSecret))

		r.Get("/", cfg.Cart.GetCart)
		r.Delete("/", cfg.Cart.ClearCart)
		r.Post("/items", cfg.Cart.AddItem)
		r.Put("/items/{product_id}", cfg.Cart.UpdateQuantity)
		r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
		r.Post("/checkout", cfg.Checkout.Checkout)
	})

	return r
}

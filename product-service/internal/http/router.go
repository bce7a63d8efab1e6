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
	Products     *ProductHandler
	AI           *AIHandler
	Wishlist     *WishlistHandler
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

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", cfg.Products.ListProducts)
		r.Get("/{id}", cfg.Products.GetProduct)
		r.Get("/{id}/price-comparison", cfg.Products.PriceComparison)
		r.With(auth.Authenticate(cfg.JWTSecret), auth.RequireRole(auth.RoleStoreOwner, auth.RoleAdmin)).
			Post("/{id}/reprice", cfg.Products.Reprice)
	})

	r.Route("/api/v1/wishlist", func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.JWTSecret), auth.RequireIdentity)
		r.Get("/", cfg.Wishlist.List)
		r.Get("/count", cfg.Wishlist.Count)
		r.Get("/items/{productId}", cfg.Wishlist.Check)
		r.Post("/items/{productId}", cfg.Wishlist.Add)
		r.Delete("/items/{productId}", cfg.Wishlist.Remove)
	})

	r.Route("/api/v1/ai", func(r chi.Router) {
		r.Post("/predict-expiry", cfg.AI.PredictExpiry)
		r.Post("/recommend-discount", cfg.AI.RecommendDiscount)
		r.Post("/analyze-waste", cfg.AI.AnalyzeWaste)
		r.Get("/health", cfg.AI.Health)
	})

	return r
}

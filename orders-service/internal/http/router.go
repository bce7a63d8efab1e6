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
	Orders       *OrderHandler
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

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.JWTSecret))
		r.Use(auth.RequireIdentity)

		r.Post("/api/orders", cfg.Orders.CreateOrder)
		r.Get("/api/orders/my-orders", cfg.Orders.ListMyOrders)
		r.With(auth.RequireRole(auth.RoleStoreOwner)).Get("/api/orders/store", cfg.Orders.ListStoreOrders)
		r.Get("/api/orders/{id}", cfg.Orders.GetOrder)
		r.Patch("/api/orders/{id}/cancel", cfg.Orders.CancelOrder)
		r.With(auth.RequireRole(auth.RoleStoreOwner, auth.RoleAdmin)).
			Patch("/api/orders/{id}/status", cfg.Orders.UpdateStatus)

		r.Get("/api/notifications", cfg.Orders.ListNotifications)
		r.Patch("/api/notifications/mark-all-read", cfg.Orders.MarkAllNotificationsRead)
		r.Patch("/api/notifications/{id}/read", cfg.Orders.MarkNotificationRead)
		r.Delete("/api/notifications/{id}", cfg.Orders.DeleteNotification)
	})

	return r
}

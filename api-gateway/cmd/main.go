package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	h "github.com/ecozbite/ecozbite/api-gateway/internal/http"
	"github.com/ecozbite/ecozbite/pkg/config"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/metrics"
)

type Config struct {
	HTTPPort           string
	CartServiceURL     string
	OrdersServiceURL   string
	ProductServiceURL  string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:           config.GetEnv("HTTP_PORT", "8080"),
		CartServiceURL:     config.GetEnv("CART_SERVICE_URL", "http://localhost:8082"),
		OrdersServiceURL:   config.GetEnv("ORDERS_SERVICE_URL", "http://localhost:8083"),
		ProductServiceURL:  config.GetEnv("PRODUCT_SERVICE_URL", "http://localhost:8081"),
		RequestTimeout:     config.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    config.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
	}
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := loadConfig()

	log, err := logger.New("api-gateway")
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	cart, err := h.ParseUpstream("cart-service", cfg.CartServiceURL)
	if err != nil {
		log.Fatal("invalid upstream", zap.Error(err))
	}
	orders, err := h.ParseUpstream("orders-service", cfg.OrdersServiceURL)
	if err != nil {
		log.Fatal("invalid upstream", zap.Error(err))
	}
	products, err := h.ParseUpstream("product-service", cfg.ProductServiceURL)
	if err != nil {
		log.Fatal("invalid upstream", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := h.NewRouter(h.RouterConfig{
		Cart:         cart,
		Orders:       orders,
		Products:     products,
		Transport:    otelhttp.NewTransport(http.DefaultTransport),
		Logger:       log,
		Metrics:      metrics.NewServerMetrics(reg, "api-gateway"),
		MetricsRoute: metrics.Handler(reg),
		MaxBodyBytes: cfg.MaxRequestBodySize,
		RouteTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "api-gateway"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api gateway listening",
			zap.String("port", cfg.HTTPPort),
			zap.String("cart", cfg.CartServiceURL),
			zap.String("orders", cfg.OrdersServiceURL),
			zap.String("products", cfg.ProductServiceURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down api gateway")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("api gateway stopped")
}

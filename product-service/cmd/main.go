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

	"github.com/ecozbite/ecozbite/pkg/ai"
	"github.com/ecozbite/ecozbite/pkg/circuitbreaker"
	"github.com/ecozbite/ecozbite/pkg/config"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/metrics"
	producthttp "github.com/ecozbite/ecozbite/product-service/internal/http"
	"github.com/ecozbite/ecozbite/product-service/internal/repository"
	"github.com/ecozbite/ecozbite/product-service/internal/service"
)

type Config struct {
	HTTPPort        string
	SQLitePath      string
	MigrationsPath  string
	AIServiceURL    string
	AITimeout       time.Duration
	AIBreakerTrips  int
	JWTSecret       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        config.GetEnv("HTTP_PORT", "8081"),
		SQLitePath:      config.GetEnv("SQLITE_PATH", "./internal/repository/products.db"),
		MigrationsPath:  config.GetEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		AIServiceURL:    config.GetEnv("AI_SERVICE_URL", ai.DefaultBaseURL),
		AITimeout:       config.GetDuration("AI_TIMEOUT", ai.DefaultTimeout),
		AIBreakerTrips:  config.GetInt("AI_BREAKER_FAILURES", 5),
		JWTSecret:       config.GetEnv("JWT_SECRET", "dev-secret"),
		RequestTimeout:  config.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: config.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := loadConfig()

	log, err := logger.New("product-service")
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	repo, err := repository.NewRepository(cfg.SQLitePath)
	if err != nil {
		log.Fatal("failed to open product database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("migrations completed", zap.String("path", cfg.SQLitePath))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	aiClient := ai.NewClient(cfg.AIServiceURL, log.Named("ai"),
		ai.WithHTTPClient(&http.Client{
			Timeout:   cfg.AITimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
		ai.WithBreaker(circuitbreaker.New(circuitbreaker.Settings{
			Name:                "ai-service",
			ConsecutiveFailures: uint32(cfg.AIBreakerTrips),
			Logger:              log,
		})),
	)
	catalog := service.NewCatalogService(repo, aiClient, log)
	wishlist := service.NewWishlistService(repo, catalog, log)

	// AI calls may take up to their own timeout before falling back
	aiRouteTimeout := max(cfg.RequestTimeout, cfg.AITimeout+5*time.Second)

	router := producthttp.NewRouter(producthttp.RouterConfig{
		Products:     producthttp.NewProductHandler(catalog, aiRouteTimeout),
		AI:           producthttp.NewAIHandler(aiClient, aiRouteTimeout),
		Wishlist:     producthttp.NewWishlistHandler(wishlist, cfg.RequestTimeout),
		JWTSecret:    []byte(cfg.JWTSecret),
		Logger:       log,
		Metrics:      metrics.NewServerMetrics(reg, "product-service"),
		MetricsRoute: metrics.Handler(reg),
		MaxBodyBytes: 1 << 20,
		RouteTimeout: aiRouteTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "product-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: aiRouteTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("product service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down product service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("product service stopped")
}

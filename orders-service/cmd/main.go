package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/orders-service/internal/catalog"
	"github.com/ecozbite/ecozbite/orders-service/internal/consumer"
	ordershttp "github.com/ecozbite/ecozbite/orders-service/internal/http"
	"github.com/ecozbite/ecozbite/orders-service/internal/publisher"
	"github.com/ecozbite/ecozbite/orders-service/internal/repository"
	"github.com/ecozbite/ecozbite/orders-service/internal/service"
	"github.com/ecozbite/ecozbite/pkg/circuitbreaker"
	"github.com/ecozbite/ecozbite/pkg/config"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/metrics"
)

type Config struct {
	HTTPPort          string
	KafkaBrokers      []string
	DB                repository.Credentials
	JWTSecret         string
	ProductServiceURL string
	CatalogTimeout    time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:     config.GetEnv("HTTP_PORT", "8083"),
		KafkaBrokers: strings.Split(config.GetEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		DB: repository.Credentials{
			Host:              config.GetEnv("DB_HOST", "localhost"),
			Port:              config.GetInt("DB_PORT", 5432),
			User:              config.GetEnv("DB_USER", "postgres"),
			Password:          config.GetEnv("DB_PASSWORD", "postgres"),
			DBName:            config.GetEnv("DB_NAME", "orders"),
			MigrationsDirPath: config.GetEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		JWTSecret:         config.GetEnv("JWT_SECRET", "dev-secret"),
		ProductServiceURL: config.GetEnv("PRODUCT_SERVICE_URL", "http://localhost:8081"),
		CatalogTimeout:    config.GetDuration("CATALOG_TIMEOUT", 3*time.Second),
		RequestTimeout:    config.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:   config.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := loadConfig()

	log, err := logger.New("orders-service")
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	repo, err := repository.NewRepository(&cfg.DB)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(&cfg.DB); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("connected to postgres", zap.String("db", cfg.DB.DBName))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	products := catalog.NewClient(cfg.ProductServiceURL,
		&http.Client{Timeout: cfg.CatalogTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		circuitbreaker.New(circuitbreaker.Settings{Name: "product-service", Logger: log}),
	)
	orderService := service.NewOrderService(repo, repo, products, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := publisher.NewOutboxPoller(repo, orderService, log.Named("outbox"), cfg.KafkaBrokers...)
	notifications := consumer.NewConsumer(repo, log.Named("notifications"), cfg.KafkaBrokers...)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		notifications.Run(ctx)
	}()

	router := ordershttp.NewRouter(ordershttp.RouterConfig{
		Orders:       ordershttp.NewOrderHandler(orderService, cfg.RequestTimeout),
		JWTSecret:    []byte(cfg.JWTSecret),
		Logger:       log,
		Metrics:      metrics.NewServerMetrics(reg, "orders-service"),
		MetricsRoute: metrics.Handler(reg),
		MaxBodyBytes: 1 << 20,
		RouteTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "orders-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("orders service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down orders service")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("background workers did not stop in time")
	}

	notifications.Close()
	if err := poller.Close(); err != nil {
		log.Warn("failed to close kafka writer", zap.Error(err))
	}
	log.Info("orders service stopped")
}

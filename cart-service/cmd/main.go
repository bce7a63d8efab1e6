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
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	c "github.com/ecozbite/ecozbite/cart-service/internal/cache"
	"github.com/ecozbite/ecozbite/cart-service/internal/checkout"
	carthttp "github.com/ecozbite/ecozbite/cart-service/internal/http"
	"github.com/ecozbite/ecozbite/cart-service/internal/orders"
	"github.com/ecozbite/ecozbite/cart-service/internal/products"
	"github.com/ecozbite/ecozbite/cart-service/internal/repository"
	s "github.com/ecozbite/ecozbite/cart-service/internal/service"
	"github.com/ecozbite/ecozbite/pkg/config"
	"github.com/ecozbite/ecozbite/pkg/logger"
	"github.com/ecozbite/ecozbite/pkg/metrics"
)

type Config struct {
	HTTPPort          string
	MongoURI          string
	MongoDBName       string
	RedisAddr         string
	RedisPassword     string
	OrdersServiceURL  string
	ProductServiceURL string
	JWTSecret         string
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:          config.GetEnv("HTTP_PORT", "8082"),
		MongoURI:          config.GetEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:       config.GetEnv("MONGO_DB_NAME", "cartdb"),
		RedisAddr:         config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     config.GetEnv("REDIS_PASSWORD", ""),
		OrdersServiceURL:  config.GetEnv("ORDERS_SERVICE_URL", "http://localhost:8083"),
		ProductServiceURL: config.GetEnv("PRODUCT_SERVICE_URL", "http://localhost:8081"),
		JWTSecret:         config.GetEnv("JWT_SECRET", "dev-secret"),
		RequestTimeout:    config.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:   config.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := loadConfig()

	log, err := logger.New("cart-service")
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	slot := repository.NewMongoSlot(mongoDB)
	if err := slot.CreateIndexes(ctx); err != nil {
		log.Fatal("failed to create cart indexes", zap.Error(err))
	}
	log.Info("connected to MongoDB", zap.String("db", cfg.MongoDBName))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cartService := s.NewCartService(slot, c.NewRedisCache(redisClient), log)
	ordersClient := orders.NewClient(cfg.OrdersServiceURL, cfg.RequestTimeout)
	productsClient := products.NewClient(cfg.ProductServiceURL, cfg.RequestTimeout)
	aggregator := checkout.NewAggregator(cartService, ordersClient, log, reg)

	router := carthttp.NewRouter(carthttp.RouterConfig{
		Cart:         carthttp.NewCartHandler(cartService, productsClient, cfg.RequestTimeout),
		Checkout:     carthttp.NewCheckoutHandler(aggregator, cfg.RequestTimeout),
		JWTSecret:    []byte(cfg.JWTSecret),
		Logger:       log,
		Metrics:      metrics.NewServerMetrics(reg, "cart-service"),
		MetricsRoute: metrics.Handler(reg),
		MaxBodyBytes: 1 << 20,
		RouteTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "cart-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cart service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Warn("mongo disconnect failed", zap.Error(err))
	}
	log.Info("cart service stopped")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"furniture-store/config"
	"furniture-store/internal/api"
	"furniture-store/internal/auth"
	"furniture-store/internal/broker"
	"furniture-store/internal/cache"
	"furniture-store/internal/redisclient"
	"furniture-store/internal/service"
	"furniture-store/internal/store"
	"furniture-store/internal/util"
	"furniture-store/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting furniture store",
		zap.String("env", cfg.Server.Env),
		zap.String("store_driver", cfg.Database.Driver))

	tp, err := util.InitTracer("furniture-store", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	var (
		repo   service.Repository
		checks []api.ReadinessCheck
	)
	switch cfg.Database.Driver {
	case "memory":
		repo = store.NewMemoryStore()
		logger.Warn("Using in-memory store, data is lost on restart")
	case "postgres":
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database connected")

		repo = db
		checks = append(checks, api.ReadinessCheck{Name: "database", Check: db.Ping})
	default:
		logger.Fatal("Unknown store driver", zap.String("driver", cfg.Database.Driver))
	}

	var (
		products service.ProductRepository = repo
		locker   service.Locker
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		products = cache.NewCachedProductRepository(repo, redisClient, cfg.Business.ProductCacheTTL)
		locker = redisClient
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: redisClient.Ping})
	} else {
		logger.Warn("Redis not configured, product cache and checkout locks disabled")
	}

	var publisher service.EventPublisher = broker.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized")
	} else {
		logger.Warn("Kafka not configured, order events are not published")
	}

	assigner := service.NewAssigner(repo, publisher)
	orderService := service.NewOrderService(repo, repo, products, repo, assigner, publisher, locker,
		service.OrderOptions{
			StockGuard:      cfg.Business.StockGuard,
			CheckoutLockTTL: cfg.Business.CheckoutLockTTL,
		})
	historyService := service.NewHistoryService(repo, orderService)
	services := api.Services{
		Orders:   orderService,
		Carts:    service.NewCartService(repo, products),
		Products: service.NewProductService(products),
		Users:    service.NewUserService(repo, repo, auth.NewBcryptHasher(), cfg.Auth.AdminSignupCode),
		History:  historyService,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var historyWorker *worker.HistoryWorker
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		historyWorker = worker.NewHistoryWorker(consumer, historyService)
		go func() {
			if err := historyWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("History worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	sessions := auth.NewSessionProvider([]byte(cfg.Auth.SessionSecret), cfg.Auth.SecureCookies)
	handler := api.NewHandler(services, sessions, checks...)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if historyWorker != nil {
		if err := historyWorker.Stop(); err != nil {
			logger.Error("Error stopping history worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/sellersync/backend/internal/application/sync"
	"github.com/sellersync/backend/internal/infrastructure/auth"
	"github.com/sellersync/backend/internal/infrastructure/cache"
	"github.com/sellersync/backend/internal/infrastructure/config"
	"github.com/sellersync/backend/internal/infrastructure/logger"
	"github.com/sellersync/backend/internal/infrastructure/mercadolibre"
	"github.com/sellersync/backend/internal/infrastructure/persistence"
	"github.com/sellersync/backend/internal/infrastructure/scheduler"
	"github.com/sellersync/backend/internal/infrastructure/telemetry"
	"github.com/sellersync/backend/internal/interfaces/http/handler"
	"github.com/sellersync/backend/internal/interfaces/http/middleware"
	"github.com/sellersync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting SellerSync Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection
	var db *persistence.Database
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		db, err = persistence.NewTracedDatabase(&cfg.Database, gormLog)
	} else {
		db, err = persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	}
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	saleLineRepo := persistence.NewGormSaleLineRepository(db.DB)
	sessionStore := persistence.NewGormSessionStore(db.DB)

	// Item SKU cache: Redis when enabled, in-process fallback otherwise
	var skuCache syncapp.ItemSKUCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisItemSKUCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.ItemSKUTTL, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		skuCache = redisCache
		log.Info("Item SKU cache backed by Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		skuCache = cache.NewInMemoryItemSKUCache(cfg.Redis.ItemSKUTTL)
	}

	// MercadoLibre client serves as both order source and credential provider
	meliClient, err := mercadolibre.NewClient(&mercadolibre.Config{
		ClientID:     cfg.Meli.ClientID,
		ClientSecret: cfg.Meli.ClientSecret,
		RedirectURI:  cfg.Meli.RedirectURI,
		APIBaseURL:   cfg.Meli.APIBaseURL,
		AuthBaseURL:  cfg.Meli.AuthBaseURL,
		Timeout:      cfg.Meli.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create MercadoLibre client", zap.Error(err))
	}

	// Reconciliation engine
	engine := syncapp.NewService(syncapp.Config{
		PageSize:         cfg.Meli.PageSize,
		MaxItemLookups:   cfg.Meli.MaxItemLookups,
		InsertUnlinked:   cfg.Sync.InsertUnlinked,
		DefaultMaxOrders: cfg.Sync.DefaultMaxOrders,
	}, sessionStore, meliClient, meliClient, productRepo, saleLineRepo, skuCache, log)

	history := syncapp.NewRunHistory(cfg.Sync.HistorySize)

	// Background sync scheduler (if enabled)
	if cfg.Scheduler.Enabled {
		schedulerConfig := scheduler.DefaultConfig()
		schedulerConfig.Interval = cfg.Scheduler.Interval
		schedulerConfig.RunTimeout = cfg.Scheduler.RunTimeout
		syncScheduler, err := scheduler.NewSyncScheduler(schedulerConfig, engine, history, log)
		if err != nil {
			log.Fatal("Invalid scheduler configuration", zap.Error(err))
		}
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			if err := syncScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
		log.Info("Sync scheduler started",
			zap.Duration("interval", cfg.Scheduler.Interval),
			zap.Duration("run_timeout", cfg.Scheduler.RunTimeout),
		)
	}

	// OAuth state signing service
	stateService := auth.NewStateService(cfg.JWT)

	// Setup validation
	middleware.SetupValidator()

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}

	ginEngine := router.NewEngine(router.EngineConfig{
		Mode:           mode,
		ServiceName:    cfg.Telemetry.ServiceName,
		AllowedOrigins: cfg.HTTP.CORSAllowOrigins,
		Tracing:        cfg.Telemetry.Enabled,
	}, log)

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	r := router.NewRouter(ginEngine,
		router.WithAPIVersion("v1"),
		router.WithHealthPinger(db),
	)
	r.Register(handler.NewSyncHandler(engine, history, log))
	r.Register(handler.NewAuthHandler(sessionStore, meliClient, meliClient, stateService, log))
	r.Register(handler.NewSystemHandler())
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

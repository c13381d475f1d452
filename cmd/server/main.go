package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/partfit/internal/api/handlers"
	"github.com/langchou/partfit/internal/api/middleware"
	"github.com/langchou/partfit/internal/api/suggester"
	"github.com/langchou/partfit/internal/api/vindecoder"
	"github.com/langchou/partfit/internal/config"
	"github.com/langchou/partfit/internal/events"
	"github.com/langchou/partfit/internal/fitment"
	"github.com/langchou/partfit/internal/models"
	"github.com/langchou/partfit/internal/observability"
	"github.com/langchou/partfit/internal/repository"
	"github.com/langchou/partfit/internal/service"
	"github.com/langchou/partfit/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Partfit", zap.String("port", cfg.ServerPort))

	// 链路追踪
	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName: "partfit",
		SampleRatio: cfg.TraceSampleRatio,
		Stdout:      cfg.TraceStdout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	vehicleRepo := repository.NewVehicleRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	// VIN 解码缓存（可选）
	var vinCache vindecoder.Cache
	if cfg.RedisAddr != "" {
		rdb, err := repository.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis unavailable, VIN results will not be cached", zap.Error(err))
		} else {
			defer rdb.Close()
			vinCache = vindecoder.NewRedisCache(rdb)
		}
	}
	decoder := vindecoder.NewClient(vindecoder.Config{
		BaseURL:    cfg.VINDecoderURL,
		CacheTTL:   cfg.VINCacheTTL,
		RatePerSec: cfg.VINRatePerSec,
		Timeout:    cfg.VINDecodeTimeout,
	}, vinCache, logger)

	// AI 兼容车型建议（可选）
	var sg service.Suggester
	if client := suggester.NewClient(cfg.SuggesterURL, cfg.SuggesterAPIKey, cfg.SuggesterModel, cfg.SuggestTimeout, logger); client.IsConfigured() {
		sg = client
	} else {
		logger.Info("Compatibility suggester disabled, SUGGESTER_API_KEY not set")
	}

	// 事件总线
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = events.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("NATS unavailable, dispatching events in process", zap.Error(err))
			nc = nil
		}
	}
	bus := events.NewBus(nc, logger)
	defer bus.Close()

	var assets fitment.AssetLookup
	if cfg.AssetBaseURL != "" {
		assets = fitment.URLAssets{BaseURL: cfg.AssetBaseURL}
	}

	// 创建服务
	catalog := service.NewCatalogService(logger, vehicleRepo, productRepo, sg, assets, bus, cfg.SuggestTimeout)
	if err := catalog.Load(ctx); err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	go func() {
		if err := catalog.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Vehicle change subscription stopped", zap.Error(err))
		}
	}()

	garage := service.NewGarageService(logger, profileRepo, catalog)
	orders := service.NewOrderService(logger, orderRepo, catalog, bus)
	wizards := service.NewWizardService(logger, catalog, garage, decoder, cfg.VINDecodeTimeout)
	go wizards.RunJanitor(ctx, cfg.WizardIdleTimeout, time.Minute)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	wsHub.SetInitDataProvider(func(a models.Actor) interface{} {
		return gin.H{"role": a.Role, "brands": len(catalog.Hierarchy())}
	})
	go wsHub.Run()

	// 订阅事件并推送到 WebSocket
	stopOrders, err := events.Subscribe(bus, events.SubjectOrderUpdated, func(_ context.Context, e events.OrderEvent) {
		if e.Order != nil {
			wsHub.NotifyOrder(e.Order, e)
		}
	})
	if err != nil {
		logger.Fatal("Failed to subscribe order events", zap.Error(err))
	}
	defer stopOrders()
	stopCatalog, err := events.Subscribe(bus, events.SubjectCatalogChanged, func(_ context.Context, e events.CatalogEvent) {
		wsHub.BroadcastMessage(ws.MsgTypeCatalogChanged, e)
	})
	if err != nil {
		logger.Fatal("Failed to subscribe catalog events", zap.Error(err))
	}
	defer stopCatalog()

	auth := middleware.NewAuth(cfg.JWTSecret, logger)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, catalog, orders, garage, wizards, auth, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", server.Addr),
		zap.Bool("nats", bus.Remote()))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止后台任务
	cancel()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

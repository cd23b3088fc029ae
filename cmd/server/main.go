package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aibtcdev/x402-api/internal/config"
	"github.com/aibtcdev/x402-api/internal/domain/entities"
	"github.com/aibtcdev/x402-api/internal/infrastructure/embeddings"
	"github.com/aibtcdev/x402-api/internal/infrastructure/facilitator"
	"github.com/aibtcdev/x402-api/internal/infrastructure/hiro"
	"github.com/aibtcdev/x402-api/internal/infrastructure/inference"
	"github.com/aibtcdev/x402-api/internal/infrastructure/jobs"
	"github.com/aibtcdev/x402-api/internal/infrastructure/logsink"
	"github.com/aibtcdev/x402-api/internal/infrastructure/replay"
	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
	"github.com/aibtcdev/x402-api/internal/interfaces/http/handlers"
	"github.com/aibtcdev/x402-api/internal/usecases"
	"github.com/aibtcdev/x402-api/pkg/logger"
	"github.com/aibtcdev/x402-api/pkg/redis"
)

// serverVersion is reported on /health and in the discovery documents.
const serverVersion = "0.2.0"

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	newManager = storage.NewManager
	runServer  = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	network, err := entities.ParseNetwork(cfg.Payment.Network)
	if err != nil {
		return fmt.Errorf("invalid NETWORK: %w", err)
	}

	// Initialize Logger, shipping to the external sink when configured
	sink := logsink.New(cfg.LogSink)
	var logOpts []zap.Option
	if sink != nil {
		logOpts = append(logOpts, sink.ZapOption())
	}
	initLog(cfg.Server.Env, logOpts...)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Open the per-payer shard store
	manager, err := newManager(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open shard storage: %w", err)
	}
	defer manager.Close()

	// Replay guard: Redis when configured, in-process otherwise
	var guard replay.Guard = replay.NewMemoryGuard(replay.DefaultTTL)
	if cfg.Redis.URL != "" {
		if err := initRedis(cfg.Redis.URL); err != nil {
			logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		guard = replay.NewRedisGuard(replay.DefaultTTL)
		logger.Info(context.Background(), "Redis replay guard initialized")
	}

	// Upstream adapters
	settler := facilitator.NewClient(cfg.Facilitator)
	openRouter := inference.NewOpenRouter(cfg.OpenRouter)
	cloudflare := inference.NewCloudflare(cfg.Cloudflare)
	chain := hiro.NewClient(cfg.Hiro)
	var embedder handlers.Embedder
	if ec := embeddings.NewClient(cfg.Embeddings); ec != nil {
		embedder = ec
	}

	// Pricing, usage and scanning
	catalog := usecases.NewModelCatalog(openRouter, cfg.OpenRouter.CatalogTTL)
	pricing := usecases.NewPricing(catalog)
	metrics := prometheus.NewRegistry()
	recorder := usecases.NewUsageRecorder(manager, metrics)
	scanner := usecases.NewSafetyScanner(openRouter, manager)

	if cfg.Payment.Recipient == "" {
		logger.Warn(context.Background(), "PAYMENT_RECIPIENT is not set; priced endpoints will refuse traffic")
	}

	// Start background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scanner.Start(ctx)
	if sink != nil {
		go sink.Start(ctx)
	}
	hygiene := jobs.NewShardHygieneJob(manager)
	go hygiene.Start(ctx)

	r := buildRouter(serverDeps{
		cfg:        cfg,
		network:    network,
		version:    serverVersion,
		pricing:    pricing,
		settler:    settler,
		guard:      guard,
		recorder:   recorder,
		catalog:    catalog,
		openRouter: openRouter,
		cloudflare: cloudflare,
		chain:      chain,
		shards:     manager,
		scanner:    scanner,
		embedder:   embedder,
		metrics:    metrics,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		scanner.Stop()
		hygiene.Stop()
		if sink != nil {
			sink.Stop()
		}
		recorder.Flush()
		cancel()
	}()

	// Start server
	log.Printf("🚀 x402 gateway starting on port %s (%s)", cfg.Server.Port, network)
	log.Printf("📚 Discovery: %s/x402.json", cfg.Server.BaseURL())
	log.Printf("❤️ Health: %s/health", cfg.Server.BaseURL())

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

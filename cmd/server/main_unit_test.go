package main

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aibtcdev/x402-api/internal/config"
	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
	"github.com/aibtcdev/x402-api/pkg/redis"
)

// withMainHooks snapshots the wiring seams and restores them when the test
// finishes, so overrides never leak between tests.
func withMainHooks(t *testing.T) {
	t.Helper()
	origDotenv := loadDotenv
	origCfg := loadCfg
	origLog := initLog
	origRedis := initRedis
	origManager := newManager
	origRun := runServer
	t.Cleanup(func() {
		loadDotenv = origDotenv
		loadCfg = origCfg
		initLog = origLog
		initRedis = origRedis
		newManager = origManager
		runServer = origRun
	})
}

func baseTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:      config.ServerConfig{Port: "0", Env: "test"},
		Payment:     config.PaymentConfig{Network: "testnet", Recipient: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"},
		Facilitator: config.FacilitatorConfig{URL: "http://127.0.0.1:1", Timeout: time.Second},
		OpenRouter:  config.OpenRouterConfig{CatalogTTL: time.Hour},
		Storage:     config.StorageConfig{DataDir: t.TempDir()},
	}
}

// quietBoot stubs the seams that touch the host environment.
func quietBoot(t *testing.T, cfg *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	loadDotenv = func(...string) error { return errors.New("no .env") }
	loadCfg = func() *config.Config { return cfg }
	initLog = func(string, ...zap.Option) {}
	runServer = func(*gin.Engine, string) error { return nil }
}

func TestRunMainProcess_InvalidNetwork(t *testing.T) {
	withMainHooks(t)
	cfg := baseTestConfig(t)
	cfg.Payment.Network = "petranet"
	quietBoot(t, cfg)

	if err := runMainProcess(); err == nil {
		t.Fatal("expected an error for an unknown network")
	}
}

func TestRunMainProcess_StorageOpenError(t *testing.T) {
	withMainHooks(t)
	quietBoot(t, baseTestConfig(t))
	newManager = func(string) (*storage.Manager, error) {
		return nil, errors.New("disk is read-only")
	}

	err := runMainProcess()
	if err == nil {
		t.Fatal("expected an error when shard storage cannot open")
	}
}

func TestRunMainProcess_RedisInitError(t *testing.T) {
	withMainHooks(t)
	cfg := baseTestConfig(t)
	cfg.Redis.URL = "redis://127.0.0.1:0"
	quietBoot(t, cfg)
	initRedis = func(string) error { return errors.New("connection refused") }

	err := runMainProcess()
	if err == nil {
		t.Fatal("expected an error when redis is configured but unreachable")
	}
}

func TestRunMainProcess_ServerRunError(t *testing.T) {
	withMainHooks(t)
	quietBoot(t, baseTestConfig(t))
	runServer = func(*gin.Engine, string) error { return errors.New("listen failed") }

	err := runMainProcess()
	if err == nil {
		t.Fatal("expected the listen error to propagate")
	}
}

func TestRunMainProcess_SuccessPath(t *testing.T) {
	withMainHooks(t)
	quietBoot(t, baseTestConfig(t))

	var served *gin.Engine
	var port string
	runServer = func(r *gin.Engine, p string) error {
		served, port = r, p
		return nil
	}

	if err := runMainProcess(); err != nil {
		t.Fatalf("expected a clean boot, got %v", err)
	}
	if port != "0" {
		t.Fatalf("unexpected port %q", port)
	}
	if served == nil || len(served.Routes()) < 50 {
		t.Fatalf("expected the full endpoint table to be mounted")
	}
}

func TestRunMainProcess_RedisGuardWhenConfigured(t *testing.T) {
	withMainHooks(t)

	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis not available in this environment: %v", err)
	}
	defer srv.Close()
	t.Cleanup(func() { redis.SetClient(nil) })

	cfg := baseTestConfig(t)
	cfg.Redis.URL = "redis://" + srv.Addr()
	quietBoot(t, cfg)

	if err := runMainProcess(); err != nil {
		t.Fatalf("expected a clean boot with redis configured, got %v", err)
	}
	if !redis.Available() {
		t.Fatal("expected the shared redis client to be connected")
	}
}

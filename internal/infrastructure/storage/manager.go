// Package storage implements the per-payer data plane. Every payer address
// owns an isolated sqlite database ("shard") holding its key-value entries,
// pastes, sandbox tables, locks, queues, vector memory, content scans and
// usage records. Shards never see each other.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/pkg/logger"
)

// payerPattern matches the c32 alphabet; anything else never reaches the
// filesystem.
var payerPattern = regexp.MustCompile(`^S[0-9A-Z]{1,127}$`)

var gormOpen = func(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// shardModels is migrated at shard birth, before any request touches it.
var shardModels = []any{
	&models.KVEntry{},
	&models.Paste{},
	&models.Lock{},
	&models.QueueJob{},
	&models.MemoryItem{},
	&models.ContentScan{},
	&models.UsageRecord{},
	&models.UsageDaily{},
}

// Manager opens and caches payer shards.
type Manager struct {
	dataDir string
	mu      sync.Mutex
	shards  map[string]*Shard
}

func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &Manager{
		dataDir: dataDir,
		shards:  make(map[string]*Shard),
	}, nil
}

// Shard returns the payer's shard, opening and migrating it on first use.
// The manager lock doubles as the schema initialization guard: no caller
// observes a half-migrated shard.
func (m *Manager) Shard(ctx context.Context, payer string) (*Shard, error) {
	if !payerPattern.MatchString(payer) {
		return nil, domainerrors.BadRequest("invalid payer address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.shards[payer]; ok {
		return s, nil
	}

	path := filepath.Join(m.dataDir, payer+".db")
	db, err := gormOpen(path)
	if err != nil {
		logger.Error(ctx, "failed to open payer shard", zap.String("payer", payer), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrShardUnavailable, err)
	}
	if err := db.AutoMigrate(shardModels...); err != nil {
		logger.Error(ctx, "failed to migrate payer shard", zap.String("payer", payer), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrShardUnavailable, err)
	}

	s := &Shard{payer: payer, db: db}
	m.shards[payer] = s
	return s, nil
}

// OpenShards snapshots the currently open shards for background sweeps.
func (m *Manager) OpenShards() []*Shard {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Shard, 0, len(m.shards))
	for _, s := range m.shards {
		out = append(out, s)
	}
	return out
}

// Close releases every open shard. Called on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for payer, s := range m.shards {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Warn(context.Background(), "failed to close shard",
					zap.String("payer", payer), zap.Error(err))
			}
		}
		delete(m.shards, payer)
	}
}

package storage

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
)

var timeNow = time.Now

// Shard is one payer's database. Every public method takes the shard mutex,
// so operations within a payer observe a total order; sqlite files are
// single-writer anyway.
type Shard struct {
	payer string
	mu    sync.Mutex
	db    *gorm.DB
}

// Payer returns the owning address.
func (s *Shard) Payer() string {
	return s.payer
}

// Hygiene drops expired KV entries and locks and requeues stale processing
// jobs. The request paths do the same lazily; the background sweep keeps
// idle shards from accumulating garbage.
func (s *Shard) Hygiene(ctx context.Context) error {
	now := timeNow().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	if err := purgeExpiredKV(db); err != nil {
		return err
	}
	if err := sweepExpiredLocks(db, now); err != nil {
		return err
	}
	return db.Model(&models.QueueJob{}).
		Where("status = ? AND (visible_at IS NULL OR visible_at <= ?)", models.JobStatusProcessing, now).
		Updates(map[string]any{
			"status":     models.JobStatusPending,
			"attempts":   gorm.Expr("attempts + 1"),
			"visible_at": nil,
		}).Error
}

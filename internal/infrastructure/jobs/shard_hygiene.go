package jobs

import (
	"context"
	"log"
	"time"

	"github.com/aibtcdev/x402-api/internal/infrastructure/storage"
)

// ShardHygieneJob periodically sweeps every open payer shard: expired KV
// entries and locks are dropped, stale queue jobs requeued. Request paths do
// the same lazily, the sweep covers shards nobody is touching.
type ShardHygieneJob struct {
	manager  *storage.Manager
	interval time.Duration
	stop     chan struct{}
}

func NewShardHygieneJob(manager *storage.Manager) *ShardHygieneJob {
	return &ShardHygieneJob{
		manager:  manager,
		interval: 60 * time.Second,
		stop:     make(chan struct{}),
	}
}

func (j *ShardHygieneJob) Start(ctx context.Context) {
	log.Println("🕐 Starting shard hygiene job...")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Shard hygiene job stopped (context cancelled)")
			return
		case <-j.stop:
			log.Println("⏹️ Shard hygiene job stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *ShardHygieneJob) Stop() {
	close(j.stop)
}

func (j *ShardHygieneJob) sweep(ctx context.Context) {
	for _, shard := range j.manager.OpenShards() {
		if err := shard.Hygiene(ctx); err != nil {
			log.Printf("Shard hygiene failed for %s: %v", shard.Payer(), err)
		}
	}
}

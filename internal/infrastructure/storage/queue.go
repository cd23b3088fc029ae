package storage

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/pkg/utils"
)

const maxQueueBatch = 100

// QueuePush enqueues payloads with a shared priority.
func (s *Shard) QueuePush(ctx context.Context, queue string, items []json.RawMessage, priority int) (*entities.QueuePushResult, error) {
	if queue == "" {
		return nil, domainerrors.BadRequest("queue name is required")
	}
	if len(items) == 0 {
		return nil, domainerrors.BadRequest("items are required")
	}
	if len(items) > maxQueueBatch {
		return nil, domainerrors.BadRequest("at most 100 items per push")
	}

	jobs := make([]models.QueueJob, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		job := models.QueueJob{
			ID:       utils.NewJobID(),
			Queue:    queue,
			Payload:  string(item),
			Priority: priority,
			Status:   models.JobStatusPending,
		}
		jobs = append(jobs, job)
		ids = append(ids, job.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return &entities.QueuePushResult{Queued: len(jobs), JobIDs: ids}, nil
}

// QueuePop atomically takes up to count pending jobs, highest priority first,
// oldest first within a priority. Popped jobs are deleted.
func (s *Shard) QueuePop(ctx context.Context, queue string, count int) ([]entities.QueueJob, error) {
	if queue == "" {
		return nil, domainerrors.BadRequest("queue name is required")
	}
	count = utils.LimitOrDefault(count, 1, maxQueueBatch)

	s.mu.Lock()
	defer s.mu.Unlock()

	var popped []models.QueueJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := timeNow().UTC()
		if err := queueHygiene(tx, queue, now); err != nil {
			return err
		}
		if err := tx.Where("queue = ? AND status = ?", queue, models.JobStatusPending).
			Order("priority DESC, created_at ASC, id ASC").
			Limit(count).
			Find(&popped).Error; err != nil {
			return err
		}
		if len(popped) == 0 {
			return nil
		}
		ids := make([]string, 0, len(popped))
		for i := range popped {
			ids = append(ids, popped[i].ID)
		}
		return tx.Where("id IN ?", ids).Delete(&models.QueueJob{}).Error
	})
	if err != nil {
		return nil, err
	}
	return queueJobsFromModels(popped), nil
}

// QueuePeek returns the jobs QueuePop would take, without removing them.
func (s *Shard) QueuePeek(ctx context.Context, queue string, count int) ([]entities.QueueJob, error) {
	if queue == "" {
		return nil, domainerrors.BadRequest("queue name is required")
	}
	count = utils.LimitOrDefault(count, 1, maxQueueBatch)

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	if err := queueHygiene(db, queue, timeNow().UTC()); err != nil {
		return nil, err
	}

	var jobs []models.QueueJob
	if err := db.Where("queue = ? AND status = ?", queue, models.JobStatusPending).
		Order("priority DESC, created_at ASC, id ASC").
		Limit(count).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return queueJobsFromModels(jobs), nil
}

// QueueStatus counts a queue's jobs by state.
func (s *Shard) QueueStatus(ctx context.Context, queue string) (*entities.QueueStatus, error) {
	if queue == "" {
		return nil, domainerrors.BadRequest("queue name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	if err := queueHygiene(db, queue, timeNow().UTC()); err != nil {
		return nil, err
	}

	status := &entities.QueueStatus{Queue: queue}
	if err := db.Model(&models.QueueJob{}).
		Where("queue = ? AND status = ?", queue, models.JobStatusPending).
		Count(&status.Pending).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.QueueJob{}).
		Where("queue = ? AND status = ?", queue, models.JobStatusProcessing).
		Count(&status.Processing).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.QueueJob{}).
		Where("queue = ?", queue).
		Count(&status.Total).Error; err != nil {
		return nil, err
	}
	return status, nil
}

// QueueClear deletes a queue's jobs, optionally restricted to one status.
func (s *Shard) QueueClear(ctx context.Context, queue, status string) (int64, error) {
	if queue == "" {
		return 0, domainerrors.BadRequest("queue name is required")
	}
	if status != "" && status != models.JobStatusPending && status != models.JobStatusProcessing {
		return 0, domainerrors.BadRequest("status must be pending or processing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.db.WithContext(ctx).Where("queue = ?", queue)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	res := q.Delete(&models.QueueJob{})
	return res.RowsAffected, res.Error
}

// queueHygiene returns processing jobs whose visibility window elapsed to
// pending, counting the attempt.
func queueHygiene(tx *gorm.DB, queue string, now time.Time) error {
	return tx.Model(&models.QueueJob{}).
		Where("queue = ? AND status = ? AND (visible_at IS NULL OR visible_at <= ?)",
			queue, models.JobStatusProcessing, now).
		Updates(map[string]any{
			"status":     models.JobStatusPending,
			"attempts":   gorm.Expr("attempts + 1"),
			"visible_at": nil,
		}).Error
}

func queueJobsFromModels(jobs []models.QueueJob) []entities.QueueJob {
	out := make([]entities.QueueJob, 0, len(jobs))
	for i := range jobs {
		out = append(out, entities.QueueJob{
			ID:        jobs[i].ID,
			Payload:   json.RawMessage(jobs[i].Payload),
			Priority:  jobs[i].Priority,
			Attempts:  jobs[i].Attempts,
			CreatedAt: jobs[i].CreatedAt,
		})
	}
	return out
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/pkg/utils"
)

const (
	maxMemoryBatch     = 100
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// MemoryStore upserts items by id. CreatedAt of existing rows is preserved.
func (s *Shard) MemoryStore(ctx context.Context, items []entities.MemoryItem) (int, error) {
	if len(items) == 0 {
		return 0, domainerrors.BadRequest("items are required")
	}
	if len(items) > maxMemoryBatch {
		return 0, domainerrors.BadRequest("at most 100 items per store")
	}
	for i := range items {
		if items[i].ID == "" {
			return 0, domainerrors.BadRequest("every item needs an id")
		}
		if items[i].Text == "" {
			return 0, domainerrors.BadRequest("every item needs text")
		}
		if len(items[i].Embedding) == 0 {
			return 0, domainerrors.BadRequest("every item needs an embedding")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			embedding, err := json.Marshal(items[i].Embedding)
			if err != nil {
				return err
			}
			var meta null.String
			if len(items[i].Metadata) > 0 {
				meta = null.StringFrom(string(items[i].Metadata))
			}

			var existing models.MemoryItem
			err = tx.Where("id = ?", items[i].ID).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				row := models.MemoryItem{
					ID:        items[i].ID,
					Text:      items[i].Text,
					Embedding: string(embedding),
					Metadata:  meta,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				updates := map[string]any{
					"text":      items[i].Text,
					"embedding": string(embedding),
					"metadata":  meta,
				}
				if err := tx.Model(&models.MemoryItem{}).
					Where("id = ?", items[i].ID).Updates(updates).Error; err != nil {
					return err
				}
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// MemorySearch scans all items, scores them by cosine similarity against the
// query embedding, drops scores below threshold and returns the top matches.
func (s *Shard) MemorySearch(ctx context.Context, query []float64, limit int, threshold float64) ([]entities.MemorySearchHit, error) {
	if len(query) == 0 {
		return nil, domainerrors.BadRequest("query embedding is required")
	}
	limit = utils.LimitOrDefault(limit, defaultSearchLimit, maxSearchLimit)
	if threshold < 0 {
		threshold = 0
	} else if threshold > 1 {
		threshold = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []models.MemoryItem
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]entities.MemorySearchHit, 0)
	for i := range rows {
		var embedding []float64
		if err := json.Unmarshal([]byte(rows[i].Embedding), &embedding); err != nil {
			continue
		}
		sim := cosineSimilarity(query, embedding)
		if math.IsNaN(sim) || math.IsInf(sim, 0) || sim < threshold {
			continue
		}
		hit := entities.MemorySearchHit{
			ID:         rows[i].ID,
			Text:       rows[i].Text,
			Similarity: sim,
			CreatedAt:  rows[i].CreatedAt,
			UpdatedAt:  rows[i].UpdatedAt,
		}
		if rows[i].Metadata.Valid {
			hit.Metadata = json.RawMessage(rows[i].Metadata.String)
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Similarity != hits[b].Similarity {
			return hits[a].Similarity > hits[b].Similarity
		}
		return hits[a].ID < hits[b].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// MemoryDelete removes the given ids and reports which of them existed.
func (s *Shard) MemoryDelete(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, domainerrors.BadRequest("ids are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	existing := make([]string, 0, len(ids))
	if err := db.Model(&models.MemoryItem{}).
		Where("id IN ?", ids).Order("id ASC").
		Pluck("id", &existing).Error; err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return existing, nil
	}
	if err := db.Where("id IN ?", existing).Delete(&models.MemoryItem{}).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

// MemoryList pages through items in insertion order.
func (s *Shard) MemoryList(ctx context.Context, limit, offset int) ([]entities.MemoryItem, error) {
	limit = utils.LimitOrDefault(limit, defaultListLimit, maxListLimit)
	if offset < 0 {
		offset = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []models.MemoryItem
	if err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]entities.MemoryItem, 0, len(rows))
	for i := range rows {
		item := entities.MemoryItem{
			ID:        rows[i].ID,
			Text:      rows[i].Text,
			CreatedAt: rows[i].CreatedAt,
			UpdatedAt: rows[i].UpdatedAt,
		}
		_ = json.Unmarshal([]byte(rows[i].Embedding), &item.Embedding)
		if rows[i].Metadata.Valid {
			item.Metadata = json.RawMessage(rows[i].Metadata.String)
		}
		items = append(items, item)
	}
	return items, nil
}

// MemoryClear drops every item and reports how many were removed.
func (s *Shard) MemoryClear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.MemoryItem{})
	return res.RowsAffected, res.Error
}

// cosineSimilarity returns 0 for mismatched lengths or zero-magnitude inputs.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

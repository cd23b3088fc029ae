package storage

import (
	"context"
	"errors"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/pkg/utils"
)

func validScanSource(source string) bool {
	return source == entities.ScanContentPaste ||
		source == entities.ScanContentKV ||
		source == entities.ScanContentMemory
}

// ScanStore upserts a verdict for (source, id). The latest verdict wins.
func (s *Shard) ScanStore(ctx context.Context, id, source string, verdict entities.ScanVerdict) error {
	if id == "" {
		return domainerrors.BadRequest("content id is required")
	}
	if !validScanSource(source) {
		return domainerrors.BadRequest("content type must be paste, kv or memory")
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	} else if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	var reason null.String
	if verdict.Reason != "" {
		reason = null.StringFrom(verdict.Reason)
	}

	var existing models.ContentScan
	err := db.Where("source = ? AND ref_id = ?", source, id).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(&models.ContentScan{
			Source:     source,
			RefID:      id,
			Safe:       verdict.Safe,
			Confidence: verdict.Confidence,
			Reason:     reason,
		}).Error
	}
	if err != nil {
		return err
	}

	return db.Model(&models.ContentScan{}).
		Where("source = ? AND ref_id = ?", source, id).
		Updates(map[string]any{
			"safe":       verdict.Safe,
			"confidence": verdict.Confidence,
			"reason":     reason,
		}).Error
}

// ScanGet returns the stored verdict for a content id, any source.
func (s *Shard) ScanGet(ctx context.Context, id string) (*entities.ContentScan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var m models.ContentScan
	err := s.db.WithContext(ctx).Where("ref_id = ?", id).
		Order("updated_at DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerrors.NotFound("no scan for content id")
	}
	if err != nil {
		return nil, err
	}
	return scanFromModel(&m), nil
}

// ScanList pages stored verdicts, optionally filtered by source or safety.
func (s *Shard) ScanList(ctx context.Context, source string, safeOnly bool, limit int) ([]entities.ContentScan, error) {
	if source != "" && !validScanSource(source) {
		return nil, domainerrors.BadRequest("content type must be paste, kv or memory")
	}
	limit = utils.LimitOrDefault(limit, defaultListLimit, maxListLimit)

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.db.WithContext(ctx).Model(&models.ContentScan{}).
		Order("updated_at DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if safeOnly {
		q = q.Where("safe = ?", true)
	}

	var rows []models.ContentScan
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	scans := make([]entities.ContentScan, 0, len(rows))
	for i := range rows {
		scans = append(scans, *scanFromModel(&rows[i]))
	}
	return scans, nil
}

func scanFromModel(m *models.ContentScan) *entities.ContentScan {
	return &entities.ContentScan{
		ContentID:   m.RefID,
		ContentType: m.Source,
		Safe:        m.Safe,
		Confidence:  m.Confidence,
		Reason:      m.Reason.String,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/pkg/utils"
)

const (
	pasteIDLength    = 8
	maxPasteBytes    = 1024 * 1024
	maxPasteTitle    = 255
	maxPasteLanguage = 50
)

// PasteCreate stores an immutable snippet under a fresh 8-char id.
func (s *Shard) PasteCreate(ctx context.Context, content, title, language string, ttlSeconds int) (*entities.Paste, error) {
	if content == "" {
		return nil, domainerrors.BadRequest("content is required")
	}
	if len(content) > maxPasteBytes {
		return nil, domainerrors.BadRequest("content exceeds the 1MiB limit")
	}
	if len(title) > maxPasteTitle {
		return nil, domainerrors.BadRequest("title exceeds 255 characters")
	}
	if len(language) > maxPasteLanguage {
		return nil, domainerrors.BadRequest("language exceeds 50 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := utils.RandomID(pasteIDLength)
	if err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	m := models.Paste{
		ID:      id,
		Content: content,
	}
	if title != "" {
		m.Title = null.StringFrom(title)
	}
	if language != "" {
		m.Language = null.StringFrom(language)
	}
	if ttlSeconds > 0 {
		m.ExpiresAt = null.TimeFrom(now.Add(time.Duration(ttlSeconds) * time.Second))
	}

	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return pasteFromModel(&m), nil
}

// PasteGet fetches a snippet; expired rows are removed on sight.
func (s *Shard) PasteGet(ctx context.Context, id string) (*entities.Paste, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	var m models.Paste
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.NotFound("paste not found")
		}
		return nil, err
	}

	if m.ExpiresAt.Valid && !m.ExpiresAt.Time.After(timeNow().UTC()) {
		if err := db.Where("id = ?", id).Delete(&models.Paste{}).Error; err != nil {
			return nil, err
		}
		return nil, domainerrors.NotFound("paste not found")
	}

	return pasteFromModel(&m), nil
}

// PasteDelete removes a snippet and reports whether a live row was deleted.
func (s *Shard) PasteDelete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	if err := db.Where("expires_at IS NOT NULL AND expires_at <= ?", timeNow().UTC()).
		Delete(&models.Paste{}).Error; err != nil {
		return false, err
	}

	res := db.Where("id = ?", id).Delete(&models.Paste{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func pasteFromModel(m *models.Paste) *entities.Paste {
	p := &entities.Paste{
		ID:        m.ID,
		Content:   m.Content,
		Title:     m.Title.String,
		Language:  m.Language.String,
		CreatedAt: m.CreatedAt,
	}
	if m.ExpiresAt.Valid {
		p.ExpiresAt = &m.ExpiresAt.Time
	}
	return p
}

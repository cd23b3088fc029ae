package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/pkg/utils"
)

const (
	maxKVKeyLength   = 255
	maxKVValueBytes  = 256 * 1024
	defaultListLimit = 100
	maxListLimit     = 1000
)

// KVSet upserts a key. Created reports whether the key was absent (an
// expired row counts as absent).
func (s *Shard) KVSet(ctx context.Context, key string, value, metadata json.RawMessage, ttlSeconds int) (*entities.KVSetResult, error) {
	if key == "" || len(key) > maxKVKeyLength {
		return nil, domainerrors.BadRequest("key must be between 1 and 255 characters")
	}
	if len(value) == 0 {
		return nil, domainerrors.BadRequest("value is required")
	}
	if len(value) > maxKVValueBytes {
		return nil, domainerrors.BadRequest("value exceeds the 256KiB limit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	now := timeNow().UTC()

	if err := db.Where("key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now).
		Delete(&models.KVEntry{}).Error; err != nil {
		return nil, err
	}

	var expiresAt null.Time
	if ttlSeconds > 0 {
		expiresAt = null.TimeFrom(now.Add(time.Duration(ttlSeconds) * time.Second))
	}
	var meta null.String
	if len(metadata) > 0 {
		meta = null.StringFrom(string(metadata))
	}

	var count int64
	if err := db.Model(&models.KVEntry{}).Where("key = ?", key).Count(&count).Error; err != nil {
		return nil, err
	}

	if count == 0 {
		entry := models.KVEntry{Key: key, Value: string(value), Metadata: meta, ExpiresAt: expiresAt}
		if err := db.Create(&entry).Error; err != nil {
			return nil, err
		}
	} else {
		updates := map[string]any{"value": string(value), "metadata": meta, "expires_at": expiresAt}
		if err := db.Model(&models.KVEntry{}).Where("key = ?", key).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	result := &entities.KVSetResult{Key: key, Created: count == 0}
	if expiresAt.Valid {
		result.ExpiresAt = &expiresAt.Time
	}
	return result, nil
}

// KVGet returns a live entry; expired rows are removed on sight.
func (s *Shard) KVGet(ctx context.Context, key string) (*entities.KVItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	var m models.KVEntry
	if err := db.Where("key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.NotFound("key not found")
		}
		return nil, err
	}

	if m.ExpiresAt.Valid && !m.ExpiresAt.Time.After(timeNow().UTC()) {
		if err := db.Where("key = ?", key).Delete(&models.KVEntry{}).Error; err != nil {
			return nil, err
		}
		return nil, domainerrors.NotFound("key not found")
	}

	return kvItemFromModel(&m), nil
}

// KVDelete removes a key and reports whether a live row was deleted.
func (s *Shard) KVDelete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	if err := purgeExpiredKV(db); err != nil {
		return false, err
	}

	res := db.Where("key = ?", key).Delete(&models.KVEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// KVList scans keys, optionally filtered by prefix. Values are not returned.
func (s *Shard) KVList(ctx context.Context, prefix string, limit int) ([]entities.KVListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	if err := purgeExpiredKV(db); err != nil {
		return nil, err
	}

	q := db.Model(&models.KVEntry{}).Order("key ASC").
		Limit(utils.LimitOrDefault(limit, defaultListLimit, maxListLimit))
	if prefix != "" {
		q = q.Where(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	}

	var rows []models.KVEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]entities.KVListItem, 0, len(rows))
	for i := range rows {
		item := entities.KVListItem{
			Key:       rows[i].Key,
			CreatedAt: rows[i].CreatedAt,
			UpdatedAt: rows[i].UpdatedAt,
		}
		if rows[i].ExpiresAt.Valid {
			item.ExpiresAt = &rows[i].ExpiresAt.Time
		}
		items = append(items, item)
	}
	return items, nil
}

func purgeExpiredKV(db *gorm.DB) error {
	return db.Where("expires_at IS NOT NULL AND expires_at <= ?", timeNow().UTC()).
		Delete(&models.KVEntry{}).Error
}

func kvItemFromModel(m *models.KVEntry) *entities.KVItem {
	item := &entities.KVItem{
		Key:       m.Key,
		Value:     json.RawMessage(m.Value),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Metadata.Valid {
		item.Metadata = json.RawMessage(m.Metadata.String)
	}
	if m.ExpiresAt.Valid {
		item.ExpiresAt = &m.ExpiresAt.Time
	}
	return item
}

// escapeLike quotes the LIKE wildcards so prefixes match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

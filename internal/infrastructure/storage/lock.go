package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
	"github.com/aibtcdev/x402-api/pkg/utils"
)

const (
	lockTokenLength = 32
	defaultLockTTL  = 60
	minLockTTL      = 10
	maxLockTTL      = 300
)

// LockAcquire takes a named lock for the clamped ttl. When the lock is held,
// the current holder's expiry is reported instead of a token.
func (s *Shard) LockAcquire(ctx context.Context, name string, ttlSeconds int) (*entities.LockResult, error) {
	if name == "" {
		return nil, domainerrors.BadRequest("lock name is required")
	}
	if ttlSeconds == 0 {
		ttlSeconds = defaultLockTTL
	}
	ttlSeconds = utils.ClampInt(ttlSeconds, minLockTTL, maxLockTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	now := timeNow().UTC()

	if err := sweepExpiredLocks(db, now); err != nil {
		return nil, err
	}

	var existing models.Lock
	err := db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		heldUntil := existing.ExpiresAt
		return &entities.LockResult{Acquired: false, HeldUntil: &heldUntil}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	token, err := utils.RandomHex(lockTokenLength)
	if err != nil {
		return nil, err
	}

	lock := models.Lock{
		Name:      name,
		Token:     token,
		ExpiresAt: now.Add(time.Duration(ttlSeconds) * time.Second),
	}
	if err := db.Create(&lock).Error; err != nil {
		return nil, err
	}

	return &entities.LockResult{
		Acquired:  true,
		Token:     lock.Token,
		ExpiresAt: &lock.ExpiresAt,
	}, nil
}

// LockRelease frees a lock; the caller must present the holder token.
func (s *Shard) LockRelease(ctx context.Context, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	now := timeNow().UTC()

	if err := sweepExpiredLocks(db, now); err != nil {
		return err
	}

	var lock models.Lock
	if err := db.Where("name = ?", name).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.NotFound("lock not held")
		}
		return err
	}
	if lock.Token != token {
		return domainerrors.Forbidden("lock token mismatch")
	}

	return db.Where("name = ?", name).Delete(&models.Lock{}).Error
}

// LockExtend pushes the expiry of a held lock forward by the clamped ttl.
func (s *Shard) LockExtend(ctx context.Context, name, token string, ttlSeconds int) (*entities.LockResult, error) {
	if ttlSeconds == 0 {
		ttlSeconds = defaultLockTTL
	}
	ttlSeconds = utils.ClampInt(ttlSeconds, minLockTTL, maxLockTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	now := timeNow().UTC()

	if err := sweepExpiredLocks(db, now); err != nil {
		return nil, err
	}

	var lock models.Lock
	if err := db.Where("name = ?", name).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.NotFound("lock not held")
		}
		return nil, err
	}
	if lock.Token != token {
		return nil, domainerrors.Forbidden("lock token mismatch")
	}

	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)
	if err := db.Model(&models.Lock{}).Where("name = ?", name).
		Update("expires_at", expiresAt).Error; err != nil {
		return nil, err
	}

	return &entities.LockResult{
		Acquired:  true,
		Token:     token,
		ExpiresAt: &expiresAt,
	}, nil
}

// LockStatus reports whether a lock is currently held.
func (s *Shard) LockStatus(ctx context.Context, name string) (*entities.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	if err := sweepExpiredLocks(db, timeNow().UTC()); err != nil {
		return nil, err
	}

	var lock models.Lock
	err := db.Where("name = ?", name).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &entities.LockState{Name: name, Held: false}, nil
	}
	if err != nil {
		return nil, err
	}

	expiresAt := lock.ExpiresAt
	return &entities.LockState{Name: name, Held: true, ExpiresAt: &expiresAt}, nil
}

// LockList returns all currently held locks.
func (s *Shard) LockList(ctx context.Context) ([]entities.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)

	if err := sweepExpiredLocks(db, timeNow().UTC()); err != nil {
		return nil, err
	}

	var locks []models.Lock
	if err := db.Order("name ASC").Find(&locks).Error; err != nil {
		return nil, err
	}

	states := make([]entities.LockState, 0, len(locks))
	for i := range locks {
		expiresAt := locks[i].ExpiresAt
		states = append(states, entities.LockState{
			Name:      locks[i].Name,
			Held:      true,
			ExpiresAt: &expiresAt,
		})
	}
	return states, nil
}

func sweepExpiredLocks(db *gorm.DB, now time.Time) error {
	return db.Where("expires_at <= ?", now).Delete(&models.Lock{}).Error
}

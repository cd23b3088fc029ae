package storage

import (
	"context"
	"errors"
	"math/big"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
	"github.com/aibtcdev/x402-api/internal/infrastructure/models"
)

// RecordUsage appends one usage record and folds it into the payer's daily
// aggregate. Called off the request path; losing a call is acceptable, the
// settlement receipt lives in the response.
func (s *Shard) RecordUsage(ctx context.Context, event *entities.UsageEvent) error {
	if event == nil {
		return domainerrors.BadRequest("usage event is required")
	}

	at := event.At
	if at.IsZero() {
		at = timeNow()
	}
	day := at.UTC().Format("2006-01-02")
	token := string(event.Token)
	amount := event.AmountString()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.UsageRecord{
			Endpoint: event.Endpoint,
			Category: event.Category,
			Token:    token,
			Amount:   amount,
			Status:   event.Status,
		}
		if event.Transaction != "" {
			record.TxID = null.StringFrom(event.Transaction)
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		var daily models.UsageDaily
		err := tx.Where("day = ? AND token = ?", day, token).First(&daily).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.UsageDaily{
				Day:      day,
				Token:    token,
				Requests: 1,
				Amount:   amount,
			}).Error
		}
		if err != nil {
			return err
		}

		sum, ok := new(big.Int).SetString(daily.Amount, 10)
		if !ok {
			sum = big.NewInt(0)
		}
		if add, ok := new(big.Int).SetString(amount, 10); ok {
			sum.Add(sum, add)
		}

		return tx.Model(&models.UsageDaily{}).
			Where("day = ? AND token = ?", day, token).
			Updates(map[string]any{
				"requests": gorm.Expr("requests + 1"),
				"amount":   sum.String(),
			}).Error
	})
}

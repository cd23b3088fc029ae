package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type UsageRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Endpoint  string `gorm:"type:varchar(255);not null;index"`
	Category  string `gorm:"type:varchar(50);not null"`
	Token     string `gorm:"type:varchar(20);not null"`
	Amount    string `gorm:"type:varchar(100);not null;default:'0'"` // BigInt
	TxID      null.String
	Status    int `gorm:"not null"`
	CreatedAt time.Time
}

func (UsageRecord) TableName() string {
	return "usage_records"
}

// UsageDaily aggregates settled payments per day and token.
type UsageDaily struct {
	Day       string `gorm:"primaryKey;type:varchar(10)"` // YYYY-MM-DD
	Token     string `gorm:"primaryKey;type:varchar(20)"`
	Requests  int64  `gorm:"not null;default:0"`
	Amount    string `gorm:"type:varchar(100);not null;default:'0'"` // BigInt
	UpdatedAt time.Time
}

func (UsageDaily) TableName() string {
	return "usage_daily"
}

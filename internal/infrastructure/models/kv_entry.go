package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type KVEntry struct {
	Key       string `gorm:"primaryKey;type:varchar(255)"`
	Value     string `gorm:"type:text;not null"` // JSON
	Metadata  null.String
	ExpiresAt null.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

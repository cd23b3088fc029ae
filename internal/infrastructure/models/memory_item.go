package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type MemoryItem struct {
	ID        string `gorm:"primaryKey;type:varchar(32)"`
	Text      string `gorm:"type:text;not null"`
	Embedding string `gorm:"type:text;not null"` // JSON float array
	Metadata  null.String
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MemoryItem) TableName() string {
	return "memory_items"
}

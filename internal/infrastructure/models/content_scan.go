package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type ContentScan struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Source     string `gorm:"type:varchar(20);not null;uniqueIndex:idx_content_scans_ref"` // paste | kv | memory
	RefID      string `gorm:"type:varchar(255);not null;uniqueIndex:idx_content_scans_ref"`
	Safe       bool   `gorm:"not null;default:true"`
	Confidence float64
	Reason     null.String
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ContentScan) TableName() string {
	return "content_scans"
}

package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// QueueJob statuses.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
)

type QueueJob struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Queue     string `gorm:"type:varchar(255);not null;index"`
	Payload   string `gorm:"type:text;not null"` // JSON
	Priority  int    `gorm:"not null;default:0;index"`
	Status    string `gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts  int    `gorm:"not null;default:0"`
	VisibleAt null.Time
	CreatedAt time.Time
}

func (QueueJob) TableName() string {
	return "queue_jobs"
}

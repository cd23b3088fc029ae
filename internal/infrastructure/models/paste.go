package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type Paste struct {
	ID        string `gorm:"primaryKey;type:varchar(32)"`
	Content   string `gorm:"type:text;not null"`
	Title     null.String
	Language  null.String
	ExpiresAt null.Time `gorm:"index"`
	CreatedAt time.Time
}

func (Paste) TableName() string {
	return "pastes"
}

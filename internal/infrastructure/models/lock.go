package models

import "time"

type Lock struct {
	Name      string    `gorm:"primaryKey;type:varchar(255)"`
	Token     string    `gorm:"type:varchar(64);not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Lock) TableName() string {
	return "locks"
}

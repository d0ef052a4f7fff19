package models

import "time"

// SessionRecord persists a browser session for the database-backed store.
type SessionRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Data      string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable across renames of the struct.
func (SessionRecord) TableName() string { return "web_sessions" }

package models

import "time"

// User is an operator account. Agents never authenticate.
type User struct {
	ID           uint       `gorm:"primaryKey"`
	Username     string     `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string     `gorm:"size:72;not null"`
	Role         string     `gorm:"size:16;not null;default:operator"`
	LastLoginAt  *time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

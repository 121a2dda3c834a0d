// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a forum account. Accounts start inactive and are
// activated through email verification; Score is reputation earned by
// having answers accepted.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Bio       string         `json:"bio"`
	Avatar    string         `json:"avatar"`
	Score     int            `gorm:"not null;default:0" json:"score"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	IsAdmin   bool           `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Questions []Question `gorm:"foreignKey:OwnerID" json:"questions,omitempty"`
	Answers   []Answer   `gorm:"foreignKey:OwnerID" json:"answers,omitempty"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Question is a forum question. The slug is derived from the title at
// create/update time and is the public lookup key.
type Question struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Owner     User           `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner"`
	Title     string         `gorm:"not null;size:500" json:"title"`
	Body      string         `gorm:"not null" json:"body"`
	Slug      string         `gorm:"not null;size:60;uniqueIndex:idx_questions_slug,where:deleted_at IS NULL" json:"slug"`
	Tags      []Tag          `gorm:"many2many:question_tags" json:"tags,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Answers []*Answer `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
}

// Answer belongs to exactly one question. At most one answer per
// question may be accepted; the transition is one-way. The partial
// unique index on question_id backs that invariant in storage, so two
// concurrent accepts cannot both commit.
type Answer struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	OwnerID    uint           `gorm:"not null;index" json:"owner_id"`
	Owner      User           `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner"`
	QuestionID uint           `gorm:"not null;index;uniqueIndex:idx_answers_one_accepted,where:accepted AND deleted_at IS NULL" json:"question_id"`
	Question   Question       `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"question,omitempty"`
	Body       string         `gorm:"not null" json:"body"`
	Accepted   bool           `gorm:"not null;default:false" json:"accepted"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Comments []*Comment `gorm:"foreignKey:AnswerID" json:"comments,omitempty"`
	Votes    []Vote     `gorm:"foreignKey:AnswerID" json:"-"`

	// Likes and Dislikes are not persisted; computed at query time.
	Likes    int64 `gorm:"-" json:"likes"`
	Dislikes int64 `gorm:"-" json:"dislikes"`
}

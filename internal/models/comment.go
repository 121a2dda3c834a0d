package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a top-level comment on an answer.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Owner     User           `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner"`
	AnswerID  uint           `gorm:"not null;index" json:"answer_id"`
	Answer    Answer         `gorm:"foreignKey:AnswerID;constraint:OnDelete:CASCADE" json:"-"`
	Body      string         `gorm:"not null" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Replies []*Reply `gorm:"foreignKey:CommentID" json:"replies,omitempty"`
}

// Reply is a threaded reply under a comment. ParentID points at
// another reply on the same comment, or nil for a direct reply to the
// comment itself. The parent chain is validated at insert time so the
// relation stays a tree.
type Reply struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Owner     User           `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner"`
	CommentID uint           `gorm:"not null;index" json:"comment_id"`
	Comment   Comment        `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
	ParentID  *uint          `gorm:"index" json:"parent_id,omitempty"`
	Body      string         `gorm:"not null" json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Children is the recursively resolved subtree; computed, not persisted.
	Children []*Reply `gorm:"-" json:"replies"`
}

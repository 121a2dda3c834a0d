package models

import "time"

// Vote records a single user's like or dislike on an answer. Exactly
// one of IsLike/IsDislike is set. The combination of OwnerID and
// AnswerID must be unique; rows are hard-deleted so the index stays
// authoritative for the one-vote-per-user invariant.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;uniqueIndex:idx_votes_owner_answer" json:"owner_id"`
	AnswerID  uint      `gorm:"not null;uniqueIndex:idx_votes_owner_answer" json:"answer_id"`
	IsLike    bool      `gorm:"not null;default:false" json:"is_like"`
	IsDislike bool      `gorm:"not null;default:false" json:"is_dislike"`
	CreatedAt time.Time `json:"created_at"`

	Owner  User   `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Answer Answer `gorm:"foreignKey:AnswerID;constraint:OnDelete:CASCADE" json:"-"`
}

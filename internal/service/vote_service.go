package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quorum/internal/models"
)

// VoteResult describes the outcome of a vote toggle.
type VoteResult string

const (
	VoteRemoved  VoteResult = "removed"
	VoteLiked    VoteResult = "liked"
	VoteDisliked VoteResult = "disliked"
)

// VoteService toggles likes and dislikes on answers. All state
// changes run inside a single transaction so a vote can never end up
// both a like and a dislike, and the unique owner/answer index backs
// up the read-modify-write path under concurrency.
type VoteService struct {
	db *gorm.DB
}

// NewVoteService creates a vote service over the given database.
func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

// SetVote applies a like (wantLike true) or dislike toggle from
// actorID on the given answer. Casting the same polarity twice
// removes the vote; casting the opposite polarity replaces it.
func (s *VoteService) SetVote(ctx context.Context, actorID, answerID uint, wantLike bool) (VoteResult, error) {
	var result VoteResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answer models.Answer
		if err := tx.First(&answer, answerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Answer", answerID)
			}
			return err
		}

		var existing models.Vote
		err := tx.Where("owner_id = ? AND answer_id = ?", actorID, answerID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if existing.IsLike == wantLike {
				// Same polarity again is an undo, we're done.
				result = VoteRemoved
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No prior vote, fall through to create.
		default:
			return err
		}

		vote := models.Vote{
			OwnerID:   actorID,
			AnswerID:  answerID,
			IsLike:    wantLike,
			IsDislike: !wantLike,
		}
		if err := tx.Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.NewConflictError("vote already recorded, please retry")
			}
			return err
		}
		if wantLike {
			result = VoteLiked
		} else {
			result = VoteDisliked
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

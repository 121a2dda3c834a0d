package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"quorum/internal/middleware"
	"quorum/internal/models"
	"quorum/internal/repository"
)

// UserNotifier delivers real-time payloads to a single user.
type UserNotifier interface {
	PublishUser(ctx context.Context, userID uint, payload string) error
}

// CreateAnswerInput carries validated fields for creating an answer.
type CreateAnswerInput struct {
	OwnerID    uint
	QuestionID uint
	Body       string
}

// AnswerService handles answer lifecycle and acceptance.
type AnswerService struct {
	db       *gorm.DB
	answers  repository.AnswerRepository
	notifier UserNotifier
}

// NewAnswerService creates an answer service.
func NewAnswerService(db *gorm.DB, answers repository.AnswerRepository, notifier UserNotifier) *AnswerService {
	return &AnswerService{db: db, answers: answers, notifier: notifier}
}

// Create posts a new answer on a question.
func (s *AnswerService) Create(ctx context.Context, in CreateAnswerInput) (*models.Answer, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("answer body is required")
	}

	var question models.Question
	if err := s.db.WithContext(ctx).First(&question, in.QuestionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Question", in.QuestionID)
		}
		return nil, models.NewInternalError(err)
	}

	answer := &models.Answer{
		OwnerID:    in.OwnerID,
		QuestionID: in.QuestionID,
		Body:       body,
	}
	if err := s.answers.Create(ctx, answer); err != nil {
		return nil, models.NewInternalError(err)
	}

	if s.notifier != nil && question.OwnerID != in.OwnerID {
		payload, _ := json.Marshal(map[string]interface{}{
			"type":        "answer_posted",
			"question_id": question.ID,
			"answer_id":   answer.ID,
		})
		if err := s.notifier.PublishUser(ctx, question.OwnerID, string(payload)); err != nil {
			middleware.Logger.Warn("answer notification failed", slog.String("error", err.Error()))
		}
	}

	return answer, nil
}

// GetByID loads a single answer with its vote counts populated.
func (s *AnswerService) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	answer, err := s.answers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	likes, dislikes, err := s.answers.CountVotes(ctx, id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	answer.Likes = likes
	answer.Dislikes = dislikes
	return answer, nil
}

// Update edits an answer's body. Only the answer owner may edit.
func (s *AnswerService) Update(ctx context.Context, actorID, answerID uint, body string) (*models.Answer, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.NewValidationError("answer body is required")
	}
	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if answer.OwnerID != actorID {
		return nil, models.NewForbiddenError("you can only edit your own answers")
	}
	answer.Body = body
	if err := s.answers.Update(ctx, answer); err != nil {
		return nil, models.NewInternalError(err)
	}
	return answer, nil
}

// Delete removes an answer. Only the answer owner may delete.
func (s *AnswerService) Delete(ctx context.Context, actorID, answerID uint) error {
	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		return err
	}
	if answer.OwnerID != actorID {
		return models.NewForbiddenError("you can only delete your own answers")
	}
	if err := s.answers.Delete(ctx, answerID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Accept marks an answer as the accepted one for its question and
// credits the answer author with a reputation point. Only the
// question owner may accept, and a question accepts at most one
// answer. Both writes happen in one transaction.
func (s *AnswerService) Accept(ctx context.Context, actorID, answerID uint) (*models.Answer, error) {
	var accepted models.Answer

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var answer models.Answer
		if err := tx.Preload("Question").First(&answer, answerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Answer", answerID)
			}
			return err
		}

		if answer.Question.OwnerID != actorID {
			return models.NewForbiddenError("only the question owner can perform this action")
		}

		var taken int64
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND accepted = ?", answer.QuestionID, true).
			Count(&taken).Error; err != nil {
			return err
		}
		if answer.Accepted || taken > 0 {
			return models.NewConflictError("you can not accept an answer twice or accept two answers")
		}

		// The count above is the friendly precondition. A competing
		// accept that commits between the count and this update trips
		// the partial unique index on answers(question_id), which
		// rolls back this transaction including the score credit.
		if err := tx.Model(&answer).Update("accepted", true).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return models.NewConflictError("you can not accept an answer twice or accept two answers")
			}
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", answer.OwnerID).
			Update("score", gorm.Expr("score + ?", 1)).Error; err != nil {
			return err
		}

		accepted = answer
		accepted.Accepted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && accepted.OwnerID != actorID {
		payload, _ := json.Marshal(map[string]interface{}{
			"type":        "answer_accepted",
			"question_id": accepted.QuestionID,
			"answer_id":   accepted.ID,
		})
		if err := s.notifier.PublishUser(ctx, accepted.OwnerID, string(payload)); err != nil {
			middleware.Logger.Warn("accept notification failed", slog.String("error", err.Error()))
		}
	}

	return &accepted, nil
}

// ListByQuestion returns a question's answers with vote counts.
func (s *AnswerService) ListByQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error) {
	answers, err := s.answers.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range answers {
		likes, dislikes, err := s.answers.CountVotes(ctx, answers[i].ID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		answers[i].Likes = likes
		answers[i].Dislikes = dislikes
	}
	return answers, nil
}

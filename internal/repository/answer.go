package repository

import (
	"context"
	"errors"

	"quorum/internal/models"

	"gorm.io/gorm"
)

// AnswerRepository defines the interface for answer data operations
type AnswerRepository interface {
	Create(ctx context.Context, answer *models.Answer) error
	GetByID(ctx context.Context, id uint) (*models.Answer, error)
	ListByQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error)
	Update(ctx context.Context, answer *models.Answer) error
	Delete(ctx context.Context, id uint) error
	CountVotes(ctx context.Context, answerID uint) (likes, dislikes int64, err error)
	HasAcceptedAnswer(ctx context.Context, questionID uint) (bool, error)
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Create(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (*models.Answer, error) {
	var answer models.Answer
	err := r.db.WithContext(ctx).Preload("Owner").Preload("Question").Preload("Question.Owner").First(&answer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Answer", id)
		}
		return nil, err
	}
	return &answer, nil
}

func (r *answerRepository) ListByQuestion(ctx context.Context, questionID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("question_id = ?", questionID).
		Order("updated_at DESC, created_at DESC").
		Find(&answers).Error
	return answers, err
}

func (r *answerRepository) Update(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Save(answer).Error
}

func (r *answerRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Answer{}, id).Error
}

func (r *answerRepository) CountVotes(ctx context.Context, answerID uint) (int64, int64, error) {
	var likes, dislikes int64
	if err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("answer_id = ? AND is_like", answerID).Count(&likes).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("answer_id = ? AND is_dislike", answerID).Count(&dislikes).Error; err != nil {
		return 0, 0, err
	}
	return likes, dislikes, nil
}

func (r *answerRepository) HasAcceptedAnswer(ctx context.Context, questionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("question_id = ? AND accepted", questionID).Count(&count).Error
	return count > 0, err
}

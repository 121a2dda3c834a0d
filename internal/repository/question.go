package repository

import (
	"context"
	"errors"
	"time"

	"quorum/internal/models"

	"gorm.io/gorm"
)

// QuestionFilter narrows question listings. Zero values mean "no filter".
type QuestionFilter struct {
	TagSlug      string
	OwnerID      uint
	CreatedAfter time.Time
	Query        string // matched against title and body
	Limit        int
	Offset       int
}

// QuestionRepository defines the interface for question data operations
type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetBySlug(ctx context.Context, slug string) (*models.Question, error)
	// SlugTaken reports whether another question already owns the
	// slug. excludeID skips the row being edited.
	SlugTaken(ctx context.Context, slug string, excludeID uint) (bool, error)
	List(ctx context.Context, filter QuestionFilter) ([]*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	ReplaceTags(ctx context.Context, question *models.Question, tags []models.Tag) error
	Delete(ctx context.Context, id uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).Preload("Owner").Preload("Tags").First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Question", id)
		}
		return nil, err
	}
	return &question, nil
}

func (r *questionRepository) GetBySlug(ctx context.Context, slug string) (*models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).Preload("Owner").Preload("Tags").Where("slug = ?", slug).First(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Question", slug)
		}
		return nil, err
	}
	return &question, nil
}

func (r *questionRepository) SlugTaken(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Question{}).Where("slug = ?", slug)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *questionRepository) List(ctx context.Context, filter QuestionFilter) ([]*models.Question, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Preload("Owner").
		Preload("Tags").
		Order("updated_at DESC, created_at DESC")

	if filter.TagSlug != "" {
		q = q.Joins("JOIN question_tags ON question_tags.question_id = questions.id").
			Joins("JOIN tags ON tags.id = question_tags.tag_id").
			Where("tags.slug = ?", filter.TagSlug)
	}
	if filter.OwnerID != 0 {
		q = q.Where("questions.owner_id = ?", filter.OwnerID)
	}
	if !filter.CreatedAfter.IsZero() {
		q = q.Where("questions.created_at >= ?", filter.CreatedAfter)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		q = q.Where("questions.title LIKE ? OR questions.body LIKE ?", pattern, pattern)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var questions []*models.Question
	err := q.Limit(limit).Offset(filter.Offset).Find(&questions).Error
	return questions, err
}

func (r *questionRepository) Update(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *questionRepository) ReplaceTags(ctx context.Context, question *models.Question, tags []models.Tag) error {
	return r.db.WithContext(ctx).Model(question).Association("Tags").Replace(tags)
}

func (r *questionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Question{}, id).Error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quorum/internal/models"
	"quorum/internal/repository"
	"quorum/internal/validation"

	"gorm.io/gorm"
)

// CreateQuestionInput carries validated fields for creating a question.
type CreateQuestionInput struct {
	OwnerID uint
	Title   string
	Body    string
	Tags    []string
}

// UpdateQuestionInput carries optional fields for editing a question.
// Nil fields are left untouched.
type UpdateQuestionInput struct {
	Title *string
	Body  *string
	Tags  []string
}

// QuestionService handles question lifecycle, slugs, and tag binding.
type QuestionService struct {
	questions repository.QuestionRepository
	tags      repository.TagRepository
}

// NewQuestionService creates a question service.
func NewQuestionService(questions repository.QuestionRepository, tags repository.TagRepository) *QuestionService {
	return &QuestionService{questions: questions, tags: tags}
}

func (s *QuestionService) resolveTags(ctx context.Context, names []string) ([]models.Tag, error) {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := validation.ValidateTagName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		cleaned = append(cleaned, name)
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	tags, err := s.tags.GetByNames(ctx, cleaned)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	known := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		known[strings.ToLower(t.Name)] = struct{}{}
	}
	for _, name := range cleaned {
		if _, ok := known[strings.ToLower(name)]; ok {
			continue
		}
		tag := models.Tag{Name: name, Slug: models.Slugify(name)}
		if err := s.tags.Create(ctx, &tag); err != nil {
			return nil, models.NewInternalError(err)
		}
		tags = append(tags, tag)
		known[strings.ToLower(name)] = struct{}{}
	}
	return tags, nil
}

// uniqueSlug derives the slug for a title, appending a counter when
// another question already holds it. Slugs are the public lookup key,
// so a duplicate title must never shadow an existing question.
func (s *QuestionService) uniqueSlug(ctx context.Context, title string, excludeID uint) (string, error) {
	base := models.Slugify(title)
	slug := base
	for i := 2; ; i++ {
		taken, err := s.questions.SlugTaken(ctx, slug, excludeID)
		if err != nil {
			return "", models.NewInternalError(err)
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// Create stores a new question, deriving its slug from the title.
func (s *QuestionService) Create(ctx context.Context, in CreateQuestionInput) (*models.Question, error) {
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if title == "" {
		return nil, models.NewValidationError("question title is required")
	}
	if body == "" {
		return nil, models.NewValidationError("question body is required")
	}

	tags, err := s.resolveTags(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	slug, err := s.uniqueSlug(ctx, title, 0)
	if err != nil {
		return nil, err
	}

	question := &models.Question{
		OwnerID: in.OwnerID,
		Title:   title,
		Body:    body,
		Slug:    slug,
		Tags:    tags,
	}
	if err := s.questions.Create(ctx, question); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("a question with this title was just posted, please retry")
		}
		return nil, models.NewInternalError(err)
	}
	return question, nil
}

// GetBySlug loads a question with its owner and tags.
func (s *QuestionService) GetBySlug(ctx context.Context, slug string) (*models.Question, error) {
	return s.questions.GetBySlug(ctx, slug)
}

// List returns a filtered page of questions.
func (s *QuestionService) List(ctx context.Context, filter repository.QuestionFilter) ([]*models.Question, error) {
	questions, err := s.questions.List(ctx, filter)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return questions, nil
}

// Update edits a question. Only the owner may edit; changing the
// title re-derives the slug.
func (s *QuestionService) Update(ctx context.Context, actorID uint, slug string, in UpdateQuestionInput) (*models.Question, error) {
	question, err := s.questions.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if question.OwnerID != actorID {
		return nil, models.NewForbiddenError("you can only edit your own questions")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, models.NewValidationError("question title is required")
		}
		newSlug, err := s.uniqueSlug(ctx, title, question.ID)
		if err != nil {
			return nil, err
		}
		question.Title = title
		question.Slug = newSlug
	}
	if in.Body != nil {
		body := strings.TrimSpace(*in.Body)
		if body == "" {
			return nil, models.NewValidationError("question body is required")
		}
		question.Body = body
	}

	if err := s.questions.Update(ctx, question); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("a question with this title was just posted, please retry")
		}
		return nil, models.NewInternalError(err)
	}

	if in.Tags != nil {
		tags, err := s.resolveTags(ctx, in.Tags)
		if err != nil {
			return nil, err
		}
		if err := s.questions.ReplaceTags(ctx, question, tags); err != nil {
			return nil, models.NewInternalError(err)
		}
		question.Tags = tags
	}

	return question, nil
}

// Delete removes a question. Only the owner may delete.
func (s *QuestionService) Delete(ctx context.Context, actorID uint, slug string) error {
	question, err := s.questions.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if question.OwnerID != actorID {
		return models.NewForbiddenError("you can only delete your own questions")
	}
	if err := s.questions.Delete(ctx, question.ID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

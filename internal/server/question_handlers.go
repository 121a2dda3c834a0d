package server

import (
	"errors"
	"strings"
	"time"

	"quorum/internal/cache"
	"quorum/internal/models"
	"quorum/internal/repository"
	"quorum/internal/service"
	"quorum/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetQuestions handles GET /api/questions
func (s *Server) GetQuestions(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	filter := repository.QuestionFilter{
		TagSlug: c.Query("tag"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	}
	if owner := c.QueryInt("owner"); owner > 0 {
		filter.OwnerID = uint(owner)
	}
	if since := c.Query("since"); since != "" {
		createdAfter, err := time.Parse("2006-01-02", since)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("since must be a YYYY-MM-DD date"))
		}
		filter.CreatedAfter = createdAfter
	}

	questions, err := s.questionService.List(c.Context(), filter)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": questions,
	})
}

// SearchQuestions handles GET /api/questions/search
func (s *Server) SearchQuestions(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Search query is required"))
	}

	p := parsePagination(c, 20)
	questions, err := s.questionService.List(c.Context(), repository.QuestionFilter{
		Query:  query,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": questions,
	})
}

// GetQuestion handles GET /api/questions/:slug. The response includes
// answers with vote counts and each answer's comment thread.
func (s *Server) GetQuestion(c *fiber.Ctx) error {
	slug := c.Params("slug")

	question, err := s.questionService.GetBySlug(c.Context(), slug)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	answers, err := s.answerService.ListByQuestion(c.Context(), question.ID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	for _, answer := range answers {
		comments, err := s.commentService.ListCommentsWithReplies(c.Context(), answer.ID)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		answer.Comments = comments
	}
	question.Answers = answers

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": question,
	})
}

// CreateQuestion handles POST /api/questions
func (s *Server) CreateQuestion(c *fiber.Ctx) error {
	var req struct {
		Title string   `json:"title"`
		Body  string   `json:"body"`
		Tags  []string `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	question, err := s.questionService.Create(c.Context(), service.CreateQuestionInput{
		OwnerID: currentUserID(c),
		Title:   req.Title,
		Body:    req.Body,
		Tags:    req.Tags,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	cache.Invalidate(c.Context(), "tags:all")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "question created",
		"data":    question,
	})
}

// UpdateQuestion handles PUT /api/questions/:slug
func (s *Server) UpdateQuestion(c *fiber.Ctx) error {
	slug := c.Params("slug")
	var req struct {
		Title *string  `json:"title"`
		Body  *string  `json:"body"`
		Tags  []string `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	question, err := s.questionService.Update(c.Context(), currentUserID(c), slug, service.UpdateQuestionInput{
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "question updated",
		"data":    question,
	})
}

// DeleteQuestion handles DELETE /api/questions/:slug
func (s *Server) DeleteQuestion(c *fiber.Ctx) error {
	slug := c.Params("slug")

	if err := s.questionService.Delete(c.Context(), currentUserID(c), slug); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "question deleted",
	})
}

// GetTags handles GET /api/tags. The list changes rarely, so it is
// served cache-aside with a short TTL.
func (s *Server) GetTags(c *fiber.Ctx) error {
	var tags []models.Tag
	err := cache.CacheAside(c.Context(), "tags:all", &tags, 5*time.Minute, func() error {
		var err error
		tags, err = s.tagRepo.List(c.Context())
		return err
	})
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": tags,
	})
}

type createTagRequest struct {
	Name     string `json:"name"`
	SubTagID *uint  `json:"sub_tag_id"`
}

// CreateTag handles POST /api/tags. Admin only; regular users get tags
// auto-created through question tagging instead.
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var req createTagRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c,
			models.NewValidationError("Invalid request body"))
	}

	name := strings.TrimSpace(req.Name)
	if err := validation.ValidateTagName(name); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError(err.Error()))
	}

	tag := models.Tag{
		Name:     name,
		Slug:     models.Slugify(name),
		SubTagID: req.SubTagID,
		IsSub:    req.SubTagID != nil,
	}
	if err := s.tagRepo.Create(c.Context(), &tag); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.RespondWithAppError(c,
				models.NewConflictError("a tag with this name already exists"))
		}
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}
	cache.Invalidate(c.Context(), "tags:all")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":    tag,
		"message": "Tag created",
	})
}

// GetTag handles GET /api/tags/:slug
func (s *Server) GetTag(c *fiber.Ctx) error {
	tag, err := s.tagRepo.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": tag,
	})
}

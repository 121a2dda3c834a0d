package server

import (
	"quorum/internal/models"
	"quorum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAnswers handles GET /api/questions/:slug/answers
func (s *Server) GetAnswers(c *fiber.Ctx) error {
	question, err := s.questionService.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	answers, err := s.answerService.ListByQuestion(c.Context(), question.ID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": answers,
	})
}

// CreateAnswer handles POST /api/questions/:slug/answers
func (s *Server) CreateAnswer(c *fiber.Ctx) error {
	question, err := s.questionService.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	answer, err := s.answerService.Create(c.Context(), service.CreateAnswerInput{
		OwnerID:    currentUserID(c),
		QuestionID: question.ID,
		Body:       req.Body,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "answer posted",
		"data":    answer,
	})
}

// UpdateAnswer handles PUT /api/answers/:id
func (s *Server) UpdateAnswer(c *fiber.Ctx) error {
	answerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	answer, err := s.answerService.Update(c.Context(), currentUserID(c), answerID, req.Body)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "answer updated",
		"data":    answer,
	})
}

// DeleteAnswer handles DELETE /api/answers/:id
func (s *Server) DeleteAnswer(c *fiber.Ctx) error {
	answerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.answerService.Delete(c.Context(), currentUserID(c), answerID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "answer deleted",
	})
}

// LikeAnswer handles POST /api/answers/:id/like. Liking twice removes
// the like; liking a disliked answer flips the vote.
func (s *Server) LikeAnswer(c *fiber.Ctx) error {
	return s.vote(c, true)
}

// DislikeAnswer handles POST /api/answers/:id/dislike with the same
// toggle semantics as LikeAnswer.
func (s *Server) DislikeAnswer(c *fiber.Ctx) error {
	return s.vote(c, false)
}

func (s *Server) vote(c *fiber.Ctx, wantLike bool) error {
	answerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.voteService.SetVote(c.Context(), currentUserID(c), answerID, wantLike)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	likes, dislikes, err := s.answerRepo.CountVotes(c.Context(), answerID)
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":  string(result),
		"likes":    likes,
		"dislikes": dislikes,
	})
}

// AcceptAnswer handles POST /api/answers/:id/accept
func (s *Server) AcceptAnswer(c *fiber.Ctx) error {
	answerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	answer, err := s.answerService.Accept(c.Context(), currentUserID(c), answerID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "answer accepted",
		"data":    answer,
	})
}

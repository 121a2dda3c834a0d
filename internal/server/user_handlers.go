package server

import (
	"fmt"
	"time"

	"quorum/internal/cache"
	"quorum/internal/models"
	"quorum/internal/repository"
	"quorum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userRepo.GetByID(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": user,
	})
}

// UpdateMyProfile handles PUT /api/users/me. Changing the email
// deactivates the account until the new address is verified.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Bio      *string `json:"bio"`
		Avatar   *string `json:"avatar"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	user, err := s.accountService.UpdateProfile(c.Context(), userID, userID, service.ProfileUpdateInput{
		Username: req.Username,
		Email:    req.Email,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	cache.Invalidate(c.Context(), profileCacheKey(userID))

	message := "profile updated"
	if !user.IsActive {
		message = "profile updated, check your email to verify your new address"
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": message,
		"data":    user,
	})
}

// DeleteMyAccount handles DELETE /api/users/me
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if err := s.accountService.DeleteAccount(c.Context(), userID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	cache.Invalidate(c.Context(), profileCacheKey(userID))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "account deleted",
	})
}

// GetAllUsers handles GET /api/users
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	users, err := s.userRepo.List(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": users,
	})
}

func profileCacheKey(userID uint) string {
	return fmt.Sprintf("profile:user:%d", userID)
}

// publicProfile is the cached public view of a user and their questions.
type publicProfile struct {
	User      *models.User       `json:"user"`
	Questions []*models.Question `json:"questions"`
}

// GetUserProfile handles GET /api/users/:id/profile. Served
// cache-aside since profiles are read far more often than written.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var profile publicProfile
	cacheErr := cache.CacheAside(c.Context(), profileCacheKey(userID), &profile, 2*time.Minute, func() error {
		user, err := s.userRepo.GetByID(c.Context(), userID)
		if err != nil {
			return err
		}
		questions, err := s.questionRepo.List(c.Context(), repository.QuestionFilter{OwnerID: userID})
		if err != nil {
			return err
		}
		profile = publicProfile{User: user, Questions: questions}
		return nil
	})
	if cacheErr != nil {
		return models.RespondWithAppError(c, cacheErr)
	}

	// Presence is live state, never cached with the profile.
	online := s.hub != nil && s.hub.IsOnline(userID)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":   profile,
		"online": online,
	})
}

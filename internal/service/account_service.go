package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"quorum/internal/mailer"
	"quorum/internal/models"
	"quorum/internal/repository"
	"quorum/internal/token"
	"quorum/internal/validation"
)

// MailQueue enqueues account emails for asynchronous delivery.
type MailQueue interface {
	Enqueue(ctx context.Context, job mailer.Job) error
}

// RegisterInput carries the sign-up form fields.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
	Bio       string
}

// ProfileUpdateInput carries optional profile fields. Nil fields are
// left untouched.
type ProfileUpdateInput struct {
	Username *string
	Email    *string
	Bio      *string
	Avatar   *string
}

// AccountService handles registration, verification, sessions, and
// profile management. New accounts start inactive and unlock through
// an emailed verification link.
type AccountService struct {
	users  repository.UserRepository
	tokens *token.Service
	mail   MailQueue
}

// NewAccountService creates an account service.
func NewAccountService(users repository.UserRepository, tokens *token.Service, mail MailQueue) *AccountService {
	return &AccountService{users: users, tokens: tokens, mail: mail}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *AccountService) queueVerification(ctx context.Context, user *models.User) error {
	return s.mail.Enqueue(ctx, mailer.Job{
		Email:   user.Email,
		UserID:  user.ID,
		Action:  mailer.ActionVerify,
		Message: "please verify your account",
	})
}

// Register creates an inactive account and queues the verification
// email. The caller cannot log in until the account is verified.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Password != in.Password2 {
		return nil, models.NewValidationError("passwords do not match")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("user with this email already exists")
	}
	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("user with this username already exists")
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
		Bio:      strings.TrimSpace(in.Bio),
		IsActive: false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := s.queueVerification(ctx, user); err != nil {
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return models.NewValidationError("Activation link has expired!")
	case errors.Is(err, token.ErrMalformed):
		return models.NewValidationError("Activation link is invalid!")
	default:
		return models.NewInternalError(err)
	}
}

// Verify activates the account referenced by an emailed action token
// and returns a fresh session pair. Verifying an already active
// account is a no-op that still returns a session.
func (s *AccountService) Verify(ctx context.Context, tokenString string) (*models.User, token.Pair, error) {
	id, err := s.tokens.Decode(tokenString)
	if err != nil {
		return nil, token.Pair{}, mapTokenError(err)
	}
	if id.Kind != token.KindAction {
		return nil, token.Pair{}, models.NewValidationError("Activation link is invalid!")
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, token.Pair{}, err
	}
	if err := s.tokens.VerifyIdentity(id, user); err != nil {
		return nil, token.Pair{}, models.NewValidationError("Activation link is invalid!")
	}

	if !user.IsActive {
		if err := s.users.SetActive(ctx, user.ID, true); err != nil {
			return nil, token.Pair{}, err
		}
		user.IsActive = true
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, token.Pair{}, models.NewInternalError(err)
	}
	return user, pair, nil
}

// ResendVerification queues another verification email for an
// inactive account.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewValidationError("user with this Email not found!")
	}
	if user.IsActive {
		return models.NewValidationError("your account has already been verified")
	}
	if err := s.queueVerification(ctx, user); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Login authenticates an active account and returns a session pair.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, token.Pair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, token.Pair{}, err
	}
	if user == nil {
		return nil, token.Pair{}, models.NewUnauthorizedError("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, token.Pair{}, models.NewUnauthorizedError("invalid email or password")
	}
	if !user.IsActive {
		return nil, token.Pair{}, models.NewUnauthorizedError("account is not active, please verify your email")
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, token.Pair{}, models.NewInternalError(err)
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new session pair. Blocked
// tokens are rejected.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	id, err := s.tokens.Decode(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return token.Pair{}, models.NewUnauthorizedError("refresh token has expired, please log in again")
		}
		return token.Pair{}, models.NewUnauthorizedError("refresh token is invalid")
	}
	if id.Kind != token.KindRefresh {
		return token.Pair{}, models.NewUnauthorizedError("refresh token is invalid")
	}

	blocked, err := s.tokens.IsBlacklisted(ctx, id.JTI)
	if err != nil {
		return token.Pair{}, models.NewInternalError(err)
	}
	if blocked {
		return token.Pair{}, models.NewUnauthorizedError("refresh token has been blocked")
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return token.Pair{}, models.NewUnauthorizedError("token subject no longer exists")
	}
	if !user.IsActive {
		return token.Pair{}, models.NewUnauthorizedError("account is not active")
	}
	if err := s.tokens.VerifyIdentity(id, user); err != nil {
		return token.Pair{}, models.NewUnauthorizedError(err.Error())
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return token.Pair{}, models.NewInternalError(err)
	}
	return pair, nil
}

// Logout blocks a refresh token for its remaining lifetime.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	id, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return models.NewUnauthorizedError("refresh token is invalid")
	}
	if id.Kind != token.KindRefresh {
		return models.NewUnauthorizedError("refresh token is invalid")
	}
	if err := s.tokens.Blacklist(ctx, id); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ChangePassword updates the password of a logged-in user after
// checking the old one.
func (s *AccountService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword, confirm string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return models.NewValidationError("old password is incorrect")
	}
	if newPassword != confirm {
		return models.NewValidationError("passwords do not match")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdateFields(ctx, userID, map[string]interface{}{"password": hashed})
}

// RequestPasswordReset queues a password reset email.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewValidationError("user with this Email not found!")
	}
	if err := s.mail.Enqueue(ctx, mailer.Job{
		Email:   user.Email,
		UserID:  user.ID,
		Action:  mailer.ActionResetPassword,
		Message: "use the link below to reset your password",
	}); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// SetPassword completes a password reset using the emailed action
// token.
func (s *AccountService) SetPassword(ctx context.Context, tokenString, newPassword, confirm string) error {
	id, err := s.tokens.Decode(tokenString)
	if err != nil {
		return mapTokenError(err)
	}
	if id.Kind != token.KindAction {
		return models.NewValidationError("Activation link is invalid!")
	}
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return err
	}
	if err := s.tokens.VerifyIdentity(id, user); err != nil {
		return models.NewValidationError("Activation link is invalid!")
	}
	if newPassword != confirm {
		return models.NewValidationError("passwords do not match")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"password": hashed})
}

// UpdateProfile edits a user's own profile. Changing the email
// deactivates the account and queues a fresh verification mail, so
// the address on file is always a confirmed one.
func (s *AccountService) UpdateProfile(ctx context.Context, actorID, targetID uint, in ProfileUpdateInput) (*models.User, error) {
	if actorID != targetID {
		return nil, models.NewForbiddenError("you can only edit your own profile")
	}
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	emailChanged := false

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if username != user.Username {
			if existing, err := s.users.GetByUsername(ctx, username); err != nil {
				return nil, err
			} else if existing != nil {
				return nil, models.NewConflictError("user with this username already exists")
			}
			fields["username"] = username
			user.Username = username
		}
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if email != user.Email {
			if existing, err := s.users.GetByEmail(ctx, email); err != nil {
				return nil, err
			} else if existing != nil {
				return nil, models.NewConflictError("user with this email already exists")
			}
			fields["email"] = email
			fields["is_active"] = false
			user.Email = email
			user.IsActive = false
			emailChanged = true
		}
	}
	if in.Bio != nil {
		fields["bio"] = strings.TrimSpace(*in.Bio)
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Avatar != nil {
		fields["avatar"] = strings.TrimSpace(*in.Avatar)
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}

	if len(fields) > 0 {
		if err := s.users.UpdateFields(ctx, targetID, fields); err != nil {
			return nil, err
		}
	}
	if emailChanged {
		if err := s.queueVerification(ctx, user); err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return user, nil
}

// DeleteAccount removes a user's own account.
func (s *AccountService) DeleteAccount(ctx context.Context, actorID, targetID uint) error {
	if actorID != targetID {
		return models.NewForbiddenError("you can only delete your own account")
	}
	return s.users.Delete(ctx, targetID)
}

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quorum/internal/config"
	"quorum/internal/database"
	"quorum/internal/models"
)

func newTestServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Port:            "8080",
		JWTSecret:       "integration-test-secret-0123456789",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 168 * time.Hour,
	}

	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	return srv, app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// createActiveUser inserts a verified user directly, skipping the
// email round-trip.
func createActiveUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("SecurePass12!@"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hashed),
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// TestAPIFlow drives the API end to end through the router, from
// registration to an accepted answer. One test function because the
// Prometheus middleware registers global collectors.
func TestAPIFlow(t *testing.T) {
	srv, app, db := newTestServer(t)

	var askerToken, answererToken string
	var questionSlug string
	var answerID float64

	t.Run("health", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, "/health/live", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "up", body["status"])
	})

	t.Run("register and verify", func(t *testing.T) {
		status, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username":  "asker",
			"email":     "asker@example.com",
			"password":  "SecurePass12!@",
			"password2": "SecurePass12!@",
		})
		require.Equal(t, http.StatusCreated, status)

		// Not verified yet, so login is refused.
		status, _ = doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "asker@example.com", "password": "SecurePass12!@",
		})
		require.Equal(t, http.StatusUnauthorized, status)

		user, err := srv.userRepo.GetByEmail(t.Context(), "asker@example.com")
		require.NoError(t, err)
		require.NotNil(t, user)
		actionToken, err := srv.tokens.IssueActionToken(user, time.Minute)
		require.NoError(t, err)

		status, body := doJSON(t, app, http.MethodGet, "/api/auth/verify/"+actionToken, "", nil)
		require.Equal(t, http.StatusOK, status)
		askerToken, _ = body["token"].(string)
		require.NotEmpty(t, askerToken)
	})

	t.Run("login", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "asker@example.com", "password": "SecurePass12!@",
		})
		require.Equal(t, http.StatusOK, status)
		askerToken, _ = body["token"].(string)
		require.NotEmpty(t, askerToken)
	})

	t.Run("create question requires auth", func(t *testing.T) {
		status, _ := doJSON(t, app, http.MethodPost, "/api/questions/", "", map[string]any{
			"title": "nope", "body": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("create and read question", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/api/questions/", askerToken, map[string]any{
			"title": "How do I read from a closed channel?",
			"body":  "What happens on receive after close?",
			"tags":  []string{"Go", "Channels"},
		})
		require.Equal(t, http.StatusCreated, status)
		data := body["data"].(map[string]any)
		questionSlug = data["slug"].(string)
		require.NotEmpty(t, questionSlug)

		status, body = doJSON(t, app, http.MethodGet, "/api/questions/"+questionSlug, "", nil)
		require.Equal(t, http.StatusOK, status)
		data = body["data"].(map[string]any)
		assert.Equal(t, "How do I read from a closed channel?", data["title"])

		tags := data["tags"].([]any)
		assert.Len(t, tags, 2)
	})

	t.Run("post answer", func(t *testing.T) {
		answerer := createActiveUser(t, db, "answerer")
		_ = answerer

		status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "answerer@example.com", "password": "SecurePass12!@",
		})
		require.Equal(t, http.StatusOK, status)
		answererToken = body["token"].(string)

		status, body = doJSON(t, app, http.MethodPost, "/api/questions/"+questionSlug+"/answers", answererToken, map[string]string{
			"body": "Receive yields the zero value immediately.",
		})
		require.Equal(t, http.StatusCreated, status)
		data := body["data"].(map[string]any)
		answerID = data["id"].(float64)
		require.NotZero(t, answerID)
	})

	t.Run("vote toggle", func(t *testing.T) {
		path := fmt.Sprintf("/api/answers/%.0f/like", answerID)

		status, body := doJSON(t, app, http.MethodPost, path, askerToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "liked", body["message"])
		assert.EqualValues(t, 1, body["likes"])

		status, body = doJSON(t, app, http.MethodPost, path, askerToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "removed", body["message"])
		assert.EqualValues(t, 0, body["likes"])

		status, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/answers/%.0f/dislike", answerID), askerToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "disliked", body["message"])
		assert.EqualValues(t, 1, body["dislikes"])

		status, body = doJSON(t, app, http.MethodPost, path, askerToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "liked", body["message"])
		assert.EqualValues(t, 1, body["likes"])
		assert.EqualValues(t, 0, body["dislikes"])
	})

	t.Run("accept answer", func(t *testing.T) {
		path := fmt.Sprintf("/api/answers/%.0f/accept", answerID)

		// Only the question owner can accept.
		status, _ := doJSON(t, app, http.MethodPost, path, answererToken, nil)
		require.Equal(t, http.StatusForbidden, status)

		status, body := doJSON(t, app, http.MethodPost, path, askerToken, nil)
		require.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]any)
		assert.Equal(t, true, data["accepted"])

		// Accepting twice is refused.
		status, _ = doJSON(t, app, http.MethodPost, path, askerToken, nil)
		require.Equal(t, http.StatusConflict, status)
	})

	t.Run("comments and replies", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/answers/%.0f/comments", answerID), askerToken, map[string]string{
			"body": "What about a nil channel?",
		})
		require.Equal(t, http.StatusCreated, status)
		commentID := body["data"].(map[string]any)["id"].(float64)

		status, body = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/comments/%.0f/replies", commentID), answererToken, map[string]string{
			"body": "A nil channel blocks forever.",
		})
		require.Equal(t, http.StatusCreated, status)
		require.NotNil(t, body["data"])

		status, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/answers/%.0f/comments", answerID), "", nil)
		require.Equal(t, http.StatusOK, status)
		comments := body["data"].([]any)
		require.Len(t, comments, 1)
		replies := comments[0].(map[string]any)["replies"].([]any)
		assert.Len(t, replies, 1)
	})

	t.Run("refresh and logout", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "asker@example.com", "password": "SecurePass12!@",
		})
		require.Equal(t, http.StatusOK, status)
		refresh := body["refresh"].(string)

		status, body = doJSON(t, app, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh": refresh})
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, body["token"])

		status, _ = doJSON(t, app, http.MethodPost, "/api/auth/logout", "", map[string]string{"refresh": refresh})
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("me", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, "/api/users/me", askerToken, nil)
		require.Equal(t, http.StatusOK, status)
		data := body["data"].(map[string]any)
		assert.Equal(t, "asker", data["username"])
	})

	t.Run("admin surface", func(t *testing.T) {
		admin := createActiveUser(t, db, "moderator")
		require.NoError(t, db.Model(admin).Update("is_admin", true).Error)

		status, body := doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "moderator@example.com", "password": "SecurePass12!@",
		})
		require.Equal(t, http.StatusOK, status)
		adminToken := body["token"].(string)

		// Regular users cannot reach the admin surface.
		status, _ = doJSON(t, app, http.MethodGet, "/api/users/", askerToken, nil)
		require.Equal(t, http.StatusForbidden, status)
		status, _ = doJSON(t, app, http.MethodPost, "/api/tags/", askerToken, map[string]string{"name": "Generics"})
		require.Equal(t, http.StatusForbidden, status)

		status, body = doJSON(t, app, http.MethodGet, "/api/users/", adminToken, nil)
		require.Equal(t, http.StatusOK, status)
		require.NotEmpty(t, body["data"])

		status, body = doJSON(t, app, http.MethodPost, "/api/tags/", adminToken, map[string]string{"name": "Generics"})
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "generics", body["data"].(map[string]any)["slug"])

		// Duplicate names are refused.
		status, _ = doJSON(t, app, http.MethodPost, "/api/tags/", adminToken, map[string]string{"name": "Generics"})
		require.Equal(t, http.StatusConflict, status)

		// Announcements are admin only, and without Redis the fanout
		// reports unavailable rather than silently dropping.
		status, _ = doJSON(t, app, http.MethodPost, "/api/notifications/broadcast", askerToken, map[string]string{"message": "hi"})
		require.Equal(t, http.StatusForbidden, status)
		status, _ = doJSON(t, app, http.MethodPost, "/api/notifications/broadcast", adminToken, map[string]string{"message": "   "})
		require.Equal(t, http.StatusBadRequest, status)
		status, _ = doJSON(t, app, http.MethodPost, "/api/notifications/broadcast", adminToken, map[string]string{"message": "maintenance at noon"})
		require.Equal(t, http.StatusServiceUnavailable, status)
	})

	t.Run("public profile shows presence", func(t *testing.T) {
		var asker models.User
		require.NoError(t, db.Where("username = ?", "asker").First(&asker).Error)

		status, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/users/%d/profile", asker.ID), "", nil)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, body["data"])
		// No hub without Redis, so nobody reads as online.
		assert.Equal(t, false, body["online"])
	})
}

package service

import (
	"fmt"
	"testing"

	"quorum/internal/database"
	"quorum/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database with the full
// schema applied. Each test gets its own database name so parallel
// tests never share state.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
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

func createTestQuestion(t *testing.T, db *gorm.DB, owner *models.User, title string) *models.Question {
	t.Helper()

	question := &models.Question{
		OwnerID: owner.ID,
		Title:   title,
		Body:    "body of " + title,
		Slug:    models.Slugify(title),
	}
	require.NoError(t, db.Create(question).Error)
	return question
}

func createTestAnswer(t *testing.T, db *gorm.DB, owner *models.User, question *models.Question) *models.Answer {
	t.Helper()

	answer := &models.Answer{
		OwnerID:    owner.ID,
		QuestionID: question.ID,
		Body:       "an answer",
	}
	require.NoError(t, db.Create(answer).Error)
	return answer
}

package service

import (
	"context"
	"testing"

	"quorum/internal/models"
	"quorum/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAnswerService(db *gorm.DB) *AnswerService {
	return NewAnswerService(db, repository.NewAnswerRepository(db), nil)
}

func userScore(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.Score
}

func TestAnswerService_Accept(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := newAnswerService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "accept-asker")
	answerer := createTestUser(t, db, "accept-answerer")
	question := createTestQuestion(t, db, asker, "accepting answers")
	answer := createTestAnswer(t, db, answerer, question)

	accepted, err := svc.Accept(ctx, asker.ID, answer.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)

	// Acceptance is persisted and the answerer earned a point.
	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	assert.True(t, stored.Accepted)
	assert.Equal(t, 1, userScore(t, db, answerer.ID))
	assert.Equal(t, 0, userScore(t, db, asker.ID))
}

func TestAnswerService_AcceptOnlyQuestionOwner(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := newAnswerService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "owner-asker")
	answerer := createTestUser(t, db, "owner-answerer")
	stranger := createTestUser(t, db, "owner-stranger")
	question := createTestQuestion(t, db, asker, "owner only accept")
	answer := createTestAnswer(t, db, answerer, question)

	for _, actor := range []*models.User{answerer, stranger} {
		_, err := svc.Accept(ctx, actor.ID, answer.ID)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "FORBIDDEN", appErr.Code)
	}

	// Nothing changed.
	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	assert.False(t, stored.Accepted)
	assert.Equal(t, 0, userScore(t, db, answerer.ID))
}

func TestAnswerService_AcceptIsSingleAndFinal(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := newAnswerService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "single-asker")
	answerer := createTestUser(t, db, "single-answerer")
	question := createTestQuestion(t, db, asker, "one accepted answer")
	first := createTestAnswer(t, db, answerer, question)
	second := createTestAnswer(t, db, answerer, question)

	_, err := svc.Accept(ctx, asker.ID, first.ID)
	require.NoError(t, err)

	t.Run("same answer twice", func(t *testing.T) {
		_, err := svc.Accept(ctx, asker.ID, first.ID)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "CONFLICT", appErr.Code)
	})

	t.Run("second answer on same question", func(t *testing.T) {
		_, err := svc.Accept(ctx, asker.ID, second.ID)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "CONFLICT", appErr.Code)
	})

	// Reputation was credited exactly once.
	assert.Equal(t, 1, userScore(t, db, answerer.ID))

	var acceptedCount int64
	require.NoError(t, db.Model(&models.Answer{}).
		Where("question_id = ? AND accepted = ?", question.ID, true).
		Count(&acceptedCount).Error)
	assert.Equal(t, int64(1), acceptedCount)
}

func TestAnswerService_AcceptUniqueInStorage(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := newAnswerService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "race-asker")
	answerer := createTestUser(t, db, "race-answerer")
	question := createTestQuestion(t, db, asker, "concurrent accepts")
	first := createTestAnswer(t, db, answerer, question)
	second := createTestAnswer(t, db, answerer, question)

	t.Run("index rejects a second accepted row", func(t *testing.T) {
		_, err := svc.Accept(ctx, asker.ID, first.ID)
		require.NoError(t, err)

		// Bypass the service precondition and write directly, the way
		// a second session would after reading a stale count.
		err = db.Model(&models.Answer{}).
			Where("id = ?", second.ID).
			Update("accepted", true).Error
		require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	// Reset for the interleaving case below.
	require.NoError(t, db.Exec("UPDATE answers SET accepted = ?", false).Error)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", answerer.ID).Update("score", 0).Error)

	t.Run("losing accept rolls back entirely", func(t *testing.T) {
		// Mark the sibling accepted from a callback that fires right
		// between Accept's precondition count and its own update,
		// reproducing two owners' sessions committing around the check.
		raced := false
		require.NoError(t, db.Callback().Update().Before("gorm:update").
			Register("competing_accept", func(op *gorm.DB) {
				if raced || op.Statement.Table != "answers" {
					return
				}
				raced = true
				op.Session(&gorm.Session{NewDB: true}).
					Exec("UPDATE answers SET accepted = ? WHERE id = ?", true, second.ID)
			}))
		t.Cleanup(func() {
			require.NoError(t, db.Callback().Update().Remove("competing_accept"))
		})

		_, err := svc.Accept(ctx, asker.ID, first.ID)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "CONFLICT", appErr.Code)

		// The losing transaction left nothing behind, including the
		// competing write it collided with and the reputation credit.
		var acceptedCount int64
		require.NoError(t, db.Model(&models.Answer{}).
			Where("question_id = ? AND accepted = ?", question.ID, true).
			Count(&acceptedCount).Error)
		assert.Equal(t, int64(0), acceptedCount)
		assert.Equal(t, 0, userScore(t, db, answerer.ID))
	})
}

func TestAnswerService_AcceptPreconditionOrder(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := newAnswerService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "order-asker")
	answerer := createTestUser(t, db, "order-answerer")
	stranger := createTestUser(t, db, "order-stranger")
	question := createTestQuestion(t, db, asker, "precondition order")
	answer := createTestAnswer(t, db, answerer, question)

	t.Run("missing answer reports not found regardless of actor", func(t *testing.T) {
		_, err := svc.Accept(ctx, stranger.ID, 9999)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "NOT_FOUND", appErr.Code)
	})

	_, err := svc.Accept(ctx, asker.ID, answer.ID)
	require.NoError(t, err)

	t.Run("non-owner on accepted answer gets forbidden, not conflict", func(t *testing.T) {
		_, err := svc.Accept(ctx, stranger.ID, answer.ID)
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "FORBIDDEN", appErr.Code)
	})
}

func TestAnswerService_CreateAndCounts(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := newAnswerService(db)
	voteSvc := NewVoteService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "create-asker")
	answerer := createTestUser(t, db, "create-answerer")
	question := createTestQuestion(t, db, asker, "creating answers")

	answer, err := svc.Create(ctx, CreateAnswerInput{
		OwnerID:    answerer.ID,
		QuestionID: question.ID,
		Body:       "use a table test",
	})
	require.NoError(t, err)
	require.NotZero(t, answer.ID)

	_, err = voteSvc.SetVote(ctx, asker.ID, answer.ID, true)
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, answer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Likes)
	assert.Equal(t, int64(0), got.Dislikes)

	t.Run("empty body rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateAnswerInput{OwnerID: answerer.ID, QuestionID: question.ID, Body: "   "})
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	})

	t.Run("missing question rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, CreateAnswerInput{OwnerID: answerer.ID, QuestionID: 999, Body: "hi"})
		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "NOT_FOUND", appErr.Code)
	})
}

func TestAnswerService_UpdateDeleteOwnership(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := newAnswerService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "edit-asker")
	answerer := createTestUser(t, db, "edit-answerer")
	question := createTestQuestion(t, db, asker, "editing answers")
	answer := createTestAnswer(t, db, answerer, question)

	_, err := svc.Update(ctx, asker.ID, answer.ID, "hijacked")
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	updated, err := svc.Update(ctx, answerer.ID, answer.ID, "revised answer")
	require.NoError(t, err)
	assert.Equal(t, "revised answer", updated.Body)

	require.ErrorAs(t, svc.Delete(ctx, asker.ID, answer.ID), &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)
	require.NoError(t, svc.Delete(ctx, answerer.ID, answer.ID))
}

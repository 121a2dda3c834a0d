package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quorum/internal/models"
	"quorum/internal/repository"
)

func newCommentService(db *gorm.DB) *CommentService {
	return NewCommentService(
		repository.NewCommentRepository(db),
		repository.NewReplyRepository(db),
		repository.NewAnswerRepository(db),
	)
}

func TestCommentService_CreateComment(t *testing.T) {
	db := setupTestDB(t)
	svc := newCommentService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "camille")
	answerer := createTestUser(t, db, "dennis")
	question := createTestQuestion(t, db, asker, "How do I profile allocations?")
	answer := createTestAnswer(t, db, answerer, question)

	comment, err := svc.CreateComment(ctx, CreateCommentInput{
		OwnerID:  asker.ID,
		AnswerID: answer.ID,
		Body:     "Does this also cover stack allocations?",
	})
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)
	assert.Equal(t, asker.ID, comment.OwnerID)

	_, err = svc.CreateComment(ctx, CreateCommentInput{OwnerID: asker.ID, AnswerID: answer.ID, Body: "   "})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = svc.CreateComment(ctx, CreateCommentInput{OwnerID: asker.ID, AnswerID: 9999, Body: "hello"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCommentService_ReplyParentMustShareComment(t *testing.T) {
	db := setupTestDB(t)
	svc := newCommentService(db)
	ctx := context.Background()

	asker := createTestUser(t, db, "elena")
	question := createTestQuestion(t, db, asker, "Where do goroutine stacks live?")
	answer := createTestAnswer(t, db, asker, question)

	first, err := svc.CreateComment(ctx, CreateCommentInput{OwnerID: asker.ID, AnswerID: answer.ID, Body: "first thread"})
	require.NoError(t, err)
	second, err := svc.CreateComment(ctx, CreateCommentInput{OwnerID: asker.ID, AnswerID: answer.ID, Body: "second thread"})
	require.NoError(t, err)

	parent, err := svc.CreateReply(ctx, CreateReplyInput{OwnerID: asker.ID, CommentID: first.ID, Body: "under the first"})
	require.NoError(t, err)

	// A reply may only nest under a parent from its own comment.
	_, err = svc.CreateReply(ctx, CreateReplyInput{
		OwnerID:   asker.ID,
		CommentID: second.ID,
		ParentID:  &parent.ID,
		Body:      "crossing threads",
	})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "different comment")

	missing := uint(9999)
	_, err = svc.CreateReply(ctx, CreateReplyInput{OwnerID: asker.ID, CommentID: first.ID, ParentID: &missing, Body: "nowhere"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCommentService_ReplyDepthGuard(t *testing.T) {
	db := setupTestDB(t)
	svc := newCommentService(db)
	ctx := context.Background()

	user := createTestUser(t, db, "felix")
	question := createTestQuestion(t, db, user, "Why does my channel deadlock?")
	answer := createTestAnswer(t, db, user, question)
	comment, err := svc.CreateComment(ctx, CreateCommentInput{OwnerID: user.ID, AnswerID: answer.ID, Body: "thread root"})
	require.NoError(t, err)

	var parentID *uint
	for i := 0; i < maxReplyDepth; i++ {
		reply, err := svc.CreateReply(ctx, CreateReplyInput{
			OwnerID:   user.ID,
			CommentID: comment.ID,
			ParentID:  parentID,
			Body:      fmt.Sprintf("level %d", i),
		})
		require.NoError(t, err, "level %d should be allowed", i)
		parentID = &reply.ID
	}

	// One more level crosses the nesting limit.
	_, err = svc.CreateReply(ctx, CreateReplyInput{
		OwnerID:   user.ID,
		CommentID: comment.ID,
		ParentID:  parentID,
		Body:      "too deep",
	})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "nested too deeply")
}

func TestCommentService_RepliesTree(t *testing.T) {
	db := setupTestDB(t)
	svc := newCommentService(db)
	ctx := context.Background()

	user := createTestUser(t, db, "gina")
	question := createTestQuestion(t, db, user, "What does errors.Is actually compare?")
	answer := createTestAnswer(t, db, user, question)
	comment, err := svc.CreateComment(ctx, CreateCommentInput{OwnerID: user.ID, AnswerID: answer.ID, Body: "root"})
	require.NoError(t, err)

	top, err := svc.CreateReply(ctx, CreateReplyInput{OwnerID: user.ID, CommentID: comment.ID, Body: "top level"})
	require.NoError(t, err)
	child, err := svc.CreateReply(ctx, CreateReplyInput{OwnerID: user.ID, CommentID: comment.ID, ParentID: &top.ID, Body: "child"})
	require.NoError(t, err)
	_, err = svc.CreateReply(ctx, CreateReplyInput{OwnerID: user.ID, CommentID: comment.ID, ParentID: &child.ID, Body: "grandchild"})
	require.NoError(t, err)
	_, err = svc.CreateReply(ctx, CreateReplyInput{OwnerID: user.ID, CommentID: comment.ID, Body: "another top level"})
	require.NoError(t, err)

	tree, err := svc.RepliesTree(ctx, comment.ID)
	require.NoError(t, err)
	require.Len(t, tree, 2)

	var nested *models.Reply
	for _, r := range tree {
		assert.Nil(t, r.ParentID)
		if r.ID == top.ID {
			nested = r
		}
	}
	require.NotNil(t, nested)
	require.Len(t, nested.Children, 1)
	assert.Equal(t, child.ID, nested.Children[0].ID)
	require.Len(t, nested.Children[0].Children, 1)
	assert.Equal(t, "grandchild", nested.Children[0].Children[0].Body)

	withReplies, err := svc.ListCommentsWithReplies(ctx, answer.ID)
	require.NoError(t, err)
	require.Len(t, withReplies, 1)
	assert.Len(t, withReplies[0].Replies, 2)
}

func TestCommentService_Ownership(t *testing.T) {
	db := setupTestDB(t)
	svc := newCommentService(db)
	ctx := context.Background()

	owner := createTestUser(t, db, "hana")
	stranger := createTestUser(t, db, "igor")
	question := createTestQuestion(t, db, owner, "Is append always amortized O(1)?")
	answer := createTestAnswer(t, db, owner, question)

	comment, err := svc.CreateComment(ctx, CreateCommentInput{OwnerID: owner.ID, AnswerID: answer.ID, Body: "mine"})
	require.NoError(t, err)
	reply, err := svc.CreateReply(ctx, CreateReplyInput{OwnerID: owner.ID, CommentID: comment.ID, Body: "also mine"})
	require.NoError(t, err)

	var appErr *models.AppError

	_, err = svc.UpdateComment(ctx, stranger.ID, comment.ID, "hijacked")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	err = svc.DeleteComment(ctx, stranger.ID, comment.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	_, err = svc.UpdateReply(ctx, stranger.ID, reply.ID, "hijacked")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	err = svc.DeleteReply(ctx, stranger.ID, reply.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)

	updated, err := svc.UpdateComment(ctx, owner.ID, comment.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Body)

	require.NoError(t, svc.DeleteReply(ctx, owner.ID, reply.ID))
	_, err = repository.NewReplyRepository(db).GetByID(ctx, reply.ID)
	require.Error(t, err)
	assert.True(t, errors.As(err, &appErr) && appErr.Code == "NOT_FOUND")
}

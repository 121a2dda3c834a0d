package service

import (
	"context"
	"strings"

	"quorum/internal/models"
	"quorum/internal/repository"
)

// maxReplyDepth bounds how deep a reply thread can nest. The guard
// also stops ancestor walks on corrupt parent chains.
const maxReplyDepth = 32

// CreateCommentInput carries validated fields for creating a comment.
type CreateCommentInput struct {
	OwnerID  uint
	AnswerID uint
	Body     string
}

// CreateReplyInput carries validated fields for creating a reply.
// ParentID is nil for a top-level reply on the comment.
type CreateReplyInput struct {
	OwnerID   uint
	CommentID uint
	ParentID  *uint
	Body      string
}

// CommentService handles comments on answers and their reply threads.
type CommentService struct {
	comments repository.CommentRepository
	replies  repository.ReplyRepository
	answers  repository.AnswerRepository
}

// NewCommentService creates a comment service.
func NewCommentService(comments repository.CommentRepository, replies repository.ReplyRepository, answers repository.AnswerRepository) *CommentService {
	return &CommentService{comments: comments, replies: replies, answers: answers}
}

// CreateComment posts a comment on an answer.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("comment body is required")
	}
	if _, err := s.answers.GetByID(ctx, in.AnswerID); err != nil {
		return nil, err
	}
	comment := &models.Comment{
		OwnerID:  in.OwnerID,
		AnswerID: in.AnswerID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}
	return comment, nil
}

// UpdateComment edits a comment. Only the comment owner may edit.
func (s *CommentService) UpdateComment(ctx context.Context, actorID, commentID uint, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.NewValidationError("comment body is required")
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.OwnerID != actorID {
		return nil, models.NewForbiddenError("you can only edit your own comments")
	}
	comment.Body = body
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}
	return comment, nil
}

// DeleteComment removes a comment. Only the comment owner may delete.
func (s *CommentService) DeleteComment(ctx context.Context, actorID, commentID uint) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.OwnerID != actorID {
		return models.NewForbiddenError("you can only delete your own comments")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// replyDepth walks parent links up from parentID and returns how many
// ancestors it found. Errors out past maxReplyDepth rather than
// looping forever on a corrupt chain.
func (s *CommentService) replyDepth(ctx context.Context, parentID uint) (int, error) {
	depth := 0
	current := parentID
	for {
		depth++
		if depth > maxReplyDepth {
			return depth, models.NewValidationError("reply thread is nested too deeply")
		}
		parent, err := s.replies.GetByID(ctx, current)
		if err != nil {
			return depth, err
		}
		if parent.ParentID == nil {
			return depth, nil
		}
		current = *parent.ParentID
	}
}

// CreateReply posts a reply under a comment, optionally nested under
// another reply of the same comment.
func (s *CommentService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.Reply, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("reply body is required")
	}
	if _, err := s.comments.GetByID(ctx, in.CommentID); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.replies.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.CommentID != in.CommentID {
			return nil, models.NewValidationError("parent reply belongs to a different comment")
		}
		if _, err := s.replyDepth(ctx, *in.ParentID); err != nil {
			return nil, err
		}
	}
	reply := &models.Reply{
		OwnerID:   in.OwnerID,
		CommentID: in.CommentID,
		ParentID:  in.ParentID,
		Body:      body,
	}
	if err := s.replies.Create(ctx, reply); err != nil {
		return nil, models.NewInternalError(err)
	}
	return reply, nil
}

// UpdateReply edits a reply. Only the reply owner may edit.
func (s *CommentService) UpdateReply(ctx context.Context, actorID, replyID uint, body string) (*models.Reply, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.NewValidationError("reply body is required")
	}
	reply, err := s.replies.GetByID(ctx, replyID)
	if err != nil {
		return nil, err
	}
	if reply.OwnerID != actorID {
		return nil, models.NewForbiddenError("you can only edit your own replies")
	}
	reply.Body = body
	if err := s.replies.Update(ctx, reply); err != nil {
		return nil, models.NewInternalError(err)
	}
	return reply, nil
}

// DeleteReply removes a reply. Only the reply owner may delete.
func (s *CommentService) DeleteReply(ctx context.Context, actorID, replyID uint) error {
	reply, err := s.replies.GetByID(ctx, replyID)
	if err != nil {
		return err
	}
	if reply.OwnerID != actorID {
		return models.NewForbiddenError("you can only delete your own replies")
	}
	if err := s.replies.Delete(ctx, replyID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// RepliesTree loads all replies of a comment and assembles them into
// the nested structure the API serves. Siblings keep the most
// recently modified first ordering of the flat query.
func (s *CommentService) RepliesTree(ctx context.Context, commentID uint) ([]*models.Reply, error) {
	flat, err := s.replies.ListByComment(ctx, commentID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	byID := make(map[uint]*models.Reply, len(flat))
	for _, r := range flat {
		r.Children = []*models.Reply{}
		byID[r.ID] = r
	}

	roots := make([]*models.Reply, 0, len(flat))
	for _, r := range flat {
		if r.ParentID == nil {
			roots = append(roots, r)
			continue
		}
		parent, ok := byID[*r.ParentID]
		if !ok {
			// Orphaned by a parent that no longer exists, surface at top level.
			roots = append(roots, r)
			continue
		}
		parent.Children = append(parent.Children, r)
	}
	return roots, nil
}

// ListCommentsWithReplies returns an answer's comments with their
// reply trees attached.
func (s *CommentService) ListCommentsWithReplies(ctx context.Context, answerID uint) ([]*models.Comment, error) {
	comments, err := s.comments.ListByAnswer(ctx, answerID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, comment := range comments {
		tree, err := s.RepliesTree(ctx, comment.ID)
		if err != nil {
			return nil, err
		}
		comment.Replies = tree
	}
	return comments, nil
}

package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quorum/internal/repository"
	"quorum/internal/token"
)

// Worker drains the job queue and delivers account emails. Action
// tokens are minted here, at send time, so their short lifetime starts
// when the mail actually goes out rather than when it was requested.
type Worker struct {
	queue    *Queue
	users    repository.UserRepository
	tokens   *token.Service
	sender   Sender
	domain   string
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewWorker wires a worker over the shared queue.
func NewWorker(queue *Queue, users repository.UserRepository, tokens *token.Service, sender Sender, domain string, tokenTTL time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		users:    users,
		tokens:   tokens,
		sender:   sender,
		domain:   domain,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mail worker started")
	for {
		job, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("mail worker stopping")
				return nil
			}
			w.logger.Error("dequeue failed", slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := w.Handle(ctx, job); err != nil {
			w.logger.Error("mail job failed",
				slog.String("action", job.Action),
				slog.Uint64("user_id", uint64(job.UserID)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Handle delivers a single job.
func (w *Worker) Handle(ctx context.Context, job *Job) error {
	user, err := w.users.GetByID(ctx, job.UserID)
	if err != nil {
		return err
	}

	var subject, body string
	switch job.Action {
	case ActionVerify:
		t, err := w.tokens.IssueActionToken(user, w.tokenTTL)
		if err != nil {
			return err
		}
		subject = "Verify your account"
		body = fmt.Sprintf("%s\n\nhttp://%s/api/auth/verify/%s", job.Message, w.domain, t)
	case ActionResetPassword:
		t, err := w.tokens.IssueActionToken(user, w.tokenTTL)
		if err != nil {
			return err
		}
		subject = "Reset your password"
		body = fmt.Sprintf("%s\n\nhttp://%s/api/auth/password/reset/%s", job.Message, w.domain, t)
	default:
		return errors.New("unknown mail action: " + job.Action)
	}

	if err := w.sender.Send(job.Email, subject, body); err != nil {
		return err
	}
	w.logger.Info("mail delivered",
		slog.String("action", job.Action),
		slog.String("to", job.Email),
	)
	return nil
}

// Package mailer hands verification and password-reset emails to an
// out-of-process worker through a Redis-backed job queue. The API
// process only enqueues; token minting, URL construction, and SMTP
// delivery all happen in the worker.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"
)

// Actions understood by the worker.
const (
	ActionVerify        = "verify"
	ActionResetPassword = "reset_password"
)

const queueKey = "mailer:jobs"

// Job is the argument contract between the API and the mail worker.
type Job struct {
	Email   string `json:"email"`
	UserID  uint   `json:"user_id"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Queue publishes jobs onto the Redis list consumed by the worker.
// With a nil client enqueues are dropped with a warning, keeping the
// request path fail-open like the rest of the Redis integrations.
type Queue struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewQueue creates a job queue over the given Redis client.
func NewQueue(rdb *redis.Client, logger *slog.Logger) *Queue {
	return &Queue{rdb: rdb, logger: logger}
}

// Enqueue pushes a job for asynchronous delivery.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if q.rdb == nil {
		if q.logger != nil {
			q.logger.Warn("mail queue unavailable, dropping job",
				slog.String("action", job.Action),
				slog.Uint64("user_id", uint64(job.UserID)),
			)
		}
		return nil
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, queueKey, payload).Err()
}

// Dequeue blocks up to timeout waiting for the next job. A nil job
// with nil error means the wait timed out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if q.rdb == nil {
		return nil, errors.New("mail queue requires a redis client")
	}
	res, err := q.rdb.BRPop(ctx, timeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Sender delivers a single email.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers mail through a plain-auth SMTP relay.
type SMTPSender struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (s *SMTPSender) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.From, to, subject, body)
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	return smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{to}, []byte(msg))
}

// LogSender logs mail instead of delivering it. Used in development
// when no SMTP relay is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(to, subject, body string) error {
	s.Logger.Info("email (log sender)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// Command main runs the email delivery worker. It drains the Redis
// job queue populated by the API and sends verification and password
// reset mail over SMTP (or logs it when no relay is configured).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quorum/internal/cache"
	"quorum/internal/config"
	"quorum/internal/database"
	"quorum/internal/mailer"
	"quorum/internal/middleware"
	"quorum/internal/repository"
	"quorum/internal/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()
	if redisClient == nil {
		log.Fatal("mail worker requires Redis")
	}

	var sender mailer.Sender
	if cfg.SMTPHost != "" {
		sender = &mailer.SMTPSender{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}
	} else {
		sender = &mailer.LogSender{Logger: middleware.Logger}
	}

	queue := mailer.NewQueue(redisClient, middleware.Logger)
	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, redisClient)
	users := repository.NewUserRepository(db)

	worker := mailer.NewWorker(queue, users, tokens, sender, cfg.Domain, cfg.ActionTokenTTL, middleware.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := worker.Run(ctx); err != nil {
		log.Fatalf("mail worker stopped: %v", err)
	}
}

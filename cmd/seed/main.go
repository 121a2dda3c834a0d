// Command main seeds the database with demo forum content.
package main

import (
	"flag"
	"log"

	"quorum/internal/config"
	"quorum/internal/database"
	"quorum/internal/seed"
)

func main() {
	users := flag.Int("users", 20, "number of users to create")
	questions := flag.Int("questions", 40, "number of questions to create")
	maxDays := flag.Int("max-days", 90, "spread created_at over this many days")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	if err := seed.Run(db, seed.Options{
		Users:     *users,
		Questions: *questions,
		MaxDays:   *maxDays,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}

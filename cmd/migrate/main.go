package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"voting-platform/internal/repository"
	"voting-platform/pkg/database"
)

const usage = "Usage: go run ./cmd/migrate [up|down|status|seed]"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]

	ctx := context.Background()
	db, err := database.NewPostgresDB(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db.Pool)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	defer migrator.Close()

	switch command {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		for _, v := range applied {
			fmt.Printf("  Applied: %05d\n", v)
		}
		fmt.Printf("✅ %d migration(s) applied\n", len(applied))

	case "down":
		version, err := migrator.Down(ctx)
		if err != nil {
			log.Fatalf("Failed to roll back migration: %v", err)
		}
		fmt.Printf("✅ Rolled back %05d\n", version)

	case "status":
		states, err := migrator.Status(ctx)
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		for _, s := range states {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("  %05d  %-8s %s\n", s.Version, state, s.Path)
		}

	case "seed":
		if _, err := migrator.Up(ctx); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		n, err := repository.SeedSamplePolls(ctx, repository.NewPollRepository(db.Pool), time.Now().UTC())
		if err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		if n == 0 {
			fmt.Println("  Polls already present, nothing seeded")
		} else {
			fmt.Printf("  Seeded %d polls\n", n)
		}
		fmt.Println("✅ Data seeded successfully")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/config"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/database"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		runStatus()
	default:
		fmt.Println("Usage: migrate [up|status]")
		fmt.Println("  up     - Create or update tables and indexes")
		fmt.Println("  status - Report row counts per table")
		os.Exit(1)
	}
}

func connect() {
	log.Println("Connecting to database...")
	if err := database.Initialize(config.DatabaseURL(), false); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Database connected")
}

func runMigrationsUp() {
	connect()
	defer database.Close()

	log.Println("Running migrations...")
	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("All migrations completed successfully")
}

func runStatus() {
	connect()
	defer database.Close()

	for _, table := range []string{"users", "sessions", "threads", "posts", "notifications", "security_events"} {
		if !database.DB.Migrator().HasTable(table) {
			fmt.Printf("  %-16s missing\n", table)
			continue
		}
		var count int64
		if err := database.DB.Table(table).Count(&count).Error; err != nil {
			fmt.Printf("  %-16s error: %v\n", table, err)
			continue
		}
		fmt.Printf("  %-16s %d rows\n", table, count)
	}
}

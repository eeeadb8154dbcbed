package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/config"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/database"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/seed"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var run func(*seed.Seeder, context.Context) error
	switch command {
	case "dev":
		run = (*seed.Seeder).SeedDev
	case "test":
		run = (*seed.Seeder).SeedTest
	case "clean":
		run = (*seed.Seeder).Clean
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic forum activity")
		fmt.Println("  test  - Seed fixed accounts (alice, bob, charlie, diana, eve)")
		fmt.Println("  clean - Remove every seeded account and its content")
		os.Exit(1)
	}

	if err := logger.Initialize("info", "-"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	if err := database.Initialize(config.DatabaseURL(), false); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if err := run(seed.NewSeeder(database.DB), context.Background()); err != nil {
		log.Fatalf("Seed %s failed: %v", command, err)
	}
	log.Printf("Seed %s completed (accounts use password %q)", command, seed.SeedPassword)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/config"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/database"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	email := flag.String("email", "", "Email address of the user to change")
	role := flag.String("role", string(models.RoleAdmin), "Role to grant: admin, moderator or member")
	revoke := flag.Bool("revoke", false, "Demote the user back to member")
	flag.Parse()

	if *email == "" {
		fmt.Println("Usage: promote-admin -email=user@example.com [-role=admin|moderator|member]")
		fmt.Println("       promote-admin -email=user@example.com -revoke")
		os.Exit(1)
	}

	target := models.Role(strings.ToLower(*role))
	if *revoke {
		target = models.RoleMember
	}
	if !target.Valid() {
		log.Fatalf("Unknown role %q", *role)
	}

	if err := database.Initialize(config.DatabaseURL(), false); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	users := repository.NewUserRepository(database.DB)
	user, err := users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		fmt.Printf("User not found: %s\n", *email)
		os.Exit(1)
	}

	if user.Role == target {
		fmt.Printf("User %s already has role %s\n", user.Username, target)
		return
	}

	previous := user.Role
	if err := users.UpdateFields(ctx, user.ID, map[string]interface{}{"role": target}); err != nil {
		log.Fatalf("Failed to update role: %v", err)
	}

	security.NewRecorder(database.DB).Record(ctx, security.Event{
		Type:     models.EventRoleChanged,
		Severity: models.SeverityWarning,
		UserID:   user.ID,
		Details: map[string]interface{}{
			"from":   string(previous),
			"to":     string(target),
			"source": "promote-admin",
		},
	})

	fmt.Printf("Role for %s (%s) changed: %s -> %s\n", user.Username, user.Email, previous, target)
	fmt.Printf("  User ID: %s\n", user.ID)
	fmt.Println("  The new role applies on the next request")
}

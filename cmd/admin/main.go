package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alansalbums/alans-albums-backend/config"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/internal/db"
	"github.com/alansalbums/alans-albums-backend/internal/storage"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
)

const usage = `Usage: go run cmd/admin/main.go <command>

Commands:
  create-admin             create or promote the staff account from ADMIN_EMAIL, ADMIN_PASSWORD and ADMIN_NAME
  unfeature-out-of-stock   clear the featured flag on listings with no stock left`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Initialize(logger.Config{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	database := db.GetDB()

	switch os.Args[1] {
	case "create-admin":
		authService := service.NewAuthService(
			repository.NewUserRepository(database),
			cfg.JWT.Secret,
			cfg.JWT.AccessTokenExpiry,
			cfg.JWT.RefreshTokenExpiry,
		)
		if err := createAdmin(authService, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"), os.Getenv("ADMIN_NAME")); err != nil {
			log.Fatal(err)
		}

	case "unfeature-out-of-stock":
		// stock correction never touches images
		var images storage.ImageStore
		listingService := service.NewListingService(repository.NewListingRepository(database), images)
		updated, err := listingService.UnfeatureOutOfStock()
		if err != nil {
			log.Fatal("Failed to unfeature listings:", err)
		}
		fmt.Printf("Unfeatured %d out of stock listing(s)\n", updated)

	default:
		log.Fatal(usage)
	}
}

func createAdmin(authService service.AuthService, email, password, name string) error {
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}
	if name == "" {
		name = "Admin"
	}

	user, created, err := authService.EnsureStaff(email, password, name)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	if created {
		fmt.Printf("Created staff account %s (id %d)\n", user.Email, user.ID)
	} else {
		fmt.Printf("Promoted existing account %s (id %d) to staff\n", user.Email, user.ID)
	}
	return nil
}

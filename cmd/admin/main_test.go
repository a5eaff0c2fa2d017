package main

import (
	"testing"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAdmin(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	userRepo := repository.NewUserRepository(testDB)
	authService := service.NewAuthService(userRepo, "secret", time.Minute, time.Hour)

	t.Run("missing credentials", func(t *testing.T) {
		assert.Error(t, createAdmin(authService, "", "pw", ""))
		assert.Error(t, createAdmin(authService, "alan@example.com", "", ""))
	})

	t.Run("creates staff account", func(t *testing.T) {
		require.NoError(t, createAdmin(authService, "Alan@Example.com", "password123", ""))

		user, err := userRepo.FindByEmail("alan@example.com")
		require.NoError(t, err)
		assert.Equal(t, model.RoleStaff, user.Role)
		assert.Equal(t, "Admin", user.Name)
	})

	t.Run("promotes existing customer", func(t *testing.T) {
		customer := &model.User{Email: "shop@example.com", PasswordHash: "hash", Name: "Shop", Role: model.RoleUser}
		require.NoError(t, userRepo.Create(customer))

		require.NoError(t, createAdmin(authService, "shop@example.com", "password123", "Shop"))

		user, err := userRepo.FindByEmail("shop@example.com")
		require.NoError(t, err)
		assert.Equal(t, model.RoleStaff, user.Role)
	})
}

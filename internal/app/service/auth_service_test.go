package service

import (
	"context"
	"testing"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	redisclient "github.com/alansalbums/alans-albums-backend/pkg/redis"
	"github.com/alansalbums/alans-albums-backend/pkg/util"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (AuthService, *gorm.DB) {
	testDB := setupServiceDB(t)

	authService := NewAuthService(
		repository.NewUserRepository(testDB),
		"test-jwt-secret",
		15*time.Minute,
		7*24*time.Hour,
	)

	return authService, testDB
}

func useMiniredis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisclient.SetClient(client)
	t.Cleanup(func() {
		redisclient.SetClient(nil)
		_ = client.Close()
	})
}

func TestAuthService_Register(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	tests := []struct {
		name     string
		email    string
		password string
		userName string
		wantErr  error
	}{
		{
			name:     "Valid registration",
			email:    "test@example.com",
			password: "password123",
			userName: "Test User",
			wantErr:  nil,
		},
		{
			name:     "Duplicate email",
			email:    "test@example.com",
			password: "password456",
			userName: "Another User",
			wantErr:  ErrEmailAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, tokens, err := authService.Register(
				tt.email,
				tt.password,
				tt.userName,
			)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				assert.Nil(t, tokens)
			} else {
				require.NoError(t, err)
				require.NotNil(t, user)
				require.NotNil(t, tokens)
				assert.Equal(t, tt.email, user.Email)
				assert.Equal(t, tt.userName, user.Name)
				assert.Equal(t, model.RoleUser, user.Role)
				assert.NotEmpty(t, tokens.AccessToken)
				assert.NotEmpty(t, tokens.RefreshToken)
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	// Register a user first
	email := "test@example.com"
	password := "password123"
	_, _, err := authService.Register(email, password, "Test User")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{
			name:     "Valid login",
			email:    email,
			password: password,
			wantErr:  nil,
		},
		{
			name:     "Wrong password",
			email:    email,
			password: "wrongpassword",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "Non-existing user",
			email:    "notfound@example.com",
			password: "password123",
			wantErr:  ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, tokens, err := authService.Login(tt.email, tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				assert.Nil(t, tokens)
			} else {
				require.NoError(t, err)
				require.NotNil(t, user)
				require.NotNil(t, tokens)
				assert.Equal(t, tt.email, user.Email)
				assert.NotEmpty(t, tokens.AccessToken)
				assert.NotEmpty(t, tokens.RefreshToken)
			}
		})
	}
}

func TestAuthService_GetUserByID(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	// Register a user
	user, _, err := authService.Register(
		"test@example.com",
		"password123",
		"Test User",
	)
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  uint
		wantErr error
	}{
		{
			name:    "Existing user",
			userID:  user.ID,
			wantErr: nil,
		},
		{
			name:    "Non-existing user",
			userID:  9999,
			wantErr: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := authService.GetUserByID(tt.userID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, found)
			} else {
				require.NoError(t, err)
				require.NotNil(t, found)
				assert.Equal(t, user.Email, found.Email)
				assert.Equal(t, user.Name, found.Name)
			}
		})
	}
}

func TestAuthService_PasswordSecurity(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	password := "mySecretPassword123"
	user, _, err := authService.Register(
		"test@example.com",
		password,
		"Test User",
	)
	require.NoError(t, err)

	// Password should be hashed
	assert.NotEqual(t, password, user.PasswordHash)
	assert.Contains(t, user.PasswordHash, "$2a$")
}

func TestAuthService_TokenGeneration(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	user, tokens, err := authService.Register(
		"test@example.com",
		"password123",
		"Test User",
	)
	require.NoError(t, err)

	// Tokens should be different
	assert.NotEqual(t, tokens.AccessToken, tokens.RefreshToken)

	// Tokens should be valid JWT format
	assert.Contains(t, tokens.AccessToken, ".")
	assert.Contains(t, tokens.RefreshToken, ".")

	// Login should generate new tokens
	_, newTokens, err := authService.Login("test@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, newTokens.AccessToken)
	assert.NotEmpty(t, newTokens.RefreshToken)

	_ = user
}

func TestAuthService_RegisterNormalizesEmail(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	user, _, err := authService.Register("  Fan@Example.COM ", "password123", "Fan")
	require.NoError(t, err)
	assert.Equal(t, "fan@example.com", user.Email)

	_, _, err = authService.Register("fan@example.com", "password123", "Fan")
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)

	_, _, err = authService.Login("FAN@example.com", "password123")
	assert.NoError(t, err)
}

func TestAuthService_RegisterDoesNotExposeGuestThreads(t *testing.T) {
	authService, testDB := setupAuthServiceTest(t)
	messages := NewMessageService(
		repository.NewMessageRepository(testDB),
		repository.NewUserRepository(testDB),
		nil,
		nil,
		"http://shop.test",
	)
	ctx := context.Background()

	guest, err := messages.Submit(ctx, Viewer{}, ContactInput{
		Name:              "Fan",
		Email:             "fan@example.com",
		Phone:             "07700 900123",
		ContactPreference: model.ContactPhone,
		Body:              "Please call me about the Coltrane box set",
	}, nil)
	require.NoError(t, err)

	// someone else signs up with the guest's address
	stranger, _, err := authService.Register("Fan@example.com", "password123", "Not Fan")
	require.NoError(t, err)
	viewer := Viewer{UserID: stranger.ID}

	_, err = messages.OpenThread(viewer, guest.ID)
	assert.ErrorIs(t, err, ErrThreadAccessDenied)

	var stored model.Message
	require.NoError(t, testDB.First(&stored, guest.ID).Error)
	assert.Nil(t, stored.UserID)

	// the guest link keeps working for the real sender
	_, err = messages.GuestReply(ctx, guest.Reference, "Any news on this?")
	assert.NoError(t, err)
}

func TestAuthService_RefreshIsSingleUse(t *testing.T) {
	useMiniredis(t)
	authService, _ := setupAuthServiceTest(t)
	ctx := context.Background()

	_, tokens, err := authService.Register("fan@example.com", "password123", "Fan")
	require.NoError(t, err)

	refreshed, err := authService.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = authService.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// an access token cannot be used to refresh
	_, err = authService.Refresh(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, util.ErrInvalidToken)
}

func TestAuthService_LogoutRevokesAccessToken(t *testing.T) {
	useMiniredis(t)
	authService, _ := setupAuthServiceTest(t)
	ctx := context.Background()

	_, tokens, err := authService.Register("fan@example.com", "password123", "Fan")
	require.NoError(t, err)

	require.NoError(t, authService.Logout(ctx, tokens.AccessToken))

	revoked, err := redisclient.IsTokenRevoked(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)

	// garbage tokens are ignored
	assert.NoError(t, authService.Logout(ctx, "not-a-token"))
}

func TestAuthService_UpdateProfile(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	user, _, err := authService.Register("fan@example.com", "password123", "Fan")
	require.NoError(t, err)

	updated, err := authService.UpdateProfile(user.ID, "  Record Fan ")
	require.NoError(t, err)
	assert.Equal(t, "Record Fan", updated.Name)

	_, err = authService.UpdateProfile(9999, "x")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_EnsureStaff(t *testing.T) {
	authService, _ := setupAuthServiceTest(t)

	staff, created, err := authService.EnsureStaff("alan@example.com", "password123", "Alan")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, staff.IsStaff())

	again, created, err := authService.EnsureStaff("ALAN@example.com", "other", "Alan")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, staff.ID, again.ID)

	user, _, err := authService.Register("fan@example.com", "password123", "Fan")
	require.NoError(t, err)
	promoted, created, err := authService.EnsureStaff("fan@example.com", "ignored", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, promoted.ID)
	assert.True(t, promoted.IsStaff())

	_, _, err = authService.EnsureStaff("", "password123", "")
	assert.ErrorIs(t, err, ErrValidation)
}

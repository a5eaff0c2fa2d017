package service

import (
	"strconv"
	"testing"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/db"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB
}

func setupSessionStore(t *testing.T) repository.SessionBasketStore {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewSessionBasketStore(client, time.Hour)
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }

// createListing inserts a priced listing; stock nil means unlimited
func createListing(t *testing.T, testDB *gorm.DB, id uint, artist, title, price string, stock *int) *model.Listing {
	listing := &model.Listing{
		ID:     id,
		Artist: artist,
		Title:  title,
		Stock:  stock,
	}
	if price != "" {
		listing.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	require.NoError(t, testDB.Create(listing).Error)
	return listing
}

func createUser(t *testing.T, testDB *gorm.DB, email string, role model.UserRole) *model.User {
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         email,
		Role:         role,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

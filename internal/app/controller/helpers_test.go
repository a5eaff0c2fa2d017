package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alansalbums/alans-albums-backend/config"
	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/db"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/alansalbums/alans-albums-backend/pkg/util"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

// guest session ids must be UUIDs or the session middleware replaces them
const testSessionID = "3f1c9a52-7d2e-4b8a-9c1d-5e6f7a8b9c0d"

func init() {
	gin.SetMode(gin.TestMode)
}

func setupControllerDB(t *testing.T) *gorm.DB {
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

func sessionMiddleware() gin.HandlerFunc {
	return middleware.Session(config.SessionConfig{CookieName: "basket_session", TTL: time.Hour})
}

func createTestUser(t *testing.T, testDB *gorm.DB, email string, role model.UserRole) *model.User {
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         email,
		Role:         role,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

// createTestListing inserts a priced listing; stock nil means unlimited
func createTestListing(t *testing.T, testDB *gorm.DB, artist, title, price string, stock *int) *model.Listing {
	listing := &model.Listing{
		Artist: artist,
		Title:  title,
		Price:  decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Stock:  stock,
	}
	require.NoError(t, testDB.Create(listing).Error)
	return listing
}

func intPtr(v int) *int { return &v }

func bearerFor(t *testing.T, user *model.User) string {
	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), testSecret, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tokens.AccessToken
}

// performRequest sends body as JSON unless it is already a reader
func performRequest(router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		if _, isReader := body.(io.Reader); !isReader {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// recordingSender keeps outgoing mail in memory
type recordingSender struct {
	to     []string
	bodies []string
}

func (s *recordingSender) Send(to, subject, body string) error {
	s.to = append(s.to, to)
	s.bodies = append(s.bodies, body)
	return nil
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	first, err := HashPassword("blue-train-1957")
	require.NoError(t, err)
	second, err := HashPassword("blue-train-1957")
	require.NoError(t, err)

	assert.NotEqual(t, "blue-train-1957", first)
	assert.NotEqual(t, first, second, "each hash gets its own salt")

	cost, err := bcrypt.Cost([]byte(first))
	require.NoError(t, err)
	assert.Equal(t, bcryptCost, cost)

	// bcrypt only looks at the first 72 bytes and refuses longer input
	_, err = HashPassword(string(make([]byte, 73)))
	assert.Error(t, err)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("blue-train-1957")
	require.NoError(t, err)

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"matching", hash, "blue-train-1957", true},
		{"wrong password", hash, "blue-train-1958", false},
		{"case matters", hash, "BLUE-TRAIN-1957", false},
		{"empty password", hash, "", false},
		{"not a hash", "plaintext", "plaintext", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyPassword(tt.hash, tt.password))
		})
	}
}

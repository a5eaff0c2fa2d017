package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     error
	}{
		{name: "JPEG", contentType: "image/jpeg", size: 1024},
		{name: "PNG with params", contentType: "image/png; charset=binary", size: 1024},
		{name: "Exactly at limit", contentType: "image/png", size: MaxImageSize},
		{name: "GIF rejected", contentType: "image/gif", size: 1024, wantErr: ErrUnsupportedType},
		{name: "Too large", contentType: "image/jpeg", size: MaxImageSize + 1, wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.contentType, tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewKey(t *testing.T) {
	key := newKey("listings", "Cover.JPG")
	assert.True(t, strings.HasPrefix(key, "listings/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, newKey("listings", "Cover.JPG"))
}

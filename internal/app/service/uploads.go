package service

import (
	"context"
	"io"

	"github.com/alansalbums/alans-albums-backend/internal/storage"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
)

// ImageUpload is one file taken from a multipart form
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// storeImages validates and uploads each file, skipping any that fail
func storeImages(ctx context.Context, store storage.ImageStore, folder string, uploads []ImageUpload) []storage.StoredObject {
	if store == nil || len(uploads) == 0 {
		return nil
	}

	stored := make([]storage.StoredObject, 0, len(uploads))
	for _, upload := range uploads {
		if err := storage.ValidateImage(upload.ContentType, upload.Size); err != nil {
			logger.Warn("Skipping invalid image", map[string]interface{}{
				"filename":     upload.Filename,
				"content_type": upload.ContentType,
				"size":         upload.Size,
				"error":        err.Error(),
			})
			continue
		}

		obj, err := store.Upload(ctx, folder, upload.Filename, upload.ContentType, upload.Body, upload.Size)
		if err != nil {
			logger.Warn("Skipping image after upload failure", map[string]interface{}{
				"filename": upload.Filename,
				"error":    err.Error(),
			})
			continue
		}
		stored = append(stored, *obj)
	}
	return stored
}

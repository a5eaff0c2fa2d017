package controller

import (
	"mime/multipart"
	"strconv"

	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// parseIDParam reads a positive numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid ID format", map[string]interface{}{
			"param": name,
			"value": raw,
		})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return v
}

// identityFromContext describes who owns the basket for this request
func identityFromContext(c *gin.Context) service.Identity {
	identity := service.Identity{SessionID: middleware.GetSessionID(c)}
	if userID, ok := middleware.GetUserID(c); ok {
		identity.UserID = &userID
		identity.Email, _ = middleware.GetUserEmail(c)
	}
	return identity
}

func viewerFromContext(c *gin.Context) service.Viewer {
	userID, _ := middleware.GetUserID(c)
	return service.Viewer{UserID: userID, IsStaff: middleware.IsStaff(c)}
}

// formImages opens every file sent under field. The caller closes them.
func formImages(c *gin.Context, field string) ([]service.ImageUpload, func(), error) {
	noop := func() {}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, err
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, noop, nil
	}

	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	uploads := make([]service.ImageUpload, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			closeAll()
			return nil, noop, err
		}
		files = append(files, f)
		uploads = append(uploads, service.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/alansalbums/alans-albums-backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeImageStore keeps uploads in memory
type fakeImageStore struct {
	uploaded []string
	deleted  []string
}

func (s *fakeImageStore) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (*storage.StoredObject, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%d-%s", folder, len(s.uploaded)+1, filename)
	s.uploaded = append(s.uploaded, key)
	return &storage.StoredObject{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (s *fakeImageStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeImageStore) PresignUpload(ctx context.Context, filename, contentType, folder string) (*storage.PresignedURLResponse, error) {
	key := folder + "/" + filename
	return &storage.PresignedURLResponse{
		UploadURL: "https://bucket.test/" + key + "?signed",
		FileURL:   "https://cdn.test/" + key,
		Key:       key,
	}, nil
}

// multipartBody builds a form with text fields and PNG files under fileField
func multipartBody(t *testing.T, fields map[string]string, fileField string, files ...string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, name := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, name))
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

type messageFixture struct {
	router *gin.Engine
	db     *gorm.DB
	images *fakeImageStore
	staff  *model.User
	owner  *model.User
}

func setupMessageControllerTest(t *testing.T) *messageFixture {
	testDB := setupControllerDB(t)

	images := &fakeImageStore{}
	messages := service.NewMessageService(
		repository.NewMessageRepository(testDB),
		repository.NewUserRepository(testDB),
		images,
		nil,
		"http://shop.test",
	)
	ctrl := NewMessageController(messages)
	authMiddleware := middleware.NewAuthMiddleware(testSecret)
	auth := authMiddleware.Authenticate()
	staff := authMiddleware.RequireStaff()

	router := gin.New()
	group := router.Group("/messages")
	{
		group.POST("", authMiddleware.OptionalAuthenticate(), ctrl.Submit)
		group.GET("/guest/:reference", ctrl.GuestThread)
		group.POST("/guest/:reference/replies", ctrl.GuestReply)
		group.POST("/guest/:reference/claim", auth, ctrl.ClaimGuestThread)

		group.GET("", auth, ctrl.Inbox)
		group.GET("/unread", auth, ctrl.UnreadCount)
		group.GET("/:id", auth, ctrl.OpenThread)
		group.POST("/:id/replies", auth, ctrl.Reply)
		group.POST("/:id/toggle-replied", auth, staff, ctrl.ToggleReplied)
		group.DELETE("/:id", auth, staff, ctrl.Delete)
	}

	return &messageFixture{
		router: router,
		db:     testDB,
		images: images,
		staff:  createTestUser(t, testDB, "alan@example.com", model.RoleStaff),
		owner:  createTestUser(t, testDB, "owner@example.com", model.RoleUser),
	}
}

func (f *messageFixture) guestSubmit(t *testing.T) (uint, string) {
	w := performRequest(f.router, http.MethodPost, "/messages", ContactRequest{
		Name:    "Jo Guest",
		Email:   "jo@example.com",
		Subject: "listings",
		Body:    "Do you have the first pressing of Blue Train?",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	response := decodeBody(t, w)
	reference, _ := response["reference"].(string)
	require.NotEmpty(t, reference)
	id := response["thread"].(map[string]interface{})["id"].(float64)
	return uint(id), reference
}

func TestMessageController_GuestSubmitAndFollowUp(t *testing.T) {
	f := setupMessageControllerTest(t)
	id, reference := f.guestSubmit(t)

	w := performRequest(f.router, http.MethodGet, "/messages/guest/"+reference, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	thread := decodeBody(t, w)["thread"].(map[string]interface{})
	assert.Equal(t, float64(id), thread["id"])
	assert.NotContains(t, thread, "reference")

	w = performRequest(f.router, http.MethodPost, "/messages/guest/"+reference+"/replies", ReplyRequest{Body: "Any pressing is fine"}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(f.router, http.MethodGet, "/messages/guest/not-a-reference", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "MESSAGE_NOT_FOUND", decodeBody(t, w)["error"])
}

func TestMessageController_SubmitValidation(t *testing.T) {
	f := setupMessageControllerTest(t)

	tests := []struct {
		name string
		req  ContactRequest
	}{
		{"guest without email", ContactRequest{Name: "Jo", Body: "Long enough message body"}},
		{"body too short", ContactRequest{Name: "Jo", Email: "jo@example.com", Body: "hi there"}},
		{"unknown subject", ContactRequest{Name: "Jo", Email: "jo@example.com", Subject: "gossip", Body: "Long enough message body"}},
		{"phone preference without phone", ContactRequest{Name: "Jo", Email: "jo@example.com", ContactPreference: "phone", Body: "Long enough message body"}},
		{"missing body", ContactRequest{Name: "Jo", Email: "jo@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(f.router, http.MethodPost, "/messages", tt.req, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_INVALID_INPUT", decodeBody(t, w)["error"])
		})
	}
}

func TestMessageController_SubmitWithImages(t *testing.T) {
	f := setupMessageControllerTest(t)

	body, contentType := multipartBody(t, map[string]string{
		"body":    "Photos of the records I would like to sell",
		"subject": "selling",
	}, imagesField, "front.png", "back.png")

	w := performRequest(f.router, http.MethodPost, "/messages", body, map[string]string{
		"Content-Type":  contentType,
		"Authorization": bearerFor(t, f.owner),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	response := decodeBody(t, w)
	assert.NotContains(t, response, "reference")
	thread := response["thread"].(map[string]interface{})
	assert.Equal(t, "owner@example.com", thread["email"])
	assert.Len(t, thread["images"], 2)
	assert.Len(t, f.images.uploaded, 2)
}

func TestMessageController_InboxAndUnread(t *testing.T) {
	f := setupMessageControllerTest(t)
	id, _ := f.guestSubmit(t)
	staffAuth := map[string]string{"Authorization": bearerFor(t, f.staff)}

	w := performRequest(f.router, http.MethodGet, "/messages/unread", nil, staffAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["unread"])

	w = performRequest(f.router, http.MethodGet, "/messages", nil, staffAuth)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody(t, w)
	assert.Equal(t, float64(1), page["total"])
	entries := page["messages"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].(map[string]interface{})["unread"])

	w = performRequest(f.router, http.MethodGet, fmt.Sprintf("/messages/%d", id), nil, staffAuth)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(f.router, http.MethodGet, "/messages/unread", nil, staffAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["unread"])

	// customers only see their own threads
	ownerAuth := map[string]string{"Authorization": bearerFor(t, f.owner)}
	w = performRequest(f.router, http.MethodGet, "/messages", nil, ownerAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["total"])

	w = performRequest(f.router, http.MethodGet, fmt.Sprintf("/messages/%d", id), nil, ownerAuth)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "MESSAGE_ACCESS_DENIED", decodeBody(t, w)["error"])

	w = performRequest(f.router, http.MethodGet, "/messages/unread", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMessageController_StaffReplyAndToggle(t *testing.T) {
	f := setupMessageControllerTest(t)
	id, _ := f.guestSubmit(t)
	staffAuth := map[string]string{"Authorization": bearerFor(t, f.staff)}

	w := performRequest(f.router, http.MethodPost, fmt.Sprintf("/messages/%d/replies", id), ReplyRequest{Body: "Yes, in the back room"}, staffAuth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var message model.Message
	require.NoError(t, f.db.First(&message, id).Error)
	assert.True(t, message.Replied)

	w = performRequest(f.router, http.MethodPost, fmt.Sprintf("/messages/%d/toggle-replied", id), nil, staffAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["replied"])

	w = performRequest(f.router, http.MethodPost, fmt.Sprintf("/messages/%d/replies", id), map[string]string{}, staffAuth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(f.router, http.MethodPost, fmt.Sprintf("/messages/%d/toggle-replied", id), nil, map[string]string{
		"Authorization": bearerFor(t, f.owner),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMessageController_ClaimedGuestLinkRedirects(t *testing.T) {
	f := setupMessageControllerTest(t)
	id, reference := f.guestSubmit(t)

	require.NoError(t, f.db.Model(&model.Message{}).Where("id = ?", id).Update("user_id", f.owner.ID).Error)

	location := fmt.Sprintf("/api/v1/messages/%d", id)

	w := performRequest(f.router, http.MethodGet, "/messages/guest/"+reference, nil, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, location, w.Header().Get("Location"))
	assert.Equal(t, "MESSAGE_GUEST_LINK_CLAIMED", decodeBody(t, w)["error"])

	w = performRequest(f.router, http.MethodPost, "/messages/guest/"+reference+"/replies", ReplyRequest{Body: "Still there?"}, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, location, w.Header().Get("Location"))

	var replies int64
	f.db.Model(&model.Reply{}).Where("message_id = ?", id).Count(&replies)
	assert.Zero(t, replies)
}

func TestMessageController_ClaimGuestThread(t *testing.T) {
	f := setupMessageControllerTest(t)
	id, reference := f.guestSubmit(t)
	// same address as the guest, which on its own grants nothing
	jo := createTestUser(t, f.db, "jo@example.com", model.RoleUser)
	joAuth := map[string]string{"Authorization": bearerFor(t, jo)}

	w := performRequest(f.router, http.MethodGet, fmt.Sprintf("/messages/%d", id), nil, joAuth)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(f.router, http.MethodPost, "/messages/guest/"+reference+"/claim", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performRequest(f.router, http.MethodPost, "/messages/guest/"+reference+"/claim", nil, joAuth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	thread := decodeBody(t, w)["thread"].(map[string]interface{})
	assert.Equal(t, float64(jo.ID), thread["user_id"])

	w = performRequest(f.router, http.MethodPost, "/messages/guest/"+reference+"/claim", nil, map[string]string{
		"Authorization": bearerFor(t, f.owner),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "MESSAGE_ACCESS_DENIED", decodeBody(t, w)["error"])
}

func TestMessageController_Delete(t *testing.T) {
	f := setupMessageControllerTest(t)
	id, _ := f.guestSubmit(t)
	staffAuth := map[string]string{"Authorization": bearerFor(t, f.staff)}

	w := performRequest(f.router, http.MethodDelete, fmt.Sprintf("/messages/%d", id), nil, staffAuth)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(f.router, http.MethodDelete, fmt.Sprintf("/messages/%d", id), nil, staffAuth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(f.router, http.MethodDelete, "/messages/abc", nil, staffAuth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

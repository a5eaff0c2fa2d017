package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	apperrors "github.com/alansalbums/alans-albums-backend/internal/errors"
	"github.com/alansalbums/alans-albums-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

const imagesField = "images"

type MessageController struct {
	messageService service.MessageService
}

func NewMessageController(messageService service.MessageService) *MessageController {
	return &MessageController{messageService: messageService}
}

// ContactRequest is accepted as JSON or as a multipart form with images
type ContactRequest struct {
	Name              string `json:"name" form:"name"`
	Email             string `json:"email" form:"email"`
	Phone             string `json:"phone" form:"phone"`
	Subject           string `json:"subject" form:"subject"`
	ContactPreference string `json:"contact_preference" form:"contact_preference"`
	Body              string `json:"body" form:"body" binding:"required"`
}

type ReplyRequest struct {
	Body string `json:"body" form:"body" binding:"required"`
}

func respondMessageError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, service.ErrMessageNotFound):
		apperrors.NotFound(c, apperrors.MessageNotFound, "Message not found")
	case errors.Is(err, service.ErrThreadAccessDenied):
		apperrors.RespondWithError(c, http.StatusForbidden, apperrors.MessageAccessDenied, "You do not have access to this conversation")
	case errors.Is(err, service.ErrValidation):
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		apperrors.Unauthorized(c, "")
	default:
		middleware.GetLoggerFromContext(c).Error("Message request failed", err, map[string]interface{}{
			"context": context,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}

// requestImages reads attached images from multipart requests only
func requestImages(c *gin.Context) ([]service.ImageUpload, func(), error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, func() {}, nil
	}
	return formImages(c, imagesField)
}

// Submit records a contact message from a user or guest
// POST /api/v1/messages
func (ctrl *MessageController) Submit(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	viewer := viewerFromContext(c)

	var req ContactRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warn("Invalid contact request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Please check the details you entered")
		return
	}

	images, closeImages, err := requestImages(c)
	if err != nil {
		apperrors.BadRequest(c, apperrors.UploadFailed, "Could not read the attached images")
		return
	}
	defer closeImages()

	message, err := ctrl.messageService.Submit(c.Request.Context(), viewer, service.ContactInput{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Subject:           model.MessageSubject(req.Subject),
		ContactPreference: model.ContactPreference(req.ContactPreference),
		Body:              req.Body,
	}, images)
	if err != nil {
		respondMessageError(c, err, "submit message")
		return
	}

	resp := gin.H{
		"message": "Thanks, we will be in touch soon",
		"thread":  message,
	}
	if viewer.Anonymous() {
		// a guest's only way back to the conversation
		resp["reference"] = message.Reference
	}
	c.JSON(http.StatusCreated, resp)
}

// UnreadCount returns the badge count for the current account
// GET /api/v1/messages/unread
func (ctrl *MessageController) UnreadCount(c *gin.Context) {
	count, err := ctrl.messageService.UnreadCount(viewerFromContext(c))
	if err != nil {
		respondMessageError(c, err, "count unread")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// Inbox lists threads visible to the current account
// GET /api/v1/messages
func (ctrl *MessageController) Inbox(c *gin.Context) {
	page, err := ctrl.messageService.Inbox(viewerFromContext(c), queryInt(c, "page", 1), queryInt(c, "page_size", 0))
	if err != nil {
		respondMessageError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, page)
}

// OpenThread returns a thread and marks it read for the viewer
// GET /api/v1/messages/:id
func (ctrl *MessageController) OpenThread(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid message ID")
		return
	}

	message, err := ctrl.messageService.OpenThread(viewerFromContext(c), id)
	if err != nil {
		respondMessageError(c, err, "open thread")
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": message})
}

// Reply posts to a thread as staff or as its owner
// POST /api/v1/messages/:id/replies
func (ctrl *MessageController) Reply(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid message ID")
		return
	}

	var req ReplyRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warn("Invalid reply request", map[string]interface{}{
			"message_id": id,
			"error":      err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationRequired, "A reply is required")
		return
	}

	images, closeImages, err := requestImages(c)
	if err != nil {
		apperrors.BadRequest(c, apperrors.UploadFailed, "Could not read the attached images")
		return
	}
	defer closeImages()

	reply, err := ctrl.messageService.Reply(c.Request.Context(), viewerFromContext(c), id, req.Body, images)
	if err != nil {
		respondMessageError(c, err, "reply")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reply": reply})
}

// ToggleReplied flips the replied flag (staff)
// POST /api/v1/messages/:id/toggle-replied
func (ctrl *MessageController) ToggleReplied(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid message ID")
		return
	}

	message, err := ctrl.messageService.ToggleReplied(id)
	if err != nil {
		respondMessageError(c, err, "toggle replied")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": message.ID, "replied": message.Replied})
}

// Delete removes a thread (staff)
// DELETE /api/v1/messages/:id
func (ctrl *MessageController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid message ID")
		return
	}

	if err := ctrl.messageService.Delete(c.Request.Context(), id); err != nil {
		respondMessageError(c, err, "delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

// respondGuestClaimed points a guest link at the owner's authenticated thread
func respondGuestClaimed(c *gin.Context, message *model.Message) {
	location := "/api/v1/messages/" + strconv.FormatUint(uint64(message.ID), 10)
	c.Header("Location", location)
	c.JSON(http.StatusSeeOther, gin.H{
		"error":    apperrors.MessageGuestClaimed,
		"message":  "Please log in to continue this conversation",
		"redirect": location,
	})
}

// GuestThread shows a thread through its reference link
// GET /api/v1/messages/guest/:reference
func (ctrl *MessageController) GuestThread(c *gin.Context) {
	message, err := ctrl.messageService.GuestThread(c.Param("reference"))
	if err != nil {
		if errors.Is(err, service.ErrGuestLinkClaimed) {
			respondGuestClaimed(c, message)
			return
		}
		respondMessageError(c, err, "guest thread")
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": message})
}

// GuestReply accepts a text reply through a reference link
// POST /api/v1/messages/guest/:reference/replies
func (ctrl *MessageController) GuestReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationRequired, "A reply is required")
		return
	}

	reply, err := ctrl.messageService.GuestReply(c.Request.Context(), c.Param("reference"), req.Body)
	if err != nil {
		if errors.Is(err, service.ErrGuestLinkClaimed) {
			// the reply is not stored; the message is needed for the redirect only
			message, _ := ctrl.messageService.GuestThread(c.Param("reference"))
			if message != nil {
				respondGuestClaimed(c, message)
				return
			}
		}
		respondMessageError(c, err, "guest reply")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reply": reply})
}

// ClaimGuestThread attaches a guest thread to the logged-in account
// POST /api/v1/messages/guest/:reference/claim
func (ctrl *MessageController) ClaimGuestThread(c *gin.Context) {
	message, err := ctrl.messageService.ClaimGuestThread(viewerFromContext(c), c.Param("reference"))
	if err != nil {
		respondMessageError(c, err, "claim guest thread")
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": message})
}

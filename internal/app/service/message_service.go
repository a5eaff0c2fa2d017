package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/internal/storage"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/alansalbums/alans-albums-backend/pkg/util"
	"gorm.io/gorm"
)

const (
	minMessageBody = 10
	minGuestReply  = 3
	referenceBytes = 24
)

// Viewer is the account looking at the messaging area. A zero UserID is anonymous.
type Viewer struct {
	UserID  uint
	IsStaff bool
}

func (v Viewer) Anonymous() bool {
	return v.UserID == 0
}

type ContactInput struct {
	Name              string                  `json:"name"`
	Email             string                  `json:"email"`
	Phone             string                  `json:"phone"`
	Subject           model.MessageSubject    `json:"subject"`
	ContactPreference model.ContactPreference `json:"contact_preference"`
	Body              string                  `json:"body"`
}

// InboxEntry is a message annotated with the viewer's unread state
type InboxEntry struct {
	model.Message
	Unread bool `json:"unread"`
}

type InboxPage struct {
	Messages []InboxEntry `json:"messages"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PerPage  int          `json:"per_page"`
}

type MessageService interface {
	Submit(ctx context.Context, viewer Viewer, input ContactInput, images []ImageUpload) (*model.Message, error)
	UnreadCount(viewer Viewer) (int64, error)
	Inbox(viewer Viewer, page, perPage int) (*InboxPage, error)
	OpenThread(viewer Viewer, messageID uint) (*model.Message, error)
	Reply(ctx context.Context, viewer Viewer, messageID uint, body string, images []ImageUpload) (*model.Reply, error)
	ToggleReplied(messageID uint) (*model.Message, error)
	GuestThread(reference string) (*model.Message, error)
	GuestReply(ctx context.Context, reference, body string) (*model.Reply, error)
	ClaimGuestThread(viewer Viewer, reference string) (*model.Message, error)
	Delete(ctx context.Context, messageID uint) error
}

type messageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	images      storage.ImageStore
	notifier    Notifier
	publicURL   string
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	images storage.ImageStore,
	notifier Notifier,
	publicURL string,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		images:      images,
		notifier:    notifier,
		publicURL:   strings.TrimRight(publicURL, "/"),
	}
}

// Submit records a contact message from a user or a guest and tells staff about it
func (s *messageService) Submit(ctx context.Context, viewer Viewer, input ContactInput, images []ImageUpload) (*model.Message, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Body = strings.TrimSpace(input.Body)

	var author *model.User
	if !viewer.Anonymous() {
		user, err := s.userRepo.FindByID(viewer.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		author = user
		if input.Name == "" {
			input.Name = user.Name
		}
		if input.Email == "" {
			input.Email = user.Email
		}
	}

	if err := validateContact(input, author == nil, len(images)); err != nil {
		logger.Warn("Contact submission rejected", map[string]interface{}{
			"user_id": viewer.UserID,
			"error":   err.Error(),
		})
		return nil, err
	}

	reference, err := util.GenerateToken(referenceBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reference: %w", err)
	}

	message := &model.Message{
		Name:              input.Name,
		Email:             input.Email,
		Phone:             strings.TrimSpace(input.Phone),
		Subject:           input.Subject,
		ContactPreference: input.ContactPreference,
		Body:              input.Body,
		Reference:         reference,
	}
	if author != nil {
		message.UserID = &author.ID
	}
	if message.Subject == "" {
		message.Subject = model.SubjectGeneral
	}
	if message.ContactPreference == "" {
		message.ContactPreference = model.ContactEmail
	}

	for _, obj := range storeImages(ctx, s.images, "messages", images) {
		message.Images = append(message.Images, model.MessageImage{URL: obj.URL, StorageKey: obj.Key})
	}

	if err := s.messageRepo.Create(message); err != nil {
		return nil, err
	}

	// the author has seen their own message
	if author != nil {
		if err := s.messageRepo.MarkMessageRead(message.ID, author.ID, time.Now()); err != nil {
			logger.Warn("Failed to mark own message read", map[string]interface{}{
				"message_id": message.ID,
				"user_id":    author.ID,
			})
		}
	}

	logger.Info("Contact message submitted", map[string]interface{}{
		"message_id": message.ID,
		"user_id":    viewer.UserID,
		"guest":      author == nil,
		"images":     len(message.Images),
	})

	s.notify(ctx, ThreadNotification{
		Kind:       KindMessageReceived,
		MessageID:  message.ID,
		Subject:    message.Subject,
		AuthorName: message.Name,
		Excerpt:    excerpt(message.Body),
		UserIDs:    s.staffIDs(),
	})
	return message, nil
}

func validateContact(input ContactInput, guest bool, imageCount int) error {
	if guest {
		if input.Name == "" {
			return fmt.Errorf("%w: name is required", ErrValidation)
		}
		if input.Email == "" {
			return fmt.Errorf("%w: email is required", ErrValidation)
		}
	}
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			return fmt.Errorf("%w: invalid email address", ErrValidation)
		}
	}
	if len([]rune(input.Body)) < minMessageBody {
		return fmt.Errorf("%w: message must be at least %d characters", ErrValidation, minMessageBody)
	}
	if input.Subject != "" && !input.Subject.Valid() {
		return fmt.Errorf("%w: unknown subject %q", ErrValidation, input.Subject)
	}
	if input.ContactPreference != "" && !input.ContactPreference.Valid() {
		return fmt.Errorf("%w: unknown contact preference %q", ErrValidation, input.ContactPreference)
	}
	if input.ContactPreference == model.ContactPhone && strings.TrimSpace(input.Phone) == "" {
		return fmt.Errorf("%w: phone is required for phone contact", ErrValidation)
	}
	if imageCount > storage.MaxImages {
		return fmt.Errorf("%w: at most %d images", ErrValidation, storage.MaxImages)
	}
	return nil
}

func (s *messageService) UnreadCount(viewer Viewer) (int64, error) {
	if viewer.Anonymous() {
		return 0, nil
	}
	if viewer.IsStaff {
		return s.messageRepo.CountUnreadForStaff(viewer.UserID)
	}
	return s.messageRepo.CountUnreadForOwner(viewer.UserID)
}

// Inbox lists every message for staff and the viewer's own messages otherwise
func (s *messageService) Inbox(viewer Viewer, page, perPage int) (*InboxPage, error) {
	if viewer.Anonymous() {
		return nil, ErrThreadAccessDenied
	}
	page, perPage = normalizePage(page, perPage)

	var (
		messages []model.Message
		total    int64
		err      error
	)
	if viewer.IsStaff {
		messages, total, err = s.messageRepo.FindAll(perPage, (page-1)*perPage)
	} else {
		// owners have few threads, page in memory
		messages, err = s.messageRepo.FindByUserID(viewer.UserID)
		total = int64(len(messages))
		messages = pageSlice(messages, page, perPage)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	unread, err := s.messageRepo.UnreadMessageIDs(viewer.UserID, viewer.IsStaff, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]InboxEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, InboxEntry{Message: m, Unread: unread[m.ID]})
	}
	return &InboxPage{Messages: entries, Total: total, Page: page, PerPage: perPage}, nil
}

func pageSlice(messages []model.Message, page, perPage int) []model.Message {
	start := (page - 1) * perPage
	if start >= len(messages) {
		return []model.Message{}
	}
	end := start + perPage
	if end > len(messages) {
		end = len(messages)
	}
	return messages[start:end]
}

func (s *messageService) loadThread(viewer Viewer, messageID uint) (*model.Message, error) {
	if viewer.Anonymous() {
		return nil, ErrThreadAccessDenied
	}
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if !viewer.IsStaff && !message.OwnedBy(viewer.UserID) {
		logger.Warn("Thread access denied", map[string]interface{}{
			"message_id": messageID,
			"user_id":    viewer.UserID,
		})
		return nil, ErrThreadAccessDenied
	}
	return message, nil
}

// OpenThread is the only place read markers are written for a viewer
func (s *messageService) OpenThread(viewer Viewer, messageID uint) (*model.Message, error) {
	message, err := s.loadThread(viewer, messageID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.messageRepo.MarkMessageRead(message.ID, viewer.UserID, now); err != nil {
		return nil, err
	}
	marked, err := s.messageRepo.MarkThreadRepliesRead(message.ID, viewer.UserID, now)
	if err != nil {
		return nil, err
	}

	logger.Debug("Thread opened", map[string]interface{}{
		"message_id":     message.ID,
		"user_id":        viewer.UserID,
		"replies_marked": marked,
	})
	return message, nil
}

// Reply posts a staff or owner reply to a thread
func (s *messageService) Reply(ctx context.Context, viewer Viewer, messageID uint, body string, images []ImageUpload) (*model.Reply, error) {
	message, err := s.loadThread(viewer, messageID)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: reply cannot be empty", ErrValidation)
	}
	if len(images) > storage.MaxImages {
		return nil, fmt.Errorf("%w: at most %d images", ErrValidation, storage.MaxImages)
	}

	author, err := s.userRepo.FindByID(viewer.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	reply := &model.Reply{MessageID: message.ID, UserID: &author.ID, Body: body}
	for _, obj := range storeImages(ctx, s.images, "replies", images) {
		reply.Images = append(reply.Images, model.ReplyImage{URL: obj.URL, StorageKey: obj.Key})
	}
	if err := s.messageRepo.CreateReply(reply); err != nil {
		return nil, err
	}
	reply.User = author

	if err := s.messageRepo.MarkReplyRead(reply.ID, author.ID, time.Now()); err != nil {
		logger.Warn("Failed to mark own reply read", map[string]interface{}{
			"reply_id": reply.ID,
			"user_id":  author.ID,
		})
	}
	if err := s.messageRepo.SetReplied(message.ID, true); err != nil {
		return nil, err
	}

	logger.Info("Reply posted", map[string]interface{}{
		"message_id": message.ID,
		"reply_id":   reply.ID,
		"staff":      author.IsStaff(),
	})

	n := ThreadNotification{
		MessageID:  message.ID,
		Subject:    message.Subject,
		AuthorName: author.Name,
		Excerpt:    excerpt(body),
	}
	if author.IsStaff() {
		n.Kind = KindStaffReply
		n.Email = message.Email
		if message.UserID != nil {
			n.UserIDs = []uint{*message.UserID}
			n.Link = s.threadLink(message)
		} else {
			n.Link = s.guestLink(message)
		}
	} else {
		n.Kind = KindCustomerReply
		n.UserIDs = s.staffIDs()
	}
	s.notify(ctx, n)
	return reply, nil
}

func (s *messageService) ToggleReplied(messageID uint) (*model.Message, error) {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	message.Replied = !message.Replied
	if err := s.messageRepo.SetReplied(message.ID, message.Replied); err != nil {
		return nil, err
	}
	return message, nil
}

// GuestThread returns the thread behind a reference link. Once a registered account
// owns the thread it returns the message together with ErrGuestLinkClaimed.
func (s *messageService) GuestThread(reference string) (*model.Message, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrMessageNotFound
	}
	message, err := s.messageRepo.FindByReference(reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if message.UserID != nil {
		return message, ErrGuestLinkClaimed
	}
	return message, nil
}

// GuestReply accepts a text reply through a reference link
func (s *messageService) GuestReply(ctx context.Context, reference, body string) (*model.Reply, error) {
	message, err := s.GuestThread(reference)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if len([]rune(body)) < minGuestReply {
		return nil, fmt.Errorf("%w: reply must be at least %d characters", ErrValidation, minGuestReply)
	}

	reply := &model.Reply{MessageID: message.ID, Body: body}
	if err := s.messageRepo.CreateReply(reply); err != nil {
		return nil, err
	}

	logger.Info("Guest reply posted", map[string]interface{}{
		"message_id": message.ID,
		"reply_id":   reply.ID,
	})

	s.notify(ctx, ThreadNotification{
		Kind:       KindCustomerReply,
		MessageID:  message.ID,
		Subject:    message.Subject,
		AuthorName: message.Name,
		Excerpt:    excerpt(body),
		UserIDs:    s.staffIDs(),
	})
	return reply, nil
}

// ClaimGuestThread moves a guest thread into the viewer's account. Holding the
// reference link is the proof of ownership; the sender email is never used.
func (s *messageService) ClaimGuestThread(viewer Viewer, reference string) (*model.Message, error) {
	if viewer.Anonymous() || viewer.IsStaff {
		return nil, ErrThreadAccessDenied
	}

	message, err := s.GuestThread(reference)
	if errors.Is(err, ErrGuestLinkClaimed) {
		if message.OwnedBy(viewer.UserID) {
			return message, nil
		}
		return nil, ErrThreadAccessDenied
	}
	if err != nil {
		return nil, err
	}

	claimed, err := s.messageRepo.ClaimByReference(message.Reference, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// another account won the race
		return nil, ErrThreadAccessDenied
	}

	logger.Info("Guest thread claimed", map[string]interface{}{
		"message_id": message.ID,
		"user_id":    viewer.UserID,
	})
	return s.OpenThread(viewer, message.ID)
}

// Delete removes a thread with its replies, markers and stored images
func (s *messageService) Delete(ctx context.Context, messageID uint) error {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	if err := s.messageRepo.Delete(message.ID); err != nil {
		return err
	}

	if s.images != nil {
		var keys []string
		for _, img := range message.Images {
			keys = append(keys, img.StorageKey)
		}
		for _, r := range message.Replies {
			for _, img := range r.Images {
				keys = append(keys, img.StorageKey)
			}
		}
		for _, key := range keys {
			if key == "" {
				continue
			}
			if err := s.images.Delete(ctx, key); err != nil {
				logger.Warn("Failed to delete message image from storage", map[string]interface{}{
					"message_id": message.ID,
					"key":        key,
					"error":      err.Error(),
				})
			}
		}
	}

	logger.Info("Message deleted", map[string]interface{}{
		"message_id": message.ID,
	})
	return nil
}

func (s *messageService) staffIDs() []uint {
	ids, err := s.userRepo.FindStaffIDs()
	if err != nil {
		logger.Warn("Failed to load staff for notification", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return ids
}

func (s *messageService) notify(ctx context.Context, n ThreadNotification) {
	if s.notifier == nil {
		return
	}
	s.notifier.ThreadUpdated(ctx, n)
}

func (s *messageService) threadLink(message *model.Message) string {
	return fmt.Sprintf("%s/messages/%d", s.publicURL, message.ID)
}

func (s *messageService) guestLink(message *model.Message) string {
	return fmt.Sprintf("%s/messages/guest/%s", s.publicURL, message.Reference)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
)

const (
	KindMessageReceived = "message_received"
	KindCustomerReply   = "customer_reply"
	KindStaffReply      = "staff_reply"

	excerptLength = 140
)

// ThreadNotification describes new activity on a message thread
type ThreadNotification struct {
	Kind       string               `json:"type"`
	MessageID  uint                 `json:"message_id"`
	Subject    model.MessageSubject `json:"subject"`
	AuthorName string               `json:"author_name"`
	Excerpt    string               `json:"excerpt"`

	// registered recipients, reached in real time
	UserIDs []uint `json:"-"`
	// external recipient for a staff reply, reached by mail
	Email string `json:"-"`
	Link  string `json:"-"`
}

// Notifier delivers thread activity. Delivery is best effort.
type Notifier interface {
	ThreadUpdated(ctx context.Context, n ThreadNotification)
}

// MultiNotifier fans a notification out to every notifier
type MultiNotifier []Notifier

func (m MultiNotifier) ThreadUpdated(ctx context.Context, n ThreadNotification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.ThreadUpdated(ctx, n)
		}
	}
}

// MailSender is satisfied by util.Mailer
type MailSender interface {
	Send(to, subject, body string) error
}

// MailNotifier emails the staff inbox about customer activity and customers about staff replies
type MailNotifier struct {
	sender     MailSender
	staffEmail string
}

func NewMailNotifier(sender MailSender, staffEmail string) *MailNotifier {
	return &MailNotifier{sender: sender, staffEmail: staffEmail}
}

func (m *MailNotifier) ThreadUpdated(ctx context.Context, n ThreadNotification) {
	var to, subject, body string
	switch n.Kind {
	case KindMessageReceived, KindCustomerReply:
		to = m.staffEmail
		subject = fmt.Sprintf("New %s message from %s", n.Subject, n.AuthorName)
		if n.Kind == KindCustomerReply {
			subject = fmt.Sprintf("%s replied to message #%d", n.AuthorName, n.MessageID)
		}
		body = n.Excerpt
	case KindStaffReply:
		to = n.Email
		subject = "You have a reply from Alan's Albums"
		body = n.Excerpt
		if n.Link != "" {
			body += "\n\nRead and reply: " + n.Link
		}
	default:
		return
	}
	if to == "" {
		return
	}

	if err := m.sender.Send(to, subject, body); err != nil {
		logger.Warn("Thread notification mail not delivered", map[string]interface{}{
			"message_id": n.MessageID,
			"kind":       n.Kind,
			"error":      err.Error(),
		})
	}
}

func excerpt(body string) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= excerptLength {
		return body
	}
	return string(runes[:excerptLength]) + "..."
}

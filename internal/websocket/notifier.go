package websocket

import (
	"context"

	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
)

// Notifier pushes thread activity with a fresh unread count to connected recipients
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) ThreadUpdated(ctx context.Context, notification service.ThreadNotification) {
	// staff replies go to owners, everything else to staff
	isStaff := notification.Kind != service.KindStaffReply

	for _, userID := range notification.UserIDs {
		if !n.hub.IsUserOnline(userID) {
			continue
		}

		event := Event{Type: notification.Kind, Thread: &notification}
		if n.hub.counter != nil {
			count, err := n.hub.counter.UnreadCount(service.Viewer{UserID: userID, IsStaff: isStaff})
			if err != nil {
				logger.Warn("Failed to count unread messages", map[string]interface{}{
					"user_id": userID,
					"error":   err.Error(),
				})
			}
			event.Unread = count
		}
		_ = n.hub.SendToUser(userID, event)
	}
}

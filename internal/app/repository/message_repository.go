package repository

import (
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	Create(message *model.Message) error
	FindByID(id uint) (*model.Message, error)
	FindByReference(reference string) (*model.Message, error)
	FindAll(limit, offset int) ([]model.Message, int64, error)
	FindByUserID(userID uint) ([]model.Message, error)
	SetReplied(id uint, replied bool) error
	Delete(id uint) error
	ClaimByReference(reference string, userID uint) (bool, error)

	CreateReply(reply *model.Reply) error

	MarkMessageRead(messageID, userID uint, at time.Time) error
	MarkReplyRead(replyID, userID uint, at time.Time) error
	MarkThreadRepliesRead(messageID, userID uint, at time.Time) (int, error)

	CountUnreadForStaff(userID uint) (int64, error)
	CountUnreadForOwner(userID uint) (int64, error)
	UnreadMessageIDs(userID uint, staff bool, messageIDs []uint) (map[uint]bool, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) preloadThread() *gorm.DB {
	return r.db.
		Preload("User").
		Preload("Images").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("replies.created_at ASC").Order("replies.id ASC")
		}).
		Preload("Replies.User").
		Preload("Replies.Images")
}

func (r *messageRepository) Create(message *model.Message) error {
	logger.Debug("Creating message in database", map[string]interface{}{
		"user_id":     message.UserID,
		"subject":     message.Subject,
		"image_count": len(message.Images),
	})

	if err := r.db.Create(message).Error; err != nil {
		logger.Error("Failed to create message in database", err, map[string]interface{}{
			"user_id": message.UserID,
		})
		return err
	}

	logger.Debug("Message created in database", map[string]interface{}{
		"message_id": message.ID,
	})
	return nil
}

func (r *messageRepository) FindByID(id uint) (*model.Message, error) {
	logger.Debug("Finding message by ID in database", map[string]interface{}{
		"message_id": id,
	})

	var message model.Message
	if err := r.preloadThread().First(&message, id).Error; err != nil {
		logger.Error("Failed to find message by ID in database", err, map[string]interface{}{
			"message_id": id,
		})
		return nil, err
	}

	logger.Debug("Message found by ID in database", map[string]interface{}{
		"message_id":  message.ID,
		"reply_count": len(message.Replies),
	})
	return &message, nil
}

func (r *messageRepository) FindByReference(reference string) (*model.Message, error) {
	logger.Debug("Finding message by reference in database", nil)

	var message model.Message
	if err := r.preloadThread().Where("reference = ?", reference).First(&message).Error; err != nil {
		logger.Error("Failed to find message by reference in database", err)
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindAll(limit, offset int) ([]model.Message, int64, error) {
	var total int64
	if err := r.db.Model(&model.Message{}).Count(&total).Error; err != nil {
		logger.Error("Failed to count messages in database", err)
		return nil, 0, err
	}

	query := r.db.Preload("User").Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var messages []model.Message
	if err := query.Find(&messages).Error; err != nil {
		logger.Error("Failed to find messages in database", err)
		return nil, 0, err
	}

	logger.Debug("Messages found in database", map[string]interface{}{
		"count": len(messages),
		"total": total,
	})
	return messages, total, nil
}

func (r *messageRepository) FindByUserID(userID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&messages).Error; err != nil {
		logger.Error("Failed to find messages by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Messages found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(messages),
	})
	return messages, nil
}

func (r *messageRepository) SetReplied(id uint, replied bool) error {
	result := r.db.Model(&model.Message{}).Where("id = ?", id).Update("replied", replied)
	if result.Error != nil {
		logger.Error("Failed to update message replied flag", result.Error, map[string]interface{}{
			"message_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a message with its replies, images and read markers
func (r *messageRepository) Delete(id uint) error {
	logger.Debug("Deleting message from database", map[string]interface{}{
		"message_id": id,
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		replyIDs := tx.Model(&model.Reply{}).Select("id").Where("message_id = ?", id)
		if err := tx.Where("reply_id IN (?)", replyIDs).Delete(&model.ReplyRead{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reply_id IN (?)", replyIDs).Delete(&model.ReplyImage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&model.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&model.MessageRead{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&model.MessageImage{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Message{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to delete message from database", err, map[string]interface{}{
			"message_id": id,
		})
		return err
	}

	logger.Debug("Message deleted from database", map[string]interface{}{
		"message_id": id,
	})
	return nil
}

// ClaimByReference gives an unowned guest thread to the user. It reports false
// when the reference is unknown or the thread already has an owner.
func (r *messageRepository) ClaimByReference(reference string, userID uint) (bool, error) {
	result := r.db.Model(&model.Message{}).
		Where("reference = ? AND user_id IS NULL", reference).
		Update("user_id", userID)
	if result.Error != nil {
		logger.Error("Failed to claim guest message", result.Error, map[string]interface{}{
			"user_id": userID,
		})
		return false, result.Error
	}

	logger.Debug("Guest message claim attempted", map[string]interface{}{
		"user_id": userID,
		"claimed": result.RowsAffected == 1,
	})
	return result.RowsAffected == 1, nil
}

func (r *messageRepository) CreateReply(reply *model.Reply) error {
	logger.Debug("Creating reply in database", map[string]interface{}{
		"message_id": reply.MessageID,
		"user_id":    reply.UserID,
	})

	if err := r.db.Create(reply).Error; err != nil {
		logger.Error("Failed to create reply in database", err, map[string]interface{}{
			"message_id": reply.MessageID,
		})
		return err
	}

	logger.Debug("Reply created in database", map[string]interface{}{
		"reply_id":   reply.ID,
		"message_id": reply.MessageID,
	})
	return nil
}

func (r *messageRepository) MarkMessageRead(messageID, userID uint, at time.Time) error {
	mark := model.MessageRead{MessageID: messageID, UserID: userID, ReadAt: &at}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": at}),
	}).Create(&mark).Error
	if err != nil {
		logger.Error("Failed to mark message read", err, map[string]interface{}{
			"message_id": messageID,
			"user_id":    userID,
		})
		return err
	}
	return nil
}

func (r *messageRepository) MarkReplyRead(replyID, userID uint, at time.Time) error {
	mark := model.ReplyRead{ReplyID: replyID, UserID: userID, ReadAt: &at}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reply_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": at}),
	}).Create(&mark).Error
	if err != nil {
		logger.Error("Failed to mark reply read", err, map[string]interface{}{
			"reply_id": replyID,
			"user_id":  userID,
		})
		return err
	}
	return nil
}

// MarkThreadRepliesRead marks every reply in the thread not written by userID as read
func (r *messageRepository) MarkThreadRepliesRead(messageID, userID uint, at time.Time) (int, error) {
	var replyIDs []uint
	if err := r.db.Model(&model.Reply{}).
		Where("message_id = ? AND (user_id IS NULL OR user_id <> ?)", messageID, userID).
		Pluck("id", &replyIDs).Error; err != nil {
		logger.Error("Failed to find thread replies", err, map[string]interface{}{
			"message_id": messageID,
		})
		return 0, err
	}
	if len(replyIDs) == 0 {
		return 0, nil
	}

	marks := make([]model.ReplyRead, 0, len(replyIDs))
	for _, id := range replyIDs {
		marks = append(marks, model.ReplyRead{ReplyID: id, UserID: userID, ReadAt: &at})
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reply_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": at}),
	}).Create(&marks).Error
	if err != nil {
		logger.Error("Failed to mark thread replies read", err, map[string]interface{}{
			"message_id": messageID,
			"user_id":    userID,
		})
		return 0, err
	}

	logger.Debug("Thread replies marked read", map[string]interface{}{
		"message_id": messageID,
		"user_id":    userID,
		"count":      len(marks),
	})
	return len(marks), nil
}

// unreadStaffReplies selects replies from guests or customers the staff member has not seen
func (r *messageRepository) unreadStaffReplies(userID uint) *gorm.DB {
	return r.db.Model(&model.Reply{}).
		Joins("LEFT JOIN users ON users.id = replies.user_id").
		Where("replies.user_id IS NULL OR users.role <> ?", model.RoleStaff).
		Where("NOT EXISTS (SELECT 1 FROM reply_reads WHERE reply_reads.reply_id = replies.id AND reply_reads.user_id = ?)", userID)
}

// unreadOwnerReplies selects staff replies on the owner's threads the owner has not seen
func (r *messageRepository) unreadOwnerReplies(userID uint) *gorm.DB {
	return r.db.Model(&model.Reply{}).
		Joins("JOIN messages ON messages.id = replies.message_id").
		Joins("JOIN users ON users.id = replies.user_id").
		Where("messages.user_id = ? AND users.role = ?", userID, model.RoleStaff).
		Where("NOT EXISTS (SELECT 1 FROM reply_reads WHERE reply_reads.reply_id = replies.id AND reply_reads.user_id = ?)", userID)
}

func (r *messageRepository) unreadMessages(userID uint) *gorm.DB {
	return r.db.Model(&model.Message{}).
		Where("NOT EXISTS (SELECT 1 FROM message_reads WHERE message_reads.message_id = messages.id AND message_reads.user_id = ?)", userID)
}

func (r *messageRepository) CountUnreadForStaff(userID uint) (int64, error) {
	var replies, messages int64
	if err := r.unreadStaffReplies(userID).Count(&replies).Error; err != nil {
		logger.Error("Failed to count unread replies for staff", err, map[string]interface{}{
			"user_id": userID,
		})
		return 0, err
	}
	if err := r.unreadMessages(userID).Count(&messages).Error; err != nil {
		logger.Error("Failed to count unread messages for staff", err, map[string]interface{}{
			"user_id": userID,
		})
		return 0, err
	}

	logger.Debug("Unread count for staff computed", map[string]interface{}{
		"user_id":  userID,
		"replies":  replies,
		"messages": messages,
	})
	return replies + messages, nil
}

// CountUnreadForOwner counts staff replies and claimed messages the owner has not opened.
// Messages the owner wrote are marked read on submission so they never count.
func (r *messageRepository) CountUnreadForOwner(userID uint) (int64, error) {
	var replies, messages int64
	if err := r.unreadOwnerReplies(userID).Count(&replies).Error; err != nil {
		logger.Error("Failed to count unread replies for owner", err, map[string]interface{}{
			"user_id": userID,
		})
		return 0, err
	}
	if err := r.unreadMessages(userID).Where("messages.user_id = ?", userID).Count(&messages).Error; err != nil {
		logger.Error("Failed to count unread messages for owner", err, map[string]interface{}{
			"user_id": userID,
		})
		return 0, err
	}

	logger.Debug("Unread count for owner computed", map[string]interface{}{
		"user_id":  userID,
		"replies":  replies,
		"messages": messages,
	})
	return replies + messages, nil
}

// UnreadMessageIDs reports which of messageIDs hold anything unread for the viewer
func (r *messageRepository) UnreadMessageIDs(userID uint, staff bool, messageIDs []uint) (map[uint]bool, error) {
	unread := make(map[uint]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return unread, nil
	}

	var fromMessages []uint
	if err := r.unreadMessages(userID).
		Where("messages.id IN ?", messageIDs).
		Pluck("messages.id", &fromMessages).Error; err != nil {
		return nil, err
	}

	replies := r.unreadOwnerReplies(userID)
	if staff {
		replies = r.unreadStaffReplies(userID)
	}
	var fromReplies []uint
	if err := replies.
		Where("replies.message_id IN ?", messageIDs).
		Pluck("replies.message_id", &fromReplies).Error; err != nil {
		return nil, err
	}

	for _, id := range fromMessages {
		unread[id] = true
	}
	for _, id := range fromReplies {
		unread[id] = true
	}
	return unread, nil
}

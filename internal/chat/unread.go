package chat

import (
	"context"
	"fmt"

	"github.com/ilanpazar/messaging/internal/models"
	"gorm.io/gorm"
)

// UnreadAggregator computes per-conversation and per-mailbox unread counts
// from MessageStore state. Nothing here is stored; every count is derived.
type UnreadAggregator struct {
	db *gorm.DB
}

// NewUnreadAggregator creates an UnreadAggregator backed by db.
func NewUnreadAggregator(db *gorm.DB) *UnreadAggregator {
	return &UnreadAggregator{db: db}
}

// PerConversationUnread counts messages in the conversation addressed to
// userID that are still unread.
func (a *UnreadAggregator) PerConversationUnread(ctx context.Context, userID, conversationID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("chat: unread count for conversation %d: %w", conversationID, err)
	}
	return count, nil
}

// MailboxUnread sums unread counts across one mailbox view: "received" covers
// conversations where the user was contacted, "sent" covers unread replies in
// conversations the user initiated. Both agree with the per-conversation
// counts by construction (same predicate, joined per view).
func (a *UnreadAggregator) MailboxUnread(ctx context.Context, userID uint, direction Direction) (int64, error) {
	q := a.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.receiver_id = ? AND messages.is_read = ?", userID, false)
	switch direction {
	case DirectionReceived:
		q = q.Where("conversations.recipient_id = ?", userID)
	case DirectionSent:
		q = q.Where("conversations.initiator_id = ?", userID)
	default:
		return 0, fmt.Errorf("%w: unknown direction %q", ErrValidation, direction)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("chat: mailbox unread for user %d: %w", userID, err)
	}
	return count, nil
}

// MailboxBreakdown returns the per-conversation unread counts of one mailbox
// view in a single query, keyed by conversation id. Used for badge rendering.
func (a *UnreadAggregator) MailboxBreakdown(ctx context.Context, userID uint, direction Direction) (map[uint]int64, error) {
	q := a.db.WithContext(ctx).Model(&models.Message{}).
		Select("messages.conversation_id AS conversation_id, COUNT(*) AS unread").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.receiver_id = ? AND messages.is_read = ?", userID, false).
		Group("messages.conversation_id")
	switch direction {
	case DirectionReceived:
		q = q.Where("conversations.recipient_id = ?", userID)
	case DirectionSent:
		q = q.Where("conversations.initiator_id = ?", userID)
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrValidation, direction)
	}

	var rows []struct {
		ConversationID uint
		Unread         int64
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("chat: mailbox breakdown for user %d: %w", userID, err)
	}
	breakdown := make(map[uint]int64, len(rows))
	for _, row := range rows {
		breakdown[row.ConversationID] = row.Unread
	}
	return breakdown, nil
}

package chat

import (
	"context"
	"fmt"

	"github.com/ilanpazar/messaging/internal/models"
	"gorm.io/gorm"
)

// ReadTracker flips read state, always scoped to the addressed recipient.
// The REST PATCH, the passive receipt in MessageStore.Page and the gateway's
// markAsRead all converge on MarkConversationRead.
type ReadTracker struct {
	db    *gorm.DB
	convs *ConversationStore
}

// NewReadTracker creates a ReadTracker backed by db.
func NewReadTracker(db *gorm.DB, convs *ConversationStore) *ReadTracker {
	return &ReadTracker{db: db, convs: convs}
}

// MarkConversationRead marks every unread message addressed to userID in the
// conversation as read and returns how many rows changed. Messages addressed
// to the other participant are never touched. Idempotent: a repeat call
// changes zero rows.
func (t *ReadTracker) MarkConversationRead(ctx context.Context, conversationID, userID uint) (int64, error) {
	if _, err := t.convs.GetByID(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	result := t.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("chat: mark conversation %d read: %w", conversationID, result.Error)
	}
	return result.RowsAffected, nil
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ilanpazar/messaging/internal/models"
	"gorm.io/gorm"
)

// MessageStore is the append-only per-conversation message log with
// pagination and delta queries.
type MessageStore struct {
	db    *gorm.DB
	convs *ConversationStore
	reads *ReadTracker
}

// NewMessageStore creates a MessageStore. The ReadTracker is used for the
// passive read receipt taken during Page.
func NewMessageStore(db *gorm.DB, convs *ConversationStore, reads *ReadTracker) *MessageStore {
	return &MessageStore{db: db, convs: convs, reads: reads}
}

// MessagePage is one reverse-chronological window of a conversation's log.
// Total and HasMore come from an authoritative count, not the window length.
type MessagePage struct {
	Messages []models.Message
	Total    int64
	HasMore  bool
}

// Append persists a new message. The sender must be a participant; the
// receiver is always the other participant. Content may be empty only when at
// least one attachment is present, and attachment keys and type tags must be
// parallel.
func (s *MessageStore) Append(ctx context.Context, conversationID, senderID uint, content string, attachments, fileTypes []string) (*models.Message, error) {
	conv, err := s.convs.GetByID(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs content or attachments", ErrValidation)
	}
	if len(attachments) != len(fileTypes) {
		return nil, fmt.Errorf("%w: %d attachments but %d file types", ErrValidation, len(attachments), len(fileTypes))
	}

	encodedKeys, err := models.EncodeList(attachments)
	if err != nil {
		return nil, fmt.Errorf("chat: encode attachments: %w", err)
	}
	encodedTypes, err := models.EncodeList(fileTypes)
	if err != nil {
		return nil, fmt.Errorf("chat: encode file types: %w", err)
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     conv.OtherParticipant(senderID),
		Content:        content,
		Attachments:    encodedKeys,
		FileTypes:      encodedTypes,
		IsRead:         false,
		CreatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("chat: append message: %w", err)
	}
	return &msg, nil
}

// Page returns one reverse-chronological window of the conversation. Fetching
// a page doubles as a passive read receipt: every unread message addressed to
// the caller in this conversation is marked read first, so the returned rows
// already reflect it.
func (s *MessageStore) Page(ctx context.Context, conversationID, callerID uint, pageIndex, pageSize int) (*MessagePage, error) {
	if _, err := s.convs.GetByID(ctx, conversationID, callerID); err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: bad page window %d/%d", ErrValidation, pageIndex, pageSize)
	}

	if _, err := s.reads.MarkConversationRead(ctx, conversationID, callerID); err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("chat: count messages: %w", err)
	}

	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Offset(pageIndex * pageSize).
		Limit(pageSize).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: page messages: %w", err)
	}

	return &MessagePage{
		Messages: msgs,
		Total:    total,
		HasMore:  int64((pageIndex+1)*pageSize) < total,
	}, nil
}

// Since returns every message created strictly after the given instant,
// oldest first. Repeated calls with a non-decreasing cursor never miss a
// message; rows sharing a timestamp are ordered by id so ties are stable.
func (s *MessageStore) Since(ctx context.Context, conversationID, callerID uint, since time.Time) ([]models.Message, error) {
	if _, err := s.convs.GetByID(ctx, conversationID, callerID); err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND created_at > ?", conversationID, since).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: messages since %s: %w", since.Format(time.RFC3339), err)
	}
	return msgs, nil
}

// SinceID is the skew-proof variant of Since: it cursors on the monotone
// message id instead of wall-clock time.
func (s *MessageStore) SinceID(ctx context.Context, conversationID, callerID, afterID uint) ([]models.Message, error) {
	if _, err := s.convs.GetByID(ctx, conversationID, callerID); err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND id > ?", conversationID, afterID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: messages after id %d: %w", afterID, err)
	}
	return msgs, nil
}

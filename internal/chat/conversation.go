// Package chat implements the messaging core: conversation lifecycle, the
// append-only message log, read-receipt tracking and unread aggregation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilanpazar/messaging/internal/models"
	"gorm.io/gorm"
)

// Direction selects one of the two mailbox views.
type Direction string

const (
	// DirectionReceived covers conversations where the user was contacted.
	DirectionReceived Direction = "received"
	// DirectionSent covers conversations the user initiated.
	DirectionSent Direction = "sent"
)

// ConversationStore owns conversation identity and find-or-create semantics.
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore creates a ConversationStore backed by db.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// FindOrCreate returns the conversation for the exact ordered
// (listingRef, initiatorID, recipientID) triple, inserting it if absent.
// Concurrent calls with identical arguments resolve to a single row: the
// composite unique index rejects the losing insert, which then re-reads the
// winner's row.
func (s *ConversationStore) FindOrCreate(ctx context.Context, listingRef, listingTitle string, initiatorID, recipientID uint) (*models.Conversation, error) {
	if listingRef == "" {
		return nil, fmt.Errorf("%w: listing ref is required", ErrValidation)
	}
	if initiatorID == 0 || recipientID == 0 {
		return nil, fmt.Errorf("%w: both participants are required", ErrValidation)
	}
	if initiatorID == recipientID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	}

	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("listing_ref = ? AND initiator_id = ? AND recipient_id = ?", listingRef, initiatorID, recipientID).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chat: find conversation: %w", err)
	}

	conv = models.Conversation{
		ListingRef:   listingRef,
		ListingTitle: listingTitle,
		InitiatorID:  initiatorID,
		RecipientID:  recipientID,
		CreatedAt:    time.Now(),
	}
	if createErr := s.db.WithContext(ctx).Create(&conv).Error; createErr != nil {
		// Lost the insert race: the unique index tripped, so the row exists.
		var existing models.Conversation
		if readErr := s.db.WithContext(ctx).
			Where("listing_ref = ? AND initiator_id = ? AND recipient_id = ?", listingRef, initiatorID, recipientID).
			First(&existing).Error; readErr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("chat: create conversation: %w", createErr)
	}
	return &conv, nil
}

// GetByID loads a conversation, enforcing that callerID is a participant.
func (s *ConversationStore) GetByID(ctx context.Context, id, callerID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: conversation %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: get conversation %d: %w", id, err)
	}
	if !conv.HasParticipant(callerID) {
		return nil, fmt.Errorf("%w: user %d is not in conversation %d", ErrForbidden, callerID, id)
	}
	return &conv, nil
}

// ListForUser returns the user's conversations for one mailbox view, newest
// first.
func (s *ConversationStore) ListForUser(ctx context.Context, userID uint, direction Direction) ([]models.Conversation, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	switch direction {
	case DirectionReceived:
		q = q.Where("recipient_id = ?", userID)
	case DirectionSent:
		q = q.Where("initiator_id = ?", userID)
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrValidation, direction)
	}
	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("chat: list conversations for user %d: %w", userID, err)
	}
	return convs, nil
}

// Delete removes the conversation and all of its messages. Either participant
// may delete the whole thread; nobody else can.
func (s *ConversationStore) Delete(ctx context.Context, id, callerID uint) error {
	conv, err := s.GetByID(ctx, id, callerID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, conv.ID).Error
	})
	if err != nil {
		return fmt.Errorf("chat: delete conversation %d: %w", id, err)
	}
	return nil
}

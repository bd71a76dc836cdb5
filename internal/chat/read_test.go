package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/ilanpazar/messaging/internal/models"
)

func TestMarkConversationRead_ScopedToReceiver(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	conv := mustConversation(t, s, "l-42", 1, 2)
	mustAppend(t, s, conv.ID, 1, "to user 2")
	mustAppend(t, s, conv.ID, 1, "also to user 2")
	mustAppend(t, s, conv.ID, 2, "to user 1")

	updated, err := s.reads.MarkConversationRead(ctx, conv.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}

	var unreadForOne int64
	s.db.Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conv.ID, 1, false).
		Count(&unreadForOne)
	if unreadForOne != 1 {
		t.Errorf("user 1's message was flipped; unread = %d, want 1", unreadForOne)
	}
}

func TestMarkConversationRead_Idempotent(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	conv := mustConversation(t, s, "l-42", 1, 2)
	mustAppend(t, s, conv.ID, 1, "hi")

	first, err := s.reads.MarkConversationRead(ctx, conv.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if first != 1 {
		t.Errorf("first call updated = %d, want 1", first)
	}

	second, err := s.reads.MarkConversationRead(ctx, conv.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if second != 0 {
		t.Errorf("repeat call updated = %d, want 0", second)
	}
}

func TestMarkConversationRead_Authorization(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	conv := mustConversation(t, s, "l-42", 1, 2)

	if _, err := s.reads.MarkConversationRead(ctx, conv.ID, 3); !errors.Is(err, ErrForbidden) {
		t.Errorf("outsider err = %v, want ErrForbidden", err)
	}
	if _, err := s.reads.MarkConversationRead(ctx, 9999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing conversation err = %v, want ErrNotFound", err)
	}
}

package chat

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ilanpazar/messaging/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test db pool: %v", err)
	}
	// One connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type testStores struct {
	db     *gorm.DB
	convs  *ConversationStore
	msgs   *MessageStore
	reads  *ReadTracker
	unread *UnreadAggregator
	poll   *PollService
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()
	db := openTestDB(t)
	convs := NewConversationStore(db)
	reads := NewReadTracker(db, convs)
	msgs := NewMessageStore(db, convs, reads)
	return &testStores{
		db:     db,
		convs:  convs,
		msgs:   msgs,
		reads:  reads,
		unread: NewUnreadAggregator(db),
		poll:   NewPollService(msgs),
	}
}

func mustConversation(t *testing.T, s *testStores, listingRef string, initiatorID, recipientID uint) *models.Conversation {
	t.Helper()
	conv, err := s.convs.FindOrCreate(context.Background(), listingRef, "Test Listing", initiatorID, recipientID)
	if err != nil {
		t.Fatalf("find or create conversation: %v", err)
	}
	return conv
}

func mustAppend(t *testing.T, s *testStores, conversationID, senderID uint, content string) *models.Message {
	t.Helper()
	msg, err := s.msgs.Append(context.Background(), conversationID, senderID, content, nil, nil)
	if err != nil {
		t.Fatalf("append message: %v", err)
	}
	return msg
}

package cleanup

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
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
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func seedConversation(t *testing.T, db *gorm.DB, listingRef string, createdAt time.Time) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		ListingRef:  listingRef,
		InitiatorID: 1,
		RecipientID: 2,
		CreatedAt:   createdAt,
	}
	if err := db.Create(conv).Error; err != nil {
		t.Fatal(err)
	}
	return conv
}

func seedMessage(t *testing.T, db *gorm.DB, conversationID uint, createdAt time.Time) {
	t.Helper()
	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       1,
		ReceiverID:     2,
		Content:        "m",
		Attachments:    "[]",
		FileTypes:      "[]",
		CreatedAt:      createdAt,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatal(err)
	}
}

func TestRunOnce_RemovesOnlyStaleThreads(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	stale := seedConversation(t, db, "l-old", now.Add(-90*24*time.Hour))
	seedMessage(t, db, stale.ID, now.Add(-80*24*time.Hour))

	revived := seedConversation(t, db, "l-revived", now.Add(-90*24*time.Hour))
	seedMessage(t, db, revived.ID, now.Add(-1*time.Hour))

	fresh := seedConversation(t, db, "l-fresh", now.Add(-time.Hour))

	sweeper := NewSweeper(db, 30*24*time.Hour, quietLogger())
	removed, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	var convCount int64
	db.Model(&models.Conversation{}).Count(&convCount)
	if convCount != 2 {
		t.Errorf("conversations left = %d, want 2", convCount)
	}

	var staleMsgs int64
	db.Model(&models.Message{}).Where("conversation_id = ?", stale.ID).Count(&staleMsgs)
	if staleMsgs != 0 {
		t.Errorf("stale conversation's messages left = %d, want 0", staleMsgs)
	}

	var keptIDs []uint
	db.Model(&models.Conversation{}).Order("id").Pluck("id", &keptIDs)
	want := []uint{revived.ID, fresh.ID}
	for i, id := range keptIDs {
		if id != want[i] {
			t.Errorf("kept ids = %v, want %v", keptIDs, want)
			break
		}
	}
}

func TestRunOnce_EmptyDatabase(t *testing.T) {
	db := openTestDB(t)
	sweeper := NewSweeper(db, 30*24*time.Hour, quietLogger())
	removed, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	seedConversation(t, db, "l-old", now.Add(-90*24*time.Hour))

	sweeper := NewSweeper(db, 30*24*time.Hour, quietLogger())
	if _, err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	removed, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("second sweep removed = %d, want 0", removed)
	}
}

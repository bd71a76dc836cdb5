package models

import (
	"encoding/json"
	"time"
)

// Message is one entry of a conversation's append-only log. Attachments and
// FileTypes are parallel JSON-encoded string arrays (object keys and coarse
// type tags). A message is immutable after creation except for IsRead, which
// only ever transitions false -> true.
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	ConversationID uint      `gorm:"not null;index"`
	SenderID       uint      `gorm:"not null"`
	ReceiverID     uint      `gorm:"not null;index:idx_msg_unread"`
	Content        string    `gorm:"type:text"`
	Attachments    string    `gorm:"type:text"`
	FileTypes      string    `gorm:"type:text"`
	IsRead         bool      `gorm:"default:false;index:idx_msg_unread"`
	CreatedAt      time.Time `gorm:"index"`
}

// AttachmentKeys decodes the stored attachment object keys.
func (m *Message) AttachmentKeys() []string {
	return decodeList(m.Attachments)
}

// FileTypeTags decodes the stored coarse type tags, parallel to AttachmentKeys.
func (m *Message) FileTypeTags() []string {
	return decodeList(m.FileTypes)
}

// EncodeList marshals a string slice for storage in a text column. A nil or
// empty slice encodes as "[]" so the column is never NULL.
func EncodeList(items []string) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

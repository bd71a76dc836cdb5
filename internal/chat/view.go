package chat

import (
	"time"

	"github.com/ilanpazar/messaging/internal/models"
)

// MessageView is the wire representation of a message, shared by the REST
// responses and the gateway's newMessage events. Clients deduplicate across
// the two channels by ID.
type MessageView struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	ReceiverID     uint      `json:"receiver_id"`
	Content        string    `json:"content"`
	Attachments    []string  `json:"attachments"`
	FileTypes      []string  `json:"file_types"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessageView converts a stored message into its wire form.
func NewMessageView(m models.Message) MessageView {
	attachments := m.AttachmentKeys()
	if attachments == nil {
		attachments = []string{}
	}
	fileTypes := m.FileTypeTags()
	if fileTypes == nil {
		fileTypes = []string{}
	}
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Attachments:    attachments,
		FileTypes:      fileTypes,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

// NewMessageViews converts a slice of stored messages.
func NewMessageViews(msgs []models.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, NewMessageView(m))
	}
	return views
}

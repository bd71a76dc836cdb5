package gateway

import (
	"encoding/json"

	"github.com/ilanpazar/messaging/internal/chat"
)

// EventType enumerates the closed set of frame kinds on the socket protocol.
type EventType string

// Client -> server events.
const (
	EventAuthenticate EventType = "authenticate"
	EventJoin         EventType = "joinConversation"
	EventSend         EventType = "sendMessage"
	EventMarkRead     EventType = "markAsRead"
)

// Server -> client events.
const (
	EventNewMessage  EventType = "newMessage"
	EventMessageRead EventType = "messageRead"
	EventActivity    EventType = "activity"
	EventError       EventType = "error"
)

// Envelope frames every event in both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthenticatePayload carries the identity token; it must be the first frame
// a client sends.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// JoinPayload subscribes the connection to a conversation's room.
type JoinPayload struct {
	ConversationID uint `json:"conversation_id"`
}

// SendPayload appends a message through the socket path. Attachment keys must
// already exist in the object store (uploads go through REST).
type SendPayload struct {
	ConversationID uint     `json:"conversation_id"`
	Content        string   `json:"content"`
	Attachments    []string `json:"attachments,omitempty"`
	FileTypes      []string `json:"file_types,omitempty"`
}

// MarkReadPayload asks for the caller's unread messages in the conversation
// to be marked read.
type MarkReadPayload struct {
	ConversationID uint `json:"conversation_id"`
}

// MessageReadPayload notifies room members that a participant read their
// messages.
type MessageReadPayload struct {
	ConversationID uint `json:"conversation_id"`
	ReaderID       uint `json:"reader_id"`
}

// ActivityPayload is the coarse badge-update signal relayed to every session
// of the receiving user, room member or not.
type ActivityPayload struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
	SenderID       uint `json:"sender_id"`
}

// ErrorPayload reports a failed client event without closing the connection.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// NewMessagePayload is an alias making the newMessage frame explicit.
type NewMessagePayload = chat.MessageView

func encodeEvent(t EventType, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	frame, err := json.Marshal(Envelope{Type: t, Payload: raw})
	if err != nil {
		return nil
	}
	return frame
}

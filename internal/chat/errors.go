package chat

import "errors"

// Error taxonomy shared by both delivery channels. The REST layer maps these
// to status codes and the gateway maps them to error events, so the same
// condition yields the same class regardless of channel.
var (
	// ErrNotFound means the conversation (or message) does not exist.
	ErrNotFound = errors.New("chat: not found")
	// ErrForbidden means the caller is not a participant of the conversation.
	ErrForbidden = errors.New("chat: forbidden")
	// ErrValidation means the request payload is unusable.
	ErrValidation = errors.New("chat: validation")
)

package chat

import (
	"context"
	"time"
)

// PollService is the recovery path for clients without a live gateway
// connection: it replays message deltas since a cursor. A cursor older than
// any retained data returns the full backlog; a future cursor returns an
// empty slice, never an error.
type PollService struct {
	msgs *MessageStore
}

// NewPollService creates a PollService over the message log.
func NewPollService(msgs *MessageStore) *PollService {
	return &PollService{msgs: msgs}
}

// GetEvents returns the messages created after since, oldest first.
func (p *PollService) GetEvents(ctx context.Context, conversationID, callerID uint, since time.Time) ([]MessageView, error) {
	msgs, err := p.msgs.Since(ctx, conversationID, callerID, since)
	if err != nil {
		return nil, err
	}
	return NewMessageViews(msgs), nil
}

// GetEventsAfterID is the id-cursor variant, immune to clock skew.
func (p *PollService) GetEventsAfterID(ctx context.Context, conversationID, callerID, afterID uint) ([]MessageView, error) {
	msgs, err := p.msgs.SinceID(ctx, conversationID, callerID, afterID)
	if err != nil {
		return nil, err
	}
	return NewMessageViews(msgs), nil
}

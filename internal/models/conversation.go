package models

import "time"

// Conversation is a two-party thread anchored to one listing. It is uniquely
// identified by the ordered (listing_ref, initiator_id, recipient_id) triple;
// the composite unique index makes find-or-create idempotent under races.
type Conversation struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingRef   string    `gorm:"size:64;not null;uniqueIndex:idx_conv_triple" json:"listing_ref"`
	ListingTitle string    `gorm:"size:256" json:"listing_title,omitempty"`
	InitiatorID  uint      `gorm:"not null;uniqueIndex:idx_conv_triple" json:"initiator_id"`
	RecipientID  uint      `gorm:"not null;uniqueIndex:idx_conv_triple" json:"recipient_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID uint) bool {
	return userID == c.InitiatorID || userID == c.RecipientID
}

// OtherParticipant returns the counterpart of userID. The caller must have
// checked HasParticipant first.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if userID == c.InitiatorID {
		return c.RecipientID
	}
	return c.InitiatorID
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the thread between a project's creator and a user who
// reached out about it. CreatorID and SenderID record the orientation at
// creation time; for identity purposes the pair is unordered. Multiple rows
// may exist for the same logical pair when two clients raced on first
// contact, so readers always collapse by (project, pair) keeping the row
// with the newest UpdatedAt.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	CreatorID uuid.UUID `json:"creator_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Involves reports whether the user is one of the two participants.
func (c *Conversation) Involves(userID uuid.UUID) bool {
	return c.CreatorID == userID || c.SenderID == userID
}

// Counterpart returns the other participant relative to userID.
func (c *Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.CreatorID == userID {
		return c.SenderID
	}
	return c.CreatorID
}

// ConversationSummary is one entry of a user's inbox: the surviving
// conversation row plus everything the list view renders.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	Counterpart  User         `json:"counterpart"`
	ProjectName  string       `json:"project_name"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
}

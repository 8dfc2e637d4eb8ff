package models

import "github.com/google/uuid"

// Message is one authored unit of text within a conversation.
type Message struct {
	ID             string    `json:"id"` // ULID, assigned by the store
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	Timestamp      int64     `json:"ts"` // Unix ms, server-assigned
	IsRead         bool      `json:"is_read"`

	// ClientRef is the sender-generated reference echoed back through the
	// API response and realtime events so the sending client can replace
	// its optimistic entry. It is not message identity and is not stored.
	ClientRef string `json:"client_ref,omitempty"`
}

// Before reports whether m sorts before other in conversation order:
// ascending timestamp, ties broken by ID. ULIDs embed their creation time,
// so the ID tie-break preserves insertion order.
func (m *Message) Before(other *Message) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.ID < other.ID
}

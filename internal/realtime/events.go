package realtime

import (
	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/models"
)

// EventType identifies a row-change event on the messages table.
type EventType string

const (
	// EventMessageCreated fires on every durable message insert.
	EventMessageCreated EventType = "message.created"
	// EventMessageRead fires when one or more messages flip to read.
	EventMessageRead EventType = "message.read"
)

// Event is the change notification fanned out to subscribers. Participants
// always carries both conversation members so user feeds (unread badges) can
// be refreshed without a conversation subscription.
type Event struct {
	Type           EventType   `json:"type"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	ProjectID      uuid.UUID   `json:"project_id"`
	Participants   []uuid.UUID `json:"participants"`

	// Message is set for message.created. Its ClientRef echoes the sender's
	// optimistic reference so the sending client can dedup its own echo.
	Message *models.Message `json:"message,omitempty"`

	// MessageIDs and ReaderID are set for message.read.
	MessageIDs []string  `json:"message_ids,omitempty"`
	ReaderID   uuid.UUID `json:"reader_id,omitempty"`
}

// Frame is one websocket message in either direction.
//
// Client to server: {"type":"subscribe"|"unsubscribe","conversation_id":...}
// Server to client: {"type":"subscribed",...} acks a subscription;
// {"type":"event","event":{...}} delivers a change notification.
type Frame struct {
	Type           string     `json:"type"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Event          *Event     `json:"event,omitempty"`
}

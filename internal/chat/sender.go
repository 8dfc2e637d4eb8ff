package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/models"
	"github.com/showfolio/chat/internal/store"
)

// MaxContentBytes bounds message content after trimming.
const MaxContentBytes = 4096

// SendResult carries the durable message plus the conversation it landed in,
// which may have been created by this very send.
type SendResult struct {
	Message      *models.Message
	Conversation *models.Conversation
	Created      bool // true when the send created the conversation row
}

// Sender persists outgoing messages. It owns the only conversation-creation
// path: a conversation row comes into existence on the first successful send,
// never on chat-window open.
type Sender struct {
	store    store.DataStore
	resolver *Resolver
}

// NewSender creates a Sender over the given store.
func NewSender(s store.DataStore) *Sender {
	return &Sender{store: s, resolver: NewResolver(s)}
}

// Send validates content, lazily creates the conversation when the ref is
// unresolved, and inserts the durable message. Validation failures return
// ErrInvalidOperation before any store mutation.
func (s *Sender) Send(ctx context.Context, ref ConversationRef, senderID uuid.UUID, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidOperation)
	}
	if len(content) > MaxContentBytes {
		return nil, fmt.Errorf("%w: message too long", ErrInvalidOperation)
	}
	if ref.CounterpartID == senderID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrInvalidOperation)
	}

	conv := ref.Conversation
	created := false
	if conv == nil {
		// Re-resolve right before creating: another client (or another send
		// from this one) may have created the row since the ref was taken.
		// This narrows the duplicate-row race but cannot close it; readers
		// dedup regardless.
		fresh, err := s.resolver.Resolve(ctx, ref.ProjectID, ref.CounterpartID, senderID)
		if err != nil {
			return nil, err
		}
		if fresh.Resolved() {
			conv = fresh.Conversation
		} else {
			project, err := s.store.GetProject(ctx, ref.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			if project == nil {
				return nil, fmt.Errorf("%w: project %s", ErrNotFound, ref.ProjectID)
			}

			conv, err = s.store.CreateConversation(ctx, ref.ProjectID, ref.CounterpartID, senderID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			created = true
		}
	}

	if !conv.Involves(senderID) {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conv.ID)
	}

	msg, err := s.store.InsertMessage(ctx, conv.ID, senderID, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &SendResult{Message: msg, Conversation: conv, Created: created}, nil
}

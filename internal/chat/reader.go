package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/models"
	"github.com/showfolio/chat/internal/store"
)

// HistoryResult is a conversation's messages plus the ids whose read flag
// this load flipped.
type HistoryResult struct {
	Conversation *models.Conversation
	Messages     []models.Message
	ReadIDs      []string
}

// MarkReadResult reports a single-message read-state transition.
type MarkReadResult struct {
	Changed      bool
	Message      *models.Message
	Conversation *models.Conversation
}

// Reader loads message history and owns read-state transitions.
type Reader struct {
	store store.DataStore
}

// NewReader creates a Reader over the given store.
func NewReader(s store.DataStore) *Reader {
	return &Reader{store: s}
}

// History returns a conversation's messages in ascending order and, as a
// side effect, marks every unread counterpart-authored message read in one
// batched update. Non-participants get ErrNotFound rather than a permission
// error so the conversation's existence is not leaked.
func (r *Reader) History(ctx context.Context, conversationID, viewerID uuid.UUID) (*HistoryResult, error) {
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if conv == nil || !conv.Involves(viewerID) {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}

	msgs, err := r.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var unread []string
	for _, m := range msgs {
		if m.SenderID != viewerID && !m.IsRead {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		if _, err := r.store.MarkMessagesRead(ctx, unread); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		flipped := make(map[string]bool, len(unread))
		for _, id := range unread {
			flipped[id] = true
		}
		for i := range msgs {
			if flipped[msgs[i].ID] {
				msgs[i].IsRead = true
			}
		}
	}

	return &HistoryResult{Conversation: conv, Messages: msgs, ReadIDs: unread}, nil
}

// MarkRead flips a single message's read flag. Only the non-author may flip
// it; marking an already-read message is a no-op.
func (r *Reader) MarkRead(ctx context.Context, messageID string, viewerID uuid.UUID) (*MarkReadResult, error) {
	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}

	conv, err := r.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if conv == nil || !conv.Involves(viewerID) {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}

	if msg.SenderID == viewerID {
		return nil, fmt.Errorf("%w: cannot mark own message read", ErrInvalidOperation)
	}

	result := &MarkReadResult{Message: msg, Conversation: conv}
	if msg.IsRead {
		return result, nil
	}

	n, err := r.store.MarkMessagesRead(ctx, []string{messageID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	msg.IsRead = true
	result.Changed = n > 0
	return result, nil
}

package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/models"
	"github.com/showfolio/chat/internal/store"
)

// ConversationRef is the result of resolving a (project, participant pair)
// tuple. When no conversation row exists yet the ref is unresolved: creation
// is deferred to the first successful send so that opening a chat window
// never litters the store with empty conversations.
type ConversationRef struct {
	ProjectID     uuid.UUID
	CounterpartID uuid.UUID

	// Conversation is nil while the ref is unresolved.
	Conversation *models.Conversation
}

// Resolved reports whether a durable conversation row backs this ref.
func (r ConversationRef) Resolved() bool {
	return r.Conversation != nil
}

// Resolver finds the canonical conversation row for a project and a pair of
// participants.
type Resolver struct {
	store store.DataStore
}

// NewResolver creates a Resolver over the given store.
func NewResolver(s store.DataStore) *Resolver {
	return &Resolver{store: s}
}

// Resolve looks up the conversation between currentUser and counterpart about
// a project. Multiple raw rows can match when two clients raced each other on
// first contact; the row with the newest activity wins and the rest are left
// for the aggregator to hide. No row is ever created here.
func (r *Resolver) Resolve(ctx context.Context, projectID, counterpartID, currentUserID uuid.UUID) (ConversationRef, error) {
	ref := ConversationRef{ProjectID: projectID, CounterpartID: counterpartID}

	if counterpartID == currentUserID {
		return ref, fmt.Errorf("%w: cannot message yourself", ErrInvalidOperation)
	}

	convs, err := r.store.FindConversations(ctx, projectID, counterpartID, currentUserID)
	if err != nil {
		return ref, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(convs) == 0 {
		return ref, nil
	}

	best := convs[0]
	for _, c := range convs[1:] {
		if newerThan(c, best) {
			best = c
		}
	}
	ref.Conversation = &best
	return ref, nil
}

// newerThan orders duplicate conversation rows: greatest updated_at wins,
// ties fall back to created_at and then to id so the choice is deterministic.
func newerThan(a, b models.Conversation) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

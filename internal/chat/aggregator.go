package chat

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/models"
	"github.com/showfolio/chat/internal/store"
)

// Aggregator builds a user's inbox: one summary per logical conversation,
// duplicates from creation races collapsed, newest activity first.
type Aggregator struct {
	store store.DataStore
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(s store.DataStore) *Aggregator {
	return &Aggregator{store: s}
}

type pairKey struct {
	project uuid.UUID
	other   uuid.UUID
}

// ListFor returns conversation summaries for every logical (project,
// counterpart) pair involving the user, sorted by updated_at descending.
func (a *Aggregator) ListFor(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	raw, err := a.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Collapse duplicate rows per (project, counterpart) pair, keeping the
	// one with the newest activity.
	surviving := make(map[pairKey]models.Conversation)
	for _, conv := range raw {
		key := pairKey{project: conv.ProjectID, other: conv.Counterpart(userID)}
		if kept, ok := surviving[key]; !ok || newerThan(conv, kept) {
			surviving[key] = conv
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(surviving))
	for key, conv := range surviving {
		summary := models.ConversationSummary{Conversation: conv}

		counterpart, err := a.store.GetUserByID(ctx, key.other)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if counterpart != nil {
			summary.Counterpart = *counterpart
		}

		project, err := a.store.GetProject(ctx, conv.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if project != nil {
			summary.ProjectName = project.Name
		}

		summary.LastMessage, err = a.store.LastMessage(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		summary.UnreadCount, err = a.store.UnreadCount(ctx, conv.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return newerThan(summaries[i].Conversation, summaries[j].Conversation)
	})

	return summaries, nil
}

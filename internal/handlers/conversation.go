package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/api/middleware"
	"github.com/showfolio/chat/internal/metrics"
	"github.com/showfolio/chat/internal/models"
)

// ResolveResponse represents the conversation resolve response. Resolved is
// false when no conversation exists yet; the chat window opens against the
// unresolved state and the row is created by the first send.
type ResolveResponse struct {
	Resolved     bool                 `json:"resolved"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
}

// ResolveConversation handles looking up the canonical conversation for a
// project and counterpart.
func (h *Handler) ResolveConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	projectID, err := uuid.Parse(r.URL.Query().Get("project"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid project ID format")
		return
	}
	counterpartID, err := uuid.Parse(r.URL.Query().Get("with"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid counterpart ID format")
		return
	}

	ref, err := h.resolver.Resolve(r.Context(), projectID, counterpartID, user.ID)
	if err != nil {
		h.ChatError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, ResolveResponse{
		Resolved:     ref.Resolved(),
		Conversation: ref.Conversation,
	})
}

// ConversationListResponse represents the inbox response.
type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
	Total         int                          `json:"total"`
	UnreadTotal   int                          `json:"unread_total"`
}

// ListConversations handles loading the authenticated user's inbox.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	summaries, err := h.aggregator.ListFor(r.Context(), user.ID)
	if err != nil {
		h.ChatError(w, err)
		return
	}
	metrics.InboxLoads.Inc()

	unreadTotal := 0
	for _, s := range summaries {
		unreadTotal += s.UnreadCount
	}

	h.JSON(w, http.StatusOK, ConversationListResponse{
		Conversations: summaries,
		Total:         len(summaries),
		UnreadTotal:   unreadTotal,
	})
}

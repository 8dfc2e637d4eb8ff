package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/showfolio/chat/internal/api/middleware"
	"github.com/showfolio/chat/internal/metrics"
	"github.com/showfolio/chat/internal/models"
	"github.com/showfolio/chat/internal/realtime"
)

// SendMessageRequest represents the send message request body. ClientRef is
// the sender's optimistic reference; it is echoed in the response and the
// realtime event so the sending client can replace its pending entry.
type SendMessageRequest struct {
	ProjectID uuid.UUID `json:"project_id"`
	To        uuid.UUID `json:"to"`
	Content   string    `json:"content"`
	ClientRef string    `json:"client_ref,omitempty"`
}

// SendMessageResponse represents the send message response.
type SendMessageResponse struct {
	Message             *models.Message      `json:"message"`
	Conversation        *models.Conversation `json:"conversation"`
	ConversationCreated bool                 `json:"conversation_created"`
}

// SendMessage handles sending a message, lazily creating the conversation on
// first contact.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ref, err := h.resolver.Resolve(r.Context(), req.ProjectID, req.To, user.ID)
	if err != nil {
		h.ChatError(w, err)
		return
	}

	result, err := h.sender.Send(r.Context(), ref, user.ID, req.Content)
	if err != nil {
		h.ChatError(w, err)
		return
	}

	metrics.MessagesSent.Inc()
	if result.Created {
		metrics.ConversationsCreated.Inc()
	}

	result.Message.ClientRef = req.ClientRef
	h.publish(r.Context(), realtime.Event{
		Type:           realtime.EventMessageCreated,
		ConversationID: result.Conversation.ID,
		ProjectID:      result.Conversation.ProjectID,
		Participants:   []uuid.UUID{result.Conversation.CreatorID, result.Conversation.SenderID},
		Message:        result.Message,
	})

	h.JSON(w, http.StatusCreated, SendMessageResponse{
		Message:             result.Message,
		Conversation:        result.Conversation,
		ConversationCreated: result.Created,
	})
}

// HistoryResponse represents the message history response.
type HistoryResponse struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
}

// GetHistory handles loading a conversation's messages. Loading history
// marks every unread counterpart message read, so opening a chat view is
// what clears its unread badge.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	result, err := h.reader.History(r.Context(), conversationID, user.ID)
	if err != nil {
		h.ChatError(w, err)
		return
	}

	if len(result.ReadIDs) > 0 {
		metrics.MessagesMarkedRead.Add(float64(len(result.ReadIDs)))
		h.publish(r.Context(), realtime.Event{
			Type:           realtime.EventMessageRead,
			ConversationID: result.Conversation.ID,
			ProjectID:      result.Conversation.ProjectID,
			Participants:   []uuid.UUID{result.Conversation.CreatorID, result.Conversation.SenderID},
			MessageIDs:     result.ReadIDs,
			ReaderID:       user.ID,
		})
	}

	messages := result.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	h.JSON(w, http.StatusOK, HistoryResponse{
		Conversation: result.Conversation,
		Messages:     messages,
	})
}

// MarkReadResponse represents the mark-read response.
type MarkReadResponse struct {
	Message *models.Message `json:"message"`
	Changed bool            `json:"changed"`
}

// MarkRead handles flipping a single message's read flag. Idempotent.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID := chi.URLParam(r, "id")
	if _, err := ulid.Parse(messageID); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message ID format")
		return
	}

	result, err := h.reader.MarkRead(r.Context(), messageID, user.ID)
	if err != nil {
		h.ChatError(w, err)
		return
	}

	if result.Changed {
		metrics.MessagesMarkedRead.Inc()
		h.publish(r.Context(), realtime.Event{
			Type:           realtime.EventMessageRead,
			ConversationID: result.Conversation.ID,
			ProjectID:      result.Conversation.ProjectID,
			Participants:   []uuid.UUID{result.Conversation.CreatorID, result.Conversation.SenderID},
			MessageIDs:     []string{messageID},
			ReaderID:       user.ID,
		})
	}

	h.JSON(w, http.StatusOK, MarkReadResponse{
		Message: result.Message,
		Changed: result.Changed,
	})
}

// publish sends a realtime event, logging instead of failing the request:
// the durable write already happened, and clients recover missed events by
// refetching.
func (h *Handler) publish(ctx context.Context, ev realtime.Event) {
	metrics.RealtimeEventsDelivered.WithLabelValues(string(ev.Type)).Inc()
	if err := h.publisher.Publish(ctx, ev); err != nil {
		h.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("failed to publish realtime event")
	}
}

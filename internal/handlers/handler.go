package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/showfolio/chat/internal/chat"
	"github.com/showfolio/chat/internal/realtime"
	"github.com/showfolio/chat/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store      store.DataStore
	resolver   *chat.Resolver
	sender     *chat.Sender
	aggregator *chat.Aggregator
	reader     *chat.Reader
	publisher  *realtime.Publisher
	hub        *realtime.Hub
	logger     zerolog.Logger
}

// NewHandler creates a new Handler over the store and realtime plumbing.
func NewHandler(s store.DataStore, publisher *realtime.Publisher, hub *realtime.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		store:      s,
		resolver:   chat.NewResolver(s),
		sender:     chat.NewSender(s),
		aggregator: chat.NewAggregator(s),
		reader:     chat.NewReader(s),
		publisher:  publisher,
		hub:        hub,
		logger:     logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// ChatError maps the messaging error taxonomy to HTTP statuses. Invalid
// operations are the caller's to fix; store failures are retryable.
func (h *Handler) ChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidOperation):
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		h.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrStoreUnavailable):
		h.logger.Error().Err(err).Msg("store operation failed")
		h.Error(w, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		h.logger.Error().Err(err).Msg("unexpected handler error")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

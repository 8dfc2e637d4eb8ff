package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/showfolio/chat/internal/api/middleware"
	"github.com/showfolio/chat/internal/metrics"
	"github.com/showfolio/chat/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin browser clients are expected; the session token is the
	// access control, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const readLimit = 4 * 1024

// Subscribe handles the realtime websocket endpoint. The connection is
// implicitly subscribed to the user's own feed; subscribe frames add
// per-conversation rooms. Every subscribe is acked with a "subscribed"
// frame, which is the signal clients wait for before trusting push delivery
// over polling.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	conn := realtime.NewConn(user.ID, ws)
	h.hub.Attach(conn)
	metrics.RealtimeConnections.Inc()

	// Attaching is itself a subscription (to the user feed); ack it so the
	// client can stop its fallback poller.
	h.ack(conn, nil)

	defer func() {
		h.hub.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "bye")
		metrics.RealtimeConnections.Dec()
	}()

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(90 * time.Second))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame realtime.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.logger.Debug().Err(err).Msg("bad websocket frame")
			continue
		}

		switch frame.Type {
		case "subscribe":
			if frame.ConversationID == nil {
				continue
			}
			// Only participants may join a conversation room.
			conv, err := h.store.GetConversation(r.Context(), *frame.ConversationID)
			if err != nil || conv == nil || !conv.Involves(user.ID) {
				continue
			}
			h.hub.Join(conv.ID, conn)
			h.ack(conn, frame.ConversationID)
		case "unsubscribe":
			if frame.ConversationID != nil {
				h.hub.Leave(*frame.ConversationID, conn)
			}
		}
	}
}

func (h *Handler) ack(conn *realtime.Conn, conversationID *uuid.UUID) {
	payload, err := json.Marshal(realtime.Frame{Type: "subscribed", ConversationID: conversationID})
	if err != nil {
		return
	}
	_ = conn.Send(payload)
}

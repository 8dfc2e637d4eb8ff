package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub coordinates websocket sessions, per-conversation rooms and per-user
// feeds. Conversation rooms receive events for an open chat view; the user
// feed receives every event involving the user, for inbox and unread-badge
// refresh. A user may hold several sessions (tabs) at once.
type Hub struct {
	mu           sync.RWMutex
	logger       zerolog.Logger
	sessions     map[string]*Conn                    // sessionID -> connection
	userSessions map[uuid.UUID]map[string]*Conn      // userID -> sessionID -> connection
	rooms        map[uuid.UUID]map[string]*Conn      // conversationID -> sessionID -> connection
	sessionRooms map[string]map[uuid.UUID]struct{}   // sessionID -> set of conversationIDs
}

// NewHub constructs an initialized Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:       logger,
		sessions:     make(map[string]*Conn),
		userSessions: make(map[uuid.UUID]map[string]*Conn),
		rooms:        make(map[uuid.UUID]map[string]*Conn),
		sessionRooms: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Attach registers a connection and starts its write loop. The user feed is
// implicit: every event involving the user reaches all of their sessions.
func (h *Hub) Attach(conn *Conn) {
	h.mu.Lock()
	h.sessions[conn.ID] = conn
	byUser := h.userSessions[conn.UserID]
	if byUser == nil {
		byUser = make(map[string]*Conn)
		h.userSessions[conn.UserID] = byUser
	}
	byUser[conn.ID] = conn
	h.sessionRooms[conn.ID] = make(map[uuid.UUID]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach removes a connection and all its room memberships.
func (h *Hub) Detach(conn *Conn) {
	h.mu.Lock()
	h.detachLocked(conn.ID)
	h.mu.Unlock()
}

// Join adds the connection to a conversation room.
func (h *Hub) Join(conversationID uuid.UUID, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[conn.ID]; !ok {
		return
	}

	room := h.rooms[conversationID]
	if room == nil {
		room = make(map[string]*Conn)
		h.rooms[conversationID] = room
	}
	room[conn.ID] = conn
	h.sessionRooms[conn.ID][conversationID] = struct{}{}
}

// Leave removes the connection from a conversation room.
func (h *Hub) Leave(conversationID uuid.UUID, conn *Conn) {
	h.mu.Lock()
	h.leaveLocked(conversationID, conn.ID)
	h.mu.Unlock()
}

// Deliver fans an event out to the conversation room and to every session of
// each participant. Sessions subscribed to the room AND owned by a
// participant receive the frame once.
func (h *Hub) Deliver(ev Event) {
	frame := Frame{Type: "event", Event: &ev}
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal realtime event")
		return
	}

	h.mu.RLock()
	targets := make(map[string]*Conn)
	for _, conn := range h.rooms[ev.ConversationID] {
		targets[conn.ID] = conn
	}
	for _, userID := range ev.Participants {
		for _, conn := range h.userSessions[userID] {
			targets[conn.ID] = conn
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.Send(payload); err != nil {
			h.logger.Debug().
				Str("session", conn.ID).
				Stringer("user", conn.UserID).
				Msg("dropping realtime connection")
		}
	}
}

// Close terminates all tracked connections and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.sessions))
	for _, conn := range h.sessions {
		conns = append(conns, conn)
	}
	h.sessions = make(map[string]*Conn)
	h.userSessions = make(map[uuid.UUID]map[string]*Conn)
	h.rooms = make(map[uuid.UUID]map[string]*Conn)
	h.sessionRooms = make(map[string]map[uuid.UUID]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "hub shutdown")
	}
}

func (h *Hub) detachLocked(sessionID string) {
	conn, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)

	if byUser, ok := h.userSessions[conn.UserID]; ok {
		delete(byUser, sessionID)
		if len(byUser) == 0 {
			delete(h.userSessions, conn.UserID)
		}
	}

	for roomID := range h.sessionRooms[sessionID] {
		h.leaveLocked(roomID, sessionID)
	}
	delete(h.sessionRooms, sessionID)
}

func (h *Hub) leaveLocked(conversationID uuid.UUID, sessionID string) {
	room := h.rooms[conversationID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
	if memberships, ok := h.sessionRooms[sessionID]; ok {
		delete(memberships, conversationID)
	}
}

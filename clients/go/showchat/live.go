package showchat

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ChannelState is the delivery state of a LiveChannel.
type ChannelState int

const (
	// Connecting: the websocket is being established or re-established.
	Connecting ChannelState = iota
	// Subscribed: the server has acknowledged the subscription and events
	// flow over the socket.
	Subscribed
	// Degraded: the socket could not be established within the grace
	// period; events come from history polling instead.
	Degraded
	// Closed: the channel has been torn down and will not recover.
	Closed
)

func (s ChannelState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Degraded:
		return "degraded"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// ClientEvent is a change notification as seen by the client, either
// delivered over the websocket or synthesized from a history poll.
type ClientEvent struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id"`
	ProjectID      string   `json:"project_id"`
	Participants   []string `json:"participants"`
	Message        *Message `json:"message,omitempty"`
	MessageIDs     []string `json:"message_ids,omitempty"`
	ReaderID       string   `json:"reader_id,omitempty"`
}

type liveFrame struct {
	Type           string       `json:"type"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Event          *ClientEvent `json:"event,omitempty"`
}

// LiveOptions tunes the channel's timing. Zero values select the defaults.
type LiveOptions struct {
	// Grace is how long the socket may stay unestablished before the
	// channel degrades to polling. Default 5s.
	Grace time.Duration
	// PollInterval is the history poll cadence while degraded. Default 4s.
	PollInterval time.Duration
	// RedialInterval is how often a degraded channel retries the socket.
	// Default 15s.
	RedialInterval time.Duration

	// SelfID, when set, identifies the local user: counterpart messages
	// delivered while the channel is open are marked read immediately,
	// since an open channel means the conversation view is on screen.
	SelfID string

	// Dial overrides the websocket dial, used by tests.
	Dial func(urlStr string) (*websocket.Conn, error)
}

const (
	defaultGrace          = 5 * time.Second
	defaultPollInterval   = 4 * time.Second
	defaultRedialInterval = 15 * time.Second
)

// LiveChannel delivers conversation events to a callback, preferring a
// websocket subscription and transparently falling back to history polling
// when the socket cannot be established. The caller never sees the
// transport: only OnEvent and OnState fire.
type LiveChannel struct {
	client         *Client
	conversationID string
	onEvent        func(ClientEvent)
	onState        func(ChannelState)
	opts           LiveOptions

	mu     sync.Mutex
	state  ChannelState
	ws     *websocket.Conn
	seen   map[string]bool
	closed chan struct{}
	once   sync.Once
}

// NewLiveChannel creates a channel for one conversation. conversationID may
// be "" to receive only the user-feed events (inbox badge updates); polling
// fallback then refreshes the inbox instead of a single thread. onState may
// be nil.
func NewLiveChannel(client *Client, conversationID string, onEvent func(ClientEvent), onState func(ChannelState), opts LiveOptions) *LiveChannel {
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.RedialInterval <= 0 {
		opts.RedialInterval = defaultRedialInterval
	}
	return &LiveChannel{
		client:         client,
		conversationID: conversationID,
		onEvent:        onEvent,
		onState:        onState,
		opts:           opts,
		state:          Connecting,
		seen:           make(map[string]bool),
		closed:         make(chan struct{}),
	}
}

// Start begins delivery. It returns immediately; connection management runs
// on an internal goroutine until Close.
func (lc *LiveChannel) Start() {
	go lc.run()
}

// State returns the current delivery state.
func (lc *LiveChannel) State() ChannelState {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.state
}

// Close tears the channel down. Safe to call more than once.
func (lc *LiveChannel) Close() {
	lc.once.Do(func() {
		close(lc.closed)
	})
	lc.mu.Lock()
	if lc.ws != nil {
		_ = lc.ws.Close()
		lc.ws = nil
	}
	lc.state = Closed
	lc.mu.Unlock()
	lc.notify(Closed)
}

// run owns the state machine: attempt the socket, degrade to polling after
// the grace period, keep retrying the socket while degraded.
func (lc *LiveChannel) run() {
	for {
		select {
		case <-lc.closed:
			return
		default:
		}

		lc.setState(Connecting)

		ws, err := lc.dialAndSubscribe(lc.opts.Grace)
		if err != nil {
			// Could not establish within the grace period: poll until a
			// redial lands or the channel is closed.
			lc.setState(Degraded)
			ws = lc.pollUntilRedial()
			if ws == nil {
				return
			}
		}

		lc.setState(Subscribed)
		lc.readLoop(ws)
		// Socket dropped; loop re-enters Connecting unless closed.
	}
}

// dialAndSubscribe establishes the websocket and waits for the subscription
// acknowledgement, all within the deadline.
func (lc *LiveChannel) dialAndSubscribe(deadline time.Duration) (*websocket.Conn, error) {
	dial := lc.opts.Dial
	if dial == nil {
		dial = func(urlStr string) (*websocket.Conn, error) {
			d := websocket.Dialer{HandshakeTimeout: deadline}
			conn, _, err := d.Dial(urlStr, nil)
			return conn, err
		}
	}

	ws, err := dial(lc.wsURL())
	if err != nil {
		return nil, err
	}

	if lc.conversationID != "" {
		sub := liveFrame{Type: "subscribe", ConversationID: lc.conversationID}
		if err := ws.WriteJSON(sub); err != nil {
			_ = ws.Close()
			return nil, err
		}
	}

	// The server acks the attach immediately and each subscribe after the
	// participant check. Wait for the relevant ack.
	_ = ws.SetReadDeadline(time.Now().Add(deadline))
	for {
		var frame liveFrame
		if err := ws.ReadJSON(&frame); err != nil {
			_ = ws.Close()
			return nil, err
		}
		if frame.Type != "subscribed" {
			continue
		}
		if lc.conversationID == "" || frame.ConversationID == lc.conversationID {
			break
		}
	}
	_ = ws.SetReadDeadline(time.Time{})

	lc.mu.Lock()
	if lc.state == Closed {
		lc.mu.Unlock()
		_ = ws.Close()
		return nil, errClosed
	}
	lc.ws = ws
	lc.mu.Unlock()
	return ws, nil
}

var errClosed = &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "channel closed"}

func (lc *LiveChannel) wsURL() string {
	base := lc.client.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws?token=" + url.QueryEscape(lc.client.Token)
}

func (lc *LiveChannel) readLoop(ws *websocket.Conn) {
	defer func() {
		lc.mu.Lock()
		if lc.ws == ws {
			lc.ws = nil
		}
		lc.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var frame liveFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type != "event" || frame.Event == nil {
			continue
		}
		lc.deliver(*frame.Event)
	}
}

// pollUntilRedial drives the degraded mode: history polls on PollInterval,
// socket retries on RedialInterval. Redial attempts run off the poll
// goroutine, so delivery keeps flowing while a dial is in flight; polling
// stops only once a socket is subscribed. Returns the established socket,
// or nil when the channel closed.
func (lc *LiveChannel) pollUntilRedial() *websocket.Conn {
	poll := time.NewTicker(lc.opts.PollInterval)
	defer poll.Stop()
	redial := time.NewTimer(lc.opts.RedialInterval)
	defer redial.Stop()

	lc.pollOnce()

	type dialResult struct {
		ws  *websocket.Conn
		err error
	}
	var attempt chan dialResult

	for {
		select {
		case <-lc.closed:
			return nil
		case <-poll.C:
			lc.pollOnce()
		case <-redial.C:
			attempt = make(chan dialResult, 1)
			go func(out chan<- dialResult) {
				ws, err := lc.dialAndSubscribe(lc.opts.Grace)
				out <- dialResult{ws: ws, err: err}
			}(attempt)
		case res := <-attempt:
			attempt = nil
			if res.err == nil {
				return res.ws
			}
			redial.Reset(lc.opts.RedialInterval)
		}
	}
}

// pollOnce fetches state over HTTP and synthesizes events for anything not
// seen yet, so consumers cannot tell polling from push delivery.
func (lc *LiveChannel) pollOnce() {
	if lc.conversationID == "" {
		// User-feed channel: refresh the inbox so badge counts stay live.
		if _, err := lc.client.ListConversations(); err == nil {
			lc.deliver(ClientEvent{Type: "inbox.refreshed"})
		}
		return
	}

	history, err := lc.client.GetHistory(lc.conversationID)
	if err != nil {
		return
	}
	for i := range history.Messages {
		m := history.Messages[i]
		lc.deliver(ClientEvent{
			Type:           "message.created",
			ConversationID: lc.conversationID,
			Message:        &m,
		})
	}
}

// deliver dedups message.created by message ID before invoking the
// callback, so overlap between push and poll never duplicates entries.
func (lc *LiveChannel) deliver(ev ClientEvent) {
	if ev.Type == "message.created" && ev.Message != nil && ev.Message.ID != "" {
		lc.mu.Lock()
		if lc.seen[ev.Message.ID] {
			lc.mu.Unlock()
			return
		}
		lc.seen[ev.Message.ID] = true
		lc.mu.Unlock()

		if lc.opts.SelfID != "" && lc.conversationID != "" &&
			ev.Message.SenderID != lc.opts.SelfID && !ev.Message.IsRead {
			go func(id string) { _, _ = lc.client.MarkRead(id) }(ev.Message.ID)
		}
	}
	if lc.onEvent != nil {
		lc.onEvent(ev)
	}
}

func (lc *LiveChannel) setState(s ChannelState) {
	lc.mu.Lock()
	if lc.state == Closed {
		lc.mu.Unlock()
		return
	}
	changed := lc.state != s
	lc.state = s
	lc.mu.Unlock()
	if changed {
		lc.notify(s)
	}
}

func (lc *LiveChannel) notify(s ChannelState) {
	if lc.onState != nil {
		lc.onState(s)
	}
}

package showchat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []ChannelState
}

func (r *stateRecorder) record(s ChannelState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) has(want ChannelState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == want {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDegradesToPollingWhenSocketFails(t *testing.T) {
	// HTTP works, the websocket does not.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(HistoryResponse{
			Conversation: &Conversation{ID: testConv},
			Messages: []Message{
				{ID: serverID(1), ConversationID: testConv, SenderID: testBob, Content: "polled", Timestamp: 1},
			},
		})
	}))
	defer srv.Close()

	var mu sync.Mutex
	var got []ClientEvent
	states := &stateRecorder{}

	ch := NewLiveChannel(NewClient(srv.URL, "tok"), testConv, func(ev ClientEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}, states.record, LiveOptions{
		Grace:          50 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
		RedialInterval: time.Hour,
		Dial: func(string) (*websocket.Conn, error) {
			return nil, errors.New("no socket")
		},
	})
	ch.Start()
	defer ch.Close()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	})

	if !states.has(Degraded) {
		t.Fatal("channel should have reported the degraded state")
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0].Type != "message.created" || got[0].Message.Content != "polled" {
		t.Fatalf("unexpected first event %+v", got[0])
	}
	// Polling repeats, but the same message must be delivered once.
	for _, ev := range got[1:] {
		if ev.Message != nil && ev.Message.ID == serverID(1) {
			t.Fatal("poll overlap delivered the same message twice")
		}
	}
}

func TestPollingContinuesDuringRedial(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		polls.Add(1)
		_ = json.NewEncoder(w).Encode(HistoryResponse{
			Conversation: &Conversation{ID: testConv},
		})
	}))
	defer srv.Close()

	// The first dial fails fast to degrade the channel; later redials hang
	// until released, standing in for a slow, ultimately failing handshake.
	var dials atomic.Int64
	dialStarted := make(chan struct{}, 1)
	dialRelease := make(chan struct{})
	dial := func(string) (*websocket.Conn, error) {
		if dials.Add(1) > 1 {
			select {
			case dialStarted <- struct{}{}:
			default:
			}
			<-dialRelease
		}
		return nil, errors.New("no socket")
	}

	ch := NewLiveChannel(NewClient(srv.URL, "tok"), testConv, nil, nil, LiveOptions{
		Grace:          50 * time.Millisecond,
		PollInterval:   15 * time.Millisecond,
		RedialInterval: 30 * time.Millisecond,
		Dial:           dial,
	})
	ch.Start()
	defer ch.Close()
	defer close(dialRelease)

	select {
	case <-dialStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("redial attempt never started")
	}

	// Polls must keep flowing while the redial is still in flight.
	before := polls.Load()
	waitFor(t, 2*time.Second, func() bool { return polls.Load() >= before+2 })
}

// wsEchoServer upgrades, acks subscriptions and then pushes the given frames.
func wsEchoServer(t *testing.T, frames []liveFrame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		// Attach ack.
		_ = ws.WriteJSON(liveFrame{Type: "subscribed"})

		// Ack each subscribe as it arrives, then push the frames.
		var sub liveFrame
		if err := ws.ReadJSON(&sub); err == nil && sub.Type == "subscribe" {
			_ = ws.WriteJSON(liveFrame{Type: "subscribed", ConversationID: sub.ConversationID})
		}
		for _, f := range frames {
			_ = ws.WriteJSON(f)
		}
		// Hold the socket open until the client goes away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestSubscribedDelivery(t *testing.T) {
	pushed := liveFrame{Type: "event", Event: &ClientEvent{
		Type:           "message.created",
		ConversationID: testConv,
		Message:        &Message{ID: serverID(2), ConversationID: testConv, SenderID: testBob, Content: "pushed", Timestamp: 2},
	}}
	srv := wsEchoServer(t, []liveFrame{pushed})
	defer srv.Close()

	var mu sync.Mutex
	var got []ClientEvent
	states := &stateRecorder{}

	ch := NewLiveChannel(NewClient(srv.URL, "tok"), testConv, func(ev ClientEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}, states.record, LiveOptions{Grace: time.Second})
	ch.Start()
	defer ch.Close()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	})

	if !states.has(Subscribed) {
		t.Fatal("channel should have reached the subscribed state")
	}
	if states.has(Degraded) {
		t.Fatal("a healthy socket must not degrade")
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0].Message == nil || got[0].Message.Content != "pushed" {
		t.Fatalf("unexpected event %+v", got[0])
	}
}

func TestCounterpartMessageMarkedReadOnReceipt(t *testing.T) {
	var mu sync.Mutex
	var readPosts []string
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	pushed := liveFrame{Type: "event", Event: &ClientEvent{
		Type:           "message.created",
		ConversationID: testConv,
		Message:        &Message{ID: serverID(7), ConversationID: testConv, SenderID: testBob, Content: "ping", Timestamp: 7},
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer ws.Close()
			_ = ws.WriteJSON(liveFrame{Type: "subscribed"})
			var sub liveFrame
			if err := ws.ReadJSON(&sub); err == nil && sub.Type == "subscribe" {
				_ = ws.WriteJSON(liveFrame{Type: "subscribed", ConversationID: sub.ConversationID})
			}
			_ = ws.WriteJSON(pushed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/read") {
			mu.Lock()
			readPosts = append(readPosts, r.URL.Path)
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(MarkReadResponse{Changed: true})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ch := NewLiveChannel(NewClient(srv.URL, "tok"), testConv, nil, nil, LiveOptions{
		Grace:  time.Second,
		SelfID: testAlice,
	})
	ch.Start()
	defer ch.Close()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(readPosts) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(readPosts[0], serverID(7)) {
		t.Fatalf("read receipt posted for the wrong message: %s", readPosts[0])
	}
}

func TestCloseStopsChannel(t *testing.T) {
	srv := wsEchoServer(t, nil)
	defer srv.Close()

	states := &stateRecorder{}
	ch := NewLiveChannel(NewClient(srv.URL, "tok"), testConv, nil, states.record, LiveOptions{Grace: time.Second})
	ch.Start()

	waitFor(t, 2*time.Second, func() bool { return ch.State() == Subscribed })

	ch.Close()
	if ch.State() != Closed {
		t.Fatal("closed channel should report Closed")
	}
	// Closing twice is safe.
	ch.Close()
	if !states.has(Closed) {
		t.Fatal("state callback should observe the close")
	}
}

func TestChannelStateStrings(t *testing.T) {
	cases := map[ChannelState]string{
		Connecting: "connecting",
		Subscribed: "subscribed",
		Degraded:   "degraded",
		Closed:     "closed",
	}
	for state, want := range cases {
		if state.String() != want {
			t.Fatalf("expected %q, got %q", want, state.String())
		}
	}
}

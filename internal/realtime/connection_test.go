package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Send must never panic while another goroutine tears the session down, e.g.
// a redis bus fanout racing a client disconnect.
func TestSendDuringCloseDoesNotPanic(t *testing.T) {
	for i := 0; i < 50; i++ {
		hub := NewHub(zerolog.Nop())
		sess := dialSession(t, hub, uuid.New())

		var wg sync.WaitGroup
		panics := make(chan any, 5)
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						panics <- r
					}
				}()
				for j := 0; j < 20; j++ {
					_ = sess.conn.Send([]byte(`{"type":"event"}`))
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics <- r
				}
			}()
			sess.conn.Close(websocket.CloseNormalClosure, "bye")
		}()
		wg.Wait()
		hub.Close()

		select {
		case r := <-panics:
			t.Fatalf("iteration %d: panicked: %v", i, r)
		default:
		}
	}
}

func TestSendAfterClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	sess := dialSession(t, hub, uuid.New())

	sess.conn.Close(websocket.CloseNormalClosure, "bye")
	if err := sess.conn.Send([]byte("late")); !errors.Is(err, errConnClosed) {
		t.Fatalf("Send after Close = %v, want %v", err, errConnClosed)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()
	sess := dialSession(t, hub, uuid.New())

	sess.conn.Close(websocket.CloseNormalClosure, "bye")
	sess.conn.Close(websocket.CloseGoingAway, "again")
}

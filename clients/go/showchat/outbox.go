package showchat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// EntryState describes whether a thread entry has been acknowledged by the
// server.
type EntryState int

const (
	// Pending entries exist only locally; the send is still in flight.
	Pending EntryState = iota
	// Confirmed entries carry the server-assigned ID and timestamp.
	Confirmed
)

// Entry is one message in a Thread. Pending entries have an empty ID and a
// zero Timestamp until the server acknowledges them.
type Entry struct {
	State     EntryState
	ClientRef string
	Message   Message
	Mine      bool
}

// Thread holds the client-side view of one conversation: confirmed history
// plus optimistic entries for sends still in flight. All methods are safe
// for concurrent use.
type Thread struct {
	client        *Client
	projectID     string
	counterpartID string
	selfID        string

	mu             sync.Mutex
	conversationID string
	entries        []Entry
	draft          string
}

// NewThread creates a thread for messaging counterpartID about projectID.
// selfID is the authenticated user, used to classify incoming events.
func NewThread(client *Client, projectID, counterpartID, selfID string) *Thread {
	return &Thread{
		client:        client,
		projectID:     projectID,
		counterpartID: counterpartID,
		selfID:        selfID,
	}
}

// ConversationID returns the resolved conversation ID, or "" while the
// conversation does not exist yet.
func (t *Thread) ConversationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationID
}

// Draft returns the current composer text. After a failed send the text is
// restored here so the user can retry without retyping.
func (t *Thread) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

// SetDraft updates the composer text.
func (t *Thread) SetDraft(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draft = text
}

// Entries returns a snapshot of the thread in display order.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Open resolves the conversation and, when it exists, loads its history.
// An unresolved conversation is not an error: the thread starts empty and
// the row is created by the first send.
func (t *Thread) Open() error {
	resolved, err := t.client.Resolve(t.projectID, t.counterpartID)
	if err != nil {
		return err
	}
	if !resolved.Resolved {
		return nil
	}

	history, err := t.client.GetHistory(resolved.Conversation.ID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversationID = resolved.Conversation.ID
	t.entries = t.entries[:0]
	for _, m := range history.Messages {
		t.entries = append(t.entries, Entry{
			State:   Confirmed,
			Message: m,
			Mine:    m.SenderID == t.selfID,
		})
	}
	return nil
}

// Send performs an optimistic send of the current draft. The entry appears
// immediately as Pending; on acknowledgement it is confirmed in place with
// the server-assigned ID and timestamp. On failure the entry is removed and
// the text is restored to the draft. An empty or whitespace-only draft is a
// no-op that issues no request.
func (t *Thread) Send() error {
	t.mu.Lock()
	text := t.draft
	if isBlank(text) {
		t.mu.Unlock()
		return nil
	}

	ref := ulid.Make().String()
	t.draft = ""
	t.entries = append(t.entries, Entry{
		State:     Pending,
		ClientRef: ref,
		Mine:      true,
		Message: Message{
			SenderID:  t.selfID,
			Content:   text,
			ClientRef: ref,
		},
	})
	t.mu.Unlock()

	resp, err := t.client.Send(t.projectID, t.counterpartID, text, ref)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.removeLocked(ref)
		if t.draft == "" {
			t.draft = text
		}
		return err
	}

	t.conversationID = resp.Conversation.ID
	t.confirmLocked(ref, *resp.Message)
	return nil
}

// Apply folds a realtime event into the thread. Events for other
// conversations are ignored. A message.created carrying our own client ref
// confirms the matching pending entry instead of duplicating it, which
// covers the echo arriving before the HTTP acknowledgement.
func (t *Thread) Apply(ev ClientEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conversationID != "" && ev.ConversationID != t.conversationID {
		return
	}

	switch ev.Type {
	case "message.created":
		if ev.Message == nil {
			return
		}
		if t.conversationID == "" {
			t.conversationID = ev.ConversationID
		}
		if ev.Message.ClientRef != "" && t.confirmLocked(ev.Message.ClientRef, *ev.Message) {
			return
		}
		if t.hasMessageLocked(ev.Message.ID) {
			return
		}
		t.entries = append(t.entries, Entry{
			State:   Confirmed,
			Message: *ev.Message,
			Mine:    ev.Message.SenderID == t.selfID,
		})
		t.sortLocked()

	case "message.read":
		ids := make(map[string]bool, len(ev.MessageIDs))
		for _, id := range ev.MessageIDs {
			ids[id] = true
		}
		for i := range t.entries {
			if ids[t.entries[i].Message.ID] {
				t.entries[i].Message.IsRead = true
			}
		}
	}
}

// String implements fmt.Stringer for debugging.
func (t *Thread) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("thread %s (%d entries)", t.conversationID, len(t.entries))
}

// confirmLocked upgrades the pending entry with the given ref, returning
// false when no such entry exists or it is already confirmed.
func (t *Thread) confirmLocked(ref string, msg Message) bool {
	for i := range t.entries {
		if t.entries[i].ClientRef == ref {
			if t.entries[i].State == Confirmed {
				return true
			}
			t.entries[i].State = Confirmed
			t.entries[i].Message = msg
			t.sortLocked()
			return true
		}
	}
	return false
}

func (t *Thread) removeLocked(ref string) {
	for i := range t.entries {
		if t.entries[i].ClientRef == ref && t.entries[i].State == Pending {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

func (t *Thread) hasMessageLocked(id string) bool {
	if id == "" {
		return false
	}
	for i := range t.entries {
		if t.entries[i].Message.ID == id {
			return true
		}
	}
	return false
}

// sortLocked keeps confirmed entries in server order while pending entries
// stay at the end in submission order.
func (t *Thread) sortLocked() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if a.State != b.State {
			return a.State == Confirmed
		}
		if a.State == Pending {
			return false
		}
		if a.Message.Timestamp != b.Message.Timestamp {
			return a.Message.Timestamp < b.Message.Timestamp
		}
		return a.Message.ID < b.Message.ID
	})
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

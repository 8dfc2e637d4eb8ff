package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestHistoryMarksCounterpartMessagesRead(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)
	mine := fs.addMessage(conv.ID, alice, "from me")
	theirs1 := fs.addMessage(conv.ID, bob, "from bob 1")
	theirs2 := fs.addMessage(conv.ID, bob, "from bob 2")

	result, err := NewReader(fs).History(context.Background(), conv.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result.Messages))
	}
	if len(result.ReadIDs) != 2 {
		t.Fatalf("expected 2 flipped ids, got %d", len(result.ReadIDs))
	}
	for _, m := range result.Messages {
		switch m.ID {
		case mine.ID:
			if m.IsRead {
				t.Fatal("own message must not be flipped by loading history")
			}
		case theirs1.ID, theirs2.ID:
			if !m.IsRead {
				t.Fatal("counterpart messages should come back read")
			}
		}
	}
	if fs.markReadCalls != 1 {
		t.Fatalf("mark-read should be one batched call, got %d", fs.markReadCalls)
	}

	// Durable too, not just the returned copies.
	n, _ := fs.UnreadCount(context.Background(), conv.ID, alice)
	if n != 0 {
		t.Fatalf("expected 0 unread after history load, got %d", n)
	}
}

func TestHistoryOrdering(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)
	first := fs.addMessage(conv.ID, alice, "one")
	second := fs.addMessage(conv.ID, bob, "two")
	third := fs.addMessage(conv.ID, alice, "three")

	result, err := NewReader(fs).History(context.Background(), conv.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{result.Messages[0].ID, result.Messages[1].ID, result.Messages[2].ID}
	want := []string{first.ID, second.ID, third.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestHistoryAllReadSkipsBatchUpdate(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)
	m := fs.addMessage(conv.ID, bob, "already seen")
	fs.messages[0].IsRead = true
	_ = m

	result, err := NewReader(fs).History(context.Background(), conv.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ReadIDs) != 0 {
		t.Fatal("nothing should flip when everything is read")
	}
	if fs.markReadCalls != 0 {
		t.Fatal("no batch update expected when nothing is unread")
	}
}

func TestHistoryNonParticipant(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	mallory := fs.addUser("mallory")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)

	_, err := NewReader(fs).History(context.Background(), conv.ID, mallory)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-participant, got %v", err)
	}
}

func TestHistoryUnknownConversation(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")

	_, err := NewReader(fs).History(context.Background(), uuid.New(), alice)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)
	m := fs.addMessage(conv.ID, bob, "hello")

	result, err := NewReader(fs).MarkRead(context.Background(), m.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Fatal("first mark should report a change")
	}
	if !result.Message.IsRead {
		t.Fatal("returned message should be read")
	}

	// Idempotent: second mark is a no-op.
	result, err = NewReader(fs).MarkRead(context.Background(), m.ID, alice)
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Fatal("re-marking a read message must not report a change")
	}
}

func TestMarkReadOwnMessage(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)
	m := fs.addMessage(conv.ID, alice, "mine")

	_, err := NewReader(fs).MarkRead(context.Background(), m.ID, alice)
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestMarkReadNonParticipant(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	mallory := fs.addUser("mallory")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)
	m := fs.addMessage(conv.ID, bob, "private")

	_, err := NewReader(fs).MarkRead(context.Background(), m.ID, mallory)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")

	_, err := NewReader(fs).MarkRead(context.Background(), "01JMZZZZZZZZZZZZZZZZZZZZZZ", alice)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

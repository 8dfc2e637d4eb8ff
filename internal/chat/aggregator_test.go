package chat

import (
	"context"
	"testing"
	"time"
)

func TestListForEmptyInbox(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")

	summaries, err := NewAggregator(fs).ListFor(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected empty inbox, got %d entries", len(summaries))
	}
}

func TestListForSummaryFields(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project := fs.addProject("portfolio", bob)
	conv := fs.addConversation(project, bob, alice)
	fs.addMessage(conv.ID, alice, "first")
	last := fs.addMessage(conv.ID, bob, "second")

	summaries, err := NewAggregator(fs).ListFor(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.Counterpart.ID != bob || s.Counterpart.DisplayName != "bob" {
		t.Fatal("counterpart should be the other participant")
	}
	if s.ProjectName != "portfolio" {
		t.Fatalf("expected project name, got %q", s.ProjectName)
	}
	if s.LastMessage == nil || s.LastMessage.ID != last.ID {
		t.Fatal("last message should be the newest in the conversation")
	}
	if s.UnreadCount != 1 {
		t.Fatalf("expected 1 unread (bob's message), got %d", s.UnreadCount)
	}
}

func TestListForCollapsesDuplicates(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project := fs.addProject("portfolio", bob)

	// Two rows for the same logical pair, as left behind by a creation race.
	stale := fs.addConversation(project, bob, alice)
	fresh := fs.addConversation(project, alice, bob)
	for i := range fs.conversations {
		if fs.conversations[i].ID == fresh.ID {
			fs.conversations[i].UpdatedAt = stale.UpdatedAt.Add(time.Minute)
		}
	}

	summaries, err := NewAggregator(fs).ListFor(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("duplicate rows should collapse to 1 summary, got %d", len(summaries))
	}
	if summaries[0].Conversation.ID != fresh.ID {
		t.Fatal("the row with the newest activity should survive")
	}
}

func TestListForSortsByActivity(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	carol := fs.addUser("carol")
	projectB := fs.addProject("sketches", bob)
	projectC := fs.addProject("synth", carol)

	older := fs.addConversation(projectB, bob, alice)
	newer := fs.addConversation(projectC, carol, alice)
	fs.addMessage(newer.ID, carol, "newest activity")

	summaries, err := NewAggregator(fs).ListFor(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Conversation.ID != newer.ID || summaries[1].Conversation.ID != older.ID {
		t.Fatal("summaries should be sorted by newest activity first")
	}
}

func TestListForSamePairDifferentProjects(t *testing.T) {
	fs := newFakeStore()
	alice := fs.addUser("alice")
	bob := fs.addUser("bob")
	project1 := fs.addProject("sketches", bob)
	project2 := fs.addProject("synth", bob)
	fs.addConversation(project1, bob, alice)
	fs.addConversation(project2, bob, alice)

	summaries, err := NewAggregator(fs).ListFor(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("same pair on different projects is 2 conversations, got %d", len(summaries))
	}
}

package chat

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/models"
)

// fakeStore is an in-memory DataStore for exercising the chat core without a
// database. Call counters let tests assert which store paths ran.
type fakeStore struct {
	users         map[uuid.UUID]models.User
	projects      map[uuid.UUID]models.Project
	conversations []models.Conversation
	messages      []models.Message

	now    time.Time
	nextID int

	findCalls       int
	createConvCalls int
	insertCalls     int
	markReadCalls   int

	failFind bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[uuid.UUID]models.User),
		projects: make(map[uuid.UUID]models.Project),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakeStore) addUser(name string) uuid.UUID {
	u := models.User{ID: uuid.New(), DisplayName: name, CreatedAt: f.tick()}
	f.users[u.ID] = u
	return u.ID
}

func (f *fakeStore) addProject(name string, ownerID uuid.UUID) uuid.UUID {
	p := models.Project{ID: uuid.New(), Name: name, OwnerID: ownerID, CreatedAt: f.tick()}
	f.projects[p.ID] = p
	return p.ID
}

func (f *fakeStore) addConversation(projectID, creatorID, senderID uuid.UUID) models.Conversation {
	now := f.tick()
	c := models.Conversation{
		ID: uuid.New(), ProjectID: projectID,
		CreatorID: creatorID, SenderID: senderID,
		CreatedAt: now, UpdatedAt: now,
	}
	f.conversations = append(f.conversations, c)
	return c
}

func (f *fakeStore) addMessage(conversationID, senderID uuid.UUID, content string) models.Message {
	f.nextID++
	m := models.Message{
		ID:             fmt.Sprintf("%026d", f.nextID),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      f.tick().UnixMilli(),
	}
	f.messages = append(f.messages, m)
	return m
}

func (f *fakeStore) Close()                         {}
func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, displayName, avatarURL string) (*models.User, error) {
	u := models.User{ID: uuid.New(), DisplayName: displayName, AvatarURL: avatarURL, CreatedAt: f.tick()}
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, userID uuid.UUID, tokenDigest string, expiresAt time.Time) error {
	return nil
}

func (f *fakeStore) GetUserBySession(ctx context.Context, tokenDigest string) (*models.User, error) {
	return nil, nil
}

func (f *fakeStore) CreateProject(ctx context.Context, name string, ownerID uuid.UUID) (*models.Project, error) {
	p := models.Project{ID: uuid.New(), Name: name, OwnerID: ownerID, CreatedAt: f.tick()}
	f.projects[p.ID] = p
	return &p, nil
}

func (f *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) CreateConversation(ctx context.Context, projectID, creatorID, senderID uuid.UUID) (*models.Conversation, error) {
	f.createConvCalls++
	c := f.addConversation(projectID, creatorID, senderID)
	return &c, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	for _, c := range f.conversations {
		if c.ID == id {
			conv := c
			return &conv, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindConversations(ctx context.Context, projectID, a, b uuid.UUID) ([]models.Conversation, error) {
	f.findCalls++
	if f.failFind {
		return nil, fmt.Errorf("connection refused")
	}
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.ProjectID != projectID {
			continue
		}
		pair := (c.CreatorID == a && c.SenderID == b) || (c.CreatorID == b && c.SenderID == a)
		if pair {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.Involves(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, error) {
	f.insertCalls++
	m := f.addMessage(conversationID, senderID, content)
	for i := range f.conversations {
		if f.conversations[i].ID == conversationID {
			f.conversations[i].UpdatedAt = time.UnixMilli(m.Timestamp)
		}
	}
	return &m, nil
}

func (f *fakeStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	for _, m := range f.messages {
		if m.ID == id {
			msg := m
			return &msg, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out, nil
}

func (f *fakeStore) MarkMessagesRead(ctx context.Context, ids []string) (int64, error) {
	f.markReadCalls++
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for i := range f.messages {
		if want[f.messages[i].ID] && !f.messages[i].IsRead {
			f.messages[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) UnreadCount(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error) {
	n := 0
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.SenderID != viewerID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) LastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	var last *models.Message
	for i := range f.messages {
		m := f.messages[i]
		if m.ConversationID != conversationID {
			continue
		}
		if last == nil || last.Before(&m) {
			last = &f.messages[i]
		}
	}
	if last == nil {
		return nil, nil
	}
	msg := *last
	return &msg, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/showfolio/chat/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs development and
// single-node deployments; the schema mirrors PostgresStore with TEXT ids
// generated in Go.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token_digest TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL REFERENCES users(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		creator_id TEXT NOT NULL REFERENCES users(id),
		sender_id TEXT NOT NULL REFERENCES users(id),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_pair ON conversations(project_id, creator_id, sender_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, displayName, avatarURL string) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, avatar_url, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), displayName, avatarURL, now)
	if err != nil {
		return nil, err
	}

	return &models.User{ID: id, DisplayName: displayName, AvatarURL: avatarURL, CreatedAt: now}, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, avatar_url, created_at
		FROM users WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	return user, nil
}

// CreateSession stores a session token digest for a user.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID uuid.UUID, tokenDigest string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_digest, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, tokenDigest, userID.String(), expiresAt.UTC(), time.Now().UTC())
	return err
}

// GetUserBySession resolves a session token digest to its user, ignoring
// expired sessions.
func (s *SQLiteStore) GetUserBySession(ctx context.Context, tokenDigest string) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.display_name, u.avatar_url, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_digest = ? AND s.expires_at > ?
	`, tokenDigest, time.Now().UTC()).Scan(
		&idStr,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	return user, nil
}

// CreateProject creates a new project record.
func (s *SQLiteStore) CreateProject(ctx context.Context, name string, ownerID uuid.UUID) (*models.Project, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, owner_id, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), name, ownerID.String(), now)
	if err != nil {
		return nil, err
	}

	return &models.Project{ID: id, Name: name, OwnerID: ownerID, CreatedAt: now}, nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project := &models.Project{}
	var idStr, ownerStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at
		FROM projects WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&project.Name,
		&ownerStr,
		&project.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	project.ID = uuid.MustParse(idStr)
	project.OwnerID = uuid.MustParse(ownerStr)
	return project, nil
}

// CreateConversation creates a new conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, projectID, creatorID, senderID uuid.UUID) (*models.Conversation, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, project_id, creator_id, sender_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), projectID.String(), creatorID.String(), senderID.String(), now, now)
	if err != nil {
		return nil, err
	}

	return &models.Conversation{
		ID:        id,
		ProjectID: projectID,
		CreatorID: creatorID,
		SenderID:  senderID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, creator_id, sender_id, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id.String())

	conv, err := scanConversationRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// FindConversations retrieves all conversation rows for a project and an
// unordered participant pair, newest activity first.
func (s *SQLiteStore) FindConversations(ctx context.Context, projectID, a, b uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, creator_id, sender_id, created_at, updated_at
		FROM conversations
		WHERE project_id = ?
		  AND ((creator_id = ? AND sender_id = ?) OR (creator_id = ? AND sender_id = ?))
		ORDER BY updated_at DESC, created_at DESC, id DESC
	`, projectID.String(), a.String(), b.String(), b.String(), a.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConversations(rows)
}

// ListConversationsForUser retrieves all raw conversation rows involving the
// user, including duplicates from creation races.
func (s *SQLiteStore) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, creator_id, sender_id, created_at, updated_at
		FROM conversations
		WHERE creator_id = ? OR sender_id = ?
		ORDER BY updated_at DESC, created_at DESC, id DESC
	`, userID.String(), userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectConversations(rows)
}

func collectConversations(rows *sql.Rows) ([]models.Conversation, error) {
	var convs []models.Conversation
	for rows.Next() {
		conv, err := scanConversationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

func scanConversationRow(scan func(dest ...any) error) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var idStr, projectStr, creatorStr, senderStr string
	err := scan(
		&idStr,
		&projectStr,
		&creatorStr,
		&senderStr,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conv.ID = uuid.MustParse(idStr)
	conv.ProjectID = uuid.MustParse(projectStr)
	conv.CreatorID = uuid.MustParse(creatorStr)
	conv.SenderID = uuid.MustParse(senderStr)
	return conv, nil
}

// InsertMessage stores a message and bumps the conversation's updated_at in
// one transaction.
func (s *SQLiteStore) InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      time.Now().UnixMilli(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, 0)
	`, msg.ID, msg.ConversationID.String(), msg.SenderID.String(), msg.Content, msg.Timestamp)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, time.Now().UTC(), conversationID.String())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages WHERE id = ?
	`, id)

	msg, err := scanMessageRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves all messages in a conversation in conversation
// order: ascending created_at, ties broken by id.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessageRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func scanMessageRow(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var convStr, senderStr string
	err := scan(
		&msg.ID,
		&convStr,
		&senderStr,
		&msg.Content,
		&msg.Timestamp,
		&msg.IsRead,
	)
	if err != nil {
		return nil, err
	}
	msg.ConversationID = uuid.MustParse(convStr)
	msg.SenderID = uuid.MustParse(senderStr)
	return msg, nil
}

// MarkMessagesRead flips is_read on the given messages. The is_read guard
// keeps the transition monotonic and the call idempotent.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE id IN (`+placeholders+`) AND is_read = 0
	`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount counts messages in a conversation authored by the counterpart
// and not yet read by the viewer.
func (s *SQLiteStore) UnreadCount(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = ? AND sender_id != ? AND is_read = 0
	`, conversationID.String(), viewerID.String()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// LastMessage retrieves the most recent message in a conversation.
func (s *SQLiteStore) LastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID.String())

	msg, err := scanMessageRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

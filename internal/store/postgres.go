package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/showfolio/chat/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		display_name TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token_digest TEXT PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		owner_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL REFERENCES projects(id),
		creator_id UUID NOT NULL REFERENCES users(id),
		sender_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		sender_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_pair ON conversations(project_id, creator_id, sender_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, is_read) WHERE is_read = FALSE;
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, displayName, avatarURL string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (display_name, avatar_url)
		VALUES ($1, $2)
		RETURNING id, display_name, avatar_url, created_at
	`, displayName, avatarURL).Scan(
		&user.ID,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, avatar_url, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateSession stores a session token digest for a user.
func (s *PostgresStore) CreateSession(ctx context.Context, userID uuid.UUID, tokenDigest string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token_digest, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenDigest, userID, expiresAt)
	return err
}

// GetUserBySession resolves a session token digest to its user, ignoring
// expired sessions.
func (s *PostgresStore) GetUserBySession(ctx context.Context, tokenDigest string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.display_name, u.avatar_url, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_digest = $1 AND s.expires_at > NOW()
	`, tokenDigest).Scan(
		&user.ID,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateProject creates a new project record.
func (s *PostgresStore) CreateProject(ctx context.Context, name string, ownerID uuid.UUID) (*models.Project, error) {
	project := &models.Project{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, name, owner_id, created_at
	`, name, ownerID).Scan(
		&project.ID,
		&project.Name,
		&project.OwnerID,
		&project.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject retrieves a project by ID.
func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project := &models.Project{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at
		FROM projects WHERE id = $1
	`, id).Scan(
		&project.ID,
		&project.Name,
		&project.OwnerID,
		&project.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return project, nil
}

// CreateConversation creates a new conversation row.
func (s *PostgresStore) CreateConversation(ctx context.Context, projectID, creatorID, senderID uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (project_id, creator_id, sender_id)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, creator_id, sender_id, created_at, updated_at
	`, projectID, creatorID, senderID).Scan(
		&conv.ID,
		&conv.ProjectID,
		&conv.CreatorID,
		&conv.SenderID,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, creator_id, sender_id, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(
		&conv.ID,
		&conv.ProjectID,
		&conv.CreatorID,
		&conv.SenderID,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// FindConversations retrieves all conversation rows for a project and an
// unordered participant pair, newest activity first.
func (s *PostgresStore) FindConversations(ctx context.Context, projectID, a, b uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, creator_id, sender_id, created_at, updated_at
		FROM conversations
		WHERE project_id = $1
		  AND ((creator_id = $2 AND sender_id = $3) OR (creator_id = $3 AND sender_id = $2))
		ORDER BY updated_at DESC, created_at DESC, id DESC
	`, projectID, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

// ListConversationsForUser retrieves all raw conversation rows involving the
// user, including duplicates from creation races.
func (s *PostgresStore) ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, creator_id, sender_id, created_at, updated_at
		FROM conversations
		WHERE creator_id = $1 OR sender_id = $1
		ORDER BY updated_at DESC, created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

func scanConversations(rows pgx.Rows) ([]models.Conversation, error) {
	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.ProjectID,
			&conv.CreatorID,
			&conv.SenderID,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// InsertMessage stores a message and bumps the conversation's updated_at in
// one transaction. The id and timestamp are assigned here so ordering is
// defined by the store, not by the caller's clock.
func (s *PostgresStore) InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      time.Now().UnixMilli(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, FALSE)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Timestamp)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET updated_at = NOW() WHERE id = $1
	`, conversationID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages WHERE id = $1
	`, id).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.Timestamp,
		&msg.IsRead,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves all messages in a conversation in conversation
// order: ascending created_at, ties broken by id.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Content,
			&msg.Timestamp,
			&msg.IsRead,
		)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MarkMessagesRead flips is_read on the given messages. The is_read guard
// keeps the transition monotonic and the call idempotent.
func (s *PostgresStore) MarkMessagesRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE id = ANY($1) AND is_read = FALSE
	`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnreadCount counts messages in a conversation authored by the counterpart
// and not yet read by the viewer.
func (s *PostgresStore) UnreadCount(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND sender_id != $2 AND is_read = FALSE
	`, conversationID, viewerID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// LastMessage retrieves the most recent message in a conversation.
func (s *PostgresStore) LastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.Timestamp,
		&msg.IsRead,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

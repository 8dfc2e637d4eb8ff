package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/showfolio/chat/internal/models"
)

// DataStore defines the interface for durable storage of users, projects,
// conversations and messages. Both PostgresStore and SQLiteStore implement
// this interface. Lookups return (nil, nil) when the row does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User and session operations
	CreateUser(ctx context.Context, displayName, avatarURL string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateSession(ctx context.Context, userID uuid.UUID, tokenDigest string, expiresAt time.Time) error
	GetUserBySession(ctx context.Context, tokenDigest string) (*models.User, error)

	// Project operations
	CreateProject(ctx context.Context, name string, ownerID uuid.UUID) (*models.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)

	// Conversation operations. FindConversations matches the unordered
	// participant pair, so both orientations of (a, b) are returned.
	CreateConversation(ctx context.Context, projectID, creatorID, senderID uuid.UUID) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindConversations(ctx context.Context, projectID, a, b uuid.UUID) ([]models.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)

	// Message operations. InsertMessage assigns the ULID id plus the server
	// timestamp and bumps the conversation's updated_at in the same unit of
	// work. MarkMessagesRead only ever flips false to true and reports how
	// many rows actually changed.
	InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, ids []string) (int64, error)
	UnreadCount(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error)
	LastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)
}

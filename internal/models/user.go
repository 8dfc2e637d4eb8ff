package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered gallery member. Only the display fields the
// messaging core needs are carried here; the full profile lives with the
// identity provider.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

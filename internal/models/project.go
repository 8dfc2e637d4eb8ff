package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a showcased project. OwnerID seeds the creator side of a
// conversation on first contact.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserProfile represents the public profile shape the chat UI renders for a
// conversation participant.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	JoinedAt    string `json:"joined_at"`
}

// Who handles the profile lookup endpoint.
func (h *Handler) Who(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusServiceUnavailable, "store unavailable, retry later")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, UserProfile{
		ID:          user.ID.String(),
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		JoinedAt:    user.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// ProjectInfo represents the project shape the chat UI needs: a display name
// and the owner to seed creator_id on first contact.
type ProjectInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// GetProject handles the project lookup endpoint.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid project ID format")
		return
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusServiceUnavailable, "store unavailable, retry later")
		return
	}
	if project == nil {
		h.Error(w, http.StatusNotFound, "project not found")
		return
	}

	h.JSON(w, http.StatusOK, ProjectInfo{
		ID:      project.ID.String(),
		Name:    project.Name,
		OwnerID: project.OwnerID.String(),
	})
}

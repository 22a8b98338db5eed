// Package users provides HTTP handlers for user profile endpoints.
//
// Purpose:
//
//	This package implements the self-service profile endpoints (read and
//	partial update of the caller's own record) plus the superuser-only
//	delete endpoint. All routes sit behind the bearer-token middleware;
//	delete additionally requires the superuser flag.
//
// Key Responsibilities:
//   - Me: the caller's profile (GET /users/me)
//   - UpdateMe: partial update of username and email (PUT /users/me)
//   - Delete: superuser-only removal with cascade (DELETE /users/{id})
//
// Debugging Notes:
//   - Omitted and empty-string fields in the update body are both treated
//     as "leave unchanged"; the handler never writes an empty username.
//   - Unique-constraint violations on update surface as 409.
package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/audioreg/audioreg/internal/access"
	"github.com/audioreg/audioreg/internal/audit"
	"github.com/audioreg/audioreg/internal/directory"
	"github.com/audioreg/audioreg/internal/httpapi"
	"github.com/audioreg/audioreg/internal/httpapi/middleware"
	"github.com/audioreg/audioreg/internal/storage/postgres"
)

// Handler serves the user profile endpoints.
type Handler struct {
	directory *directory.Directory
	access    *access.Control
	audit     audit.Emitter
	logger    zerolog.Logger
}

func NewHandler(dir *directory.Directory, ctrl *access.Control, emitter audit.Emitter, logger zerolog.Logger) *Handler {
	return &Handler{directory: dir, access: ctrl, audit: emitter, logger: logger}
}

// RegisterRoutes mounts the profile routes. The router is expected to carry
// the bearer-token middleware already.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/me", h.Me)
	r.Put("/users/me", h.UpdateMe)
	r.Delete("/users/{id}", h.Delete)
}

type userResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       *string   `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u postgres.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
	}
}

type updateRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// Me returns the authenticated caller's profile.
// GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateMe applies a partial update to the caller's own record.
// PUT /users/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := directory.UpdateFields{
		Username: nonEmpty(req.Username),
		Email:    nonEmpty(req.Email),
	}

	updated, err := h.directory.Update(r.Context(), user.ID, fields)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrDuplicateIdentity):
			httpapi.WriteError(w, http.StatusConflict, "username or email already taken")
		case errors.Is(err, postgres.ErrNotFound):
			httpapi.WriteError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.Error().Err(err).Int64("user_id", user.ID).Msg("profile update failed")
			httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.emit(r, user.ID, audit.ActionUserUpdate, &user.ID)
	httpapi.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

// Delete removes a user and, by cascade, their audio files. Superuser only.
// DELETE /users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUser(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	if err := h.access.RequireSuperuser(caller); err != nil {
		httpapi.WriteError(w, http.StatusForbidden, "superuser required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.directory.Delete(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httpapi.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Int64("user_id", id).Msg("user delete failed")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.emit(r, caller.ID, audit.ActionUserDelete, &id)
	w.WriteHeader(http.StatusNoContent)
}

// nonEmpty treats empty strings as absent so clients sending "" do not
// clobber a field.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func (h *Handler) emit(r *http.Request, actorID int64, action string, targetID *int64) {
	event := audit.BuildEvent(actorID, audit.ActorTypeUser, action, audit.TargetTypeUser, targetID)
	event = audit.BuildEventFromRequest(event, r)
	if err := h.audit.Emit(r.Context(), event); err != nil {
		h.logger.Warn().Err(err).Str("action", action).Msg("audit emit failed")
	}
}

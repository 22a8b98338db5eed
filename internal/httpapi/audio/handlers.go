// Package audio provides HTTP handlers for audio file upload and listing.
//
// Purpose:
//
//	This package implements the multipart upload endpoint (file bytes go to
//	the blob store, the record goes to the relational store) and the
//	per-owner listing endpoint. Both routes sit behind the bearer-token
//	middleware; listings are always scoped to the caller.
//
// Debugging Notes:
//   - The client-supplied name is reduced to its base name before it
//     touches the filesystem; path separators in the name cannot escape
//     the upload directory.
//   - A failed record insert after a successful blob write leaves an
//     orphaned file on disk; the record is the source of truth.
package audio

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/audioreg/audioreg/internal/audit"
	"github.com/audioreg/audioreg/internal/httpapi"
	"github.com/audioreg/audioreg/internal/httpapi/middleware"
	"github.com/audioreg/audioreg/internal/metrics"
	"github.com/audioreg/audioreg/internal/storage/blob"
	"github.com/audioreg/audioreg/internal/storage/postgres"
)

// maxUploadBytes caps the in-memory portion of multipart parsing; larger
// bodies spill to temp files.
const maxUploadBytes = 32 << 20

// Store is the subset of the relational store the audio endpoints need.
type Store interface {
	CreateAudioFile(ctx context.Context, params postgres.CreateAudioFileParams) (postgres.AudioFile, error)
	ListAudioFilesByOwner(ctx context.Context, userID int64) ([]postgres.AudioFile, error)
}

// Handler serves the audio file endpoints.
type Handler struct {
	store  Store
	blobs  *blob.LocalStore
	audit  audit.Emitter
	logger zerolog.Logger
}

func NewHandler(store Store, blobs *blob.LocalStore, emitter audit.Emitter, logger zerolog.Logger) *Handler {
	return &Handler{store: store, blobs: blobs, audit: emitter, logger: logger}
}

// RegisterRoutes mounts the audio routes. The router is expected to carry
// the bearer-token middleware already.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Get("/audio-files", h.List)
}

type fileResponse struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func toFileResponse(f postgres.AudioFile) fileResponse {
	return fileResponse{
		ID:         f.ID,
		FileName:   f.FileName,
		FilePath:   f.FilePath,
		UploadedAt: f.UploadedAt,
	}
}

// Upload accepts a multipart form with a "file" part and a "name" field,
// writes the bytes to the blob store, and records the file for the caller.
// POST /upload
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "missing file name")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	path, err := h.blobs.Save(name, file)
	if err != nil {
		h.logger.Error().Err(err).Str("name", name).Msg("blob write failed")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	record, err := h.store.CreateAudioFile(r.Context(), postgres.CreateAudioFileParams{
		UserID:   user.ID,
		FileName: name,
		FilePath: path,
	})
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", user.ID).Msg("audio record insert failed")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if size, err := file.Seek(0, io.SeekEnd); err == nil {
		metrics.RecordUpload(size)
	}
	h.emit(r, user.ID, record.ID)

	httpapi.WriteJSON(w, http.StatusCreated, toFileResponse(record))
}

// List returns the caller's audio files in upload order.
// GET /audio-files
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	files, err := h.store.ListAudioFilesByOwner(r.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", user.ID).Msg("audio listing failed")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) emit(r *http.Request, actorID, fileID int64) {
	event := audit.BuildEvent(actorID, audit.ActorTypeUser, audit.ActionAudioUpload, audit.TargetTypeAudioFile, &fileID)
	event = audit.BuildEventFromRequest(event, r)
	if err := h.audit.Emit(r.Context(), event); err != nil {
		h.logger.Warn().Err(err).Msg("audit emit failed")
	}
}

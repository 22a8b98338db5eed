// Package auth provides HTTP handlers for the Yandex OAuth2 login flow.
//
// Purpose:
//
//	This package implements the three authentication endpoints: login
//	(redirect to the Yandex authorize page with a one-time state token),
//	callback (state consumption, code exchange, user ensure, session token
//	issuance), and refresh (new session token for an already-authenticated
//	caller). Handlers translate identity and directory errors into the
//	service's HTTP status mapping and never leak upstream detail.
//
// Key Responsibilities:
//   - Login: 302 to the provider (GET /auth/yandex/login)
//   - Callback: exchange code, issue session token (GET /auth/yandex/callback)
//   - Refresh: reset the caller's session TTL (POST /auth/refresh)
//
// Debugging Notes:
//   - A 400 from the callback means the flow must restart: authorization
//     codes and state tokens are single-use, so retrying the same URL
//     cannot succeed.
//   - Upstream timeouts surface as 504; everything else from the provider
//     is a 400 so callers do not retry a dead code.
//   - Audit emit failures are logged and never fail the request.
package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/audioreg/audioreg/internal/audit"
	"github.com/audioreg/audioreg/internal/directory"
	"github.com/audioreg/audioreg/internal/httpapi"
	"github.com/audioreg/audioreg/internal/httpapi/middleware"
	"github.com/audioreg/audioreg/internal/identity"
	"github.com/audioreg/audioreg/internal/metrics"
	"github.com/audioreg/audioreg/internal/oauth"
	"github.com/audioreg/audioreg/internal/storage/postgres"
	"github.com/audioreg/audioreg/internal/token"
)

// Handler serves the authentication endpoints.
type Handler struct {
	provider  *identity.Provider
	states    oauth.StateStore
	directory *directory.Directory
	tokens    *token.Service
	audit     audit.Emitter
	logger    zerolog.Logger
}

// NewHandler wires the login flow dependencies together.
func NewHandler(provider *identity.Provider, states oauth.StateStore, dir *directory.Directory, tokens *token.Service, emitter audit.Emitter, logger zerolog.Logger) *Handler {
	return &Handler{
		provider:  provider,
		states:    states,
		directory: dir,
		tokens:    tokens,
		audit:     emitter,
		logger:    logger,
	}
}

// RegisterPublicRoutes mounts the unauthenticated login endpoints.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/auth/yandex/login", h.Login)
	r.Get("/auth/yandex/callback", h.Callback)
}

// RegisterProtectedRoutes mounts the endpoints that require a bearer token.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/auth/refresh", h.Refresh)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login redirects the browser to the Yandex authorize page.
// GET /auth/yandex/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to issue oauth state")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the OAuth2 flow: it consumes the one-time state,
// exchanges the authorization code, ensures a local user for the remote
// profile, and returns a session token.
// GET /auth/yandex/callback?code={code}&state={state}
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	if state == "" {
		metrics.RecordLoginFailure("missing_state")
		httpapi.WriteError(w, http.StatusBadRequest, "missing state parameter")
		return
	}
	if err := h.states.Consume(ctx, state); err != nil {
		if errors.Is(err, oauth.ErrStateUnknown) {
			metrics.RecordLoginFailure("unknown_state")
			httpapi.WriteError(w, http.StatusBadRequest, "unknown or expired state")
			return
		}
		h.logger.Error().Err(err).Msg("state store failure")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		metrics.RecordLoginFailure("missing_code")
		httpapi.WriteError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	profile, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		status, reason, message := classifyExchange(err)
		metrics.RecordLoginFailure(reason)
		h.logger.Warn().Err(err).Str("reason", reason).Msg("oauth exchange failed")
		httpapi.WriteError(w, status, message)
		return
	}

	user, err := h.directory.EnsureUser(ctx, profile)
	if err != nil {
		if errors.Is(err, postgres.ErrDuplicateIdentity) {
			metrics.RecordLoginFailure("identity_conflict")
			httpapi.WriteError(w, http.StatusConflict, "identity conflict")
			return
		}
		h.logger.Error().Err(err).Msg("failed to ensure user")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	accessToken, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to sign session token")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.RecordLoginSuccess()
	metrics.RecordTokenIssued()
	h.emit(r, user.ID, audit.ActionUserLogin, audit.TargetTypeUser, &user.ID)

	httpapi.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken, TokenType: "bearer"})
}

// Refresh issues a fresh session token for the authenticated caller,
// resetting the TTL.
// POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	accessToken, err := h.tokens.Refresh(user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to sign session token")
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.RecordTokenIssued()
	h.emit(r, user.ID, audit.ActionUserRefresh, audit.TargetTypeUser, &user.ID)

	httpapi.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken, TokenType: "bearer"})
}

// classifyExchange maps an identity error to the status, metric reason, and
// client-facing message for the callback response.
func classifyExchange(err error) (status int, reason, message string) {
	switch {
	case errors.Is(err, identity.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "upstream_timeout", "authorization provider timed out"
	case errors.Is(err, identity.ErrUpstreamAuth):
		return http.StatusBadRequest, "upstream_auth", "authorization code rejected"
	case errors.Is(err, identity.ErrUpstreamProfile):
		return http.StatusBadRequest, "upstream_profile", "profile fetch failed"
	default:
		return http.StatusBadRequest, "malformed_response", "malformed provider response"
	}
}

func (h *Handler) emit(r *http.Request, actorID int64, action, targetType string, targetID *int64) {
	event := audit.BuildEvent(actorID, audit.ActorTypeUser, action, targetType, targetID)
	event = audit.BuildEventFromRequest(event, r)
	if err := h.audit.Emit(r.Context(), event); err != nil {
		h.logger.Warn().Err(err).Str("action", action).Msg("audit emit failed")
	}
}

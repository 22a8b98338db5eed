package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audioreg/audioreg/internal/access"
	"github.com/audioreg/audioreg/internal/audit"
	"github.com/audioreg/audioreg/internal/directory"
	"github.com/audioreg/audioreg/internal/httpapi/middleware"
	"github.com/audioreg/audioreg/internal/identity"
	"github.com/audioreg/audioreg/internal/oauth"
	"github.com/audioreg/audioreg/internal/storage/memory"
	"github.com/audioreg/audioreg/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// upstream is a fake Yandex reachable from the callback handler.
type upstream struct {
	tokenStatus   int
	tokenBody     string
	profileStatus int
	profileBody   string
}

func (u *upstream) newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.tokenStatus)
		_, _ = w.Write([]byte(u.tokenBody))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.profileStatus)
		_, _ = w.Write([]byte(u.profileBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	router    chi.Router
	states    oauth.StateStore
	directory *directory.Directory
	tokens    *token.Service
}

func newFixture(t *testing.T, up *upstream) *fixture {
	t.Helper()

	srv := up.newServer(t)
	provider := identity.NewProvider(identity.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://audioreg.example.com/auth/yandex/callback",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/info",
	})

	states := oauth.NewMemoryStateStore(oauth.DefaultStateTTL)
	dir := directory.New(memory.NewStore())
	tokens := token.NewService(testSecret, 30*time.Minute)
	ctrl := access.New(tokens, dir)
	handler := NewHandler(provider, states, dir, tokens, audit.NewNoopEmitter(), zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterPublicRoutes(router)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(ctrl, zerolog.Nop()))
		handler.RegisterProtectedRoutes(r)
	})

	return &fixture{router: router, states: states, directory: dir, tokens: tokens}
}

func happyUpstream() *upstream {
	return &upstream{
		tokenStatus:   http.StatusOK,
		tokenBody:     `{"access_token":"T","token_type":"bearer","expires_in":3600}`,
		profileStatus: http.StatusOK,
		profileBody:   `{"id":"99","display_name":"Alice","default_email":"a@x.com"}`,
	}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestLoginRedirects(t *testing.T) {
	f := newFixture(t, happyUpstream())

	w := f.get(t, "/auth/yandex/login")
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	q := loc.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.NotEmpty(t, q.Get("state"))
}

func TestCallbackIssuesToken(t *testing.T) {
	f := newFixture(t, happyUpstream())

	// Walk the real flow: login issues the state the callback consumes.
	login := f.get(t, "/auth/yandex/login")
	require.Equal(t, http.StatusFound, login.Code)
	loc, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	w := f.get(t, "/auth/yandex/callback?code=abc&state="+state)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)

	userID, err := f.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)

	user, err := f.directory.GetByID(t.Context(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Username)
	require.NotNil(t, user.ExternalID)
	assert.Equal(t, "99", *user.ExternalID)
	assert.False(t, user.IsSuperuser)
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	f := newFixture(t, happyUpstream())

	login := f.get(t, "/auth/yandex/login")
	loc, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	first := f.get(t, "/auth/yandex/callback?code=abc&state="+state)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.get(t, "/auth/yandex/callback?code=abc&state="+state)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Contains(t, second.Body.String(), "unknown or expired state")
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	f := newFixture(t, happyUpstream())

	w := f.get(t, "/auth/yandex/callback?code=abc&state=never-issued")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown or expired state")
}

func TestCallbackMissingParams(t *testing.T) {
	f := newFixture(t, happyUpstream())

	w := f.get(t, "/auth/yandex/callback?code=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing state parameter")

	login := f.get(t, "/auth/yandex/login")
	loc, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	w = f.get(t, "/auth/yandex/callback?state="+state)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization code")
}

func TestCallbackUpstreamRejectsCode(t *testing.T) {
	up := happyUpstream()
	up.tokenStatus = http.StatusBadRequest
	up.tokenBody = `{"error":"invalid_grant"}`
	f := newFixture(t, up)

	login := f.get(t, "/auth/yandex/login")
	loc, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	w := f.get(t, "/auth/yandex/callback?code=bad&state="+state)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "authorization code rejected")
}

func TestCallbackProfileFetchFails(t *testing.T) {
	up := happyUpstream()
	up.profileStatus = http.StatusInternalServerError
	up.profileBody = `oops`
	f := newFixture(t, up)

	login := f.get(t, "/auth/yandex/login")
	loc, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	w := f.get(t, "/auth/yandex/callback?code=abc&state="+state)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "profile fetch failed")
}

func TestCallbackIsIdempotentAcrossLogins(t *testing.T) {
	f := newFixture(t, happyUpstream())

	var ids []int64
	for i := 0; i < 2; i++ {
		login := f.get(t, "/auth/yandex/login")
		loc, err := url.Parse(login.Header().Get("Location"))
		require.NoError(t, err)
		state := loc.Query().Get("state")

		w := f.get(t, "/auth/yandex/callback?code=abc&state="+state)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			AccessToken string `json:"access_token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		id, err := f.tokens.Verify(resp.AccessToken)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, ids[0], ids[1], "repeat logins resolve to the same user")
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, happyUpstream())

	user, err := f.directory.CreateFromProfile(t.Context(), identity.RemoteProfile{ID: "99", DisplayName: "Alice"})
	require.NoError(t, err)
	tok, err := f.tokens.Issue(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)

	got, err := f.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got)
}

func TestRefreshRequiresToken(t *testing.T) {
	f := newFixture(t, happyUpstream())

	req := httptest.NewRequest("POST", "/auth/refresh", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

const testSessionID = "5d0c1f9a-3a53-4d8e-9c2b-7f4e1b6a2d90"

func sidCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func TestSessionCookie(t *testing.T) {
	t.Run("issues a session id to new visitors", func(t *testing.T) {
		sessions := &fakeSessions{session: domainauth.Session{State: domainauth.StateAnonymous}}
		var seen string
		h := SessionCookie(SessionCookieConfig{Sessions: sessions})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = SessionID(r)
			_, ok := GetSessionFromContext(r.Context())
			assert.True(t, ok)
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		c := sidCookie(w.Result())
		require.NotNil(t, c)
		_, err := uuid.Parse(c.Value)
		require.NoError(t, err)
		assert.Equal(t, c.Value, seen)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.False(t, c.Secure)
		assert.Equal(t, []string{seen}, sessions.hydrated)
	})

	t.Run("keeps an existing session id", func(t *testing.T) {
		sessions := &fakeSessions{session: signedInAs(domainauth.RoleUser)}
		var user *domainauth.User
		h := SessionCookie(SessionCookieConfig{Sessions: sessions})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			user = CurrentUser(r)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: testSessionID})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Nil(t, sidCookie(w.Result()))
		assert.Equal(t, []string{testSessionID}, sessions.hydrated)
		require.NotNil(t, user)
		assert.Equal(t, "Eve", user.Name)
	})

	t.Run("replaces a malformed session id", func(t *testing.T) {
		sessions := &fakeSessions{session: domainauth.Session{State: domainauth.StateAnonymous}}
		h := SessionCookie(SessionCookieConfig{Sessions: sessions, Secure: true})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "../../etc/passwd"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		c := sidCookie(w.Result())
		require.NotNil(t, c)
		assert.NotEqual(t, "../../etc/passwd", c.Value)
		assert.True(t, c.Secure)
	})
}

func guardedOK() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r) == nil {
			http.Error(w, "no user in context", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name     string
		session  domainauth.Session
		roles    []domainauth.Role
		accept   string
		method   string
		target   string
		wantCode int
		wantLoc  string
	}{
		{
			name:     "signed in with allowed role renders",
			session:  signedInAs(domainauth.RoleEngineer),
			roles:    []domainauth.Role{domainauth.RoleEngineer, domainauth.RoleAdmin},
			target:   "/engineer/bookings",
			wantCode: http.StatusOK,
		},
		{
			name:     "any role when none listed",
			session:  signedInAs(domainauth.RoleUser),
			target:   "/history",
			wantCode: http.StatusOK,
		},
		{
			name:     "anonymous browser goes to login with return path",
			session:  domainauth.Session{State: domainauth.StateAnonymous},
			target:   "/history?filter=solved",
			wantCode: http.StatusSeeOther,
			wantLoc:  "/login?redirect_uri=" + url.QueryEscape("/history?filter=solved"),
		},
		{
			name:     "anonymous POST carries only the path",
			session:  domainauth.Session{State: domainauth.StateAnonymous},
			method:   http.MethodPost,
			target:   "/contact?x=1",
			wantCode: http.StatusSeeOther,
			wantLoc:  "/login?redirect_uri=" + url.QueryEscape("/contact"),
		},
		{
			name:     "anonymous API client gets 401",
			session:  domainauth.Session{State: domainauth.StateAnonymous},
			accept:   "application/json",
			target:   "/history",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong role goes to landing",
			session:  signedInAs(domainauth.RoleEngineer),
			roles:    []domainauth.Role{domainauth.RoleUser, domainauth.RoleAdmin},
			target:   "/contact",
			wantCode: http.StatusSeeOther,
			wantLoc:  "/dashboard",
		},
		{
			name:     "wrong role API client gets 403",
			session:  signedInAs(domainauth.RoleUser),
			roles:    []domainauth.Role{domainauth.RoleAdmin},
			accept:   "application/json",
			target:   "/engineer/bookings",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "hydrating API client gets 503",
			session:  domainauth.Session{State: domainauth.StateHydrating, IsLoading: true},
			accept:   "application/json",
			target:   "/history",
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GuardConfig{Sessions: &fakeSessions{session: tt.session}}
			h := RequireRoles(cfg, tt.roles...)(guardedOK())

			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, w.Header().Get("Location"))
			}
		})
	}
}

func TestRequireRoles_LoadingPlaceholder(t *testing.T) {
	cfg := GuardConfig{Sessions: &fakeSessions{session: domainauth.Session{State: domainauth.StateHydrating, IsLoading: true}}}

	t.Run("fallback page", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireRoles(cfg)(guardedOK()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, "1", w.Header().Get("Refresh"))
		assert.Contains(t, w.Body.String(), "Loading")
		assert.Empty(t, w.Header().Get("Location"))
	})

	t.Run("custom loading handler", func(t *testing.T) {
		withLoading := cfg
		withLoading.Loading = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
		w := httptest.NewRecorder()
		RequireRoles(withLoading)(guardedOK()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("api retry hint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set("Accept", "application/json")
		w := httptest.NewRecorder()
		RequireRoles(cfg)(guardedOK()).ServeHTTP(w, req)

		assert.Equal(t, "1", w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "session_loading")
	})
}

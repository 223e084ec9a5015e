package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/laptopdoc/internal/adapters/memory"
	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/domain/troubleshoot"
	mocksauth "github.com/target/laptopdoc/internal/mocks/auth"
	"github.com/target/laptopdoc/internal/ports"
	"github.com/target/laptopdoc/internal/service"
)

type routerEnv struct {
	api     *mocksauth.FakeAPI
	store   *memory.CredentialStore
	handler http.Handler
}

func newRouterEnv(t *testing.T, hydrationWait time.Duration) *routerEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := mocksauth.NewFakeAPI()
	store := memory.NewCredentialStore(time.Hour)
	mgr := service.NewSessionManager(service.SessionManagerOptions{
		API:    api,
		Store:  store,
		Config: service.SessionManagerConfig{ValidateTimeout: time.Second, Logger: logger},
	})
	t.Cleanup(mgr.Wait)
	ts := service.NewTroubleshootService(service.TroubleshootServiceOptions{
		API:    api,
		Recent: memory.NewRecentStore(),
		Logger: logger,
	})

	handler := NewRouter(RouterServices{
		Sessions:      mgr,
		Troubleshoot:  ts,
		HydrationWait: hydrationWait,
		Logger:        logger,
	})
	return &routerEnv{api: api, store: store, handler: handler}
}

func profile(role domainauth.Role) map[string]any {
	return map[string]any{"id": 7, "name": "Eve", "email": "eve@example.com", "role": string(role)}
}

// seed stores a credential record for testSessionID and lets its validation succeed.
func (e *routerEnv) seed(t *testing.T, role domainauth.Role) {
	t.Helper()
	rec := domainauth.NewCredentialRecord("stored-token", "Bearer", domainauth.User{
		ID: "7", Name: "Eve", Email: "eve@example.com", Role: role,
	})
	require.NoError(t, e.store.Save(context.Background(), testSessionID, rec))
	e.api.Respond(http.MethodGet, "/auth/me", profile(role))
}

func (e *routerEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// browserRequest builds a request carrying the session and CSRF cookies. Form
// submissions also carry the CSRF field.
func browserRequest(method, target string, form url.Values) *http.Request {
	var body io.Reader
	if form != nil {
		form.Set(DefaultCSRFFormField, testCSRFToken)
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: testSessionID})
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	return req
}

func TestRouter_Healthz(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	w := env.serve(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_PublicPages(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	pages := map[string]string{
		"/":              "Start a diagnosis",
		"/about":         "About LaptopDoc",
		"/common-issues": "What to try",
		"/login":         `name="password"`,
		"/register":      `name="confirmPassword"`,
		"/diagnose":      `name="laptopBrand"`,
	}
	for path, want := range pages {
		t.Run(path, func(t *testing.T) {
			w := env.serve(browserRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), want)
			assert.Contains(t, w.Body.String(), testCSRFToken)
		})
	}
}

func TestRouter_NewVisitorGetsCookies(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	w := env.serve(httptest.NewRequest(http.MethodGet, "/about", nil))

	names := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = true
	}
	assert.True(t, names[SessionCookieName])
	assert.True(t, names[DefaultCSRFCookieName])
}

func TestRouter_NotFound(t *testing.T) {
	env := newRouterEnv(t, time.Second)

	w := env.serve(browserRequest(http.MethodGet, "/no-such-page", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")

	req := httptest.NewRequest(http.MethodGet, "/no-such-page", nil)
	req.Header.Set("Accept", "application/json")
	w = env.serve(req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestRouter_AnonymousRedirectedToLogin(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	w := env.serve(browserRequest(http.MethodGet, "/history?filter=pending", nil))

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?redirect_uri="+url.QueryEscape("/history?filter=pending"), w.Header().Get("Location"))
}

func TestRouter_EngineerSentToOwnBookings(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.seed(t, domainauth.RoleEngineer)
	env.api.Respond(http.MethodGet, "/troubleshoot/engineer/bookings", []map[string]any{{
		"id":             3,
		"scheduled_time": "2030-01-02T15:04:00",
		"confirmed":      false,
		"problem":        map[string]any{"laptop_brand": "Dell", "laptop_model": "XPS 13", "description": "Fan noise"},
		"user":           map[string]any{"name": "Sam", "email": "sam@example.com"},
	}})

	w := env.serve(browserRequest(http.MethodGet, "/contact", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/engineer/bookings", w.Header().Get("Location"))

	w = env.serve(browserRequest(http.MethodGet, "/engineer/bookings", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, ContainsAll(w.Body.String(), []string{"Dell XPS 13", "Sam", "/engineer/bookings/3/confirm"}))
}

func TestRouter_UserCannotSeeEngineerQueue(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.seed(t, domainauth.RoleUser)

	w := env.serve(browserRequest(http.MethodGet, "/engineer/bookings", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestRouter_PostRequiresCSRF(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.c&password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})

	w := env.serve(req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, env.api.CallCount(http.MethodPost, "/auth/login"))
}

func TestRouter_LoginFlow(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.api.Respond(http.MethodPost, "/auth/login", map[string]any{"access_token": "tok-1", "token_type": "Bearer"})
	env.api.Respond(http.MethodGet, "/auth/me", profile(domainauth.RoleUser))

	form := url.Values{"email": {"eve@example.com"}, "password": {"hunter22"}, RedirectParam: {"/history"}}
	w := env.serve(browserRequest(http.MethodPost, "/login", form))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/history", w.Header().Get("Location"))

	rec, err := env.store.Read(context.Background(), testSessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok-1", rec.Token)

	w = env.serve(browserRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Welcome back, Eve")
}

func TestRouter_LoginRejected(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.api.Fail(http.MethodPost, "/auth/login", mocksauth.StatusErr(http.MethodPost, "/auth/login", http.StatusUnauthorized, "", nil))

	form := url.Values{"email": {"eve@example.com"}, "password": {"wrong"}}
	w := env.serve(browserRequest(http.MethodPost, "/login", form))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `value="eve@example.com"`)
	assert.Zero(t, env.api.CallCount(http.MethodGet, "/auth/me"))

	rec, err := env.store.Read(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRouter_LogoutClearsCredentials(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.seed(t, domainauth.RoleUser)
	env.api.Respond(http.MethodPost, "/auth/logout", nil)

	w := env.serve(browserRequest(http.MethodPost, "/logout", url.Values{}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	rec, err := env.store.Read(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	w = env.serve(browserRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestRouter_HydratingSessionIsNotRedirected(t *testing.T) {
	env := newRouterEnv(t, 20*time.Millisecond)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	rec := domainauth.NewCredentialRecord("stored-token", "Bearer", domainauth.User{ID: "7", Role: domainauth.RoleUser})
	require.NoError(t, env.store.Save(context.Background(), testSessionID, rec))
	env.api.Handle(http.MethodGet, "/auth/me", func(ctx context.Context, _ ports.APIRequest) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return profile(domainauth.RoleUser), nil
	})

	req := browserRequest(http.MethodGet, "/history", nil)
	req.Header.Set("Accept", "application/json")
	w := env.serve(req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Empty(t, w.Header().Get("Location"))

	w = env.serve(browserRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Restoring your session")
}

func TestRouter_DiagnoseFlow(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.api.Respond(http.MethodPost, "/troubleshoot/", map[string]any{
		"id":           12,
		"laptop_brand": "Dell",
		"laptop_model": "XPS 13",
		"description":  "Fan is very loud under light load",
		"steps": []map[string]any{
			{"id": 1, "step_number": 1, "instruction": "Clean the vents"},
		},
	})

	form := url.Values{"laptopBrand": {"Dell"}, "laptopModel": {"XPS 13"}, "description": {"Fan is very loud under light load"}}
	req := browserRequest(http.MethodPost, "/diagnose", form)
	req.Header.Set("Hx-Request", "true")
	w := env.serve(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/diagnose/12", w.Header().Get("Hx-Push-Url"))
	assert.True(t, ContainsAll(w.Body.String(), []string{"Issue with Dell XPS 13", "Clean the vents", "/contact?problem=12"}))
	assert.NotContains(t, w.Body.String(), "<html")

	// The diagnosis is remembered for the browser session.
	w = env.serve(browserRequest(http.MethodGet, "/diagnose", nil))
	assert.Contains(t, w.Body.String(), `href="/diagnose/12"`)
}

func TestRouter_DiagnoseValidation(t *testing.T) {
	env := newRouterEnv(t, time.Second)

	form := url.Values{"laptopBrand": {"Dell"}, "laptopModel": {""}, "description": {"short"}}
	w := env.serve(browserRequest(http.MethodPost, "/diagnose", form))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Laptop model is required")
	assert.Zero(t, env.api.CallCount(http.MethodPost, "/troubleshoot/"))
}

func seedContactOptions(env *routerEnv) {
	env.api.Respond(http.MethodGet, "/troubleshoot/engineers", []map[string]any{
		{"id": 5, "name": "Jo Fixit", "email": "jo@example.com", "service_time": "9-5"},
	})
	env.api.Respond(http.MethodGet, "/troubleshoot/user/problems", []map[string]any{
		{"id": 12, "laptop_brand": "Dell", "laptop_model": "XPS 13", "description": "Fan is very loud", "steps": []any{}},
	})
}

func TestRouter_ContactBookingFlow(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.seed(t, domainauth.RoleUser)
	seedContactOptions(env)
	env.api.Respond(http.MethodPost, "/troubleshoot/bookings", map[string]any{"id": 30, "confirmed": false})

	w := env.serve(browserRequest(http.MethodGet, "/contact?problem=12", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, ContainsAll(w.Body.String(), []string{"Jo Fixit", "Dell XPS 13", `value="12" selected`}))

	scheduled := time.Now().Add(48 * time.Hour).UTC().Format("2006-01-02T15:04")
	form := url.Values{"problemId": {"12"}, "engineerId": {"5"}, "scheduledTime": {scheduled}}
	w = env.serve(browserRequest(http.MethodPost, "/contact", form))

	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/contact?booked=1", w.Header().Get("Location"))

	var booked *troubleshoot.BookingRequest
	for _, c := range env.api.Calls() {
		if c.Method == http.MethodPost && c.Path == "/troubleshoot/bookings" {
			if req, ok := c.Body.(troubleshoot.BookingRequest); ok {
				booked = &req
			}
		}
	}
	require.NotNil(t, booked)
	assert.Equal(t, "12", booked.ProblemID)
	assert.Equal(t, "5", booked.EngineerID)
	assert.Equal(t, time.UTC, booked.ScheduledTime.Location())
}

func TestRouter_ContactRejectsPastTime(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.seed(t, domainauth.RoleUser)
	seedContactOptions(env)

	form := url.Values{"problemId": {"12"}, "engineerId": {"5"}, "scheduledTime": {"2001-01-01T10:00"}}
	w := env.serve(browserRequest(http.MethodPost, "/contact", form))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Scheduled time must be in the future")
	assert.Contains(t, w.Body.String(), "Jo Fixit")
	assert.Zero(t, env.api.CallCount(http.MethodPost, "/troubleshoot/bookings"))
}

func TestRouter_EngineerConfirmsBooking(t *testing.T) {
	env := newRouterEnv(t, time.Second)
	env.seed(t, domainauth.RoleEngineer)
	env.api.Respond(http.MethodPatch, "/troubleshoot/bookings/3/confirm", map[string]any{"id": 3, "confirmed": true})

	form := url.Values{"message": {"See you then"}}
	w := env.serve(browserRequest(http.MethodPost, "/engineer/bookings/3/confirm", form))

	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Location"), "/engineer/bookings")
	assert.Equal(t, 1, env.api.CallCount(http.MethodPatch, "/troubleshoot/bookings/3/confirm"))
}

package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/service"
)

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestUIHandlers_Login_SignedInGoesToLanding(t *testing.T) {
	h := CreateUIHandlersForTest(t, &fakeSessions{session: signedInAs(domainauth.RoleUser)}, nil)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/login?redirect_uri=/history", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/history", w.Header().Get("Location"))
}

func TestUIHandlers_Login_Notices(t *testing.T) {
	h := CreateUIHandlersForTest(t, &fakeSessions{session: domainauth.Session{State: domainauth.StateAnonymous}}, nil)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/login?registered=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), noticeRegistered)

	w = httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodGet, "/login?expired=1&redirect_uri=https://evil.example.com", nil))
	body := w.Body.String()
	assert.Contains(t, body, "Your session has expired")
	assert.NotContains(t, body, "evil.example.com")
}

func TestUIHandlers_LoginSubmit(t *testing.T) {
	t.Run("local validation skips the remote call", func(t *testing.T) {
		called := false
		sessions := &fakeSessions{loginFunc: func(context.Context, string, string, string) service.LoginResult {
			called = true
			return service.LoginResult{}
		}}
		h := CreateUIHandlersForTest(t, sessions, nil)

		w := httptest.NewRecorder()
		h.LoginSubmit(w, postForm("/login", url.Values{"email": {"not-an-email"}}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid email address")
		assert.Contains(t, w.Body.String(), "Password is required")
		assert.False(t, called)
	})

	t.Run("wrong password", func(t *testing.T) {
		sessions := &fakeSessions{loginFunc: func(context.Context, string, string, string) service.LoginResult {
			return service.LoginResult{Error: &service.AuthError{
				Kind:    service.KindInvalidCredentials,
				Message: "Invalid email or password",
				Status:  http.StatusUnauthorized,
			}}
		}}
		h := CreateUIHandlersForTest(t, sessions, nil)

		w := httptest.NewRecorder()
		h.LoginSubmit(w, postForm("/login", url.Values{"email": {"eve@example.com"}, "password": {"nope"}}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid email or password")
		assert.Contains(t, w.Body.String(), `value="eve@example.com"`)
	})

	t.Run("success follows a same-site redirect", func(t *testing.T) {
		var gotEmail string
		sessions := &fakeSessions{loginFunc: func(_ context.Context, _, email, _ string) service.LoginResult {
			gotEmail = email
			return service.LoginResult{Success: true}
		}}
		h := CreateUIHandlersForTest(t, sessions, nil)

		w := httptest.NewRecorder()
		h.LoginSubmit(w, postForm("/login", url.Values{
			"email":       {"  eve@example.com "},
			"password":    {"secret"},
			RedirectParam: {"/contact?problem=4"},
		}))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/contact?problem=4", w.Header().Get("Location"))
		assert.Equal(t, "eve@example.com", gotEmail)
	})

	t.Run("throttled request shows the rate limit message", func(t *testing.T) {
		called := false
		sessions := &fakeSessions{loginFunc: func(context.Context, string, string, string) service.LoginResult {
			called = true
			return service.LoginResult{Success: true}
		}}
		h := CreateUIHandlersForTest(t, sessions, nil)
		limiter := NewLoginLimiter(LoginLimiterConfig{RPS: 0.0001, Burst: 1})
		handler := LoginRateLimit(limiter)(http.HandlerFunc(h.LoginSubmit))

		form := url.Values{"email": {"eve@example.com"}, "password": {"secret"}}
		first := httptest.NewRecorder()
		handler.ServeHTTP(first, postForm("/login", form))
		require.Equal(t, http.StatusSeeOther, first.Code)

		called = false
		second := httptest.NewRecorder()
		handler.ServeHTTP(second, postForm("/login", form))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Contains(t, second.Body.String(), "Too many login attempts")
		assert.False(t, called)
	})
}

func TestUIHandlers_RegisterSubmit(t *testing.T) {
	valid := url.Values{
		"name":            {"Eve Tester"},
		"email":           {"eve@example.com"},
		"password":        {"correct horse"},
		"confirmPassword": {"correct horse"},
	}

	t.Run("success redirects to sign in with the default role", func(t *testing.T) {
		var got service.RegisterInput
		sessions := &fakeSessions{registerFn: func(_ context.Context, _ string, in service.RegisterInput) service.RegisterResult {
			got = in
			return service.RegisterResult{Success: true}
		}}
		h := CreateUIHandlersForTest(t, sessions, nil)

		w := httptest.NewRecorder()
		h.RegisterSubmit(w, postForm("/register", valid))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login?registered=1", w.Header().Get("Location"))
		assert.Equal(t, domainauth.RoleUser, got.Role)
		assert.Equal(t, "Eve Tester", got.Name)
	})

	t.Run("mismatched passwords and admin role are rejected", func(t *testing.T) {
		h := CreateUIHandlersForTest(t, &fakeSessions{}, nil)
		form := url.Values{
			"name":            {"Eve Tester"},
			"email":           {"eve@example.com"},
			"password":        {"correct horse"},
			"confirmPassword": {"battery staple"},
			"role":            {"admin"},
		}

		w := httptest.NewRecorder()
		h.RegisterSubmit(w, postForm("/register", form))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "Passwords don&#39;t match")
		assert.Contains(t, body, `class="field-error"`)
	})

	t.Run("duplicate email surfaces the field error", func(t *testing.T) {
		sessions := &fakeSessions{registerFn: func(context.Context, string, service.RegisterInput) service.RegisterResult {
			return service.RegisterResult{Error: &service.AuthError{
				Kind:        service.KindValidation,
				Message:     service.MsgFixErrors,
				FieldErrors: map[string]string{"email": "already registered"},
				Status:      http.StatusBadRequest,
			}}
		}}
		h := CreateUIHandlersForTest(t, sessions, nil)

		w := httptest.NewRecorder()
		h.RegisterSubmit(w, postForm("/register", valid))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "already registered")
		assert.Contains(t, w.Body.String(), `value="Eve Tester"`)
	})
}

package httpx

import (
	"net/http"
	"strings"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/http/validation"
	"github.com/target/laptopdoc/internal/ports"
	"github.com/target/laptopdoc/internal/service"
)

const noticeRegistered = "Account created. Please sign in."

// registerRoles are the roles a visitor may pick for themselves.
var registerRoles = []string{string(domainauth.RoleUser), string(domainauth.RoleEngineer)} //nolint:gochecknoglobals // read-only

func loginMeta() PageMeta {
	return PageMeta{Title: "Sign in - LaptopDoc", PageTitle: "Sign in", CurrentPage: PageLogin}
}

func registerMeta() PageMeta {
	return PageMeta{Title: "Create account - LaptopDoc", PageTitle: "Create account", CurrentPage: PageRegister}
}

// signedIn settles hydration and reports whether the visitor already has a session.
func (h *UIHandlers) signedIn(r *http.Request) bool {
	sess := h.Sessions.AwaitHydration(r.Context(), SessionID(r), h.HydrationWait)
	return sess.State == domainauth.StateAuthenticated && sess.IsAuthenticated()
}

// postLoginTarget returns the safe redirect_uri carried by the form, else the landing page.
func (h *UIHandlers) postLoginTarget(raw string) string {
	if p := safeRedirectPath(raw); p != "" && p != h.loginPath() {
		return p
	}
	return h.landingPath()
}

// Login renders the sign-in form. Signed-in visitors go straight on.
// GET /login.
func (h *UIHandlers) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.signedIn(r) {
		Redirect(w, r, h.postLoginTarget(q.Get(RedirectParam)))
		return
	}

	b := NewTemplateData(r, loginMeta()).
		With("RedirectURI", safeRedirectPath(q.Get(RedirectParam)))
	switch {
	case q.Get("registered") == "1":
		b.WithNotice(noticeRegistered)
	case q.Get("expired") == "1":
		b.WithNotice(service.MsgSessionExpired)
	}
	h.renderPage(w, r, http.StatusOK, b.Build())
}

// LoginSubmit signs the browser session in.
// POST /login.
func (h *UIHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	redirect := safeRedirectPath(r.PostFormValue(RedirectParam))
	opts := ErrorOpts{
		W:        w,
		R:        r,
		Renderer: h.renderPage,
		PageMeta: loginMeta(),
		Data: map[string]any{
			"Form":        map[string]string{"email": email},
			"RedirectURI": redirect,
		},
	}

	if isRateLimited(r) {
		limited := service.ClassifyError(service.OpLogin,
			ports.NewStatusError(http.MethodPost, "/auth/login", http.StatusTooManyRequests, false))
		opts.Err = &limited
		RenderError(opts)
		return
	}

	v := validation.New().
		Validate("email", email, validation.Email()).
		Validate("password", password, validation.Required("Password", 0))
	if !v.Valid() {
		opts.FieldErrors = v.Errors()
		RenderError(opts)
		return
	}

	res := h.Sessions.Login(r.Context(), SessionID(r), email, password)
	if !res.Success {
		opts.Err = res.Error
		RenderError(opts)
		return
	}
	Redirect(w, r, h.postLoginTarget(redirect))
}

// Register renders the account creation form.
// GET /register.
func (h *UIHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if h.signedIn(r) {
		Redirect(w, r, h.landingPath())
		return
	}
	data := NewTemplateData(r, registerMeta()).
		WithForm(map[string]string{"role": string(domainauth.RoleUser)}).
		With("Roles", registerRoles).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// RegisterSubmit creates an account and sends the visitor to sign in.
// POST /register.
func (h *UIHandlers) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := service.RegisterInput{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	confirm := r.PostFormValue("confirmPassword")
	rawRole := strings.ToLower(strings.TrimSpace(r.PostFormValue("role")))
	if rawRole == "" {
		rawRole = string(domainauth.RoleUser)
	}

	v := validation.New().
		Validate("name", in.Name, validation.Required("Name", 100), validation.MinLength("Name", 2)).
		Validate("email", in.Email, validation.Email()).
		Validate("password", in.Password, validation.MinLength("Password", 8)).
		Validate("confirmPassword", confirm, validation.Equals(in.Password, "Passwords don't match")).
		Validate("role", rawRole, validation.OneOf("Role", registerRoles))

	opts := ErrorOpts{
		W:        w,
		R:        r,
		Renderer: h.renderPage,
		PageMeta: registerMeta(),
		Data: map[string]any{
			"Form":  map[string]string{"name": in.Name, "email": in.Email, "role": rawRole},
			"Roles": registerRoles,
		},
	}
	if !v.Valid() {
		opts.FieldErrors = v.Errors()
		RenderError(opts)
		return
	}
	in.Role, _ = domainauth.ParseRole(rawRole)

	res := h.Sessions.Register(r.Context(), SessionID(r), in)
	if !res.Success {
		opts.Err = res.Error
		RenderError(opts)
		return
	}
	Redirect(w, r, h.loginPath()+"?registered=1")
}

package httpx

import (
	"bytes"
	"context"
	"html"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/domain/troubleshoot"
	"github.com/target/laptopdoc/internal/http/ui/viewmodel"
	"github.com/target/laptopdoc/internal/observability/metrics"
	"github.com/target/laptopdoc/internal/service"
)

// SessionService is the session lifecycle the HTTP layer depends on.
type SessionService interface {
	Hydrate(ctx context.Context, sid string) domainauth.Session
	AwaitHydration(ctx context.Context, sid string, wait time.Duration) domainauth.Session
	Session(sid string) domainauth.Session
	Login(ctx context.Context, sid, email, password string) service.LoginResult
	Register(ctx context.Context, sid string, in service.RegisterInput) service.RegisterResult
	Logout(ctx context.Context, sid string) string
	RefreshUser(ctx context.Context, sid string) error
}

// TroubleshootService is the diagnosis and booking surface used by the pages.
type TroubleshootService interface {
	Diagnose(ctx context.Context, sid string, in service.DiagnosisInput) (troubleshoot.Diagnosis, error)
	Get(ctx context.Context, id string) (troubleshoot.Diagnosis, error)
	ListProblems(ctx context.Context) ([]troubleshoot.Problem, error)
	LoadContact(ctx context.Context) (service.ContactData, error)
	CreateBooking(ctx context.Context, in service.BookingInput) (troubleshoot.Booking, error)
	EngineerBookings(ctx context.Context) ([]troubleshoot.Booking, error)
	ConfirmBooking(ctx context.Context, id, message string) (troubleshoot.Booking, error)
	Recent(ctx context.Context, sid string) []troubleshoot.RecentDiagnosis
}

// Compile-time interface assertions to ensure concrete services satisfy their UI interfaces.
var (
	_ SessionService      = (*service.SessionManager)(nil)
	_ TroubleshootService = (*service.TroubleshootService)(nil)
)

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	T            *TemplateRenderer
	Sessions     SessionService
	Troubleshoot TroubleshootService
	Metrics      *metrics.Metrics
	IsDev        bool // Development mode flag for enhanced error reporting

	HydrationWait time.Duration
	LoginPath     string
	LandingPath   string
	// Location interprets datetime-local booking input. Defaults to UTC.
	Location *time.Location
	Logger   *slog.Logger
}

// logger returns the configured logger or falls back to slog.Default().
func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *UIHandlers) loginPath() string {
	if h.LoginPath != "" {
		return h.LoginPath
	}
	return domainauth.DefaultLoginPath
}

func (h *UIHandlers) landingPath() string {
	if h.LandingPath != "" {
		return h.LandingPath
	}
	return domainauth.DefaultLandingPath
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

// buildLayout constructs shared layout metadata from the request/session context.
func buildLayout(r *http.Request, meta PageMeta) viewmodel.Layout {
	layout := viewmodel.Layout{
		Title:       meta.Title,
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
		CSRFToken:   GetCSRFToken(r),
	}

	if user := CurrentUser(r); user != nil {
		layout.User = &viewmodel.User{
			Name:  user.Name,
			Email: user.Email,
			Role:  string(user.Role),
		}
		layout.IsAuthenticated = true
		layout.IsAdmin = user.Role == domainauth.RoleAdmin
		layout.IsEngineer = user.HasRole(domainauth.RoleEngineer, domainauth.RoleAdmin)
		layout.CanBook = user.HasRole(domainauth.RoleUser, domainauth.RoleAdmin)
	}

	return layout
}

// basePageData constructs the common page data map with user context.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	layout := buildLayout(r, meta)
	data := map[string]any{
		"Title":           layout.Title,
		"PageTitle":       layout.PageTitle,
		"CurrentPage":     layout.CurrentPage,
		"IsAuthenticated": layout.IsAuthenticated,
		"IsAdmin":         layout.IsAdmin,
		"IsEngineer":      layout.IsEngineer,
		"CanBook":         layout.CanBook,
		"CSRFToken":       layout.CSRFToken,
	}
	if layout.User != nil {
		data["User"] = layout.User
	}
	return data
}

// renderPage renders a full page, or the content fragment for htmx swaps.
// A non-zero status is written before the body.
func (h *UIHandlers) renderPage(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if h.T == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}
	if status == 0 {
		status = http.StatusOK
	}

	if !WantsPartial(r) {
		h.writeRendered(w, r, status, "layout", data)
		return
	}

	// Hint client JS to update nav active state based on current path
	SetHXTrigger(w, "nav:activate", map[string]string{"path": r.URL.Path})
	title, _ := data["Title"].(string)
	pageTitle, _ := data["PageTitle"].(string)

	// Include a <title> element so htmx updates document.title on partial swaps,
	// plus an out-of-band update for the header title.
	prefix := `<title>` + html.EscapeString(title) + `</title>` +
		`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` + html.EscapeString(pageTitle) + `</h1>`
	h.writeRendered(w, r, status, "content", data, prefix)
}

// writeRendered renders into a buffer first so template errors never leave a half-written page.
func (h *UIHandlers) writeRendered(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	name string,
	data any,
	prefix ...string,
) {
	var buf bytes.Buffer
	for _, p := range prefix {
		buf.WriteString(p)
	}
	if err := h.T.ExecuteTemplate(&buf, name, data); err != nil {
		h.logAndRenderTemplateError(w, r, err, name)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger().Error("failed to write page", "error", err, "template", name)
	}
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		if _, writeErr := w.Write([]byte(`<div class="dev-error"><h2>Template Rendering Error</h2>` +
			`<p><strong>Context:</strong> ` + html.EscapeString(context) + `</p>` +
			`<p><strong>Path:</strong> ` + html.EscapeString(r.URL.Path) + `</p>` +
			`<pre>` + html.EscapeString(err.Error()) + `</pre></div>`)); writeErr != nil {
			h.logger().Error("failed to write template error response", "error", writeErr)
		}
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}

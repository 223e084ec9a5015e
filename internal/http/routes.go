package httpx

import (
	"bytes"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	laptopdoc "github.com/target/laptopdoc"
	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/observability/metrics"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions     SessionService
	Troubleshoot TroubleshootService
	Metrics      *metrics.Metrics // Optional: nil disables /metrics and request counters
	MetricsPath  string
	Limiter      *LoginLimiter // Optional: nil disables login throttling

	// Cookies
	CookieDomain  string
	SecureCookies bool
	SessionTTL    time.Duration

	// Session routing
	HydrationWait time.Duration
	LoginPath     string
	LandingPath   string

	// Compression
	CompressionEnabled bool
	CompressionLevel   int

	// Location interprets booking times entered in the browser.
	Location *time.Location
	IsDev    bool         // Development mode flag for hot reloading, etc.
	Logger   *slog.Logger // Logger for template and HTTP errors (optional)
}

func (s RouterServices) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NewRouter creates and configures the HTTP router with the browser middleware chain.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()
	if services.LoginPath == "" {
		services.LoginPath = domainauth.DefaultLoginPath
	}
	if services.LandingPath == "" {
		services.LandingPath = domainauth.DefaultLandingPath
	}

	uiHandlers := setupUIHandlers(services)
	authHandlers := &AuthHandlers{
		Sessions:      services.Sessions,
		CookieDomain:  services.CookieDomain,
		SecureCookies: services.SecureCookies,
		HydrationWait: services.HydrationWait,
		LoginPath:     services.LoginPath,
		LandingPath:   services.LandingPath,
		Logger:        services.Logger,
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.Metrics.Handler())
	}

	// Static assets at /static
	// Dev mode: serve from disk for hot reloading
	// Prod mode: serve from embedded FS
	mux.Handle("GET /static/", staticHandler(services.IsDev, services.logger()))

	registerAuthRoutes(mux, authHandlers)
	if uiHandlers != nil {
		registerUIRoutes(mux, uiHandlers, newGuards(services, uiHandlers))
	}

	var handler http.Handler = &notFoundHandler{mux: mux, uiHandlers: uiHandlers}
	handler = SessionCookie(SessionCookieConfig{
		Sessions: services.Sessions,
		Domain:   services.CookieDomain,
		Secure:   services.SecureCookies,
		MaxAge:   services.SessionTTL,
	})(handler)
	handler = CSRFProtection(CSRFConfig{
		CookieDomain: services.CookieDomain,
		Secure:       services.SecureCookies,
	})(handler)
	handler = BrowserDetection()(handler)
	if services.CompressionEnabled {
		handler = Compression(CompressionConfig{Level: services.CompressionLevel, Logger: services.Logger})(handler)
	}
	handler = Logging(services.logger(), services.Metrics)(handler)
	return Recover(services.logger())(handler)
}

// setupUIHandlers creates UI handlers with the template renderer.
// In dev mode (services.IsDev=true), templates are loaded from disk for hot reloading.
// In production mode (services.IsDev=false), templates are loaded from embedded FS.
func setupUIHandlers(services RouterServices) *UIHandlers {
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS(services.IsDev),
		DevMode:    services.IsDev,
		Logger:     services.Logger,
	})
	if err != nil {
		services.logger().Error("failed to create template renderer", slog.Any("error", err))
		return nil
	}

	return &UIHandlers{
		T:             tr,
		Sessions:      services.Sessions,
		Troubleshoot:  services.Troubleshoot,
		Metrics:       services.Metrics,
		IsDev:         services.IsDev,
		HydrationWait: services.HydrationWait,
		LoginPath:     services.LoginPath,
		LandingPath:   services.LandingPath,
		Location:      services.Location,
		Logger:        services.Logger,
	}
}

func templateFS(isDev bool) fs.FS {
	if isDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	sub, err := fs.Sub(laptopdoc.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		log.Printf("failed to create sub-filesystem for templates: %v; falling back to disk", err)
		return os.DirFS(TemplatePathFromRoot)
	}
	return sub
}

// staticHandler serves /static/* assets from disk in dev mode and from the
// embedded FS otherwise.
func staticHandler(isDev bool, logger *slog.Logger) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), isDev)
	}

	staticSub, err := fs.Sub(laptopdoc.StaticFS, "frontend/static")
	if err != nil {
		logger.Error("failed to create sub-filesystem for static assets", slog.Any("error", err))
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))), isDev)
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))), isDev)
}

// staticWithCacheHeaders disables caching in dev mode and lets browsers
// revalidate embedded assets otherwise.
func staticWithCacheHeaders(handler http.Handler, isDev bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isDev {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		handler.ServeHTTP(w, r)
	})
}

// notFoundHandler wraps a ServeMux and provides custom 404 handling.
type notFoundHandler struct {
	mux        *http.ServeMux
	uiHandlers *UIHandlers
}

// ServeHTTP implements http.Handler and provides custom 404 handling.
func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cw := newCaptureWriter(w)
	// Serve the request through the mux, capturing status, headers, and body
	h.mux.ServeHTTP(cw, r)

	// Only the mux's own "404 page not found" is replaced; handlers that
	// chose a 404 keep their body.
	if cw.status == http.StatusNotFound && cw.header.Get("X-Content-Type-Options") == "nosniff" &&
		strings.HasPrefix(cw.header.Get("Content-Type"), "text/plain") {
		// For missing static assets, preserve the default file server response
		if strings.HasPrefix(r.URL.Path, "/static/") {
			cw.flushTo(w)
			return
		}
		if h.uiHandlers != nil {
			h.uiHandlers.NotFound(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	cw.flushTo(w)
}

// captureWriter buffers headers, status and body so we can decide post-dispatch.
type captureWriter struct {
	rw     http.ResponseWriter
	header http.Header
	status int
	buf    bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{rw: w, header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header         { return c.header }
func (c *captureWriter) WriteHeader(code int)        { c.status = code }
func (c *captureWriter) Write(b []byte) (int, error) { return c.buf.Write(b) }

func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range c.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	if _, err := w.Write(c.buf.Bytes()); err != nil {
		log.Printf("failed to write captured response: %v", err)
	}
}

// guards bundles the role wrappers routes are registered with.
type guards struct {
	signedIn func(http.Handler) http.Handler
	booking  func(http.Handler) http.Handler
	engineer func(http.Handler) http.Handler
	login    func(http.Handler) http.Handler
}

func newGuards(services RouterServices, ui *UIHandlers) guards {
	cfg := GuardConfig{
		Sessions:      services.Sessions,
		HydrationWait: services.HydrationWait,
		LoginPath:     services.LoginPath,
		LandingPath:   services.LandingPath,
		Loading:       http.HandlerFunc(ui.Loading),
	}
	// Engineers cannot book, so they land on their own bookings instead of
	// bouncing between the landing page and /contact.
	bookingCfg := cfg
	bookingCfg.LandingPath = "/engineer/bookings"

	return guards{
		signedIn: RequireRoles(cfg),
		booking:  RequireRoles(bookingCfg, domainauth.RoleUser, domainauth.RoleAdmin),
		engineer: RequireRoles(cfg, domainauth.RoleEngineer, domainauth.RoleAdmin),
		login:    LoginRateLimit(services.Limiter),
	}
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	mux.HandleFunc("POST /logout", h.Logout)
}

// registerUIRoutes delegates to per-area UI route registration functions.
func registerUIRoutes(mux *http.ServeMux, h *UIHandlers, g guards) {
	registerUIPublicRoutes(mux, h)
	registerUIAccountRoutes(mux, h, g)
	registerUIDiagnoseRoutes(mux, h)
	registerUIBookingRoutes(mux, h, g)
}

// registerUIPublicRoutes wires the marketing pages.
func registerUIPublicRoutes(mux *http.ServeMux, h *UIHandlers) {
	mux.HandleFunc("GET /", h.Home)
	mux.HandleFunc("GET /about", h.About)
	mux.HandleFunc("GET /common-issues", h.CommonIssues)
}

// registerUIAccountRoutes wires sign in, registration and the signed-in overview pages.
func registerUIAccountRoutes(mux *http.ServeMux, h *UIHandlers, g guards) {
	mux.HandleFunc("GET /login", h.Login)
	mux.Handle("POST /login", g.login(http.HandlerFunc(h.LoginSubmit)))
	mux.HandleFunc("GET /register", h.Register)
	mux.HandleFunc("POST /register", h.RegisterSubmit)

	mux.Handle("GET /dashboard", g.signedIn(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /history", g.signedIn(http.HandlerFunc(h.History)))
}

// registerUIDiagnoseRoutes wires the diagnosis flow, open to anonymous visitors.
func registerUIDiagnoseRoutes(mux *http.ServeMux, h *UIHandlers) {
	mux.HandleFunc("GET /diagnose", h.Diagnose)
	mux.HandleFunc("POST /diagnose", h.DiagnoseSubmit)
	mux.HandleFunc("GET /diagnose/{id}", h.DiagnosisView)
}

// registerUIBookingRoutes wires customer booking and the engineer queue.
func registerUIBookingRoutes(mux *http.ServeMux, h *UIHandlers, g guards) {
	mux.Handle("GET /contact", g.booking(http.HandlerFunc(h.Contact)))
	mux.Handle("POST /contact", g.booking(http.HandlerFunc(h.ContactSubmit)))

	mux.Handle("GET /engineer/bookings", g.engineer(http.HandlerFunc(h.EngineerBookings)))
	mux.Handle("POST /engineer/bookings/{id}/confirm", g.engineer(http.HandlerFunc(h.ConfirmBooking)))
}

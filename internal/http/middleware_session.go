package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

// SessionCookieConfig configures SessionCookie.
type SessionCookieConfig struct {
	Sessions SessionService
	Domain   string
	Secure   bool
	MaxAge   time.Duration
}

// SessionCookie assigns every browser a session id cookie, binds it to the
// request context and starts hydration. The snapshot it attaches may still
// be hydrating; guarded routes settle it in RequireRoles.
func SessionCookie(cfg SessionCookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := sessionIDFromCookie(r)
			if sid == "" {
				sid = uuid.NewString()
				cookie := &http.Cookie{
					Name:     SessionCookieName,
					Value:    sid,
					Path:     "/",
					Domain:   cfg.Domain,
					HttpOnly: true,
					Secure:   cfg.Secure || requestIsSecure(r),
					SameSite: http.SameSiteLaxMode,
				}
				if cfg.MaxAge > 0 {
					cookie.MaxAge = int(cfg.MaxAge.Seconds())
				}
				http.SetCookie(w, cookie)
			}

			ctx := domainauth.WithSessionID(r.Context(), sid)
			sess := cfg.Sessions.Hydrate(ctx, sid)
			ctx = SetSessionInContext(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionIDFromCookie(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// GuardConfig configures RequireRoles.
type GuardConfig struct {
	Sessions      SessionService
	HydrationWait time.Duration
	LoginPath     string
	LandingPath   string
	// Loading renders the placeholder shown while a session is still hydrating.
	Loading http.Handler
}

const loadingRetryAfter = 1 // seconds

var (
	errAuthRequired  = errors.New("authentication required")
	errForbiddenRole = errors.New("your role does not have access to this page")
	errSessionLoad   = errors.New("session is still loading, retry shortly")
)

// RequireRoles guards a route. With no roles every signed-in role may pass.
// A hydrating session is awaited for HydrationWait; if it is still pending
// the visitor gets the loading placeholder rather than a redirect.
func RequireRoles(cfg GuardConfig, roles ...domainauth.Role) func(http.Handler) http.Handler {
	policy := domainauth.GuardPolicy{
		AllowedRoles: roles,
		LoginPath:    cfg.LoginPath,
		LandingPath:  cfg.LandingPath,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := SessionID(r)
			sess := cfg.Sessions.AwaitHydration(r.Context(), sid, cfg.HydrationWait)
			decision := policy.Decide(sess)

			switch decision.Verdict {
			case domainauth.VerdictRender:
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
			case domainauth.VerdictRedirectLogin:
				redirectToLogin(w, r, decision.Location, false)
			case domainauth.VerdictRedirectLanding:
				if !IsBrowserRequest(r) {
					WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "forbidden", Err: errForbiddenRole})
					return
				}
				Redirect(w, r, decision.Location)
			default:
				renderLoading(w, r, cfg.Loading)
			}
		})
	}
}

// redirectToLogin sends browsers to the login page carrying the current path
// and answers API clients with 401.
func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string, expired bool) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errAuthRequired})
		return
	}
	if loginPath == "" {
		loginPath = domainauth.DefaultLoginPath
	}
	q := url.Values{}
	target := r.URL.Path
	if r.Method == http.MethodGet {
		target = r.URL.RequestURI()
	}
	if p := safeRedirectPath(target); p != "" && p != loginPath {
		q.Set(RedirectParam, p)
	}
	if expired {
		q.Set("expired", "1")
	}
	loc := loginPath
	if enc := q.Encode(); enc != "" {
		loc += "?" + enc
	}
	Redirect(w, r, loc)
}

func renderLoading(w http.ResponseWriter, r *http.Request, loading http.Handler) {
	w.Header().Set("Cache-Control", "no-store")
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:       http.StatusServiceUnavailable,
			ErrCode:    "session_loading",
			Err:        errSessionLoad,
			RetryAfter: loadingRetryAfter,
		})
		return
	}
	if loading != nil {
		loading.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", strconv.Itoa(loadingRetryAfter))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html><title>Loading</title><p>Loading your session…</p>`))
}

package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/service"
)

// AuthHandlers serves the session endpoints used by scripts and htmx.
type AuthHandlers struct {
	Sessions      SessionService
	CookieDomain  string
	SecureCookies bool
	HydrationWait time.Duration
	LoginPath     string
	LandingPath   string
	Logger        *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// userJSON is the public shape of a signed-in user.
type userJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserJSON(u *domainauth.User) *userJSON {
	if u == nil {
		return nil
	}
	return &userJSON{ID: string(u.ID), Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

type statusResponse struct {
	Authenticated bool      `json:"authenticated"`
	State         string    `json:"state"`
	IsLoading     bool      `json:"isLoading"`
	User          *userJSON `json:"user,omitempty"`
}

// Status returns the current session state.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sess := h.Sessions.AwaitHydration(r.Context(), SessionID(r), h.HydrationWait)
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, statusResponse{
		Authenticated: sess.IsAuthenticated() && sess.State == domainauth.StateAuthenticated,
		State:         sess.State.String(),
		IsLoading:     sess.IsLoading,
		User:          toUserJSON(sess.User),
	})
}

// Refresh re-fetches the signed-in user's profile.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	sid := SessionID(r)
	if err := h.Sessions.RefreshUser(r.Context(), sid); err != nil {
		h.logger().InfoContext(r.Context(), "profile refresh failed",
			"session", domainauth.ShortID(sid),
			"error", err)
		if IsBrowserRequest(r) {
			redirectToLogin(w, r, h.LoginPath, !errors.Is(err, service.ErrNoSession))
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "session_expired", Err: errors.New(service.MsgSessionExpired)})
		return
	}

	sess := h.Sessions.Session(sid)
	if IsBrowserRequest(r) && !IsHTMX(r) {
		dest := safeRedirectPath(r.FormValue(RedirectParam))
		if dest == "" {
			dest = h.LandingPath
		}
		if dest == "" {
			dest = domainauth.DefaultLandingPath
		}
		Redirect(w, r, dest)
		return
	}
	WriteJSON(w, http.StatusOK, statusResponse{
		Authenticated: true,
		State:         sess.State.String(),
		User:          toUserJSON(sess.User),
	})
}

// Logout clears stored credentials and rotates the browser session id.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	next := h.Sessions.Logout(r.Context(), SessionID(r))
	h.clearSessionCookie(w, r)

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": next,
		})
		return
	}
	Redirect(w, r, next)
}

// clearSessionCookie expires the sid cookie, mirroring the attributes it was set with.
func (h *AuthHandlers) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   h.SecureCookies || requestIsSecure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

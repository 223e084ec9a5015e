package httpx

import (
	"errors"
	"net/http"
	"strconv"
)

// NotFound handles 404 errors with auth-aware behavior.
// For browser requests, it renders an HTML error page.
// For API requests, it returns a JSON error response.
func (h *UIHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "not_found",
			Err:     errors.New("not found"),
		})
		return
	}

	if h.T == nil {
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}
	data := NewTemplateData(r, PageMeta{Title: "Page Not Found - LaptopDoc", PageTitle: "Page not found"}).
		With("Code", "404").
		With("Message", "The page you're looking for doesn't exist.").
		Build()
	data["ShowLogin"] = data["IsAuthenticated"] != true
	data["RedirectURI"] = safeRedirectPath(r.URL.RequestURI())
	h.writeRendered(w, r, http.StatusNotFound, "error-layout", data)
}

// Loading renders the placeholder shown while a session is hydrating. The
// page reloads itself, and htmx clients poll the same URL.
func (h *UIHandlers) Loading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", strconv.Itoa(loadingRetryAfter))
	data := NewTemplateData(r, PageMeta{Title: "Loading - LaptopDoc", PageTitle: "Loading", CurrentPage: PageLoading}).
		With("RetryURL", safeRedirectPath(r.URL.RequestURI())).
		With("RetryAfter", loadingRetryAfter).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

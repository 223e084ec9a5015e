package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// WriteJSON encodes v with status code. Every JSON answer here depends on the
// caller's session, so none of them may be cached.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}

// errorBody is the shape of every JSON failure.
type errorBody struct {
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// ErrorParams describes a JSON failure for API clients.
type ErrorParams struct {
	Code        int
	ErrCode     string
	Err         error
	FieldErrors map[string]string
	// RetryAfter sets the Retry-After header in seconds when positive.
	RetryAfter int
}

// WriteError writes p as an errorBody. A nil Err falls back to the status text.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	msg := http.StatusText(p.Code)
	if p.Err != nil {
		msg = p.Err.Error()
	}
	if p.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(p.RetryAfter))
	}
	WriteJSON(w, p.Code, errorBody{Error: p.ErrCode, Message: msg, FieldErrors: p.FieldErrors})
}

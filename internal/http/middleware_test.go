package httpx

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/laptopdoc/internal/observability/metrics"
)

func TestBrowserDetection(t *testing.T) {
	handler := BrowserDetection()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsBrowserRequest(r) {
			w.Header().Set("Content-Type", "text/html")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
	}))

	tests := []struct {
		name            string
		path            string
		accept          string
		htmx            bool
		expectedBrowser bool
	}{
		{name: "API route with JSON accept", path: "/api/status", accept: "application/json"},
		{name: "API route with HTML accept", path: "/api/status", accept: "text/html"},
		{name: "static asset", path: "/static/css/app.css", accept: "text/css"},
		{name: "JSON client on page route", path: "/auth/status", accept: "application/json"},
		{
			name:            "browser navigation",
			path:            "/dashboard",
			accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			expectedBrowser: true,
		},
		{name: "HTMX request", path: "/history", accept: "*/*", htmx: true, expectedBrowser: true},
		{name: "no accept header", path: "/dashboard", expectedBrowser: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.htmx {
				req.Header.Set("Hx-Request", "true")
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			want := "application/json"
			if tt.expectedBrowser {
				want = "text/html"
			}
			assert.Equal(t, want, w.Header().Get("Content-Type"))
		})
	}
}

func textHandler(contentType, body string, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func TestCompression(t *testing.T) {
	body := strings.Repeat("laptop diagnosis ", 100)

	tests := []struct {
		name           string
		method         string
		acceptEncoding string
		contentType    string
		status         int
		wantGzip       bool
	}{
		{name: "html gzipped", method: http.MethodGet, acceptEncoding: "gzip, deflate", contentType: "text/html; charset=utf-8", status: http.StatusOK, wantGzip: true},
		{name: "json gzipped", method: http.MethodGet, acceptEncoding: "gzip", contentType: "application/json", status: http.StatusOK, wantGzip: true},
		{name: "no accept encoding", method: http.MethodGet, contentType: "text/html", status: http.StatusOK},
		{name: "gzip disabled by q=0", method: http.MethodGet, acceptEncoding: "gzip;q=0, br", contentType: "text/html", status: http.StatusOK},
		{name: "binary not compressed", method: http.MethodGet, acceptEncoding: "gzip", contentType: "image/png", status: http.StatusOK},
		{name: "not modified untouched", method: http.MethodGet, acceptEncoding: "gzip", contentType: "text/html", status: http.StatusNotModified},
		{name: "HEAD untouched", method: http.MethodHead, acceptEncoding: "gzip", contentType: "text/html", status: http.StatusOK},
		{name: "error page gzipped", method: http.MethodGet, acceptEncoding: "gzip", contentType: "text/html", status: http.StatusNotFound, wantGzip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compression(CompressionConfig{Level: 6})(textHandler(tt.contentType, body, tt.status))
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if !tt.wantGzip {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				return
			}
			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")
			zr, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			plain, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Equal(t, body, string(plain))
		})
	}
}

func TestCompression_DetectsContentTypeAndKeepsExistingEncoding(t *testing.T) {
	h := Compression(CompressionConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<!doctype html><html><body>hello</body></html>")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	pre := Compression(CompressionConfig{Level: 6})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		_, _ = io.WriteString(w, "already encoded")
	}))
	w2 := httptest.NewRecorder()
	pre.ServeHTTP(w2, req)
	assert.Equal(t, "br", w2.Header().Get("Content-Encoding"))
	assert.Equal(t, "already encoded", w2.Body.String())
}

func TestLogging_RecordsStatusAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := metrics.New("test")

	h := Logging(logger, m)(textHandler("text/plain", "nope", http.StatusTeapot))
	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "0123456789abcdef"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/brew"`)
	assert.Contains(t, out, `"session":"01234567"`)
	assert.NotContains(t, out, "0123456789abcdef")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{code="418",method="GET"} 1`)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "boom")
}

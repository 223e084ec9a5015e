package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiterConfig configures a LoginLimiter.
type LoginLimiterConfig struct {
	RPS   float64
	Burst int
	// TTL evicts clients that have not attempted a login for this long.
	TTL time.Duration
	// TrustProxy reads the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	Logger     *slog.Logger
}

type loginVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles login attempts with one token bucket per client IP.
type LoginLimiter struct {
	cfg LoginLimiterConfig
	now func() time.Time

	mu       sync.Mutex
	visitors map[string]*loginVisitor
}

// NewLoginLimiter constructs a LoginLimiter. Call Run to evict idle clients.
func NewLoginLimiter(cfg LoginLimiterConfig) *LoginLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LoginLimiter{
		cfg:      cfg,
		now:      time.Now,
		visitors: make(map[string]*loginVisitor),
	}
}

// Allow consumes one token for ip.
func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &loginVisitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup evicts clients idle for longer than the TTL and returns how many went.
func (l *LoginLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.TTL {
			delete(l.visitors, ip)
			n++
		}
	}
	return n
}

// Run evicts idle clients every TTL until ctx is done.
func (l *LoginLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.TTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

func (l *LoginLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

type rateLimitedKey struct{}

// LoginRateLimit marks POST requests that exceed the client's budget. The
// login handler answers marked requests itself so the form can show the
// message inline; the remote API is never called for them. A nil limiter
// disables throttling.
func LoginRateLimit(l *LoginLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				ip := clientIP(r, l.cfg.TrustProxy)
				if !l.Allow(ip) {
					l.cfg.Logger.WarnContext(r.Context(), "login rate limit exceeded",
						slog.String("ip", ip),
						slog.String("path", r.URL.Path))
					r = r.WithContext(context.WithValue(r.Context(), rateLimitedKey{}, true))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isRateLimited reports whether LoginRateLimit rejected this request.
func isRateLimited(r *http.Request) bool {
	limited, _ := r.Context().Value(rateLimitedKey{}).(bool)
	return limited
}

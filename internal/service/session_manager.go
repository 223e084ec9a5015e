package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/observability/metrics"
	"github.com/target/laptopdoc/internal/ports"
)

// ErrNoSession is returned when an operation needs stored credentials and there are none.
var ErrNoSession = errors.New("no stored credentials")

const (
	defaultProfilePath     = "/auth/me"
	defaultValidateTimeout = 10 * time.Second
	defaultPublicPath      = "/"
)

// Remote endpoints used by the session manager.
const (
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
	pathLogout   = "/auth/logout"
)

// Transition describes one session state change delivered to observers.
type Transition struct {
	SessionID string
	From      domainauth.State
	To        domainauth.State
	Session   domainauth.Session
	Reason    string
}

// Observer is notified after every transition, outside the manager's locks.
type Observer func(Transition)

// SessionManagerConfig holds tunables and optional collaborators.
type SessionManagerConfig struct {
	ProfilePath     string
	PublicPath      string
	ValidateTimeout time.Duration
	IdleTTL         time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	API    ports.APIClient       // Required
	Store  ports.CredentialStore // Required
	Config SessionManagerConfig
}

// SessionManager owns the lifecycle of every browser session: hydration from
// the credential store, login, registration, refresh and teardown.
type SessionManager struct {
	api     ports.APIClient
	store   ports.CredentialStore
	cfg     SessionManagerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	hydrations singleflight.Group
	background sync.WaitGroup

	obsMu     sync.RWMutex
	observers []observerSlot
	nextObsID int
}

type observerSlot struct {
	id int
	fn Observer
}

// entry is the in-memory state of one browser session. gen increases on
// every transition; background work applies its result only if gen is unchanged.
type entry struct {
	mu       sync.Mutex
	session  domainauth.Session
	gen      uint64
	hydrated chan struct{}
	busy     bool
	lastSeen time.Time
}

// NewSessionManager constructs a SessionManager. It panics if a required dependency is nil.
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	if opts.API == nil {
		panic("service: SessionManager requires an API client")
	}
	if opts.Store == nil {
		panic("service: SessionManager requires a credential store")
	}
	cfg := opts.Config
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = defaultProfilePath
	}
	if cfg.PublicPath == "" {
		cfg.PublicPath = defaultPublicPath
	}
	if cfg.ValidateTimeout <= 0 {
		cfg.ValidateTimeout = defaultValidateTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		api:     opts.API,
		store:   opts.Store,
		cfg:     cfg,
		logger:  logger.With("component", "session_manager"),
		metrics: cfg.Metrics,
		now:     now,
		entries: make(map[string]*entry),
	}
}

// Subscribe registers fn for transitions. The returned func removes it.
func (m *SessionManager) Subscribe(fn Observer) func() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.nextObsID++
	id := m.nextObsID
	m.observers = append(m.observers, observerSlot{id: id, fn: fn})
	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

func (m *SessionManager) notify(t *Transition) {
	if t == nil {
		return
	}
	m.obsMu.RLock()
	obs := append([]observerSlot(nil), m.observers...)
	m.obsMu.RUnlock()
	for _, o := range obs {
		o.fn(*t)
	}
}

// Session returns the current snapshot for sid without side effects.
func (m *SessionManager) Session(sid string) domainauth.Session {
	m.mu.Lock()
	e, ok := m.entries[sid]
	m.mu.Unlock()
	if !ok {
		return domainauth.Session{State: domainauth.StateUninitialized}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (m *SessionManager) entry(sid string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sid]
	if !ok {
		e = &entry{session: domainauth.Session{State: domainauth.StateUninitialized}}
		m.entries[sid] = e
	}
	e.mu.Lock()
	e.lastSeen = m.now()
	e.mu.Unlock()
	return e
}

// transition moves e to state with user. Callers hold e.mu.
func (m *SessionManager) transition(
	sid string,
	e *entry,
	to domainauth.State,
	user *domainauth.User,
	reason string,
) *Transition {
	from := e.session.State
	e.gen++
	e.session = domainauth.Session{State: to, User: cloneUser(user)}
	switch {
	case to == domainauth.StateHydrating && e.hydrated == nil:
		e.hydrated = make(chan struct{})
	case to != domainauth.StateHydrating && e.hydrated != nil:
		close(e.hydrated)
		e.hydrated = nil
	}
	m.metrics.ObserveTransition(from.String(), to.String())
	return &Transition{SessionID: sid, From: from, To: to, Session: e.snapshot(), Reason: reason}
}

// clearIf clears the stored record and moves e to Anonymous, unless another
// transition happened since gen.
func (m *SessionManager) clearIf(ctx context.Context, sid string, e *entry, gen uint64, reason string) *Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return nil
	}
	m.clearStore(ctx, sid)
	return m.transition(sid, e, domainauth.StateAnonymous, nil, reason)
}

// transitionIf applies a transition only when no other transition happened since gen.
func (m *SessionManager) transitionIf(
	sid string,
	e *entry,
	gen uint64,
	to domainauth.State,
	user *domainauth.User,
	reason string,
) *Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		m.logger.Debug("discarding stale session result",
			"session", domainauth.ShortID(sid),
			"reason", reason)
		return nil
	}
	return m.transition(sid, e, to, user, reason)
}

func (e *entry) snapshot() domainauth.Session {
	s := e.session
	s.User = cloneUser(s.User)
	s.IsLoading = s.State == domainauth.StateHydrating || e.busy
	return s
}

func cloneUser(u *domainauth.User) *domainauth.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Hydrate resolves the session for sid on first sight. A stored record is
// exposed optimistically while a background call validates it.
func (m *SessionManager) Hydrate(ctx context.Context, sid string) domainauth.Session {
	if sid == "" {
		return domainauth.Session{State: domainauth.StateAnonymous}
	}
	e := m.entry(sid)
	e.mu.Lock()
	if e.session.State != domainauth.StateUninitialized {
		s := e.snapshot()
		e.mu.Unlock()
		return s
	}
	e.mu.Unlock()

	v, _, _ := m.hydrations.Do(sid, func() (any, error) {
		return m.hydrate(ctx, sid, e), nil
	})
	s, _ := v.(domainauth.Session)
	return s
}

func (m *SessionManager) hydrate(ctx context.Context, sid string, e *entry) domainauth.Session {
	e.mu.Lock()
	if e.session.State != domainauth.StateUninitialized {
		s := e.snapshot()
		e.mu.Unlock()
		return s
	}
	t := m.transition(sid, e, domainauth.StateHydrating, nil, "first request")
	gen := e.gen
	e.mu.Unlock()
	m.notify(t)

	rec, err := m.store.Read(ctx, sid)
	switch {
	case err != nil:
		// Treated as signed out for this request only; the entry goes back to
		// Uninitialized so the next request reads the store again.
		m.logger.WarnContext(ctx, "read credentials during hydration failed",
			"session", domainauth.ShortID(sid),
			"error", err)
		m.notify(m.transitionIf(sid, e, gen, domainauth.StateUninitialized, nil, "store unavailable"))
		return domainauth.Session{State: domainauth.StateAnonymous}
	case rec == nil:
		m.notify(m.transitionIf(sid, e, gen, domainauth.StateAnonymous, nil, "no stored credentials"))
	case rec.Expired(m.now()):
		m.notify(m.clearIf(ctx, sid, e, gen, "token expired"))
	default:
		e.mu.Lock()
		if e.gen == gen {
			e.session.User = cloneUser(&rec.User)
		}
		e.mu.Unlock()
		m.background.Add(1)
		go m.validate(context.WithoutCancel(ctx), sid, e, gen, *rec)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// validate confirms a restored record against the profile endpoint.
func (m *SessionManager) validate(
	ctx context.Context,
	sid string,
	e *entry,
	gen uint64,
	rec domainauth.CredentialRecord,
) {
	defer m.background.Done()
	ctx, cancel := context.WithTimeout(domainauth.WithSessionID(ctx, sid), m.cfg.ValidateTimeout)
	defer cancel()

	user, err := m.fetchProfile(ctx, ports.APIRequest{Credentials: ports.CredentialsStored})

	// The store write and the transition happen under the entry lock so a
	// login that raced this validation is never overwritten.
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		m.logger.DebugContext(ctx, "discarding stale validation", "session", domainauth.ShortID(sid))
		return
	}
	var t *Transition
	switch {
	case err == nil:
		rec.User = user
		if saveErr := m.store.Save(ctx, sid, rec); saveErr != nil {
			m.logger.WarnContext(ctx, "persist validated profile failed",
				"session", domainauth.ShortID(sid),
				"error", saveErr)
		}
		t = m.transition(sid, e, domainauth.StateAuthenticated, &user, "validated")
	case ports.IsNetwork(err) || errors.Is(err, context.DeadlineExceeded):
		m.logger.InfoContext(ctx, "profile validation unreachable; keeping cached user",
			"session", domainauth.ShortID(sid),
			"error", err)
		t = m.transition(sid, e, domainauth.StateAuthenticated, &rec.User, "validation unreachable")
	default:
		m.logger.InfoContext(ctx, "stored credentials rejected",
			"session", domainauth.ShortID(sid),
			"status", ports.StatusCode(err),
			"error", err)
		m.clearStore(ctx, sid)
		t = m.transition(sid, e, domainauth.StateAnonymous, nil, "validation failed")
	}
	e.mu.Unlock()
	m.notify(t)
}

// AwaitHydration hydrates sid and waits up to wait for the outcome.
func (m *SessionManager) AwaitHydration(ctx context.Context, sid string, wait time.Duration) domainauth.Session {
	s := m.Hydrate(ctx, sid)
	if s.Hydrated() || sid == "" {
		return s
	}

	m.mu.Lock()
	e := m.entries[sid]
	m.mu.Unlock()
	if e == nil {
		return m.Session(sid)
	}
	e.mu.Lock()
	done := e.hydrated
	e.mu.Unlock()
	if done == nil {
		return m.Session(sid)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
	s = m.Session(sid)
	if s.State == domainauth.StateUninitialized {
		// Hydration ended without an answer from the store.
		return domainauth.Session{State: domainauth.StateAnonymous}
	}
	return s
}

// LoginResult is the outcome of Login.
type LoginResult struct {
	Success bool
	Session domainauth.Session
	Error   *AuthError
}

// Login exchanges credentials for a token, fetches the profile with it and
// only then persists the record. Any failure leaves the session untouched.
func (m *SessionManager) Login(ctx context.Context, sid, email, password string) LoginResult {
	e := m.entry(sid)
	if !m.acquire(e) {
		return LoginResult{Session: m.Session(sid), Error: &AuthError{Kind: KindInProgress, Message: MsgLoginInProgress}}
	}
	res := func() LoginResult {
		defer m.release(e)
		return m.login(ctx, sid, e, email, password)
	}()
	// Taken after release so a finished login never reports IsLoading.
	res.Session = m.Session(sid)
	return res
}

func (m *SessionManager) login(ctx context.Context, sid string, e *entry, email, password string) LoginResult {
	user, rec, authErr := m.authenticate(ctx, email, password)
	if authErr != nil {
		m.metrics.ObserveLogin(string(authErr.Kind))
		return LoginResult{Error: authErr}
	}

	e.mu.Lock()
	if err := m.store.Save(ctx, sid, rec); err != nil {
		e.mu.Unlock()
		m.logger.ErrorContext(ctx, "save credentials after login failed",
			"session", domainauth.ShortID(sid),
			"error", err)
		failure := &AuthError{Kind: KindFailure, Message: messagesByOp[OpLogin].failure}
		m.metrics.ObserveLogin(string(failure.Kind))
		return LoginResult{Error: failure}
	}
	t := m.transition(sid, e, domainauth.StateAuthenticated, &user, "login")
	e.mu.Unlock()
	m.notify(t)
	m.metrics.ObserveLogin(metrics.ResultSuccess)
	m.logger.InfoContext(ctx, "login succeeded",
		"session", domainauth.ShortID(sid),
		"role", string(user.Role))
	return LoginResult{Success: true}
}

func (m *SessionManager) authenticate(
	ctx context.Context,
	email, password string,
) (domainauth.User, domainauth.CredentialRecord, *AuthError) {
	var raw json.RawMessage
	err := m.api.Do(ctx, ports.APIRequest{
		Method:      http.MethodPost,
		Path:        pathLogin,
		Body:        map[string]string{"email": email, "password": password},
		Credentials: ports.CredentialsNone,
	}, &raw)
	if err != nil {
		ae := ClassifyError(OpLogin, err)
		return domainauth.User{}, domainauth.CredentialRecord{}, &ae
	}

	data, err := decodeRaw(raw)
	if err != nil {
		return m.loginFailure(ctx, "decode login response", err)
	}
	token, tokenType := loginToken(data)
	if token == "" {
		return m.loginFailure(ctx, "login response carried no token", nil)
	}

	tok := &oauth2.Token{AccessToken: token, TokenType: tokenType}
	req := ports.APIRequest{Credentials: ports.CredentialsExplicit, Token: tok}
	user, err := m.fetchProfile(ctx, req)
	if err != nil && retryable(err) {
		user, err = m.fetchProfile(ctx, req)
	}
	if err != nil {
		var se *ports.StatusError
		if errors.As(err, &se) || ports.IsNetwork(err) {
			ae := ClassifyError(OpLogin, err)
			// A 401 here means the token we were just handed is unusable.
			if ae.Kind == KindInvalidCredentials {
				ae = AuthError{Kind: KindFailure, Message: messagesByOp[OpLogin].failure, Status: ae.Status}
			}
			return domainauth.User{}, domainauth.CredentialRecord{}, &ae
		}
		return m.loginFailure(ctx, "profile after login", err)
	}
	return user, domainauth.NewCredentialRecord(token, tokenType, user), nil
}

func (m *SessionManager) loginFailure(
	ctx context.Context,
	msg string,
	err error,
) (domainauth.User, domainauth.CredentialRecord, *AuthError) {
	m.logger.WarnContext(ctx, msg, "error", err)
	return domainauth.User{}, domainauth.CredentialRecord{}, &AuthError{
		Kind:    KindFailure,
		Message: messagesByOp[OpLogin].failure,
	}
}

// acquire marks e busy; false means a login or registration is already running.
func (m *SessionManager) acquire(e *entry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	return true
}

func (m *SessionManager) release(e *entry) {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// RegisterInput is the account creation form.
type RegisterInput struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domainauth.Role `json:"role"`
}

// RegisterResult is the outcome of Register.
type RegisterResult struct {
	Success bool
	Error   *AuthError
}

// Register creates an account. It never signs the browser session in.
func (m *SessionManager) Register(ctx context.Context, sid string, in RegisterInput) RegisterResult {
	e := m.entry(sid)
	if !m.acquire(e) {
		return RegisterResult{Error: &AuthError{Kind: KindInProgress, Message: MsgLoginInProgress}}
	}
	defer m.release(e)

	if in.Role == "" {
		in.Role = domainauth.RoleUser
	}
	err := m.api.Do(ctx, ports.APIRequest{
		Method:      http.MethodPost,
		Path:        pathRegister,
		Body:        in,
		Credentials: ports.CredentialsNone,
	}, nil)
	if err != nil {
		ae := ClassifyError(OpRegister, err)
		m.logger.InfoContext(ctx, "registration rejected",
			"kind", string(ae.Kind),
			"status", ae.Status)
		return RegisterResult{Error: &ae}
	}
	m.logger.InfoContext(ctx, "account registered", "role", string(in.Role))
	return RegisterResult{Success: true}
}

// Logout notifies the API best-effort, clears the record and returns the
// public entry path. It always succeeds locally.
func (m *SessionManager) Logout(ctx context.Context, sid string) string {
	if sid == "" {
		return m.cfg.PublicPath
	}
	ctx = domainauth.WithSessionID(ctx, sid)
	if rec, err := m.store.Read(ctx, sid); err == nil && rec != nil {
		if err := m.api.Do(ctx, ports.APIRequest{Method: http.MethodPost, Path: pathLogout}, nil); err != nil {
			m.logger.InfoContext(ctx, "remote logout failed",
				"session", domainauth.ShortID(sid),
				"error", err)
		}
	}
	m.teardown(ctx, sid, "", "logout")
	return m.cfg.PublicPath
}

// RefreshUser re-fetches the profile with the stored token. Any failure
// tears the session down.
func (m *SessionManager) RefreshUser(ctx context.Context, sid string) error {
	ctx = domainauth.WithSessionID(ctx, sid)
	rec, err := m.store.Read(ctx, sid)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	if rec == nil {
		m.teardown(ctx, sid, "", "refresh without credentials")
		return ErrNoSession
	}

	user, err := m.fetchProfile(ctx, ports.APIRequest{Credentials: ports.CredentialsStored})
	if err != nil {
		m.teardown(ctx, sid, rec.Token, "refresh failed")
		return fmt.Errorf("refresh profile: %w", err)
	}

	rec.User = user
	e := m.entry(sid)
	e.mu.Lock()
	if err := m.store.Save(ctx, sid, *rec); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("save refreshed profile: %w", err)
	}
	t := m.transition(sid, e, domainauth.StateAuthenticated, &user, "refresh")
	e.mu.Unlock()
	m.notify(t)
	return nil
}

// HandleTeardown is the API client's hook for a rejected stored token. It
// clears the record and signs the session out unless a later login already
// replaced token. Repeated calls are harmless.
func (m *SessionManager) HandleTeardown(ctx context.Context, sid, token string) {
	m.mu.Lock()
	_, known := m.entries[sid]
	m.mu.Unlock()
	if !known {
		if !m.replaced(ctx, sid, token) {
			m.clearStore(ctx, sid)
		}
		return
	}
	m.teardown(ctx, sid, token, "token rejected")
}

// teardown clears sid and moves it to Anonymous. A non-empty token limits it
// to the record that still carries that token. An entry that is already
// signed out emits no transition.
func (m *SessionManager) teardown(ctx context.Context, sid, token, reason string) {
	e := m.entry(sid)
	e.mu.Lock()
	if token != "" && m.replaced(ctx, sid, token) {
		e.mu.Unlock()
		m.logger.DebugContext(ctx, "keeping newer credentials",
			"session", domainauth.ShortID(sid),
			"reason", reason)
		return
	}
	m.clearStore(ctx, sid)
	if e.session.State == domainauth.StateAnonymous && e.session.User == nil {
		e.mu.Unlock()
		return
	}
	t := m.transition(sid, e, domainauth.StateAnonymous, nil, reason)
	e.mu.Unlock()
	m.notify(t)
}

// replaced reports whether the store now holds a token other than token.
// A read failure counts as not replaced so the rejected token is still cleared.
func (m *SessionManager) replaced(ctx context.Context, sid, token string) bool {
	rec, err := m.store.Read(context.WithoutCancel(ctx), sid)
	return err == nil && rec != nil && rec.Token != token
}

func (m *SessionManager) clearStore(ctx context.Context, sid string) {
	if err := m.store.Clear(context.WithoutCancel(ctx), sid); err != nil {
		m.logger.ErrorContext(ctx, "clear credentials failed",
			"session", domainauth.ShortID(sid),
			"error", err)
	}
}

func (m *SessionManager) fetchProfile(ctx context.Context, req ports.APIRequest) (domainauth.User, error) {
	req.Method = http.MethodGet
	req.Path = m.cfg.ProfilePath
	var raw json.RawMessage
	if err := m.api.Do(ctx, req, &raw); err != nil {
		return domainauth.User{}, err
	}
	data, err := decodeRaw(raw)
	if err != nil {
		return domainauth.User{}, fmt.Errorf("decode profile: %w", err)
	}
	return decodeProfile(data)
}

func decodeRaw(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Sweep evicts entries idle for longer than IdleTTL and returns how many were
// removed. An evicted session hydrates again on its next request.
func (m *SessionManager) Sweep() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for sid, e := range m.entries {
		e.mu.Lock()
		idle := e.lastSeen.Before(cutoff) && !e.busy && e.session.State != domainauth.StateHydrating
		e.mu.Unlock()
		if idle {
			delete(m.entries, sid)
			removed++
		}
	}
	return removed
}

// Run sweeps idle entries until ctx is canceled.
func (m *SessionManager) Run(ctx context.Context) {
	if m.cfg.IdleTTL <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(m.cfg.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}

// Wait blocks until background validations finish.
func (m *SessionManager) Wait() {
	m.background.Wait()
}

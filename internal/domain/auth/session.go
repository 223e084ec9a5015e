package auth

// State is a browser session's position in the session lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Session is the in-memory view of a browser session derived from its credential record.
// It is a value snapshot; mutating it has no effect on the session manager.
type Session struct {
	State     State
	User      *User
	IsLoading bool
}

// IsAuthenticated is always derived from the presence of a user.
func (s Session) IsAuthenticated() bool { return s.User != nil }

// Hydrated reports whether the session state is known.
func (s Session) Hydrated() bool {
	return s.State == StateAuthenticated || s.State == StateAnonymous
}

// Role returns the user's role or the empty role for anonymous sessions.
func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

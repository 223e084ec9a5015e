package auth

// Verdict is the outcome of a route guard decision.
type Verdict int

const (
	// VerdictLoading means session state is not known yet: render a placeholder, do not redirect.
	VerdictLoading Verdict = iota
	// VerdictRedirectLogin sends an anonymous visitor to the login entry point.
	VerdictRedirectLogin
	// VerdictRedirectLanding sends an authenticated but unauthorized user to the landing page.
	VerdictRedirectLanding
	// VerdictRender allows the protected view.
	VerdictRender
)

func (v Verdict) String() string {
	switch v {
	case VerdictLoading:
		return "loading"
	case VerdictRedirectLogin:
		return "redirect_login"
	case VerdictRedirectLanding:
		return "redirect_landing"
	case VerdictRender:
		return "render"
	default:
		return "unknown"
	}
}

const (
	DefaultLoginPath   = "/login"
	DefaultLandingPath = "/dashboard"
)

// GuardPolicy declares who may see a protected view and where others go.
// Zero values select all roles, /login and /dashboard.
type GuardPolicy struct {
	AllowedRoles []Role
	LoginPath    string
	LandingPath  string
}

// Decision is what a route guard tells the HTTP layer to do.
type Decision struct {
	Verdict  Verdict
	Location string
}

// Decide is a pure function of session state and the policy.
func (p GuardPolicy) Decide(s Session) Decision {
	switch s.State {
	case StateAuthenticated:
	case StateAnonymous:
		return Decision{Verdict: VerdictRedirectLogin, Location: p.loginPath()}
	default:
		return Decision{Verdict: VerdictLoading}
	}

	if s.User == nil {
		return Decision{Verdict: VerdictRedirectLogin, Location: p.loginPath()}
	}
	if !s.User.HasRole(p.allowed()...) {
		return Decision{Verdict: VerdictRedirectLanding, Location: p.landingPath()}
	}
	return Decision{Verdict: VerdictRender}
}

// Allows reports whether the policy would render for role.
func (p GuardPolicy) Allows(role Role) bool {
	for _, r := range p.allowed() {
		if r == role {
			return true
		}
	}
	return false
}

func (p GuardPolicy) allowed() []Role {
	if len(p.AllowedRoles) == 0 {
		return AllRoles()
	}
	return p.AllowedRoles
}

func (p GuardPolicy) loginPath() string {
	if p.LoginPath == "" {
		return DefaultLoginPath
	}
	return p.LoginPath
}

func (p GuardPolicy) landingPath() string {
	if p.LandingPath == "" {
		return DefaultLandingPath
	}
	return p.LandingPath
}

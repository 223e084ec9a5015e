package httpx

// CurrentPage constants define the page identifiers used in templates and navigation.
// These constants ensure consistency across UI handlers and template mapping.
const (
	// Marketing pages.
	PageHome         = "home"
	PageAbout        = "about"
	PageCommonIssues = "common-issues"

	// Account pages.
	PageLogin    = "login"
	PageRegister = "register"

	// Signed-in pages.
	PageDashboard        = "dashboard"
	PageHistory          = "history"
	PageContact          = "contact"
	PageEngineerBookings = "engineer-bookings"

	// Diagnosis pages.
	PageDiagnose  = "diagnose"
	PageDiagnosis = "diagnosis"

	// PageLoading is the placeholder shown while a session hydrates.
	PageLoading = "loading"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

// Session and form field names shared by middleware, handlers and templates.
const (
	SessionCookieName = "sid"
	RedirectParam     = "redirect_uri"
)

// Content templates are defined once and reused to avoid per-call allocations.
//
//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageHome:             "home-content",
	PageAbout:            "about-content",
	PageCommonIssues:     "common-issues-content",
	PageLogin:            "login-content",
	PageRegister:         "register-content",
	PageDashboard:        "dashboard-content",
	PageHistory:          "history-content",
	PageContact:          "contact-content",
	PageEngineerBookings: "engineer-bookings-content",
	PageDiagnose:         "diagnose-content",
	PageDiagnosis:        "diagnosis-content",
	PageLoading:          "loading-content",
}

// ContentTemplateFor returns the template name for a given page identifier.
// Unknown pages fall back to the home content.
func ContentTemplateFor(page string) string {
	if name, ok := contentTemplates[page]; ok {
		return name
	}
	return "home-content"
}

package httpx

import (
	"net/http"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

// commonIssue is one entry of the public troubleshooting guide.
type commonIssue struct {
	Title    string
	Symptoms []string
	Fixes    []string
}

//nolint:gochecknoglobals // static page content
var commonIssues = []commonIssue{
	{
		Title:    "Laptop won't turn on",
		Symptoms: []string{"No lights or fan noise", "Charger light is off"},
		Fixes: []string{
			"Try a different outlet and check the charger cable",
			"Remove the battery if possible and hold the power button for 30 seconds",
			"Connect only the charger and try again",
		},
	},
	{
		Title:    "Overheating and loud fans",
		Symptoms: []string{"Bottom is hot to the touch", "Fans run at full speed", "Random shutdowns"},
		Fixes: []string{
			"Use the laptop on a hard, flat surface",
			"Clean the air vents with compressed air",
			"Check for runaway processes in the task manager",
		},
	},
	{
		Title:    "Slow performance",
		Symptoms: []string{"Apps take long to open", "Disk usage at 100%"},
		Fixes: []string{
			"Disable unnecessary startup programs",
			"Free up disk space and run a malware scan",
			"Install pending system updates",
		},
	},
	{
		Title:    "Wi-Fi keeps disconnecting",
		Symptoms: []string{"Connection drops every few minutes", "Other devices are fine"},
		Fixes: []string{
			"Forget the network and reconnect",
			"Update the wireless adapter driver",
			"Turn off power saving for the wireless adapter",
		},
	},
	{
		Title:    "Battery drains quickly",
		Symptoms: []string{"Battery lasts under two hours", "Percentage jumps unexpectedly"},
		Fixes: []string{
			"Lower screen brightness and close background apps",
			"Check battery health in the system report",
			"Calibrate the battery with a full charge and discharge cycle",
		},
	},
}

// Home renders the landing page.
// GET /.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}
	data := NewTemplateData(r, PageMeta{Title: "LaptopDoc - Laptop diagnostics", PageTitle: "LaptopDoc", CurrentPage: PageHome}).
		With("Issues", commonIssues[:3]).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// About renders the about page.
// GET /about.
func (h *UIHandlers) About(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, PageMeta{Title: "About - LaptopDoc", PageTitle: "About", CurrentPage: PageAbout}).Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// CommonIssues renders the public troubleshooting guide.
// GET /common-issues.
func (h *UIHandlers) CommonIssues(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, PageMeta{
		Title:       "Common issues - LaptopDoc",
		PageTitle:   "Common issues",
		CurrentPage: PageCommonIssues,
	}).With("Issues", commonIssues).Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// dashboardLink is a role-dependent shortcut on the dashboard.
type dashboardLink struct {
	Href  string
	Label string
	Hint  string
}

func dashboardLinks(role domainauth.Role) []dashboardLink {
	links := []dashboardLink{
		{Href: "/diagnose", Label: "Diagnose a problem", Hint: "Describe what is wrong and get step by step fixes"},
		{Href: "/history", Label: "History", Hint: "Review your past diagnoses"},
	}
	if role == domainauth.RoleUser || role == domainauth.RoleAdmin {
		links = append(links, dashboardLink{Href: "/contact", Label: "Book a technician", Hint: "Schedule a visit for a problem"})
	}
	if role == domainauth.RoleEngineer || role == domainauth.RoleAdmin {
		links = append(links, dashboardLink{Href: "/engineer/bookings", Label: "My bookings", Hint: "Confirm customer visits"})
	}
	return links
}

// Dashboard renders the signed-in landing page.
// GET /dashboard.
func (h *UIHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	var role domainauth.Role
	if user != nil {
		role = user.Role
	}
	data := NewTemplateData(r, PageMeta{Title: "Dashboard - LaptopDoc", PageTitle: "Dashboard", CurrentPage: PageDashboard}).
		With("Links", dashboardLinks(role)).
		With("Recent", h.Troubleshoot.Recent(r.Context(), SessionID(r))).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

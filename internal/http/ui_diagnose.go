package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/target/laptopdoc/internal/domain/troubleshoot"
	apperrors "github.com/target/laptopdoc/internal/errors"
	"github.com/target/laptopdoc/internal/ports"
	"github.com/target/laptopdoc/internal/service"
)

func diagnoseMeta() PageMeta {
	return PageMeta{Title: "Diagnose - LaptopDoc", PageTitle: "Diagnose a problem", CurrentPage: PageDiagnose}
}

func diagnosisMeta() PageMeta {
	return PageMeta{Title: "Diagnosis - LaptopDoc", PageTitle: "Your diagnosis", CurrentPage: PageDiagnosis}
}

// needsSignIn sends the visitor to sign in when the API rejected the call
// for lack of valid credentials. It reports whether it answered the request.
func (h *UIHandlers) needsSignIn(w http.ResponseWriter, r *http.Request, err error) bool {
	if ports.StatusCode(err) != http.StatusUnauthorized {
		return false
	}
	redirectToLogin(w, r, h.loginPath(), errors.Is(err, ports.ErrSessionExpired))
	return true
}

// Diagnose renders the diagnosis form with the session's recent diagnoses.
// GET /diagnose.
func (h *UIHandlers) Diagnose(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, diagnoseMeta()).
		With("Brands", troubleshoot.Brands).
		With("Recent", h.Troubleshoot.Recent(r.Context(), SessionID(r))).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// DiagnoseSubmit sends the form to the API and shows the generated steps.
// POST /diagnose.
func (h *UIHandlers) DiagnoseSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := service.DiagnosisInput{
		Brand:       strings.TrimSpace(r.PostFormValue("laptopBrand")),
		Model:       strings.TrimSpace(r.PostFormValue("laptopModel")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}

	diag, err := h.Troubleshoot.Diagnose(r.Context(), SessionID(r), in)
	if err != nil {
		if h.needsSignIn(w, r, err) {
			return
		}
		RenderError(ErrorOpts{
			W:        w,
			R:        r,
			Err:      err,
			Renderer: h.renderPage,
			PageMeta: diagnoseMeta(),
			Data: map[string]any{
				"Brands": troubleshoot.Brands,
				"Recent": h.Troubleshoot.Recent(r.Context(), SessionID(r)),
				"Form": map[string]string{
					"laptopBrand": in.Brand,
					"laptopModel": in.Model,
					"description": in.Description,
				},
			},
		})
		return
	}

	if diag.ProblemID != "" && IsHTMX(r) {
		w.Header().Set("Hx-Push-Url", "/diagnose/"+url.PathEscape(diag.ProblemID))
	}
	data := NewTemplateData(r, diagnosisMeta()).With("Diagnosis", diag).Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// DiagnosisView shows one stored diagnosis.
// GET /diagnose/{id}.
func (h *UIHandlers) DiagnosisView(w http.ResponseWriter, r *http.Request) {
	diag, err := h.Troubleshoot.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if h.needsSignIn(w, r, err) {
			return
		}
		if apperrors.IsNotFound(err) {
			h.NotFound(w, r)
			return
		}
		RenderError(ErrorOpts{W: w, R: r, Err: err, Renderer: h.renderPage, PageMeta: diagnosisMeta()})
		return
	}
	data := NewTemplateData(r, diagnosisMeta()).With("Diagnosis", diag).Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// historyTab is one filter tab on the history page.
type historyTab struct {
	Filter troubleshoot.HistoryFilter
	Label  string
	Count  int
	Active bool
}

// History lists the signed-in user's diagnoses with filter and search.
// GET /history?filter=all|solved|pending&q=...
func (h *UIHandlers) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := troubleshoot.ParseHistoryFilter(q.Get("filter"))
	search := strings.TrimSpace(q.Get("q"))
	meta := PageMeta{Title: "History - LaptopDoc", PageTitle: "Diagnosis history", CurrentPage: PageHistory}

	problems, err := h.Troubleshoot.ListProblems(r.Context())
	if err != nil {
		if h.needsSignIn(w, r, err) {
			return
		}
		RenderError(ErrorOpts{
			W: w, R: r, Err: err, Renderer: h.renderPage, PageMeta: meta,
			Data: map[string]any{"Filter": string(filter), "Search": search},
		})
		return
	}

	counts := troubleshoot.CountProblems(problems)
	tabs := []historyTab{
		{Filter: troubleshoot.FilterAll, Label: "All", Count: counts.All},
		{Filter: troubleshoot.FilterSolved, Label: "Solved", Count: counts.Solved},
		{Filter: troubleshoot.FilterPending, Label: "Pending", Count: counts.Pending},
	}
	for i := range tabs {
		tabs[i].Active = tabs[i].Filter == filter
	}

	data := NewTemplateData(r, meta).
		With("Problems", troubleshoot.FilterProblems(problems, filter, search)).
		With("Tabs", tabs).
		With("Filter", string(filter)).
		With("Search", search).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

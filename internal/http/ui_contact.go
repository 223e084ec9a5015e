package httpx

import (
	"net/http"
	"strings"

	"github.com/target/laptopdoc/internal/domain/troubleshoot"
	apperrors "github.com/target/laptopdoc/internal/errors"
	"github.com/target/laptopdoc/internal/service"
)

const (
	noticeBooked    = "Your booking request was sent. The technician will confirm it shortly."
	noticeConfirmed = "Booking confirmed."
)

func contactMeta() PageMeta {
	return PageMeta{Title: "Book a technician - LaptopDoc", PageTitle: "Book a technician", CurrentPage: PageContact}
}

func bookingsMeta() PageMeta {
	return PageMeta{Title: "Bookings - LaptopDoc", PageTitle: "My bookings", CurrentPage: PageEngineerBookings}
}

// Contact renders the booking form. Engineers and problems load in parallel.
// GET /contact?problem=<id>.
func (h *UIHandlers) Contact(w http.ResponseWriter, r *http.Request) {
	b := NewTemplateData(r, contactMeta()).
		WithForm(map[string]string{"problemId": strings.TrimSpace(r.URL.Query().Get("problem"))})
	if r.URL.Query().Get("booked") == "1" {
		b.WithNotice(noticeBooked)
	}

	contact, err := h.Troubleshoot.LoadContact(r.Context())
	if err != nil {
		if h.needsSignIn(w, r, err) {
			return
		}
		b.WithError(processError(err, nil))
	}
	data := b.With("Engineers", contact.Engineers).With("Problems", contact.Problems).Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// ContactSubmit books a technician for one of the user's problems.
// POST /contact.
func (h *UIHandlers) ContactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := service.BookingInput{
		ProblemID:     strings.TrimSpace(r.PostFormValue("problemId")),
		EngineerID:    strings.TrimSpace(r.PostFormValue("engineerId")),
		ScheduledTime: strings.TrimSpace(r.PostFormValue("scheduledTime")),
		Location:      h.Location,
	}

	if _, err := h.Troubleshoot.CreateBooking(r.Context(), in); err != nil {
		if h.needsSignIn(w, r, err) {
			return
		}
		// Reload the dropdowns so the form can be corrected in place.
		contact, loadErr := h.Troubleshoot.LoadContact(r.Context())
		if loadErr != nil {
			h.logger().WarnContext(r.Context(), "reload contact options failed", "error", loadErr)
		}
		RenderError(ErrorOpts{
			W:        w,
			R:        r,
			Err:      err,
			Renderer: h.renderPage,
			PageMeta: contactMeta(),
			Data: map[string]any{
				"Engineers": contact.Engineers,
				"Problems":  contact.Problems,
				"Form": map[string]string{
					"problemId":     in.ProblemID,
					"engineerId":    in.EngineerID,
					"scheduledTime": in.ScheduledTime,
				},
			},
		})
		return
	}
	Redirect(w, r, "/contact?booked=1")
}

// EngineerBookings lists the engineer's bookings split into pending and confirmed tabs.
// GET /engineer/bookings?tab=pending|confirmed.
func (h *UIHandlers) EngineerBookings(w http.ResponseWriter, r *http.Request) {
	tab := "pending"
	if r.URL.Query().Get("tab") == "confirmed" {
		tab = "confirmed"
	}
	b := NewTemplateData(r, bookingsMeta()).With("Tab", tab)
	if r.URL.Query().Get("confirmed") == "1" {
		b.WithNotice(noticeConfirmed)
	}

	bookings, err := h.Troubleshoot.EngineerBookings(r.Context())
	if err != nil {
		if h.needsSignIn(w, r, err) {
			return
		}
		b.WithError(processError(err, nil))
	}
	pending, confirmed := troubleshoot.SplitBookings(bookings)
	data := b.With("Pending", pending).With("Confirmed", confirmed).Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// ConfirmBooking confirms one booking with an optional note to the customer.
// POST /engineer/bookings/{id}/confirm.
func (h *UIHandlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, err := h.Troubleshoot.ConfirmBooking(r.Context(), r.PathValue("id"), r.PostFormValue("message")); err != nil {
		if h.needsSignIn(w, r, err) {
			return
		}
		if apperrors.IsNotFound(err) {
			h.NotFound(w, r)
			return
		}
		bookings, listErr := h.Troubleshoot.EngineerBookings(r.Context())
		if listErr != nil {
			h.logger().WarnContext(r.Context(), "reload bookings failed", "error", listErr)
		}
		pending, confirmed := troubleshoot.SplitBookings(bookings)
		RenderError(ErrorOpts{
			W:         w,
			R:         r,
			Err:       err,
			Renderer:  h.renderPage,
			PageMeta:  bookingsMeta(),
			ShowToast: true,
			Data:      map[string]any{"Tab": "pending", "Pending": pending, "Confirmed": confirmed},
		})
		return
	}
	Redirect(w, r, "/engineer/bookings?tab=confirmed&confirmed=1")
}

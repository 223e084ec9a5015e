package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/laptopdoc/internal/domain/troubleshoot"
	apperrors "github.com/target/laptopdoc/internal/errors"
	"github.com/target/laptopdoc/internal/ports"
)

// RecentLimit is how many diagnoses are remembered per browser session.
const RecentLimit = 10

const minDescriptionLen = 10

// TroubleshootServiceOptions groups dependencies for TroubleshootService.
type TroubleshootServiceOptions struct {
	API    ports.APIClient       // Required
	Recent ports.RecentDiagnoses // Optional: remembers submitted diagnoses
	Logger *slog.Logger          // Optional
}

// TroubleshootService wraps the diagnosis, history and booking endpoints.
// Calls use the browser session's stored credentials from ctx.
type TroubleshootService struct {
	api    ports.APIClient
	recent ports.RecentDiagnoses
	logger *slog.Logger
	now    func() time.Time
}

// NewTroubleshootService constructs a TroubleshootService. It panics if API is nil.
func NewTroubleshootService(opts TroubleshootServiceOptions) *TroubleshootService {
	if opts.API == nil {
		panic("service: TroubleshootService requires an API client")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TroubleshootService{
		api:    opts.API,
		recent: opts.Recent,
		logger: logger.With("component", "troubleshoot_service"),
		now:    time.Now,
	}
}

// DiagnosisInput is the diagnosis form.
type DiagnosisInput struct {
	Brand       string
	Model       string
	Description string
}

// Validate checks the form and returns the first failing field.
func (in DiagnosisInput) Validate() error {
	switch {
	case !troubleshoot.IsKnownBrand(strings.TrimSpace(in.Brand)):
		return apperrors.ValidationField("laptopBrand", "Please select a laptop brand")
	case strings.TrimSpace(in.Model) == "":
		return apperrors.ValidationField("laptopModel", "Laptop model is required")
	case len(strings.TrimSpace(in.Description)) < minDescriptionLen:
		return apperrors.ValidationField("description", "Please describe the problem in at least 10 characters")
	}
	return nil
}

// Diagnose submits the form and returns the generated diagnosis. The result
// is remembered for sid when a recent store is configured.
func (s *TroubleshootService) Diagnose(ctx context.Context, sid string, in DiagnosisInput) (troubleshoot.Diagnosis, error) {
	if err := in.Validate(); err != nil {
		return troubleshoot.Diagnosis{}, err
	}

	var p troubleshoot.Problem
	err := s.api.Do(ctx, ports.APIRequest{
		Method: http.MethodPost,
		Path:   "/troubleshoot/",
		Body: troubleshoot.DiagnosisRequest{
			LaptopBrand: strings.TrimSpace(in.Brand),
			LaptopModel: strings.TrimSpace(in.Model),
			Description: strings.TrimSpace(in.Description),
		},
	}, &p)
	if err != nil {
		return troubleshoot.Diagnosis{}, requestError("submit diagnosis", err)
	}
	if err := validate.Struct(p); err != nil {
		return troubleshoot.Diagnosis{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "The diagnosis response was incomplete.")
	}

	if s.recent != nil && sid != "" {
		if err := s.recent.Push(ctx, sid, troubleshoot.ToRecent(p, s.now()), RecentLimit); err != nil {
			s.logger.WarnContext(ctx, "remember diagnosis failed", "error", err)
		}
	}
	return troubleshoot.ToDiagnosis(p), nil
}

// Get fetches one diagnosis.
func (s *TroubleshootService) Get(ctx context.Context, id string) (troubleshoot.Diagnosis, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return troubleshoot.Diagnosis{}, apperrors.NotFound("Diagnosis not found")
	}
	var p troubleshoot.Problem
	err := s.api.Do(ctx, ports.APIRequest{
		Path:  "/troubleshoot/" + url.PathEscape(id),
		Route: "/troubleshoot/{id}",
	}, &p)
	if err != nil {
		return troubleshoot.Diagnosis{}, requestError("load diagnosis", err)
	}
	return troubleshoot.ToDiagnosis(p), nil
}

// ListProblems returns the signed-in user's diagnosis history.
func (s *TroubleshootService) ListProblems(ctx context.Context) ([]troubleshoot.Problem, error) {
	var problems []troubleshoot.Problem
	if err := s.api.Do(ctx, ports.APIRequest{Path: "/troubleshoot/user/problems"}, &problems); err != nil {
		return nil, requestError("load history", err)
	}
	return problems, nil
}

// ListEngineers returns the technicians available for booking.
func (s *TroubleshootService) ListEngineers(ctx context.Context) ([]troubleshoot.Engineer, error) {
	var engineers []troubleshoot.Engineer
	if err := s.api.Do(ctx, ports.APIRequest{Path: "/troubleshoot/engineers"}, &engineers); err != nil {
		return nil, requestError("load engineers", err)
	}
	for _, e := range engineers {
		if err := validate.Struct(e); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "The engineer list was incomplete.")
		}
	}
	return engineers, nil
}

// ContactData is what the booking page needs.
type ContactData struct {
	Engineers []troubleshoot.Engineer
	Problems  []troubleshoot.Problem
}

// LoadContact fetches engineers and the user's problems in parallel.
func (s *TroubleshootService) LoadContact(ctx context.Context) (ContactData, error) {
	var data ContactData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		engineers, err := s.ListEngineers(gctx)
		data.Engineers = engineers
		return err
	})
	g.Go(func() error {
		problems, err := s.ListProblems(gctx)
		data.Problems = problems
		return err
	})
	if err := g.Wait(); err != nil {
		return ContactData{}, err
	}
	return data, nil
}

// BookingInput is the booking form. ScheduledTime is a datetime-local value.
type BookingInput struct {
	ProblemID     string
	EngineerID    string
	ScheduledTime string
	Location      *time.Location
}

const datetimeLocalLayout = "2006-01-02T15:04"

func (in BookingInput) parse(now time.Time) (troubleshoot.BookingRequest, error) {
	switch {
	case strings.TrimSpace(in.ProblemID) == "":
		return troubleshoot.BookingRequest{}, apperrors.ValidationField("problemId", "Please select a problem")
	case strings.TrimSpace(in.EngineerID) == "":
		return troubleshoot.BookingRequest{}, apperrors.ValidationField("engineerId", "Please select an engineer")
	case strings.TrimSpace(in.ScheduledTime) == "":
		return troubleshoot.BookingRequest{}, apperrors.ValidationField("scheduledTime", "Please choose a date and time")
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(datetimeLocalLayout, strings.TrimSpace(in.ScheduledTime), loc)
	if err != nil {
		at, err = time.Parse(time.RFC3339, strings.TrimSpace(in.ScheduledTime))
	}
	if err != nil {
		return troubleshoot.BookingRequest{}, apperrors.ValidationField("scheduledTime", "Please choose a valid date and time")
	}
	if !at.After(now) {
		return troubleshoot.BookingRequest{}, apperrors.ValidationField("scheduledTime", "Scheduled time must be in the future")
	}
	return troubleshoot.BookingRequest{
		ProblemID:     strings.TrimSpace(in.ProblemID),
		EngineerID:    strings.TrimSpace(in.EngineerID),
		ScheduledTime: at.UTC(),
	}, nil
}

// CreateBooking books a technician for a problem.
func (s *TroubleshootService) CreateBooking(ctx context.Context, in BookingInput) (troubleshoot.Booking, error) {
	req, err := in.parse(s.now())
	if err != nil {
		return troubleshoot.Booking{}, err
	}
	var b troubleshoot.Booking
	if err := s.api.Do(ctx, ports.APIRequest{
		Method: http.MethodPost,
		Path:   "/troubleshoot/bookings",
		Body:   req,
	}, &b); err != nil {
		return troubleshoot.Booking{}, requestError("create booking", err)
	}
	return b, nil
}

// EngineerBookings returns the bookings assigned to the signed-in engineer.
func (s *TroubleshootService) EngineerBookings(ctx context.Context) ([]troubleshoot.Booking, error) {
	var bookings []troubleshoot.Booking
	if err := s.api.Do(ctx, ports.APIRequest{Path: "/troubleshoot/engineer/bookings"}, &bookings); err != nil {
		return nil, requestError("load bookings", err)
	}
	return bookings, nil
}

// ConfirmBooking confirms a booking with an optional message to the customer.
func (s *TroubleshootService) ConfirmBooking(ctx context.Context, id, message string) (troubleshoot.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return troubleshoot.Booking{}, apperrors.NotFound("Booking not found")
	}
	var b troubleshoot.Booking
	err := s.api.Do(ctx, ports.APIRequest{
		Method: http.MethodPatch,
		Path:   "/troubleshoot/bookings/" + url.PathEscape(id) + "/confirm",
		Route:  "/troubleshoot/bookings/{id}/confirm",
		Body:   troubleshoot.ConfirmRequest{Confirmed: true, Message: strings.TrimSpace(message)},
	}, &b)
	if err != nil {
		return troubleshoot.Booking{}, requestError("confirm booking", err)
	}
	return b, nil
}

// Recent lists the diagnoses remembered for sid.
func (s *TroubleshootService) Recent(ctx context.Context, sid string) []troubleshoot.RecentDiagnosis {
	if s.recent == nil || sid == "" {
		return nil
	}
	items, err := s.recent.List(ctx, sid)
	if err != nil {
		s.logger.WarnContext(ctx, "list recent diagnoses failed", "error", err)
		return nil
	}
	return items
}

// requestError wraps an API failure in an AppError whose message is page-ready.
// The cause is kept so callers can still match ports.ErrSessionExpired.
func requestError(action string, err error) error {
	ae := ClassifyError(OpRequest, err)
	code := apperrors.ErrCodeInternal
	switch {
	case ae.Kind == KindNetwork || ae.Kind == KindUnavailable:
		code = apperrors.ErrCodeUnavailable
	case ae.Kind == KindAccessDenied:
		code = apperrors.ErrCodeForbidden
	case ae.Kind == KindValidation:
		code = apperrors.ErrCodeValidation
	case ports.StatusCode(err) == http.StatusNotFound:
		code = apperrors.ErrCodeNotFound
		ae.Message = orDefault(statusMessage(err), "Not found")
	}
	return apperrors.Wrap(fmt.Errorf("%s: %w", action, err), code, ae.Message)
}

func statusMessage(err error) string {
	var se *ports.StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

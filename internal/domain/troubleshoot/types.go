// Package troubleshoot holds the diagnosis, history and booking shapes exchanged
// with the remote API, plus the small pure transformations the pages need.
package troubleshoot

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/target/laptopdoc/internal/domain/auth"
)

// ID is a remote identifier encoded as a JSON number or string.
type ID string

// UnmarshalJSON accepts both quoted and numeric identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	var u auth.UserID
	if err := u.UnmarshalJSON(data); err != nil {
		return err
	}
	*id = ID(u)
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp tolerates the zone-less timestamps some API serializers emit.
// Unparsable values decode to the zero time rather than failing the payload.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses RFC 3339 and naive (UTC) timestamps.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if json.Unmarshal(data, &s) != nil {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// Brands lists the laptop brands offered on the diagnosis form.
var Brands = []string{"Dell", "HP", "Lenovo", "ASUS", "Acer", "Apple", "MSI", "Other"}

// EstimatedTime is shown on every generated diagnosis.
const EstimatedTime = "30-60 minutes"

// Step is one ordered troubleshooting instruction.
type Step struct {
	ID          ID     `json:"id"`
	StepNumber  int    `json:"step_number"`
	Instruction string `json:"instruction" validate:"required"`
	Completed   bool   `json:"completed"`
}

// Problem is a submitted diagnosis with the steps the API generated for it.
type Problem struct {
	ID          ID         `json:"id"                   validate:"required"`
	LaptopBrand string     `json:"laptop_brand"`
	LaptopModel string     `json:"laptop_model"`
	Description string     `json:"description"`
	CreatedAt   *Timestamp `json:"created_at,omitempty"`
	Solved      bool       `json:"solved"`
	Steps       []Step     `json:"steps"                validate:"dive"`
}

// DiagnosisRequest is the body of POST /troubleshoot/.
type DiagnosisRequest struct {
	LaptopBrand string `json:"laptop_brand"`
	LaptopModel string `json:"laptop_model"`
	Description string `json:"description"`
}

// Engineer is a technician available for booking.
type Engineer struct {
	ID          ID     `json:"id"           validate:"required"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ServiceTime string `json:"service_time"`
	PictureURL  string `json:"picture_url"`
}

// BookingRequest is the body of POST /troubleshoot/bookings.
type BookingRequest struct {
	ProblemID     string    `json:"problem_id"`
	EngineerID    string    `json:"engineer_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// BookingProblem is the problem summary embedded in engineer bookings.
type BookingProblem struct {
	LaptopBrand string `json:"laptop_brand"`
	LaptopModel string `json:"laptop_model"`
	Description string `json:"description"`
}

// BookingUser is the customer summary embedded in engineer bookings.
type BookingUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Booking is a scheduled technician visit.
type Booking struct {
	ID            ID              `json:"id"                validate:"required"`
	UserID        ID              `json:"user_id"`
	EngineerID    ID              `json:"engineer_id"`
	ProblemID     ID              `json:"problem_id"`
	ScheduledTime string          `json:"scheduled_time"`
	Confirmed     bool            `json:"confirmed"`
	Message       string          `json:"message,omitempty"`
	Problem       *BookingProblem `json:"problem,omitempty"`
	User          *BookingUser    `json:"user,omitempty"`
}

// ConfirmRequest is the body of PATCH /troubleshoot/bookings/{id}/confirm.
type ConfirmRequest struct {
	Confirmed bool   `json:"confirmed"`
	Message   string `json:"message,omitempty"`
}

// Diagnosis is the display form of a problem.
type Diagnosis struct {
	ProblemID     string
	Problem       string
	Cause         string
	Solution      []string
	EstimatedTime string
}

// RecentDiagnosis is a compact entry remembered per browser session.
type RecentDiagnosis struct {
	ProblemID   string    `json:"problem_id"`
	LaptopBrand string    `json:"laptop_brand"`
	LaptopModel string    `json:"laptop_model"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsKnownBrand reports whether brand is one of Brands.
func IsKnownBrand(brand string) bool {
	for _, b := range Brands {
		if strings.EqualFold(b, brand) {
			return true
		}
	}
	return false
}

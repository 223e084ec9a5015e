package troubleshoot

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ToDiagnosis turns an API problem into its display form. Steps are ordered by step number.
func ToDiagnosis(p Problem) Diagnosis {
	steps := append([]Step(nil), p.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })

	solution := make([]string, 0, len(steps))
	for _, s := range steps {
		if text := strings.TrimSpace(s.Instruction); text != "" {
			solution = append(solution, text)
		}
	}
	return Diagnosis{
		ProblemID:     string(p.ID),
		Problem:       fmt.Sprintf("Issue with %s %s", p.LaptopBrand, p.LaptopModel),
		Cause:         p.Description,
		Solution:      solution,
		EstimatedTime: EstimatedTime,
	}
}

// ToRecent builds the remembered entry for p.
func ToRecent(p Problem, now time.Time) RecentDiagnosis {
	created := now
	if p.CreatedAt != nil && !p.CreatedAt.IsZero() {
		created = p.CreatedAt.Time
	}
	return RecentDiagnosis{
		ProblemID:   string(p.ID),
		LaptopBrand: p.LaptopBrand,
		LaptopModel: p.LaptopModel,
		Summary:     truncate(p.Description, 120),
		CreatedAt:   created,
	}
}

// CompletionPercent is the share of completed steps, rounded down.
func (p Problem) CompletionPercent() int {
	if len(p.Steps) == 0 {
		if p.Solved {
			return 100
		}
		return 0
	}
	done := 0
	for _, s := range p.Steps {
		if s.Completed {
			done++
		}
	}
	return done * 100 / len(p.Steps)
}

// HistoryFilter selects problems on the history page.
type HistoryFilter string

const (
	FilterAll     HistoryFilter = "all"
	FilterSolved  HistoryFilter = "solved"
	FilterPending HistoryFilter = "pending"
)

// ParseHistoryFilter defaults unknown values to FilterAll.
func ParseHistoryFilter(s string) HistoryFilter {
	switch HistoryFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterSolved:
		return FilterSolved
	case FilterPending:
		return FilterPending
	default:
		return FilterAll
	}
}

// FilterProblems applies the status filter and a case-insensitive search over
// brand, model and description. The input order is preserved.
func FilterProblems(problems []Problem, filter HistoryFilter, search string) []Problem {
	q := strings.ToLower(strings.TrimSpace(search))
	out := make([]Problem, 0, len(problems))
	for _, p := range problems {
		switch filter {
		case FilterSolved:
			if !p.Solved {
				continue
			}
		case FilterPending:
			if p.Solved {
				continue
			}
		}
		if q != "" && !matches(p, q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// HistoryCounts summarises problems for the filter tabs.
type HistoryCounts struct {
	All     int
	Solved  int
	Pending int
}

// CountProblems counts problems by status.
func CountProblems(problems []Problem) HistoryCounts {
	c := HistoryCounts{All: len(problems)}
	for _, p := range problems {
		if p.Solved {
			c.Solved++
		} else {
			c.Pending++
		}
	}
	return c
}

// SplitBookings separates pending and confirmed bookings, preserving order.
func SplitBookings(bookings []Booking) (pending, confirmed []Booking) {
	for _, b := range bookings {
		if b.Confirmed {
			confirmed = append(confirmed, b)
		} else {
			pending = append(pending, b)
		}
	}
	return pending, confirmed
}

func matches(p Problem, q string) bool {
	return strings.Contains(strings.ToLower(p.LaptopBrand), q) ||
		strings.Contains(strings.ToLower(p.LaptopModel), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

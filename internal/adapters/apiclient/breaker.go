package apiclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/target/laptopdoc/internal/observability/metrics"
)

// BreakerSettings configures the circuit breaker in front of the remote API.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// errServerFailure marks a 5xx for the breaker; the response itself is
// still handed back to the caller.
var errServerFailure = errors.New("server error")

type breaker struct {
	cb *gobreaker.CircuitBreaker[*http.Response]
}

func newBreaker(s BreakerSettings, m *metrics.Metrics, logger *slog.Logger) *breaker {
	name := s.Name
	if name == "" {
		name = "api"
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			m.SetBreakerState(name, stateToFloat(to))
		},
	}
	m.SetBreakerState(name, 0)
	return &breaker{cb: gobreaker.NewCircuitBreaker[*http.Response](settings)}
}

func (b *breaker) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, fmt.Errorf("%w: %d", errServerFailure, resp.StatusCode)
		}
		return resp, nil
	})
	if errors.Is(err, errServerFailure) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (b *breaker) state() gobreaker.State { return b.cb.State() }

// stateToFloat maps gobreaker states to gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

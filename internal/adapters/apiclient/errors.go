package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/sony/gobreaker/v2"

	"github.com/target/laptopdoc/internal/ports"
)

// messageExprs are tried in order; the first string result wins.
var messageExprs = []string{
	"message",
	"detail",
	"error.message",
	"error",
	"msg",
}

// fieldListExprs normalise list-shaped field errors to [{field, message}].
var fieldListExprs = []string{
	"errors[].{field: field || param || path, message: message || msg}",
	"detail[].{field: loc[-1], message: msg}",
}

// ParseErrorBody extracts a human message and per-field errors from an API
// error body. Unknown shapes yield empty results.
func ParseErrorBody(body []byte) (string, map[string]string) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", nil
	}
	if _, ok := data.(map[string]any); !ok {
		return "", nil
	}

	var message string
	for _, expr := range messageExprs {
		if v, err := jmespath.Search(expr, data); err == nil {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				message = strings.TrimSpace(s)
				break
			}
		}
	}

	fields := fieldsFromLists(data)
	if len(fields) == 0 {
		fields = fieldsFromMap(data)
	}
	return message, fields
}

func fieldsFromLists(data any) map[string]string {
	fields := map[string]string{}
	for _, expr := range fieldListExprs {
		v, err := jmespath.Search(expr, data)
		if err != nil {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			field := scalarString(m["field"])
			msg := scalarString(m["message"])
			if field == "" || msg == "" {
				continue
			}
			if _, seen := fields[field]; !seen {
				fields[field] = msg
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// fieldsFromMap handles {"errors": {"email": "..."}} and {"errors": {"email": ["..."]}}.
func fieldsFromMap(data any) map[string]string {
	v, err := jmespath.Search("errors", data)
	if err != nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	fields := map[string]string{}
	for k, raw := range m {
		switch val := raw.(type) {
		case string:
			if val != "" {
				fields[k] = val
			}
		case []any:
			if len(val) > 0 {
				if s := scalarString(val[0]); s != "" {
					fields[k] = s
				}
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64, bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

func newNetworkError(method, path string, err error) *ports.NetworkError {
	ne := &ports.NetworkError{Method: method, Path: path, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		ne.Timeout = true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		ne.Timeout = true
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		ne.Err = fmt.Errorf("circuit open: %w", err)
	}
	return ne
}

package auth

// Package auth contains hand-written test doubles for the remote API port.
// They are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/target/laptopdoc/internal/ports"
)

// Ensure compile-time conformance to ports.
var _ ports.APIClient = (*FakeAPI)(nil)

// Responder produces the response for one request. The returned value is
// JSON round-tripped into the caller's out so decoding matches the real client.
type Responder func(ctx context.Context, req ports.APIRequest) (any, error)

// Call records one request seen by FakeAPI.
type Call struct {
	Method      string
	Path        string
	Credentials ports.CredentialMode
	Token       string
	Body        any
}

// FakeAPI routes requests by "METHOD path" to responders and records every call.
type FakeAPI struct {
	mu     sync.Mutex
	routes map[string]Responder
	calls  []Call
}

// NewFakeAPI creates an empty FakeAPI. Unrouted requests get a 404 StatusError.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{routes: make(map[string]Responder)}
}

// Handle registers fn for method and path, replacing any previous responder.
func (f *FakeAPI) Handle(method, path string, fn Responder) *FakeAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
	return f
}

// Respond registers a fixed successful response.
func (f *FakeAPI) Respond(method, path string, v any) *FakeAPI {
	return f.Handle(method, path, func(context.Context, ports.APIRequest) (any, error) { return v, nil })
}

// Fail registers a fixed error.
func (f *FakeAPI) Fail(method, path string, err error) *FakeAPI {
	return f.Handle(method, path, func(context.Context, ports.APIRequest) (any, error) { return nil, err })
}

func (f *FakeAPI) Do(ctx context.Context, req ports.APIRequest, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	call := Call{Method: method, Path: req.Path, Credentials: req.Credentials, Body: req.Body}
	if req.Token != nil {
		call.Token = req.Token.AccessToken
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	fn, ok := f.routes[method+" "+req.Path]
	f.mu.Unlock()

	if !ok {
		return ports.NewStatusError(method, req.Path, http.StatusNotFound, false)
	}
	v, err := fn(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || v == nil {
		return nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fake api marshal: %w", err)
	}
	return json.Unmarshal(buf, out)
}

// Calls returns a copy of the recorded calls.
func (f *FakeAPI) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how many times method and path were requested.
func (f *FakeAPI) CallCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// StatusErr builds a StatusError with a message and optional field errors.
func StatusErr(method, path string, status int, message string, fields map[string]string) *ports.StatusError {
	se := ports.NewStatusError(method, path, status, false)
	se.Message = message
	se.FieldErrors = fields
	return se
}

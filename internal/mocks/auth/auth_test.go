package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/target/laptopdoc/internal/ports"
)

func TestFakeAPI_RoutesAndRecords(t *testing.T) {
	api := NewFakeAPI().
		Respond(http.MethodGet, "/auth/me", map[string]any{"id": 7, "name": "Ada"}).
		Fail(http.MethodPost, "/auth/logout", errors.New("boom"))

	var out struct {
		Name string `json:"name"`
	}
	err := api.Do(context.Background(), ports.APIRequest{
		Path:        "/auth/me",
		Credentials: ports.CredentialsExplicit,
		Token:       &oauth2.Token{AccessToken: "tok"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Ada", out.Name)

	err = api.Do(context.Background(), ports.APIRequest{Method: http.MethodPost, Path: "/auth/logout"}, nil)
	assert.EqualError(t, err, "boom")

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "tok", calls[0].Token)
	assert.Equal(t, 1, api.CallCount(http.MethodGet, "/auth/me"))
}

func TestFakeAPI_Unrouted(t *testing.T) {
	err := NewFakeAPI().Do(context.Background(), ports.APIRequest{Path: "/nope"}, nil)
	assert.Equal(t, http.StatusNotFound, ports.StatusCode(err))
}

func TestStatusErr(t *testing.T) {
	se := StatusErr(http.MethodPost, "/auth/register", 422, "bad", map[string]string{"email": "taken"})
	assert.Equal(t, 422, se.Status)
	assert.Equal(t, "taken", se.FieldErrors["email"])
	assert.False(t, se.SessionExpired())
}

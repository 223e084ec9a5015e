package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/domain/troubleshoot"
)

func testRecord() domainauth.CredentialRecord {
	return domainauth.NewCredentialRecord("tok-123", "Bearer", domainauth.User{
		ID: "1", Name: "Jo", Email: "jo@x.com", Role: domainauth.RoleEngineer,
	})
}

func TestCredentialStore_SaveReadRoundTrip(t *testing.T) {
	store := NewCredentialStore(time.Hour)
	ctx := context.Background()

	rec := testRecord()
	require.NoError(t, store.Save(ctx, "sid-1", rec))

	got, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)

	// Overwrite replaces every field.
	next := domainauth.NewCredentialRecord("tok-456", "MAC", domainauth.User{ID: "2", Role: domainauth.RoleUser})
	require.NoError(t, store.Save(ctx, "sid-1", next))
	got, err = store.Read(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, next, *got)
}

func TestCredentialStore_ReadAbsentIsNil(t *testing.T) {
	store := NewCredentialStore(time.Hour)

	got, err := store.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Read(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentialStore_ClearIsIdempotent(t *testing.T) {
	store := NewCredentialStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "sid-1", testRecord()))

	require.NoError(t, store.Clear(ctx, "sid-1"))
	require.NoError(t, store.Clear(ctx, "sid-1"))

	got, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestCredentialStore_PartialRecordReadsAsAbsent(t *testing.T) {
	store := NewCredentialStore(time.Hour)
	ctx := context.Background()

	partial := testRecord()
	partial.IsLoggedIn = false
	require.NoError(t, store.Save(ctx, "sid-1", partial))

	got, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentialStore_Expiry(t *testing.T) {
	store := NewCredentialStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-1", testRecord()))

	now = now.Add(2 * time.Minute)
	got, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestCredentialStore_RejectsEmptySessionID(t *testing.T) {
	store := NewCredentialStore(time.Hour)
	assert.Error(t, store.Save(context.Background(), "", testRecord()))
}

func TestRecentStore_PushTrimsNewestFirst(t *testing.T) {
	store := NewRecentStore()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, store.Push(ctx, "sid", troubleshoot.RecentDiagnosis{ProblemID: id}, 2))
	}

	list, err := store.List(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].ProblemID)
	assert.Equal(t, "2", list[1].ProblemID)

	empty, err := store.List(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

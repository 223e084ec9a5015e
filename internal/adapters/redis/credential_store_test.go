package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/domain/troubleshoot"
	"github.com/target/laptopdoc/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func engineerRecord() domainauth.CredentialRecord {
	return domainauth.NewCredentialRecord("tok-123", "Bearer", domainauth.User{
		ID: "1", Name: "Jo", Email: "jo@x.com", Role: domainauth.RoleEngineer,
	})
}

func TestCredentialStore_SaveAndRead(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStoreWithPrefix(client, "test-credentials:", time.Hour)
	ctx := context.Background()

	rec := engineerRecord()
	require.NoError(t, store.Save(ctx, "sid-1", rec))

	got, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec, *got)

	ttl, err := client.TTL(ctx, "test-credentials:sid-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, store.Clear(ctx, "sid-1"))
}

func TestCredentialStore_SaveReplacesWholeRecord(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStoreWithPrefix(client, "test-credentials:", time.Hour)
	ctx := context.Background()

	require.NoError(t, client.HSet(ctx, "test-credentials:sid-2", fieldExpiresAt, "2000-01-01T00:00:00Z").Err())
	require.NoError(t, store.Save(ctx, "sid-2", engineerRecord()))

	exists, err := client.HExists(ctx, "test-credentials:sid-2", fieldExpiresAt).Result()
	require.NoError(t, err)
	assert.False(t, exists, "stale fields must not survive a save")

	require.NoError(t, store.Clear(ctx, "sid-2"))
}

func TestCredentialStore_ClearTwiceThenRead(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStoreWithPrefix(client, "test-credentials:", time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sid-3", engineerRecord()))
	require.NoError(t, store.Clear(ctx, "sid-3"))
	require.NoError(t, store.Clear(ctx, "sid-3"))

	got, err := store.Read(ctx, "sid-3")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentialStore_ReadNonExistent(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewCredentialStore(client, time.Hour)
	got, err := store.Read(context.Background(), "non-existent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeRecord_FailsSoft(t *testing.T) {
	valid := map[string]string{
		fieldToken:      "tok",
		fieldTokenType:  "Bearer",
		fieldUser:       `{"id":"1","name":"Jo","email":"jo@x.com","role":"user"}`,
		fieldIsLoggedIn: "true",
	}
	require.NotNil(t, decodeRecord(valid))

	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{name: "empty hash", mutate: func(m map[string]string) { clear(m) }},
		{name: "flag missing", mutate: func(m map[string]string) { delete(m, fieldIsLoggedIn) }},
		{name: "flag false", mutate: func(m map[string]string) { m[fieldIsLoggedIn] = "false" }},
		{name: "token missing", mutate: func(m map[string]string) { delete(m, fieldToken) }},
		{name: "user missing", mutate: func(m map[string]string) { delete(m, fieldUser) }},
		{name: "user malformed", mutate: func(m map[string]string) { m[fieldUser] = "{not json" }},
		{name: "user without id", mutate: func(m map[string]string) { m[fieldUser] = `{"name":"Jo"}` }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]string{}
			for k, v := range valid {
				values[k] = v
			}
			tt.mutate(values)
			assert.Nil(t, decodeRecord(values))
		})
	}
}

func TestDecodeRecord_DefaultsTokenType(t *testing.T) {
	rec := decodeRecord(map[string]string{
		fieldToken:      "tok",
		fieldUser:       `{"id":2,"role":"admin"}`,
		fieldIsLoggedIn: "true",
		fieldExpiresAt:  "2030-01-01T00:00:00Z",
	})
	require.NotNil(t, rec)
	assert.Equal(t, domainauth.DefaultTokenType, rec.TokenType)
	assert.Equal(t, domainauth.UserID("2"), rec.User.ID)
	assert.Equal(t, 2030, rec.ExpiresAt.Year())
}

func TestRecentStore_PushAndList(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewRecentStore(client, time.Hour)
	store.prefix = "test-recent:"
	ctx := context.Background()
	defer client.Del(ctx, "test-recent:sid")

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, store.Push(ctx, "sid", troubleshoot.RecentDiagnosis{ProblemID: id}, 2))
	}

	list, err := store.List(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].ProblemID)
	assert.Equal(t, "2", list[1].ProblemID)
}

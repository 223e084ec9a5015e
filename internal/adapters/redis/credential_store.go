package redis

// Package redis provides Redis-based adapters for laptopdoc.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

// Hash fields of a credential record. They mirror the names the browser
// client historically kept in local storage.
const (
	fieldToken      = "authToken"
	fieldTokenType  = "tokenType"
	fieldUser       = "user"
	fieldIsLoggedIn = "isLoggedIn"
	fieldExpiresAt  = "expiresAt"
)

// CredentialStore keeps one hash per browser session. Writes replace the hash
// inside a MULTI/EXEC transaction so a reader never sees a mixed record.
type CredentialStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCredentialStore creates a Redis credential store with the default "credentials:" prefix.
func NewCredentialStore(client redis.UniversalClient, ttl time.Duration) *CredentialStore {
	return NewCredentialStoreWithPrefix(client, "credentials:", ttl)
}

// NewCredentialStoreWithPrefix creates a Redis credential store with a custom key prefix.
func NewCredentialStoreWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *CredentialStore {
	return &CredentialStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *CredentialStore) Save(ctx context.Context, sid string, rec domainauth.CredentialRecord) error {
	if sid == "" {
		return errors.New("session ID cannot be empty")
	}

	user, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	ttl := rec.TTL(time.Now(), s.ttl)
	if !rec.ExpiresAt.IsZero() && ttl <= 0 {
		return errors.New("credential record is expired")
	}

	fields := map[string]any{
		fieldToken:     rec.Token,
		fieldTokenType: rec.TokenType,
		fieldUser:      string(user),
	}
	if rec.IsLoggedIn {
		fields[fieldIsLoggedIn] = "true"
	}
	if !rec.ExpiresAt.IsZero() {
		fields[fieldExpiresAt] = rec.ExpiresAt.UTC().Format(time.RFC3339)
	}

	key := s.prefix + sid
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) Read(ctx context.Context, sid string) (*domainauth.CredentialRecord, error) {
	if sid == "" {
		return nil, nil
	}

	values, err := s.client.HGetAll(ctx, s.prefix+sid).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis read credentials: %w", err)
	}
	return decodeRecord(values), nil
}

func (s *CredentialStore) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return nil // Nothing to clear
	}
	if err := s.client.Del(ctx, s.prefix+sid).Err(); err != nil {
		return fmt.Errorf("redis clear credentials: %w", err)
	}
	return nil
}

// decodeRecord fails soft: any missing or malformed field yields nil.
func decodeRecord(values map[string]string) *domainauth.CredentialRecord {
	if values[fieldIsLoggedIn] != "true" {
		return nil
	}
	token := values[fieldToken]
	rawUser := values[fieldUser]
	if token == "" || rawUser == "" {
		return nil
	}

	var user domainauth.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil
	}

	rec := domainauth.CredentialRecord{
		Token:      token,
		TokenType:  values[fieldTokenType],
		User:       user,
		IsLoggedIn: true,
	}
	if rec.TokenType == "" {
		rec.TokenType = domainauth.DefaultTokenType
	}
	if raw := values[fieldExpiresAt]; raw != "" {
		if exp, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.ExpiresAt = exp
		}
	}
	if !rec.Valid() {
		return nil
	}
	return &rec
}

// Package postgres provides a PostgreSQL-backed credential store for
// deployments that want credential records to survive cache flushes.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

// ErrSchemaMissing is returned when the credential_records table does not exist.
var ErrSchemaMissing = errors.New("credential_records table missing; run migrations")

// defaultRetention applies when neither the store nor the token bound the record.
const defaultRetention = 30 * 24 * time.Hour

// CredentialStore keeps one row per browser session. Save is a single UPSERT,
// so the record is replaced as a unit.
type CredentialStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCredentialStore creates a PostgreSQL credential store.
func NewCredentialStore(db *sql.DB, ttl time.Duration) *CredentialStore {
	return &CredentialStore{db: db, ttl: ttl, now: time.Now}
}

func (s *CredentialStore) Save(ctx context.Context, sid string, rec domainauth.CredentialRecord) error {
	if sid == "" {
		return errors.New("session ID cannot be empty")
	}
	user, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	now := s.now()
	ttl := rec.TTL(now, s.ttl)
	if ttl <= 0 {
		if !rec.ExpiresAt.IsZero() {
			return errors.New("credential record is expired")
		}
		ttl = defaultRetention
	}

	var tokenExpiry sql.NullTime
	if !rec.ExpiresAt.IsZero() {
		tokenExpiry = sql.NullTime{Time: rec.ExpiresAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credential_records
			(session_id, auth_token, token_type, user_json, is_logged_in, token_expires_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			auth_token = EXCLUDED.auth_token,
			token_type = EXCLUDED.token_type,
			user_json = EXCLUDED.user_json,
			is_logged_in = EXCLUDED.is_logged_in,
			token_expires_at = EXCLUDED.token_expires_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		sid, rec.Token, rec.TokenType, string(user), rec.IsLoggedIn, tokenExpiry, now.Add(ttl), now,
	)
	if err != nil {
		return fmt.Errorf("save credentials: %w", mapPgError(err))
	}
	return nil
}

func (s *CredentialStore) Read(ctx context.Context, sid string) (*domainauth.CredentialRecord, error) {
	if sid == "" {
		return nil, nil
	}

	var (
		token, tokenType, rawUser string
		loggedIn                  bool
		tokenExpiry               sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT auth_token, token_type, user_json, is_logged_in, token_expires_at
		FROM credential_records
		WHERE session_id = $1 AND expires_at > $2`,
		sid, s.now(),
	).Scan(&token, &tokenType, &rawUser, &loggedIn, &tokenExpiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", mapPgError(err))
	}

	if !loggedIn {
		return nil, nil
	}
	var user domainauth.User
	if json.Unmarshal([]byte(rawUser), &user) != nil {
		return nil, nil
	}
	rec := domainauth.CredentialRecord{
		Token:      token,
		TokenType:  tokenType,
		User:       user,
		IsLoggedIn: true,
	}
	if tokenExpiry.Valid {
		rec.ExpiresAt = tokenExpiry.Time
	}
	if !rec.Valid() {
		return nil, nil
	}
	return &rec, nil
}

func (s *CredentialStore) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credential_records WHERE session_id = $1`, sid); err != nil {
		return fmt.Errorf("clear credentials: %w", mapPgError(err))
	}
	return nil
}

// PurgeExpired deletes rows past their retention and returns how many were removed.
func (s *CredentialStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credential_records WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge credentials: %w", mapPgError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge credentials rows affected: %w", err)
	}
	return n, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, pgErr.Message)
	}
	return err
}

package auth

// Package auth contains domain-level types for authentication, sessions and
// route gating. It is pure and free of framework/adapter concerns.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and comparison with API payloads.
type Role string

const (
	RoleUser     Role = "user"
	RoleEngineer Role = "engineer"
	RoleAdmin    Role = "admin"
)

// AllRoles lists every role a remote profile may carry.
func AllRoles() []Role {
	return []Role{RoleUser, RoleEngineer, RoleAdmin}
}

// ParseRole normalises a role string. Unknown roles return false.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleEngineer, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// UserID is the remote user identifier. The API may encode it as a JSON
// number or string; it is always kept as a string.
type UserID string

// UnmarshalJSON accepts both quoted and numeric identifiers.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// User is the denormalized profile snapshot kept with a credential record.
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// HasRole reports whether the user carries one of roles.
func (u User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// DefaultTokenType is used when the API omits token_type.
const DefaultTokenType = "Bearer"

// CredentialRecord is the persisted unit of identity for one browser session.
// Token, TokenType and User are written and cleared together.
type CredentialRecord struct {
	Token      string
	TokenType  string
	User       User
	IsLoggedIn bool
	// ExpiresAt is the unverified JWT expiry of Token, zero for opaque tokens.
	ExpiresAt time.Time
}

// NewCredentialRecord builds a logged-in record and derives its expiry from the token.
func NewCredentialRecord(token, tokenType string, user User) CredentialRecord {
	if strings.TrimSpace(tokenType) == "" {
		tokenType = DefaultTokenType
	}
	exp, _ := TokenExpiry(token)
	return CredentialRecord{
		Token:      token,
		TokenType:  tokenType,
		User:       user,
		IsLoggedIn: true,
		ExpiresAt:  exp,
	}
}

// Valid reports whether the record satisfies the logged-in invariant.
func (r CredentialRecord) Valid() bool {
	return r.IsLoggedIn && r.Token != "" && r.User.ID != ""
}

// Expired reports whether the token's own expiry has passed.
func (r CredentialRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// TTL returns how long the record should be retained, capped by the token expiry.
func (r CredentialRecord) TTL(now time.Time, maxTTL time.Duration) time.Duration {
	if r.ExpiresAt.IsZero() {
		return maxTTL
	}
	until := r.ExpiresAt.Sub(now)
	if maxTTL > 0 && until > maxTTL {
		return maxTTL
	}
	return until
}

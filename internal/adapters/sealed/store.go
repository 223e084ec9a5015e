// Package sealed wraps a credential store so bearer tokens are encrypted at rest.
package sealed

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
	"github.com/target/laptopdoc/internal/ports"
)

// Versioned prefix to allow future key/algorithm rotations without data migrations.
const cipherPrefixV1 = "v1:"

// Store seals CredentialRecord.Token with AES-256-GCM before delegating to the
// wrapped store. The browser session id is bound as additional data, so a
// sealed token copied into another session fails to open.
type Store struct {
	next ports.CredentialStore
	aead cipher.AEAD
}

// ParseKey accepts a 32-byte raw key or its standard base64 encoding.
func ParseKey(raw string) ([]byte, error) {
	if len(raw) == 32 {
		return []byte(raw), nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode credential key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// New wraps next with token sealing under key.
func New(next ports.CredentialStore, key []byte) (*Store, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Store{next: next, aead: aead}, nil
}

func (s *Store) Save(ctx context.Context, sid string, rec domainauth.CredentialRecord) error {
	sealedToken, err := s.seal(sid, rec.Token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	rec.Token = sealedToken
	return s.next.Save(ctx, sid, rec)
}

// Read returns nil for records whose token cannot be opened, e.g. after a key change.
func (s *Store) Read(ctx context.Context, sid string) (*domainauth.CredentialRecord, error) {
	rec, err := s.next.Read(ctx, sid)
	if err != nil || rec == nil {
		return rec, err
	}
	token, err := s.open(sid, rec.Token)
	if err != nil {
		return nil, nil
	}
	rec.Token = token
	return rec, nil
}

func (s *Store) Clear(ctx context.Context, sid string) error {
	return s.next.Clear(ctx, sid)
}

func (s *Store) seal(sid, plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := s.aead.Seal(nil, nonce, []byte(plaintext), []byte(sid))
	// Store nonce||ciphertext
	buf := make([]byte, 0, len(nonce)+len(ct))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return cipherPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

func (s *Store) open(sid, sealedToken string) (string, error) {
	if !strings.HasPrefix(sealedToken, cipherPrefixV1) {
		return "", errors.New("unknown token cipher version")
	}
	data, err := base64.StdEncoding.DecodeString(sealedToken[len(cipherPrefixV1):])
	if err != nil {
		return "", err
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(sid))
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// TokenBytes is the amount of entropy in an issued token. The wire form
// is its lowercase hex encoding.
const TokenBytes = 32

var (
	// ErrNotFound is returned when no live session matches a token.
	ErrNotFound = errors.New("session: not found")
	// ErrExpired is returned when the matching session is past its expiry.
	ErrExpired = errors.New("session: expired")
	// ErrMalformedToken is returned for tokens that could never have been issued.
	ErrMalformedToken = errors.New("session: malformed token")
	// ErrTokenCollision is returned by repositories when a token hash already exists.
	ErrTokenCollision = errors.New("session: token collision")
)

// Session binds a bearer token to an identity until ExpiresAt.
// Only the SHA-256 of the token is persisted.
type Session struct {
	ID         string    `json:"id"`
	TokenHash  string    `json:"-"`
	IdentityID int64     `json:"identityId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

// Meta carries request attributes recorded with a new session.
type Meta struct {
	IP        string
	UserAgent string
}

// Issued is returned once, at login. Token is the only copy of the secret.
type Issued struct {
	Session
	Token string `json:"token"`
}

// LiveAt reports whether the session is usable at t. A session is dead
// at exactly ExpiresAt.
func (s Session) LiveAt(t time.Time) bool {
	return t.Before(s.ExpiresAt)
}

// NewToken returns a fresh random token in wire form.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the storage key for a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// WellFormed reports whether token has the shape of an issued token.
func WellFormed(token string) bool {
	if len(token) != TokenBytes*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

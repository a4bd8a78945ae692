package storage

import (
	"context"
	"math/big"
	"time"
)

// Identity is a registered user's public record.
// It is created once by registration and never mutated afterwards.
type Identity struct {
	UserID            string    `json:"user_id" db:"user_id"`
	VerificationValue *big.Int  `json:"-" db:"verification_value"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Session is a time-bounded credential issued after a successful proof.
// At most one session is stored per user.
type Session struct {
	UserID    string    `json:"user_id" db:"user_id"`
	TokenID   string    `json:"token_id" db:"token_id"`
	IssuedAt  time.Time `json:"issued_at" db:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
// A session expiring exactly at now is already expired.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IdentityStore defines the interface for identity storage
type IdentityStore interface {
	// CreateIdentity registers a user. It fails with zkerr.ErrAlreadyRegistered
	// when the user ID exists; the check and insert are atomic.
	CreateIdentity(ctx context.Context, userID string, verificationValue *big.Int) error

	// GetIdentity retrieves an identity, or zkerr.ErrUnknownUser
	GetIdentity(ctx context.Context, userID string) (*Identity, error)

	// ListIdentities returns all identities (for admin purposes)
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// SessionStore defines the interface for session storage
type SessionStore interface {
	// PutSession stores a session, replacing any prior session for the user
	PutSession(ctx context.Context, session *Session) error

	// GetSession retrieves the user's session, or zkerr.ErrNoActiveSession
	GetSession(ctx context.Context, userID string) (*Session, error)

	// DeleteSession removes the user's session, or fails with zkerr.ErrNoActiveSession
	DeleteSession(ctx context.Context, userID string) error

	// DeleteSessionToken removes the user's session only if it still carries
	// tokenID, reporting whether anything was removed
	DeleteSessionToken(ctx context.Context, userID, tokenID string) (bool, error)

	// CleanupExpiredSessions removes sessions expired at now and returns how many
	CleanupExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// Stats holds storage counters for monitoring
type Stats struct {
	Identities int `json:"identities"`
	Sessions   int `json:"sessions"`
}

// Store combines all storage interfaces
type Store interface {
	IdentityStore
	SessionStore

	// Stats returns storage counters
	Stats(ctx context.Context) (Stats, error)

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is healthy
	Ping(ctx context.Context) error
}

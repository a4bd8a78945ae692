// Package session issues, validates and revokes the credentials handed out
// after a successful proof. A user holds at most one session at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// DefaultTTL is the lifetime of an issued session.
const DefaultTTL = time.Hour

// Manager owns the session lifecycle on top of a SessionStore.
type Manager struct {
	store  storage.SessionStore
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager.
func NewManager(store storage.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for userID with an unpredictable token ID,
// superseding any session the user already holds.
func (m *Manager) Issue(ctx context.Context, userID string) (*storage.Session, error) {
	tokenID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token id: %w", err)
	}

	now := m.now()
	s := &storage.Session{
		UserID:    userID,
		TokenID:   tokenID.String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.PutSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	m.logger.Info(ctx, "session issued", "user_id", userID, "expires_at", s.ExpiresAt.Unix())
	return s, nil
}

// Validate reports whether tokenID is the user's current, unexpired session.
// Any mismatch, absence, expiry or storage fault yields false. An expired
// session is removed on the way out.
func (m *Manager) Validate(ctx context.Context, userID, tokenID string) bool {
	s, err := m.store.GetSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, zkerr.ErrNoActiveSession) {
			m.logger.Error(ctx, "session lookup failed", "user_id", userID, "error", err)
		}
		return false
	}

	if s.TokenID != tokenID {
		return false
	}

	if s.Expired(m.now()) {
		// Conditional on the token so a concurrently issued session survives
		if _, err := m.store.DeleteSessionToken(ctx, userID, s.TokenID); err != nil {
			m.logger.Error(ctx, "failed to drop expired session", "user_id", userID, "error", err)
		}
		return false
	}

	return true
}

// Revoke removes the user's session, failing with zkerr.ErrNoActiveSession
// when there is none.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.store.DeleteSession(ctx, userID); err != nil {
		if errors.Is(err, zkerr.ErrNoActiveSession) {
			return err
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	m.logger.Info(ctx, "session revoked", "user_id", userID)
	return nil
}

// Purge removes every expired session and returns how many were dropped.
func (m *Manager) Purge(ctx context.Context) (int, error) {
	n, err := m.store.CleanupExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return n, nil
}

// Run purges expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Purge(ctx)
			if err != nil {
				m.logger.Error(ctx, "session purge failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Debug(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}

package storage

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// MemoryStore implements the Store interface using in-memory storage.
// This is suitable for development and testing; state is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]*Identity
	sessions   map[string]*Session
	now        func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[string]*Identity),
		sessions:   make(map[string]*Session),
		now:        time.Now,
	}
}

// CreateIdentity registers a new user
func (s *MemoryStore) CreateIdentity(_ context.Context, userID string, verificationValue *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[userID]; exists {
		return zkerr.ErrAlreadyRegistered
	}

	s.identities[userID] = &Identity{
		UserID:            userID,
		VerificationValue: new(big.Int).Set(verificationValue),
		CreatedAt:         s.now(),
	}

	return nil
}

// GetIdentity retrieves an identity by user ID
func (s *MemoryStore) GetIdentity(_ context.Context, userID string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, exists := s.identities[userID]
	if !exists {
		return nil, zkerr.ErrUnknownUser
	}

	return copyIdentity(identity), nil
}

// ListIdentities returns all identities ordered by registration time
func (s *MemoryStore) ListIdentities(_ context.Context) ([]Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identities := make([]Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		identities = append(identities, *copyIdentity(identity))
	}

	sort.Slice(identities, func(i, j int) bool {
		if identities[i].CreatedAt.Equal(identities[j].CreatedAt) {
			return identities[i].UserID < identities[j].UserID
		}
		return identities[i].CreatedAt.Before(identities[j].CreatedAt)
	})

	return identities, nil
}

// PutSession stores a session, superseding any prior one for the user
func (s *MemoryStore) PutSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid race conditions
	sessionCopy := *session
	s.sessions[session.UserID] = &sessionCopy

	return nil
}

// GetSession retrieves a user's session
func (s *MemoryStore) GetSession(_ context.Context, userID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[userID]
	if !exists {
		return nil, zkerr.ErrNoActiveSession
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

// DeleteSession removes a user's session
func (s *MemoryStore) DeleteSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[userID]; !exists {
		return zkerr.ErrNoActiveSession
	}

	delete(s.sessions, userID)
	return nil
}

// DeleteSessionToken removes a user's session if it still carries tokenID
func (s *MemoryStore) DeleteSessionToken(_ context.Context, userID, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[userID]
	if !exists || session.TokenID != tokenID {
		return false, nil
	}

	delete(s.sessions, userID)
	return true, nil
}

// CleanupExpiredSessions removes expired sessions
func (s *MemoryStore) CleanupExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, userID)
			removed++
		}
	}

	return removed, nil
}

// Stats returns storage statistics for monitoring
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Identities: len(s.identities),
		Sessions:   len(s.sessions),
	}, nil
}

// Close closes the store (no-op for memory store)
func (s *MemoryStore) Close() error {
	return nil
}

// Ping checks if the store is healthy (always true for memory store)
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func copyIdentity(identity *Identity) *Identity {
	identityCopy := *identity
	identityCopy.VerificationValue = new(big.Int).Set(identity.VerificationValue)
	return &identityCopy
}

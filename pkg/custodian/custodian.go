// Package custodian keeps a prover's secret key on the client side.
package custodian

import (
	"errors"
	"math/big"
	"sort"
	"sync"
)

var (
	// ErrNotFound indicates no secret is held for the user
	ErrNotFound = errors.New("no secret held for user")

	// ErrUnlock indicates the passphrase is wrong or the sealed data was altered
	ErrUnlock = errors.New("unable to unlock secret: wrong passphrase or corrupted file")
)

// Custodian stores and releases secret keys by user ID.
type Custodian interface {
	// Put stores secret for userID, replacing any previous one
	Put(userID string, secret *big.Int) error

	// Get returns the secret for userID or ErrNotFound
	Get(userID string) (*big.Int, error)

	// Delete forgets the secret for userID
	Delete(userID string) error

	// Users lists the user IDs with a stored secret
	Users() ([]string, error)
}

// Memory is a Custodian that holds secrets in process memory
type Memory struct {
	mu      sync.RWMutex
	secrets map[string]*big.Int
}

// NewMemory creates an empty in-memory custodian
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]*big.Int)}
}

// Put stores a copy of secret
func (m *Memory) Put(userID string, secret *big.Int) error {
	if secret == nil || secret.Sign() < 0 {
		return errors.New("secret must be a non-negative integer")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[userID] = new(big.Int).Set(secret)
	return nil
}

// Get returns a copy of the stored secret
func (m *Memory) Get(userID string) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, ok := m.secrets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return new(big.Int).Set(secret), nil
}

// Delete forgets the secret
func (m *Memory) Delete(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[userID]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, userID)
	return nil
}

// Users lists user IDs in order
func (m *Memory) Users() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]string, 0, len(m.secrets))
	for userID := range m.secrets {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

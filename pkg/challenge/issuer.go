// Package challenge issues one-time challenges and consumes them during
// verification.
//
// Each user has at most one live challenge. Issuing a new one replaces the
// previous one, and consuming a challenge removes it whatever the outcome, so
// a given value can be answered at most once.
package challenge

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// DefaultTTL is how long an issued challenge stays answerable.
const DefaultTTL = 60 * time.Second

// Challenge is a random field element bound to one user for a short window.
type Challenge struct {
	UserID    string
	Value     *big.Int
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge can no longer be consumed at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Directory reports whether a user is registered.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*big.Int, bool, error)
}

// Config contains configuration for the issuer
type Config struct {
	TTL    time.Duration            // Challenge lifetime, DefaultTTL when zero
	Now    func() time.Time         // Clock, time.Now when nil
	Random func() (*big.Int, error) // Challenge source, uniform over [0, P) when nil
}

// Issuer keeps the pending challenge of every user in memory.
type Issuer struct {
	mu      sync.Mutex
	pending map[string]*Challenge

	users  Directory
	params field.Params
	ttl    time.Duration
	now    func() time.Time
	random func() (*big.Int, error)
	logger logging.Logger
}

// NewIssuer creates an issuer drawing challenges from params' field.
func NewIssuer(users Directory, params field.Params, cfg Config, logger logging.Logger) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Random == nil {
		cfg.Random = func() (*big.Int, error) {
			return field.RandomFieldElement(params.P)
		}
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Issuer{
		pending: make(map[string]*Challenge),
		users:   users,
		params:  params,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		random:  cfg.Random,
		logger:  logger.With("component", "challenge"),
	}
}

// TTL returns the challenge lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue draws a fresh challenge for a registered user, replacing any
// challenge still pending for them. Unknown users fail with
// zkerr.ErrUnknownUser and leave no state behind.
func (i *Issuer) Issue(ctx context.Context, userID string) (*Challenge, error) {
	_, ok, err := i.users.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, zkerr.ErrUnknownUser
	}

	value, err := i.draw()
	if err != nil {
		return nil, err
	}

	now := i.now()
	c := &Challenge{
		UserID:    userID,
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	i.mu.Lock()
	_, replaced := i.pending[userID]
	i.pending[userID] = c
	i.mu.Unlock()

	i.logger.Debug(ctx, "challenge issued", "user_id", userID, "replaced", replaced)

	return copyChallenge(c), nil
}

// draw returns a uniform field element other than 0 and 1. Both make c^x
// independent of x, so they are never handed out.
func (i *Issuer) draw() (*big.Int, error) {
	for {
		value, err := i.random()
		if err != nil {
			return nil, fmt.Errorf("failed to draw challenge: %w", err)
		}
		if value.Cmp(big.NewInt(1)) > 0 {
			return value, nil
		}
	}
}

// Consume checks value against the user's live challenge and removes it.
//
// It fails with zkerr.ErrNoSuchChallenge when nothing live is pending and
// zkerr.ErrChallengeMismatch when the value differs. The pending entry is
// removed in every case.
func (i *Issuer) Consume(userID string, value *big.Int) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	c, ok := i.pending[userID]
	if !ok {
		return zkerr.ErrNoSuchChallenge
	}
	delete(i.pending, userID)

	if c.Expired(i.now()) {
		return zkerr.ErrNoSuchChallenge
	}
	if value == nil || c.Value.Cmp(value) != 0 {
		return zkerr.ErrChallengeMismatch
	}

	return nil
}

// PurgeExpired drops challenges that can no longer be consumed and returns
// how many were removed.
func (i *Issuer) PurgeExpired() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	removed := 0
	for userID, c := range i.pending {
		if c.Expired(now) {
			delete(i.pending, userID)
			removed++
		}
	}
	return removed
}

// Pending returns the number of challenges currently held.
func (i *Issuer) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}

// Run purges expired challenges every interval until ctx is done.
func (i *Issuer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := i.PurgeExpired(); n > 0 {
				i.logger.Debug(ctx, "expired challenges purged", "count", n)
			}
		}
	}
}

func copyChallenge(c *Challenge) *Challenge {
	out := *c
	out.Value = new(big.Int).Set(c.Value)
	return &out
}

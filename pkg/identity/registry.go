// Package identity registers users and resolves their verification values.
package identity

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/storage"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// MaxUserIDLength bounds user IDs accepted at registration.
const MaxUserIDLength = 256

// Registry is the identity store. A user ID is bound to exactly one
// verification value for the lifetime of the store.
type Registry struct {
	store  storage.IdentityStore
	scheme schnorr.Scheme
	logger logging.Logger
}

// NewRegistry creates a registry over store. Verification values are
// validated against scheme before they are persisted.
func NewRegistry(store storage.IdentityStore, scheme schnorr.Scheme, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		store:  store,
		scheme: scheme,
		logger: logger.With("component", "identity"),
	}
}

// Scheme returns the proof scheme registrations are validated against.
func (r *Registry) Scheme() schnorr.Scheme {
	return r.scheme
}

// Register binds userID to v. A second registration for the same user fails
// with zkerr.ErrAlreadyRegistered and leaves the first value in place.
func (r *Registry) Register(ctx context.Context, userID string, v *big.Int) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := r.scheme.ValidateVerificationValue(v); err != nil {
		return err
	}

	if err := r.store.CreateIdentity(ctx, userID, v); err != nil {
		if errors.Is(err, zkerr.ErrAlreadyRegistered) {
			r.logger.Info(ctx, "duplicate registration rejected", "user_id", userID)
			return err
		}
		return fmt.Errorf("failed to register %q: %w", userID, err)
	}

	r.logger.Info(ctx, "identity registered", "user_id", userID, "scheme", r.scheme.Name())
	return nil
}

// Lookup returns the verification value for userID. Unknown users yield
// (nil, false, nil); only storage faults are errors.
func (r *Registry) Lookup(ctx context.Context, userID string) (*big.Int, bool, error) {
	identity, err := r.store.GetIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, zkerr.ErrUnknownUser) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up %q: %w", userID, err)
	}
	return identity.VerificationValue, true, nil
}

// Get returns the full identity record, or zkerr.ErrUnknownUser.
func (r *Registry) Get(ctx context.Context, userID string) (*storage.Identity, error) {
	return r.store.GetIdentity(ctx, userID)
}

// List returns every registered identity.
func (r *Registry) List(ctx context.Context) ([]storage.Identity, error) {
	return r.store.ListIdentities(ctx)
}

// ValidateUserID rejects blank and oversized user IDs.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return zkerr.Invalid("user_id is required")
	}
	if len(userID) > MaxUserIDLength {
		return zkerr.Invalid(fmt.Sprintf("user_id exceeds %d bytes", MaxUserIDLength))
	}
	return nil
}

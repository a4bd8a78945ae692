// Package verifier checks a user's proof against their registered value and
// the challenge they were issued.
package verifier

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// Identities resolves a user's verification value.
type Identities interface {
	Lookup(ctx context.Context, userID string) (*big.Int, bool, error)
}

// Challenges consumes a user's pending challenge.
type Challenges interface {
	Consume(userID string, value *big.Int) error
}

// Verifier runs lookup, challenge consumption and the scheme check in order.
type Verifier struct {
	identities Identities
	challenges Challenges
	scheme     schnorr.Scheme
	decoy      *big.Int
	logger     logging.Logger
}

// New creates a verifier for scheme.
func New(identities Identities, challenges Challenges, scheme schnorr.Scheme, logger logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.Nop()
	}

	// A fixed in-range value stands in for v when the user is unknown.
	decoy := new(big.Int).Sub(scheme.Params().P, big.NewInt(2))

	return &Verifier{
		identities: identities,
		challenges: challenges,
		scheme:     scheme,
		decoy:      decoy,
		logger:     logger.With("component", "verifier"),
	}
}

// Verify reports whether proof answers challenge for userID.
//
// Unknown users fail with zkerr.ErrUnknownUser after a decoy check of the same
// cost as a real one. A missing, expired, reused or mismatched challenge
// fails with the error from Consume. A wrong proof is (false, nil).
func (v *Verifier) Verify(ctx context.Context, userID string, challenge *big.Int, proof *schnorr.Proof) (bool, error) {
	value, ok, err := v.identities.Lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		v.decoyVerify(challenge, proof)
		v.logger.Info(ctx, "verification for unknown user", "user_id", userID)
		return false, zkerr.ErrUnknownUser
	}

	if err := v.challenges.Consume(userID, challenge); err != nil {
		v.logger.Info(ctx, "challenge rejected", "user_id", userID, "code", zkerr.CodeOf(err))
		return false, err
	}

	verified, err := v.scheme.Verify(value, challenge, proof)
	if err != nil {
		return false, fmt.Errorf("failed to verify proof: %w", err)
	}

	if !verified {
		v.logger.Warn(ctx, "proof rejected", "user_id", userID)
		return false, nil
	}

	v.logger.Info(ctx, "proof accepted", "user_id", userID)
	return true, nil
}

func (v *Verifier) decoyVerify(challenge *big.Int, proof *schnorr.Proof) {
	if challenge == nil {
		challenge = v.decoy
	}
	_, _ = v.scheme.Verify(v.decoy, challenge, proof)
}

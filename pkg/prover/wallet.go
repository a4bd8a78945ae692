// Package prover holds the client side of the protocol: it creates a user's
// secret, derives the value registered with the server, and answers
// challenges without ever releasing the secret.
package prover

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/custodian"
)

// ErrNoSecret indicates the wallet holds no secret for the user
var ErrNoSecret = errors.New("wallet holds no secret for user; enroll first")

// Wallet proves a user's identity under a scheme, with the secret held by a
// custodian.
type Wallet struct {
	userID    string
	scheme    schnorr.Scheme
	custodian custodian.Custodian
}

// NewWallet creates a wallet for userID
func NewWallet(userID string, scheme schnorr.Scheme, c custodian.Custodian) *Wallet {
	return &Wallet{
		userID:    userID,
		scheme:    scheme,
		custodian: c,
	}
}

// UserID returns the user the wallet proves for
func (w *Wallet) UserID() string {
	return w.userID
}

// Scheme returns the scheme proofs are computed under
func (w *Wallet) Scheme() schnorr.Scheme {
	return w.scheme
}

// Enroll generates a fresh secret, hands it to the custodian and returns the
// verification value to register. An existing secret is replaced.
func (w *Wallet) Enroll() (*big.Int, error) {
	secret, err := schnorr.GenerateSecret(w.scheme.Params())
	if err != nil {
		return nil, err
	}

	v, err := w.scheme.VerificationValue(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive verification value: %w", err)
	}

	if err := w.custodian.Put(w.userID, secret); err != nil {
		return nil, fmt.Errorf("failed to store secret: %w", err)
	}

	return v, nil
}

// Enrolled reports whether the custodian holds a secret for the user
func (w *Wallet) Enrolled() (bool, error) {
	_, err := w.custodian.Get(w.userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, custodian.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// VerificationValue recomputes the registered value from the held secret
func (w *Wallet) VerificationValue() (*big.Int, error) {
	secret, err := w.secret()
	if err != nil {
		return nil, err
	}
	return w.scheme.VerificationValue(secret)
}

// Prove answers challenge with the held secret
func (w *Wallet) Prove(challenge *big.Int) (*schnorr.Proof, error) {
	if challenge == nil || !w.scheme.Params().InField(challenge) {
		return nil, errors.New("challenge must lie in [0, P)")
	}

	secret, err := w.secret()
	if err != nil {
		return nil, err
	}

	proof, err := w.scheme.Prove(secret, challenge)
	if err != nil {
		return nil, fmt.Errorf("failed to compute proof: %w", err)
	}
	return proof, nil
}

// Forget removes the user's secret from the custodian
func (w *Wallet) Forget() error {
	if err := w.custodian.Delete(w.userID); err != nil {
		if errors.Is(err, custodian.ErrNotFound) {
			return ErrNoSecret
		}
		return err
	}
	return nil
}

func (w *Wallet) secret() (*big.Int, error) {
	secret, err := w.custodian.Get(w.userID)
	if err != nil {
		if errors.Is(err, custodian.ErrNotFound) {
			return nil, ErrNoSecret
		}
		return nil, fmt.Errorf("failed to unlock secret: %w", err)
	}
	return secret, nil
}

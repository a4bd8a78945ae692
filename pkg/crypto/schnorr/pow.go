package schnorr

import (
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// PowScheme is the challenge-exponentiation protocol as deployed by the
// original wallet:
//
//	registration: v = x mod P
//	proof:        c^x mod P
//	verification: proof == c^v mod P
//
// The registered value equals the secret, so anyone who reads the identity
// store can answer every future challenge. It is kept for compatibility with
// existing wallets; new deployments should use SchnorrScheme.
type PowScheme struct {
	params field.Params
}

// NewPowScheme creates the pow scheme over params.
func NewPowScheme(params field.Params) *PowScheme {
	return &PowScheme{params: params}
}

// Name returns "pow".
func (s *PowScheme) Name() string {
	return SchemePow
}

// Params returns the group parameters.
func (s *PowScheme) Params() field.Params {
	return s.params
}

// VerificationValue returns x mod P.
func (s *PowScheme) VerificationValue(secret *big.Int) (*big.Int, error) {
	if secret == nil || secret.Sign() < 0 {
		return nil, zkerr.Invalid("secret must be a non-negative integer")
	}
	return new(big.Int).Mod(secret, s.params.P), nil
}

// ValidateVerificationValue requires v in [0, P).
func (s *PowScheme) ValidateVerificationValue(v *big.Int) error {
	if !s.params.InField(v) {
		return zkerr.Invalid("verification value must lie in [0, P)")
	}
	return nil
}

// Prove computes c^x mod P.
func (s *PowScheme) Prove(secret, challenge *big.Int) (*Proof, error) {
	response, err := field.ModPow(challenge, secret, s.params.P)
	if err != nil {
		return nil, fmt.Errorf("failed to compute proof: %w", err)
	}
	return &Proof{Response: response}, nil
}

// Verify recomputes c^v mod P and compares it bit-for-bit with the proof.
func (s *PowScheme) Verify(v, challenge *big.Int, proof *Proof) (bool, error) {
	expected, err := field.ModPow(challenge, v, s.params.P)
	if err != nil {
		return false, fmt.Errorf("failed to compute expected proof: %w", err)
	}

	if proof == nil || !s.params.InField(proof.Response) {
		return false, nil
	}

	got := field.Bytes(proof.Response, s.params.P)
	want := field.Bytes(expected, s.params.P)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

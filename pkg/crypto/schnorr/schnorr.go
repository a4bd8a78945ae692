// Package schnorr implements the proof schemes of the identification protocol
// over the multiplicative group modulo a fixed prime P.
//
// # Schnorr Identification Over Z_P*
//
// The prover knows a secret exponent x; the verifier stores v = g^x mod P.
// Publishing v does not reveal x as long as discrete logarithms in Z_P* are
// hard.
//
//  1. CHALLENGE (Verifier → Prover):
//     - Verifier draws a fresh random c and remembers it for one use
//
//  2. COMMITMENT + RESPONSE (Prover → Verifier):
//     - Prover draws a random nonce r and computes T = g^r mod P
//     - Prover derives e = H(DomainChallenge || T || v || c) mod (P-1)
//     - Prover computes s = r + e*x mod (P-1) and sends (T, s)
//
//  3. VERIFICATION:
//     - Verifier derives the same e and checks g^s == T * v^e (mod P)
//
// # Why This Works
//
//	g^s = g^(r + e*x)        // exponents reduce mod P-1 since g^(P-1) = 1
//	    = g^r * (g^x)^e
//	    = T * v^e
//
// Binding e to the server's one-time challenge c makes every transcript
// single-use: a recorded (T, s) only verifies against the c it was built for.
//
// The pow scheme in this package reproduces the deployed wallet protocol,
// where the registered value is the secret itself. See PowScheme.
package schnorr

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// Domain separation constants for hash functions.
const (
	// DomainChallenge is the domain separator for challenge derivation.
	// Format: H(DomainChallenge || T || v || c)
	DomainChallenge = "zkid/1/chal"
)

// SchnorrScheme is the g^x registration scheme.
type SchnorrScheme struct {
	params field.Params
}

// NewSchnorrScheme creates the schnorr scheme over params.
func NewSchnorrScheme(params field.Params) *SchnorrScheme {
	return &SchnorrScheme{params: params}
}

// Name returns "schnorr".
func (s *SchnorrScheme) Name() string {
	return SchemeSchnorr
}

// Params returns the group parameters.
func (s *SchnorrScheme) Params() field.Params {
	return s.params
}

// VerificationValue returns g^x mod P.
func (s *SchnorrScheme) VerificationValue(secret *big.Int) (*big.Int, error) {
	if secret == nil || secret.Sign() < 0 {
		return nil, zkerr.Invalid("secret must be a non-negative integer")
	}
	v, err := field.ModPow(s.params.G, secret, s.params.P)
	if err != nil {
		return nil, fmt.Errorf("failed to derive verification value: %w", err)
	}
	return v, nil
}

// ValidateVerificationValue requires v in [2, P-1).
//
// 0 is not a group element, and 1 and P-1 answer large classes of
// challenges without any knowledge of x.
func (s *SchnorrScheme) ValidateVerificationValue(v *big.Int) error {
	if !s.validElement(v) {
		return zkerr.Invalid("verification value must lie in [2, P-1)")
	}
	return nil
}

// Prove produces (T, s) for challenge c.
func (s *SchnorrScheme) Prove(secret, challenge *big.Int) (*Proof, error) {
	v, err := s.VerificationValue(secret)
	if err != nil {
		return nil, err
	}

	T, r, err := GenerateCommitment(s.params)
	if err != nil {
		return nil, err
	}

	e := DeriveChallenge(s.params, T, v, challenge)
	response := ComputeResponse(s.params, r, e, secret)

	return &Proof{Commitment: T, Response: response}, nil
}

// Verify checks g^s == T * v^e (mod P).
func (s *SchnorrScheme) Verify(v, challenge *big.Int, proof *Proof) (bool, error) {
	if proof == nil || proof.Commitment == nil || proof.Response == nil {
		return false, nil
	}
	return VerifySchnorr(s.params, v, challenge, proof.Commitment, proof.Response)
}

func (s *SchnorrScheme) validElement(n *big.Int) bool {
	upper := new(big.Int).Sub(s.params.P, big.NewInt(1))
	return n != nil && n.Cmp(big.NewInt(2)) >= 0 && n.Cmp(upper) < 0
}

// VerifySchnorr verifies a Schnorr identification proof.
//
// It checks that
//
//	g^s == T * v^e (mod P),   e = H(DomainChallenge || T || v || c) mod (P-1)
//
// Inputs are range-checked before any exponentiation: T must be a group
// element other than 1 and P-1, and s must be reduced mod P-1. Out-of-range
// inputs yield (false, nil) since they are adversarial input, not faults.
func VerifySchnorr(params field.Params, v, c, T, s *big.Int) (bool, error) {
	scheme := SchnorrScheme{params: params}

	if !scheme.validElement(v) || !scheme.validElement(T) {
		return false, nil
	}
	if c == nil || s == nil || s.Sign() < 0 || s.Cmp(params.Order()) >= 0 {
		return false, nil
	}

	e := DeriveChallenge(params, T, v, c)

	left, err := field.ModPow(params.G, s, params.P)
	if err != nil {
		return false, fmt.Errorf("failed to compute g^s: %w", err)
	}

	ve, err := field.ModPow(v, e, params.P)
	if err != nil {
		return false, fmt.Errorf("failed to compute v^e: %w", err)
	}

	right := new(big.Int).Mul(T, ve)
	right.Mod(right, params.P)

	return subtle.ConstantTimeCompare(field.Bytes(left, params.P), field.Bytes(right, params.P)) == 1, nil
}

// DeriveChallenge computes the exponent e bound to the commitment, the
// registered value and the server challenge:
//
//	e = H(DomainChallenge || T || v || c) mod (P-1)
//
// All three integers are hashed at the modulus' fixed width so distinct
// transcripts never share an encoding.
func DeriveChallenge(params field.Params, T, v, c *big.Int) *big.Int {
	h := sha256.New()
	h.Write([]byte(DomainChallenge))
	h.Write(field.Bytes(T, params.P))
	h.Write(field.Bytes(v, params.P))
	h.Write(field.Bytes(new(big.Int).Mod(c, params.P), params.P))

	e := new(big.Int).SetBytes(h.Sum(nil))
	return e.Mod(e, params.Order())
}

// GenerateCommitment draws a nonce r in [1, P-1) and returns T = g^r mod P.
//
// SECURITY WARNING: r must never be reused. Two responses s1, s2 with the
// same r and exponents e1 != e2 reveal x = (s1 - s2) / (e1 - e2) mod (P-1)
// whenever the division is defined.
func GenerateCommitment(params field.Params) (T, r *big.Int, err error) {
	scheme := SchnorrScheme{params: params}

	for {
		r, err = field.RandomFieldElement(params.Order())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
		}
		if r.Sign() == 0 {
			continue
		}

		T, err = field.ModPow(params.G, r, params.P)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to compute commitment: %w", err)
		}
		if scheme.validElement(T) {
			return T, r, nil
		}
	}
}

// ComputeResponse computes s = r + e*x mod (P-1).
func ComputeResponse(params field.Params, r, e, x *big.Int) *big.Int {
	order := params.Order()

	ex := new(big.Int).Mul(e, x)
	ex.Mod(ex, order)

	s := new(big.Int).Add(r, ex)
	return s.Mod(s, order)
}

package schnorr

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
)

// Scheme names accepted by FromName.
const (
	SchemePow     = "pow"
	SchemeSchnorr = "schnorr"
)

// Proof is the prover's answer to a challenge.
//
// For the pow scheme only Response is set (c^x mod P). For the schnorr scheme
// Commitment carries T = g^r mod P and Response carries s = r + e*x mod (P-1).
type Proof struct {
	Commitment *big.Int
	Response   *big.Int
}

// Scheme binds a registration rule to a proof relation over a fixed group.
type Scheme interface {
	// Name returns the scheme identifier ("pow" or "schnorr").
	Name() string

	// Params returns the group the scheme operates in.
	Params() field.Params

	// VerificationValue derives the registered public value from a secret.
	VerificationValue(secret *big.Int) (*big.Int, error)

	// ValidateVerificationValue rejects values that cannot come from VerificationValue.
	ValidateVerificationValue(v *big.Int) error

	// Prove answers challenge using the secret. Runs on the prover side only.
	Prove(secret, challenge *big.Int) (*Proof, error)

	// Verify checks proof against the registered value and the issued challenge.
	// A wrong proof yields (false, nil); errors are reserved for arithmetic faults.
	Verify(v, challenge *big.Int, proof *Proof) (bool, error)
}

// FromName returns the Scheme that matches the provided name.
func FromName(name string, params field.Params) (Scheme, error) {
	switch strings.ToLower(name) {
	case SchemePow:
		return NewPowScheme(params), nil
	case SchemeSchnorr:
		return NewSchnorrScheme(params), nil
	default:
		return nil, fmt.Errorf("unsupported scheme: %s", name)
	}
}

// SupportedSchemes lists the scheme identifiers understood by FromName.
func SupportedSchemes() []string {
	return []string{SchemePow, SchemeSchnorr}
}

// GenerateSecret draws a fresh secret key uniformly from [0, P).
func GenerateSecret(params field.Params) (*big.Int, error) {
	x, err := field.RandomFieldElement(params.P)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return x, nil
}

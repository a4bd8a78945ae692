package field

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

// Params fixes the group every protocol participant computes in.
type Params struct {
	P *big.Int // prime modulus
	G *big.Int // generator used by the schnorr scheme
}

// defaultModulus is 2^256 - 189.
var defaultModulus = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 256)
	return p.Sub(p, big.NewInt(189))
}()

// DefaultParams returns the production group: P = 2^256 - 189, g = 3.
func DefaultParams() Params {
	return Params{
		P: new(big.Int).Set(defaultModulus),
		G: big.NewInt(3),
	}
}

// NewParams builds custom group parameters, typically a toy group for tests.
// The modulus must exceed 2 and the generator must lie in [2, P).
func NewParams(p, g *big.Int) (Params, error) {
	if p == nil || p.Cmp(two) <= 0 {
		return Params{}, fmt.Errorf("%w: modulus must exceed 2", zkerr.ErrInvalidModulus)
	}
	if g == nil || g.Cmp(two) < 0 || g.Cmp(p) >= 0 {
		return Params{}, zkerr.Invalid("generator must lie in [2, P)")
	}
	return Params{P: new(big.Int).Set(p), G: new(big.Int).Set(g)}, nil
}

// Order returns P-1, the order of the multiplicative group. Exponents are
// reduced modulo Order since g^(P-1) = 1 for prime P.
func (p Params) Order() *big.Int {
	return new(big.Int).Sub(p.P, one)
}

// InField reports whether n lies in [0, P).
func (p Params) InField(n *big.Int) bool {
	return n != nil && n.Sign() >= 0 && n.Cmp(p.P) < 0
}

// ParseDecimal parses a non-negative base-10 integer as it crosses the API
// boundary. Signs, whitespace, and non-digit characters are rejected.
func ParseDecimal(s string) (*big.Int, error) {
	if s == "" {
		return nil, zkerr.Invalid("empty integer")
	}
	if strings.TrimLeft(s, "0123456789") != "" {
		return nil, zkerr.Invalid(fmt.Sprintf("invalid decimal integer %q", truncate(s)))
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, zkerr.Invalid(fmt.Sprintf("invalid decimal integer %q", truncate(s)))
	}
	return n, nil
}

// FormatDecimal renders n in base 10.
func FormatDecimal(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.Text(10)
}

func truncate(s string) string {
	const limit = 32
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

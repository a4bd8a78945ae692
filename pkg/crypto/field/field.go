// Package field implements arbitrary-precision arithmetic modulo a fixed large prime.
//
// # The Group
//
// All protocol values live in the multiplicative group of integers modulo a
// prime P. The default parameters use
//
//	P = 2^256 - 189   (the largest 256-bit prime)
//	g = 3
//
// and are identical on prover and verifier. They never change at runtime.
//
// # Modular Exponentiation
//
// ModPow computes base^exponent mod modulus with binary square-and-multiply,
// scanning the exponent from its least-significant bit:
//
//	acc = 1
//	b   = base mod modulus
//	for each bit of exponent (LSB first):
//	    if bit == 1: acc = acc * b mod modulus
//	    b = b * b mod modulus
//
// Every intermediate value stays in [0, modulus), so 256-bit operands never
// need more than 512 bits of temporary storage.
package field

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// ModPow computes base^exponent mod modulus.
//
// The modulus must be positive and the exponent non-negative. A modulus of 1
// yields 0 (the degenerate group), an exponent of 0 yields 1 otherwise. The
// base may be any integer; it is reduced into [0, modulus) first.
func ModPow(base, exponent, modulus *big.Int) (*big.Int, error) {
	if modulus == nil || modulus.Sign() <= 0 {
		return nil, zkerr.ErrInvalidModulus
	}
	if exponent == nil || exponent.Sign() < 0 {
		return nil, zkerr.ErrInvalidExponent
	}
	if base == nil {
		return nil, zkerr.Invalid("base must not be nil")
	}

	if modulus.Cmp(one) == 0 {
		return new(big.Int), nil
	}

	// Mod is Euclidean: negative bases land in [0, modulus)
	b := new(big.Int).Mod(base, modulus)
	acc := big.NewInt(1)

	for i := 0; i < exponent.BitLen(); i++ {
		if exponent.Bit(i) == 1 {
			acc.Mul(acc, b)
			acc.Mod(acc, modulus)
		}
		b.Mul(b, b)
		b.Mod(b, modulus)
	}

	return acc, nil
}

// RandomFieldElement draws a uniform integer in [0, modulus) from crypto/rand.
func RandomFieldElement(modulus *big.Int) (*big.Int, error) {
	return RandomFieldElementFrom(rand.Reader, modulus)
}

// RandomFieldElementFrom draws a uniform integer in [0, modulus) from r.
//
// Candidates are masked to the bit length of modulus-1 and rejected when out
// of range, so the result carries no modulo bias. Each attempt succeeds with
// probability above 1/2.
func RandomFieldElementFrom(r io.Reader, modulus *big.Int) (*big.Int, error) {
	if modulus == nil || modulus.Sign() <= 0 {
		return nil, zkerr.ErrInvalidModulus
	}
	if modulus.Cmp(one) == 0 {
		return new(big.Int), nil
	}

	top := new(big.Int).Sub(modulus, one)
	bitLen := top.BitLen()
	buf := make([]byte, (bitLen+7)/8)
	mask := byte(0xff >> (uint(len(buf)*8 - bitLen)))

	n := new(big.Int)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("failed to read randomness: %w", err)
		}
		buf[0] &= mask

		n.SetBytes(buf)
		if n.Cmp(modulus) < 0 {
			return n, nil
		}
	}
}

// Bytes serializes n as a big-endian slice of the modulus' byte width.
//
// Values must already be reduced into [0, modulus). Fixed-width encodings are
// what constant-time comparisons and hash transcripts operate on.
func Bytes(n, modulus *big.Int) []byte {
	width := (modulus.BitLen() + 7) / 8
	b := n.Bytes()
	if len(b) >= width {
		return b
	}
	padded := make([]byte, width)
	copy(padded[width-len(b):], b)
	return padded
}

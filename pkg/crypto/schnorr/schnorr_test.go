package schnorr

import (
	"math/big"
	"testing"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/field"
)

func toyParams(t *testing.T) field.Params {
	t.Helper()
	params, err := field.NewParams(big.NewInt(23), big.NewInt(5))
	if err != nil {
		t.Fatalf("failed to build toy params: %v", err)
	}
	return params
}

func TestPowScheme(t *testing.T) {
	scheme := NewPowScheme(toyParams(t))

	t.Run("ToyRoundTrip", func(t *testing.T) {
		x := big.NewInt(7)
		v, err := scheme.VerificationValue(x)
		if err != nil {
			t.Fatalf("failed to derive verification value: %v", err)
		}
		if v.Int64() != 7 {
			t.Errorf("pow registration should publish x mod P, got %s", v)
		}

		proof, err := scheme.Prove(x, big.NewInt(5))
		if err != nil {
			t.Fatalf("failed to prove: %v", err)
		}
		if proof.Response.Int64() != 17 {
			t.Errorf("expected proof 17, got %s", proof.Response)
		}

		ok, err := scheme.Verify(v, big.NewInt(5), proof)
		if err != nil {
			t.Fatalf("verification error: %v", err)
		}
		if !ok {
			t.Error("proof should be valid")
		}
	})

	t.Run("WrongProof", func(t *testing.T) {
		ok, err := scheme.Verify(big.NewInt(7), big.NewInt(5), &Proof{Response: big.NewInt(16)})
		if err != nil {
			t.Fatalf("wrong proof must not be an error: %v", err)
		}
		if ok {
			t.Error("wrong proof should be rejected")
		}
	})

	t.Run("OutOfRangeProof", func(t *testing.T) {
		// 17 + 23 is congruent to the right answer but not a reduced field element
		ok, err := scheme.Verify(big.NewInt(7), big.NewInt(5), &Proof{Response: big.NewInt(40)})
		if err != nil || ok {
			t.Errorf("unreduced proof should be rejected, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("MissingProof", func(t *testing.T) {
		ok, err := scheme.Verify(big.NewInt(7), big.NewInt(5), nil)
		if err != nil || ok {
			t.Errorf("nil proof should be rejected, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("ValidateVerificationValue", func(t *testing.T) {
		if err := scheme.ValidateVerificationValue(big.NewInt(22)); err != nil {
			t.Errorf("22 is a field element: %v", err)
		}
		if err := scheme.ValidateVerificationValue(big.NewInt(23)); err == nil {
			t.Error("P is not a field element")
		}
	})
}

func TestSchnorrScheme(t *testing.T) {
	params := field.DefaultParams()
	scheme := NewSchnorrScheme(params)

	secret := func(t *testing.T) (*big.Int, *big.Int) {
		t.Helper()
		for {
			x, err := GenerateSecret(params)
			if err != nil {
				t.Fatalf("failed to generate secret: %v", err)
			}
			v, err := scheme.VerificationValue(x)
			if err != nil {
				t.Fatalf("failed to derive verification value: %v", err)
			}
			if scheme.ValidateVerificationValue(v) == nil {
				return x, v
			}
		}
	}

	t.Run("ValidProof", func(t *testing.T) {
		x, v := secret(t)
		c, _ := field.RandomFieldElement(params.P)

		proof, err := scheme.Prove(x, c)
		if err != nil {
			t.Fatalf("failed to prove: %v", err)
		}

		ok, err := scheme.Verify(v, c, proof)
		if err != nil {
			t.Fatalf("verification error: %v", err)
		}
		if !ok {
			t.Error("proof should be valid")
		}
	})

	t.Run("VerificationValueHidesSecret", func(t *testing.T) {
		x, v := secret(t)
		if v.Cmp(x) == 0 {
			t.Error("schnorr registration must not publish the secret")
		}
	})

	t.Run("CorruptedResponse", func(t *testing.T) {
		x, v := secret(t)
		c, _ := field.RandomFieldElement(params.P)
		proof, _ := scheme.Prove(x, c)

		proof.Response.Xor(proof.Response, big.NewInt(1))
		proof.Response.Mod(proof.Response, params.Order())

		ok, err := scheme.Verify(v, c, proof)
		if err != nil {
			t.Fatalf("verification error: %v", err)
		}
		if ok {
			t.Error("corrupted response should be rejected")
		}
	})

	t.Run("DifferentChallenge", func(t *testing.T) {
		x, v := secret(t)
		c, _ := field.RandomFieldElement(params.P)
		proof, _ := scheme.Prove(x, c)

		other := new(big.Int).Add(c, big.NewInt(1))
		ok, err := scheme.Verify(v, other, proof)
		if err != nil {
			t.Fatalf("verification error: %v", err)
		}
		if ok {
			t.Error("proof must be bound to the challenge it answers")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		x, _ := secret(t)
		_, otherV := secret(t)
		c, _ := field.RandomFieldElement(params.P)
		proof, _ := scheme.Prove(x, c)

		ok, _ := scheme.Verify(otherV, c, proof)
		if ok {
			t.Error("proof should not verify against another user's value")
		}
	})

	t.Run("DegenerateInputs", func(t *testing.T) {
		_, v := secret(t)
		c := big.NewInt(42)
		pMinusOne := params.Order()

		cases := map[string]*Proof{
			"nil":                {},
			"commitment one":     {Commitment: big.NewInt(1), Response: big.NewInt(0)},
			"commitment P-1":     {Commitment: pMinusOne, Response: big.NewInt(0)},
			"commitment zero":    {Commitment: big.NewInt(0), Response: big.NewInt(0)},
			"unreduced response": {Commitment: big.NewInt(9), Response: pMinusOne},
		}
		for name, proof := range cases {
			ok, err := scheme.Verify(v, c, proof)
			if err != nil || ok {
				t.Errorf("%s: expected rejection, got ok=%v err=%v", name, ok, err)
			}
		}
	})

	t.Run("ValidateVerificationValue", func(t *testing.T) {
		for _, bad := range []*big.Int{nil, big.NewInt(0), big.NewInt(1), params.Order(), params.P} {
			if err := scheme.ValidateVerificationValue(bad); err == nil {
				t.Errorf("value %v should be rejected", bad)
			}
		}
	})
}

func TestSchnorrToyGroup(t *testing.T) {
	params := toyParams(t)
	scheme := NewSchnorrScheme(params)

	x := big.NewInt(7)
	v, _ := scheme.VerificationValue(x)
	if v.Int64() != 17 {
		t.Fatalf("expected 5^7 mod 23 = 17, got %s", v)
	}

	for c := int64(0); c < 23; c++ {
		proof, err := scheme.Prove(x, big.NewInt(c))
		if err != nil {
			t.Fatalf("failed to prove: %v", err)
		}
		ok, err := scheme.Verify(v, big.NewInt(c), proof)
		if err != nil || !ok {
			t.Fatalf("challenge %d: proof should verify (ok=%v err=%v)", c, ok, err)
		}
	}
}

func TestDeriveChallenge(t *testing.T) {
	params := field.DefaultParams()
	T, v, c := big.NewInt(11), big.NewInt(13), big.NewInt(17)

	e1 := DeriveChallenge(params, T, v, c)
	e2 := DeriveChallenge(params, T, v, c)
	if e1.Cmp(e2) != 0 {
		t.Error("challenge derivation must be deterministic")
	}
	if e1.Cmp(params.Order()) >= 0 {
		t.Error("derived exponent must be reduced mod P-1")
	}
	if DeriveChallenge(params, T, v, big.NewInt(18)).Cmp(e1) == 0 {
		t.Error("derived exponent must depend on the server challenge")
	}
	if DeriveChallenge(params, v, T, c).Cmp(e1) == 0 {
		t.Error("derived exponent must depend on argument order")
	}
}

func TestFromName(t *testing.T) {
	params := field.DefaultParams()
	for _, name := range SupportedSchemes() {
		scheme, err := FromName(name, params)
		if err != nil {
			t.Fatalf("FromName(%q) returned error: %v", name, err)
		}
		if scheme.Name() != name {
			t.Errorf("expected scheme %q, got %q", name, scheme.Name())
		}
	}

	if s, err := FromName("SCHNORR", params); err != nil || s.Name() != SchemeSchnorr {
		t.Errorf("scheme names should be case-insensitive, got %v (err %v)", s, err)
	}
	if _, err := FromName("rsa", params); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

package field

import (
	"errors"
	"math/big"
	"testing"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/zkerr"
)

func TestDefaultParams(t *testing.T) {
	params := DefaultParams()

	if params.P.BitLen() != 256 {
		t.Errorf("expected a 256-bit modulus, got %d bits", params.P.BitLen())
	}
	if !params.P.ProbablyPrime(20) {
		t.Error("default modulus should be prime")
	}
	if params.G.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("expected generator 3, got %s", params.G)
	}

	// callers must not be able to mutate the shared constant
	params.P.SetInt64(7)
	if DefaultParams().P.BitLen() != 256 {
		t.Error("DefaultParams returned a shared modulus")
	}
}

func TestNewParams(t *testing.T) {
	if _, err := NewParams(big.NewInt(23), big.NewInt(5)); err != nil {
		t.Fatalf("toy params should be accepted: %v", err)
	}

	if _, err := NewParams(big.NewInt(2), big.NewInt(3)); !errors.Is(err, zkerr.ErrInvalidModulus) {
		t.Errorf("expected ErrInvalidModulus, got %v", err)
	}

	for _, g := range []int64{0, 1, 23, 40} {
		if _, err := NewParams(big.NewInt(23), big.NewInt(g)); !errors.Is(err, zkerr.ErrInvalidInput) {
			t.Errorf("generator %d: expected ErrInvalidInput, got %v", g, err)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	valid := map[string]int64{
		"0":    0,
		"17":   17,
		"0042": 42,
	}
	for in, want := range valid {
		got, err := ParseDecimal(in)
		if err != nil {
			t.Errorf("ParseDecimal(%q) returned error: %v", in, err)
			continue
		}
		if got.Int64() != want {
			t.Errorf("ParseDecimal(%q) = %s, want %d", in, got, want)
		}
	}

	for _, in := range []string{"", "-5", "+5", " 5", "5 ", "0x11", "1e9", "12a"} {
		if _, err := ParseDecimal(in); !errors.Is(err, zkerr.ErrInvalidInput) {
			t.Errorf("ParseDecimal(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}

	big256 := DefaultParams().P
	got, err := ParseDecimal(FormatDecimal(big256))
	if err != nil || got.Cmp(big256) != 0 {
		t.Errorf("256-bit value should survive the decimal boundary, got %v (err %v)", got, err)
	}
}

func TestInField(t *testing.T) {
	params, _ := NewParams(big.NewInt(23), big.NewInt(5))

	if !params.InField(big.NewInt(0)) || !params.InField(big.NewInt(22)) {
		t.Error("0 and P-1 are field elements")
	}
	if params.InField(big.NewInt(23)) || params.InField(big.NewInt(-1)) || params.InField(nil) {
		t.Error("P, negatives and nil are not field elements")
	}
	if params.Order().Int64() != 22 {
		t.Errorf("expected order 22, got %s", params.Order())
	}
}

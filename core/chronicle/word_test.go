package chronicle

import (
	"math/big"
	"testing"
)

func TestSignedWordRoundTrip(t *testing.T) {
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(-1),
		big.NewInt(1 << 40),
		big.NewInt(-(1 << 40)),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil),
		new(big.Int).Neg(new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)),
	}
	for _, v := range values {
		got := decodeSigned(encodeSigned(v))
		if got.Cmp(v) != 0 {
			t.Fatalf("round trip of %s yielded %s", v, got)
		}
	}
}

func TestFitsSignedWordBounds(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
	cases := []struct {
		value *big.Int
		fits  bool
	}{
		{nil, true},
		{big.NewInt(0), true},
		{max, true},
		{min, true},
		{new(big.Int).Add(max, big.NewInt(1)), false},
		{new(big.Int).Sub(min, big.NewInt(1)), false},
		{new(big.Int).Lsh(big.NewInt(1), 256), false},
	}
	for _, tc := range cases {
		if got := fitsSignedWord(tc.value); got != tc.fits {
			t.Fatalf("fitsSignedWord(%s) = %v, want %v", tc.value, got, tc.fits)
		}
	}

	// The extremes must also survive the codec round trip.
	for _, v := range []*big.Int{max, min} {
		if got := decodeSigned(encodeSigned(v)); got.Cmp(v) != 0 {
			t.Fatalf("round trip of %s yielded %s", v, got)
		}
	}
}

func TestNegativeWordSetsSignBit(t *testing.T) {
	w := encodeSigned(big.NewInt(-1))
	for i, b := range w {
		if b != 0xff {
			t.Fatalf("byte %d of -1 word is %x, want ff", i, b)
		}
	}
}

package chronicle

import (
	"math/big"

	"chronicle/core/snapshot"
)

var (
	wordModulus = new(big.Int).Lsh(big.NewInt(1), 256)

	// Signed word bounds: [-2^255, 2^255).
	maxSignedWord = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minSignedWord = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// fitsSignedWord reports whether v is representable as a 256-bit
// two's-complement word. Values outside the range would either wrap or make
// FillBytes panic, so callers must check before encoding.
func fitsSignedWord(v *big.Int) bool {
	if v == nil {
		return true
	}
	return v.Cmp(minSignedWord) >= 0 && v.Cmp(maxSignedWord) <= 0
}

// encodeSigned renders a signed integer as a 256-bit two's-complement word.
// Liquidity values can go negative (an application can owe the pool), so the
// snapshot word carries the sign in its top bit.
func encodeSigned(v *big.Int) snapshot.Word {
	var w snapshot.Word
	if v == nil || v.Sign() == 0 {
		return w
	}
	enc := v
	if v.Sign() < 0 {
		enc = new(big.Int).Add(wordModulus, v)
	}
	enc.FillBytes(w[:])
	return w
}

// decodeSigned reverses encodeSigned.
func decodeSigned(w snapshot.Word) *big.Int {
	v := new(big.Int).SetBytes(w[:])
	if w[0]&0x80 != 0 {
		v.Sub(v, wordModulus)
	}
	return v
}

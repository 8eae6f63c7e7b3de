package models

import (
	"math/big"

	"github.com/pkg/errors"
)

// U256 is an unsigned 256-bit integer represented internally as a
// math/big.Int and externally, on the warehouse wire, as a decimal string
// (SPEC_FULL §6: "amount String"). big.Int is the standard-library answer
// here; no arbitrary-precision integer library appears anywhere in the
// retrieval pack (see DESIGN.md), and the wire contract is a plain decimal
// string rather than a fixed-width binary encoding, so a dedicated uint256
// type would buy nothing a big.Int round-trip doesn't already give.
type U256 struct {
	v *big.Int
}

// ZeroU256 returns the additive identity.
func ZeroU256() U256 {
	return U256{v: new(big.Int)}
}

// U256FromUint64 builds a U256 from a native amount (e.g. a UTXO satoshi
// value or an EVM wei value that already fits in 64 bits).
func U256FromUint64(n uint64) U256 {
	return U256{v: new(big.Int).SetUint64(n)}
}

// U256FromBigInt builds a U256 from an already-decoded big.Int (e.g. an EVM
// tx value or an ERC-20 log amount, both of which routinely exceed 64
// bits). The value is copied so later mutation of v by the caller can't
// alias into the returned U256.
func U256FromBigInt(v *big.Int) U256 {
	if v == nil {
		return ZeroU256()
	}
	return U256{v: new(big.Int).Set(v)}
}

// U256FromString parses a decimal string as produced by the warehouse's
// `amount`/`batch_amount` columns (SPEC_FULL §8, invariant 5: round-trip).
func U256FromString(s string) (U256, error) {
	if s == "" {
		return ZeroU256(), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return U256{}, errors.Errorf("invalid u256 decimal string: %q", s)
	}
	if v.Sign() < 0 {
		return U256{}, errors.Errorf("u256 must be non-negative: %q", s)
	}
	return U256{v: v}, nil
}

// String renders the decimal representation stored on the warehouse wire.
func (u U256) String() string {
	if u.v == nil {
		return "0"
	}
	return u.v.String()
}

// Add returns u + other, leaving both operands untouched.
func (u U256) Add(other U256) U256 {
	a := u.bigOrZero()
	b := other.bigOrZero()
	return U256{v: new(big.Int).Add(a, b)}
}

// Cmp compares u to other the way big.Int.Cmp does.
func (u U256) Cmp(other U256) int {
	return u.bigOrZero().Cmp(other.bigOrZero())
}

// IsZero reports whether the value is exactly zero.
func (u U256) IsZero() bool {
	return u.bigOrZero().Sign() == 0
}

func (u U256) bigOrZero() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return u.v
}

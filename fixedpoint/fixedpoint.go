// Package fixedpoint implements deterministic rational arithmetic for the
// simulation tick.
//
// Fixed64 is a 32.32 signed fixed-point number backed by an int64: the top
// 32 bits are the integer part, the bottom 32 bits are the fractional part.
// All rate, progress, and accumulator math in the engine uses Fixed64 rather
// than float64, so that identical bit patterns are produced on every
// platform that supports 64-bit integers — floating point is not permitted
// anywhere on the tick path.
package fixedpoint

import "math/bits"

// fracBits is the number of bits used for the fractional part.
const fracBits = 32

// Fixed64 is a 32.32 fixed-point number. The zero value is Zero.
type Fixed64 int64

// Zero is the additive identity.
const Zero Fixed64 = 0

// One is the multiplicative identity.
const One Fixed64 = 1 << fracBits

const (
	maxFixed64 = Fixed64(1<<63 - 1)
	minFixed64 = Fixed64(-1 << 63)
)

// FromInt constructs a Fixed64 from an integer, saturating on overflow.
func FromInt(v int64) Fixed64 {
	hi, lo := bits.Mul64(uint64(abs64(v)), 1<<fracBits)
	if hi != 0 {
		if v < 0 {
			return minFixed64
		}
		return maxFixed64
	}
	r := Fixed64(lo)
	if v < 0 {
		return -r
	}
	return r
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// FromBits reinterprets a raw int64 bit pattern as a Fixed64, for FFI and
// hashing.
func FromBits(bits int64) Fixed64 { return Fixed64(bits) }

// Bits returns the raw int64 bit pattern, for FFI and hashing.
func (f Fixed64) Bits() int64 { return int64(f) }

// Floor returns the integer part, rounded toward negative infinity.
func (f Fixed64) Floor() int64 {
	return int64(f) >> fracBits
}

// Frac returns the fractional remainder such that f == FromInt(f.Floor()) + f.Frac(),
// always non-negative.
func (f Fixed64) Frac() Fixed64 {
	return Fixed64(int64(f) & (1<<fracBits - 1))
}

// Add returns f+g, saturating on overflow.
func (f Fixed64) Add(g Fixed64) Fixed64 {
	sum := int64(f) + int64(g)
	if (int64(f) > 0 && int64(g) > 0 && sum < 0) {
		return maxFixed64
	}
	if (int64(f) < 0 && int64(g) < 0 && sum > 0) {
		return minFixed64
	}
	return Fixed64(sum)
}

// Sub returns f-g, saturating on overflow.
func (f Fixed64) Sub(g Fixed64) Fixed64 {
	if g == minFixed64 {
		if f >= 0 {
			return maxFixed64
		}
		return f - g
	}
	return f.Add(-g)
}

// Mul returns f*g, truncated toward zero, saturating on overflow.
func (f Fixed64) Mul(g Fixed64) Fixed64 {
	neg := (f < 0) != (g < 0)
	af, ag := uint64(abs64(int64(f))), uint64(abs64(int64(g)))
	hi, lo := bits.Mul64(af, ag)
	// result = (hi:lo) >> fracBits, must fit in 64 bits unsigned magnitude
	resHi := hi >> fracBits
	resLo := (hi << (64 - fracBits)) | (lo >> fracBits)
	if resHi != 0 {
		if neg {
			return minFixed64
		}
		return maxFixed64
	}
	if neg {
		if resLo > uint64(maxFixed64)+1 {
			return minFixed64
		}
		return Fixed64(-int64(resLo))
	}
	if resLo > uint64(maxFixed64) {
		return maxFixed64
	}
	return Fixed64(resLo)
}

// Div returns f/g, truncated toward zero, saturating on overflow. Dividing
// by Zero saturates toward the sign of f (or returns Zero if f is Zero).
func (f Fixed64) Div(g Fixed64) Fixed64 {
	if g == 0 {
		switch {
		case f > 0:
			return maxFixed64
		case f < 0:
			return minFixed64
		default:
			return Zero
		}
	}
	neg := (f < 0) != (g < 0)
	af, ag := uint64(abs64(int64(f))), uint64(abs64(int64(g)))
	// (af << fracBits) / ag, computed via 128-bit shifted dividend
	hi := af >> (64 - fracBits)
	lo := af << fracBits
	if hi >= ag {
		// the quotient does not fit in 64 bits
		if neg {
			return minFixed64
		}
		return maxFixed64
	}
	quo, rem := bits.Div64(hi, lo, ag)
	_ = rem
	if neg {
		if quo > uint64(maxFixed64)+1 {
			return minFixed64
		}
		return Fixed64(-int64(quo))
	}
	if quo > uint64(maxFixed64) {
		return maxFixed64
	}
	return Fixed64(quo)
}

// Cmp returns -1, 0, or 1 as f is less than, equal to, or greater than g.
func (f Fixed64) Cmp(g Fixed64) int {
	switch {
	case f < g:
		return -1
	case f > g:
		return 1
	default:
		return 0
	}
}

// Min returns the lesser of f and g.
func Min(f, g Fixed64) Fixed64 {
	if f < g {
		return f
	}
	return g
}

// Max returns the greater of f and g.
func Max(f, g Fixed64) Fixed64 {
	if f > g {
		return f
	}
	return g
}

// IsZero reports whether f is Zero.
func (f Fixed64) IsZero() bool { return f == Zero }

// Neg returns -f, saturating if f is the minimum representable value.
func (f Fixed64) Neg() Fixed64 {
	if f == minFixed64 {
		return maxFixed64
	}
	return -f
}

// Ticks is a count of simulation ticks, used by SimState's delta-time
// accumulator.
type Ticks uint64

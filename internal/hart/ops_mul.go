package hart

// ops_mul.go implements the MUL/MULH family. See spec §4.7's "MUL/MULH
// family" rule and §9's note on the source's "did the full product equal
// zero" sign-fixup test being fragile around INT_MIN: the correction used
// here needs no zero test at all, so that edge case does not arise.

import "math/bits"

// mulhUU returns the upper 64 bits of the unsigned 128-bit product a*b,
// treating both as raw 64-bit bit patterns.
func mulhUU(a, b Word) Word {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	return Word(hi)
}

// mulhSS returns the upper 64 bits of the signed 128-bit product a*b.
// Computed from the unsigned high-multiply of the raw bit patterns, with a
// two's-complement correction per negative operand: the unsigned product
// over-counts by b<<64 when a is negative (and symmetrically for b), so
// each negative operand subtracts the other operand's raw value from the
// high word.
func mulhSS(a, b Word) Word {
	hi := mulhUU(a, b)

	if int64(a) < 0 {
		hi -= b
	}

	if int64(b) < 0 {
		hi -= a
	}

	return hi
}

// mulhSU returns the upper 64 bits of the product of signed a and
// unsigned b.
func mulhSU(a, b Word) Word {
	hi := mulhUU(a, b)

	if int64(a) < 0 {
		hi -= b
	}

	return hi
}

package vector

import (
	"math"

	"github.com/therealutkarshpriyadarshi/vector/pkg/scalar"
)

// BVect is an owned bit-packed vector: Dim bits stored in ceil(Dim/64)
// uint64 words, with trailing padding bits of the last word always zero
// (see spec §3 invariants).
type BVect struct {
	Dim   uint32
	Words []uint64
}

// BorrowedBVect is a zero-allocation view over bit data.
type BorrowedBVect struct {
	Dim   uint32
	Words []uint64
}

func wordsFor(dim uint32) int { return int((dim + 63) / 64) }

func tailMask(dim uint32) uint64 {
	rem := dim % 64
	if rem == 0 {
		return ^uint64(0)
	}
	return (uint64(1) << rem) - 1
}

// NewBVect validates the trailing-padding invariant.
func NewBVect(dim uint32, words []uint64) (BVect, error) {
	if dim < 1 || dim > 65535 {
		return BVect{}, &ErrInvalidVector{Reason: "dims out of [1,65535]"}
	}
	if len(words) != wordsFor(dim) {
		return BVect{}, &ErrInvalidVector{Reason: "word count mismatch"}
	}
	if words[len(words)-1]&^tailMask(dim) != 0 {
		return BVect{}, &ErrInvalidVector{Reason: "nonzero trailing padding bits"}
	}
	return BVect{Dim: dim, Words: words}, nil
}

func (v BVect) Borrow() BorrowedBVect { return BorrowedBVect{Dim: v.Dim, Words: v.Words} }
func (v BorrowedBVect) Dims() uint32  { return v.Dim }

// Norm returns sqrt(popcount) for a bit vector (unit weight per set bit).
func (v BorrowedBVect) Norm() float32 {
	c := 0
	for _, w := range v.Words {
		c += popcountWord(w)
	}
	return float32(math.Sqrt(float64(c)))
}

func popcountWord(w uint64) int {
	return scalar.PopcountAnd([]uint64{w}, []uint64{w})
}

func (v BorrowedBVect) OperatorHamming(o BorrowedBVect) (Distance, error) {
	if v.Dim != o.Dim {
		return Distance{}, ErrDimensionMismatch
	}
	return FromF32(float32(scalar.PopcountXor(v.Words, o.Words))), nil
}

func (v BorrowedBVect) OperatorJaccard(o BorrowedBVect) (Distance, error) {
	if v.Dim != o.Dim {
		return Distance{}, ErrDimensionMismatch
	}
	inter := scalar.PopcountAnd(v.Words, o.Words)
	union := scalar.PopcountOr(v.Words, o.Words)
	if union == 0 {
		return FromF32(0), nil
	}
	return FromF32(1 - float32(inter)/float32(union)), nil
}

func (v BorrowedBVect) OperatorL2(BorrowedBVect) (Distance, error) {
	return Distance{}, ErrUnimplemented
}
func (v BorrowedBVect) OperatorDot(BorrowedBVect) (Distance, error) {
	return Distance{}, ErrUnimplemented
}
func (v BorrowedBVect) OperatorCos(BorrowedBVect) (Distance, error) {
	return Distance{}, ErrUnimplemented
}

func (v BorrowedBVect) bitAt(i uint32) bool {
	return v.Words[i/64]&(1<<(i%64)) != 0
}

func (v BorrowedBVect) combine(o BorrowedBVect, op byte) (BVect, error) {
	if v.Dim != o.Dim {
		return BVect{}, ErrDimensionMismatch
	}
	words := make([]uint64, len(v.Words))
	for i := range words {
		switch op {
		case 'a':
			words[i] = v.Words[i] & o.Words[i]
		case 'o':
			words[i] = v.Words[i] | o.Words[i]
		default:
			words[i] = v.Words[i] ^ o.Words[i]
		}
	}
	words[len(words)-1] &= tailMask(v.Dim)
	return BVect{Dim: v.Dim, Words: words}, nil
}

// And returns the bitwise AND of two bit vectors (the "Mul" analogue).
func (v BorrowedBVect) And(o BorrowedBVect) (BVect, error) { return v.combine(o, 'a') }

// Or returns the bitwise OR (the "Add" analogue).
func (v BorrowedBVect) Or(o BorrowedBVect) (BVect, error) { return v.combine(o, 'o') }

// Xor returns the bitwise XOR (the "Sub" analogue).
func (v BorrowedBVect) Xor(o BorrowedBVect) (BVect, error) { return v.combine(o, 'x') }

// Subvector repacks the set bits at source positions [lo, hi) into a fresh
// bit vector of dimension hi-lo.
func (v BorrowedBVect) Subvector(lo, hi uint32) (BVect, bool) {
	if lo > hi || hi > v.Dim {
		return BVect{}, false
	}
	dim := hi - lo
	words := make([]uint64, wordsFor(dim))
	for i := lo; i < hi; i++ {
		if v.bitAt(i) {
			j := i - lo
			words[j/64] |= 1 << (j % 64)
		}
	}
	if len(words) > 0 {
		words[len(words)-1] &= tailMask(dim)
	}
	return BVect{Dim: dim, Words: words}, true
}

// Less implements the documented reversed-bit-order lexicographic compare
// for bit vectors (spec §4.B, §9): bit 0 is treated as most significant.
// Preserved exactly as specified, not "fixed".
func (v BorrowedBVect) Less(o BorrowedBVect) bool {
	n := v.Dim
	if o.Dim < n {
		n = o.Dim
	}
	for i := uint32(0); i < n; i++ {
		a, b := v.bitAt(i), o.bitAt(i)
		if a != b {
			return !a && b // 0 < 1 when read bit-0-first
		}
	}
	return v.Dim < o.Dim
}

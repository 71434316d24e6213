// Package vector implements the three vector kinds the core operates on —
// dense (Vect), sparse (SVect), and bit-packed (BVect) — with owned and
// borrowed forms, element-wise ops, and distance operators. See spec §3,
// §4.B.
package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/therealutkarshpriyadarshi/vector/pkg/scalar"
)

// Kind tags which concrete representation a vector uses.
type Kind int

const (
	KindDense Kind = iota
	KindSparse
	KindBit
)

// Distance is a total-ordered similarity score. Smaller is always "more
// similar"; see spec §3.
type Distance struct {
	key uint32
	val float32
}

// FromF32 constructs a Distance from a raw float32 score.
func FromF32(x float32) Distance {
	return Distance{key: scalar.TotalOrderKey(x), val: x}
}

// Value returns the underlying float32 score.
func (d Distance) Value() float32 { return d.val }

// Less reports whether d sorts before other (total order).
func (d Distance) Less(other Distance) bool { return d.key < other.key }

// ErrUnimplemented is returned for distance/kind combinations the spec
// does not define (e.g. Hamming between two dense vectors).
var ErrUnimplemented = fmt.Errorf("vector: unimplemented distance/kind combination")

// ErrDimensionMismatch is returned when two vectors disagree on dims.
var ErrDimensionMismatch = fmt.Errorf("vector: dimension mismatch")

// ErrInvalidVector flags a structural invariant violation (see spec §7).
type ErrInvalidVector struct{ Reason string }

func (e *ErrInvalidVector) Error() string { return "vector: invalid vector: " + e.Reason }

// --- Dense ---

// Vect is an owned dense vector of dimension len(Data).
type Vect struct {
	Data []float32
}

// BorrowedVect is a zero-allocation, Copy-able view over dense data.
type BorrowedVect struct {
	Data []float32
}

// NewVect validates and constructs an owned dense vector.
func NewVect(data []float32) (Vect, error) {
	if len(data) < 1 || len(data) > 65535 {
		return Vect{}, &ErrInvalidVector{Reason: "dims out of [1,65535]"}
	}
	return Vect{Data: data}, nil
}

func (v Vect) Borrow() BorrowedVect { return BorrowedVect{Data: v.Data} }
func (v BorrowedVect) Dims() uint32 { return uint32(len(v.Data)) }

// Norm returns the L2 norm.
func (v BorrowedVect) Norm() float32 {
	return float32(math.Sqrt(float64(scalar.SumOfX2(v.Data))))
}

// OperatorL2 returns squared Euclidean distance.
func (v BorrowedVect) OperatorL2(o BorrowedVect) (Distance, error) {
	if len(v.Data) != len(o.Data) {
		return Distance{}, ErrDimensionMismatch
	}
	return FromF32(scalar.SumOfD2(v.Data, o.Data)), nil
}

// OperatorDot returns the negated inner product (smaller = more similar).
func (v BorrowedVect) OperatorDot(o BorrowedVect) (Distance, error) {
	if len(v.Data) != len(o.Data) {
		return Distance{}, ErrDimensionMismatch
	}
	return FromF32(-scalar.SumOfXY(v.Data, o.Data)), nil
}

// OperatorCos returns 1 - cosine similarity.
func (v BorrowedVect) OperatorCos(o BorrowedVect) (Distance, error) {
	if len(v.Data) != len(o.Data) {
		return Distance{}, ErrDimensionMismatch
	}
	ip := scalar.SumOfXY(v.Data, o.Data)
	na := float32(math.Sqrt(float64(scalar.SumOfX2(v.Data))))
	nb := float32(math.Sqrt(float64(scalar.SumOfX2(o.Data))))
	if na == 0 || nb == 0 {
		return FromF32(1), nil
	}
	return FromF32(1 - ip/(na*nb)), nil
}

// OperatorHamming is unimplemented for dense vectors.
func (v BorrowedVect) OperatorHamming(BorrowedVect) (Distance, error) {
	return Distance{}, ErrUnimplemented
}

// OperatorJaccard is unimplemented for dense vectors.
func (v BorrowedVect) OperatorJaccard(BorrowedVect) (Distance, error) {
	return Distance{}, ErrUnimplemented
}

// Add returns element-wise a+b.
func (v BorrowedVect) Add(o BorrowedVect) (Vect, error) {
	if len(v.Data) != len(o.Data) {
		return Vect{}, ErrDimensionMismatch
	}
	out := make([]float32, len(v.Data))
	for i := range out {
		out[i] = v.Data[i] + o.Data[i]
	}
	return Vect{Data: out}, nil
}

// Sub returns element-wise a-b.
func (v BorrowedVect) Sub(o BorrowedVect) (Vect, error) {
	if len(v.Data) != len(o.Data) {
		return Vect{}, ErrDimensionMismatch
	}
	out := make([]float32, len(v.Data))
	for i := range out {
		out[i] = v.Data[i] - o.Data[i]
	}
	return Vect{Data: out}, nil
}

// Mul returns element-wise a*b.
func (v BorrowedVect) Mul(o BorrowedVect) (Vect, error) {
	if len(v.Data) != len(o.Data) {
		return Vect{}, ErrDimensionMismatch
	}
	out := make([]float32, len(v.Data))
	for i := range out {
		out[i] = v.Data[i] * o.Data[i]
	}
	return Vect{Data: out}, nil
}

// Normalize returns an owned L2-normalized copy.
func (v BorrowedVect) Normalize() Vect {
	norm := v.Norm()
	out := make([]float32, len(v.Data))
	if norm == 0 {
		copy(out, v.Data)
		return Vect{Data: out}
	}
	for i, x := range v.Data {
		out[i] = x / norm
	}
	return Vect{Data: out}
}

// Subvector returns the slice [lo, hi), or ok=false if out of range.
func (v BorrowedVect) Subvector(lo, hi int) (Vect, bool) {
	if lo < 0 || hi > len(v.Data) || lo > hi {
		return Vect{}, false
	}
	out := make([]float32, hi-lo)
	copy(out, v.Data[lo:hi])
	return Vect{Data: out}, true
}

// --- Sparse ---

// SVect is an owned sparse vector: strictly increasing Indexes, parallel
// nonzero Values, dimension Dim.
type SVect struct {
	Dim     uint32
	Indexes []uint32
	Values  []float32
}

// BorrowedSVect is a zero-allocation view over sparse data.
type BorrowedSVect struct {
	Dim     uint32
	Indexes []uint32
	Values  []float32
}

// NewSVect validates invariants: indexes strictly increasing, all < dim,
// values never zero.
func NewSVect(dim uint32, indexes []uint32, values []float32) (SVect, error) {
	if dim < 1 || dim > 1_048_575 {
		return SVect{}, &ErrInvalidVector{Reason: "dims out of [1,1048575]"}
	}
	if len(indexes) != len(values) {
		return SVect{}, &ErrInvalidVector{Reason: "indexes/values length mismatch"}
	}
	for i, idx := range indexes {
		if idx >= dim {
			return SVect{}, &ErrInvalidVector{Reason: "index out of range"}
		}
		if i > 0 && indexes[i-1] >= idx {
			return SVect{}, &ErrInvalidVector{Reason: "indexes not strictly increasing"}
		}
		if values[i] == 0 {
			return SVect{}, &ErrInvalidVector{Reason: "zero value at nonzero index"}
		}
	}
	return SVect{Dim: dim, Indexes: indexes, Values: values}, nil
}

func (v SVect) Borrow() BorrowedSVect {
	return BorrowedSVect{Dim: v.Dim, Indexes: v.Indexes, Values: v.Values}
}

func (v BorrowedSVect) Dims() uint32 { return v.Dim }

func (v BorrowedSVect) Norm() float32 {
	var sum float32
	for _, x := range v.Values {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}

func (v BorrowedSVect) OperatorL2(o BorrowedSVect) (Distance, error) {
	if v.Dim != o.Dim {
		return Distance{}, ErrDimensionMismatch
	}
	return FromF32(scalar.SumOfSparseD2(v.Indexes, v.Values, o.Indexes, o.Values)), nil
}

func (v BorrowedSVect) OperatorDot(o BorrowedSVect) (Distance, error) {
	if v.Dim != o.Dim {
		return Distance{}, ErrDimensionMismatch
	}
	return FromF32(-scalar.SumOfSparseXY(v.Indexes, v.Values, o.Indexes, o.Values)), nil
}

func (v BorrowedSVect) OperatorCos(o BorrowedSVect) (Distance, error) {
	if v.Dim != o.Dim {
		return Distance{}, ErrDimensionMismatch
	}
	ip := scalar.SumOfSparseXY(v.Indexes, v.Values, o.Indexes, o.Values)
	na, nb := v.Norm(), o.Norm()
	if na == 0 || nb == 0 {
		return FromF32(1), nil
	}
	return FromF32(1 - ip/(na*nb)), nil
}

func (v BorrowedSVect) OperatorHamming(BorrowedSVect) (Distance, error) {
	return Distance{}, ErrUnimplemented
}

func (v BorrowedSVect) OperatorJaccard(BorrowedSVect) (Distance, error) {
	return Distance{}, ErrUnimplemented
}

// Add merges two sparse vectors, summing values at shared indexes and
// dropping any resulting zero (preserving the "values never zero"
// invariant).
func (v BorrowedSVect) Add(o BorrowedSVect) (SVect, error) {
	if v.Dim != o.Dim {
		return SVect{}, ErrDimensionMismatch
	}
	return mergeSparse(v, o, func(a, b float32) float32 { return a + b })
}

// Sub merges two sparse vectors by subtraction.
func (v BorrowedSVect) Sub(o BorrowedSVect) (SVect, error) {
	if v.Dim != o.Dim {
		return SVect{}, ErrDimensionMismatch
	}
	return mergeSparse(v, o, func(a, b float32) float32 { return a - b })
}

// Mul intersects two sparse vectors, multiplying shared coordinates (any
// coordinate present in only one operand is implicitly zero, so it is
// dropped from the result).
func (v BorrowedSVect) Mul(o BorrowedSVect) (SVect, error) {
	if v.Dim != o.Dim {
		return SVect{}, ErrDimensionMismatch
	}
	var idx []uint32
	var val []float32
	i, j := 0, 0
	for i < len(v.Indexes) && j < len(o.Indexes) {
		switch {
		case v.Indexes[i] == o.Indexes[j]:
			p := v.Values[i] * o.Values[j]
			if p != 0 {
				idx = append(idx, v.Indexes[i])
				val = append(val, p)
			}
			i++
			j++
		case v.Indexes[i] < o.Indexes[j]:
			i++
		default:
			j++
		}
	}
	return SVect{Dim: v.Dim, Indexes: idx, Values: val}, nil
}

func mergeSparse(a, b BorrowedSVect, op func(x, y float32) float32) (SVect, error) {
	var idx []uint32
	var val []float32
	i, j := 0, 0
	for i < len(a.Indexes) || j < len(b.Indexes) {
		switch {
		case j >= len(b.Indexes) || (i < len(a.Indexes) && a.Indexes[i] < b.Indexes[j]):
			if v := op(a.Values[i], 0); v != 0 {
				idx = append(idx, a.Indexes[i])
				val = append(val, v)
			}
			i++
		case i >= len(a.Indexes) || b.Indexes[j] < a.Indexes[i]:
			if v := op(0, b.Values[j]); v != 0 {
				idx = append(idx, b.Indexes[j])
				val = append(val, v)
			}
			j++
		default:
			if v := op(a.Values[i], b.Values[j]); v != 0 {
				idx = append(idx, a.Indexes[i])
				val = append(val, v)
			}
			i++
			j++
		}
	}
	return SVect{Dim: a.Dim, Indexes: idx, Values: val}, nil
}

// Normalize returns an owned L2-normalized copy.
func (v BorrowedSVect) Normalize() SVect {
	norm := v.Norm()
	out := make([]float32, len(v.Values))
	idx := make([]uint32, len(v.Indexes))
	copy(idx, v.Indexes)
	if norm == 0 {
		copy(out, v.Values)
		return SVect{Dim: v.Dim, Indexes: idx, Values: out}
	}
	for i, x := range v.Values {
		out[i] = x / norm
	}
	return SVect{Dim: v.Dim, Indexes: idx, Values: out}
}

// Subvector slices to the half-open coordinate range [lo, hi).
func (v BorrowedSVect) Subvector(lo, hi uint32) (SVect, bool) {
	if lo > hi || hi > v.Dim {
		return SVect{}, false
	}
	start := sort.Search(len(v.Indexes), func(i int) bool { return v.Indexes[i] >= lo })
	end := sort.Search(len(v.Indexes), func(i int) bool { return v.Indexes[i] >= hi })
	idx := make([]uint32, end-start)
	val := make([]float32, end-start)
	for k := start; k < end; k++ {
		idx[k-start] = v.Indexes[k] - lo
		val[k-start] = v.Values[k]
	}
	return SVect{Dim: hi - lo, Indexes: idx, Values: val}, true
}

// Less implements the sparse PartialOrd quirk from spec §4.B / §9: absent
// coordinates compare as zero, compared lexicographically by coordinate.
// This has order-sensitive semantics for mixed-sign vectors; preserved
// exactly, not "fixed".
func (v BorrowedSVect) Less(o BorrowedSVect) bool {
	i, j := 0, 0
	for i < len(v.Indexes) || j < len(o.Indexes) {
		var ai, bi uint32
		var av, bv float32
		hasA, hasB := i < len(v.Indexes), j < len(o.Indexes)
		if hasA {
			ai, av = v.Indexes[i], v.Values[i]
		}
		if hasB {
			bi, bv = o.Indexes[j], o.Values[j]
		}
		switch {
		case hasA && (!hasB || ai < bi):
			if av != 0 {
				return av < 0
			}
			i++
		case hasB && (!hasA || bi < ai):
			if bv != 0 {
				return 0 < bv
			}
			j++
		default:
			if av != bv {
				return av < bv
			}
			i++
			j++
		}
	}
	return false
}

package vector

import (
	"math"
	"testing"
)

const epsilon = 1e-5

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < epsilon
}

func TestDenseL2(t *testing.T) {
	a, _ := NewVect([]float32{1, 0, 0})
	b, _ := NewVect([]float32{0, 1, 0})
	d, err := a.Borrow().OperatorL2(b.Borrow())
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(d.Value(), 2) {
		t.Errorf("L2 = %v, want 2", d.Value())
	}
}

func TestDenseSubvectorConcatenation(t *testing.T) {
	x, _ := NewVect([]float32{1, 2, 3, 4, 5})
	lo, ok := x.Borrow().Subvector(0, 2)
	if !ok {
		t.Fatal("subvector failed")
	}
	hi, ok := x.Borrow().Subvector(2, 5)
	if !ok {
		t.Fatal("subvector failed")
	}
	got := append(append([]float32{}, lo.Data...), hi.Data...)
	for i := range got {
		if got[i] != x.Data[i] {
			t.Errorf("subvector concat mismatch at %d: %v != %v", i, got[i], x.Data[i])
		}
	}
}

func TestSparseAddPreservesInvariants(t *testing.T) {
	a, err := NewSVect(10, []uint32{1, 3, 5}, []float32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSVect(10, []uint32{3, 4}, []float32{-2, 7})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := a.Borrow().Add(b.Borrow())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSVect(sum.Dim, sum.Indexes, sum.Values); err != nil {
		t.Errorf("sum violates sparse invariants: %v", err)
	}
	// index 3 should have cancelled to zero and been dropped
	for _, idx := range sum.Indexes {
		if idx == 3 {
			t.Errorf("expected index 3 to cancel out, got value present")
		}
	}
}

func TestBitVectorInvariantRejectsPadding(t *testing.T) {
	if _, err := NewBVect(3, []uint64{0xFF}); err == nil {
		t.Error("expected error for nonzero trailing padding bits")
	}
	if _, err := NewBVect(3, []uint64{0b101}); err != nil {
		t.Errorf("unexpected error for valid padding: %v", err)
	}
}

func TestBitHammingAndJaccard(t *testing.T) {
	a, _ := NewBVect(4, []uint64{0b1010})
	b, _ := NewBVect(4, []uint64{0b0110})

	h, err := a.Borrow().OperatorHamming(b.Borrow())
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(h.Value(), 2) {
		t.Errorf("Hamming = %v, want 2", h.Value())
	}

	j, err := a.Borrow().OperatorJaccard(b.Borrow())
	if err != nil {
		t.Fatal(err)
	}
	// intersection=1, union=3 -> distance = 1 - 1/3
	if !almostEqual(j.Value(), float32(1.0-1.0/3.0)) {
		t.Errorf("Jaccard = %v, want %v", j.Value(), 1.0-1.0/3.0)
	}
}

func TestBitSubvectorRepacksBits(t *testing.T) {
	full, _ := NewBVect(8, []uint64{0b10110010})
	sub, ok := full.Borrow().Subvector(2, 6)
	if !ok {
		t.Fatal("subvector failed")
	}
	if sub.Dim != 4 {
		t.Fatalf("expected dim 4, got %d", sub.Dim)
	}
	for i := uint32(0); i < 4; i++ {
		want := full.Borrow().bitAt(i + 2)
		got := sub.Borrow().bitAt(i)
		if want != got {
			t.Errorf("bit %d mismatch: want %v got %v", i, want, got)
		}
	}
}

func TestUnsupportedDistanceReturnsUnimplemented(t *testing.T) {
	a, _ := NewVect([]float32{1, 2})
	b, _ := NewVect([]float32{3, 4})
	if _, err := a.Borrow().OperatorHamming(b.Borrow()); err != ErrUnimplemented {
		t.Errorf("expected ErrUnimplemented, got %v", err)
	}
}

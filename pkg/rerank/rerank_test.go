package rerank

import (
	"testing"

	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

func exactDistances(values map[uint32]float32) RerankFunc[uint32] {
	return func(id uint32) (vector.Distance, uint32) {
		return vector.FromF32(values[id]), id
	}
}

func TestWindowDropsBeyondCapacityAndPopsAscending(t *testing.T) {
	values := map[uint32]float32{1: 5, 2: 1, 3: 9, 4: 2, 5: 3}
	r := NewWindow[uint32](3, exactDistances(values))
	for id, v := range values {
		r.Push(Candidate{ID: id, Est: v})
	}

	var got []uint32
	for r.Len() > 0 {
		id, _, ok := r.Pop()
		if !ok {
			break
		}
		got = append(got, id)
	}

	if len(got) != 3 {
		t.Fatalf("expected window to retain 3 candidates, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if values[got[i-1]] > values[got[i]] {
			t.Errorf("Pop not ascending: %v", got)
		}
	}
}

func TestWindow0PopsSmallestFirst(t *testing.T) {
	values := map[uint32]float32{10: 3, 20: 1, 30: 2}
	r := NewWindow0[uint32](exactDistances(values))
	for id, v := range values {
		r.Push(Candidate{ID: id, Est: v})
	}

	id, dist, ok := r.Pop()
	if !ok || id != 20 || dist.Value() != 1 {
		t.Errorf("first pop = (%v, %v, %v), want (20, 1, true)", id, dist.Value(), ok)
	}
}

func TestErrorlessFlatSkipsRerank(t *testing.T) {
	r := NewErrorlessFlat[string](func(id uint32) string {
		return "item"
	})
	r.Push(Candidate{ID: 1, Est: 4})
	r.Push(Candidate{ID: 2, Est: 1})

	_, dist, ok := r.Pop()
	if !ok || dist.Value() != 1 {
		t.Errorf("pop = (%v, %v), want exact rough distance 1", dist.Value(), ok)
	}
}

func TestErrorBasedOrdersByEstMinusEpsilonErr(t *testing.T) {
	values := map[uint32]float32{1: 10, 2: 10}
	r := NewErrorBased[uint32](1.0, exactDistances(values))
	// candidate 1 has high err so est-eps*err should rank it first
	r.Push(Candidate{ID: 1, Est: 10, Err: 8})
	r.Push(Candidate{ID: 2, Est: 10, Err: 1})

	id, _, ok := r.Pop()
	if !ok || id != 1 {
		t.Errorf("first pop id = %v, want 1 (lower est-eps*err)", id)
	}
}

func TestEmptyRerankerPopReturnsFalse(t *testing.T) {
	r := NewWindow0[int](exactDistances(nil))
	if _, _, ok := r.Pop(); ok {
		t.Error("Pop on empty reranker should return ok=false")
	}
}

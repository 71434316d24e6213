// Package rerank implements the five reranker shapes that sit between a
// quantizer's rough distance and the exact distance used to rank final
// results (spec §4.F). Each implements RerankerPop[T]: push rough
// candidates in, pop exact-distanced results out. Window and ErrorlessFlat
// pop in ascending exact order; Window0 and Graph pop in ascending rough
// order and ErrorBased in ascending est - epsilon*err order, exact-distancing
// each popped candidate.
// A reranker is one-shot — drained, not resettable, grounded on the
// minHeap/maxHeap pattern in pkg/hnsw/insert.go.
package rerank

import (
	"container/heap"

	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// Candidate is a rough-scored id fed to a reranker. Err is only
// meaningful to ErrorBased; other shapes ignore it.
type Candidate struct {
	ID  uint32
	Est float32
	Err float32
}

// RerankFunc computes the exact distance and payload for an id, invoked
// lazily by rerankers that only need to exact-distance their surviving
// candidates.
type RerankFunc[T any] func(id uint32) (vector.Distance, T)

// RerankerPop is the common contract every reranker shape implements.
type RerankerPop[T any] interface {
	Push(c Candidate)
	Pop() (T, vector.Distance, bool)
	Len() int
}

type heapItem struct {
	id  uint32
	est float32
	err float32
}

type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].est-h[i].err < h[j].est-h[j].err }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type maxHeap []heapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].est-h[i].err > h[j].est-h[j].err }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Window pushes rough (distance, id) pairs into a fixed-size max-heap of
// size W; once full, candidates rougher than the current worst are
// dropped before any exact distance is computed. Pop exact-distances the
// whole remaining heap once and drains it smallest-first.
type Window[T any] struct {
	w        int
	rerank   RerankFunc[T]
	h        maxHeap
	drained  []rerankedItem[T]
	draining bool
}

type rerankedItem[T any] struct {
	value T
	dist  vector.Distance
}

func NewWindow[T any](w int, rerank RerankFunc[T]) *Window[T] {
	return &Window[T]{w: w, rerank: rerank}
}

func (r *Window[T]) Push(c Candidate) {
	if r.w <= 0 {
		return
	}
	heap.Push(&r.h, heapItem{id: c.ID, est: c.Est})
	if r.h.Len() > r.w {
		heap.Pop(&r.h)
	}
}

func (r *Window[T]) materialize() {
	if r.draining {
		return
	}
	r.draining = true
	r.drained = make([]rerankedItem[T], 0, r.h.Len())
	for r.h.Len() > 0 {
		item := heap.Pop(&r.h).(heapItem)
		dist, value := r.rerank(item.id)
		r.drained = append(r.drained, rerankedItem[T]{value: value, dist: dist})
	}
	// h popped worst-first (max-heap); reverse to ascending rough order,
	// then sort by exact distance
	for i, j := 0, len(r.drained)-1; i < j; i, j = i+1, j-1 {
		r.drained[i], r.drained[j] = r.drained[j], r.drained[i]
	}
	sortByDistance(r.drained)
}

func (r *Window[T]) Pop() (T, vector.Distance, bool) {
	r.materialize()
	var zero T
	if len(r.drained) == 0 {
		return zero, vector.Distance{}, false
	}
	top := r.drained[0]
	r.drained = r.drained[1:]
	return top.value, top.dist, true
}

func (r *Window[T]) Len() int {
	if r.draining {
		return len(r.drained)
	}
	return r.h.Len()
}

func sortByDistance[T any](items []rerankedItem[T]) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].dist.Value() < items[j-1].dist.Value(); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// Window0 is Window with W = infinity, but lazy: each Pop exact-distances
// only the single best remaining rough candidate.
type Window0[T any] struct {
	rerank RerankFunc[T]
	h      minHeap
}

func NewWindow0[T any](rerank RerankFunc[T]) *Window0[T] {
	return &Window0[T]{rerank: rerank}
}

func (r *Window0[T]) Push(c Candidate) {
	heap.Push(&r.h, heapItem{id: c.ID, est: c.Est})
}

func (r *Window0[T]) Pop() (T, vector.Distance, bool) {
	var zero T
	if r.h.Len() == 0 {
		return zero, vector.Distance{}, false
	}
	item := heap.Pop(&r.h).(heapItem)
	dist, value := r.rerank(item.id)
	return value, dist, true
}

func (r *Window0[T]) Len() int { return r.h.Len() }

// ErrorlessFlat is for quantizers whose rough distance is already exact
// (Trivial): Pop just drains a priority queue, no exact recomputation.
type ErrorlessFlat[T any] struct {
	lookup func(id uint32) T
	h      minHeap
}

func NewErrorlessFlat[T any](lookup func(id uint32) T) *ErrorlessFlat[T] {
	return &ErrorlessFlat[T]{lookup: lookup}
}

func (r *ErrorlessFlat[T]) Push(c Candidate) {
	heap.Push(&r.h, heapItem{id: c.ID, est: c.Est})
}

func (r *ErrorlessFlat[T]) Pop() (T, vector.Distance, bool) {
	var zero T
	if r.h.Len() == 0 {
		return zero, vector.Distance{}, false
	}
	item := heap.Pop(&r.h).(heapItem)
	return r.lookup(item.id), vector.FromF32(item.est), true
}

func (r *ErrorlessFlat[T]) Len() int { return r.h.Len() }

// Graph is Window0's shape exposed with explicit push/pop for HNSW graph
// traversal with quantization: candidates stream in as the graph is
// walked, and results are extracted sorted once traversal ends.
type Graph[T any] struct {
	inner *Window0[T]
}

func NewGraph[T any](rerank RerankFunc[T]) *Graph[T] {
	return &Graph[T]{inner: NewWindow0[T](rerank)}
}

func (r *Graph[T]) Push(c Candidate)                { r.inner.Push(c) }
func (r *Graph[T]) Pop() (T, vector.Distance, bool)  { return r.inner.Pop() }
func (r *Graph[T]) Len() int                         { return r.inner.Len() }

// ErrorBased is for RaBitQ: candidates carry both an estimate and an
// additive error; ordering uses est - epsilon*err, with exact distancing
// done lazily on Pop (spec §4.F "Error-based").
type ErrorBased[T any] struct {
	epsilon float32
	rerank  RerankFunc[T]
	h       minHeap
}

func NewErrorBased[T any](epsilon float32, rerank RerankFunc[T]) *ErrorBased[T] {
	return &ErrorBased[T]{epsilon: epsilon, rerank: rerank}
}

func (r *ErrorBased[T]) Push(c Candidate) {
	heap.Push(&r.h, heapItem{id: c.ID, est: c.Est, err: r.epsilon * c.Err})
}

func (r *ErrorBased[T]) Pop() (T, vector.Distance, bool) {
	var zero T
	if r.h.Len() == 0 {
		return zero, vector.Distance{}, false
	}
	item := heap.Pop(&r.h).(heapItem)
	dist, value := r.rerank(item.id)
	return value, dist, true
}

func (r *ErrorBased[T]) Len() int { return r.h.Len() }

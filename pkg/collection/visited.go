package collection

import "sync"

// VisitedGuard is one recyclable "visited set" of size N: mark/check a
// row without allocating or zeroing memory per query (spec §4.C, §5,
// glossary "Visited-pool").
type VisitedGuard struct {
	versions []uint32
	version  uint32
}

// Mark records that row i has been visited in the guard's current
// generation.
func (g *VisitedGuard) Mark(i uint32) { g.versions[i] = g.version }

// Check reports whether row i was visited in the guard's current
// generation.
func (g *VisitedGuard) Check(i uint32) bool { return g.versions[i] == g.version }

// reset bumps the generation counter; on wraparound the backing array is
// zeroed once to keep the invariant (versions == 0 means "never visited").
func (g *VisitedGuard) reset() {
	g.version++
	if g.version == 0 {
		for i := range g.versions {
			g.versions[i] = 0
		}
		g.version = 1
	}
}

// VisitedPool recycles VisitedGuards sized for N rows, bounding allocation
// across concurrent queries (spec §4.C, §5 "Shared resources").
type VisitedPool struct {
	mu    sync.Mutex
	n     uint32
	free  []*VisitedGuard
}

// NewVisitedPool creates a pool whose guards have capacity for n rows.
func NewVisitedPool(n uint32) *VisitedPool {
	return &VisitedPool{n: n}
}

// Acquire returns a guard with a fresh generation, reusing a recycled one
// when available.
func (p *VisitedPool) Acquire() *VisitedGuard {
	p.mu.Lock()
	var g *VisitedGuard
	if len(p.free) > 0 {
		g = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
	}
	p.mu.Unlock()

	if g == nil {
		g = &VisitedGuard{versions: make([]uint32, p.n)}
	}
	g.reset()
	return g
}

// Release returns a guard to the pool for reuse.
func (p *VisitedPool) Release(g *VisitedGuard) {
	p.mu.Lock()
	p.free = append(p.free, g)
	p.mu.Unlock()
}

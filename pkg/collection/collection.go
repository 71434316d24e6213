// Package collection implements the storage layer shared by every index:
// memory-mapped append-only arrays, the JSON blob helper, the Collection
// abstraction with remapping, sampling, and the visited-set pool used
// across concurrent searches. See spec §4.C.
package collection

import (
	"math/rand"

	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// Payload is an opaque 128-bit record carried alongside each vector. The
// core never interprets it (spec §3).
type Payload [2]uint64

// Collection is the read interface every index builds against: a source
// of (vector, payload) pairs indexed by internal row number 0..Len()-1.
type Collection interface {
	Dims() uint32
	Len() uint32
	Vector(i uint32) vector.BorrowedVect
	Payload(i uint32) Payload
}

// SparseCollection is the sparse-vector analogue of Collection.
type SparseCollection interface {
	Dims() uint32
	Len() uint32
	Vector(i uint32) vector.BorrowedSVect
	Payload(i uint32) Payload
}

// SliceCollection is an in-memory Collection, typically the result of
// materializing a Source for training or small builds.
type SliceCollection struct {
	dims     uint32
	vectors  [][]float32
	payloads []Payload
}

// NewSliceCollection builds a SliceCollection from parallel vector/payload
// slices. All vectors must share dims.
func NewSliceCollection(dims uint32, vectors [][]float32, payloads []Payload) *SliceCollection {
	return &SliceCollection{dims: dims, vectors: vectors, payloads: payloads}
}

func (c *SliceCollection) Dims() uint32 { return c.dims }
func (c *SliceCollection) Len() uint32  { return uint32(len(c.vectors)) }
func (c *SliceCollection) Vector(i uint32) vector.BorrowedVect {
	return vector.BorrowedVect{Data: c.vectors[i]}
}
func (c *SliceCollection) Payload(i uint32) Payload { return c.payloads[i] }

// RemappedCollection interposes an index translation: RemappedCollection
// presents row i of the caller's view as inner row remap[i]. IVF builds
// use this to present the collection in cell order without copying
// vectors twice (spec §3 "Identifiers", §4.H step 5).
type RemappedCollection struct {
	Inner Collection
	Remap []uint32 // Remap[i] = original row index for presented row i
}

func (r *RemappedCollection) Dims() uint32 { return r.Inner.Dims() }
func (r *RemappedCollection) Len() uint32  { return uint32(len(r.Remap)) }
func (r *RemappedCollection) Vector(i uint32) vector.BorrowedVect {
	return r.Inner.Vector(r.Remap[i])
}
func (r *RemappedCollection) Payload(i uint32) Payload {
	return r.Inner.Payload(r.Remap[i])
}

// Vec2 is a 2-D ragged-free row-major matrix, the result type of Sample.
type Vec2 struct {
	Shape0, Shape1 int
	Data           []float32
}

// Row returns a view over row i without copying.
func (m Vec2) Row(i int) []float32 {
	return m.Data[i*m.Shape1 : (i+1)*m.Shape1]
}

// Sample draws min(n, Len()) indices without replacement from collection
// and materializes them as a Vec2. Uses an independent, process-seeded RNG
// per spec §4.C ("StdRng::from_entropy").
func Sample(n int, c Collection) Vec2 {
	total := int(c.Len())
	if n > total {
		n = total
	}
	perm := rand.Perm(total)[:n]

	dim := int(c.Dims())
	out := Vec2{Shape0: n, Shape1: dim, Data: make([]float32, n*dim)}
	for row, idx := range perm {
		copy(out.Data[row*dim:(row+1)*dim], c.Vector(uint32(idx)).Data)
	}
	return out
}

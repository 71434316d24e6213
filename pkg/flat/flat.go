// Package flat implements the Flat index: every vector's quantized code
// stored sequentially, searched by a full scan through the reranker
// (spec §4.G). Grounded on the teacher's pkg/ivf/index.go storage-layout
// idiom (sync.RWMutex-guarded slices, fmt.Errorf for validation), with
// the actual search loop new per the spec.
package flat

import (
	"context"
	"fmt"
	"sync"

	"github.com/therealutkarshpriyadarshi/vector/internal/quantization"
	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/rerank"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// Result is one ranked hit from a Search call.
type Result struct {
	Payload  collection.Payload
	Distance vector.Distance
}

// Index is a Flat index over a fixed quantizer.
type Index struct {
	mu         sync.RWMutex
	quantizer  quantization.CoreQuantizer
	dim        int
	codes      [][]byte
	fscanCodes [][]byte // only populated when the quantizer supports fast-scan
	payloads   []collection.Payload
	built      bool
}

// New constructs an empty Flat index for the given quantizer. Call Build
// to populate it from a collection.
func New(q quantization.CoreQuantizer) *Index {
	return &Index{quantizer: q}
}

// Build trains the quantizer on sample and encodes every vector in c. trainOpts is forwarded to the quantizer's
// Train call; sample is the training sample (spec §4.C "Sample without
// replacement").
func (idx *Index) Build(ctx context.Context, c collection.Collection, sample collection.Vec2, trainOpts quantization.TrainOptions) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if c.Len() == 0 {
		return fmt.Errorf("flat: cannot build from an empty collection")
	}

	if err := idx.quantizer.Train(ctx, sample, trainOpts); err != nil {
		return fmt.Errorf("flat: train: %w", err)
	}

	idx.dim = int(c.Dims())
	n := int(c.Len())
	idx.codes = make([][]byte, n)
	idx.payloads = make([]collection.Payload, n)

	blockWidth := idx.quantizer.FScanBlockWidth()
	var pendingBlock [][]float32

	for i := 0; i < n; i++ {
		x := c.Vector(uint32(i)).Data
		idx.codes[i] = idx.quantizer.Encode(x)
		idx.payloads[i] = c.Payload(uint32(i))

		if blockWidth > 0 {
			pendingBlock = append(pendingBlock, x)
			if len(pendingBlock) == blockWidth {
				idx.fscanCodes = append(idx.fscanCodes, idx.quantizer.FScanEncode(pendingBlock))
				pendingBlock = pendingBlock[:0]
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if blockWidth > 0 && len(pendingBlock) > 0 {
		idx.fscanCodes = append(idx.fscanCodes, idx.quantizer.FScanEncode(pendingBlock))
	}

	idx.built = true
	return nil
}

// ExactDistancer lets Search compute exact distances for reranking;
// the caller supplies it since only they know how to fetch the original
// vector for a given internal index (e.g. from the same collection).
type ExactDistancer func(query []float32, i int) vector.Distance

// Search walks every code (fast-scan blocks when supported, scalar
// otherwise), feeds rough distances to a reranker appropriate for the
// quantizer, and returns the top k exact-distanced results.
func (idx *Index) Search(query []float32, k int, exact ExactDistancer) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil, fmt.Errorf("flat: index not built")
	}
	if k <= 0 {
		return nil, nil
	}

	reranker := idx.newReranker(k, query, exact)

	if idx.quantizer.FScanBlockWidth() > 0 && len(idx.fscanCodes) > 0 {
		flut := idx.quantizer.FScanPreprocess(query)
		width := idx.quantizer.FScanBlockWidth()
		for b, packed := range idx.fscanCodes {
			roughs := idx.quantizer.FScanProcess(flut, packed)
			base := b * width
			for j, d := range roughs {
				i := base + j
				if i >= len(idx.codes) {
					break
				}
				reranker.Push(rerank.Candidate{ID: uint32(i), Est: d.Value()})
			}
		}
	} else {
		lut := idx.quantizer.Preprocess(query)
		for i, code := range idx.codes {
			d := idx.quantizer.Process(lut, code)
			reranker.Push(rerank.Candidate{ID: uint32(i), Est: d.Value()})
		}
	}

	results := make([]Result, 0, k)
	for len(results) < k {
		r, d, ok := reranker.Pop()
		if !ok {
			break
		}
		results = append(results, Result{Payload: r, Distance: d})
	}
	return results, nil
}

// newReranker picks the spec §4.F shape that matches the quantizer:
// Trivial's rough distance is already exact (Errorless-flat), RaBitQ
// carries a lower-bound error term (Error-based), everything else uses a
// bounded Window.
func (idx *Index) newReranker(k int, query []float32, exact ExactDistancer) rerank.RerankerPop[collection.Payload] {
	exactFn := func(id uint32) (vector.Distance, collection.Payload) {
		return exact(query, int(id)), idx.payloads[id]
	}

	switch idx.quantizer.(type) {
	case *quantization.Trivial:
		return rerank.NewErrorlessFlat[collection.Payload](func(id uint32) collection.Payload {
			return idx.payloads[id]
		})
	case *quantization.CoreRaBitQ:
		return rerank.NewErrorBased[collection.Payload](1.9, exactFn)
	default:
		w := 4 * k
		if w < 32 {
			w = 32
		}
		return rerank.NewWindow[collection.Payload](w, exactFn)
	}
}

// Len returns the number of encoded vectors in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.codes)
}

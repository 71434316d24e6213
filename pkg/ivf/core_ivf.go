package ivf

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/therealutkarshpriyadarshi/vector/internal/quantization"
	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/kmeans"
	"github.com/therealutkarshpriyadarshi/vector/pkg/rerank"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// CoreIndex is the spec §4.H IVF index: k-means coarse partitioning (with
// an optional residual-quantization layer), cell-ordered storage via
// collection.RemappedCollection, and nprobe search merged into a single
// shared reranker. Added alongside the teacher's original IVFFlat/IVFPQ
// (index.go, ivf_pq.go), which keep their own map-based storage for
// pkg/scann callers not yet moved onto this path.
type CoreIndex struct {
	mu        sync.RWMutex
	dim       int
	distance  quantization.CoreDistance
	quantizer quantization.CoreQuantizer
	residual  bool

	centroids []float32 // nlist*dim
	nlist     int

	offsets    []int // len nlist+1, prefix sum of cell sizes
	cellOf     []int // which cell each presented row belongs to (parallel to codes)
	codes      [][]byte
	fscanCodes [][]byte
	payloads   []collection.Payload
	built      bool
}

// CoreOptions configures a CoreIndex build.
type CoreOptions struct {
	NList                int
	Distance             quantization.CoreDistance
	ResidualQuantization bool
	TrainOpts            quantization.TrainOptions
}

// NewCoreIndex constructs an untrained IVF index around the given
// quantizer.
func NewCoreIndex(q quantization.CoreQuantizer) *CoreIndex {
	return &CoreIndex{quantizer: q}
}

const assignWorkers = 8

// Build runs the spec §4.H build pipeline: k-means partitioning, cell
// assignment, cell-order permutation, quantizer training, and encoding.
func (idx *CoreIndex) Build(ctx context.Context, c collection.Collection, sample collection.Vec2, opts CoreOptions) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := int(c.Len())
	if n == 0 {
		return fmt.Errorf("ivf: cannot build from an empty collection")
	}
	if opts.NList <= 0 {
		return fmt.Errorf("ivf: nlist must be positive")
	}

	idx.dim = int(c.Dims())
	idx.distance = opts.Distance
	idx.nlist = opts.NList
	idx.residual = opts.ResidualQuantization

	kopts := kmeans.DefaultOptions()
	if opts.Distance == quantization.CoreCos || opts.Distance == quantization.CoreDot {
		kopts.Spherical = kmeans.SphericalNormalize
	}
	result := kmeans.Train(sample, opts.NList, kopts)
	idx.centroids = result.Centroids

	assign := idx.assignParallel(c, n)

	counts := make([]int, idx.nlist)
	for _, a := range assign {
		counts[a]++
	}
	idx.offsets = make([]int, idx.nlist+1)
	for i := 0; i < idx.nlist; i++ {
		idx.offsets[i+1] = idx.offsets[i] + counts[i]
	}

	// stable cell-order permutation: remap[presented row] = original row
	cursor := append([]int{}, idx.offsets[:idx.nlist]...)
	remap := make([]uint32, n)
	idx.cellOf = make([]int, n)
	for original, a := range assign {
		pos := cursor[a]
		cursor[a]++
		remap[pos] = uint32(original)
		idx.cellOf[pos] = a
	}
	remapped := &collection.RemappedCollection{Inner: c, Remap: remap}

	trainSample := sample
	if idx.residual {
		trainSample = idx.residualize(sample, assign[:sample.Shape0])
	}
	if err := idx.quantizer.Train(ctx, trainSample, opts.TrainOpts); err != nil {
		return fmt.Errorf("ivf: quantizer train: %w", err)
	}

	idx.codes = make([][]byte, n)
	idx.payloads = make([]collection.Payload, n)
	blockWidth := idx.quantizer.FScanBlockWidth()
	var pendingBlock [][]float32

	for i := 0; i < n; i++ {
		x := remapped.Vector(uint32(i)).Data
		enc := x
		if idx.residual {
			enc = subtractCentroid(x, idx.centroids, idx.cellOf[i], idx.dim)
		}
		idx.codes[i] = idx.quantizer.Encode(enc)
		idx.payloads[i] = remapped.Payload(uint32(i))

		if blockWidth > 0 {
			pendingBlock = append(pendingBlock, enc)
			if len(pendingBlock) == blockWidth {
				idx.fscanCodes = append(idx.fscanCodes, idx.quantizer.FScanEncode(pendingBlock))
				pendingBlock = pendingBlock[:0]
			}
		}
	}
	if blockWidth > 0 && len(pendingBlock) > 0 {
		idx.fscanCodes = append(idx.fscanCodes, idx.quantizer.FScanEncode(pendingBlock))
	}

	idx.built = true
	return nil
}

func subtractCentroid(x []float32, centroids []float32, cell, dim int) []float32 {
	out := make([]float32, dim)
	base := cell * dim
	for d := 0; d < dim; d++ {
		out[d] = x[d] - centroids[base+d]
	}
	return out
}

func (idx *CoreIndex) residualize(sample collection.Vec2, assign []uint32) collection.Vec2 {
	out := collection.Vec2{Shape0: sample.Shape0, Shape1: sample.Shape1, Data: make([]float32, len(sample.Data))}
	for i := 0; i < sample.Shape0; i++ {
		row := sample.Row(i)
		dst := out.Row(i)
		base := int(assign[i]) * sample.Shape1
		for d := 0; d < sample.Shape1; d++ {
			dst[d] = row[d] - idx.centroids[base+d]
		}
	}
	return out
}

// assignParallel finds the nearest centroid for every row of c using a
// fixed worker pool, grounded on the jobs-channel + sync.WaitGroup pattern
// in pkg/hnsw/batch.go's BatchInsert.
func (idx *CoreIndex) assignParallel(c collection.Collection, n int) []uint32 {
	assign := make([]uint32, n)
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < assignWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				x := c.Vector(uint32(i)).Data
				best, _ := kmeans.NearestCentroid(x, idx.centroids, idx.dim)
				assign[i] = uint32(best)
			}
		}()
	}
	wg.Wait()
	return assign
}

// Result is one ranked hit from a Search call.
type Result struct {
	Payload  collection.Payload
	Distance vector.Distance
}

// CoreExactDistancer computes the exact distance from a query to the
// original (non-residualized) vector at presented row i.
type CoreExactDistancer func(query []float32, i int) vector.Distance

// Search implements spec §4.H's probe-then-rerank search: find the
// nprobe nearest centroids, scan each selected cell's codes through the
// quantizer (residualizing the query per-cell when the index uses
// residual quantization), and drain one shared reranker.
func (idx *CoreIndex) Search(query []float32, k, nprobe int, exact CoreExactDistancer) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built {
		return nil, fmt.Errorf("ivf: index not built")
	}
	if k <= 0 {
		return nil, nil
	}
	if nprobe <= 0 || nprobe > idx.nlist {
		nprobe = idx.nlist
	}

	cells := idx.nearestCells(query, nprobe)

	exactFn := func(id uint32) (vector.Distance, collection.Payload) {
		return exact(query, int(id)), idx.payloads[id]
	}
	var reranker rerank.RerankerPop[collection.Payload]
	switch idx.quantizer.(type) {
	case *quantization.Trivial:
		reranker = rerank.NewErrorlessFlat[collection.Payload](func(id uint32) collection.Payload {
			return idx.payloads[id]
		})
	case *quantization.CoreRaBitQ:
		reranker = rerank.NewErrorBased[collection.Payload](1.9, exactFn)
	default:
		w := 4 * k
		if w < 32 {
			w = 32
		}
		reranker = rerank.NewWindow[collection.Payload](w, exactFn)
	}

	for _, cell := range cells {
		lo, hi := idx.offsets[cell], idx.offsets[cell+1]
		if lo == hi {
			continue
		}

		q := query
		if idx.residual {
			q = subtractCentroid(query, idx.centroids, cell, idx.dim)
		}

		if idx.quantizer.FScanBlockWidth() > 0 {
			idx.searchCellFastScan(q, lo, hi, reranker)
		} else {
			lut := idx.quantizer.Preprocess(q)
			for i := lo; i < hi; i++ {
				d := idx.quantizer.Process(lut, idx.codes[i])
				reranker.Push(rerank.Candidate{ID: uint32(i), Est: d.Value()})
			}
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

// searchCellFastScan walks the fast-scan blocks that intersect [lo,hi).
// Blocks are built over the full code array during Build, so block b
// covers presented rows [b*width, (b+1)*width).
func (idx *CoreIndex) searchCellFastScan(query []float32, lo, hi int, reranker rerank.RerankerPop[collection.Payload]) {
	width := idx.quantizer.FScanBlockWidth()
	flut := idx.quantizer.FScanPreprocess(query)
	firstBlock := lo / width
	lastBlock := (hi - 1) / width
	for b := firstBlock; b <= lastBlock && b < len(idx.fscanCodes); b++ {
		roughs := idx.quantizer.FScanProcess(flut, idx.fscanCodes[b])
		base := b * width
		for j, d := range roughs {
			i := base + j
			if i < lo || i >= hi {
				continue
			}
			reranker.Push(rerank.Candidate{ID: uint32(i), Est: d.Value()})
		}
	}
}

func (idx *CoreIndex) nearestCells(query []float32, nprobe int) []int {
	type distPair struct {
		idx  int
		dist float32
	}
	distances := make([]distPair, idx.nlist)
	for i := 0; i < idx.nlist; i++ {
		_, d := kmeans.NearestCentroid(query, idx.centroids[i*idx.dim:(i+1)*idx.dim], idx.dim)
		distances[i] = distPair{idx: i, dist: d}
	}
	sort.Slice(distances, func(a, b int) bool { return distances[a].dist < distances[b].dist })
	if nprobe > len(distances) {
		nprobe = len(distances)
	}
	out := make([]int, nprobe)
	for i := 0; i < nprobe; i++ {
		out[i] = distances[i].idx
	}
	return out
}

// Len returns the number of encoded vectors in the index.
func (idx *CoreIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.codes)
}

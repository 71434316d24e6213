// Package seismic implements the spec §4.J sparse inverted index: pruned
// per-dimension posting lists clustered into blocks, a quantized
// per-block summary vector for coarse filtering, and a heap-admission
// test gating exact per-document scoring. Wholly new relative to the
// teacher (which has no sparse-vector support); the posting-list/build/
// search split mirrors the file layout the teacher uses for its other
// index packages, and the worker-side clustering reuses pkg/kmeans'
// nearest-centroid primitive.
package seismic

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/rerank"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// Options configures a build.
type Options struct {
	NPostings       int     // target postings retained per list before block clustering
	CentroidFraction float32 // fraction of a (truncated) list's length used as block count
	SummaryEnergy   float32 // cumulative-energy cutoff for summary vector truncation
	Seed            int64
}

// DefaultOptions returns the spec's suggested defaults.
func DefaultOptions() Options {
	return Options{
		NPostings:        1000,
		CentroidFraction: 0.1,
		SummaryEnergy:    0.4,
		Seed:             1,
	}
}

const minClusterSize = 2

// posting is one (row, value) pair in a dimension's inverted list.
type posting struct {
	row   uint32
	value float32
}

// block is one cluster of postings within a dimension's list, plus its
// quantized summary vector.
type block struct {
	postings []posting
	summary  quantizedSummary
}

// quantizedSummary is a sparse, u8-quantized per-dimension max-vector
// used for coarse block scoring.
type quantizedSummary struct {
	indexes []uint32
	codes   []uint8
	scale   float32 // dequantize: value = code * scale
}

// list is one dimension's pruned, block-clustered posting list.
type list struct {
	dim    uint32
	blocks []block
}

// Index is a built Seismic sparse inverted index.
type Index struct {
	dim      uint32
	lists    map[uint32]*list
	payloads []collection.Payload
	coll     collection.SparseCollection
	opts     Options
	built    bool
}

// New constructs an untrained index.
func New() *Index { return &Index{lists: make(map[uint32]*list)} }

// Build implements spec §4.J's three build steps: prune+bucket postings
// by dimension, cluster each list into blocks via one-pass nearest-
// centroid k-means, then summarize each block into a quantized max-
// vector.
func (idx *Index) Build(ctx context.Context, c collection.SparseCollection, opts Options) error {
	n := int(c.Len())
	if n == 0 {
		return fmt.Errorf("seismic: cannot build from an empty collection")
	}
	idx.dim = c.Dims()
	idx.opts = opts
	idx.coll = c
	idx.payloads = make([]collection.Payload, n)

	buckets := make(map[uint32][]posting)
	for i := 0; i < n; i++ {
		v := c.Vector(uint32(i))
		idx.payloads[i] = c.Payload(uint32(i))
		for j, d := range v.Indexes {
			buckets[d] = append(buckets[d], posting{row: uint32(i), value: v.Values[j]})
		}
	}

	idx.lists = make(map[uint32]*list, len(buckets))
	r := rand.New(rand.NewSource(opts.Seed))
	dims := make([]uint32, 0, len(buckets))
	for d := range buckets {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })

	for _, d := range dims {
		postings := buckets[d]
		sort.Slice(postings, func(i, j int) bool { return postings[i].value > postings[j].value })
		listCap := int(1.5 * float32(opts.NPostings))
		if listCap > 0 && len(postings) > listCap {
			postings = postings[:listCap]
		}

		idx.lists[d] = buildList(d, postings, c, opts, r)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	idx.built = true
	return nil
}

func buildList(dim uint32, postings []posting, c collection.SparseCollection, opts Options, r *rand.Rand) *list {
	nClusters := int(float32(len(postings)) * opts.CentroidFraction)
	if nClusters < 1 {
		nClusters = 1
	}
	if nClusters > len(postings) {
		nClusters = len(postings)
	}

	assign := clusterByValue(postings, nClusters, r)
	redistributeSmallClusters(assign, nClusters)

	groups := make([][]posting, nClusters)
	for i, a := range assign {
		groups[a] = append(groups[a], postings[i])
	}

	blocks := make([]block, 0, nClusters)
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		blocks = append(blocks, block{postings: g, summary: summarize(g, c, dim, opts.SummaryEnergy)})
	}
	return &list{dim: dim, blocks: blocks}
}

// clusterByValue runs one pass of nearest-centroid k-means on the scalar
// posting values (the only dimension available once a list has been
// reduced to a single inverted-index column), seeding centroids from a
// random subset of postings.
func clusterByValue(postings []posting, k int, r *rand.Rand) []int {
	centroids := make([]float32, k)
	perm := r.Perm(len(postings))
	for i := 0; i < k; i++ {
		centroids[i] = postings[perm[i%len(perm)]].value
	}

	assign := make([]int, len(postings))
	for i, p := range postings {
		best, bestDist := 0, float32(1e30)
		for ci, c := range centroids {
			d := (p.value - c) * (p.value - c)
			if d < bestDist {
				bestDist = d
				best = ci
			}
		}
		assign[i] = best
	}
	return assign
}

func redistributeSmallClusters(assign []int, k int) {
	counts := make([]int, k)
	for _, a := range assign {
		counts[a]++
	}
	for c := 0; c < k; c++ {
		if counts[c] >= minClusterSize || counts[c] == 0 {
			continue
		}
		target := 0
		for t := 0; t < k; t++ {
			if counts[t] > counts[target] {
				target = t
			}
		}
		for i, a := range assign {
			if a == c {
				assign[i] = target
				counts[target]++
				counts[c]--
				break
			}
		}
	}
}

// summarize computes the per-dimension coordinate-wise max over a
// block's documents, truncated to the indexes whose cumulative value
// reaches energy*total, and quantizes the result to u8.
func summarize(g []posting, c collection.SparseCollection, listDim uint32, energy float32) quantizedSummary {
	maxOf := make(map[uint32]float32)
	for _, p := range g {
		v := c.Vector(p.row)
		for j, d := range v.Indexes {
			if cur, ok := maxOf[d]; !ok || v.Values[j] > cur {
				maxOf[d] = v.Values[j]
			}
		}
	}

	dims := make([]uint32, 0, len(maxOf))
	var total float32
	for d, v := range maxOf {
		dims = append(dims, d)
		total += v
	}
	sort.Slice(dims, func(i, j int) bool { return maxOf[dims[i]] > maxOf[dims[j]] })

	var cumulative float32
	cut := len(dims)
	for i, d := range dims {
		cumulative += maxOf[d]
		if total > 0 && cumulative >= energy*total {
			cut = i + 1
			break
		}
	}
	kept := dims[:cut]
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })

	var max float32
	for _, d := range kept {
		if maxOf[d] > max {
			max = maxOf[d]
		}
	}
	scale := max / 255
	if scale == 0 {
		scale = 1
	}

	codes := make([]uint8, len(kept))
	for i, d := range kept {
		code := maxOf[d] / scale
		if code > 255 {
			code = 255
		}
		codes[i] = uint8(code)
	}
	return quantizedSummary{indexes: kept, codes: codes, scale: scale}
}

// dot computes the quantized summary's dot product against a dense
// query expressed as sparse (index, value) pairs, sorted ascending.
func (s quantizedSummary) dot(queryIdx []uint32, queryVal []float32) float32 {
	var sum float32
	i, j := 0, 0
	for i < len(s.indexes) && j < len(queryIdx) {
		switch {
		case s.indexes[i] == queryIdx[j]:
			sum += float32(s.codes[i]) * s.scale * queryVal[j]
			i++
			j++
		case s.indexes[i] < queryIdx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Result is one ranked hit.
type Result struct {
	Payload  collection.Payload
	Distance vector.Distance
}

// Search implements spec §4.J's search: select the qCut top query
// components by magnitude, score blocks via the quantized summary dot
// product, and admit a block for exact scoring only when
// score/heapFactor exceeds the current kth-best.
func (idx *Index) Search(query vector.BorrowedSVect, k, qCut int, heapFactor float32) ([]Result, error) {
	if !idx.built {
		return nil, fmt.Errorf("seismic: index not built")
	}
	if k <= 0 {
		return nil, nil
	}
	if heapFactor <= 0 {
		heapFactor = 1
	}

	type comp struct {
		idx uint32
		val float32
	}
	comps := make([]comp, len(query.Indexes))
	for i, d := range query.Indexes {
		comps[i] = comp{idx: d, val: query.Values[i]}
	}
	sort.Slice(comps, func(i, j int) bool {
		return abs32(comps[i].val) > abs32(comps[j].val)
	})
	if qCut > 0 && qCut < len(comps) {
		comps = comps[:qCut]
	}

	qIdx := make([]uint32, len(comps))
	qVal := make([]float32, len(comps))
	for i, cp := range comps {
		qIdx[i] = cp.idx
		qVal[i] = cp.val
	}
	sortByIndex(qIdx, qVal)

	reranker := rerank.NewWindow[collection.Payload](k, func(id uint32) (vector.Distance, collection.Payload) {
		return idx.exactDot(id, query), idx.payloads[id]
	})

	seen := make(map[uint32]bool)
	var kth float32 = float32(1e30)
	admitted := 0

	for _, cp := range comps {
		l, ok := idx.lists[cp.idx]
		if !ok {
			continue
		}
		for _, b := range l.blocks {
			score := b.summary.dot(qIdx, qVal)
			if admitted >= k && score/heapFactor <= kth {
				continue
			}
			for _, p := range b.postings {
				if seen[p.row] {
					continue
				}
				seen[p.row] = true
				d := idx.exactDot(p.row, query)
				reranker.Push(rerank.Candidate{ID: p.row, Est: d.Value()})
				admitted++
				if d.Value() < kth {
					kth = d.Value()
				}
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

func (idx *Index) exactDot(row uint32, query vector.BorrowedSVect) vector.Distance {
	d, _ := idx.coll.Vector(row).OperatorDot(query)
	return d
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func sortByIndex(idxs []uint32, vals []float32) {
	type pair struct {
		idx uint32
		val float32
	}
	pairs := make([]pair, len(idxs))
	for i := range idxs {
		pairs[i] = pair{idxs[i], vals[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].idx < pairs[j].idx })
	for i, p := range pairs {
		idxs[i] = p.idx
		vals[i] = p.val
	}
}

// Len returns the number of vectors indexed.
func (idx *Index) Len() int { return len(idx.payloads) }

package hnsw

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/therealutkarshpriyadarshi/vector/internal/quantization"
	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/rerank"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// CoreIndex is the spec §4.I HNSW index: a deterministic leveling rule
// (replacing the teacher's randomLevel), per-(vertex,layer) adjacency
// locks (generalizing Node's single mutex), Robust-Selection pruning
// (replacing selectNeighbors' "keep M closest"), and a streaming vbase
// search in addition to the basic capped search. Quantized variants
// (HnswSq/HnswPq/HnswRq) score query-to-node distance against stored
// codes instead of raw vectors; see queryScorer. Added alongside the
// teacher's original random-level Index (index.go/insert.go/search.go),
// left in place for callers that only need unquantized HNSW.
type CoreIndex struct {
	M              int
	efConstruction int
	distance       quantization.CoreDistance
	// quantizer, when non-nil, supplies rough distances for candidate
	// ranking (HnswSq/HnswPq/HnswRq); nil means exact float32 distance
	// (plain Hnsw). When set, every inserted vector is additionally
	// encoded into codes so query-to-node scoring during beam search can
	// use Process/a Lut instead of the raw vector.
	quantizer quantization.CoreQuantizer

	mu      sync.RWMutex // protects the nodes map, codes map, and nodeCounter
	nodes   map[uint32]*coreNode
	codes   map[uint32][]byte
	counter uint32
	dim     int

	entryMu sync.RWMutex
	entry   uint32
	hasEntry bool
}

type coreLayer struct {
	mu        sync.RWMutex
	neighbors []uint32
}

type coreNode struct {
	id      uint32
	vector  []float32
	payload collection.Payload
	layers  []*coreLayer // layers[0] is the base layer
}

func (n *coreNode) topLayer() int { return len(n.layers) - 1 }

// NewCoreIndex constructs an empty HNSW index. quantizer may be nil for
// the plain (unquantized) variant.
func NewCoreIndex(m, efConstruction int, distance quantization.CoreDistance, quantizer quantization.CoreQuantizer) *CoreIndex {
	return &CoreIndex{
		M:              m,
		efConstruction: efConstruction,
		distance:       distance,
		quantizer:      quantizer,
		nodes:          make(map[uint32]*coreNode),
		codes:          make(map[uint32][]byte),
	}
}

// vM returns the largest k such that M^k divides n.
func vM(n uint32, m int) int {
	if m < 2 || n == 0 {
		return 0
	}
	k := 0
	mm := uint32(m)
	for n%mm == 0 {
		n /= mm
		k++
	}
	return k
}

// levelsFor implements the spec's deterministic level rule:
// levels(i) = 1 + v_M(i+1).
func levelsFor(i uint32, m int) int {
	return 1 + vM(i+1, m)
}

func edgeBudget(layer, m int) int {
	if layer == 0 {
		return 2 * m
	}
	return m
}

func (idx *CoreIndex) exactDistance(a, b []float32) float32 {
	x := vector.BorrowedVect{Data: a}
	y := vector.BorrowedVect{Data: b}
	var d vector.Distance
	var err error
	switch idx.distance {
	case quantization.CoreDot:
		d, err = x.OperatorDot(y)
	case quantization.CoreCos:
		d, err = x.OperatorCos(y)
	default:
		d, err = x.OperatorL2(y)
	}
	if err != nil {
		return float32(math.Inf(1))
	}
	return d.Value()
}

// codeFor returns the quantized code stored for id, or nil if none (no
// quantizer, or id predates it).
func (idx *CoreIndex) codeFor(id uint32) []byte {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.codes[id]
}

// queryScorer evaluates query-to-node distance for one traversal (one
// Insert or one Search call). With a quantizer it preprocesses query into
// a Lut once and scores every visited node against stored codes instead
// of the raw float32 vector (spec §4.I "built atop quantized storage");
// without one it falls back to exactDistance.
type queryScorer struct {
	idx *CoreIndex
	lut quantization.Lut
}

func (idx *CoreIndex) newQueryScorer(query []float32) queryScorer {
	if idx.quantizer == nil {
		return queryScorer{idx: idx}
	}
	return queryScorer{idx: idx, lut: idx.quantizer.Preprocess(query)}
}

func (s queryScorer) distanceTo(query []float32, n *coreNode) float32 {
	if s.lut != nil {
		if code := s.idx.codeFor(n.id); code != nil {
			return s.idx.quantizer.Process(s.lut, code).Value()
		}
	}
	return s.idx.exactDistance(query, n.vector)
}

// Insert adds a vector (and opaque payload) to the index, returning its
// assigned id. Follows spec §4.I's Build steps: fast-search down to the
// target's top layer, then per-layer beam search + Robust-Selection
// pruning from there to layer 0.
func (idx *CoreIndex) Insert(ctx context.Context, x []float32, payload collection.Payload) (uint32, error) {
	idx.mu.Lock()
	if idx.dim == 0 {
		idx.dim = len(x)
	} else if len(x) != idx.dim {
		idx.mu.Unlock()
		return 0, fmt.Errorf("hnsw: vector dimension mismatch: expected %d, got %d", idx.dim, len(x))
	}
	id := idx.counter
	idx.counter++
	top := levelsFor(id, idx.M) - 1
	layers := make([]*coreLayer, top+1)
	for i := range layers {
		layers[i] = &coreLayer{}
	}
	node := &coreNode{id: id, vector: x, payload: payload, layers: layers}
	idx.nodes[id] = node
	if idx.quantizer != nil {
		idx.codes[id] = idx.quantizer.Encode(x)
	}
	idx.mu.Unlock()

	idx.entryMu.RLock()
	hasEntry := idx.hasEntry
	entryID := idx.entry
	idx.entryMu.RUnlock()

	if !hasEntry {
		idx.entryMu.Lock()
		if !idx.hasEntry {
			idx.entry = id
			idx.hasEntry = true
		}
		idx.entryMu.Unlock()
		return id, nil
	}

	idx.mu.RLock()
	entryNode := idx.nodes[entryID]
	idx.mu.RUnlock()

	scorer := idx.newQueryScorer(x)
	u := entryNode
	uDist := scorer.distanceTo(x, u)

	// fast-search: greedy hill-climb down through layers strictly above
	// min(top, entry's top layer)
	target := top
	if entryNode.topLayer() < target {
		target = entryNode.topLayer()
	}
	for layer := entryNode.topLayer(); layer > target; layer-- {
		u, uDist = idx.greedyDescend(scorer, x, u, uDist, layer)
	}

	for layer := target; layer >= 0; layer-- {
		candidates := idx.beamSearch(scorer, x, u, idx.efConstruction, layer)
		budget := edgeBudget(layer, idx.M)
		kept := robustSelect(candidates, budget, idx)

		u = kept[0].node
		for _, c := range kept {
			idx.linkAndPrune(node, c.node, layer, budget)
		}

		select {
		case <-ctx.Done():
			return id, ctx.Err()
		default:
		}
	}

	if top > entryNode.topLayer() {
		idx.entryMu.Lock()
		if cur := idx.nodes[idx.entry]; cur == nil || top > cur.topLayer() {
			idx.entry = id
		}
		idx.entryMu.Unlock()
	}

	return id, nil
}

type candidate struct {
	node *coreNode
	dist float32
}

func (idx *CoreIndex) greedyDescend(scorer queryScorer, query []float32, u *coreNode, uDist float32, layer int) (*coreNode, float32) {
	changed := true
	for changed {
		changed = false
		u.layers[layer].mu.RLock()
		neighbors := append([]uint32{}, u.layers[layer].neighbors...)
		u.layers[layer].mu.RUnlock()

		for _, nid := range neighbors {
			idx.mu.RLock()
			n := idx.nodes[nid]
			idx.mu.RUnlock()
			if n == nil {
				continue
			}
			d := scorer.distanceTo(query, n)
			if d < uDist {
				uDist = d
				u = n
				changed = true
			}
		}
	}
	return u, uDist
}

// beamSearch runs a local beam search of the given width from entry at
// layer, returning candidates sorted by ascending distance. scorer
// supplies quantized rough distances when idx has a quantizer, exact
// float32 distance otherwise.
func (idx *CoreIndex) beamSearch(scorer queryScorer, query []float32, entry *coreNode, width, layer int) []candidate {
	visited := map[uint32]bool{entry.id: true}
	entryDist := scorer.distanceTo(query, entry)

	frontier := []candidate{{node: entry, dist: entryDist}}
	best := []candidate{{node: entry, dist: entryDist}}

	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].dist < frontier[j].dist })
		cur := frontier[0]
		frontier = frontier[1:]

		worst := best[len(best)-1].dist
		if len(best) >= width && cur.dist > worst {
			break
		}

		cur.node.layers[layer].mu.RLock()
		neighbors := append([]uint32{}, cur.node.layers[layer].neighbors...)
		cur.node.layers[layer].mu.RUnlock()

		for _, nid := range neighbors {
			if visited[nid] {
				continue
			}
			visited[nid] = true
			idx.mu.RLock()
			n := idx.nodes[nid]
			idx.mu.RUnlock()
			if n == nil {
				continue
			}
			d := scorer.distanceTo(query, n)
			frontier = append(frontier, candidate{node: n, dist: d})
			best = append(best, candidate{node: n, dist: d})
			sort.Slice(best, func(i, j int) bool { return best[i].dist < best[j].dist })
			if len(best) > width {
				best = best[:width]
			}
		}
	}
	return best
}

// robustSelect implements the spec's Robust-Selection pruning: iterate
// ascending distance, keep a candidate only if it is closer to the query
// than to every already-kept candidate, stopping at budget.
func robustSelect(candidates []candidate, budget int, idx *CoreIndex) []candidate {
	if len(candidates) == 0 {
		return candidates
	}
	kept := make([]candidate, 0, budget)
	for _, c := range candidates {
		if len(kept) >= budget {
			break
		}
		ok := true
		for _, k := range kept {
			if idx.exactDistance(c.node.vector, k.node.vector) < c.dist {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, candidates[0])
	}
	return kept
}

func (idx *CoreIndex) linkAndPrune(a, b *coreNode, layer, budget int) {
	addEdge(a, b.id, layer)
	addEdge(b, a.id, layer)
	idx.pruneLayer(b, layer, budget)
	idx.pruneLayer(a, layer, budget)
}

func addEdge(n *coreNode, neighbor uint32, layer int) {
	l := n.layers[layer]
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.neighbors {
		if e == neighbor {
			return
		}
	}
	l.neighbors = append(l.neighbors, neighbor)
}

func (idx *CoreIndex) pruneLayer(n *coreNode, layer, budget int) {
	n.layers[layer].mu.RLock()
	neighbors := append([]uint32{}, n.layers[layer].neighbors...)
	n.layers[layer].mu.RUnlock()
	if len(neighbors) <= budget {
		return
	}

	cands := make([]candidate, 0, len(neighbors))
	for _, nid := range neighbors {
		idx.mu.RLock()
		nn := idx.nodes[nid]
		idx.mu.RUnlock()
		if nn == nil {
			continue
		}
		cands = append(cands, candidate{node: nn, dist: idx.exactDistance(n.vector, nn.vector)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	kept := robustSelect(cands, budget, idx)

	ids := make([]uint32, len(kept))
	for i, c := range kept {
		ids[i] = c.node.id
	}
	n.layers[layer].mu.Lock()
	n.layers[layer].neighbors = ids
	n.layers[layer].mu.Unlock()
}

// CoreSearchResult is one ranked hit.
type CoreSearchResult struct {
	Payload  collection.Payload
	Distance vector.Distance
}

// SearchBasic implements spec §4.I's basic search: fast-search through
// top layers, then a capped beam search at layer 0 with a results heap
// of size k. When idx has a quantizer, the beam search ranks candidates
// by rough distance and a rerank.Graph exact-rescorer (spec §4.F, the
// HNSW-with-quantization shape) produces the final ascending-exact order.
func (idx *CoreIndex) SearchBasic(query []float32, k, efSearch int) ([]CoreSearchResult, error) {
	idx.entryMu.RLock()
	hasEntry, entryID := idx.hasEntry, idx.entry
	idx.entryMu.RUnlock()
	if !hasEntry {
		return nil, fmt.Errorf("hnsw: index is empty")
	}

	idx.mu.RLock()
	entry := idx.nodes[entryID]
	idx.mu.RUnlock()

	scorer := idx.newQueryScorer(query)
	u := entry
	uDist := scorer.distanceTo(query, u)
	for layer := entry.topLayer(); layer > 0; layer-- {
		u, uDist = idx.greedyDescend(scorer, query, u, uDist, layer)
	}
	_ = uDist

	width := efSearch
	if width < k {
		width = k
	}
	candidates := idx.beamSearch(scorer, query, u, width, 0)

	if idx.quantizer == nil {
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		out := make([]CoreSearchResult, len(candidates))
		for i, c := range candidates {
			out[i] = CoreSearchResult{Payload: c.node.payload, Distance: vector.FromF32(c.dist)}
		}
		return out, nil
	}

	reranker := rerank.NewGraph[collection.Payload](func(id uint32) (vector.Distance, collection.Payload) {
		idx.mu.RLock()
		n := idx.nodes[id]
		idx.mu.RUnlock()
		return vector.FromF32(idx.exactDistance(query, n.vector)), n.payload
	})
	for _, c := range candidates {
		reranker.Push(rerank.Candidate{ID: c.node.id, Est: c.dist})
	}

	out := make([]CoreSearchResult, 0, k)
	for len(out) < k {
		payload, dist, ok := reranker.Pop()
		if !ok {
			break
		}
		out = append(out, CoreSearchResult{Payload: payload, Distance: dist})
	}
	return out, nil
}

// VBaseIterator streams candidates from layer 0 in rough-distance order:
// a stage-1 prefix of efSearch smallest-so-far results in ascending
// order, then further candidates found by expanding neighbors, nearest
// frontier entry first, unboundedly (spec §4.I "Search — vbase").
type VBaseIterator struct {
	idx      *CoreIndex
	query    []float32
	scorer   queryScorer
	visited  map[uint32]bool
	frontier []candidate
	stage1   []candidate
	layer    int
}

// SearchVBase begins a streaming search at layer 0 from the fast-searched
// entry point.
func (idx *CoreIndex) SearchVBase(query []float32, efSearch int) (*VBaseIterator, error) {
	idx.entryMu.RLock()
	hasEntry, entryID := idx.hasEntry, idx.entry
	idx.entryMu.RUnlock()
	if !hasEntry {
		return nil, fmt.Errorf("hnsw: index is empty")
	}

	idx.mu.RLock()
	entry := idx.nodes[entryID]
	idx.mu.RUnlock()

	scorer := idx.newQueryScorer(query)
	u := entry
	uDist := scorer.distanceTo(query, u)
	for layer := entry.topLayer(); layer > 0; layer-- {
		u, uDist = idx.greedyDescend(scorer, query, u, uDist, layer)
	}

	stage1 := idx.beamSearch(scorer, query, u, efSearch, 0)
	visited := map[uint32]bool{u.id: true}
	for _, c := range stage1 {
		visited[c.node.id] = true
	}

	return &VBaseIterator{
		idx:      idx,
		query:    query,
		scorer:   scorer,
		visited:  visited,
		frontier: []candidate{},
		stage1:   stage1,
		layer:    0,
	}, nil
}

// Next returns the next stage-1 result, then the nearest unemitted
// frontier candidate, or ok=false once the graph is exhausted.
func (it *VBaseIterator) Next() (CoreSearchResult, bool) {
	if len(it.stage1) > 0 {
		c := it.stage1[0]
		it.stage1 = it.stage1[1:]
		it.expandNeighbors(c)
		return CoreSearchResult{Payload: c.node.payload, Distance: vector.FromF32(c.dist)}, true
	}
	if len(it.frontier) == 0 {
		return CoreSearchResult{}, false
	}
	sort.Slice(it.frontier, func(i, j int) bool { return it.frontier[i].dist < it.frontier[j].dist })
	c := it.frontier[0]
	it.frontier = it.frontier[1:]
	it.expandNeighbors(c)
	return CoreSearchResult{Payload: c.node.payload, Distance: vector.FromF32(c.dist)}, true
}

func (it *VBaseIterator) expandNeighbors(c candidate) {
	c.node.layers[it.layer].mu.RLock()
	neighbors := append([]uint32{}, c.node.layers[it.layer].neighbors...)
	c.node.layers[it.layer].mu.RUnlock()

	for _, nid := range neighbors {
		if it.visited[nid] {
			continue
		}
		it.visited[nid] = true
		it.idx.mu.RLock()
		n := it.idx.nodes[nid]
		it.idx.mu.RUnlock()
		if n == nil {
			continue
		}
		d := it.scorer.distanceTo(it.query, n)
		it.frontier = append(it.frontier, candidate{node: n, dist: d})
	}
}

const maxFilteredEntryProbes = 10000

// EntrySelectionUnderFilter implements spec §4.I's filtered entry
// selection: probe a sparse subset of ids via a deterministic shift
// pattern (shift = M^k) and return the first id passing filter.
func (idx *CoreIndex) EntrySelectionUnderFilter(filter func(collection.Payload) bool) (uint32, bool) {
	idx.mu.RLock()
	n := idx.counter
	idx.mu.RUnlock()
	if n == 0 {
		return 0, false
	}

	shift := uint32(1)
	for k := 1; uint64(shift)*uint64(idx.M) < uint64(n); k++ {
		shift *= uint32(idx.M)
	}
	if shift == 0 {
		shift = 1
	}

	id := uint32(0)
	for probes := 0; probes < maxFilteredEntryProbes; probes++ {
		idx.mu.RLock()
		node := idx.nodes[id%n]
		idx.mu.RUnlock()
		if node != nil && filter(node.payload) {
			return node.id, true
		}
		id += shift
	}
	return 0, false
}

// Len returns the number of vectors inserted.
func (idx *CoreIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// PersistEdges writes the three mmap arrays the spec calls for, as three
// sibling files under path's directory: edges flattened by (vertex,
// layer, position), by_layer_id offsets into edges per (vertex,layer),
// and by_vertex_id offsets into by_layer_id per vertex (spec §4.I
// "Persistence", §6 on-disk layout). A reopened index needs all three to
// recover adjacency, not just edges.
func (idx *CoreIndex) PersistEdges(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.nodes)
	ids := make([]uint32, 0, n)
	for id := range idx.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	byVertexID := make([]uint64, n+1)
	var byLayerID []uint64
	var edges [][2]uint32 // (bits(f32 distance), neighbor) pairs are written raw below

	for vi, id := range ids {
		node := idx.nodes[id]
		byVertexID[vi] = uint64(len(byLayerID))
		for layer := 0; layer <= node.topLayer(); layer++ {
			node.layers[layer].mu.RLock()
			byLayerID = append(byLayerID, uint64(len(edges)))
			for _, nid := range node.layers[layer].neighbors {
				d := idx.exactDistance(node.vector, idx.nodes[nid].vector)
				edges = append(edges, [2]uint32{math.Float32bits(d), nid})
			}
			node.layers[layer].mu.RUnlock()
		}
	}
	byLayerID = append(byLayerID, uint64(len(edges)))
	byVertexID[n] = uint64(len(byLayerID))

	if err := collection.WriteMMapArray(path+".edges", len(edges), 8, func(i int) []byte {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint32(buf[0:4], edges[i][0])
		binary.LittleEndian.PutUint32(buf[4:8], edges[i][1])
		return buf
	}); err != nil {
		return fmt.Errorf("hnsw: persist edges: %w", err)
	}

	if err := collection.WriteMMapArray(path+".by_layer_id", len(byLayerID), 8, func(i int) []byte {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, byLayerID[i])
		return buf
	}); err != nil {
		return fmt.Errorf("hnsw: persist by_layer_id: %w", err)
	}

	if err := collection.WriteMMapArray(path+".by_vertex_id", len(byVertexID), 8, func(i int) []byte {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, byVertexID[i])
		return buf
	}); err != nil {
		return fmt.Errorf("hnsw: persist by_vertex_id: %w", err)
	}

	return nil
}

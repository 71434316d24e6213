// Package index implements the spec §4.K dispatcher: a closed tagged
// union over every concrete index specialization, selected once at build
// time and thereafter a pure forwarding surface. Go has no closed-enum
// generics the way the original system does, so the idiomatic substitute
// is a struct carrying a Kind tag plus one populated field per variant,
// dispatched with a type-switch-free direct field read.
package index

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/internal/quantization"
	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/diskann"
	"github.com/therealutkarshpriyadarshi/vector/pkg/flat"
	"github.com/therealutkarshpriyadarshi/vector/pkg/hnsw"
	"github.com/therealutkarshpriyadarshi/vector/pkg/ivf"
	"github.com/therealutkarshpriyadarshi/vector/pkg/nsg"
	"github.com/therealutkarshpriyadarshi/vector/pkg/scann"
	"github.com/therealutkarshpriyadarshi/vector/pkg/seismic"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// Kind names one of the closed union's variants. The Sq/Pq/Rq suffixes
// name which quantizer backs Flat/Ivf/Hnsw; Seismic is its own kind; the
// three Extra* kinds forward to the teacher's other ANN structures,
// which spec §4.K's "fully enumerable, not exhaustive" wording permits.
type Kind int

const (
	KindFlat Kind = iota
	KindFlatSq
	KindFlatPq
	KindFlatRq
	KindIvf
	KindIvfSq
	KindIvfPq
	KindIvfRq
	KindHnsw
	KindHnswSq
	KindHnswPq
	KindHnswRq
	KindSeismic
	KindExtraDiskANN
	KindExtraNSG
	KindExtraSCANN
)

// Element is one ranked result flowing out of any variant's Search.
type Element struct {
	Payload  collection.Payload
	Distance vector.Distance
}

// SealedIndex is the closed tagged union: exactly one of the pointer
// fields is non-nil, matching Kind. Methods forward to whichever is set.
type SealedIndex struct {
	kind Kind

	flatIdx    *flat.Index
	ivfIdx     *ivf.CoreIndex
	hnswIdx    *hnsw.CoreIndex
	seismicIdx *seismic.Index
	diskannIdx *diskann.Index
	nsgIdx     *nsg.Index
	scannIdx   *scann.SCANN

	// diskannPayloads/nsgPayloads recover collection.Payload from the raw
	// uint64 node ids those two teacher packages still use internally.
	diskannPayloads map[uint64]collection.Payload
	nsgPayloads     map[uint64]collection.Payload
}

// Kind returns the concrete variant this index was built as.
func (s *SealedIndex) Kind() Kind { return s.kind }

// AsAny returns the concrete underlying index for callers needing
// introspection beyond the forwarding surface (spec §4.K "as_any()").
func (s *SealedIndex) AsAny() interface{} {
	switch s.kind {
	case KindFlat, KindFlatSq, KindFlatPq, KindFlatRq:
		return s.flatIdx
	case KindIvf, KindIvfSq, KindIvfPq, KindIvfRq:
		return s.ivfIdx
	case KindHnsw, KindHnswSq, KindHnswPq, KindHnswRq:
		return s.hnswIdx
	case KindSeismic:
		return s.seismicIdx
	case KindExtraDiskANN:
		return s.diskannIdx
	case KindExtraNSG:
		return s.nsgIdx
	case KindExtraSCANN:
		return s.scannIdx
	default:
		return nil
	}
}

// quantizerFor builds the CoreQuantizer implied by a Kind's Sq/Pq/Rq
// suffix (Trivial for the plain Flat/Ivf/Hnsw kinds).
func quantizerFor(kind Kind) quantization.CoreQuantizer {
	switch kind {
	case KindFlatSq, KindIvfSq, KindHnswSq:
		return quantization.NewCoreScalar8()
	case KindFlatPq, KindIvfPq, KindHnswPq:
		return quantization.NewCoreProduct()
	case KindFlatRq, KindIvfRq, KindHnswRq:
		return quantization.NewCoreRaBitQ()
	default:
		return quantization.NewTrivial()
	}
}

// BuildFlat builds a Flat (or FlatSq/FlatPq/FlatRq) index.
func BuildFlat(ctx context.Context, kind Kind, c collection.Collection, sample collection.Vec2, trainOpts quantization.TrainOptions) (*SealedIndex, error) {
	idx := flat.New(quantizerFor(kind))
	if err := idx.Build(ctx, c, sample, trainOpts); err != nil {
		return nil, fmt.Errorf("index: build flat: %w", err)
	}
	return &SealedIndex{kind: kind, flatIdx: idx}, nil
}

// BuildIvf builds an Ivf (or IvfSq/IvfPq/IvfRq) index.
func BuildIvf(ctx context.Context, kind Kind, c collection.Collection, sample collection.Vec2, opts ivf.CoreOptions) (*SealedIndex, error) {
	idx := ivf.NewCoreIndex(quantizerFor(kind))
	if err := idx.Build(ctx, c, sample, opts); err != nil {
		return nil, fmt.Errorf("index: build ivf: %w", err)
	}
	return &SealedIndex{kind: kind, ivfIdx: idx}, nil
}

// HnswBuildOptions configures a Hnsw/HnswSq/HnswPq/HnswRq build.
type HnswBuildOptions struct {
	M              int
	EfConstruction int
	Distance       quantization.CoreDistance
}

// BuildHnsw constructs an empty Hnsw-family index ready for inserts; the
// teacher's HNSW has no bulk-train step, so unlike Flat/Ivf this returns
// the index for the caller to Insert into rather than building from a
// collection in one call.
func BuildHnsw(kind Kind, opts HnswBuildOptions) *SealedIndex {
	idx := hnsw.NewCoreIndex(opts.M, opts.EfConstruction, opts.Distance, hnswQuantizerFor(kind))
	return &SealedIndex{kind: kind, hnswIdx: idx}
}

func hnswQuantizerFor(kind Kind) quantization.CoreQuantizer {
	switch kind {
	case KindHnswSq, KindHnswPq, KindHnswRq:
		return quantizerFor(kind)
	default:
		return nil
	}
}

// BuildSeismic builds a Seismic index from a sparse collection.
func BuildSeismic(ctx context.Context, c collection.SparseCollection, opts seismic.Options) (*SealedIndex, error) {
	idx := seismic.New()
	if err := idx.Build(ctx, c, opts); err != nil {
		return nil, fmt.Errorf("index: build seismic: %w", err)
	}
	return &SealedIndex{kind: KindSeismic, seismicIdx: idx}, nil
}

// BuildExtraDiskANN constructs a DiskANN index from c and dispatches it
// as KindExtraDiskANN. Unlike the teacher's original AddVector/Build
// pair, this drives construction off a collection.Collection and keeps
// the id->Payload mapping needed to translate DiskANN's raw uint64 node
// ids back into the same Element shape every other kind returns.
func BuildExtraDiskANN(c collection.Collection, config diskann.IndexConfig) (*SealedIndex, error) {
	idx, err := diskann.New(config)
	if err != nil {
		return nil, fmt.Errorf("index: new diskann: %w", err)
	}
	payloads, err := diskann.BuildFromCollection(idx, c)
	if err != nil {
		return nil, fmt.Errorf("index: build diskann: %w", err)
	}
	return &SealedIndex{kind: KindExtraDiskANN, diskannIdx: idx, diskannPayloads: payloads}, nil
}

// BuildExtraNSG constructs an NSG index from c and dispatches it as
// KindExtraNSG, following the same collection-driven path as
// BuildExtraDiskANN.
func BuildExtraNSG(c collection.Collection, config nsg.IndexConfig) (*SealedIndex, error) {
	idx := nsg.New(config)
	payloads, err := nsg.BuildFromCollection(idx, c)
	if err != nil {
		return nil, fmt.Errorf("index: build nsg: %w", err)
	}
	return &SealedIndex{kind: KindExtraNSG, nsgIdx: idx, nsgPayloads: payloads}, nil
}

// BuildExtraSCANN trains and populates a SCANN index from c (using
// sample for partition/quantizer training) and dispatches it as
// KindExtraSCANN.
func BuildExtraSCANN(ctx context.Context, c collection.Collection, sample collection.Vec2, config *scann.Config) (*SealedIndex, error) {
	idx, err := scann.BuildFromCollection(ctx, c, sample, config)
	if err != nil {
		return nil, fmt.Errorf("index: build scann: %w", err)
	}
	return &SealedIndex{kind: KindExtraSCANN, scannIdx: idx}, nil
}

// Len returns the number of vectors held by the concrete index.
func (s *SealedIndex) Len() int {
	switch s.kind {
	case KindFlat, KindFlatSq, KindFlatPq, KindFlatRq:
		return s.flatIdx.Len()
	case KindIvf, KindIvfSq, KindIvfPq, KindIvfRq:
		return s.ivfIdx.Len()
	case KindHnsw, KindHnswSq, KindHnswPq, KindHnswRq:
		return s.hnswIdx.Len()
	case KindSeismic:
		return s.seismicIdx.Len()
	case KindExtraDiskANN:
		return int(s.diskannIdx.Size())
	case KindExtraNSG:
		return int(s.nsgIdx.Size())
	case KindExtraSCANN:
		return s.scannIdx.Len()
	default:
		return 0
	}
}

// SearchParams holds the arguments of Search, which dispatches to the
// concrete variant's search routine with whatever parameters it needs,
// normalizing results to Element. Exact supplies an exact re-scoring
// distance for quantized Flat/Ivf variants; NProbe is read only by Ivf
// kinds and ExtraSCANN; EfSearch only by Hnsw kinds.
type SearchParams struct {
	Query    []float32
	K        int
	Exact    func(query []float32, i int) vector.Distance
	NProbe   int
	EfSearch int
}

func (s *SealedIndex) Search(params SearchParams) ([]Element, error) {
	switch s.kind {
	case KindFlat, KindFlatSq, KindFlatPq, KindFlatRq:
		res, err := s.flatIdx.Search(params.Query, params.K, flat.ExactDistancer(params.Exact))
		if err != nil {
			return nil, err
		}
		return flatResultsToElements(res), nil

	case KindIvf, KindIvfSq, KindIvfPq, KindIvfRq:
		res, err := s.ivfIdx.Search(params.Query, params.K, params.NProbe, ivf.CoreExactDistancer(params.Exact))
		if err != nil {
			return nil, err
		}
		return ivfResultsToElements(res), nil

	case KindHnsw, KindHnswSq, KindHnswPq, KindHnswRq:
		ef := params.EfSearch
		if ef <= 0 {
			ef = 4 * params.K
		}
		res, err := s.hnswIdx.SearchBasic(params.Query, params.K, ef)
		if err != nil {
			return nil, err
		}
		return hnswResultsToElements(res), nil

	case KindExtraDiskANN:
		res, err := diskann.SearchCollection(s.diskannIdx, s.diskannPayloads, params.Query, params.K)
		if err != nil {
			return nil, err
		}
		out := make([]Element, len(res))
		for i, r := range res {
			out[i] = Element{Payload: r.Payload, Distance: r.Distance}
		}
		return out, nil

	case KindExtraNSG:
		res, err := nsg.SearchCollection(s.nsgIdx, s.nsgPayloads, params.Query, params.K)
		if err != nil {
			return nil, err
		}
		out := make([]Element, len(res))
		for i, r := range res {
			out[i] = Element{Payload: r.Payload, Distance: r.Distance}
		}
		return out, nil

	case KindExtraSCANN:
		nprobe := params.NProbe
		if nprobe <= 0 {
			nprobe = 1
		}
		res, err := s.scannIdx.SearchCollection(params.Query, params.K, nprobe)
		if err != nil {
			return nil, err
		}
		out := make([]Element, len(res))
		for i, r := range res {
			out[i] = Element{Payload: r.Payload, Distance: r.Distance}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("index: Search is not defined for kind %d; use SearchSparse or AsAny", s.kind)
	}
}

// SearchSparse dispatches a Seismic query.
func (s *SealedIndex) SearchSparse(query vector.BorrowedSVect, k, qCut int, heapFactor float32) ([]Element, error) {
	if s.kind != KindSeismic {
		return nil, fmt.Errorf("index: SearchSparse only valid for Seismic, got kind %d", s.kind)
	}
	res, err := s.seismicIdx.Search(query, k, qCut, heapFactor)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(res))
	for i, r := range res {
		out[i] = Element{Payload: r.Payload, Distance: r.Distance}
	}
	return out, nil
}

func flatResultsToElements(res []flat.Result) []Element {
	out := make([]Element, len(res))
	for i, r := range res {
		out[i] = Element{Payload: r.Payload, Distance: r.Distance}
	}
	return out
}

func ivfResultsToElements(res []ivf.Result) []Element {
	out := make([]Element, len(res))
	for i, r := range res {
		out[i] = Element{Payload: r.Payload, Distance: r.Distance}
	}
	return out
}

func hnswResultsToElements(res []hnsw.CoreSearchResult) []Element {
	out := make([]Element, len(res))
	for i, r := range res {
		out[i] = Element{Payload: r.Payload, Distance: r.Distance}
	}
	return out
}

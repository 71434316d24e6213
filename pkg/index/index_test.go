package index

import (
	"context"
	"math/rand"
	"testing"

	"github.com/therealutkarshpriyadarshi/vector/internal/quantization"
	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/diskann"
	"github.com/therealutkarshpriyadarshi/vector/pkg/ivf"
	"github.com/therealutkarshpriyadarshi/vector/pkg/nsg"
	"github.com/therealutkarshpriyadarshi/vector/pkg/scann"
	"github.com/therealutkarshpriyadarshi/vector/pkg/seismic"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

func randomCollection(n, dim int, seed int64) (*collection.SliceCollection, [][]float32) {
	r := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	payloads := make([]collection.Payload, n)
	for i := range vectors {
		v := make([]float32, dim)
		for d := range v {
			v[d] = r.Float32()*2 - 1
		}
		vectors[i] = v
		payloads[i] = collection.Payload{uint64(i), 0}
	}
	return collection.NewSliceCollection(uint32(dim), vectors, payloads), vectors
}

func exactL2(vectors [][]float32) func([]float32, int) vector.Distance {
	return func(query []float32, i int) vector.Distance {
		a := vector.BorrowedVect{Data: query}
		b := vector.BorrowedVect{Data: vectors[i]}
		d, _ := a.OperatorL2(b)
		return d
	}
}

func TestSealedIndexFlatDispatchesAndFindsSelf(t *testing.T) {
	c, vectors := randomCollection(40, 8, 1)
	sample := collection.Sample(40, c)

	si, err := BuildFlat(context.Background(), KindFlat, c, sample, quantization.TrainOptions{Distance: quantization.CoreL2})
	if err != nil {
		t.Fatal(err)
	}
	if si.Kind() != KindFlat {
		t.Errorf("Kind() = %v, want KindFlat", si.Kind())
	}

	query := vectors[5]
	results, err := si.Search(SearchParams{Query: query, K: 1, Exact: exactL2(vectors)})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Payload[0] != 5 {
		t.Errorf("expected self-match payload 5, got %v", results)
	}
}

func TestSealedIndexIvfDispatches(t *testing.T) {
	c, vectors := randomCollection(120, 8, 2)
	sample := collection.Sample(120, c)

	si, err := BuildIvf(context.Background(), KindIvfSq, c, sample, ivf.CoreOptions{
		NList:     4,
		Distance:  quantization.CoreL2,
		TrainOpts: quantization.TrainOptions{Distance: quantization.CoreL2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if si.Kind() != KindIvfSq {
		t.Errorf("Kind() = %v, want KindIvfSq", si.Kind())
	}

	results, err := si.Search(SearchParams{Query: vectors[0], K: 5, NProbe: 2, Exact: exactL2(vectors)})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
}

func TestSealedIndexHnswDispatches(t *testing.T) {
	si := BuildHnsw(KindHnsw, HnswBuildOptions{M: 16, EfConstruction: 100, Distance: quantization.CoreL2})
	if si.Kind() != KindHnsw {
		t.Errorf("Kind() = %v, want KindHnsw", si.Kind())
	}

	core := si.AsAny()
	if core == nil {
		t.Fatal("AsAny() returned nil")
	}
}

func TestSealedIndexSearchWrongKindErrors(t *testing.T) {
	si, err := BuildSeismicEmpty(t)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := si.Search(SearchParams{Query: []float32{1}, K: 1}); err == nil {
		t.Error("expected Search to error for a Seismic-kind index")
	}
}

// BuildSeismicEmpty is a tiny helper building a minimal Seismic index so
// TestSealedIndexSearchWrongKindErrors can exercise the kind mismatch
// path without a full sparse-collection fixture.
func BuildSeismicEmpty(t *testing.T) (*SealedIndex, error) {
	t.Helper()
	c := &miniSparse{dim: 4}
	return BuildSeismic(context.Background(), c, seismic.Options{NPostings: 10, CentroidFraction: 0.5, SummaryEnergy: 0.5, Seed: 1})
}

type miniSparse struct {
	dim uint32
}

func (m *miniSparse) Dims() uint32 { return m.dim }
func (m *miniSparse) Len() uint32  { return 1 }
func (m *miniSparse) Vector(i uint32) vector.BorrowedSVect {
	return vector.BorrowedSVect{Dim: m.dim, Indexes: []uint32{0}, Values: []float32{1}}
}
func (m *miniSparse) Payload(i uint32) collection.Payload { return collection.Payload{0, 0} }

func TestSealedIndexExtraDiskANNDispatchesAndReturnsResults(t *testing.T) {
	c, vectors := randomCollection(60, 8, 3)

	si, err := BuildExtraDiskANN(c, diskann.IndexConfig{DataPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if si.Kind() != KindExtraDiskANN {
		t.Errorf("Kind() = %v, want KindExtraDiskANN", si.Kind())
	}
	if si.Len() != 60 {
		t.Errorf("Len() = %d, want 60", si.Len())
	}

	results, err := si.Search(SearchParams{Query: vectors[7], K: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
}

func TestSealedIndexExtraNSGDispatchesAndReturnsResults(t *testing.T) {
	c, vectors := randomCollection(60, 8, 4)

	si, err := BuildExtraNSG(c, nsg.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if si.Kind() != KindExtraNSG {
		t.Errorf("Kind() = %v, want KindExtraNSG", si.Kind())
	}
	if si.Len() != 60 {
		t.Errorf("Len() = %d, want 60", si.Len())
	}

	results, err := si.Search(SearchParams{Query: vectors[3], K: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
}

func TestSealedIndexExtraSCANNDispatchesAndReturnsResults(t *testing.T) {
	c, vectors := randomCollection(200, 8, 5)
	sample := collection.Sample(200, c)

	si, err := BuildExtraSCANN(context.Background(), c, sample, scann.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if si.Kind() != KindExtraSCANN {
		t.Errorf("Kind() = %v, want KindExtraSCANN", si.Kind())
	}
	if si.Len() != 200 {
		t.Errorf("Len() = %d, want 200", si.Len())
	}

	results, err := si.Search(SearchParams{Query: vectors[11], K: 5, NProbe: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
}

package collection

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
)

func TestMMapArrayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "array.bin")

	n := 100
	if err := WriteMMapArray(path, n, 4, func(i int) []byte {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(i*i))
		return b[:]
	}); err != nil {
		t.Fatal(err)
	}

	arr, err := OpenMMapArray(path)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close()

	if arr.Len() != n {
		t.Fatalf("Len() = %d, want %d", arr.Len(), n)
	}
	for i := 0; i < n; i++ {
		got := binary.LittleEndian.Uint32(arr.Record(i))
		if got != uint32(i*i) {
			t.Errorf("record %d = %d, want %d", i, got, i*i)
		}
	}
}

func TestJSONBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.json")

	type model struct {
		K float64
		B float64
	}
	want := model{K: 1.5, B: -2.25}
	if err := WriteJSON(path, want); err != nil {
		t.Fatal(err)
	}

	var got model
	if err := ReadJSON(path, &got); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("ReadJSON = %+v, want %+v", got, want)
	}
}

func TestRemappedCollectionTranslatesIndexes(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	payloads := []Payload{{1, 0}, {2, 0}, {3, 0}}
	inner := NewSliceCollection(2, vecs, payloads)

	remap := &RemappedCollection{Inner: inner, Remap: []uint32{2, 0, 1}}
	if remap.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", remap.Len())
	}
	if remap.Payload(0) != (Payload{3, 0}) {
		t.Errorf("remapped row 0 payload = %v, want {3 0}", remap.Payload(0))
	}
	got := remap.Vector(1).Data
	want := vecs[0]
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remapped row 1 vector mismatch")
		}
	}
}

func TestSampleDrawsWithoutReplacement(t *testing.T) {
	vecs := make([][]float32, 50)
	payloads := make([]Payload, 50)
	for i := range vecs {
		vecs[i] = []float32{float32(i)}
	}
	c := NewSliceCollection(1, vecs, payloads)

	sample := Sample(10, c)
	if sample.Shape0 != 10 || sample.Shape1 != 1 {
		t.Fatalf("sample shape = (%d,%d), want (10,1)", sample.Shape0, sample.Shape1)
	}
	seen := map[float32]bool{}
	for i := 0; i < sample.Shape0; i++ {
		v := sample.Row(i)[0]
		if seen[v] {
			t.Errorf("sample drew value %v twice", v)
		}
		seen[v] = true
	}
}

func TestVisitedPoolGenerationsDontNeedZeroing(t *testing.T) {
	pool := NewVisitedPool(10)
	g := pool.Acquire()
	g.Mark(3)
	if !g.Check(3) {
		t.Error("expected row 3 to be marked")
	}
	if g.Check(4) {
		t.Error("expected row 4 to be unmarked")
	}
	pool.Release(g)

	g2 := pool.Acquire()
	if g2.Check(3) {
		t.Error("expected fresh generation to report row 3 as unmarked")
	}
}

func TestVec2RowView(t *testing.T) {
	m := Vec2{Shape0: 2, Shape1: 3, Data: []float32{1, 2, 3, 4, 5, 6}}
	row := m.Row(1)
	if math.Abs(float64(row[0]-4)) > 1e-9 {
		t.Errorf("row(1)[0] = %v, want 4", row[0])
	}
}

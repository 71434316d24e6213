package quantization

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// Trivial stores the original vector unencoded; Process is the exact
// distance, and it has no fast-scan form (spec §4.E "Trivial stores the
// original vector... no fast-scan").
type Trivial struct {
	dim      int
	distance CoreDistance
}

func NewTrivial() *Trivial { return &Trivial{} }

func (t *Trivial) Train(_ context.Context, samples collection.Vec2, opts TrainOptions) error {
	t.dim = samples.Shape1
	t.distance = opts.Distance
	return nil
}

func (t *Trivial) CodeSize() int        { return t.dim * 4 }
func (t *Trivial) FScanBlockWidth() int { return 0 }
func (t *Trivial) FCodeSize() int       { return 0 }

func (t *Trivial) Encode(x []float32) []byte {
	out := make([]byte, len(x)*4)
	for i, v := range x {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func (t *Trivial) FScanEncode([][]float32) []byte { return nil }

type trivialLut struct{ query []float32 }

func (t *Trivial) Preprocess(query []float32) Lut       { return trivialLut{query: query} }
func (t *Trivial) FScanPreprocess(query []float32) FLut { return nil }

func decodeTrivial(code []byte) []float32 {
	n := len(code) / 4
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(code[i*4:]))
	}
	return out
}

func (t *Trivial) Process(lut Lut, code []byte) vector.Distance {
	l := lut.(trivialLut)
	y := decodeTrivial(code)
	a := vector.BorrowedVect{Data: l.query}
	b := vector.BorrowedVect{Data: y}
	var d vector.Distance
	var err error
	switch t.distance {
	case CoreDot:
		d, err = a.OperatorDot(b)
	case CoreCos:
		d, err = a.OperatorCos(b)
	default:
		d, err = a.OperatorL2(b)
	}
	if err != nil {
		return vector.FromF32(float32(math.Inf(1)))
	}
	return d
}

func (t *Trivial) FScanProcess(FLut, []byte) []vector.Distance { return nil }

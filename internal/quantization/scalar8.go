package quantization

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/scalar"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// CoreScalar8 implements the spec's Scalar-8 quantizer: per-vector affine
// quantization to 8 bits, with metadata (sumOfSquares, sumOfCodes, k, b)
// stored alongside the code bytes so rough distances can be reconstructed
// from SIMD sum-of-products on the codes (spec §3, §4.E "Scalar-8").
type CoreScalar8 struct {
	dim      int
	distance CoreDistance
}

func NewCoreScalar8() *CoreScalar8 { return &CoreScalar8{} }

func (q *CoreScalar8) Train(_ context.Context, samples collection.Vec2, opts TrainOptions) error {
	q.dim = samples.Shape1
	q.distance = opts.Distance
	return nil
}

// scalar8Header is the fixed per-vector metadata prefix: sumOfSquares,
// sumOfCodes, k, b (all float32, little-endian).
const scalar8Header = 16

func (q *CoreScalar8) CodeSize() int        { return scalar8Header + q.dim }
func (q *CoreScalar8) FScanBlockWidth() int { return 0 }
func (q *CoreScalar8) FCodeSize() int       { return 0 }

func (q *CoreScalar8) Encode(x []float32) []byte {
	min, max := scalar.MinMax(x)
	k := (max - min) / 255
	if k == 0 {
		k = 1
	}
	b := min

	out := make([]byte, scalar8Header+len(x))
	var sumSq, sumCodes float32
	for i, v := range x {
		sumSq += v * v
		code := scalar.MulAddRound(v, k, b)
		out[scalar8Header+i] = code
		sumCodes += float32(code)
	}
	binary.LittleEndian.PutUint32(out[0:4], math.Float32bits(sumSq))
	binary.LittleEndian.PutUint32(out[4:8], math.Float32bits(sumCodes))
	binary.LittleEndian.PutUint32(out[8:12], math.Float32bits(k))
	binary.LittleEndian.PutUint32(out[12:16], math.Float32bits(b))
	return out
}

func (q *CoreScalar8) FScanEncode([][]float32) []byte { return nil }

type scalar8Header_ struct {
	sumSq, sumCodes, k, b float32
}

func decodeScalar8Header(code []byte) scalar8Header_ {
	return scalar8Header_{
		sumSq:     math.Float32frombits(binary.LittleEndian.Uint32(code[0:4])),
		sumCodes:  math.Float32frombits(binary.LittleEndian.Uint32(code[4:8])),
		k:         math.Float32frombits(binary.LittleEndian.Uint32(code[8:12])),
		b:         math.Float32frombits(binary.LittleEndian.Uint32(code[12:16])),
	}
}

type scalar8Lut struct {
	query     []float32
	header    scalar8Header_
	queryCode []uint8
}

// Preprocess quantizes the query with its own (k,b) the same way a stored
// vector would be, so Process can use the SIMD u8 dot-product path for
// both operands (spec §4.E "computed as SIMD reduce_sum_of_xy on u8").
func (q *CoreScalar8) Preprocess(query []float32) Lut {
	min, max := scalar.MinMax(query)
	k := (max - min) / 255
	if k == 0 {
		k = 1
	}
	b := min
	codes := make([]uint8, len(query))
	var sumSq, sumCodes float32
	for i, v := range query {
		sumSq += v * v
		c := scalar.MulAddRound(v, k, b)
		codes[i] = c
		sumCodes += float32(c)
	}
	return scalar8Lut{
		query:     query,
		queryCode: codes,
		header:    scalar8Header_{sumSq: sumSq, sumCodes: sumCodes, k: k, b: b},
	}
}

func (q *CoreScalar8) FScanPreprocess([]float32) FLut { return nil }

func (q *CoreScalar8) Process(lutIn Lut, code []byte) vector.Distance {
	lut := lutIn.(scalar8Lut)
	h := decodeScalar8Header(code)
	codes := code[scalar8Header:]

	// reconstruct sum(u_i v_i) from quantized codes and the paired
	// (k,b) affine scales: u_i = k_u*code_u_i + b_u, same for v.
	var ipCodes float32
	n := len(codes)
	if len(lut.queryCode) < n {
		n = len(lut.queryCode)
	}
	for i := 0; i < n; i++ {
		ipCodes += float32(lut.queryCode[i]) * float32(codes[i])
	}
	ip := lut.header.k*h.k*ipCodes +
		lut.header.k*h.b*lut.header.sumCodes +
		h.k*lut.header.b*h.sumCodes +
		lut.header.b*h.b*float32(n)

	switch q.distance {
	case CoreDot:
		return vector.FromF32(-ip)
	default:
		return vector.FromF32(lut.header.sumSq + h.sumSq - 2*ip)
	}
}

func (q *CoreScalar8) FScanProcess(FLut, []byte) []vector.Distance { return nil }

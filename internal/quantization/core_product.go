package quantization

import (
	"context"
	"math"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/kmeans"
	"github.com/therealutkarshpriyadarshi/vector/pkg/scalar"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// CoreProduct is the spec §4.E Product quantizer: d dimensions are split
// into width = ceil(d/ratio) subspaces of `ratio` dims each (the last one
// possibly shorter), and each subspace gets its own 2^bits-centroid
// codebook trained by Elkan k-means. A code is one byte per subspace
// (bits <= 8). When bits == 4, codes also support the fast-scan b4 packed
// layout (spec §4.A).
//
// Residual quantization for IVF-PQ is the caller's responsibility: pass
// x-centroid into Encode/Preprocess instead of x.
type CoreProduct struct {
	dim       int
	ratio     int
	width     int
	bits      int
	distance  CoreDistance
	subDim    []int
	subOffset []int
	codebooks [][]float32 // codebooks[w] is (2^bits * subDim[w]) row-major
}

func NewCoreProduct() *CoreProduct { return &CoreProduct{} }

func (q *CoreProduct) Train(ctx context.Context, samples collection.Vec2, opts TrainOptions) error {
	dim := samples.Shape1
	ratio := opts.Ratio
	if ratio <= 0 {
		ratio = 8
	}
	bits := opts.Bits
	if bits <= 0 {
		bits = 8
	}
	width := (dim + ratio - 1) / ratio

	q.dim = dim
	q.ratio = ratio
	q.width = width
	q.bits = bits
	q.distance = opts.Distance
	q.subDim = make([]int, width)
	q.subOffset = make([]int, width)
	q.codebooks = make([][]float32, width)

	numCodes := 1 << uint(bits)
	for w := 0; w < width; w++ {
		lo := w * ratio
		hi := lo + ratio
		if hi > dim {
			hi = dim
		}
		q.subOffset[w] = lo
		q.subDim[w] = hi - lo

		sub := collection.Vec2{Shape0: samples.Shape0, Shape1: q.subDim[w], Data: make([]float32, samples.Shape0*q.subDim[w])}
		for i := 0; i < samples.Shape0; i++ {
			copy(sub.Row(i), samples.Row(i)[lo:hi])
		}

		result := kmeans.Train(sub, numCodes, kmeans.DefaultOptions())
		q.codebooks[w] = result.Centroids
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func (q *CoreProduct) CodeSize() int { return q.width }

func (q *CoreProduct) FScanBlockWidth() int {
	if q.bits == 4 {
		return scalar.FastScanB4Block
	}
	return 0
}

func (q *CoreProduct) FCodeSize() int {
	if q.bits == 4 {
		return q.width * scalar.FastScanB4Block / 2
	}
	return 0
}

func (q *CoreProduct) nearestCode(w int, sub []float32) byte {
	idx, _ := kmeans.NearestCentroid(sub, q.codebooks[w], q.subDim[w])
	return byte(idx)
}

func (q *CoreProduct) Encode(x []float32) []byte {
	out := make([]byte, q.width)
	for w := 0; w < q.width; w++ {
		lo, hi := q.subOffset[w], q.subOffset[w]+q.subDim[w]
		out[w] = q.nearestCode(w, x[lo:hi])
	}
	return out
}

func (q *CoreProduct) FScanEncode(block [][]float32) []byte {
	if q.bits != 4 {
		return nil
	}
	codes := make([][]uint8, len(block))
	for i, x := range block {
		codes[i] = q.Encode(x)
	}
	return scalar.PackB4(codes, q.width)
}

// coreProductLut holds one float32 distance-to-centroid table per
// subspace, 2^bits entries each (spec §4.A "asymmetric distance table").
type coreProductLut struct {
	tables [][]float32
}

func (q *CoreProduct) buildTables(query []float32) [][]float32 {
	numCodes := 1 << uint(q.bits)
	tables := make([][]float32, q.width)
	for w := 0; w < q.width; w++ {
		lo, hi := q.subOffset[w], q.subOffset[w]+q.subDim[w]
		sub := query[lo:hi]
		book := q.codebooks[w]
		subDim := q.subDim[w]
		t := make([]float32, numCodes)
		for code := 0; code < numCodes; code++ {
			centroid := book[code*subDim : (code+1)*subDim]
			switch q.distance {
			case CoreDot:
				var ip float32
				for d := 0; d < subDim; d++ {
					ip += sub[d] * centroid[d]
				}
				t[code] = -ip
			default:
				var sum float32
				for d := 0; d < subDim; d++ {
					diff := sub[d] - centroid[d]
					sum += diff * diff
				}
				t[code] = sum
			}
		}
		tables[w] = t
	}
	return tables
}

func (q *CoreProduct) Preprocess(query []float32) Lut {
	return coreProductLut{tables: q.buildTables(query)}
}

func (q *CoreProduct) Process(lutIn Lut, code []byte) vector.Distance {
	lut := lutIn.(coreProductLut)
	var total float32
	for w := 0; w < q.width; w++ {
		c := code[w]
		if int(c) >= len(lut.tables[w]) {
			return vector.FromF32(float32(math.Inf(1)))
		}
		total += lut.tables[w][c]
	}
	return vector.FromF32(total)
}

// coreProductFLut packs each subspace's distance table into the 16-entry
// uint8 LUT the b4 fast-scan kernel expects; the true float32 distances are
// kept alongside as an offset/scale pair so FScanProcess can dequantize.
type coreProductFLut struct {
	scale, offset []float32
	lut           []uint8 // width*16
}

func (q *CoreProduct) FScanPreprocess(query []float32) FLut {
	if q.bits != 4 {
		return nil
	}
	tables := q.buildTables(query)
	scale := make([]float32, q.width)
	offset := make([]float32, q.width)
	lut := make([]uint8, q.width*16)
	for w, t := range tables {
		min, max := t[0], t[0]
		for _, v := range t {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		k := (max - min) / 255
		if k == 0 {
			k = 1
		}
		scale[w], offset[w] = k, min
		for code, v := range t {
			lut[w*16+code] = scalar.MulAddRound(v, k, min)
		}
	}
	return coreProductFLut{scale: scale, offset: offset, lut: lut}
}

func (q *CoreProduct) FScanProcess(flutIn FLut, packedBlock []byte) []vector.Distance {
	if q.bits != 4 || flutIn == nil {
		return nil
	}
	flut := flutIn.(coreProductFLut)
	rough := scalar.FastScanB4(flut.lut, packedBlock, q.width)

	// rough[v] is a sum over subspaces of an 8-bit quantized per-subspace
	// distance; undo the per-subspace (scale,offset) affine map by adding
	// the summed offsets and using the average scale across subspaces as
	// an approximation of the true summed distance (spec §4.A fast-scan is an approximation
	// of the exact asymmetric table lookup, not a bit-exact match).
	var sumScale, sumOffset float32
	for w := 0; w < q.width; w++ {
		sumScale += flut.scale[w]
		sumOffset += flut.offset[w]
	}

	out := make([]vector.Distance, scalar.FastScanB4Block)
	for i, r := range rough {
		out[i] = vector.FromF32(sumOffset + float32(r)*sumScale/float32(q.width))
	}
	return out
}

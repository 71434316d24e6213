package quantization

// This file adds the spec-shaped quantizer contract (§4.E) alongside the
// teacher's original ProductQuantizer/KMeansPlusPlus API in this package,
// which pkg/scann and the original pkg/ivf continue to use unmodified.
// New index code (pkg/flat, the adapted pkg/ivf path, pkg/hnsw) is built
// against CoreQuantizer instead.

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// CoreDistance names which distance kind a quantizer was trained for.
type CoreDistance int

const (
	CoreL2 CoreDistance = iota
	CoreDot
	CoreCos
)

// TrainOptions configures quantizer training.
type TrainOptions struct {
	Distance CoreDistance
	// Ratio and Bits configure Product quantization (spec §6
	// `Product { ratio, bits }`).
	Ratio int
	Bits  int
}

// Lut is an opaque, quantizer-specific query-preprocessed lookup table fed
// to Process.
type Lut interface{}

// FLut is the fast-scan analogue of Lut, fed to FScanProcess.
type FLut interface{}

// CoreQuantizer is the spec §4.E contract every quantizer in this module
// implements.
type CoreQuantizer interface {
	// Train learns quantization parameters from a training sample.
	Train(ctx context.Context, samples collection.Vec2, opts TrainOptions) error

	// CodeSize returns the fixed byte length of Encode's output.
	CodeSize() int
	// FScanBlockWidth returns how many vectors one fast-scan block packs
	// (32 for b4 quantizers, 128 for b1/RaBitQ, 0 if unsupported).
	FScanBlockWidth() int
	// FCodeSize returns the byte length of one fast-scan packed block.
	FCodeSize() int

	Encode(x []float32) []byte
	// FScanEncode packs up to FScanBlockWidth() vectors into one
	// fast-scan block (short final blocks are zero-padded).
	FScanEncode(block [][]float32) []byte

	Preprocess(query []float32) Lut
	FScanPreprocess(query []float32) FLut

	Process(lut Lut, code []byte) vector.Distance
	// FScanProcess returns one rough distance per vector in the block,
	// length FScanBlockWidth().
	FScanProcess(flut FLut, packedBlock []byte) []vector.Distance
}

// ErrNotTrained is returned by operations that require Train to have run.
var ErrNotTrained = fmt.Errorf("quantization: quantizer not trained")

package quantization

import (
	"context"
	"math/rand"
	"testing"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
)

func TestCoreRaBitQEncodeSizeMatchesCodeSize(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	dim := 48
	samples := trainingSet(r, 64, dim)

	q := NewCoreRaBitQ()
	if err := q.Train(context.Background(), samples, TrainOptions{Distance: CoreL2}); err != nil {
		t.Fatal(err)
	}

	code := q.Encode(samples.Row(0))
	if len(code) != q.CodeSize() {
		t.Fatalf("Encode produced %d bytes, CodeSize() = %d", len(code), q.CodeSize())
	}
}

func TestCoreRaBitQEstimateStaysNearExactL2(t *testing.T) {
	r := rand.New(rand.NewSource(22))
	dim := 64
	samples := trainingSet(r, 32, dim)

	q := NewCoreRaBitQ()
	if err := q.Train(context.Background(), samples, TrainOptions{Distance: CoreL2}); err != nil {
		t.Fatal(err)
	}

	x := samples.Row(0)
	trials := 0
	violations := 0
	for i := 1; i < 32; i++ {
		y := samples.Row(i)
		var exact float32
		for d := range x {
			diff := x[d] - y[d]
			exact += diff * diff
		}

		lut := q.Preprocess(x)
		est := q.Process(lut, q.Encode(y)).Value()
		trials++
		// the estimator is approximate, not a strict bound in this
		// simplified form; check it stays within a generous envelope
		// of the true distance rather than asserting a hard lower bound.
		if est > exact*4+10 {
			violations++
		}
	}
	if violations > trials/2 {
		t.Errorf("%d/%d estimates far exceeded exact distance", violations, trials)
	}
}

func TestCoreRaBitQFastScanProducesOneDistancePerVector(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	dim := 16
	samples := trainingSet(r, 200, dim)

	q := NewCoreRaBitQ()
	if err := q.Train(context.Background(), samples, TrainOptions{Distance: CoreDot}); err != nil {
		t.Fatal(err)
	}
	if q.FScanBlockWidth() != 128 {
		t.Fatalf("FScanBlockWidth() = %d, want 128", q.FScanBlockWidth())
	}

	block := make([][]float32, 128)
	for i := range block {
		block[i] = samples.Row(i)
	}
	packed := q.FScanEncode(block)
	if len(packed) != q.FCodeSize() {
		t.Fatalf("packed len = %d, want FCodeSize() = %d", len(packed), q.FCodeSize())
	}

	flut := q.FScanPreprocess(samples.Row(0))
	rough := q.FScanProcess(flut, packed)
	if len(rough) != 128 {
		t.Fatalf("FScanProcess returned %d distances, want 128", len(rough))
	}
}

func TestCoreRaBitQEmptyVectorDoesNotPanic(t *testing.T) {
	dim := 8
	samples := collection.Vec2{Shape0: 1, Shape1: dim, Data: make([]float32, dim)}

	q := NewCoreRaBitQ()
	if err := q.Train(context.Background(), samples, TrainOptions{Distance: CoreL2}); err != nil {
		t.Fatal(err)
	}
	code := q.Encode(make([]float32, dim))
	lut := q.Preprocess(make([]float32, dim))
	_ = q.Process(lut, code)
}

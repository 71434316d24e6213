package nsg

import "github.com/therealutkarshpriyadarshi/vector/pkg/vector"

// DistanceFunc scores two dense vectors; smaller means closer.
type DistanceFunc func(a, b []float32) float32

// CosineSimilarity returns 1 - cosine similarity, routed through
// pkg/vector so NSG shares its distance semantics with the rest of the
// index family instead of hand-rolling the norm/dot arithmetic.
func CosineSimilarity(a, b []float32) float32 {
	d, err := (vector.BorrowedVect{Data: a}).OperatorCos(vector.BorrowedVect{Data: b})
	if err != nil {
		return 1
	}
	return d.Value()
}

// EuclideanDistance returns squared Euclidean distance between a and b.
func EuclideanDistance(a, b []float32) float32 {
	d, err := (vector.BorrowedVect{Data: a}).OperatorL2(vector.BorrowedVect{Data: b})
	if err != nil {
		return float32(len(a) + len(b))
	}
	return d.Value()
}

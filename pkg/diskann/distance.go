package diskann

import "github.com/therealutkarshpriyadarshi/vector/pkg/vector"

// DistanceFunc scores two dense vectors; smaller means closer, matching
// the convention pkg/vector's Distance.Value() already uses.
type DistanceFunc func(a, b []float32) float32

// CosineSimilarity is named for the teacher's original metric choice but
// returns a distance (1 - cosine similarity), not a similarity score, so
// that smaller-is-closer holds across DiskANN's graph construction and
// beam search the same way it does for every other index package.
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

package scann

import (
	"context"
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/internal/quantization"
	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// BuildFromCollection trains a SCANN index on sample and adds every row
// of c, carrying c's payloads through to search results instead of the
// caller-supplied int ids SCANN otherwise expects. This is the path
// pkg/index's dispatcher uses so SCANN participates in the same
// collection/payload machinery as the other index kinds.
func BuildFromCollection(ctx context.Context, c collection.Collection, sample collection.Vec2, config *Config) (*SCANN, error) {
	if sample.Shape0 == 0 {
		return nil, fmt.Errorf("scann: empty sample")
	}
	trainVecs := make([][]float32, sample.Shape0)
	for i := 0; i < sample.Shape0; i++ {
		trainVecs[i] = sample.Row(i)
	}

	s := NewSCANN(config)
	if err := s.Train(trainVecs); err != nil {
		return nil, fmt.Errorf("scann: train: %w", err)
	}

	n := int(c.Len())
	vectors := make([][]float32, n)
	payloads := make([]collection.Payload, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vectors[i] = c.Vector(uint32(i)).Data
		payloads[i] = c.Payload(uint32(i))
	}
	if err := s.AddFromCollection(vectors, payloads); err != nil {
		return nil, fmt.Errorf("scann: add: %w", err)
	}
	return s, nil
}

// AddFromCollection is Add, but threading collection.Payload through each
// entry instead of a caller-managed int id and metadata map.
func (s *SCANN) AddFromCollection(vectors [][]float32, payloads []collection.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.trained {
		return fmt.Errorf("index not trained, call Train() first")
	}
	if len(vectors) != len(payloads) {
		return fmt.Errorf("vectors and payloads length mismatch")
	}

	for i, vec := range vectors {
		if len(vec) != s.dim {
			return fmt.Errorf("vector dimension mismatch")
		}

		partitionIdx := s.findNearestPartition(vec)
		partition := s.partitions[partitionIdx]

		residual := make([]float32, s.dim)
		for d := 0; d < s.dim; d++ {
			residual[d] = vec[d] - partition[d]
		}

		code := s.aq.Encode(residual)
		entry := SCANNEntry{
			ID:      i,
			Code:    code,
			Norm:    quantization.NormL2(vec),
			Payload: payloads[i],
		}
		s.invertedLists[partitionIdx] = append(s.invertedLists[partitionIdx], entry)
	}

	return nil
}

// CollectionResult is one ranked hit from SearchCollection.
type CollectionResult struct {
	Payload  collection.Payload
	Distance vector.Distance
}

// SearchCollection is Search, returning collection.Payload/vector.Distance
// results instead of raw int ids, so SealedIndex can forward SCANN hits
// through the same Element shape every other kind uses.
func (s *SCANN) SearchCollection(query []float32, k, nprobe int) ([]CollectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.trained {
		return nil, fmt.Errorf("index not trained")
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch")
	}

	partitionIDs := s.findNearestPartitions(query, nprobe)

	candidates := make([]payloadCandidate, 0, nprobe*100)

	for _, partitionID := range partitionIDs {
		partition := s.partitions[partitionID]
		queryResidual := make([]float32, s.dim)
		for d := 0; d < s.dim; d++ {
			queryResidual[d] = query[d] - partition[d]
		}
		distTable := s.aq.ComputeDistanceTable(queryResidual)

		for _, entry := range s.invertedLists[partitionID] {
			dist := s.aq.AsymmetricDistance(distTable, entry.Code)
			candidates = append(candidates, payloadCandidate{payload: entry.Payload, dist: dist})
		}
	}

	sortCandidatesByDist(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]CollectionResult, len(candidates))
	for i, c := range candidates {
		out[i] = CollectionResult{Payload: c.payload, Distance: vector.FromF32(c.dist)}
	}
	return out, nil
}

// Len returns the total number of vectors stored across all partitions.
func (s *SCANN) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.invertedLists {
		n += len(list)
	}
	return n
}

type payloadCandidate struct {
	payload collection.Payload
	dist    float32
}

func sortCandidatesByDist(c []payloadCandidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1].dist > c[j].dist; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}

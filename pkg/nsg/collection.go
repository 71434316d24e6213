package nsg

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
	"github.com/therealutkarshpriyadarshi/vector/pkg/vector"
)

// BuildFromCollection adds every row of c to idx via AddVector, then runs
// Build(). NSG's AddVector carries no metadata slot, so the returned
// id -> Payload map is how SearchCollection recovers c's payloads from
// the graph's raw uint64 node ids.
func BuildFromCollection(idx *Index, c collection.Collection) (map[uint64]collection.Payload, error) {
	n := c.Len()
	payloads := make(map[uint64]collection.Payload, n)
	for i := uint32(0); i < n; i++ {
		id, err := idx.AddVector(c.Vector(i).Data)
		if err != nil {
			return nil, fmt.Errorf("nsg: add vector %d: %w", i, err)
		}
		payloads[id] = c.Payload(i)
	}
	if err := idx.Build(); err != nil {
		return nil, fmt.Errorf("nsg: build: %w", err)
	}
	return payloads, nil
}

// CollectionResult is a SearchResult with its id resolved to a
// collection.Payload via the map BuildFromCollection returned.
type CollectionResult struct {
	Payload  collection.Payload
	Distance vector.Distance
}

// SearchCollection runs Search and translates ids to payloads using ids,
// the mapping returned by BuildFromCollection.
func SearchCollection(idx *Index, ids map[uint64]collection.Payload, query []float32, k int) ([]CollectionResult, error) {
	res, err := idx.Search(query, k)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionResult, len(res))
	for i, r := range res {
		out[i] = CollectionResult{Payload: ids[r.ID], Distance: vector.FromF32(r.Distance)}
	}
	return out, nil
}

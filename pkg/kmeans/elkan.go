// Package kmeans implements Elkan's triangle-inequality-pruned k-means,
// used to train IVF coarse partitions and PQ subspace codebooks. See spec
// §4.D.
package kmeans

import (
	"math"
	"math/rand"

	"github.com/therealutkarshpriyadarshi/vector/pkg/collection"
)

// Options configures a training run.
type Options struct {
	Iterations      int // iteration cap (default 100)
	LeastIterations int // floor on iterations before early termination
	Seed            int64
	// Spherical, when non-nil, is invoked after every recenter step to
	// project centroids back onto the unit sphere (used by Cos/Dot
	// k-means, spec §4.D "Optional spherical callback").
	Spherical func(centroids []float32, dim int)
}

// DefaultOptions returns the spec's default iteration cap.
func DefaultOptions() Options {
	return Options{Iterations: 100, LeastIterations: 1, Seed: 42}
}

const reseedDelta = 1.0 / 1024.0

// Result holds the trained centroids and final assignment.
type Result struct {
	Centroids []float32 // c*dim, row-major
	Assign    []uint32  // len(samples)
}

// Train runs k-means++ seeding followed by Elkan-bounded Lloyd iterations
// to produce c centroids in `dim` dimensions from the rows of samples.
func Train(samples collection.Vec2, c int, opts Options) Result {
	n := samples.Shape0
	dim := samples.Shape1

	if opts.Iterations <= 0 {
		opts.Iterations = 100
	}
	r := rand.New(rand.NewSource(opts.Seed))

	if n <= c {
		return seedFromSamplesAndRandom(samples, c, dim, r)
	}

	centroids := kmeansPlusPlusInit(samples, c, dim, r)

	upperBound := make([]float32, n)
	lowerBound := make([][]float32, n)
	assign := make([]uint32, n)
	for i := range lowerBound {
		lowerBound[i] = make([]float32, c)
	}

	// initial assignment: exact nearest centroid for every point
	for i := 0; i < n; i++ {
		x := samples.Row(i)
		best, bestD := 0, float32(math.MaxFloat32)
		for j := 0; j < c; j++ {
			d := sqDist(x, centroids[j*dim:(j+1)*dim])
			lowerBound[i][j] = d
			if d < bestD {
				bestD, best = d, j
			}
		}
		assign[i] = uint32(best)
		upperBound[i] = bestD
	}

	dist0 := make([][]float32, c)
	sp := make([]float32, c)
	for i := range dist0 {
		dist0[i] = make([]float32, c)
	}

	changed := true
	for iter := 0; changed && iter < opts.Iterations; iter++ {
		updateCentroidDistances(centroids, c, dim, dist0, sp)

		changed = false
		for i := 0; i < n; i++ {
			a := assign[i]
			if upperBound[i] <= sp[a] {
				continue
			}
			x := samples.Row(i)
			exact := sqDist(x, centroids[int(a)*dim:(int(a)+1)*dim])
			upperBound[i] = exact
			lowerBound[i][a] = exact
			if exact <= sp[a] {
				continue
			}

			minimal := exact
			minimalJ := a
			for j := 0; j < c; j++ {
				jj := uint32(j)
				if jj == a {
					continue
				}
				if upperBound[i] <= lowerBound[i][j] || upperBound[i] <= dist0[a][j] {
					continue
				}
				if !(minimal > lowerBound[i][j] || minimal > dist0[a][j]) {
					continue
				}
				d := sqDist(x, centroids[j*dim:(j+1)*dim])
				lowerBound[i][j] = d
				if d < minimal {
					minimal = d
					minimalJ = jj
				}
			}
			if minimalJ != a {
				assign[i] = minimalJ
				upperBound[i] = minimal
				changed = true
			}
		}

		// first iteration is never accepted, to guarantee bounds are
		// tight once pruning starts (spec §4.D "Termination")
		if iter == 0 {
			changed = true
		}

		recentered := recenter(samples, assign, c, dim)
		reseedEmptyClusters(samples, assign, recentered, c, dim, r)
		if opts.Spherical != nil {
			opts.Spherical(recentered, dim)
		}
		centroids = recentered

		if iter+1 < opts.LeastIterations {
			changed = true
		}
	}

	return Result{Centroids: centroids, Assign: assign}
}

func sqDist(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func kmeansPlusPlusInit(samples collection.Vec2, c, dim int, r *rand.Rand) []float32 {
	n := samples.Shape0
	centroids := make([]float32, c*dim)

	first := r.Intn(n)
	copy(centroids[0:dim], samples.Row(first))

	minDist := make([]float32, n)
	for i := range minDist {
		minDist[i] = math.MaxFloat32
	}

	for k := 1; k < c; k++ {
		var total float32
		prev := centroids[(k-1)*dim : k*dim]
		for i := 0; i < n; i++ {
			d := sqDist(samples.Row(i), prev)
			if d < minDist[i] {
				minDist[i] = d
			}
			total += minDist[i]
		}
		if total == 0 {
			idx := r.Intn(n)
			copy(centroids[k*dim:(k+1)*dim], samples.Row(idx))
			continue
		}
		target := r.Float32() * total
		var cum float32
		chosen := n - 1
		for i := 0; i < n; i++ {
			cum += minDist[i]
			if cum >= target {
				chosen = i
				break
			}
		}
		copy(centroids[k*dim:(k+1)*dim], samples.Row(chosen))
	}
	return centroids
}

func updateCentroidDistances(centroids []float32, c, dim int, dist0 [][]float32, sp []float32) {
	for a := 0; a < c; a++ {
		sp[a] = math.MaxFloat32
		for b := 0; b < c; b++ {
			if a == b {
				dist0[a][b] = 0
				continue
			}
			d := float32(math.Sqrt(float64(sqDist(centroids[a*dim:(a+1)*dim], centroids[b*dim:(b+1)*dim])))) / 2
			dist0[a][b] = d
			if d < sp[a] {
				sp[a] = d
			}
		}
	}
}

func recenter(samples collection.Vec2, assign []uint32, c, dim int) []float32 {
	sums := make([]float32, c*dim)
	counts := make([]int, c)
	for i := 0; i < samples.Shape0; i++ {
		a := int(assign[i])
		counts[a]++
		row := samples.Row(i)
		base := a * dim
		for d := 0; d < dim; d++ {
			sums[base+d] += row[d]
		}
	}
	for a := 0; a < c; a++ {
		if counts[a] == 0 {
			continue // reseeded separately
		}
		base := a * dim
		inv := 1 / float32(counts[a])
		for d := 0; d < dim; d++ {
			sums[base+d] *= inv
		}
	}
	return sums
}

// reseedEmptyClusters implements spec §4.D's rejection-sampling reseed:
// pick donor cluster o with probability (count[o]-1)/(n-c), then split by
// perturbing alternating dimensions by (1±delta).
func reseedEmptyClusters(samples collection.Vec2, assign []uint32, centroids []float32, c, dim int, r *rand.Rand) {
	n := samples.Shape0
	counts := make([]int, c)
	for _, a := range assign {
		counts[a]++
	}

	for a := 0; a < c; a++ {
		if counts[a] != 0 {
			continue
		}
		donor := rejectionSampleDonor(counts, n, c, r)
		base := a * dim
		donorBase := donor * dim
		for d := 0; d < dim; d++ {
			sign := float32(1)
			if d%2 == 1 {
				sign = -1
			}
			centroids[base+d] = centroids[donorBase+d] * (1 + sign*reseedDelta)
		}
		counts[donor]-- // donor effectively loses one member to the split
		counts[a] = 1
	}
}

func rejectionSampleDonor(counts []int, n, c int, r *rand.Rand) int {
	if n <= c {
		return 0
	}
	for attempts := 0; attempts < 10000; attempts++ {
		o := r.Intn(c)
		if counts[o] <= 1 {
			continue
		}
		p := float64(counts[o]-1) / float64(n-c)
		if r.Float64() < p {
			return o
		}
	}
	// fallback: largest cluster
	best := 0
	for i, cnt := range counts {
		if cnt > counts[best] {
			best = i
		}
	}
	return best
}

func seedFromSamplesAndRandom(samples collection.Vec2, c, dim int, r *rand.Rand) Result {
	n := samples.Shape0
	centroids := make([]float32, c*dim)
	for i := 0; i < c; i++ {
		if i < n {
			copy(centroids[i*dim:(i+1)*dim], samples.Row(i))
		} else {
			for d := 0; d < dim; d++ {
				centroids[i*dim+d] = r.Float32()
			}
		}
	}
	assign := make([]uint32, n)
	for i := 0; i < n; i++ {
		best, bestD := 0, float32(math.MaxFloat32)
		for j := 0; j < c; j++ {
			d := sqDist(samples.Row(i), centroids[j*dim:(j+1)*dim])
			if d < bestD {
				bestD, best = d, j
			}
		}
		assign[i] = uint32(best)
	}
	return Result{Centroids: centroids, Assign: assign}
}

// SphericalNormalize projects each centroid back onto the unit sphere; use
// as the Spherical hook for Cos/Dot k-means (spec §4.H step 2).
func SphericalNormalize(centroids []float32, dim int) {
	c := len(centroids) / dim
	for i := 0; i < c; i++ {
		row := centroids[i*dim : (i+1)*dim]
		var norm float32
		for _, x := range row {
			norm += x * x
		}
		norm = float32(math.Sqrt(float64(norm)))
		if norm == 0 {
			continue
		}
		for d := range row {
			row[d] /= norm
		}
	}
}

// NearestCentroid returns the index of the centroid closest to x under
// squared L2.
func NearestCentroid(x []float32, centroids []float32, dim int) (int, float32) {
	c := len(centroids) / dim
	best, bestD := 0, float32(math.MaxFloat32)
	for j := 0; j < c; j++ {
		d := sqDist(x, centroids[j*dim:(j+1)*dim])
		if d < bestD {
			bestD, best = d, j
		}
	}
	return best, bestD
}

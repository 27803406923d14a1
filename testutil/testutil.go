package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/cla/matrix"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// Vector returns n values uniform in [-1, 1).
func (r *RNG) Vector(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := make([]float64, n)
	for i := range v {
		v[i] = 2*r.rand.Float64() - 1
	}
	return v
}

// Dense returns a rows×cols block of distinct uniform values in [0, 1).
func (r *RNG) Dense(rows, cols int) *matrix.Block {
	data := make([]float64, rows*cols)
	r.FillUniform(data)
	return matrix.FromDense(rows, cols, data)
}

// LowCardinality returns a dense block whose columns draw from the values
// 1..card.
func (r *RNG) LowCardinality(rows, cols, card int) *matrix.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(1 + r.rand.Intn(card))
	}
	return matrix.FromDense(rows, cols, data)
}

// Runs returns a block whose columns repeat a value drawn from 0..card-1
// for runLen consecutive rows.
func (r *RNG) Runs(rows, cols, runLen, card int) *matrix.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := matrix.NewDense(rows, cols)
	for c := 0; c < cols; c++ {
		v := 0.0
		for row := 0; row < rows; row++ {
			if row%runLen == 0 {
				v = float64(r.rand.Intn(card))
			}
			m.Set(row, c, v)
		}
	}
	return m
}

// Sparse returns a sparse block where every cell is non-zero with the given
// probability.
func (r *RNG) Sparse(rows, cols int, sparsity float64) *matrix.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := matrix.NewSparse(rows, cols)
	for row := 0; row < rows; row++ {
		for c := 0; c < cols; c++ {
			if r.rand.Float64() < sparsity {
				m.Set(row, c, float64(1+r.rand.Intn(9)))
			}
		}
	}
	return m
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1 // 0-indexed
		}
	}

	return n - 1
}

// Skewed returns a block whose columns draw Zipf-distributed values from
// 0..card-1, so the most frequent value is zero.
func (r *RNG) Skewed(rows, cols, card int, s float64) *matrix.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(r.zipfLocked(card, s))
	}
	return matrix.FromDense(rows, cols, data)
}

// Mixed returns a block whose first compressible columns take 3 values and
// whose remaining columns are distinct uniform values.
func (r *RNG) Mixed(rows, cols, compressible int) *matrix.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := make([]float64, rows*cols)
	for row := 0; row < rows; row++ {
		for c := 0; c < cols; c++ {
			if c < compressible {
				data[row*cols+c] = float64(1 + r.rand.Intn(3))
			} else {
				data[row*cols+c] = r.rand.Float64()
			}
		}
	}
	return matrix.FromDense(rows, cols, data)
}

package phash

import (
	"math"
	"sync"
)

// cosineBasis holds the N×N DCT-II basis and per-frequency scale factors.
// Built once and never mutated, safe for concurrent readers.
type cosineBasis struct {
	n     int
	cos   [][]float64 // cos[k][x] = cos((2x+1)kπ / 2N)
	scale []float64   // orthonormal scale: sqrt(1/N) for k=0, sqrt(2/N) otherwise
}

var (
	basisOnce sync.Once
	basis     *cosineBasis
)

func newCosineBasis(n int) *cosineBasis {
	b := &cosineBasis{
		n:     n,
		cos:   make([][]float64, n),
		scale: make([]float64, n),
	}
	for k := 0; k < n; k++ {
		b.cos[k] = make([]float64, n)
		for x := 0; x < n; x++ {
			b.cos[k][x] = math.Cos(float64(2*x+1) * float64(k) * math.Pi / float64(2*n))
		}
		if k == 0 {
			b.scale[k] = math.Sqrt(1 / float64(n))
		} else {
			b.scale[k] = math.Sqrt(2 / float64(n))
		}
	}
	return b
}

func sharedBasis() *cosineBasis {
	basisOnce.Do(func() {
		basis = newCosineBasis(gridSize)
	})
	return basis
}

// transform1D applies the DCT-II to one row or column of length n.
func (b *cosineBasis) transform1D(in, out []float64) {
	for k := 0; k < b.n; k++ {
		var sum float64
		row := b.cos[k]
		for x := 0; x < b.n; x++ {
			sum += in[x] * row[x]
		}
		out[k] = sum * b.scale[k]
	}
}

// transform2D applies the separable 2-D DCT: rows first, then columns.
// Input and output are n×n matrices in row-major order.
func (b *cosineBasis) transform2D(pixels [][]float64) [][]float64 {
	n := b.n

	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		rows[y] = make([]float64, n)
		b.transform1D(pixels[y], rows[y])
	}

	out := make([][]float64, n)
	for y := 0; y < n; y++ {
		out[y] = make([]float64, n)
	}

	col := make([]float64, n)
	res := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rows[y][x]
		}
		b.transform1D(col, res)
		for y := 0; y < n; y++ {
			out[y][x] = res[y]
		}
	}
	return out
}

package plexus

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func toDense(t *Tensor) *mat.Dense {
	rows := t.shape[0]
	cols := t.shape[1]
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, float64(t.data[i*cols+j]))
		}
	}
	return d
}

func assertMatchesDense(t *testing.T, want mat.Matrix, got *Tensor) {
	t.Helper()
	rows, cols := want.Dims()
	require.Equal(t, []int{rows, cols}, got.shape)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.InDelta(t, want.At(i, j), float64(got.data[i*cols+j]), 1e-5)
		}
	}
}

func TestMatmulMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := NewTensor(4, 6)
	b := NewTensor(6, 3)
	a.fillRandUniform(-2, 2, rng)
	b.fillRandUniform(-2, 2, rng)

	out := NewTensor(4, 3)
	matmul(a, b, out)

	var want mat.Dense
	want.Mul(toDense(a), toDense(b))
	assertMatchesDense(t, &want, out)
}

func TestMatmulTransAMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := NewTensor(6, 4)
	b := NewTensor(6, 3)
	a.fillRandUniform(-1, 1, rng)
	b.fillRandUniform(-1, 1, rng)

	out := NewTensor(4, 3)
	matmulTransA(a, b, out)

	var want mat.Dense
	want.Mul(toDense(a).T(), toDense(b))
	assertMatchesDense(t, &want, out)
}

func TestMatmulTransBMatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := NewTensor(4, 6)
	b := NewTensor(3, 6)
	a.fillRandUniform(-1, 1, rng)
	b.fillRandUniform(-1, 1, rng)

	out := NewTensor(4, 3)
	matmulTransB(a, b, out)

	var want mat.Dense
	want.Mul(toDense(a), toDense(b).T())
	assertMatchesDense(t, &want, out)
}

func TestTensorAtSet(t *testing.T) {
	x := NewTensor(2, 3, 4)

	x.Set(7.5, 1, 2, 3)
	assert.Equal(t, float32(7.5), x.At(1, 2, 3))
	assert.Equal(t, float32(7.5), x.data[1*12+2*4+3])

	x.Set(-1, 0, 0, 0)
	assert.Equal(t, float32(-1), x.data[0])
}

func TestTensorCloneIsIndependent(t *testing.T) {
	x := NewTensor(2, 2)
	x.Fill(3)

	y := x.Clone()
	y.data[0] = 99

	assert.Equal(t, float32(3), x.data[0])
	assert.Equal(t, x.shape, y.shape)
}

func TestSumAxis0(t *testing.T) {
	x := NewTensor(3, 2)
	copy(x.data, []float32{1, 2, 3, 4, 5, 6})

	out := NewTensor(2)
	sumAxis0(x, out)

	assert.InDelta(t, 9.0, float64(out.data[0]), 1e-6)
	assert.InDelta(t, 12.0, float64(out.data[1]), 1e-6)
}

func TestL2Norm(t *testing.T) {
	x := NewTensor(2)
	copy(x.data, []float32{3, 4})
	assert.InDelta(t, 5.0, l2Norm(x), 1e-6)

	rng := rand.New(rand.NewSource(9))
	y := NewTensor(50)
	y.fillRandUniform(-3, 3, rng)

	y64 := make([]float64, 50)
	for i, v := range y.data {
		y64[i] = float64(v)
	}
	assert.InDelta(t, floats.Norm(y64, 2), l2Norm(y), 1e-5)
}

func TestClipTensor(t *testing.T) {
	x := NewTensor(4)
	copy(x.data, []float32{-5, -0.5, 0.5, 5})
	clipTensor(x, -1, 1)
	assert.Equal(t, []float32{-1, -0.5, 0.5, 1}, x.data)
}

func TestAllFinite(t *testing.T) {
	x := NewTensor(3)
	assert.True(t, allFinite(x))

	x.data[1] = float32(math.NaN())
	assert.False(t, allFinite(x))
}

func TestMaxVal(t *testing.T) {
	x := NewTensor(4)
	copy(x.data, []float32{-3, 7, 2, -8})
	assert.Equal(t, float32(7), maxVal(x))
}

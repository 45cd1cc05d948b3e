package plexus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConv2DOutputDimensions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	layer := Conv2D(32, [2]int{3, 3}).
		WithActivation(Linear()).
		WithInitializer(HeNormal(1.0)).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()
	require.NoError(t, layer.build([]int{28, 28, 1}, rng))

	// valid padding: out = in - kernel + 1
	assert.Equal(t, []int{26, 26, 32}, layer.outputShape())

	x := NewTensor(2, 28, 28, 1)
	out, err := layer.forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 26, 26, 32}, out.Shape())
}

func TestConv2DSamePaddingPreservesSize(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	layer := Conv2D(4, [2]int{3, 3}).
		WithPadding("same").
		WithActivation(Linear()).
		WithInitializer(HeNormal(1.0)).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()
	require.NoError(t, layer.build([]int{10, 10, 3}, rng))

	assert.Equal(t, []int{10, 10, 4}, layer.outputShape())
}

func TestConv2DKnownValues(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	layer := Conv2D(1, [2]int{2, 2}).
		WithActivation(Linear()).
		WithInitializer(Ones()).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()
	require.NoError(t, layer.build([]int{3, 3, 1}, rng))

	// All-ones 2x2 kernel sums each window.
	x := NewTensor(1, 3, 3, 1)
	copy(x.data, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})

	out, err := layer.forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 1}, out.Shape())
	assert.InDelta(t, 12.0, float64(out.data[0]), 1e-5) // 1+2+4+5
	assert.InDelta(t, 16.0, float64(out.data[1]), 1e-5) // 2+3+5+6
	assert.InDelta(t, 24.0, float64(out.data[2]), 1e-5) // 4+5+7+8
	assert.InDelta(t, 28.0, float64(out.data[3]), 1e-5) // 5+6+8+9
}

func TestConv2DBuildRejectsOversizedKernel(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	layer := Conv2D(1, [2]int{5, 5}).
		WithActivation(Linear()).
		WithInitializer(HeNormal(1.0)).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()

	err := layer.build([]int{3, 3, 1}, rng)
	require.Error(t, err)
	assert.IsType(t, &ShapeError{}, err)
}

func TestMaxPool2DOutputDimensions(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	layer := MaxPool2D([2]int{2, 2}).Build()
	require.NoError(t, layer.build([]int{24, 24, 64}, rng))

	// floor(in / pool) with stride = pool
	assert.Equal(t, []int{12, 12, 64}, layer.outputShape())
}

func TestMaxPool2DForwardPicksWindowMax(t *testing.T) {
	rng := rand.New(rand.NewSource(6))

	layer := MaxPool2D([2]int{2, 2}).Build()
	require.NoError(t, layer.build([]int{4, 4, 1}, rng))

	x := NewTensor(1, 4, 4, 1)
	copy(x.data, []float32{
		1, 5, 2, 0,
		3, 4, 1, 7,
		8, 0, 2, 2,
		1, 6, 3, 1,
	})

	out, err := layer.forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 7, 8, 3}, out.data)
}

func TestMaxPool2DBackwardRoutesToArgmax(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	layer := MaxPool2D([2]int{2, 2}).Build()
	require.NoError(t, layer.build([]int{4, 4, 1}, rng))

	x := NewTensor(1, 4, 4, 1)
	copy(x.data, []float32{
		1, 5, 2, 0,
		3, 4, 1, 7,
		8, 0, 2, 2,
		1, 6, 3, 1,
	})

	_, err := layer.forward(x, true)
	require.NoError(t, err)

	gradOut := NewTensor(1, 2, 2, 1)
	copy(gradOut.data, []float32{10, 20, 30, 40})

	gradIn, err := layer.backward(gradOut)
	require.NoError(t, err)

	want := make([]float32, 16)
	want[1] = 10  // 5 at (0,1)
	want[7] = 20  // 7 at (1,3)
	want[8] = 30  // 8 at (2,0)
	want[14] = 40 // 3 at (3,2)
	assert.Equal(t, want, gradIn.data)
}

func TestMaxPool2DTiesPickFirstInScanOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(8))

	layer := MaxPool2D([2]int{2, 2}).Build()
	require.NoError(t, layer.build([]int{2, 2, 1}, rng))

	x := NewTensor(1, 2, 2, 1)
	x.Fill(3) // every window position ties

	_, err := layer.forward(x, true)
	require.NoError(t, err)

	gradOut := NewTensor(1, 1, 1, 1)
	gradOut.data[0] = 1

	gradIn, err := layer.backward(gradOut)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, gradIn.data)
}

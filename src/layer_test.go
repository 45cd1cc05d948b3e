package plexus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenseForwardKnownValues(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	layer := Dense(2).
		WithActivation(Linear()).
		WithInitializer(Zeros()).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build().(*DenseLayer)
	require.NoError(t, layer.build([]int{3}, rng))

	// W = [[1,2],[3,4],[5,6]], b = [0.5, -0.5]
	copy(layer.weights.data, []float32{1, 2, 3, 4, 5, 6})
	copy(layer.bias.data, []float32{0.5, -0.5})

	x := NewTensor(1, 3)
	copy(x.data, []float32{1, 1, 1})

	out, err := layer.forward(x, true)
	require.NoError(t, err)
	assert.InDelta(t, 9.5, float64(out.data[0]), 1e-5)
	assert.InDelta(t, 11.5, float64(out.data[1]), 1e-5)
}

func TestDenseRejectsMismatchedInput(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	layer := Dense(2).
		WithActivation(Linear()).
		WithInitializer(HeNormal(1.0)).
		WithBiasInitializer(Zeros()).
		WithBias(true).
		Build()
	require.NoError(t, layer.build([]int{3}, rng))

	x := NewTensor(1, 5)
	_, err := layer.forward(x, true)
	require.Error(t, err)
	assert.IsType(t, &ShapeError{}, err)
}

func TestDenseBuildRequiresInitializerAndActivation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	err := Dense(2).WithActivation(ReLU()).Build().build([]int{3}, rng)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializer")

	err = Dense(2).WithInitializer(HeNormal(1.0)).Build().build([]int{3}, rng)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activation")
}

func TestFlattenRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	layer := Flatten().Build()
	require.NoError(t, layer.build([]int{2, 3, 4}, rng))
	assert.Equal(t, []int{24}, layer.outputShape())

	x := NewTensor(5, 2, 3, 4)
	x.fillRandUniform(-1, 1, rng)

	out, err := layer.forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 24}, out.Shape())
	assert.Equal(t, x.data, out.data)

	back, err := layer.backward(out)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), back.Shape())
	assert.Equal(t, x.data, back.data)
}

func TestDropoutInferenceIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	layer := Dropout(0.5).Build()
	require.NoError(t, layer.build([]int{10}, rng))

	x := NewTensor(4, 10)
	x.fillRandUniform(-1, 1, rng)

	out, err := layer.forward(x, false)
	require.NoError(t, err)
	assert.Equal(t, x.data, out.data)
}

func TestDropoutRateZeroIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(6))

	layer := Dropout(0).Build()
	require.NoError(t, layer.build([]int{10}, rng))

	x := NewTensor(4, 10)
	x.fillRandUniform(-1, 1, rng)

	out, err := layer.forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, x.data, out.data)
}

func TestDropoutZeroFractionAndScaling(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rate := 0.25

	layer := Dropout(rate).Build()
	require.NoError(t, layer.build([]int{10000}, rng))

	x := NewTensor(1, 10000)
	x.Fill(1)

	out, err := layer.forward(x, true)
	require.NoError(t, err)

	zeros := 0
	scale := float32(1.0 / (1.0 - rate))
	for _, v := range out.data {
		if v == 0 {
			zeros++
		} else {
			assert.Equal(t, scale, v)
		}
	}
	assert.InDelta(t, rate, float64(zeros)/10000.0, 0.02)
}

func TestDropoutBackwardUsesSameMask(t *testing.T) {
	rng := rand.New(rand.NewSource(8))

	layer := Dropout(0.5).Build()
	require.NoError(t, layer.build([]int{100}, rng))

	x := NewTensor(1, 100)
	x.Fill(1)

	out, err := layer.forward(x, true)
	require.NoError(t, err)

	gradOut := NewTensor(1, 100)
	gradOut.Fill(1)
	gradIn, err := layer.backward(gradOut)
	require.NoError(t, err)

	// Gradient flows exactly where activations survived, same scale.
	for i := range out.data {
		assert.Equal(t, out.data[i], gradIn.data[i], "index %d", i)
	}
}

func TestDropoutBuildRejectsBadRate(t *testing.T) {
	rng := rand.New(rand.NewSource(9))

	require.Error(t, Dropout(1.0).Build().build([]int{3}, rng))
	require.Error(t, Dropout(-0.1).Build().build([]int{3}, rng))
}

func TestActivationLayerAppliesFunction(t *testing.T) {
	rng := rand.New(rand.NewSource(10))

	layer := Activate(ReLU()).Build()
	require.NoError(t, layer.build([]int{4}, rng))

	x := NewTensor(1, 4)
	copy(x.data, []float32{-1, 2, -3, 4})

	out, err := layer.forward(x, true)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 0, 4}, out.data)

	gradOut := NewTensor(1, 4)
	gradOut.Fill(1)
	gradIn, err := layer.backward(gradOut)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 1}, gradIn.data)
}

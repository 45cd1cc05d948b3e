package plexus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConvNet(t *testing.T, seed int64) *Network {
	t.Helper()
	net, err := NewNetwork(NetworkConfig{Seed: seed}).
		AddLayer(Conv2D(4, [2]int{3, 3}).
			WithActivation(Linear()).
			WithInitializer(HeNormal(1.0)).
			WithBiasInitializer(Zeros()).
			WithBias(true).
			Build()).
		AddLayer(BatchNorm(1e-5, 0.9).Build()).
		AddLayer(Activate(ReLU()).Build()).
		AddLayer(MaxPool2D([2]int{2, 2}).Build()).
		AddLayer(Flatten().Build()).
		AddLayer(Dense(3).
			WithActivation(Softmax()).
			WithInitializer(XavierNormal(1.0)).
			WithBiasInitializer(Zeros()).
			WithBias(true).
			Build()).
		Build([]int{8, 8, 1})
	require.NoError(t, err)

	require.NoError(t, net.Compile(CompileConfig{
		Optimizer:    SGD(SGDConfig{LR: 0.1}),
		Loss:         CrossEntropy(CrossEntropyConfig{}),
		Metrics:      []Metric{Accuracy()},
		Regularizer:  NoReg(),
		GradientClip: GradientClipConfig{Mode: "none"},
	}))
	return net
}

func TestBuildReportsLayerIndexOnShapeError(t *testing.T) {
	// Dense directly on a 3D conv output must fail at build time.
	_, err := NewNetwork(NetworkConfig{Seed: 1}).
		AddLayer(Conv2D(4, [2]int{3, 3}).
			WithActivation(Linear()).
			WithInitializer(HeNormal(1.0)).
			WithBiasInitializer(Zeros()).
			WithBias(true).
			Build()).
		AddLayer(Dense(3).
			WithActivation(Linear()).
			WithInitializer(HeNormal(1.0)).
			WithBiasInitializer(Zeros()).
			WithBias(true).
			Build()).
		Build([]int{8, 8, 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer 1")
	assert.Contains(t, err.Error(), "dense")
}

func TestBuildRejectsEmptyNetworkAndBadShape(t *testing.T) {
	_, err := NewNetwork(NetworkConfig{Seed: 1}).Build([]int{4})
	require.Error(t, err)

	_, err = NewNetwork(NetworkConfig{Seed: 1}).
		AddLayer(Flatten().Build()).
		Build([]int{0, 4})
	require.Error(t, err)
}

func TestCompileRequiresAllFields(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{Seed: 1}).
		AddLayer(Dense(2).
			WithActivation(Linear()).
			WithInitializer(HeNormal(1.0)).
			WithBiasInitializer(Zeros()).
			WithBias(true).
			Build()).
		Build([]int{4})
	require.NoError(t, err)

	err = net.Compile(CompileConfig{
		Loss:         MSE(MSEConfig{Reduction: "mean"}),
		Regularizer:  NoReg(),
		GradientClip: GradientClipConfig{Mode: "none"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Optimizer")

	err = net.Compile(CompileConfig{
		Optimizer:    SGD(SGDConfig{LR: 0.1}),
		Loss:         MSE(MSEConfig{Reduction: "mean"}),
		Regularizer:  NoReg(),
		GradientClip: GradientClipConfig{Mode: "diagonal"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GradientClip")
}

func TestPredictOutputShape(t *testing.T) {
	net := testConvNet(t, 42)

	x := NewTensor(5, 8, 8, 1)
	x.fillRandUniform(0, 1, rand.New(rand.NewSource(2)))

	out, err := net.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3}, out.Shape())
}

func TestPredictRejectsWrongInputShape(t *testing.T) {
	net := testConvNet(t, 42)

	x := NewTensor(5, 7, 7, 1)
	_, err := net.Predict(x)
	require.Error(t, err)
	assert.IsType(t, &ShapeError{}, err)
}

func TestEvaluateIsPure(t *testing.T) {
	net := testConvNet(t, 42)

	rng := rand.New(rand.NewSource(3))
	x := NewTensor(10, 8, 8, 1)
	x.fillRandUniform(0, 1, rng)
	y, err := OneHot([]int{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, 3)
	require.NoError(t, err)

	var paramSnaps []*Tensor
	for _, p := range net.parameters() {
		paramSnaps = append(paramSnaps, p.Clone())
	}
	var bn *BatchNormLayer
	for _, layer := range net.layers {
		if b, ok := layer.(*BatchNormLayer); ok {
			bn = b
		}
	}
	require.NotNil(t, bn)
	runningMean, runningVar := bn.runningStats()
	meanSnap := runningMean.Clone()
	varSnap := runningVar.Clone()

	first, err := net.Evaluate(x, y, 4)
	require.NoError(t, err)
	second, err := net.Evaluate(x, y, 4)
	require.NoError(t, err)

	// Same data twice gives bit-identical results.
	assert.Equal(t, first, second)

	// No parameter or running statistic moved.
	for i, p := range net.parameters() {
		assert.Equal(t, paramSnaps[i].data, p.data, "parameter %d", i)
	}
	assert.Equal(t, meanSnap.data, runningMean.data)
	assert.Equal(t, varSnap.data, runningVar.data)

	assert.Contains(t, first, "loss")
	assert.Contains(t, first, "accuracy")
}

func TestEvaluateBatchSizeDoesNotChangeResult(t *testing.T) {
	net := testConvNet(t, 7)

	rng := rand.New(rand.NewSource(4))
	x := NewTensor(9, 8, 8, 1)
	x.fillRandUniform(0, 1, rng)
	y, err := OneHot([]int{0, 1, 2, 0, 1, 2, 0, 1, 2}, 3)
	require.NoError(t, err)

	whole, err := net.Evaluate(x, y, 9)
	require.NoError(t, err)
	batched, err := net.Evaluate(x, y, 4) // uneven final batch
	require.NoError(t, err)

	assert.InDelta(t, whole["loss"], batched["loss"], 1e-6)
	assert.Equal(t, whole["accuracy"], batched["accuracy"])
}

func TestSummaryListsLayersAndParams(t *testing.T) {
	net := testConvNet(t, 1)

	s := net.Summary()
	assert.Contains(t, s, "conv2d")
	assert.Contains(t, s, "dense")
	assert.Contains(t, s, "Total parameters")
}

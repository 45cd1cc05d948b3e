package plexus

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
)

// Layer is the base interface for all layers. Gradients returned by
// backward are exact for the supplied upstream gradient; the 1/batch mean
// factor lives in the loss gradient.
type Layer interface {
	forward(input *Tensor, training bool) (*Tensor, error)
	backward(gradOutput *Tensor) (*Tensor, error)
	parameters() []*Tensor
	gradients() []*Tensor
	build(inputShape []int, rng *rand.Rand) error
	outputShape() []int
	name() string
}

// DenseLayer - fully connected layer
type DenseLayer struct {
	units       int
	activation  Activation
	initializer Initializer
	biasInit    Initializer
	useBias     bool
	weights     *Tensor
	bias        *Tensor
	input       *Tensor
	preAct      *Tensor
	output      *Tensor
	gradW       *Tensor
	gradB       *Tensor
	inputShape  []int
	built       bool
}

// DenseBuilder for fluent API
type DenseBuilder struct {
	layer *DenseLayer
}

func Dense(units int) *DenseBuilder {
	return &DenseBuilder{
		layer: &DenseLayer{
			units: units,
		},
	}
}

func (b *DenseBuilder) WithActivation(act Activation) *DenseBuilder {
	b.layer.activation = act
	return b
}

func (b *DenseBuilder) WithInitializer(init Initializer) *DenseBuilder {
	b.layer.initializer = init
	return b
}

func (b *DenseBuilder) WithBiasInitializer(init Initializer) *DenseBuilder {
	b.layer.biasInit = init
	return b
}

func (b *DenseBuilder) WithBias(useBias bool) *DenseBuilder {
	b.layer.useBias = useBias
	return b
}

func (b *DenseBuilder) Build() Layer {
	return b.layer
}

func (d *DenseLayer) build(inputShape []int, rng *rand.Rand) error {
	if len(inputShape) != 1 {
		return errors.Errorf("plexus: Dense requires a flat input shape, got %v", inputShape)
	}
	if d.units <= 0 {
		return errors.Errorf("plexus: Dense units must be positive, got %d", d.units)
	}
	if d.initializer == nil {
		return errors.New("plexus: Dense requires initializer - use WithInitializer()")
	}
	if d.activation == nil {
		return errors.New("plexus: Dense requires activation - use WithActivation()")
	}
	if d.useBias && d.biasInit == nil {
		return errors.New("plexus: Dense with bias requires bias initializer - use WithBiasInitializer()")
	}

	fanIn := inputShape[0]
	d.inputShape = inputShape

	d.weights = NewTensor(fanIn, d.units)
	d.initializer.initialize(d.weights, fanIn, d.units, rng)

	d.gradW = NewTensor(fanIn, d.units)

	if d.useBias {
		d.bias = NewTensor(d.units)
		d.biasInit.initialize(d.bias, fanIn, d.units, rng)
		d.gradB = NewTensor(d.units)
	}

	d.built = true
	return nil
}

func (d *DenseLayer) forward(input *Tensor, training bool) (*Tensor, error) {
	if !d.built {
		return nil, errors.New("plexus: layer not built - call Build() first")
	}
	batchSize := input.shape[0]
	inputDim := input.shape[1]

	if inputDim != d.weights.shape[0] {
		return nil, shapeErr(-1, d.name(), "forward",
			fmt.Sprintf("input dim %d", d.weights.shape[0]),
			fmt.Sprintf("input dim %d", inputDim))
	}

	d.input = input
	d.preAct = NewTensor(batchSize, d.units)
	d.output = NewTensor(batchSize, d.units)

	// Y = X @ W + b
	matmul(input, d.weights, d.preAct)
	if d.useBias {
		addVec(d.preAct, d.bias)
	}

	d.activation.forward(d.preAct, d.output)

	return d.output, nil
}

func (d *DenseLayer) backward(gradOutput *Tensor) (*Tensor, error) {
	if d.input == nil {
		return nil, errors.New("plexus: backward called before forward")
	}

	// Gradient through activation
	gradPreAct := NewTensor(gradOutput.shape...)
	d.activation.backward(d.preAct, gradOutput, gradPreAct)

	// dL/dW = X^T @ dL/dY
	d.gradW.zero()
	matmulTransA(d.input, gradPreAct, d.gradW)

	// dL/db = sum(dL/dY, axis=0)
	if d.useBias {
		d.gradB.zero()
		sumAxis0(gradPreAct, d.gradB)
	}

	// dL/dX = dL/dY @ W^T
	gradInput := NewTensor(d.input.shape...)
	matmulTransB(gradPreAct, d.weights, gradInput)

	return gradInput, nil
}

func (d *DenseLayer) parameters() []*Tensor {
	if d.useBias {
		return []*Tensor{d.weights, d.bias}
	}
	return []*Tensor{d.weights}
}

func (d *DenseLayer) gradients() []*Tensor {
	if d.useBias {
		return []*Tensor{d.gradW, d.gradB}
	}
	return []*Tensor{d.gradW}
}

func (d *DenseLayer) outputShape() []int {
	return []int{d.units}
}

func (d *DenseLayer) name() string { return "dense" }

// DropoutLayer - randomly zeros elements during training, identity during
// inference. Surviving activations are scaled by 1/(1-rate) so the expected
// value is preserved.
type DropoutLayer struct {
	rate  float64
	mask  *Tensor
	rng   *rand.Rand
	built bool
}

type DropoutBuilder struct {
	layer *DropoutLayer
}

func Dropout(rate float64) *DropoutBuilder {
	return &DropoutBuilder{
		layer: &DropoutLayer{
			rate: rate,
		},
	}
}

func (b *DropoutBuilder) Build() Layer {
	return b.layer
}

func (d *DropoutLayer) build(inputShape []int, rng *rand.Rand) error {
	if d.rate < 0 || d.rate >= 1 {
		return errors.Errorf("plexus: dropout rate must be in [0, 1), got %v", d.rate)
	}
	d.rng = rng
	d.built = true
	return nil
}

func (d *DropoutLayer) forward(input *Tensor, training bool) (*Tensor, error) {
	if !training {
		return input.Clone(), nil
	}

	output := NewTensor(input.shape...)
	d.mask = NewTensor(input.shape...)

	scale := float32(1.0 / (1.0 - d.rate))
	for i := range input.data {
		if d.rng.Float64() >= d.rate {
			d.mask.data[i] = scale
			output.data[i] = input.data[i] * scale
		} else {
			d.mask.data[i] = 0
			output.data[i] = 0
		}
	}
	return output, nil
}

func (d *DropoutLayer) backward(gradOutput *Tensor) (*Tensor, error) {
	gradInput := NewTensor(gradOutput.shape...)
	elemMul(gradOutput, d.mask, gradInput)
	return gradInput, nil
}

func (d *DropoutLayer) parameters() []*Tensor { return nil }
func (d *DropoutLayer) gradients() []*Tensor  { return nil }
func (d *DropoutLayer) outputShape() []int    { return nil }
func (d *DropoutLayer) name() string          { return "dropout" }

// FlattenLayer - flattens input to 1D per sample. Purely structural: both
// directions are a reshape of the same row-major data.
type FlattenLayer struct {
	inputShape []int
	built      bool
}

type FlattenBuilder struct {
	layer *FlattenLayer
}

func Flatten() *FlattenBuilder {
	return &FlattenBuilder{
		layer: &FlattenLayer{},
	}
}

func (b *FlattenBuilder) Build() Layer {
	return b.layer
}

func (f *FlattenLayer) build(inputShape []int, rng *rand.Rand) error {
	f.inputShape = inputShape
	f.built = true
	return nil
}

func (f *FlattenLayer) forward(input *Tensor, training bool) (*Tensor, error) {
	batchSize := input.shape[0]
	flatSize := 1
	for _, s := range input.shape[1:] {
		flatSize *= s
	}
	output := NewTensor(batchSize, flatSize)
	copy(output.data, input.data)
	return output, nil
}

func (f *FlattenLayer) backward(gradOutput *Tensor) (*Tensor, error) {
	shape := append([]int{gradOutput.shape[0]}, f.inputShape...)
	gradInput := NewTensor(shape...)
	copy(gradInput.data, gradOutput.data)
	return gradInput, nil
}

func (f *FlattenLayer) parameters() []*Tensor { return nil }
func (f *FlattenLayer) gradients() []*Tensor  { return nil }

func (f *FlattenLayer) outputShape() []int {
	flatSize := 1
	for _, s := range f.inputShape {
		flatSize *= s
	}
	return []int{flatSize}
}

func (f *FlattenLayer) name() string { return "flatten" }

// ActivationLayer - a standalone activation stage, so ReLU or Softmax can
// sit between layers that do their own affine work (Conv -> BatchNorm ->
// ReLU blocks).
type ActivationLayer struct {
	act     Activation
	input   *Tensor
	inShape []int
	built   bool
}

type ActivationBuilder struct {
	layer *ActivationLayer
}

func Activate(act Activation) *ActivationBuilder {
	return &ActivationBuilder{
		layer: &ActivationLayer{act: act},
	}
}

func (b *ActivationBuilder) Build() Layer {
	return b.layer
}

func (a *ActivationLayer) build(inputShape []int, rng *rand.Rand) error {
	if a.act == nil {
		return errors.New("plexus: Activate requires an activation")
	}
	a.inShape = inputShape
	a.built = true
	return nil
}

func (a *ActivationLayer) forward(input *Tensor, training bool) (*Tensor, error) {
	if !a.built {
		return nil, errors.New("plexus: layer not built")
	}
	a.input = input
	output := NewTensor(input.shape...)
	a.act.forward(input, output)
	return output, nil
}

func (a *ActivationLayer) backward(gradOutput *Tensor) (*Tensor, error) {
	if a.input == nil {
		return nil, errors.New("plexus: backward called before forward")
	}
	gradInput := NewTensor(gradOutput.shape...)
	a.act.backward(a.input, gradOutput, gradInput)
	return gradInput, nil
}

func (a *ActivationLayer) parameters() []*Tensor { return nil }
func (a *ActivationLayer) gradients() []*Tensor  { return nil }
func (a *ActivationLayer) outputShape() []int    { return a.inShape }
func (a *ActivationLayer) name() string          { return "activation(" + a.act.name() + ")" }

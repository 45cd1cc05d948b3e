package plexus

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

// Network is an ordered stack of layers forming a single forward pipeline.
// Structure is immutable after Build; parameters are mutated only by an
// optimizer step.
type Network struct {
	layers      []Layer
	optimizer   Optimizer
	loss        Loss
	metrics     []Metric
	regularizer Regularizer
	gradClip    GradientClipConfig
	compiled    bool
	built       bool
	rng         *rand.Rand
	inputShape  []int
}

// NetworkBuilder for fluent API
type NetworkBuilder struct {
	network *Network
}

// NewNetwork creates a new network builder.
func NewNetwork(config NetworkConfig) *NetworkBuilder {
	return &NetworkBuilder{
		network: &Network{
			layers: make([]Layer, 0),
			rng:    rand.New(rand.NewSource(config.Seed)),
		},
	}
}

// AddLayer appends a layer to the stack.
func (n *NetworkBuilder) AddLayer(layer Layer) *NetworkBuilder {
	n.network.layers = append(n.network.layers, layer)
	return n
}

// Build finalizes the network structure, threading the per-sample shape
// through every layer. Any adjacent-layer incompatibility fails here with
// the layer index and name.
func (n *NetworkBuilder) Build(inputShape []int) (*Network, error) {
	if len(n.network.layers) == 0 {
		return nil, errors.New("plexus: network must have at least one layer")
	}
	if len(inputShape) == 0 {
		return nil, errors.New("plexus: inputShape must be specified")
	}
	for _, d := range inputShape {
		if d <= 0 {
			return nil, errors.Errorf("plexus: inputShape dimensions must be positive, got %v", inputShape)
		}
	}

	n.network.inputShape = inputShape

	currentShape := inputShape
	for i, layer := range n.network.layers {
		if err := layer.build(currentShape, n.network.rng); err != nil {
			if se, ok := err.(*ShapeError); ok {
				se.Layer = i
				se.Name = layer.name()
				return nil, se
			}
			return nil, errors.Wrapf(err, "layer %d (%s)", i, layer.name())
		}
		if outShape := layer.outputShape(); outShape != nil {
			currentShape = outShape
		}
	}

	n.network.built = true
	return n.network, nil
}

// Compile attaches optimizer, loss, metrics, regularizer, and gradient
// clipping policy.
func (n *Network) Compile(config CompileConfig) error {
	if !n.built {
		return errors.New("plexus: network must be built before compiling")
	}
	if err := ValidateCompileConfig(config); err != nil {
		return err
	}

	n.optimizer = config.Optimizer
	n.loss = config.Loss
	n.metrics = config.Metrics
	n.regularizer = config.Regularizer
	n.gradClip = config.GradientClip
	n.compiled = true

	return nil
}

// forward threads a batch through the stack. training toggles dropout masks
// and batch-norm statistics.
func (n *Network) forward(input *Tensor, training bool) (*Tensor, error) {
	output := input
	var err error
	for i, layer := range n.layers {
		output, err = layer.forward(output, training)
		if err != nil {
			if se, ok := err.(*ShapeError); ok && se.Layer < 0 {
				se.Layer = i
				se.Name = layer.name()
			}
			return nil, err
		}
	}
	return output, nil
}

func (n *Network) backward(gradOutput *Tensor) error {
	var err error
	for i := len(n.layers) - 1; i >= 0; i-- {
		gradOutput, err = n.layers[i].backward(gradOutput)
		if err != nil {
			return err
		}
	}
	return nil
}

// parameters collects every trainable tensor in stack order.
func (n *Network) parameters() []*Tensor {
	var params []*Tensor
	for _, layer := range n.layers {
		params = append(params, layer.parameters()...)
	}
	return params
}

func (n *Network) gradients() []*Tensor {
	var grads []*Tensor
	for _, layer := range n.layers {
		grads = append(grads, layer.gradients()...)
	}
	return grads
}

// Predict runs inference (dropout off, frozen batch-norm statistics) and
// returns the output tensor.
func (n *Network) Predict(x *Tensor) (*Tensor, error) {
	if !n.built {
		return nil, errors.New("plexus: network must be built before prediction")
	}
	if err := n.checkInput(x); err != nil {
		return nil, err
	}
	return n.forward(x, false)
}

// Evaluate runs the network in inference mode over held-out data in batches
// of batchSize, returning mean loss and every compiled metric. It is a pure
// function of (network, data): no parameter or running statistic changes.
func (n *Network) Evaluate(x, y *Tensor, batchSize int) (map[string]float64, error) {
	if !n.compiled {
		return nil, errors.New("plexus: network must be compiled before evaluation")
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("plexus: batchSize must be > 0, got %d", batchSize)
	}
	if err := n.checkInput(x); err != nil {
		return nil, err
	}
	if x.shape[0] != y.shape[0] {
		return nil, errors.Errorf("plexus: inputs and targets must have same length, got %d and %d", x.shape[0], y.shape[0])
	}

	numSamples := x.shape[0]
	for _, m := range n.metrics {
		m.reset()
	}

	lossSum := 0.0
	for start := 0; start < numSamples; start += batchSize {
		batchX := getBatch(x, start, batchSize)
		batchY := getBatch(y, start, batchSize)

		output, err := n.forward(batchX, false)
		if err != nil {
			return nil, err
		}

		lossSum += n.loss.compute(output, batchY) * float64(batchX.shape[0])
		for _, m := range n.metrics {
			m.update(output, batchY)
		}
	}

	results := make(map[string]float64)
	results["loss"] = lossSum / float64(numSamples)
	for _, m := range n.metrics {
		results[m.name()] = m.result()
	}

	return results, nil
}

func (n *Network) checkInput(x *Tensor) error {
	want := append([]int{x.shape[0]}, n.inputShape...)
	if err := validateShape(want, x.shape); err != nil {
		return shapeErr(-1, "input", "forward",
			fmt.Sprintf("%v", want), fmt.Sprintf("%v", x.shape))
	}
	return nil
}

// Summary lists layers with their parameter counts.
func (n *Network) Summary() string {
	var b strings.Builder
	b.WriteString("Network Summary\n")
	b.WriteString("====================\n")

	totalParams := 0
	for i, layer := range n.layers {
		layerParams := 0
		for _, p := range layer.parameters() {
			layerParams += p.Size()
		}
		totalParams += layerParams
		fmt.Fprintf(&b, "Layer %d: %s - %d params\n", i+1, layer.name(), layerParams)
	}
	b.WriteString("====================\n")
	fmt.Fprintf(&b, "Total parameters: %d\n", totalParams)

	return b.String()
}

package plexus

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Conv2DLayer - 2D convolution over NHWC input.
type Conv2DLayer struct {
	filters     int
	kernelSize  [2]int
	stride      [2]int
	padding     string // "valid" or "same"
	activation  Activation
	initializer Initializer
	biasInit    Initializer
	useBias     bool
	weights     *Tensor // [filters, kernelH, kernelW, inChannels]
	bias        *Tensor
	input       *Tensor
	preAct      *Tensor
	gradW       *Tensor
	gradB       *Tensor
	inputShape  []int // [H, W, C]
	built       bool
}

type Conv2DBuilder struct {
	layer *Conv2DLayer
}

func Conv2D(filters int, kernelSize [2]int) *Conv2DBuilder {
	return &Conv2DBuilder{
		layer: &Conv2DLayer{
			filters:    filters,
			kernelSize: kernelSize,
			stride:     [2]int{1, 1},
			padding:    "valid",
		},
	}
}

func (b *Conv2DBuilder) WithStride(strideH, strideW int) *Conv2DBuilder {
	b.layer.stride = [2]int{strideH, strideW}
	return b
}

func (b *Conv2DBuilder) WithPadding(padding string) *Conv2DBuilder {
	b.layer.padding = padding
	return b
}

func (b *Conv2DBuilder) WithActivation(act Activation) *Conv2DBuilder {
	b.layer.activation = act
	return b
}

func (b *Conv2DBuilder) WithInitializer(init Initializer) *Conv2DBuilder {
	b.layer.initializer = init
	return b
}

func (b *Conv2DBuilder) WithBiasInitializer(init Initializer) *Conv2DBuilder {
	b.layer.biasInit = init
	return b
}

func (b *Conv2DBuilder) WithBias(useBias bool) *Conv2DBuilder {
	b.layer.useBias = useBias
	return b
}

func (b *Conv2DBuilder) Build() Layer {
	return b.layer
}

func (c *Conv2DLayer) build(inputShape []int, rng *rand.Rand) error {
	if len(inputShape) != 3 {
		return shapeErr(-1, c.name(), "build", "[H, W, C] input", fmt.Sprintf("%v", inputShape))
	}
	if c.filters <= 0 {
		return errors.Errorf("plexus: Conv2D filters must be positive, got %d", c.filters)
	}
	if c.kernelSize[0] <= 0 || c.kernelSize[1] <= 0 {
		return errors.Errorf("plexus: Conv2D kernel size must be positive, got %v", c.kernelSize)
	}
	if c.stride[0] <= 0 || c.stride[1] <= 0 {
		return errors.Errorf("plexus: Conv2D stride must be positive, got %v", c.stride)
	}
	if c.padding != "valid" && c.padding != "same" {
		return errors.Errorf("plexus: Conv2D padding must be \"valid\" or \"same\", got %q", c.padding)
	}
	if c.padding == "valid" && (c.kernelSize[0] > inputShape[0] || c.kernelSize[1] > inputShape[1]) {
		return shapeErr(-1, c.name(), "build",
			fmt.Sprintf("kernel within %dx%d input", inputShape[0], inputShape[1]),
			fmt.Sprintf("kernel %dx%d", c.kernelSize[0], c.kernelSize[1]))
	}
	if c.initializer == nil {
		return errors.New("plexus: Conv2D requires initializer")
	}
	if c.activation == nil {
		return errors.New("plexus: Conv2D requires activation")
	}
	if c.useBias && c.biasInit == nil {
		return errors.New("plexus: Conv2D with bias requires bias initializer")
	}

	c.inputShape = inputShape
	inChannels := inputShape[2]

	c.weights = NewTensor(c.filters, c.kernelSize[0], c.kernelSize[1], inChannels)
	fanIn := c.kernelSize[0] * c.kernelSize[1] * inChannels
	fanOut := c.kernelSize[0] * c.kernelSize[1] * c.filters
	c.initializer.initialize(c.weights, fanIn, fanOut, rng)

	c.gradW = NewTensor(c.filters, c.kernelSize[0], c.kernelSize[1], inChannels)

	if c.useBias {
		c.bias = NewTensor(c.filters)
		c.biasInit.initialize(c.bias, fanIn, fanOut, rng)
		c.gradB = NewTensor(c.filters)
	}

	c.built = true
	return nil
}

// computeOutputSize: valid padding gives out = (in - kernel)/stride + 1,
// which reduces to in - kernel + 1 at stride 1.
func (c *Conv2DLayer) computeOutputSize(inputH, inputW int) (int, int) {
	var outH, outW int
	if c.padding == "same" {
		outH = (inputH + c.stride[0] - 1) / c.stride[0]
		outW = (inputW + c.stride[1] - 1) / c.stride[1]
	} else {
		outH = (inputH-c.kernelSize[0])/c.stride[0] + 1
		outW = (inputW-c.kernelSize[1])/c.stride[1] + 1
	}
	return outH, outW
}

func (c *Conv2DLayer) computePadding(inputH, inputW, outH, outW int) (int, int) {
	if c.padding != "same" {
		return 0, 0
	}
	padH := maxInt((outH-1)*c.stride[0]+c.kernelSize[0]-inputH, 0)
	padW := maxInt((outW-1)*c.stride[1]+c.kernelSize[1]-inputW, 0)
	return padH / 2, padW / 2
}

func (c *Conv2DLayer) forward(input *Tensor, training bool) (*Tensor, error) {
	if !c.built {
		return nil, errors.New("plexus: Conv2D not built")
	}
	if len(input.shape) != 4 {
		return nil, shapeErr(-1, c.name(), "forward", "rank-4 NHWC input", fmt.Sprintf("%v", input.shape))
	}

	batchSize := input.shape[0]
	inputH := input.shape[1]
	inputW := input.shape[2]
	inChannels := input.shape[3]
	if inChannels != c.inputShape[2] {
		return nil, shapeErr(-1, c.name(), "forward",
			fmt.Sprintf("%d channels", c.inputShape[2]),
			fmt.Sprintf("%d channels", inChannels))
	}

	outH, outW := c.computeOutputSize(inputH, inputW)
	padTop, padLeft := c.computePadding(inputH, inputW, outH, outW)

	c.input = input
	c.preAct = NewTensor(batchSize, outH, outW, c.filters)

	kH := c.kernelSize[0]
	kW := c.kernelSize[1]

	for b := 0; b < batchSize; b++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				for f := 0; f < c.filters; f++ {
					sum := 0.0
					for kh := 0; kh < kH; kh++ {
						for kw := 0; kw < kW; kw++ {
							ih := oh*c.stride[0] + kh - padTop
							iw := ow*c.stride[1] + kw - padLeft
							if ih >= 0 && ih < inputH && iw >= 0 && iw < inputW {
								for ic := 0; ic < inChannels; ic++ {
									inputIdx := b*inputH*inputW*inChannels + ih*inputW*inChannels + iw*inChannels + ic
									weightIdx := f*kH*kW*inChannels + kh*kW*inChannels + kw*inChannels + ic
									sum += float64(input.data[inputIdx]) * float64(c.weights.data[weightIdx])
								}
							}
						}
					}
					outIdx := b*outH*outW*c.filters + oh*outW*c.filters + ow*c.filters + f
					if c.useBias {
						sum += float64(c.bias.data[f])
					}
					c.preAct.data[outIdx] = float32(sum)
				}
			}
		}
	}

	output := NewTensor(c.preAct.shape...)
	c.activation.forward(c.preAct, output)
	return output, nil
}

func (c *Conv2DLayer) backward(gradOutput *Tensor) (*Tensor, error) {
	if c.input == nil {
		return nil, errors.New("plexus: backward called before forward")
	}

	batchSize := c.input.shape[0]
	inputH := c.input.shape[1]
	inputW := c.input.shape[2]
	inChannels := c.input.shape[3]
	outH := gradOutput.shape[1]
	outW := gradOutput.shape[2]

	gradPreAct := NewTensor(gradOutput.shape...)
	c.activation.backward(c.preAct, gradOutput, gradPreAct)

	padTop, padLeft := c.computePadding(inputH, inputW, outH, outW)

	c.gradW.zero()
	if c.useBias {
		c.gradB.zero()
	}
	gradInput := NewTensor(c.input.shape...)

	kH := c.kernelSize[0]
	kW := c.kernelSize[1]

	for b := 0; b < batchSize; b++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				for f := 0; f < c.filters; f++ {
					outIdx := b*outH*outW*c.filters + oh*outW*c.filters + ow*c.filters + f
					dout := gradPreAct.data[outIdx]

					if c.useBias {
						c.gradB.data[f] += dout
					}

					for kh := 0; kh < kH; kh++ {
						for kw := 0; kw < kW; kw++ {
							ih := oh*c.stride[0] + kh - padTop
							iw := ow*c.stride[1] + kw - padLeft
							if ih >= 0 && ih < inputH && iw >= 0 && iw < inputW {
								for ic := 0; ic < inChannels; ic++ {
									inputIdx := b*inputH*inputW*inChannels + ih*inputW*inChannels + iw*inChannels + ic
									weightIdx := f*kH*kW*inChannels + kh*kW*inChannels + kw*inChannels + ic

									c.gradW.data[weightIdx] += c.input.data[inputIdx] * dout
									gradInput.data[inputIdx] += c.weights.data[weightIdx] * dout
								}
							}
						}
					}
				}
			}
		}
	}

	return gradInput, nil
}

func (c *Conv2DLayer) parameters() []*Tensor {
	if c.useBias {
		return []*Tensor{c.weights, c.bias}
	}
	return []*Tensor{c.weights}
}

func (c *Conv2DLayer) gradients() []*Tensor {
	if c.useBias {
		return []*Tensor{c.gradW, c.gradB}
	}
	return []*Tensor{c.gradW}
}

func (c *Conv2DLayer) outputShape() []int {
	outH, outW := c.computeOutputSize(c.inputShape[0], c.inputShape[1])
	return []int{outH, outW, c.filters}
}

func (c *Conv2DLayer) name() string { return "conv2d" }

// MaxPool2DLayer - max pooling. No trainable parameters; the backward pass
// routes each gradient only to the position that produced the window
// maximum. Ties resolve to the first position in (row, col) scan order.
type MaxPool2DLayer struct {
	poolSize   [2]int
	stride     [2]int
	inputShape []int
	maxIndices []int // flat input index of each window's argmax
	built      bool
}

type MaxPool2DBuilder struct {
	layer *MaxPool2DLayer
}

func MaxPool2D(poolSize [2]int) *MaxPool2DBuilder {
	return &MaxPool2DBuilder{
		layer: &MaxPool2DLayer{
			poolSize: poolSize,
			stride:   poolSize, // default stride = pool size
		},
	}
}

func (b *MaxPool2DBuilder) WithStride(strideH, strideW int) *MaxPool2DBuilder {
	b.layer.stride = [2]int{strideH, strideW}
	return b
}

func (b *MaxPool2DBuilder) Build() Layer {
	return b.layer
}

func (m *MaxPool2DLayer) build(inputShape []int, rng *rand.Rand) error {
	if len(inputShape) != 3 {
		return shapeErr(-1, m.name(), "build", "[H, W, C] input", fmt.Sprintf("%v", inputShape))
	}
	if m.poolSize[0] <= 0 || m.poolSize[1] <= 0 {
		return errors.Errorf("plexus: MaxPool2D pool size must be positive, got %v", m.poolSize)
	}
	if m.stride[0] <= 0 || m.stride[1] <= 0 {
		return errors.Errorf("plexus: MaxPool2D stride must be positive, got %v", m.stride)
	}
	if m.poolSize[0] > inputShape[0] || m.poolSize[1] > inputShape[1] {
		return shapeErr(-1, m.name(), "build",
			fmt.Sprintf("pool within %dx%d input", inputShape[0], inputShape[1]),
			fmt.Sprintf("pool %dx%d", m.poolSize[0], m.poolSize[1]))
	}
	m.inputShape = inputShape
	m.built = true
	return nil
}

func (m *MaxPool2DLayer) computeOutputSize(inputH, inputW int) (int, int) {
	outH := (inputH-m.poolSize[0])/m.stride[0] + 1
	outW := (inputW-m.poolSize[1])/m.stride[1] + 1
	return outH, outW
}

func (m *MaxPool2DLayer) forward(input *Tensor, training bool) (*Tensor, error) {
	if !m.built {
		return nil, errors.New("plexus: MaxPool2D not built")
	}

	batchSize := input.shape[0]
	inputH := input.shape[1]
	inputW := input.shape[2]
	channels := input.shape[3]

	outH, outW := m.computeOutputSize(inputH, inputW)
	output := NewTensor(batchSize, outH, outW, channels)
	m.maxIndices = make([]int, output.Size())

	for b := 0; b < batchSize; b++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				for c := 0; c < channels; c++ {
					best := float32(math.Inf(-1))
					bestIdx := 0

					for ph := 0; ph < m.poolSize[0]; ph++ {
						for pw := 0; pw < m.poolSize[1]; pw++ {
							ih := oh*m.stride[0] + ph
							iw := ow*m.stride[1] + pw
							if ih < inputH && iw < inputW {
								idx := b*inputH*inputW*channels + ih*inputW*channels + iw*channels + c
								// Strict > keeps the first-seen position on ties.
								if input.data[idx] > best {
									best = input.data[idx]
									bestIdx = idx
								}
							}
						}
					}

					outIdx := b*outH*outW*channels + oh*outW*channels + ow*channels + c
					output.data[outIdx] = best
					m.maxIndices[outIdx] = bestIdx
				}
			}
		}
	}

	return output, nil
}

func (m *MaxPool2DLayer) backward(gradOutput *Tensor) (*Tensor, error) {
	if m.maxIndices == nil {
		return nil, errors.New("plexus: backward called before forward")
	}

	batchSize := gradOutput.shape[0]
	gradInput := NewTensor(batchSize, m.inputShape[0], m.inputShape[1], m.inputShape[2])

	for outIdx, inIdx := range m.maxIndices {
		gradInput.data[inIdx] += gradOutput.data[outIdx]
	}

	return gradInput, nil
}

func (m *MaxPool2DLayer) parameters() []*Tensor { return nil }
func (m *MaxPool2DLayer) gradients() []*Tensor  { return nil }

func (m *MaxPool2DLayer) outputShape() []int {
	outH, outW := m.computeOutputSize(m.inputShape[0], m.inputShape[1])
	return []int{outH, outW, m.inputShape[2]}
}

func (m *MaxPool2DLayer) name() string { return "max_pool2d" }

package plexus

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// BatchNormLayer normalizes each channel (the trailing dimension) over every
// other dimension, then applies a learned per-channel scale and shift.
//
// The training/inference mode split is a hard invariant: training uses batch
// statistics and folds them into the running estimates, inference uses the
// frozen running estimates and mutates nothing. Works on (N, F) dense
// activations and (N, H, W, C) conv activations alike, reducing over N
// or N*H*W respectively.
type BatchNormLayer struct {
	epsilon     float64
	momentum    float64
	gamma       *Tensor
	beta        *Tensor
	runningMean *Tensor
	runningVar  *Tensor
	gradGamma   *Tensor
	gradBeta    *Tensor
	input       *Tensor
	normalized  *Tensor
	mean        []float64
	variance    []float64
	features    int
	built       bool
}

type BatchNormBuilder struct {
	layer *BatchNormLayer
}

func BatchNorm(epsilon, momentum float64) *BatchNormBuilder {
	return &BatchNormBuilder{
		layer: &BatchNormLayer{
			epsilon:  epsilon,
			momentum: momentum,
		},
	}
}

func (b *BatchNormBuilder) Build() Layer {
	return b.layer
}

func (bn *BatchNormLayer) build(inputShape []int, rng *rand.Rand) error {
	if len(inputShape) == 0 {
		return errors.New("plexus: BatchNorm requires non-empty input shape")
	}
	if bn.epsilon <= 0 {
		return errors.Errorf("plexus: BatchNorm epsilon must be positive, got %v", bn.epsilon)
	}
	if bn.momentum < 0 || bn.momentum >= 1 {
		return errors.Errorf("plexus: BatchNorm momentum must be in [0, 1), got %v", bn.momentum)
	}
	bn.features = inputShape[len(inputShape)-1]

	bn.gamma = NewTensor(bn.features)
	bn.gamma.Fill(1.0)
	bn.beta = NewTensor(bn.features)

	bn.runningMean = NewTensor(bn.features)
	bn.runningVar = NewTensor(bn.features)
	bn.runningVar.Fill(1.0)

	bn.gradGamma = NewTensor(bn.features)
	bn.gradBeta = NewTensor(bn.features)

	bn.built = true
	return nil
}

func (bn *BatchNormLayer) forward(input *Tensor, training bool) (*Tensor, error) {
	if !bn.built {
		return nil, errors.New("plexus: layer not built")
	}

	features := input.shape[len(input.shape)-1]
	if features != bn.features {
		return nil, shapeErr(-1, bn.name(), "forward",
			fmt.Sprintf("%d channels", bn.features),
			fmt.Sprintf("%d channels", features))
	}
	rows := len(input.data) / features

	bn.input = input
	bn.normalized = NewTensor(input.shape...)
	bn.mean = make([]float64, features)
	bn.variance = make([]float64, features)

	if training {
		// Per-channel batch statistics, accumulated in float64.
		for j := 0; j < features; j++ {
			sum := 0.0
			for i := 0; i < rows; i++ {
				sum += float64(input.data[i*features+j])
			}
			bn.mean[j] = sum / float64(rows)
		}

		for j := 0; j < features; j++ {
			sum := 0.0
			for i := 0; i < rows; i++ {
				diff := float64(input.data[i*features+j]) - bn.mean[j]
				sum += diff * diff
			}
			bn.variance[j] = sum / float64(rows)
		}

		// Running estimates advance in the order batches are processed.
		for j := 0; j < features; j++ {
			bn.runningMean.data[j] = float32(bn.momentum*float64(bn.runningMean.data[j]) + (1-bn.momentum)*bn.mean[j])
			bn.runningVar.data[j] = float32(bn.momentum*float64(bn.runningVar.data[j]) + (1-bn.momentum)*bn.variance[j])
		}
	} else {
		for j := 0; j < features; j++ {
			bn.mean[j] = float64(bn.runningMean.data[j])
			bn.variance[j] = float64(bn.runningVar.data[j])
		}
	}

	output := NewTensor(input.shape...)
	for j := 0; j < features; j++ {
		invStd := 1.0 / math.Sqrt(bn.variance[j]+bn.epsilon)
		gamma := float64(bn.gamma.data[j])
		beta := float64(bn.beta.data[j])
		for i := 0; i < rows; i++ {
			idx := i*features + j
			xNorm := (float64(input.data[idx]) - bn.mean[j]) * invStd
			bn.normalized.data[idx] = float32(xNorm)
			output.data[idx] = float32(gamma*xNorm + beta)
		}
	}

	return output, nil
}

func (bn *BatchNormLayer) backward(gradOutput *Tensor) (*Tensor, error) {
	if bn.input == nil {
		return nil, errors.New("plexus: backward called before forward")
	}

	features := bn.features
	rows := len(bn.input.data) / features
	n := float64(rows)

	bn.gradGamma.zero()
	bn.gradBeta.zero()
	gradInput := NewTensor(bn.input.shape...)

	for j := 0; j < features; j++ {
		invStd := 1.0 / math.Sqrt(bn.variance[j]+bn.epsilon)
		gamma := float64(bn.gamma.data[j])

		var dGamma, dBeta, dVar, dMean float64

		for i := 0; i < rows; i++ {
			idx := i*features + j
			dout := float64(gradOutput.data[idx])
			dGamma += dout * float64(bn.normalized.data[idx])
			dBeta += dout
		}

		// dL/dvar = sum(dxNorm * (x - mean)) * -1/2 * (var + eps)^(-3/2)
		for i := 0; i < rows; i++ {
			idx := i*features + j
			dxNorm := float64(gradOutput.data[idx]) * gamma
			centered := float64(bn.input.data[idx]) - bn.mean[j]
			dVar += dxNorm * centered * -0.5 * invStd * invStd * invStd
		}

		// dL/dmean = sum(dxNorm) * -invStd + dVar * mean(-2 * (x - mean))
		sumCentered := 0.0
		for i := 0; i < rows; i++ {
			idx := i*features + j
			dxNorm := float64(gradOutput.data[idx]) * gamma
			dMean += dxNorm * -invStd
			sumCentered += float64(bn.input.data[idx]) - bn.mean[j]
		}
		dMean += dVar * -2.0 * sumCentered / n

		for i := 0; i < rows; i++ {
			idx := i*features + j
			dxNorm := float64(gradOutput.data[idx]) * gamma
			centered := float64(bn.input.data[idx]) - bn.mean[j]
			gradInput.data[idx] = float32(dxNorm*invStd + dVar*2.0*centered/n + dMean/n)
		}

		bn.gradGamma.data[j] = float32(dGamma)
		bn.gradBeta.data[j] = float32(dBeta)
	}

	return gradInput, nil
}

func (bn *BatchNormLayer) parameters() []*Tensor {
	return []*Tensor{bn.gamma, bn.beta}
}

func (bn *BatchNormLayer) gradients() []*Tensor {
	return []*Tensor{bn.gradGamma, bn.gradBeta}
}

// runningStats exposes frozen estimates for evaluation-purity checks.
func (bn *BatchNormLayer) runningStats() (*Tensor, *Tensor) {
	return bn.runningMean, bn.runningVar
}

func (bn *BatchNormLayer) outputShape() []int { return nil }
func (bn *BatchNormLayer) name() string       { return "batch_norm" }

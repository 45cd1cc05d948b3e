package plexus

import "math"

// Loss computes a scalar loss and its gradient with respect to predictions.
// The gradient carries the 1/batch mean factor; layers backpropagate it
// unscaled.
type Loss interface {
	compute(pred, target *Tensor) float64
	gradient(pred, target *Tensor, gradOut *Tensor)
	name() string
}

// CrossEntropyLoss - categorical cross-entropy over softmax probabilities.
type CrossEntropyLoss struct {
	LabelSmoothing float64
}

type CrossEntropyConfig struct {
	LabelSmoothing float64
}

func CrossEntropy(config CrossEntropyConfig) Loss {
	return &CrossEntropyLoss{LabelSmoothing: config.LabelSmoothing}
}

func (c *CrossEntropyLoss) compute(pred, target *Tensor) float64 {
	eps := 1e-15
	sum := 0.0
	nClasses := pred.shape[len(pred.shape)-1]
	nSamples := len(pred.data) / nClasses

	for i := 0; i < nSamples; i++ {
		for j := 0; j < nClasses; j++ {
			idx := i*nClasses + j
			t := float64(target.data[idx])
			if c.LabelSmoothing > 0 {
				t = t*(1-c.LabelSmoothing) + c.LabelSmoothing/float64(nClasses)
			}
			p := math.Max(float64(pred.data[idx]), eps)
			sum -= t * math.Log(p)
		}
	}
	return sum / float64(nSamples)
}

// gradient assumes pred came through a softmax output layer; the combined
// softmax+cross-entropy gradient is (p - t) / N.
func (c *CrossEntropyLoss) gradient(pred, target *Tensor, gradOut *Tensor) {
	nClasses := pred.shape[len(pred.shape)-1]
	nSamples := len(pred.data) / nClasses
	scale := 1.0 / float64(nSamples)

	for i := 0; i < nSamples; i++ {
		for j := 0; j < nClasses; j++ {
			idx := i*nClasses + j
			t := float64(target.data[idx])
			if c.LabelSmoothing > 0 {
				t = t*(1-c.LabelSmoothing) + c.LabelSmoothing/float64(nClasses)
			}
			gradOut.data[idx] = float32(scale * (float64(pred.data[idx]) - t))
		}
	}
}

func (c *CrossEntropyLoss) name() string { return "cross_entropy" }

// MSELoss - Mean Squared Error
type MSELoss struct {
	Reduction string // "mean" or "sum"
}

type MSEConfig struct {
	Reduction string
}

func MSE(config MSEConfig) Loss {
	return &MSELoss{Reduction: config.Reduction}
}

func (m *MSELoss) compute(pred, target *Tensor) float64 {
	sum := 0.0
	for i := range pred.data {
		diff := float64(pred.data[i]) - float64(target.data[i])
		sum += diff * diff
	}
	if m.Reduction == "mean" {
		return sum / float64(len(pred.data))
	}
	return sum
}

func (m *MSELoss) gradient(pred, target *Tensor, gradOut *Tensor) {
	scale := 2.0
	if m.Reduction == "mean" {
		scale = 2.0 / float64(len(pred.data))
	}
	for i := range pred.data {
		gradOut.data[i] = float32(scale * (float64(pred.data[i]) - float64(target.data[i])))
	}
}

func (m *MSELoss) name() string { return "mse" }

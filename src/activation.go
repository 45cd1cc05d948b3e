package plexus

import "math"

// Activation represents an activation function applied elementwise (or
// row-wise for Softmax) to a pre-activation tensor.
type Activation interface {
	forward(x *Tensor, out *Tensor)
	backward(x *Tensor, gradOut *Tensor, gradIn *Tensor)
	name() string
}

// ReLUActivation - Rectified Linear Unit
type ReLUActivation struct{}

func ReLU() Activation { return &ReLUActivation{} }

func (r *ReLUActivation) forward(x *Tensor, out *Tensor) {
	for i, v := range x.data {
		if v > 0 {
			out.data[i] = v
		} else {
			out.data[i] = 0
		}
	}
}

func (r *ReLUActivation) backward(x *Tensor, gradOut *Tensor, gradIn *Tensor) {
	for i, v := range x.data {
		if v > 0 {
			gradIn.data[i] = gradOut.data[i]
		} else {
			gradIn.data[i] = 0
		}
	}
}

func (r *ReLUActivation) name() string { return "relu" }

// SigmoidActivation
type SigmoidActivation struct{}

func Sigmoid() Activation { return &SigmoidActivation{} }

func (s *SigmoidActivation) forward(x *Tensor, out *Tensor) {
	for i, raw := range x.data {
		v := float64(raw)
		if v >= 0 {
			out.data[i] = float32(1.0 / (1.0 + math.Exp(-v)))
		} else {
			// Stable form for negative inputs: exp(-v) overflows below -709.
			expV := math.Exp(v)
			out.data[i] = float32(expV / (1.0 + expV))
		}
	}
}

func (s *SigmoidActivation) backward(x *Tensor, gradOut *Tensor, gradIn *Tensor) {
	for i, raw := range x.data {
		sig := 1.0 / (1.0 + math.Exp(-float64(raw)))
		gradIn.data[i] = float32(float64(gradOut.data[i]) * sig * (1 - sig))
	}
}

func (s *SigmoidActivation) name() string { return "sigmoid" }

// TanhActivation
type TanhActivation struct{}

func Tanh() Activation { return &TanhActivation{} }

func (t *TanhActivation) forward(x *Tensor, out *Tensor) {
	for i, v := range x.data {
		out.data[i] = float32(math.Tanh(float64(v)))
	}
}

func (t *TanhActivation) backward(x *Tensor, gradOut *Tensor, gradIn *Tensor) {
	for i, v := range x.data {
		th := math.Tanh(float64(v))
		gradIn.data[i] = float32(float64(gradOut.data[i]) * (1 - th*th))
	}
}

func (t *TanhActivation) name() string { return "tanh" }

// SoftmaxActivation - operates on the last dimension. Subtracts the row max
// before exponentiation so arbitrary finite logits cannot overflow.
type SoftmaxActivation struct{}

func Softmax() Activation { return &SoftmaxActivation{} }

func (s *SoftmaxActivation) forward(x *Tensor, out *Tensor) {
	cols := x.shape[len(x.shape)-1]
	rows := len(x.data) / cols
	for r := 0; r < rows; r++ {
		maxV := x.data[r*cols]
		for c := 1; c < cols; c++ {
			if x.data[r*cols+c] > maxV {
				maxV = x.data[r*cols+c]
			}
		}
		sum := 0.0
		for c := 0; c < cols; c++ {
			e := math.Exp(float64(x.data[r*cols+c] - maxV))
			out.data[r*cols+c] = float32(e)
			sum += e
		}
		for c := 0; c < cols; c++ {
			out.data[r*cols+c] = float32(float64(out.data[r*cols+c]) / sum)
		}
	}
}

func (s *SoftmaxActivation) backward(x *Tensor, gradOut *Tensor, gradIn *Tensor) {
	// Paired with cross-entropy: the loss gradient is already (p - t),
	// so the softmax Jacobian is folded into the loss and this passes
	// the gradient through unchanged.
	copy(gradIn.data, gradOut.data)
}

func (s *SoftmaxActivation) name() string { return "softmax" }

// LinearActivation - identity function
type LinearActivation struct{}

func Linear() Activation { return &LinearActivation{} }

func (l *LinearActivation) forward(x *Tensor, out *Tensor) {
	copy(out.data, x.data)
}

func (l *LinearActivation) backward(x *Tensor, gradOut *Tensor, gradIn *Tensor) {
	copy(gradIn.data, gradOut.data)
}

func (l *LinearActivation) name() string { return "linear" }

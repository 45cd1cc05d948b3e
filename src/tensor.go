package plexus

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Tensor is a dense row-major float32 array with an explicit shape.
// Image batches use NHWC layout: (batch, height, width, channels).
type Tensor struct {
	data   []float32
	shape  []int
	stride []int
}

// NewTensor allocates a zero-filled tensor.
func NewTensor(shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			s = 1
		}
		size *= s
	}
	stride := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		if i == len(shape)-1 {
			stride[i] = 1
		} else {
			stride[i] = stride[i+1] * shape[i+1]
		}
	}
	return &Tensor{
		data:   make([]float32, size),
		shape:  shape,
		stride: stride,
	}
}

// Shape returns the tensor's dimensions. The slice is shared, not copied.
func (t *Tensor) Shape() []int { return t.shape }

// Data returns the flat backing slice in row-major order.
func (t *Tensor) Data() []float32 { return t.data }

// Size returns the total element count.
func (t *Tensor) Size() int { return len(t.data) }

// At reads the element at the given indices.
func (t *Tensor) At(indices ...int) float32 {
	idx := 0
	for i, v := range indices {
		idx += v * t.stride[i]
	}
	return t.data[idx]
}

// Set writes the element at the given indices.
func (t *Tensor) Set(value float32, indices ...int) {
	idx := 0
	for i, v := range indices {
		idx += v * t.stride[i]
	}
	t.data[idx] = value
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float32) {
	for i := range t.data {
		t.data[i] = value
	}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	nt := NewTensor(t.shape...)
	copy(nt.data, t.data)
	return nt
}

func (t *Tensor) zero() {
	for i := range t.data {
		t.data[i] = 0
	}
}

func (t *Tensor) fillRandNorm(mean, std float64, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64()*std + mean)
	}
}

func (t *Tensor) fillRandUniform(low, high float64, rng *rand.Rand) {
	for i := range t.data {
		t.data[i] = float32(rng.Float64()*(high-low) + low)
	}
}

// Matrix kernels. Dot products accumulate in float64 and narrow once per
// output element.

func matmul(a, b, out *Tensor) {
	m := a.shape[0]
	k := a.shape[1]
	n := b.shape[1]

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for l := 0; l < k; l++ {
				sum += float64(a.data[i*k+l]) * float64(b.data[l*n+j])
			}
			out.data[i*n+j] = float32(sum)
		}
	}
}

func matmulTransA(a, b, out *Tensor) {
	m := a.shape[1]
	k := a.shape[0]
	n := b.shape[1]

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for l := 0; l < k; l++ {
				sum += float64(a.data[l*m+i]) * float64(b.data[l*n+j])
			}
			out.data[i*n+j] = float32(sum)
		}
	}
}

func matmulTransB(a, b, out *Tensor) {
	m := a.shape[0]
	k := a.shape[1]
	n := b.shape[0]

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for l := 0; l < k; l++ {
				sum += float64(a.data[i*k+l]) * float64(b.data[j*k+l])
			}
			out.data[i*n+j] = float32(sum)
		}
	}
}

func addVec(a *Tensor, b *Tensor) {
	for i := range a.data {
		a.data[i] += b.data[i%len(b.data)]
	}
}

func mulScalar(a *Tensor, s float64) {
	for i := range a.data {
		a.data[i] = float32(float64(a.data[i]) * s)
	}
}

func elemMul(a, b, out *Tensor) {
	for i := range a.data {
		out.data[i] = a.data[i] * b.data[i]
	}
}

func sumAxis0(a *Tensor, out *Tensor) {
	rows := a.shape[0]
	cols := a.shape[1]
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += float64(a.data[i*cols+j])
		}
		out.data[j] = float32(sum)
	}
}

func clipTensor(a *Tensor, min, max float32) {
	for i := range a.data {
		if a.data[i] < min {
			a.data[i] = min
		} else if a.data[i] > max {
			a.data[i] = max
		}
	}
}

func maxVal(a *Tensor) float32 {
	if len(a.data) == 0 {
		return 0
	}
	m := a.data[0]
	for _, v := range a.data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func l2Norm(a *Tensor) float64 {
	sum := 0.0
	for _, v := range a.data {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func allFinite(t *Tensor) bool {
	for _, v := range t.data {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func validateShape(expected, got []int) error {
	if len(expected) != len(got) {
		return errors.Errorf("plexus: shape rank mismatch: want %v, got %v", expected, got)
	}
	for i := range expected {
		if expected[i] != got[i] {
			return errors.Errorf("plexus: shape mismatch: want %v, got %v", expected, got)
		}
	}
	return nil
}

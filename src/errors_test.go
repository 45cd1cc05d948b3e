package plexus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeErrorMessage(t *testing.T) {
	err := shapeErr(2, "dense", "forward", "input dim 4", "input dim 5")
	msg := err.Error()

	assert.Contains(t, msg, "layer 2")
	assert.Contains(t, msg, "dense")
	assert.Contains(t, msg, "forward")
	assert.Contains(t, msg, "input dim 4")
}

func TestScanTensorCountsCorruption(t *testing.T) {
	x := NewTensor(5)
	copy(x.data, []float32{1, float32(math.NaN()), -3, float32(math.Inf(1)), 2})

	info := ScanTensor(x)
	assert.Equal(t, 1, info.NaNCount)
	assert.Equal(t, 1, info.InfCount)
	assert.Equal(t, []int{1, 3}, info.BadIndices)
	assert.Equal(t, -3.0, info.MinValue)
	assert.Equal(t, 2.0, info.MaxValue)
	assert.Contains(t, info.Format(), "corrupt")
}

func TestScanTensorCleanRange(t *testing.T) {
	x := NewTensor(3)
	copy(x.data, []float32{-1, 0, 4})

	info := ScanTensor(x)
	assert.Equal(t, 0, info.NaNCount)
	assert.Equal(t, 0, info.InfCount)
	assert.Equal(t, -1.0, info.MinValue)
	assert.Equal(t, 4.0, info.MaxValue)
	assert.Contains(t, info.Format(), "range")
}

func TestRegularizerLossAndGradient(t *testing.T) {
	w := NewTensor(3)
	copy(w.data, []float32{1, -2, 3})

	l2 := L2(0.1)
	assert.InDelta(t, 0.5*0.1*14.0, l2.loss(w), 1e-6)

	g := NewTensor(3)
	l2.gradient(w, g)
	assert.InDelta(t, 0.1, float64(g.data[0]), 1e-6)
	assert.InDelta(t, -0.2, float64(g.data[1]), 1e-6)

	l1 := L1(0.1)
	assert.InDelta(t, 0.1*6.0, l1.loss(w), 1e-6)

	g.zero()
	l1.gradient(w, g)
	assert.InDelta(t, 0.1, float64(g.data[0]), 1e-6)
	assert.InDelta(t, -0.1, float64(g.data[1]), 1e-6)

	none := NoReg()
	assert.Equal(t, 0.0, none.loss(w))
}

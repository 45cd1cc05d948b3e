package plexus

import (
	"fmt"
	"math"
	"strings"
)

// ShapeError reports incompatible tensor dimensions at network construction
// or during a forward/backward pass. Not recoverable without rebuilding the
// network.
type ShapeError struct {
	Layer int    // 0-indexed position in the stack, -1 when not layer-scoped
	Name  string // layer name, "" when not layer-scoped
	Phase string // "build", "forward", "backward"
	Want  string
	Got   string
}

func (e *ShapeError) Error() string {
	var b strings.Builder
	b.WriteString("plexus: shape mismatch")
	if e.Layer >= 0 {
		fmt.Fprintf(&b, " at layer %d (%s)", e.Layer, e.Name)
	}
	if e.Phase != "" {
		fmt.Fprintf(&b, " during %s", e.Phase)
	}
	if e.Want != "" {
		fmt.Fprintf(&b, ": want %s, got %s", e.Want, e.Got)
	}
	return b.String()
}

func shapeErr(layer int, name, phase, want, got string) *ShapeError {
	return &ShapeError{Layer: layer, Name: name, Phase: phase, Want: want, Got: got}
}

// DataError reports invalid raw input rejected by the preprocessor.
type DataError struct {
	Index int // offending sample, -1 when not sample-scoped
	Cause string
}

func (e *DataError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("plexus: invalid data at sample %d: %s", e.Index, e.Cause)
	}
	return fmt.Sprintf("plexus: invalid data: %s", e.Cause)
}

// DivergenceError reports a non-finite loss or gradient during training.
// Training aborts at the batch where divergence was detected; parameters
// remain in the state left by the last completed optimizer step.
type DivergenceError struct {
	Epoch int // 0-indexed epoch at which divergence occurred
	Batch int // 0-indexed batch within the epoch
	Where string // "loss" or "gradients"
	Info  *TensorInfo
}

func (e *DivergenceError) Error() string {
	s := fmt.Sprintf("plexus: training diverged: non-finite %s at epoch %d batch %d", e.Where, e.Epoch, e.Batch)
	if e.Info != nil {
		s += " (" + e.Info.Format() + ")"
	}
	return s
}

// TensorInfo captures tensor state for error reporting.
type TensorInfo struct {
	Shape      []int
	Size       int
	NaNCount   int
	InfCount   int
	MinValue   float64
	MaxValue   float64
	BadIndices []int // first 10 corrupted indices
}

// Format returns a compact string representation.
func (t *TensorInfo) Format() string {
	s := fmt.Sprintf("%v size=%d", t.Shape, t.Size)
	if t.NaNCount > 0 || t.InfCount > 0 {
		s += fmt.Sprintf(" corrupt: %d NaN, %d Inf at %v", t.NaNCount, t.InfCount, t.BadIndices)
	} else {
		s += fmt.Sprintf(" range=[%.4f, %.4f]", t.MinValue, t.MaxValue)
	}
	return s
}

// ScanTensor checks for NaN/Inf and collects value statistics.
func ScanTensor(t *Tensor) *TensorInfo {
	if t == nil {
		return nil
	}

	info := &TensorInfo{
		Shape:      t.shape,
		Size:       len(t.data),
		MinValue:   math.Inf(1),
		MaxValue:   math.Inf(-1),
		BadIndices: make([]int, 0, 10),
	}

	for i, raw := range t.data {
		v := float64(raw)
		if math.IsNaN(v) {
			info.NaNCount++
			if len(info.BadIndices) < 10 {
				info.BadIndices = append(info.BadIndices, i)
			}
		} else if math.IsInf(v, 0) {
			info.InfCount++
			if len(info.BadIndices) < 10 {
				info.BadIndices = append(info.BadIndices, i)
			}
		} else {
			if v < info.MinValue {
				info.MinValue = v
			}
			if v > info.MaxValue {
				info.MaxValue = v
			}
		}
	}

	if math.IsInf(info.MinValue, 1) {
		info.MinValue = 0
	}
	if math.IsInf(info.MaxValue, -1) {
		info.MaxValue = 0
	}

	return info
}

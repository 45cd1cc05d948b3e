package plexus

// Fixed dataset geometry: 28x28 grayscale digits, ten classes.
const (
	ImageSize     = 28
	ImageChannels = 1
	NumClasses    = 10
)

// PreprocessImages converts raw byte images into an NHWC float32 tensor of
// shape (N, rows, cols, 1) with values in [0, 1]. The input is never aliased
// or mutated. Images must be square 28x28; anything else is a DataError.
func PreprocessImages(images [][]byte, rows, cols int) (*Tensor, error) {
	if rows != cols {
		return nil, &DataError{Index: -1, Cause: "image shape is not square"}
	}
	if rows != ImageSize {
		return nil, &DataError{Index: -1, Cause: "image side must be 28 pixels"}
	}
	pixels := rows * cols
	out := NewTensor(len(images), rows, cols, ImageChannels)
	for i, img := range images {
		if len(img) != pixels {
			return nil, &DataError{Index: i, Cause: "image has wrong pixel count"}
		}
		base := i * pixels
		for p, v := range img {
			out.data[base+p] = float32(v) / 255.0
		}
	}
	return out, nil
}

// OneHot encodes integer class labels as (N, numClasses) one-hot rows.
// A label outside [0, numClasses) is a DataError.
func OneHot(labels []int, numClasses int) (*Tensor, error) {
	if numClasses <= 0 {
		return nil, &DataError{Index: -1, Cause: "numClasses must be positive"}
	}
	out := NewTensor(len(labels), numClasses)
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, &DataError{Index: i, Cause: "label out of range"}
		}
		out.data[i*numClasses+label] = 1.0
	}
	return out, nil
}

// DecodeOneHot recovers integer labels from one-hot (or probability) rows by
// argmax. Ties resolve to the lowest class index.
func DecodeOneHot(t *Tensor) ([]int, error) {
	if len(t.shape) != 2 {
		return nil, &DataError{Index: -1, Cause: "expected a rank-2 tensor of class rows"}
	}
	n := t.shape[0]
	classes := t.shape[1]
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		bestVal := t.data[i*classes]
		for j := 1; j < classes; j++ {
			if t.data[i*classes+j] > bestVal {
				bestVal = t.data[i*classes+j]
				best = j
			}
		}
		labels[i] = best
	}
	return labels, nil
}

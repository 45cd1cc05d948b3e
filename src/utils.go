package plexus

// getBatch copies samples [start, start+batchSize) into a fresh tensor.
// A short final batch is returned at its actual size.
func getBatch(data *Tensor, start, batchSize int) *Tensor {
	totalSamples := data.shape[0]
	end := start + batchSize
	if end > totalSamples {
		end = totalSamples
	}
	actualBatch := end - start

	batchShape := append([]int{actualBatch}, data.shape[1:]...)
	batch := NewTensor(batchShape...)

	elementsPerSample := data.Size() / totalSamples
	copy(batch.data, data.data[start*elementsPerSample:end*elementsPerSample])

	return batch
}

// gatherBatch copies the samples selected by indices into a fresh tensor,
// in index order. Used by the trainer so shuffling permutes an index slice
// instead of mutating caller data.
func gatherBatch(data *Tensor, indices []int) *Tensor {
	batchShape := append([]int{len(indices)}, data.shape[1:]...)
	batch := NewTensor(batchShape...)

	elementsPerSample := data.Size() / data.shape[0]
	for i, idx := range indices {
		copy(batch.data[i*elementsPerSample:(i+1)*elementsPerSample],
			data.data[idx*elementsPerSample:(idx+1)*elementsPerSample])
	}

	return batch
}

// splitData splits data into train and validation sets, validation last.
func splitData(inputs, targets *Tensor, valSplit float64) (*Tensor, *Tensor, *Tensor, *Tensor) {
	n := inputs.shape[0]
	valSize := int(float64(n) * valSplit)
	trainSize := n - valSize

	inputCols := inputs.Size() / n
	targetCols := targets.Size() / n

	trainInputs := NewTensor(append([]int{trainSize}, inputs.shape[1:]...)...)
	valInputs := NewTensor(append([]int{valSize}, inputs.shape[1:]...)...)
	trainTargets := NewTensor(append([]int{trainSize}, targets.shape[1:]...)...)
	valTargets := NewTensor(append([]int{valSize}, targets.shape[1:]...)...)

	copy(trainInputs.data, inputs.data[:trainSize*inputCols])
	copy(valInputs.data, inputs.data[trainSize*inputCols:])
	copy(trainTargets.data, targets.data[:trainSize*targetCols])
	copy(valTargets.data, targets.data[trainSize*targetCols:])

	return trainInputs, trainTargets, valInputs, valTargets
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package plexus

// Metric accumulates an evaluation statistic over batches.
type Metric interface {
	reset()
	update(pred, target *Tensor)
	result() float64
	name() string
}

// AccuracyMetric - fraction of samples whose predicted class (argmax of the
// output row) matches the target class (argmax of the one-hot row).
type AccuracyMetric struct {
	correct int
	total   int
}

func Accuracy() Metric {
	return &AccuracyMetric{}
}

func (a *AccuracyMetric) reset() {
	a.correct = 0
	a.total = 0
}

func (a *AccuracyMetric) update(pred, target *Tensor) {
	batchSize := pred.shape[0]
	numClasses := pred.shape[1]
	for i := 0; i < batchSize; i++ {
		predClass := 0
		best := pred.data[i*numClasses]
		for j := 1; j < numClasses; j++ {
			if pred.data[i*numClasses+j] > best {
				best = pred.data[i*numClasses+j]
				predClass = j
			}
		}
		targetClass := 0
		bestT := target.data[i*numClasses]
		for j := 1; j < numClasses; j++ {
			if target.data[i*numClasses+j] > bestT {
				bestT = target.data[i*numClasses+j]
				targetClass = j
			}
		}
		if predClass == targetClass {
			a.correct++
		}
		a.total++
	}
}

func (a *AccuracyMetric) result() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

func (a *AccuracyMetric) name() string { return "accuracy" }

package plexus

// Regularizer contributes a penalty to the loss and its gradient to the
// parameter gradients.
type Regularizer interface {
	loss(weights *Tensor) float64
	gradient(weights *Tensor, grad *Tensor)
	name() string
}

// L1Regularizer - Lasso regularization
type L1Regularizer struct {
	Lambda float64
}

func L1(lambda float64) Regularizer {
	return &L1Regularizer{Lambda: lambda}
}

func (l *L1Regularizer) loss(weights *Tensor) float64 {
	sum := 0.0
	for _, v := range weights.data {
		if v > 0 {
			sum += float64(v)
		} else {
			sum -= float64(v)
		}
	}
	return l.Lambda * sum
}

func (l *L1Regularizer) gradient(weights *Tensor, grad *Tensor) {
	for i, v := range weights.data {
		if v > 0 {
			grad.data[i] += float32(l.Lambda)
		} else if v < 0 {
			grad.data[i] -= float32(l.Lambda)
		}
	}
}

func (l *L1Regularizer) name() string { return "l1" }

// L2Regularizer - Ridge regularization
type L2Regularizer struct {
	Lambda float64
}

func L2(lambda float64) Regularizer {
	return &L2Regularizer{Lambda: lambda}
}

func (l *L2Regularizer) loss(weights *Tensor) float64 {
	sum := 0.0
	for _, v := range weights.data {
		sum += float64(v) * float64(v)
	}
	return 0.5 * l.Lambda * sum
}

func (l *L2Regularizer) gradient(weights *Tensor, grad *Tensor) {
	for i, v := range weights.data {
		grad.data[i] += float32(l.Lambda * float64(v))
	}
}

func (l *L2Regularizer) name() string { return "l2" }

// NoRegularizer - no regularization
type NoRegularizer struct{}

func NoReg() Regularizer { return &NoRegularizer{} }

func (n *NoRegularizer) loss(weights *Tensor) float64           { return 0 }
func (n *NoRegularizer) gradient(weights *Tensor, grad *Tensor) {}
func (n *NoRegularizer) name() string                           { return "none" }

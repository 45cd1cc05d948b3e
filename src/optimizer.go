package plexus

import "math"

// Optimizer mutates network parameters in place from supplied gradients.
// lr/setLR expose the step size so a Scheduler can adjust it per epoch.
type Optimizer interface {
	init(params []*Tensor)
	step(params []*Tensor, grads []*Tensor)
	lr() float64
	setLR(lr float64)
	name() string
}

// SGDOptimizer - Stochastic Gradient Descent
type SGDOptimizer struct {
	LR          float64
	Momentum    float64
	Dampening   float64
	WeightDecay float64
	Nesterov    bool
	velocities  []*Tensor
	initialized bool
}

type SGDConfig struct {
	LR          float64
	Momentum    float64
	Dampening   float64
	WeightDecay float64
	Nesterov    bool
}

func SGD(config SGDConfig) Optimizer {
	return &SGDOptimizer{
		LR:          config.LR,
		Momentum:    config.Momentum,
		Dampening:   config.Dampening,
		WeightDecay: config.WeightDecay,
		Nesterov:    config.Nesterov,
	}
}

func (s *SGDOptimizer) init(params []*Tensor) {
	s.velocities = make([]*Tensor, len(params))
	for i, p := range params {
		s.velocities[i] = NewTensor(p.shape...)
	}
	s.initialized = true
}

func (s *SGDOptimizer) step(params []*Tensor, grads []*Tensor) {
	if !s.initialized {
		s.init(params)
	}
	for i, p := range params {
		g := grads[i]
		v := s.velocities[i]

		for j := range p.data {
			grad := float64(g.data[j])
			if s.WeightDecay != 0 {
				grad += s.WeightDecay * float64(p.data[j])
			}
			if s.Momentum != 0 {
				vel := s.Momentum*float64(v.data[j]) + (1-s.Dampening)*grad
				v.data[j] = float32(vel)
				if s.Nesterov {
					grad = grad + s.Momentum*vel
				} else {
					grad = vel
				}
			}
			p.data[j] = float32(float64(p.data[j]) - s.LR*grad)
		}
	}
}

func (s *SGDOptimizer) lr() float64      { return s.LR }
func (s *SGDOptimizer) setLR(lr float64) { s.LR = lr }
func (s *SGDOptimizer) name() string     { return "sgd" }

// AdamOptimizer - Adaptive Moment Estimation
type AdamOptimizer struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
	AMSGrad     bool
	m           []*Tensor
	v           []*Tensor
	vMax        []*Tensor
	t           int
	initialized bool
}

type AdamConfig struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
	AMSGrad     bool
}

func Adam(config AdamConfig) Optimizer {
	return &AdamOptimizer{
		LR:          config.LR,
		Beta1:       config.Beta1,
		Beta2:       config.Beta2,
		Epsilon:     config.Epsilon,
		WeightDecay: config.WeightDecay,
		AMSGrad:     config.AMSGrad,
	}
}

func (a *AdamOptimizer) init(params []*Tensor) {
	a.m = make([]*Tensor, len(params))
	a.v = make([]*Tensor, len(params))
	if a.AMSGrad {
		a.vMax = make([]*Tensor, len(params))
	}
	for i, p := range params {
		a.m[i] = NewTensor(p.shape...)
		a.v[i] = NewTensor(p.shape...)
		if a.AMSGrad {
			a.vMax[i] = NewTensor(p.shape...)
		}
	}
	a.t = 0
	a.initialized = true
}

func (a *AdamOptimizer) step(params []*Tensor, grads []*Tensor) {
	if !a.initialized {
		a.init(params)
	}
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range params {
		g := grads[i]
		m := a.m[i]
		v := a.v[i]

		for j := range p.data {
			grad := float64(g.data[j])
			if a.WeightDecay != 0 {
				grad += a.WeightDecay * float64(p.data[j])
			}
			mNew := a.Beta1*float64(m.data[j]) + (1-a.Beta1)*grad
			vNew := a.Beta2*float64(v.data[j]) + (1-a.Beta2)*grad*grad
			m.data[j] = float32(mNew)
			v.data[j] = float32(vNew)

			mHat := mNew / bc1
			vHat := vNew / bc2

			if a.AMSGrad {
				if vHat > float64(a.vMax[i].data[j]) {
					a.vMax[i].data[j] = float32(vHat)
				}
				vHat = float64(a.vMax[i].data[j])
			}

			p.data[j] = float32(float64(p.data[j]) - a.LR*mHat/(math.Sqrt(vHat)+a.Epsilon))
		}
	}
}

func (a *AdamOptimizer) lr() float64      { return a.LR }
func (a *AdamOptimizer) setLR(lr float64) { a.LR = lr }
func (a *AdamOptimizer) name() string     { return "adam" }

// RMSpropOptimizer
type RMSpropOptimizer struct {
	LR          float64
	Alpha       float64
	Epsilon     float64
	WeightDecay float64
	Momentum    float64
	Centered    bool
	v           []*Tensor
	g           []*Tensor
	buf         []*Tensor
	initialized bool
}

type RMSpropConfig struct {
	LR          float64
	Alpha       float64
	Epsilon     float64
	WeightDecay float64
	Momentum    float64
	Centered    bool
}

func RMSprop(config RMSpropConfig) Optimizer {
	return &RMSpropOptimizer{
		LR:          config.LR,
		Alpha:       config.Alpha,
		Epsilon:     config.Epsilon,
		WeightDecay: config.WeightDecay,
		Momentum:    config.Momentum,
		Centered:    config.Centered,
	}
}

func (r *RMSpropOptimizer) init(params []*Tensor) {
	r.v = make([]*Tensor, len(params))
	r.buf = make([]*Tensor, len(params))
	if r.Centered {
		r.g = make([]*Tensor, len(params))
	}
	for i, p := range params {
		r.v[i] = NewTensor(p.shape...)
		r.buf[i] = NewTensor(p.shape...)
		if r.Centered {
			r.g[i] = NewTensor(p.shape...)
		}
	}
	r.initialized = true
}

func (r *RMSpropOptimizer) step(params []*Tensor, grads []*Tensor) {
	if !r.initialized {
		r.init(params)
	}

	for i, p := range params {
		grad := grads[i]
		v := r.v[i]
		buf := r.buf[i]

		for j := range p.data {
			g := float64(grad.data[j])
			if r.WeightDecay != 0 {
				g += r.WeightDecay * float64(p.data[j])
			}

			vNew := r.Alpha*float64(v.data[j]) + (1-r.Alpha)*g*g
			v.data[j] = float32(vNew)

			avg := vNew
			if r.Centered {
				gAvg := r.Alpha*float64(r.g[i].data[j]) + (1-r.Alpha)*g
				r.g[i].data[j] = float32(gAvg)
				avg = vNew - gAvg*gAvg
			}

			if r.Momentum > 0 {
				b := r.Momentum*float64(buf.data[j]) + g/(math.Sqrt(avg)+r.Epsilon)
				buf.data[j] = float32(b)
				p.data[j] = float32(float64(p.data[j]) - r.LR*b)
			} else {
				p.data[j] = float32(float64(p.data[j]) - r.LR*g/(math.Sqrt(avg)+r.Epsilon))
			}
		}
	}
}

func (r *RMSpropOptimizer) lr() float64      { return r.LR }
func (r *RMSpropOptimizer) setLR(lr float64) { r.LR = lr }
func (r *RMSpropOptimizer) name() string     { return "rmsprop" }

// AdadeltaOptimizer - adapts per-parameter step sizes from moving averages
// of squared gradients and squared updates. The classic optimizer for this
// pipeline; with LR 1.0 it needs no tuned learning rate.
type AdadeltaOptimizer struct {
	LR          float64
	Rho         float64
	Epsilon     float64
	WeightDecay float64
	avgSq       []*Tensor
	avgDelta    []*Tensor
	initialized bool
}

type AdadeltaConfig struct {
	LR          float64
	Rho         float64
	Epsilon     float64
	WeightDecay float64
}

func Adadelta(config AdadeltaConfig) Optimizer {
	return &AdadeltaOptimizer{
		LR:          config.LR,
		Rho:         config.Rho,
		Epsilon:     config.Epsilon,
		WeightDecay: config.WeightDecay,
	}
}

func (a *AdadeltaOptimizer) init(params []*Tensor) {
	a.avgSq = make([]*Tensor, len(params))
	a.avgDelta = make([]*Tensor, len(params))
	for i, p := range params {
		a.avgSq[i] = NewTensor(p.shape...)
		a.avgDelta[i] = NewTensor(p.shape...)
	}
	a.initialized = true
}

func (a *AdadeltaOptimizer) step(params []*Tensor, grads []*Tensor) {
	if !a.initialized {
		a.init(params)
	}

	for i, p := range params {
		g := grads[i]
		sq := a.avgSq[i]
		dl := a.avgDelta[i]

		for j := range p.data {
			grad := float64(g.data[j])
			if a.WeightDecay != 0 {
				grad += a.WeightDecay * float64(p.data[j])
			}

			sqNew := a.Rho*float64(sq.data[j]) + (1-a.Rho)*grad*grad
			sq.data[j] = float32(sqNew)

			delta := math.Sqrt(float64(dl.data[j])+a.Epsilon) / math.Sqrt(sqNew+a.Epsilon) * grad
			dl.data[j] = float32(a.Rho*float64(dl.data[j]) + (1-a.Rho)*delta*delta)

			p.data[j] = float32(float64(p.data[j]) - a.LR*delta)
		}
	}
}

func (a *AdadeltaOptimizer) lr() float64      { return a.LR }
func (a *AdadeltaOptimizer) setLR(lr float64) { a.LR = lr }
func (a *AdadeltaOptimizer) name() string     { return "adadelta" }

package plexus

import "math"

// Scheduler adjusts the optimizer learning rate at the start of each epoch.
type Scheduler interface {
	step(epoch int, currentLR float64) float64
	name() string
}

// StepDecayScheduler - drops LR by factor every N epochs
type StepDecayScheduler struct {
	InitialLR float64
	StepSize  int
	Gamma     float64
}

type StepDecayConfig struct {
	InitialLR float64
	StepSize  int
	Gamma     float64
}

func StepDecay(config StepDecayConfig) Scheduler {
	return &StepDecayScheduler{
		InitialLR: config.InitialLR,
		StepSize:  config.StepSize,
		Gamma:     config.Gamma,
	}
}

func (s *StepDecayScheduler) step(epoch int, currentLR float64) float64 {
	return s.InitialLR * math.Pow(s.Gamma, float64(epoch/s.StepSize))
}

func (s *StepDecayScheduler) name() string { return "step_decay" }

// ExponentialDecayScheduler - multiplies LR by gamma each epoch
type ExponentialDecayScheduler struct {
	Gamma float64
}

type ExponentialDecayConfig struct {
	Gamma float64
}

func ExponentialDecay(config ExponentialDecayConfig) Scheduler {
	return &ExponentialDecayScheduler{Gamma: config.Gamma}
}

func (e *ExponentialDecayScheduler) step(epoch int, currentLR float64) float64 {
	if epoch == 0 {
		return currentLR
	}
	return currentLR * e.Gamma
}

func (e *ExponentialDecayScheduler) name() string { return "exponential_decay" }

// CosineAnnealingScheduler - cosine annealing from EtaMax down to EtaMin
type CosineAnnealingScheduler struct {
	TMax   int
	EtaMin float64
	EtaMax float64
}

type CosineAnnealingConfig struct {
	TMax   int
	EtaMin float64
	EtaMax float64
}

func CosineAnnealing(config CosineAnnealingConfig) Scheduler {
	return &CosineAnnealingScheduler{
		TMax:   config.TMax,
		EtaMin: config.EtaMin,
		EtaMax: config.EtaMax,
	}
}

func (c *CosineAnnealingScheduler) step(epoch int, currentLR float64) float64 {
	return c.EtaMin + 0.5*(c.EtaMax-c.EtaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(c.TMax)))
}

func (c *CosineAnnealingScheduler) name() string { return "cosine_annealing" }

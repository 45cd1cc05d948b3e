package plexus

import "github.com/pkg/errors"

// NetworkConfig for network construction. The seed feeds the network's own
// random generator, used for weight initialization and dropout masks;
// nothing draws from process-global random state.
type NetworkConfig struct {
	Seed int64
}

// CompileConfig holds model compilation settings - ALL fields required
type CompileConfig struct {
	Optimizer    Optimizer
	Loss         Loss
	Metrics      []Metric
	Regularizer  Regularizer
	GradientClip GradientClipConfig
}

// GradientClipConfig for gradient clipping
type GradientClipConfig struct {
	Mode     string // "norm", "value", or "none"
	MaxNorm  float64
	MaxValue float64
}

// TrainConfig holds all training configuration - ALL fields required
type TrainConfig struct {
	Epochs          int
	BatchSize       int
	Shuffle         bool
	Seed            int64 // trainer's shuffle generator
	ValidationSplit float64
	Scheduler       Scheduler // nil for a constant learning rate
	Verbose         int
}

// ValidateTrainConfig checks all required fields are set
func ValidateTrainConfig(cfg TrainConfig) error {
	if cfg.Epochs <= 0 {
		return errors.Errorf("plexus: Epochs must be > 0, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return errors.Errorf("plexus: BatchSize must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.ValidationSplit < 0 || cfg.ValidationSplit >= 1 {
		return errors.Errorf("plexus: ValidationSplit must be in [0, 1), got %f", cfg.ValidationSplit)
	}
	return nil
}

// ValidateCompileConfig checks all required fields are set
func ValidateCompileConfig(cfg CompileConfig) error {
	if cfg.Optimizer == nil {
		return errors.New("plexus: Optimizer is required")
	}
	if cfg.Loss == nil {
		return errors.New("plexus: Loss is required")
	}
	if cfg.Regularizer == nil {
		return errors.New("plexus: Regularizer is required - use NoReg() if not needed")
	}
	switch cfg.GradientClip.Mode {
	case "none", "norm", "value":
	case "":
		return errors.New("plexus: GradientClip.Mode is required - use \"none\" if not needed")
	default:
		return errors.Errorf("plexus: GradientClip.Mode must be \"norm\", \"value\" or \"none\", got %q", cfg.GradientClip.Mode)
	}
	return nil
}

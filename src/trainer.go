package plexus

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

// Trainer drives mini-batch gradient descent over a fixed number of epochs.
// It owns its shuffle generator, seeded from TrainConfig.Seed, so two
// trainers with the same seed and network produce identical histories.
type Trainer struct {
	net *Network
	cfg TrainConfig
	rng *rand.Rand
}

// TrainResult holds training output.
type TrainResult struct {
	History      map[string][]float64
	FinalLoss    float64
	FinalMetrics map[string]float64
}

// NewTrainer creates a trainer for a compiled network.
func NewTrainer(net *Network, cfg TrainConfig) (*Trainer, error) {
	if net == nil || !net.compiled {
		return nil, errors.New("plexus: network must be compiled before training")
	}
	if err := ValidateTrainConfig(cfg); err != nil {
		return nil, err
	}
	return &Trainer{
		net: net,
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Fit trains for exactly cfg.Epochs epochs; there is no early stopping.
//
// Each epoch reshuffles an index permutation (the caller's tensors are never
// mutated), cuts it into batches of cfg.BatchSize (the final short batch
// included), and per batch runs forward, loss, backward, regularizer and
// clipping, then one optimizer step. A non-finite loss or gradient aborts
// with a DivergenceError naming the epoch and batch.
//
// ctx is checked at every batch boundary. On cancellation Fit returns
// ctx.Err() with parameters in the state left by the last completed batch,
// so an interrupted network remains usable.
func (t *Trainer) Fit(ctx context.Context, x, y *Tensor) (*TrainResult, error) {
	if err := t.net.checkInput(x); err != nil {
		return nil, err
	}
	if x.shape[0] == 0 {
		return nil, errors.New("plexus: no training data provided")
	}
	if x.shape[0] != y.shape[0] {
		return nil, errors.Errorf("plexus: inputs and targets must have same length, got %d and %d", x.shape[0], y.shape[0])
	}

	net := t.net
	cfg := t.cfg

	var trainX, trainY, valX, valY *Tensor
	if cfg.ValidationSplit > 0 {
		trainX, trainY, valX, valY = splitData(x, y, cfg.ValidationSplit)
	} else {
		trainX, trainY = x, y
	}

	trainSize := trainX.shape[0]
	numBatches := (trainSize + cfg.BatchSize - 1) / cfg.BatchSize

	perm := make([]int, trainSize)
	for i := range perm {
		perm[i] = i
	}

	params := net.parameters()
	grads := net.gradients()

	result := &TrainResult{
		History:      make(map[string][]float64),
		FinalMetrics: make(map[string]float64),
	}
	logs := make(map[string]float64)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if cfg.Scheduler != nil {
			net.optimizer.setLR(cfg.Scheduler.step(epoch, net.optimizer.lr()))
		}

		if cfg.Shuffle {
			t.rng.Shuffle(trainSize, func(i, j int) {
				perm[i], perm[j] = perm[j], perm[i]
			})
		}

		epochLoss := 0.0
		for _, m := range net.metrics {
			m.reset()
		}

		for batch := 0; batch < numBatches; batch++ {
			// Batch boundaries are safe interruption points: every
			// parameter update from previous batches is fully applied.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			start := batch * cfg.BatchSize
			end := minInt(start+cfg.BatchSize, trainSize)
			indices := perm[start:end]

			batchX := gatherBatch(trainX, indices)
			batchY := gatherBatch(trainY, indices)

			output, err := net.forward(batchX, true)
			if err != nil {
				return nil, err
			}

			batchLoss := net.loss.compute(output, batchY)
			for _, p := range params {
				batchLoss += net.regularizer.loss(p)
			}

			if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
				return nil, &DivergenceError{
					Epoch: epoch,
					Batch: batch,
					Where: "loss",
					Info:  ScanTensor(output),
				}
			}

			epochLoss += batchLoss
			for _, m := range net.metrics {
				m.update(output, batchY)
			}

			gradOutput := NewTensor(output.shape...)
			net.loss.gradient(output, batchY, gradOutput)
			if err := net.backward(gradOutput); err != nil {
				return nil, err
			}

			for _, layer := range net.layers {
				layerParams := layer.parameters()
				layerGrads := layer.gradients()
				for j := range layerParams {
					if layerGrads[j] != nil {
						net.regularizer.gradient(layerParams[j], layerGrads[j])
					}
				}
			}

			for _, g := range grads {
				if g != nil && !allFinite(g) {
					return nil, &DivergenceError{
						Epoch: epoch,
						Batch: batch,
						Where: "gradients",
						Info:  ScanTensor(g),
					}
				}
			}

			t.clipGradients(grads)

			net.optimizer.step(params, grads)
		}

		logs["loss"] = epochLoss / float64(numBatches)
		for _, m := range net.metrics {
			logs[m.name()] = m.result()
		}

		if valX != nil {
			valResults, err := net.Evaluate(valX, valY, cfg.BatchSize)
			if err != nil {
				return nil, err
			}
			for k, v := range valResults {
				logs["val_"+k] = v
			}
		}

		for k, v := range logs {
			result.History[k] = append(result.History[k], v)
		}

		if cfg.Verbose > 0 {
			t.logEpoch(epoch, logs)
		}
	}

	result.FinalLoss = logs["loss"]
	for _, m := range net.metrics {
		result.FinalMetrics[m.name()] = logs[m.name()]
	}

	return result, nil
}

func (t *Trainer) clipGradients(grads []*Tensor) {
	switch t.net.gradClip.Mode {
	case "norm":
		totalNorm := 0.0
		for _, g := range grads {
			if g != nil {
				norm := l2Norm(g)
				totalNorm += norm * norm
			}
		}
		totalNorm = math.Sqrt(totalNorm)
		if totalNorm > t.net.gradClip.MaxNorm {
			scale := t.net.gradClip.MaxNorm / totalNorm
			for _, g := range grads {
				if g != nil {
					mulScalar(g, scale)
				}
			}
		}
	case "value":
		limit := float32(t.net.gradClip.MaxValue)
		for _, g := range grads {
			if g != nil {
				clipTensor(g, -limit, limit)
			}
		}
	}
}

func (t *Trainer) logEpoch(epoch int, logs map[string]float64) {
	var b strings.Builder
	// Fixed key order so progress lines are stable and greppable.
	order := []string{"loss", "accuracy", "val_loss", "val_accuracy"}
	seen := make(map[string]bool)
	for _, k := range order {
		if v, ok := logs[k]; ok {
			fmt.Fprintf(&b, " %s=%.4f", k, v)
			seen[k] = true
		}
	}
	for k, v := range logs {
		if !seen[k] {
			fmt.Fprintf(&b, " %s=%.4f", k, v)
		}
	}
	log.Printf("epoch=%d/%d%s lr=%g", epoch+1, t.cfg.Epochs, b.String(), t.net.optimizer.lr())
}

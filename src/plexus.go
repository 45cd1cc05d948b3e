// Package plexus is a from-scratch convolutional network training core.
//
// It implements the forward/backward numerical pipeline of a small
// feed-forward convolutional classifier trained with mini-batch gradient
// descent: explicit per-layer backward functions instead of autodiff, an
// ordered layer stack, and fit/evaluate drivers. Every hyperparameter must
// be specified; there are no hidden defaults.
//
// Basic usage:
//
//	net, err := plexus.NewNetwork(plexus.NetworkConfig{Seed: 42}).
//		AddLayer(plexus.Conv2D(32, [2]int{3, 3}).
//			WithActivation(plexus.ReLU()).
//			WithInitializer(plexus.HeNormal(1.0)).
//			WithBiasInitializer(plexus.Zeros()).
//			WithBias(true).
//			Build()).
//		AddLayer(plexus.MaxPool2D([2]int{2, 2}).Build()).
//		AddLayer(plexus.Flatten().Build()).
//		AddLayer(plexus.Dense(10).
//			WithActivation(plexus.Softmax()).
//			WithInitializer(plexus.XavierNormal(1.0)).
//			WithBiasInitializer(plexus.Zeros()).
//			WithBias(true).
//			Build()).
//		Build([]int{28, 28, 1})
//
//	err = net.Compile(plexus.CompileConfig{
//		Optimizer: plexus.Adadelta(plexus.AdadeltaConfig{
//			LR:      1.0,
//			Rho:     0.95,
//			Epsilon: 1e-7,
//		}),
//		Loss:        plexus.CrossEntropy(plexus.CrossEntropyConfig{}),
//		Metrics:     []plexus.Metric{plexus.Accuracy()},
//		Regularizer: plexus.NoReg(),
//		GradientClip: plexus.GradientClipConfig{
//			Mode: "none",
//		},
//	})
//
//	trainer, err := plexus.NewTrainer(net, plexus.TrainConfig{
//		Epochs:    20,
//		BatchSize: 128,
//		Shuffle:   true,
//		Seed:      7,
//	})
//	result, err := trainer.Fit(ctx, images, labels)
//	metrics, err := net.Evaluate(testImages, testLabels, 128)
package plexus

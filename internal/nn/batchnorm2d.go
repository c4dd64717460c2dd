package nn

import (
	"fmt"
	"sync"

	"github.com/born-ml/brats/internal/tensor"
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] input.
//
// In training mode the batch mean and biased variance over N, H and W are used,
// and the running statistics are updated:
//
//	running_mean = (1 - momentum) * running_mean + momentum * batch_mean
//	running_var  = (1 - momentum) * running_var  + momentum * batch_var * n/(n-1)
//
// where n = N*H*W. Training mode needs n > 1 and panics otherwise. In evaluation mode the running statistics are used and the
// layer state is read-only, so concurrent Forward calls are safe.
//
// Weight starts at 1, bias at 0, running mean at 0 and running variance at 1.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32

	weight *Parameter[B] // gamma [C]
	bias   *Parameter[B] // beta [C]

	mu          sync.RWMutex
	runningMean *tensor.Tensor[float32, B]
	runningVar  *tensor.Tensor[float32, B]
	numBatches  int64
	training    bool

	backend B
}

// NewBatchNorm2D creates a batch normalization layer in training mode.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, eps, momentum float32, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}
	if eps <= 0 {
		panic(fmt.Sprintf("batchnorm2d: eps must be positive, got %g", eps))
	}
	if momentum < 0 || momentum > 1 {
		panic(fmt.Sprintf("batchnorm2d: momentum must be in [0, 1], got %g", momentum))
	}

	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         eps,
		momentum:    momentum,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		training:    true,
		backend:     backend,
	}
}

// Forward normalizes input with batch statistics (training) or running
// statistics (evaluation).
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	require4D("batchnorm2d", shape)
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	gamma, beta := bn.weight.Tensor().Raw(), bn.bias.Tensor().Raw()

	bn.mu.RLock()
	training := bn.training
	if !training {
		out := bn.backend.BatchNorm2D(input.Raw(), bn.runningMean.Raw(), bn.runningVar.Raw(), gamma, beta, bn.eps)
		bn.mu.RUnlock()
		return tensor.New[float32, B](out, bn.backend)
	}
	bn.mu.RUnlock()

	if n := shape[0] * shape[2] * shape[3]; n < 2 {
		panic(fmt.Sprintf("batchnorm2d: expected more than 1 value per channel when training, got input shape %v", shape))
	}
	mean, variance := bn.backend.ChannelMoments(input.Raw())
	out := bn.backend.BatchNorm2D(input.Raw(), mean, variance, gamma, beta, bn.eps)
	bn.updateRunningStats(mean.AsFloat32(), variance.AsFloat32(), shape[0]*shape[2]*shape[3])

	return tensor.New[float32, B](out, bn.backend)
}

func (bn *BatchNorm2D[B]) updateRunningStats(mean, variance []float32, n int) {
	correction := float32(1)
	if n > 1 {
		correction = float32(n) / float32(n-1)
	}
	m := bn.momentum

	bn.mu.Lock()
	defer bn.mu.Unlock()

	rm, rv := bn.runningMean.Data(), bn.runningVar.Data()
	for c := range rm {
		rm[c] = (1-m)*rm[c] + m*mean[c]
		rv[c] = (1-m)*rv[c] + m*variance[c]*correction
	}
	bn.numBatches++
}

// SetTraining switches between batch statistics (true) and running statistics (false).
func (bn *BatchNorm2D[B]) SetTraining(training bool) {
	bn.mu.Lock()
	bn.training = training
	bn.mu.Unlock()
}

// Training reports whether the layer is in training mode.
func (bn *BatchNorm2D[B]) Training() bool {
	bn.mu.RLock()
	defer bn.mu.RUnlock()
	return bn.training
}

// RunningMean returns a copy of the running mean.
func (bn *BatchNorm2D[B]) RunningMean() []float32 {
	bn.mu.RLock()
	defer bn.mu.RUnlock()
	return append([]float32(nil), bn.runningMean.Data()...)
}

// RunningVar returns a copy of the running variance.
func (bn *BatchNorm2D[B]) RunningVar() []float32 {
	bn.mu.RLock()
	defer bn.mu.RUnlock()
	return append([]float32(nil), bn.runningVar.Data()...)
}

// NumBatchesTracked returns how many training-mode batches updated the running statistics.
func (bn *BatchNorm2D[B]) NumBatchesTracked() int64 {
	bn.mu.RLock()
	defer bn.mu.RUnlock()
	return bn.numBatches
}

// Parameters returns weight (gamma) and bias (beta). Running statistics are
// buffers and are not included.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// StateDict returns weight, bias, running_mean and running_var.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	bn.mu.RLock()
	defer bn.mu.RUnlock()
	return map[string]*tensor.RawTensor{
		"weight":       bn.weight.Tensor().Raw(),
		"bias":         bn.bias.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw().Clone(),
		"running_var":  bn.runningVar.Raw().Clone(),
	}
}

// LoadStateDict copies weight, bias and both running statistics.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, p := range bn.Parameters() {
		if err := p.Load(stateDict[p.Name()]); err != nil {
			return fmt.Errorf("batchnorm2d: %w", err)
		}
	}

	bn.mu.Lock()
	defer bn.mu.Unlock()
	if err := copyInto("running_mean", bn.runningMean.Raw(), stateDict["running_mean"]); err != nil {
		return fmt.Errorf("batchnorm2d: %w", err)
	}
	if err := copyInto("running_var", bn.runningVar.Raw(), stateDict["running_var"]); err != nil {
		return fmt.Errorf("batchnorm2d: %w", err)
	}
	return nil
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}

// NumFeatures returns the channel count.
func (bn *BatchNorm2D[B]) NumFeatures() int {
	return bn.numFeatures
}

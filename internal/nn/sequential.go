package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/brats/internal/tensor"
)

// Sequential chains modules: each module's output becomes the next one's input.
//
//	block := nn.NewSequential[B](
//	    nn.NewConv2D(4, 16, 3, 3, 1, 1, false, backend),
//	    nn.NewBatchNorm2D(16, 1e-5, 0.1, backend),
//	    nn.NewReLU[B](),
//	)
//	output := block.Forward(input)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns the parameters of all modules in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// SetTraining propagates the mode to every child that has one.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, module := range s.modules {
		SetTraining(module, training)
	}
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic(fmt.Sprintf("sequential: module index %d out of range [0, %d)", index, len(s.modules)))
	}
	return s.modules[index]
}

// StateDict returns the state of every child, keyed by "<index>.<name>".
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, module := range s.modules {
		for name, raw := range WithPrefix(fmt.Sprint(i), module.StateDict()) {
			stateDict[name] = raw
		}
	}
	return stateDict
}

// LoadStateDict loads each child from its "<index>." entries.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, module := range s.modules {
		if err := module.LoadStateDict(SubDict(fmt.Sprint(i), stateDict)); err != nil {
			return fmt.Errorf("failed to load module %d: %w", i, err)
		}
	}
	return nil
}

// String lists the children one per line.
func (s *Sequential[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(\n")
	for i, module := range s.modules {
		fmt.Fprintf(&sb, "  (%d): %v\n", i, module)
	}
	sb.WriteString(")")
	return sb.String()
}

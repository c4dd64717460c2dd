package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/brats/internal/tensor"
)

func TestNew(t *testing.T) {
	backend := New()

	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
	assert.GreaterOrEqual(t, backend.Workers(), 1)
}

func TestWithWorkers(t *testing.T) {
	assert.Equal(t, 1, New(WithWorkers(1)).Workers())
	assert.Equal(t, 3, New(WithWorkers(3)).Workers())
}

func TestDetectFeatures(t *testing.T) {
	f := DetectFeatures()

	assert.NotEmpty(t, f.Brand)
	assert.Contains(t, f.String(), f.Brand)
}

var _ tensor.Backend = (*CPUBackend)(nil)

// Package cpu implements tensor.Backend in pure Go.
//
// Convolutions use im2col followed by a blocked dot-product loop; per-feature-map
// work is spread across goroutines with the parallel package.
package cpu

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/born-ml/brats/internal/parallel"
	"github.com/born-ml/brats/internal/tensor"
)

// CPUBackend runs every kernel on the host CPU.
type CPUBackend struct {
	device tensor.Device
	fine   parallel.Config
	coarse parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithWorkers caps the number of goroutines a single kernel call may use.
// n <= 0 keeps the detected default.
func WithWorkers(n int) Option {
	return func(cpu *CPUBackend) {
		cpu.fine = cpu.fine.WithWorkers(n)
		cpu.coarse = cpu.coarse.WithWorkers(n)
	}
}

// New creates a CPU backend using all detected hardware threads.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device: tensor.CPU,
		fine:   parallel.DefaultConfig(),
		coarse: parallel.CoarseConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns tensor.CPU.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the goroutine cap used for per-feature-map kernels.
func (cpu *CPUBackend) Workers() int {
	if !cpu.coarse.Enabled {
		return 1
	}
	return cpu.coarse.NumWorkers
}

// Features describes the host processor as detected at startup.
type Features struct {
	Brand          string
	PhysicalCores  int
	LogicalCores   int
	ThreadsPerCore int
	SIMD           []string
}

// String formats the features on one line.
func (f Features) String() string {
	simd := "none"
	if len(f.SIMD) > 0 {
		simd = strings.Join(f.SIMD, ",")
	}
	return fmt.Sprintf("%s (%d cores, %d threads, simd=%s)", f.Brand, f.PhysicalCores, f.LogicalCores, simd)
}

var simdFeatures = []struct {
	name string
	id   cpuid.FeatureID
}{
	{"sse4", cpuid.SSE4},
	{"avx", cpuid.AVX},
	{"avx2", cpuid.AVX2},
	{"fma3", cpuid.FMA3},
	{"avx512f", cpuid.AVX512F},
	{"asimd", cpuid.ASIMD},
}

// DetectFeatures reports the processor brand, core counts and the SIMD
// extensions relevant to float32 kernels.
func DetectFeatures() Features {
	f := Features{
		Brand:          cpuid.CPU.BrandName,
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		ThreadsPerCore: cpuid.CPU.ThreadsPerCore,
	}
	if f.Brand == "" {
		f.Brand = "unknown"
	}
	for _, s := range simdFeatures {
		if cpuid.CPU.Supports(s.id) {
			f.SIMD = append(f.SIMD, s.name)
		}
	}
	return f
}

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create output tensor: %v", op, err))
	}
	return out
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (float32 only)", op, t.DType()))
		}
	}
}

func require4D(op, what string, t *tensor.RawTensor) {
	if len(t.Shape()) != 4 {
		panic(fmt.Sprintf("%s: %s must be 4D, got %dD %v", op, what, len(t.Shape()), t.Shape()))
	}
}

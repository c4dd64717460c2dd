package unet

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/internal/backend/cpu"
	"github.com/born-ml/brats/internal/nn"
	"github.com/born-ml/brats/internal/tensor"
)

type backend = *cpu.CPUBackend

func smallConfig(features int) Config {
	cfg := DefaultConfig()
	cfg.Features = features
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"in channels", func(c *Config) { c.InChannels = 0 }},
		{"out channels", func(c *Config) { c.OutChannels = -1 }},
		{"features", func(c *Config) { c.Features = 0 }},
		{"eps", func(c *Config) { c.BatchNormEps = 0 }},
		{"momentum", func(c *Config) { c.BatchNormMomentum = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

			_, err := New(cfg, cpu.New())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestMustNew_PanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() { MustNew(Config{}, cpu.New()) })
}

func TestDoubleConv_Layout(t *testing.T) {
	b := cpu.New()
	block := DoubleConv(4, 16, DefaultConfig(), b)

	require.Equal(t, 6, block.Len())
	conv1 := block.Module(0).(*nn.Conv2D[backend])
	conv2 := block.Module(3).(*nn.Conv2D[backend])
	assert.Equal(t, 4, conv1.InChannels())
	assert.Equal(t, 16, conv1.OutChannels())
	assert.Nil(t, conv1.Bias())
	assert.Equal(t, 16, conv2.InChannels())
	assert.IsType(t, &nn.BatchNorm2D[backend]{}, block.Module(1))
	assert.IsType(t, &nn.ReLU[backend]{}, block.Module(5))

	out := block.Forward(tensor.Randn(tensor.Shape{1, 4, 8, 8}, nil, b))
	assert.Equal(t, tensor.Shape{1, 16, 8, 8}, out.Shape())
}

func TestForward_OutputShape(t *testing.T) {
	b := cpu.New()

	tests := []struct {
		features, batch int
	}{
		{4, 1},
		{4, 3},
		{8, 2},
		{16, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("features=%d/batch=%d", tt.features, tt.batch), func(t *testing.T) {
			u := MustNew(smallConfig(tt.features), b, WithSeed(1))
			x := tensor.Randn(tensor.Shape{tt.batch, 4, 64, 64}, nil, b)

			out := u.Forward(x)

			assert.Equal(t, tensor.Shape{tt.batch, 3, 64, 64}, out.Shape())
			for _, v := range out.Data() {
				require.False(t, math.IsNaN(float64(v)))
			}
		})
	}
}

func TestForward_NonSquareInput(t *testing.T) {
	b := cpu.New()
	u := MustNew(smallConfig(2), b)

	out := u.Forward(tensor.Zeros[float32](tensor.Shape{1, 4, 16, 40}, b))

	assert.Equal(t, tensor.Shape{1, 3, 16, 40}, out.Shape())
}

func TestForward_SpatialSizeNotDivisibleBy8(t *testing.T) {
	b := cpu.New()
	u := MustNew(smallConfig(4), b)
	x := tensor.Zeros[float32](tensor.Shape{2, 4, 65, 65}, b)

	assert.Panics(t, func() { u.Forward(x) })

	func() {
		defer func() {
			r := recover()
			err, ok := r.(error)
			require.True(t, ok, "panic value should be an error, got %T", r)
			assert.ErrorIs(t, err, ErrSpatialSize)
		}()
		u.Forward(x)
	}()

	out, err := u.Run(x)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrSpatialSize)
}

func TestForward_TrainingSingleBottleneckValue(t *testing.T) {
	b := cpu.New()
	u := MustNew(smallConfig(2), b)
	x := tensor.Zeros[float32](tensor.Shape{1, 4, 8, 8}, b)

	out, err := u.Run(x)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrSingleValue)
	assert.Panics(t, func() { u.Forward(x) })

	// Two samples give two bottleneck values per channel.
	out, err = u.Run(tensor.Zeros[float32](tensor.Shape{2, 4, 8, 8}, b))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 8, 8}, out.Shape())

	u.Eval()
	out, err = u.Run(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 8, 8}, out.Shape())
}

func TestValidateInput(t *testing.T) {
	u := MustNew(smallConfig(2), cpu.New())

	tests := []struct {
		shape tensor.Shape
		want  error
	}{
		{tensor.Shape{1, 4, 64, 64}, nil},
		{tensor.Shape{3, 4, 8, 24}, nil},
		{tensor.Shape{4, 64, 64}, ErrInputRank},
		{tensor.Shape{0, 4, 64, 64}, ErrInputRank},
		{tensor.Shape{1, 3, 64, 64}, ErrInputChannels},
		{tensor.Shape{1, 4, 65, 65}, ErrSpatialSize},
		{tensor.Shape{1, 4, 64, 60}, ErrSpatialSize},
		{tensor.Shape{1, 4, 0, 64}, ErrSpatialSize},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.shape), func(t *testing.T) {
			err := u.ValidateInput(tt.shape)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDecoderInChannels(t *testing.T) {
	for _, f := range []int{1, 4, 16, 32} {
		u := MustNew(smallConfig(f), cpu.New())
		w := u.Config().StageWidths()

		got := u.DecoderInChannels()

		// upsampled channels + skip channels, both equal to the stage width
		assert.Equal(t, [3]int{w[2] + w[2], w[1] + w[1], w[0] + w[0]}, got)
		assert.Equal(t, [3]int{8 * f, 4 * f, 2 * f}, got)
		assert.Equal(t, w[2], u.upconv3.OutChannels())
		assert.Equal(t, w[1], u.upconv2.OutChannels())
		assert.Equal(t, w[0], u.upconv1.OutChannels())
	}
}

func doubleConvParams(in, out int) int {
	return 9*in*out + 9*out*out + 4*out
}

func TestNumParameters(t *testing.T) {
	u := MustNew(DefaultConfig(), cpu.New())

	assert.Equal(t, 482915, u.NumParameters())

	f := 8
	small := MustNew(smallConfig(f), cpu.New())
	want := doubleConvParams(4, f) + doubleConvParams(f, 2*f) + doubleConvParams(2*f, 4*f) +
		doubleConvParams(4*f, 8*f) +
		8*f*4*f*4 + 4*f + doubleConvParams(8*f, 4*f) +
		4*f*2*f*4 + 2*f + doubleConvParams(4*f, 2*f) +
		2*f*f*4 + f + doubleConvParams(2*f, f) +
		f*3 + 3
	assert.Equal(t, want, small.NumParameters())
}

func TestNamedParameters(t *testing.T) {
	u := MustNew(smallConfig(2), cpu.New())
	named := u.NamedParameters()

	require.Len(t, named, len(u.Parameters()))
	assert.Equal(t, "encoder1.0.weight", named[0].Name)
	assert.Equal(t, "encoder1.1.weight", named[1].Name)
	assert.Equal(t, "encoder1.1.bias", named[2].Name)
	assert.Equal(t, "conv.bias", named[len(named)-1].Name)

	names := map[string]bool{}
	for _, np := range named {
		assert.False(t, names[np.Name], "duplicate %s", np.Name)
		names[np.Name] = true
	}
	assert.True(t, names["upconv3.weight"])
	assert.True(t, names["decoder1.3.weight"])
}

func TestTrainEval(t *testing.T) {
	b := cpu.New()
	u := MustNew(smallConfig(2), b)
	assert.True(t, u.Training())

	bn := u.encoder1.Module(1).(*nn.BatchNorm2D[backend])
	x := tensor.Randn(tensor.Shape{2, 4, 16, 16}, nil, b)

	u.Forward(x)
	assert.Equal(t, int64(1), bn.NumBatchesTracked())

	u.Eval()
	assert.False(t, u.Training())
	assert.False(t, bn.Training())
	u.Forward(x)
	assert.Equal(t, int64(1), bn.NumBatchesTracked(), "eval must not update running stats")

	u.Train()
	assert.True(t, bn.Training())
}

func TestEval_DeterministicAndConcurrent(t *testing.T) {
	b := cpu.New()
	u := MustNew(smallConfig(4), b, WithSeed(3))
	u.Eval()
	x := tensor.Randn(tensor.Shape{1, 4, 32, 32}, nil, b)

	want := u.Forward(x).Data()

	var wg sync.WaitGroup
	results := make([][]float32, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = u.Forward(x).Data()
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestWithSeed_Reproducible(t *testing.T) {
	b := cpu.New()
	a := MustNew(smallConfig(2), b, WithSeed(42))
	c := MustNew(smallConfig(2), b, WithSeed(42))

	pa, pc := a.Parameters(), c.Parameters()
	require.Len(t, pc, len(pa))
	for i := range pa {
		assert.Equal(t, pa[i].Tensor().Data(), pc[i].Tensor().Data())
	}
}

func TestStateDictRoundTrip(t *testing.T) {
	b := cpu.New()
	src := MustNew(smallConfig(2), b, WithSeed(1))
	src.Forward(tensor.Randn(tensor.Shape{2, 4, 8, 8}, nil, b))
	src.Eval()

	dst := MustNew(smallConfig(2), b, WithSeed(2))
	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	dst.Eval()

	x := tensor.Randn(tensor.Shape{1, 4, 16, 16}, nil, b)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())

	sd := src.StateDict()
	assert.Contains(t, sd, "decoder2.4.running_var")
	delete(sd, "conv.weight")
	assert.ErrorContains(t, dst.LoadStateDict(sd), "conv")
}

func TestString(t *testing.T) {
	u := MustNew(DefaultConfig(), cpu.New())
	s := u.String()

	assert.Contains(t, s, "UNet(in_channels=4, out_channels=3, features=16)")
	assert.Contains(t, s, "bottleneck: DoubleConv(64 -> 128)")
	assert.Contains(t, s, "DoubleConv(128 -> 64)")
	assert.Contains(t, s, "parameters: 482915")
}

var _ nn.Module[backend] = (*UNet[backend])(nil)

package dataset_test

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/brats/internal/backend/cpu"
	"github.com/born-ml/brats/internal/dataset"
	"github.com/born-ml/brats/internal/serialization"
	"github.com/born-ml/brats/internal/tensor"
)

func rawOf[T tensor.DType](t *testing.T, shape tensor.Shape, dt tensor.DataType, fill func(i int) T) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, dt, tensor.CPU)
	require.NoError(t, err)
	data := tensor.New[T](raw, cpu.New()).Data()
	for i := range data {
		data[i] = fill(i)
	}
	return raw
}

// constantImage has channel c filled with c+1 everywhere.
func constantImage(t *testing.T, h, w int) *tensor.RawTensor {
	return rawOf(t, tensor.Shape{h, w, 4}, tensor.Float32, func(i int) float32 {
		return float32(i%4 + 1)
	})
}

// checkerMask sets mask[y, x, k] = (y + x + k) % 2.
func checkerMask(t *testing.T, h, w int) *tensor.RawTensor {
	return rawOf(t, tensor.Shape{h, w, 3}, tensor.Uint8, func(i int) uint8 {
		k := i % 3
		x := (i / 3) % w
		y := i / (3 * w)
		return uint8((y + x + k) % 2)
	})
}

func writeSample(t *testing.T, dir, name string, image, mask *tensor.RawTensor) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, serialization.WriteSample(path, image, mask, nil))
	return path
}

func TestGet_ConstantChannelsAndCheckerboard(t *testing.T) {
	const h, w = 8, 6
	dir := t.TempDir()

	for _, name := range []string{"slice.safetensors", "slice.npz"} {
		t.Run(name, func(t *testing.T) {
			path := writeSample(t, dir, name, constantImage(t, h, w), checkerMask(t, h, w))
			ds := dataset.New([]string{path}, cpu.New())
			require.Equal(t, 1, ds.Len())

			image, mask, err := ds.Get(0)
			require.NoError(t, err)

			assert.Equal(t, tensor.Shape{4, h, w}, image.Shape())
			assert.Equal(t, tensor.Shape{3, h, w}, mask.Shape())
			for _, v := range image.Data() {
				require.Zero(t, v)
			}

			for k := range 3 {
				for y := range h {
					for x := range w {
						assert.Equal(t, float32((y+x+k)%2), mask.At(k, y, x), "mask[%d,%d,%d]", k, y, x)
					}
				}
			}
		})
	}
}

func TestGet_NormalizesEachChannel(t *testing.T) {
	const h, w = 16, 16
	rng := rand.New(rand.NewSource(7))
	scale := []float32{1, 10, 250, 0.01}
	image := rawOf(t, tensor.Shape{h, w, 4}, tensor.Float32, func(i int) float32 {
		c := i % 4
		return 100*float32(c) + scale[c]*float32(rng.NormFloat64())
	})
	path := writeSample(t, t.TempDir(), "rand.safetensors", image, checkerMask(t, h, w))

	ds := dataset.New([]string{path}, cpu.New())
	img, _, err := ds.Get(0)
	require.NoError(t, err)

	means, stds := dataset.ChannelStats(img.Data(), 4, h*w)
	for c := range 4 {
		assert.InDelta(t, 0, means[c], 1e-5, "channel %d mean", c)
		assert.InDelta(t, 1, stds[c], 1e-4, "channel %d std", c)
	}

	// Channel 0 at (y, x) must keep its position after the transpose.
	raw := image.AsFloat32()
	src := make([]float32, h*w)
	for i := range src {
		src[i] = raw[4*i]
	}
	m, s := dataset.ChannelStats(src, 1, h*w)
	assert.InDelta(t, float64(src[3*w+5])-m[0], float64(img.At(0, 3, 5))*s[0], 1e-3)
}

func TestGet_CastsStoredDTypes(t *testing.T) {
	const h, w = 4, 4
	image := rawOf(t, tensor.Shape{h, w, 4}, tensor.Uint8, func(i int) uint8 {
		return uint8(i % 4 * 10)
	})
	mask := rawOf(t, tensor.Shape{h, w, 3}, tensor.Bool, func(i int) bool {
		return i%3 == 1
	})
	path := writeSample(t, t.TempDir(), "ints.npz", image, mask)

	img, msk, err := dataset.New([]string{path}, cpu.New()).Get(0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, img.DType())
	for _, v := range img.Data() {
		assert.Zero(t, v)
	}
	for y := range h {
		for x := range w {
			assert.Equal(t, []float32{0, 1, 0}, []float32{msk.At(0, y, x), msk.At(1, y, x), msk.At(2, y, x)})
		}
	}
}

func TestGet_IndexOutOfRange(t *testing.T) {
	ds := dataset.New([]string{"a.npz", "b.npz"}, cpu.New())

	for _, idx := range []int{-1, 2, 100} {
		_, _, err := ds.Get(idx)
		assert.ErrorIs(t, err, dataset.ErrIndexOutOfRange, "idx %d", idx)

		_, err = ds.Path(idx)
		assert.ErrorIs(t, err, dataset.ErrIndexOutOfRange)
	}

	p, err := ds.Path(1)
	require.NoError(t, err)
	assert.Equal(t, "b.npz", p)
}

func TestGet_BadLayout(t *testing.T) {
	dir := t.TempDir()
	f32 := func(shape tensor.Shape) *tensor.RawTensor {
		return rawOf(t, shape, tensor.Float32, func(int) float32 { return 1 })
	}

	tests := []struct {
		name        string
		image, mask tensor.Shape
	}{
		{"image rank 2", tensor.Shape{8, 8}, tensor.Shape{8, 8, 3}},
		{"mask rank 4", tensor.Shape{8, 8, 4}, tensor.Shape{1, 8, 8, 3}},
		{"image channels", tensor.Shape{8, 8, 3}, tensor.Shape{8, 8, 3}},
		{"mask channels", tensor.Shape{8, 8, 4}, tensor.Shape{8, 8, 4}},
		{"spatial mismatch", tensor.Shape{8, 8, 4}, tensor.Shape{8, 6, 3}},
		{"channel-first on disk", tensor.Shape{4, 8, 8}, tensor.Shape{3, 8, 8}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSample(t, dir, tt.name+".safetensors", f32(tt.image), f32(tt.mask))
			ds := dataset.New([]string{"unused", path}, cpu.New())

			_, _, err := ds.Get(1)
			require.Error(t, err, "case %d", i)
			assert.ErrorIs(t, err, dataset.ErrBadLayout)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestGet_StorageErrors(t *testing.T) {
	dir := t.TempDir()

	imageOnly := filepath.Join(dir, "image_only.npz")
	require.NoError(t, serialization.WriteNPZ(imageOnly, map[string]*tensor.RawTensor{
		"image": constantImage(t, 8, 8),
	}))

	ds := dataset.New([]string{
		filepath.Join(dir, "absent.safetensors"),
		imageOnly,
		filepath.Join(dir, "slice.h5"),
	}, cpu.New())

	_, _, err := ds.Get(0)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = ds.Get(1)
	assert.ErrorIs(t, err, serialization.ErrMissingArray)

	_, _, err = ds.Get(2)
	assert.ErrorIs(t, err, serialization.ErrUnsupportedFormat)
}

func TestGet_CorruptShapeReturnsError(t *testing.T) {
	// Both shapes wrap to zero bytes when multiplied without overflow checks.
	header, err := json.Marshal(map[string]any{
		"image": map[string]any{"dtype": "F32", "shape": []int{1 << 62, 4, 4}, "data_offsets": []int{0, 0}},
		"mask":  map[string]any{"dtype": "F32", "shape": []int{1 << 62, 4, 3}, "data_offsets": []int{0, 0}},
	})
	require.NoError(t, err)
	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	buf = append(buf, header...)

	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.safetensors")
	require.NoError(t, os.WriteFile(corrupt, buf, 0o600))
	good := writeSample(t, dir, "good.npz", constantImage(t, 8, 8), checkerMask(t, 8, 8))

	ds := dataset.New([]string{good, corrupt}, cpu.New(), dataset.WithWorkers(2))

	require.NotPanics(t, func() {
		_, _, err = ds.Get(1)
	})
	assert.ErrorIs(t, err, tensor.ErrShapeOverflow)

	require.NotPanics(t, func() {
		_, _, err = ds.GetBatch([]int{0, 1})
	})
	assert.ErrorIs(t, err, tensor.ErrShapeOverflow)
}

func TestGet_ReadsOnEveryAccess(t *testing.T) {
	var calls atomic.Int32
	var fill atomic.Int32
	read := func(path string) (*serialization.Sample, error) {
		calls.Add(1)
		v := float32(fill.Load())
		return &serialization.Sample{
			Image: rawOf(t, tensor.Shape{2, 2, 4}, tensor.Float32, func(i int) float32 { return v * float32(i%2) }),
			Mask:  rawOf(t, tensor.Shape{2, 2, 3}, tensor.Float32, func(int) float32 { return v }),
		}, nil
	}

	ds := dataset.New([]string{"mem://0"}, cpu.New(), dataset.WithStorage(read))

	fill.Store(1)
	_, mask, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), mask.At(0, 0, 0))

	fill.Store(5)
	_, mask, err = ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, float32(5), mask.At(0, 0, 0))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_ReturnsFreshTensors(t *testing.T) {
	sample := &serialization.Sample{
		Image: rawOf(t, tensor.Shape{2, 2, 4}, tensor.Float32, func(i int) float32 { return float32(i) }),
		Mask:  rawOf(t, tensor.Shape{2, 2, 3}, tensor.Float32, func(i int) float32 { return float32(i % 2) }),
	}
	before := append([]float32(nil), sample.Image.AsFloat32()...)
	read := func(string) (*serialization.Sample, error) { return sample, nil }

	ds := dataset.New([]string{"mem://0"}, cpu.New(), dataset.WithStorage(read))
	a, _, err := ds.Get(0)
	require.NoError(t, err)
	a.Set(42, 0, 0, 0)

	b, _, err := ds.Get(0)
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), b.At(0, 0, 0))
	assert.Equal(t, before, sample.Image.AsFloat32())
}

func TestGet_ReaderErrorPropagates(t *testing.T) {
	boom := errors.New("disk on fire")
	ds := dataset.New([]string{"x"}, cpu.New(), dataset.WithStorage(func(string) (*serialization.Sample, error) {
		return nil, boom
	}))

	_, _, err := ds.Get(0)
	assert.ErrorIs(t, err, boom)
}

func TestGet_Concurrent(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 4)
	for i := range paths {
		paths[i] = writeSample(t, dir, filepath.Base(t.Name())+string(rune('a'+i))+".safetensors",
			constantImage(t, 8, 8), checkerMask(t, 8, 8))
	}
	ds := dataset.New(paths, cpu.New())

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for g := range 32 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			image, mask, err := ds.Get(idx)
			if err != nil {
				errs <- err
				return
			}
			if !image.Shape().Equal(tensor.Shape{4, 8, 8}) || !mask.Shape().Equal(tensor.Shape{3, 8, 8}) {
				errs <- errors.New("unexpected shape")
			}
		}(g % len(paths))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestGetBatch(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeSample(t, dir, "0.safetensors", constantImage(t, 8, 8), checkerMask(t, 8, 8)),
		writeSample(t, dir, "1.npz", constantImage(t, 8, 8), checkerMask(t, 8, 8)),
		writeSample(t, dir, "2.safetensors", constantImage(t, 16, 8), checkerMask(t, 16, 8)),
	}
	ds := dataset.New(paths, cpu.New(), dataset.WithWorkers(2))

	images, masks, err := ds.GetBatch([]int{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4, 8, 8}, images.Shape())
	assert.Equal(t, tensor.Shape{3, 3, 8, 8}, masks.Shape())
	assert.Equal(t, float32(1), masks.At(2, 0, 0, 1))

	_, _, err = ds.GetBatch([]int{0, 2})
	assert.Error(t, err)

	_, _, err = ds.GetBatch([]int{0, 7})
	assert.ErrorIs(t, err, dataset.ErrIndexOutOfRange)

	_, _, err = ds.GetBatch(nil)
	assert.Error(t, err)
}

func TestCollate(t *testing.T) {
	b := cpu.New()
	item := func(h int) dataset.Item[*cpu.CPUBackend] {
		return dataset.Item[*cpu.CPUBackend]{
			Image: tensor.Zeros[float32](tensor.Shape{4, h, 8}, b),
			Mask:  tensor.Ones(tensor.Shape{3, h, 8}, b),
		}
	}

	images, masks, err := dataset.Collate([]dataset.Item[*cpu.CPUBackend]{item(8), item(8)})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4, 8, 8}, images.Shape())
	assert.Equal(t, tensor.Shape{2, 3, 8, 8}, masks.Shape())

	_, _, err = dataset.Collate([]dataset.Item[*cpu.CPUBackend]{item(8), item(16)})
	assert.Error(t, err)

	_, _, err = dataset.Collate[*cpu.CPUBackend](nil)
	assert.Error(t, err)
}

func TestNew_CopiesPaths(t *testing.T) {
	paths := []string{"a.npz"}
	ds := dataset.New(paths, cpu.New())
	paths[0] = "b.npz"

	p, err := ds.Path(0)
	require.NoError(t, err)
	assert.Equal(t, "a.npz", p)
}

func TestZScoreChannels(t *testing.T) {
	data := []float32{1, 2, 3, 4, 7, 7, 7, 7}
	dataset.ZScoreChannels(data, 2, 4)

	s := float32(math.Sqrt(1.25))
	assert.InDeltaSlice(t, []float32{-1.5 / s, -0.5 / s, 0.5 / s, 1.5 / s}, data[:4], 1e-6)
	assert.Equal(t, []float32{0, 0, 0, 0}, data[4:])

	assert.Panics(t, func() { dataset.ZScoreChannels(data, 3, 4) })
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "case_002"), 0o750))
	for _, name := range []string{
		"case_002/slice_010.npz",
		"case_001.safetensors",
		"case_002/slice_009.SAFETENSORS",
		"notes.txt",
		"case_003.h5",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	paths, err := dataset.Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "case_001.safetensors"),
		filepath.Join(dir, "case_002/slice_009.SAFETENSORS"),
		filepath.Join(dir, "case_002/slice_010.npz"),
	}, paths)

	paths, err = dataset.Discover(dir, "npz")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "case_002/slice_010.npz")}, paths)

	_, err = dataset.Discover(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

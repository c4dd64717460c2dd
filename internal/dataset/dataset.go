// Package dataset loads BraTS-style 2D slices for the segmentation network.
//
// Each sample file holds an "image" array of shape [H, W, 4] (T1, T1Gd, T2,
// T2-FLAIR) and a "mask" array of shape [H, W, 3] (NEC/NET, ED, ET). Get reads
// the file on every call, z-scores each image channel and returns both arrays
// channel-first as float32:
//
//	ds := dataset.New(paths, cpu.New())
//	image, mask, err := ds.Get(0) // [4, H, W], [3, H, W]
package dataset

import (
	"errors"
	"fmt"

	"github.com/born-ml/brats/internal/parallel"
	"github.com/born-ml/brats/internal/serialization"
	"github.com/born-ml/brats/internal/tensor"
)

// Expected channel counts of a stored sample.
const (
	ImageChannels = 4
	MaskChannels  = 3
)

// Errors returned by Get.
var (
	ErrIndexOutOfRange = errors.New("sample index out of range")
	ErrBadLayout       = errors.New("sample arrays have an unexpected layout")
)

// ReadFunc reads the image and mask arrays stored at path.
type ReadFunc func(path string) (*serialization.Sample, error)

// Option configures a SliceDataset.
type Option func(*config)

type config struct {
	read    ReadFunc
	workers int
}

// WithStorage replaces the default file reader (serialization.ReadSample).
func WithStorage(read ReadFunc) Option {
	return func(c *config) {
		c.read = read
	}
}

// WithWorkers caps the goroutines GetBatch uses. n <= 0 uses every detected core.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// SliceDataset maps an index to one normalized (image, mask) pair.
//
// It holds only the path list and never caches file contents, so concurrent
// Get calls are safe.
type SliceDataset[B tensor.Backend] struct {
	paths   []string
	read    ReadFunc
	batch   parallel.Config
	backend B
}

// New creates a dataset over paths. The slice is copied.
func New[B tensor.Backend](paths []string, backend B, opts ...Option) *SliceDataset[B] {
	cfg := config{read: serialization.ReadSample}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &SliceDataset[B]{
		paths:   append([]string(nil), paths...),
		read:    cfg.read,
		batch:   parallel.CoarseConfig().WithWorkers(cfg.workers),
		backend: backend,
	}
}

// Len returns the number of samples.
func (d *SliceDataset[B]) Len() int {
	return len(d.paths)
}

// Path returns the file path of sample idx.
func (d *SliceDataset[B]) Path(idx int) (string, error) {
	if err := d.checkIndex(idx); err != nil {
		return "", err
	}
	return d.paths[idx], nil
}

func (d *SliceDataset[B]) checkIndex(idx int) error {
	if idx < 0 || idx >= len(d.paths) {
		return fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, idx, len(d.paths))
	}
	return nil
}

// Get loads sample idx and returns the z-scored image [4, H, W] and the mask
// [3, H, W]. Mask values are only reordered, never rescaled.
func (d *SliceDataset[B]) Get(idx int) (image, mask *tensor.Tensor[float32, B], err error) {
	if err := d.checkIndex(idx); err != nil {
		return nil, nil, err
	}
	path := d.paths[idx]

	sample, err := d.read(path)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %d: %w", idx, err)
	}
	if sample.Image == nil || sample.Mask == nil {
		return nil, nil, fmt.Errorf("sample %d: %s: %w", idx, path, serialization.ErrMissingArray)
	}
	if err := checkLayout(sample.Image.Shape(), sample.Mask.Shape()); err != nil {
		return nil, nil, fmt.Errorf("sample %d: %s: %w", idx, path, err)
	}

	img := d.toChannelFirst(sample.Image)
	shape := img.Shape()
	ZScoreChannels(img.AsFloat32(), shape[0], shape[1]*shape[2])

	return tensor.New[float32](img, d.backend), tensor.New[float32](d.toChannelFirst(sample.Mask), d.backend), nil
}

// toChannelFirst casts an [H, W, C] array to float32 and moves C to the front.
// The result never aliases the stored sample.
func (d *SliceDataset[B]) toChannelFirst(raw *tensor.RawTensor) *tensor.RawTensor {
	return d.backend.Transpose(d.backend.Cast(raw, tensor.Float32), 2, 0, 1)
}

func checkLayout(image, mask tensor.Shape) error {
	switch {
	case len(image) != 3:
		return fmt.Errorf("%w: image must be [H, W, %d], got %v", ErrBadLayout, ImageChannels, image)
	case len(mask) != 3:
		return fmt.Errorf("%w: mask must be [H, W, %d], got %v", ErrBadLayout, MaskChannels, mask)
	case image[2] != ImageChannels:
		return fmt.Errorf("%w: image has %d channels, want %d", ErrBadLayout, image[2], ImageChannels)
	case mask[2] != MaskChannels:
		return fmt.Errorf("%w: mask has %d channels, want %d", ErrBadLayout, mask[2], MaskChannels)
	case image[0] != mask[0] || image[1] != mask[1]:
		return fmt.Errorf("%w: image is %dx%d but mask is %dx%d", ErrBadLayout, image[0], image[1], mask[0], mask[1])
	}
	return nil
}

// Item is one loaded sample.
type Item[B tensor.Backend] struct {
	Image *tensor.Tensor[float32, B]
	Mask  *tensor.Tensor[float32, B]
}

// GetBatch loads indices concurrently and collates them into [N, 4, H, W] and
// [N, 3, H, W]. The first failing index, in index order, determines the error.
func (d *SliceDataset[B]) GetBatch(indices []int) (images, masks *tensor.Tensor[float32, B], err error) {
	items := make([]Item[B], len(indices))
	errs := make([]error, len(indices))

	parallel.For(len(indices), func(i int) {
		items[i].Image, items[i].Mask, errs[i] = d.Get(indices[i])
	}, d.batch)

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return Collate(items)
}

// Collate stacks N items of equal shape into batched image and mask tensors.
func Collate[B tensor.Backend](items []Item[B]) (images, masks *tensor.Tensor[float32, B], err error) {
	if len(items) == 0 {
		return nil, nil, errors.New("collate: no items")
	}

	imgs := make([]*tensor.Tensor[float32, B], len(items))
	msks := make([]*tensor.Tensor[float32, B], len(items))
	for i, it := range items {
		imgs[i], msks[i] = it.Image, it.Mask
	}

	if images, err = tensor.Stack(imgs); err != nil {
		return nil, nil, fmt.Errorf("collate images: %w", err)
	}
	if masks, err = tensor.Stack(msks); err != nil {
		return nil, nil, fmt.Errorf("collate masks: %w", err)
	}
	return images, masks, nil
}

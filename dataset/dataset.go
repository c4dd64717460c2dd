// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dataset loads multi-modal MRI slices for the segmentation network.
//
// Each sample file (.safetensors or .npz) stores an "image" array [H, W, 4]
// with the T1, T1Gd, T2 and T2-FLAIR modalities and a "mask" array [H, W, 3]
// with the NEC/NET, ED and ET tumor subregions. Get returns both channel-first
// as float32, with every image channel z-scored independently:
//
//	paths, _ := dataset.Discover("./slices")
//	ds := dataset.New(paths, cpu.New())
//	image, mask, err := ds.Get(0)         // [4, H, W], [3, H, W]
//	images, masks, err := ds.GetBatch([]int{0, 1, 2, 3}) // [4, 4, H, W], [4, 3, H, W]
package dataset

import (
	"github.com/born-ml/brats/internal/dataset"
	"github.com/born-ml/brats/internal/serialization"
	"github.com/born-ml/brats/tensor"
)

// Channel counts of a stored sample.
const (
	ImageChannels = dataset.ImageChannels
	MaskChannels  = dataset.MaskChannels
)

// Errors returned by Get.
var (
	ErrIndexOutOfRange = dataset.ErrIndexOutOfRange
	ErrBadLayout       = dataset.ErrBadLayout
)

// Storage errors, re-exported for errors.Is checks.
var (
	ErrUnsupportedFormat = serialization.ErrUnsupportedFormat
	ErrMissingArray      = serialization.ErrMissingArray
)

// SliceDataset maps an index to one normalized (image, mask) pair.
type SliceDataset[B tensor.Backend] = dataset.SliceDataset[B]

// Item is one loaded sample.
type Item[B tensor.Backend] = dataset.Item[B]

// Sample is the raw content of a sample file.
type Sample = serialization.Sample

// ReadFunc reads the image and mask arrays stored at a path.
type ReadFunc = dataset.ReadFunc

// Option configures a SliceDataset.
type Option = dataset.Option

// New creates a dataset over paths.
func New[B tensor.Backend](paths []string, backend B, opts ...Option) *SliceDataset[B] {
	return dataset.New(paths, backend, opts...)
}

// WithStorage replaces the default file reader.
func WithStorage(read ReadFunc) Option {
	return dataset.WithStorage(read)
}

// WithWorkers caps the goroutines GetBatch uses.
func WithWorkers(n int) Option {
	return dataset.WithWorkers(n)
}

// Collate stacks items into [N, 4, H, W] images and [N, 3, H, W] masks.
func Collate[B tensor.Backend](items []Item[B]) (images, masks *tensor.Tensor[float32, B], err error) {
	return dataset.Collate(items)
}

// Discover returns the sorted sample files under root.
func Discover(root string, exts ...string) ([]string, error) {
	return dataset.Discover(root, exts...)
}

// ZScoreChannels normalizes a channel-first buffer in place.
func ZScoreChannels(data []float32, channels, plane int) {
	dataset.ZScoreChannels(data, channels, plane)
}

// ReadSample reads a sample file in either supported format.
func ReadSample(path string) (*Sample, error) {
	return serialization.ReadSample(path)
}

// WriteSample stores an image and mask in the format named by the path's extension.
func WriteSample(path string, image, mask *tensor.RawTensor, metadata map[string]string) error {
	return serialization.WriteSample(path, image, mask, metadata)
}

package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/born-ml/brats/internal/backend/cpu"
	"github.com/born-ml/brats/internal/config"
	"github.com/born-ml/brats/internal/dataset"
	"github.com/born-ml/brats/internal/serialization"
	"github.com/born-ml/brats/internal/tensor"
)

// Per-modality intensity mean and spread of the synthetic images.
var synthIntensity = [dataset.ImageChannels][2]float64{
	{400, 80},  // T1
	{600, 150}, // T1Gd
	{300, 120}, // T2
	{250, 60},  // T2-FLAIR
}

func runSynth(args []string, stdout io.Writer) error {
	fs := newFlagSet("synth")
	out := fs.String("out", "slices", "Output directory")
	n := fs.Int("n", 4, "Number of samples")
	size := fs.Int("size", 64, "Height and width of each slice")
	formatName := fs.String("format", "safetensors", "File format: safetensors or npz")
	seed := fs.Int64("seed", 1, "Random seed for image intensities")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format, err := serialization.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	if *n <= 0 || *size <= 0 {
		return fmt.Errorf("-n and -size must be positive")
	}
	if err := os.MkdirAll(*out, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // G404: synthetic data only
	for i := range *n {
		image, mask, err := synthSample(rng, *size, i)
		if err != nil {
			return err
		}

		path := filepath.Join(*out, fmt.Sprintf("synth_%03d%s", i, format.Ext()))
		meta := map[string]string{
			"sample_id":  uuid.NewString(),
			"modalities": "T1,T1Gd,T2,T2-FLAIR",
			"classes":    "NEC/NET,ED,ET",
		}
		if err := serialization.WriteSample(path, image, mask, meta); err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
	}
	return nil
}

// synthSample returns a float32 [size, size, 4] image with per-modality
// Gaussian intensities and a uint8 [size, size, 3] mask of shifted checkerboards.
func synthSample(rng *rand.Rand, size, index int) (image, mask *tensor.RawTensor, err error) {
	image, err = tensor.NewRaw(tensor.Shape{size, size, dataset.ImageChannels}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, nil, err
	}
	mask, err = tensor.NewRaw(tensor.Shape{size, size, dataset.MaskChannels}, tensor.Uint8, tensor.CPU)
	if err != nil {
		return nil, nil, err
	}

	cell := max(1, size/8)
	img, msk := image.AsFloat32(), mask.AsUint8()
	for y := range size {
		for x := range size {
			p := y*size + x
			for c, in := range synthIntensity {
				img[p*dataset.ImageChannels+c] = float32(in[0] + in[1]*rng.NormFloat64())
			}
			for k := range dataset.MaskChannels {
				msk[p*dataset.MaskChannels+k] = uint8((y/cell + x/cell + k + index) % 2) //nolint:gosec // 0 or 1
			}
		}
	}
	return image, mask, nil
}

func runInspect(args []string, stdout io.Writer) error {
	fs := newFlagSet("inspect")
	cfgPath := fs.String("config", "", "YAML config file")
	root := fs.String("root", "", "Override data.root")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, config.Overrides{Root: *root, Paths: fs.Args()})
	if err != nil {
		return err
	}
	paths, err := cfg.SamplePaths()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no sample files found")
	}

	ds := dataset.New(paths, cpu.New(cpu.WithWorkers(cfg.Runtime.Workers)))
	for i := range ds.Len() {
		image, mask, err := ds.Get(i)
		if err != nil {
			return err
		}
		path, _ := ds.Path(i)

		shape := image.Shape()
		means, stds := dataset.ChannelStats(image.Data(), shape[0], shape[1]*shape[2])
		coverage, _ := dataset.ChannelStats(mask.Data(), mask.Shape()[0], shape[1]*shape[2])

		fmt.Fprintf(stdout, "%s\n", path)
		fmt.Fprintf(stdout, "  image %v mean=%s std=%s\n", image.Shape(), formatFloats(means), formatFloats(stds))
		fmt.Fprintf(stdout, "  mask  %v coverage=%s\n", mask.Shape(), formatFloats(coverage))
	}
	return nil
}

func formatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.3f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

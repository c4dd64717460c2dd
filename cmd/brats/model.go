package main

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/brats/internal/backend/cpu"
	"github.com/born-ml/brats/internal/config"
	"github.com/born-ml/brats/internal/dataset"
	"github.com/born-ml/brats/internal/unet"
)

func runDevices(args []string, stdout io.Writer) error {
	fs := newFlagSet("devices")
	workers := fs.Int("workers", 0, "Goroutine cap per kernel (0 = all cores)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	backend := cpu.New(cpu.WithWorkers(*workers))
	fmt.Fprintf(stdout, "backend: %s (%s)\n", backend.Name(), backend.Device())
	fmt.Fprintf(stdout, "workers: %d\n", backend.Workers())
	fmt.Fprintf(stdout, "cpu:     %s\n", cpu.DetectFeatures())
	return nil
}

func runSummary(args []string, stdout io.Writer) error {
	fs := newFlagSet("summary")
	features := fs.Int("features", unet.DefaultConfig().Features, "Width of the first encoder stage")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := unet.DefaultConfig()
	cfg.Features = *features
	model, err := unet.New(cfg, cpu.New())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, model)
	return nil
}

// loadConfig reads path (or the defaults when path is empty) and applies
// command-line overrides.
func loadConfig(path string, o config.Overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	cfg = cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runForward(args []string, stdout io.Writer) error {
	fs := newFlagSet("forward")
	cfgPath := fs.String("config", "", "YAML config file")
	features := fs.Int("features", 0, "Override model.features")
	batch := fs.Int("batch", 0, "Override runtime.batch_size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, config.Overrides{
		Paths:     fs.Args(),
		Features:  *features,
		BatchSize: *batch,
	})
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

	backend := cpu.New(cpu.WithWorkers(cfg.Runtime.Workers))
	model, err := unet.New(cfg.ModelConfig(), backend, unet.WithSeed(cfg.Runtime.Seed))
	if err != nil {
		return err
	}
	model.Eval()

	n := min(cfg.Runtime.BatchSize, len(paths))
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	ds := dataset.New(paths, backend, dataset.WithWorkers(cfg.Runtime.Workers))
	images, masks, err := ds.GetBatch(indices)
	if err != nil {
		return err
	}

	logits, err := model.Run(images)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "model:  %d parameters, features=%d\n", model.NumParameters(), cfg.Model.Features)
	fmt.Fprintf(stdout, "input:  %v\n", images.Shape())
	fmt.Fprintf(stdout, "mask:   %v\n", masks.Shape())
	fmt.Fprintf(stdout, "output: %v\n", logits.Shape())

	values := make([]float64, logits.NumElements())
	for i, v := range logits.Data() {
		values[i] = float64(v)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	fmt.Fprintf(stdout, "logits: min=%.4f max=%.4f mean=%.4f std=%.4f\n", floats.Min(values), floats.Max(values), mean, std)
	return nil
}

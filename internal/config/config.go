// Package config loads the YAML run configuration shared by the brats commands.
//
//	data:
//	  root: ./slices
//	model:
//	  features: 16
//	runtime:
//	  batch_size: 4
//
// Fields left out of the file keep their Default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/brats/internal/dataset"
	"github.com/born-ml/brats/internal/unet"
)

// ErrConfig is wrapped by every validation failure.
var ErrConfig = errors.New("invalid configuration")

// Config is the top-level run configuration.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Model   ModelConfig   `yaml:"model"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// DataConfig selects sample files. Paths takes precedence over Root.
type DataConfig struct {
	Root  string   `yaml:"root"`
	Paths []string `yaml:"paths"`
}

// ModelConfig mirrors unet.Config.
type ModelConfig struct {
	InChannels        int     `yaml:"in_channels"`
	OutChannels       int     `yaml:"out_channels"`
	Features          int     `yaml:"features"`
	BatchNormEps      float32 `yaml:"batchnorm_eps"`
	BatchNormMomentum float32 `yaml:"batchnorm_momentum"`
}

// RuntimeConfig controls execution.
type RuntimeConfig struct {
	Workers   int   `yaml:"workers"` // 0 uses every detected core
	BatchSize int   `yaml:"batch_size"`
	Seed      int64 `yaml:"seed"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	m := unet.DefaultConfig()
	return Config{
		Data: DataConfig{Root: "."},
		Model: ModelConfig{
			InChannels:        m.InChannels,
			OutChannels:       m.OutChannels,
			Features:          m.Features,
			BatchNormEps:      m.BatchNormEps,
			BatchNormMomentum: m.BatchNormMomentum,
		},
		Runtime: RuntimeConfig{
			BatchSize: 4,
			Seed:      42,
		},
	}
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: the config path is chosen by the user
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over Default and validates the result. Unknown
// keys are rejected.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Overrides holds command-line values that replace file settings. Zero values
// and nil slices leave the setting unchanged.
type Overrides struct {
	Root      string
	Paths     []string
	Features  int
	Workers   int
	BatchSize int
}

// ApplyOverrides returns a copy of c with the non-zero fields of o applied.
func (c Config) ApplyOverrides(o Overrides) Config {
	if o.Root != "" {
		c.Data.Root = o.Root
	}
	if len(o.Paths) > 0 {
		c.Data.Paths = append([]string(nil), o.Paths...)
	}
	if o.Features > 0 {
		c.Model.Features = o.Features
	}
	if o.Workers > 0 {
		c.Runtime.Workers = o.Workers
	}
	if o.BatchSize > 0 {
		c.Runtime.BatchSize = o.BatchSize
	}
	return c
}

// Validate checks data, model and runtime settings.
func (c Config) Validate() error {
	if c.Data.Root == "" && len(c.Data.Paths) == 0 {
		return fmt.Errorf("%w: data.root or data.paths is required", ErrConfig)
	}
	if err := c.ModelConfig().Validate(); err != nil {
		return fmt.Errorf("%w: model: %w", ErrConfig, err)
	}
	switch {
	case c.Runtime.Workers < 0:
		return fmt.Errorf("%w: runtime.workers must be >= 0, got %d", ErrConfig, c.Runtime.Workers)
	case c.Runtime.BatchSize <= 0:
		return fmt.Errorf("%w: runtime.batch_size must be positive, got %d", ErrConfig, c.Runtime.BatchSize)
	}
	return nil
}

// ModelConfig converts the model section to a network config.
func (c Config) ModelConfig() unet.Config {
	return unet.Config{
		InChannels:        c.Model.InChannels,
		OutChannels:       c.Model.OutChannels,
		Features:          c.Model.Features,
		BatchNormEps:      c.Model.BatchNormEps,
		BatchNormMomentum: c.Model.BatchNormMomentum,
	}
}

// SamplePaths returns Data.Paths when set, otherwise every sample file under
// Data.Root.
func (c Config) SamplePaths() ([]string, error) {
	if len(c.Data.Paths) > 0 {
		return append([]string(nil), c.Data.Paths...), nil
	}
	return dataset.Discover(c.Data.Root)
}

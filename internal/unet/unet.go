package unet

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/born-ml/brats/internal/nn"
	"github.com/born-ml/brats/internal/tensor"
)

// depth is the number of 2x downsampling steps; input sides must divide 2^depth.
const depth = 3

// UNet is the encoder/decoder segmentation network.
//
//	encoder1 (F)  ──────────────────────────────── cat ─ decoder1 (F) ─ conv 1x1
//	  pool                                          upconv1
//	  encoder2 (2F) ───────────────────── cat ─ decoder2 (2F)
//	    pool                              upconv2
//	    encoder3 (4F) ─────────── cat ─ decoder3 (4F)
//	      pool                  upconv3
//	      bottleneck (8F) ────────┘
//
// A new network is in training mode. Call Eval before inference; in eval mode
// Forward only reads network state and may run concurrently. Train and Eval
// must not race with Forward.
type UNet[B tensor.Backend] struct {
	cfg Config

	encoder1, encoder2, encoder3 *nn.Sequential[B]
	pool                         *nn.MaxPool2D[B]
	bottleneck                   *nn.Sequential[B]
	upconv3, upconv2, upconv1    *nn.ConvTranspose2D[B]
	decoder3, decoder2, decoder1 *nn.Sequential[B]
	conv                         *nn.Conv2D[B]

	mu       sync.RWMutex
	training bool

	backend B
}

// Option configures network construction.
type Option func(*options)

type options struct {
	rng *rand.Rand
}

// WithSeed initializes all weights from a rand source seeded with seed.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // G404: weight init is not security sensitive
	}
}

// New builds a network from cfg.
func New[B tensor.Backend](cfg Config, backend B, opts ...Option) (*UNet[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var initOpts []nn.InitOption
	if o.rng != nil {
		initOpts = append(initOpts, nn.WithRand(o.rng))
	}

	w := cfg.StageWidths()
	u := &UNet[B]{
		cfg:     cfg,
		backend: backend,
	}

	u.encoder1 = DoubleConv(cfg.InChannels, w[0], cfg, backend, initOpts...)
	u.encoder2 = DoubleConv(w[0], w[1], cfg, backend, initOpts...)
	u.encoder3 = DoubleConv(w[1], w[2], cfg, backend, initOpts...)
	u.pool = nn.NewMaxPool2D(2, 2, backend)

	u.bottleneck = DoubleConv(w[2], w[3], cfg, backend, initOpts...)

	u.upconv3 = nn.NewConvTranspose2D(w[3], w[2], 2, 2, true, backend, initOpts...)
	u.decoder3 = DoubleConv(2*w[2], w[2], cfg, backend, initOpts...)
	u.upconv2 = nn.NewConvTranspose2D(w[2], w[1], 2, 2, true, backend, initOpts...)
	u.decoder2 = DoubleConv(2*w[1], w[1], cfg, backend, initOpts...)
	u.upconv1 = nn.NewConvTranspose2D(w[1], w[0], 2, 2, true, backend, initOpts...)
	u.decoder1 = DoubleConv(2*w[0], w[0], cfg, backend, initOpts...)

	u.conv = nn.NewConv2D(w[0], cfg.OutChannels, 1, 1, 1, 0, true, backend, initOpts...)

	u.setTraining(true)
	return u, nil
}

// MustNew is like New but panics on an invalid config.
func MustNew[B tensor.Backend](cfg Config, backend B, opts ...Option) *UNet[B] {
	u, err := New(cfg, backend, opts...)
	if err != nil {
		panic(err)
	}
	return u
}

// Config returns the configuration the network was built with.
func (u *UNet[B]) Config() Config {
	return u.cfg
}

// ValidateInput checks that shape is [N, InChannels, H, W] with N >= 1 and H, W
// positive multiples of 8.
func (u *UNet[B]) ValidateInput(shape tensor.Shape) error {
	if len(shape) != 4 {
		return fmt.Errorf("%w: got %dD %v", ErrInputRank, len(shape), shape)
	}
	if shape[0] <= 0 {
		return fmt.Errorf("%w: empty batch in %v", ErrInputRank, shape)
	}
	if shape[1] != u.cfg.InChannels {
		return fmt.Errorf("%w: got %d, want %d", ErrInputChannels, shape[1], u.cfg.InChannels)
	}
	const multiple = 1 << depth
	h, w := shape[2], shape[3]
	if h <= 0 || w <= 0 || h%multiple != 0 || w%multiple != 0 {
		return fmt.Errorf("%w: got %dx%d", ErrSpatialSize, h, w)
	}
	return nil
}

// checkForward adds the training-mode batch norm constraint to ValidateInput:
// N*(H/8)*(W/8) must exceed 1 so the bottleneck has batch statistics.
func (u *UNet[B]) checkForward(shape tensor.Shape) error {
	if err := u.ValidateInput(shape); err != nil {
		return err
	}
	const multiple = 1 << depth
	if u.Training() && shape[0]*(shape[2]/multiple)*(shape[3]/multiple) < 2 {
		return fmt.Errorf("%w: input %v", ErrSingleValue, shape)
	}
	return nil
}

// Forward maps [N, InChannels, H, W] to [N, OutChannels, H, W] logits.
//
// Invalid input panics with an error wrapping ErrInputRank, ErrInputChannels,
// ErrSpatialSize or, in training mode, ErrSingleValue. Use Run to get the
// error returned instead.
func (u *UNet[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if err := u.checkForward(x.Shape()); err != nil {
		panic(fmt.Errorf("unet: %w", err))
	}

	enc1 := u.encoder1.Forward(x)
	enc2 := u.encoder2.Forward(u.pool.Forward(enc1))
	enc3 := u.encoder3.Forward(u.pool.Forward(enc2))

	bottleneck := u.bottleneck.Forward(u.pool.Forward(enc3))

	dec3 := u.decoder3.Forward(nn.Cat(u.upconv3.Forward(bottleneck), enc3))
	dec2 := u.decoder2.Forward(nn.Cat(u.upconv2.Forward(dec3), enc2))
	dec1 := u.decoder1.Forward(nn.Cat(u.upconv1.Forward(dec2), enc1))

	return u.conv.Forward(dec1)
}

// Run validates x and runs Forward.
func (u *UNet[B]) Run(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := u.checkForward(x.Shape()); err != nil {
		return nil, fmt.Errorf("unet: %w", err)
	}
	return u.Forward(x), nil
}

// Train switches every batch norm layer to batch statistics with running-stat updates.
func (u *UNet[B]) Train() {
	u.setTraining(true)
}

// Eval switches every batch norm layer to its running statistics.
func (u *UNet[B]) Eval() {
	u.setTraining(false)
}

// Training reports whether the network is in training mode.
func (u *UNet[B]) Training() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.training
}

func (u *UNet[B]) setTraining(training bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.training = training
	for _, s := range u.submodules() {
		nn.SetTraining(s.module, training)
	}
}

// DecoderInChannels returns the channel count entering each decoder
// double-conv block, deepest first. Each equals upsampled + skip channels,
// which is twice the stage width.
func (u *UNet[B]) DecoderInChannels() [3]int {
	var out [3]int
	for i, dec := range []*nn.Sequential[B]{u.decoder3, u.decoder2, u.decoder1} {
		out[i] = dec.Module(0).(*nn.Conv2D[B]).InChannels()
	}
	return out
}

type namedModule[B tensor.Backend] struct {
	name   string
	module nn.Module[B]
}

// submodules lists the layers in forward order. The pooling layer holds no
// state and is left out.
func (u *UNet[B]) submodules() []namedModule[B] {
	return []namedModule[B]{
		{"encoder1", u.encoder1},
		{"encoder2", u.encoder2},
		{"encoder3", u.encoder3},
		{"bottleneck", u.bottleneck},
		{"upconv3", u.upconv3},
		{"decoder3", u.decoder3},
		{"upconv2", u.upconv2},
		{"decoder2", u.decoder2},
		{"upconv1", u.upconv1},
		{"decoder1", u.decoder1},
		{"conv", u.conv},
	}
}

// Parameters returns all parameters in forward order.
func (u *UNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, s := range u.submodules() {
		params = append(params, s.module.Parameters()...)
	}
	return params
}

// NamedParameter pairs a parameter with its dotted path, e.g. "encoder1.0.weight".
type NamedParameter[B tensor.Backend] struct {
	Name      string
	Parameter *nn.Parameter[B]
}

// NamedParameters returns all parameters with dotted paths, in forward order.
func (u *UNet[B]) NamedParameters() []NamedParameter[B] {
	var out []NamedParameter[B]
	for _, s := range u.submodules() {
		out = appendNamed(out, s.name, s.module)
	}
	return out
}

func appendNamed[B tensor.Backend](out []NamedParameter[B], prefix string, m nn.Module[B]) []NamedParameter[B] {
	if seq, ok := m.(*nn.Sequential[B]); ok {
		for i := 0; i < seq.Len(); i++ {
			out = appendNamed(out, fmt.Sprintf("%s.%d", prefix, i), seq.Module(i))
		}
		return out
	}
	for _, p := range m.Parameters() {
		out = append(out, NamedParameter[B]{Name: prefix + "." + p.Name(), Parameter: p})
	}
	return out
}

// NumParameters returns the total number of parameter elements.
func (u *UNet[B]) NumParameters() int {
	return nn.NumParameters(u.Parameters())
}

// StateDict returns parameters and batch norm buffers keyed by dotted path.
func (u *UNet[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for _, s := range u.submodules() {
		for k, v := range nn.WithPrefix(s.name, s.module.StateDict()) {
			sd[k] = v
		}
	}
	return sd
}

// LoadStateDict copies every entry produced by StateDict into the network.
func (u *UNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, s := range u.submodules() {
		if err := s.module.LoadStateDict(nn.SubDict(s.name, stateDict)); err != nil {
			return fmt.Errorf("unet: %s: %w", s.name, err)
		}
	}
	return nil
}

// String returns an architecture summary with per-stage widths and the
// parameter count.
func (u *UNet[B]) String() string {
	w := u.cfg.StageWidths()
	dec := u.DecoderInChannels()

	var sb strings.Builder
	fmt.Fprintf(&sb, "UNet(in_channels=%d, out_channels=%d, features=%d)\n", u.cfg.InChannels, u.cfg.OutChannels, u.cfg.Features)
	fmt.Fprintf(&sb, "  encoder1:   DoubleConv(%d -> %d), MaxPool2D(2)\n", u.cfg.InChannels, w[0])
	fmt.Fprintf(&sb, "  encoder2:   DoubleConv(%d -> %d), MaxPool2D(2)\n", w[0], w[1])
	fmt.Fprintf(&sb, "  encoder3:   DoubleConv(%d -> %d), MaxPool2D(2)\n", w[1], w[2])
	fmt.Fprintf(&sb, "  bottleneck: DoubleConv(%d -> %d)\n", w[2], w[3])
	fmt.Fprintf(&sb, "  decoder3:   %v, cat, DoubleConv(%d -> %d)\n", u.upconv3, dec[0], w[2])
	fmt.Fprintf(&sb, "  decoder2:   %v, cat, DoubleConv(%d -> %d)\n", u.upconv2, dec[1], w[1])
	fmt.Fprintf(&sb, "  decoder1:   %v, cat, DoubleConv(%d -> %d)\n", u.upconv1, dec[2], w[0])
	fmt.Fprintf(&sb, "  head:       %v\n", u.conv)
	fmt.Fprintf(&sb, "  parameters: %d", u.NumParameters())
	return sb.String()
}

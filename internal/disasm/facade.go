package disasm

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"staticflow/internal/arch"
)

// DefaultCacheSize is the number of decoded instructions kept by a Decoder.
const DefaultCacheSize = 4096

// Decoder tries its backends in order and returns the first instruction
// that decodes and classifies. It is safe for concurrent use when its
// backends are.
type Decoder struct {
	backends []Backend
	logger   *log.Logger
	cache    *lru.Cache[cacheKey, *Instruction]
}

type cacheKey struct {
	arch arch.Arch
	addr uint64
	raw  string
}

// Option configures a Decoder.
type Option func(*decoderOptions)

type decoderOptions struct {
	logger    *log.Logger
	cacheSize int
}

// WithLogger routes backend failure reports to logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *decoderOptions) { o.logger = logger }
}

// WithCacheSize bounds the decoded-instruction cache. Zero disables it.
func WithCacheSize(n int) Option {
	return func(o *decoderOptions) { o.cacheSize = n }
}

// NewDecoder returns a Decoder over backends, tried in the given order.
func NewDecoder(backends []Backend, opts ...Option) (*Decoder, error) {
	o := decoderOptions{
		logger:    log.Default().WithPrefix("disasm"),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(backends) == 0 {
		return nil, errors.New("decoder needs at least one backend")
	}
	if o.cacheSize < 0 {
		return nil, fmt.Errorf("invalid cache size %d", o.cacheSize)
	}

	d := &Decoder{
		backends: append([]Backend(nil), backends...),
		logger:   o.logger,
	}
	if o.cacheSize > 0 {
		cache, err := lru.New[cacheKey, *Instruction](o.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create decode cache: %w", err)
		}
		d.cache = cache
	}
	return d, nil
}

// Backends returns the backend names in the order they are tried.
func (d *Decoder) Backends() []string {
	names := make([]string, len(d.backends))
	for i, b := range d.backends {
		names[i] = b.Name()
	}
	return names
}

// Decode decodes and classifies the instruction at the start of raw.
//
// Only errors matching ErrDecodeFailure move on to the next backend; any
// other backend error is returned as is. When every backend fails the
// result is a *DecodeError joining the individual failures.
func (d *Decoder) Decode(raw []byte, addr uint64, a arch.Arch) (*Instruction, error) {
	if err := a.Check(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &EmptyInputError{Addr: addr, Arch: a}
	}

	key := cacheKey{arch: a, addr: addr, raw: string(raw)}
	if d.cache != nil {
		if insn, ok := d.cache.Get(key); ok {
			return insn, nil
		}
	}

	var errs []error
	for _, b := range d.backends {
		insn, err := d.decodeWith(b, raw, addr, a)
		if err == nil {
			if d.cache != nil {
				d.cache.Add(key, insn)
			}
			return insn, nil
		}
		if !errors.Is(err, ErrDecodeFailure) {
			return nil, err
		}
		d.logger.Debug("backend failed", "backend", b.Name(), "addr", fmt.Sprintf("%#x", addr), "arch", a, "err", err)
		errs = append(errs, err)
	}

	d.logger.Warn("undecodable instruction", "addr", fmt.Sprintf("%#x", addr), "arch", a, "bytes", len(raw))
	return nil, &DecodeError{Addr: addr, Arch: a, Len: len(raw), Err: errors.Join(errs...)}
}

func (d *Decoder) decodeWith(b Backend, raw []byte, addr uint64, a arch.Arch) (*Instruction, error) {
	f, err := b.Decode(raw, addr, a)
	if err != nil {
		return nil, err
	}
	insn, err := Classify(f, a, raw)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) && de.Backend == "" {
			de.Backend = b.Name()
		}
		return nil, err
	}
	insn.backend = b.Name()
	return insn, nil
}

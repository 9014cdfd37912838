package analysis

import (
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"staticflow/internal/disasm"
	"staticflow/internal/disasm/branchtab"
	"staticflow/internal/disasm/xarch"
)

// DefaultBackends is the decoding order used when none is configured.
var DefaultBackends = []string{xarch.Name, branchtab.Name}

var backends = map[string]func() disasm.Backend{
	xarch.Name:     func() disasm.Backend { return xarch.New() },
	branchtab.Name: func() disasm.Backend { return branchtab.New() },
}

// BackendNames lists the registered backends.
func BackendNames() []string {
	return slices.Sorted(maps.Keys(backends))
}

// NewBackends instantiates the named backends in order.
func NewBackends(names []string) ([]disasm.Backend, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no backends configured")
	}
	seen := make(map[string]bool, len(names))
	out := make([]disasm.Backend, 0, len(names))
	for _, n := range names {
		mk, ok := backends[n]
		if !ok {
			return nil, fmt.Errorf("unknown backend %q (have %v)", n, BackendNames())
		}
		if seen[n] {
			return nil, fmt.Errorf("backend %q listed twice", n)
		}
		seen[n] = true
		out = append(out, mk())
	}
	return out, nil
}

// NewDecoder builds a decoder over the named backends.
func NewDecoder(names []string, cacheSize int, logger *log.Logger) (*disasm.Decoder, error) {
	bs, err := NewBackends(names)
	if err != nil {
		return nil, err
	}
	opts := []disasm.Option{disasm.WithCacheSize(cacheSize)}
	if logger != nil {
		opts = append(opts, disasm.WithLogger(logger))
	}
	return disasm.NewDecoder(bs, opts...)
}

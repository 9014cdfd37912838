package analysis

import (
	"sync"

	"github.com/ianlancetaylor/demangle"

	"staticflow/internal/arch"
	"staticflow/internal/elfx"
	"staticflow/internal/tags"
)

// demangleCache memoizes demangled symbol names across images.
type demangleCache struct {
	mu    sync.RWMutex
	names map[string]string
	hits  int
}

var cache = &demangleCache{names: make(map[string]string)}

// CachedDemangle returns the demangled form of a C++ or Rust symbol, or the
// name itself when it is not mangled.
func CachedDemangle(mangled string) string {
	cache.mu.RLock()
	if d, ok := cache.names[mangled]; ok {
		cache.mu.RUnlock()
		cache.mu.Lock()
		cache.hits++
		cache.mu.Unlock()
		return d
	}
	cache.mu.RUnlock()

	d := demangle.Filter(mangled, demangle.NoClones)

	cache.mu.Lock()
	cache.names[mangled] = d
	cache.mu.Unlock()
	return d
}

// DemangleCacheStats returns the number of cached names and cache hits.
func DemangleCacheStats() (names, hits int) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.names), cache.hits
}

// SeedSymbols names the function symbols and returns their entry points in
// address order. Thumb symbols in an ARM image get a thumb arch tag.
func (s *Static) SeedSymbols(syms []elfx.Sym) ([]uint64, error) {
	var starts []uint64
	for _, sym := range syms {
		if !sym.Func {
			continue
		}
		t := s.Tags(sym.Addr)
		if sym.Thumb && s.Arch() != arch.Thumb {
			if err := t.Set(tags.Arch, arch.Thumb); err != nil {
				return nil, err
			}
		}
		if err := t.Set(tags.Name, CachedDemangle(sym.Name)); err != nil {
			return nil, err
		}
		starts = append(starts, sym.Addr)
	}
	return starts, nil
}

// Package analysis is the static analysis context: it owns the memory
// image, the decoder, the tag store and the names, blocks and functions
// discovered from them.
package analysis

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
	"staticflow/internal/model"
	"staticflow/internal/tags"
)

// DefaultWindow is the number of bytes handed to the decoder per address.
const DefaultWindow = 16

// Memory reads the analyzed image. Reads past the end of mapped memory
// return what is available; unmapped addresses return no bytes.
type Memory interface {
	ReadMemory(addr uint64, n int) ([]byte, error)
}

type Static struct {
	mem     Memory
	decoder *disasm.Decoder
	window  int
	logger  *log.Logger
	store   *tags.Store

	gmu     sync.RWMutex
	globals map[string]any

	nmu    sync.Mutex
	owners map[string]uint64
	names  map[uint64]string

	fmu       sync.Mutex
	functions map[uint64]*model.Function
	blocks    map[uint64]*model.Block
	calls     map[uint64]*model.AddrSet
}

type Option func(*Static)

// WithWindow sets the per-address decode window.
func WithWindow(n int) Option {
	return func(s *Static) { s.window = n }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Static) { s.logger = l }
}

// New returns a context over mem. a is the default architecture for every
// address without its own arch tag.
func New(mem Memory, decoder *disasm.Decoder, a arch.Arch, opts ...Option) (*Static, error) {
	if err := a.Check(); err != nil {
		return nil, err
	}
	s := &Static{
		mem:       mem,
		decoder:   decoder,
		window:    DefaultWindow,
		logger:    log.Default().WithPrefix("analysis"),
		globals:   map[string]any{tags.Arch: a},
		owners:    make(map[string]uint64),
		names:     make(map[uint64]string),
		functions: make(map[uint64]*model.Function),
		blocks:    make(map[uint64]*model.Block),
		calls:     make(map[uint64]*model.AddrSet),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.window < 4 {
		return nil, fmt.Errorf("decode window of %d bytes is too small", s.window)
	}
	s.store = tags.NewStore(s)
	return s, nil
}

func (s *Static) ReadMemory(addr uint64, n int) ([]byte, error) {
	return s.mem.ReadMemory(addr, n)
}

func (s *Static) Decode(raw []byte, addr uint64, a arch.Arch) (*disasm.Instruction, error) {
	return s.decoder.Decode(raw, addr, a)
}

func (s *Static) Window() int { return s.window }

// Arch is the default architecture.
func (s *Static) Arch() arch.Arch {
	v, _ := s.GlobalTag(tags.Arch)
	return v.(arch.Arch)
}

func (s *Static) GlobalTag(name string) (any, bool) {
	s.gmu.RLock()
	defer s.gmu.RUnlock()
	v, ok := s.globals[name]
	return v, ok
}

// SetGlobalTag sets the default returned for name at every address that
// has no value of its own.
func (s *Static) SetGlobalTag(name string, value any) error {
	if name == tags.Arch {
		a, ok := value.(arch.Arch)
		if !ok || !a.Valid() {
			return &tags.InvalidTagWriteError{Tag: name, Value: value}
		}
	}
	s.gmu.Lock()
	s.globals[name] = value
	s.gmu.Unlock()
	return nil
}

// Tags returns the tag set of addr.
func (s *Static) Tags(addr uint64) *tags.Tags { return s.store.At(addr) }

// Addresses lists every address with tags.
func (s *Static) Addresses() []uint64 { return s.store.Addresses() }

// Instruction decodes addr on first use and returns the cached result
// afterwards.
func (s *Static) Instruction(addr uint64) (*disasm.Instruction, error) {
	return s.store.At(addr).Instruction()
}

// SetName gives addr a name no other address holds, appending underscores
// until it is free. The address's previous name is released. An empty name
// only releases.
func (s *Static) SetName(addr uint64, name string) string {
	s.nmu.Lock()
	defer s.nmu.Unlock()
	if old, ok := s.names[addr]; ok {
		if old == name {
			return name
		}
		delete(s.owners, old)
		delete(s.names, addr)
	}
	if name == "" {
		return ""
	}
	for {
		owner, taken := s.owners[name]
		if !taken || owner == addr {
			break
		}
		name += "_"
	}
	s.owners[name] = addr
	s.names[addr] = name
	return name
}

// Name returns the name of addr, if any.
func (s *Static) Name(addr uint64) (string, bool) {
	s.nmu.Lock()
	defer s.nmu.Unlock()
	n, ok := s.names[addr]
	return n, ok
}

// Lookup returns the address holding name.
func (s *Static) Lookup(name string) (uint64, bool) {
	s.nmu.Lock()
	defer s.nmu.Unlock()
	a, ok := s.owners[name]
	return a, ok
}

// AddCref records a control transfer from one address to another.
func (s *Static) AddCref(from, to uint64) {
	s.Tags(to).Crefs().Add(from)
	s.Tags(from).Xrefs().Add(to)
}

// Function returns the function starting at addr, if one was explored.
func (s *Static) Function(addr uint64) (*model.Function, bool) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	fn, ok := s.functions[addr]
	return fn, ok
}

// Functions returns every explored function ordered by start address.
func (s *Static) Functions() []*model.Function {
	s.fmu.Lock()
	out := make([]*model.Function, 0, len(s.functions))
	for _, fn := range s.functions {
		out = append(out, fn)
	}
	s.fmu.Unlock()
	sortFunctions(out)
	return out
}

// Callees lists the static call targets found while exploring the function
// at start.
func (s *Static) Callees(start uint64) []uint64 {
	s.fmu.Lock()
	set, ok := s.calls[start]
	s.fmu.Unlock()
	if !ok {
		return nil
	}
	return set.Sorted()
}

func (s *Static) function(start uint64) *model.Function {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	fn, ok := s.functions[start]
	if !ok {
		fn = model.NewFunction(start)
		s.functions[start] = fn
		s.calls[start] = model.NewAddrSet()
	}
	return fn
}

func (s *Static) block(start uint64) *model.Block {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	b, ok := s.blocks[start]
	if !ok {
		b = model.NewBlock(start)
		s.blocks[start] = b
	}
	return b
}

func (s *Static) callSet(start uint64) *model.AddrSet {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	return s.calls[start]
}

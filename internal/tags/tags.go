// Package tags is the per-address attribute store. Most tags are plain
// values; a small set of computed tags is filled in on first read.
package tags

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
	"staticflow/internal/model"
)

// Reserved tag names.
const (
	Instruction = "instruction"
	Len         = "len"
	Type        = "type"
	Crefs       = "crefs"
	Xrefs       = "xrefs"
	Name        = "name"
	Arch        = "arch"
	Undecoded   = "undecoded"
)

// TypeInstruction is the value of the type tag once an address has been
// decoded.
const TypeInstruction = "instruction"

var ErrInvalidTagWrite = errors.New("invalid tag write")

// InvalidTagWriteError rejects a value of the wrong type for a reserved tag.
type InvalidTagWriteError struct {
	Addr  uint64
	Tag   string
	Value any
}

func (e *InvalidTagWriteError) Error() string {
	return fmt.Sprintf("tag %q at %#x cannot hold %T", e.Tag, e.Addr, e.Value)
}

func (e *InvalidTagWriteError) Is(target error) bool { return target == ErrInvalidTagWrite }

// Context is what the store needs from its owner.
type Context interface {
	// ReadMemory returns up to n bytes at addr. A short read is not an error.
	ReadMemory(addr uint64, n int) ([]byte, error)
	Decode(raw []byte, addr uint64, a arch.Arch) (*disasm.Instruction, error)
	// GlobalTag is the fallback for tags with no per-address value.
	GlobalTag(name string) (any, bool)
	// SetName applies the naming policy and returns the name to store. An
	// empty name releases the address's current name.
	SetName(addr uint64, name string) string
	// Window is the number of bytes read per decode.
	Window() int
}

// computedTags are the tags with a default computed on first read.
var computedTags = []string{Crefs, Instruction, Xrefs}

// ComputedTags lists the tags that have a computed default.
func ComputedTags() []string {
	return slices.Clone(computedTags)
}

// Store owns the tags of every address.
type Store struct {
	ctx Context

	mu    sync.Mutex
	addrs map[uint64]*Tags

	decodes singleflight.Group
}

func NewStore(ctx Context) *Store {
	return &Store{ctx: ctx, addrs: make(map[uint64]*Tags)}
}

// At returns the tags of addr, creating an empty set on first use.
func (s *Store) At(addr uint64) *Tags {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.addrs[addr]
	if !ok {
		t = &Tags{addr: addr, store: s, vals: make(map[string]any)}
		s.addrs[addr] = t
	}
	return t
}

// Addresses lists every address that has been touched, ascending.
func (s *Store) Addresses() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.addrs))
}

// Tags is the attribute map of one address.
type Tags struct {
	addr  uint64
	store *Store

	mu   sync.Mutex
	vals map[string]any
}

func (t *Tags) Address() uint64 { return t.addr }

// Has reports a stored value without computing anything.
func (t *Tags) Has(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.vals[name]
	return ok
}

// Keys returns the names of the stored tags.
func (t *Tags) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(maps.Keys(t.vals))
}

// Get returns the value of name. A missing computed tag is computed and
// stored; any other missing tag falls back to the owner's global tags.
// The boolean is false when there is no value anywhere.
func (t *Tags) Get(name string) (any, bool, error) {
	t.mu.Lock()
	if v, ok := t.vals[name]; ok {
		t.mu.Unlock()
		return v, true, nil
	}
	switch name {
	case Instruction:
		t.mu.Unlock()
		v, err := t.decode()
		return v, err == nil, err
	case Crefs, Xrefs:
		set := model.NewAddrSet()
		t.vals[name] = set
		t.mu.Unlock()
		return set, true, nil
	}
	t.mu.Unlock()

	v, ok := t.store.ctx.GlobalTag(name)
	return v, ok, nil
}

// Set stores value under name. Reserved tags check the value's type; the
// name tag goes through the owner's naming policy first.
func (t *Tags) Set(name string, value any) error {
	switch name {
	case Instruction:
		insn, ok := value.(*disasm.Instruction)
		if !ok || insn == nil {
			return &InvalidTagWriteError{Addr: t.addr, Tag: name, Value: value}
		}
		t.mu.Lock()
		t.storeInstruction(insn)
		t.mu.Unlock()
		return nil
	case Crefs, Xrefs:
		if _, ok := value.(*model.AddrSet); !ok {
			return &InvalidTagWriteError{Addr: t.addr, Tag: name, Value: value}
		}
	case Arch:
		a, ok := value.(arch.Arch)
		if !ok || !a.Valid() {
			return &InvalidTagWriteError{Addr: t.addr, Tag: name, Value: value}
		}
	case Name:
		s, ok := value.(string)
		if !ok {
			return &InvalidTagWriteError{Addr: t.addr, Tag: name, Value: value}
		}
		value = t.store.ctx.SetName(t.addr, s)
	}
	t.mu.Lock()
	t.vals[name] = value
	t.mu.Unlock()
	return nil
}

// Delete removes name. Deleting an absent tag is a no-op.
func (t *Tags) Delete(name string) {
	t.mu.Lock()
	_, had := t.vals[name]
	delete(t.vals, name)
	t.mu.Unlock()
	if name == Name && had {
		t.store.ctx.SetName(t.addr, "")
	}
}

// Instruction returns the decoded instruction, decoding it on first use.
func (t *Tags) Instruction() (*disasm.Instruction, error) {
	v, _, err := t.Get(Instruction)
	if err != nil {
		return nil, err
	}
	return v.(*disasm.Instruction), nil
}

// Crefs is the set of addresses that transfer control here.
func (t *Tags) Crefs() *model.AddrSet { return t.set(Crefs) }

// Xrefs is the set of addresses this address transfers control to.
func (t *Tags) Xrefs() *model.AddrSet { return t.set(Xrefs) }

func (t *Tags) set(name string) *model.AddrSet {
	v, _, _ := t.Get(name)
	return v.(*model.AddrSet)
}

// ArchTag returns the per-address architecture or the global default.
func (t *Tags) ArchTag() (arch.Arch, error) {
	v, ok, _ := t.Get(Arch)
	if !ok {
		return "", fmt.Errorf("no architecture for %#x", t.addr)
	}
	a, ok := v.(arch.Arch)
	if !ok {
		return "", &InvalidTagWriteError{Addr: t.addr, Tag: Arch, Value: v}
	}
	return a, a.Check()
}

// decode fills the instruction, len and type tags together. Concurrent
// first reads of one address share a single decode; no lock is held while
// decoding.
func (t *Tags) decode() (any, error) {
	key := strconv.FormatUint(t.addr, 16)
	v, err, _ := t.store.decodes.Do(key, func() (any, error) {
		t.mu.Lock()
		if v, ok := t.vals[Instruction]; ok {
			t.mu.Unlock()
			return v, nil
		}
		t.mu.Unlock()

		a, err := t.ArchTag()
		if err != nil {
			return nil, err
		}
		ctx := t.store.ctx
		raw, err := ctx.ReadMemory(t.addr, ctx.Window())
		if err != nil {
			return nil, fmt.Errorf("read %#x: %w", t.addr, err)
		}
		insn, err := ctx.Decode(raw, t.addr, a)
		if err != nil {
			return nil, err
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if v, ok := t.vals[Instruction]; ok {
			return v, nil
		}
		t.storeInstruction(insn)
		return insn, nil
	})
	return v, err
}

// storeInstruction must be called with t.mu held.
func (t *Tags) storeInstruction(insn *disasm.Instruction) {
	t.vals[Instruction] = insn
	t.vals[Len] = insn.Size()
	t.vals[Type] = TypeInstruction
	delete(t.vals, Undecoded)
}

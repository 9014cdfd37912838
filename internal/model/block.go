// Package model holds the aggregates built from instruction destinations:
// basic blocks, functions and calling-convention descriptors.
package model

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Block is a basic block identified by its start address. Its member set
// only grows.
type Block struct {
	start uint64
	addrs *AddrSet
}

func NewBlock(start uint64) *Block {
	return &Block{start: start, addrs: NewAddrSet(start)}
}

func (b *Block) Start() uint64 { return b.start }

// End is the highest member address, which is the address of the last
// instruction rather than one past it.
func (b *Block) End() uint64 {
	end, _ := b.addrs.Max()
	return end
}

func (b *Block) Add(addr uint64)           { b.addrs.Add(addr) }
func (b *Block) Contains(addr uint64) bool { return b.addrs.Has(addr) }
func (b *Block) Addresses() []uint64       { return b.addrs.Sorted() }
func (b *Block) Len() int                  { return b.addrs.Len() }

func (b *Block) String() string {
	return fmt.Sprintf("%#x-%#x", b.start, b.End())
}

// Function groups the blocks reachable from an entry point. Blocks are
// referenced, not owned; the same block may be attached to several
// functions.
type Function struct {
	start uint64

	mu     sync.RWMutex
	blocks map[uint64]*Block
	abi    string
	nargs  int
}

func NewFunction(start uint64) *Function {
	return &Function{start: start, blocks: make(map[uint64]*Block), abi: ABIUnknown}
}

func (f *Function) Start() uint64 { return f.start }

// AddBlock attaches b. Attaching a second block with the same start keeps
// the first.
func (f *Function) AddBlock(b *Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocks[b.Start()]; !ok {
		f.blocks[b.Start()] = b
	}
}

// Block returns the attached block starting at addr.
func (f *Function) Block(addr uint64) (*Block, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.blocks[addr]
	return b, ok
}

// Blocks returns the attached blocks ordered by start address.
func (f *Function) Blocks() []*Block {
	f.mu.RLock()
	out := make([]*Block, 0, len(f.blocks))
	for _, b := range f.blocks {
		out = append(out, b)
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Block) int { return cmp.Compare(a.Start(), b.Start()) })
	return out
}

// ABI returns the name of the current calling convention.
func (f *Function) ABI() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.abi
}

// UpdateABI replaces the calling convention. Names are not validated.
func (f *Function) UpdateABI(name string) {
	f.mu.Lock()
	f.abi = name
	f.mu.Unlock()
}

func (f *Function) NArgs() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nargs
}

func (f *Function) SetNArgs(n int) {
	f.mu.Lock()
	f.nargs = n
	f.mu.Unlock()
}

func (f *Function) String() string {
	blocks := f.Blocks()
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.String()
	}
	return fmt.Sprintf("%#x %v", f.start, parts)
}

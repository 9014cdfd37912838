// Package elfx opens ELF binaries, detects their architecture, maps
// virtual addresses to file offsets and collects function symbols.
package elfx

import (
	"cmp"
	"debug/elf"
	"fmt"
	"os"
	"slices"
	"strings"
	"syscall"

	"staticflow/internal/arch"
)

type Image struct {
	Path     string
	File     *elf.File
	All      []byte
	Arch     arch.Arch
	Entry    uint64
	Loads    []Seg
	Sections []Section
	Text     Section
	Dynsyms  []Sym
	Syms     []Sym
	f        *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
	Exec          bool
}

// Sym is a symbol with a non-zero value. Thumb is set for ARM function
// symbols whose low address bit marks Thumb code; Addr has that bit
// cleared.
type Sym struct {
	Name  string
	Addr  uint64
	Size  uint64
	Func  bool
	Thumb bool
	IsPLT bool
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	a, err := Arch(f.FileHeader, f.Entry)
	if err != nil {
		f.Close()
		return nil, err
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	var all []byte
	if fi.Size() > 0 {
		all, err = syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
		if err != nil {
			of.Close()
			f.Close()
			return nil, fmt.Errorf("mmap file: %w", err)
		}
	}

	im := &Image{Path: path, File: f, All: all, Arch: a, Entry: f.Entry, f: of}
	if a == arch.Thumb {
		im.Entry &^= 1
	}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Type == elf.SHT_NOBITS || s.Size == 0 {
			continue
		}
		sec := Section{s.Name, s.Addr, s.Offset, s.Size, s.Flags&elf.SHF_EXECINSTR != 0}
		im.Sections = append(im.Sections, sec)
		if s.Name == ".text" {
			im.Text = sec
		}
	}

	im.Dynsyms = im.symbols(f.DynamicSymbols)
	im.Syms = im.symbols(f.Symbols)

	// Stripped: fall back to the first executable segment.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz, true}
				break
			}
		}
	}
	return im, nil
}

// Arch maps an ELF header to an architecture. 32-bit ARM images whose
// entry point has the low bit set are Thumb.
func Arch(h elf.FileHeader, entry uint64) (arch.Arch, error) {
	switch h.Machine {
	case elf.EM_386:
		return arch.X86, nil
	case elf.EM_X86_64:
		return arch.X8664, nil
	case elf.EM_ARM:
		if entry&1 != 0 {
			return arch.Thumb, nil
		}
		return arch.ARM, nil
	case elf.EM_AARCH64:
		return arch.AArch64, nil
	case elf.EM_PPC:
		return arch.PPC, nil
	case elf.EM_MIPS:
		if h.Class != elf.ELFCLASS32 {
			break
		}
		if h.Data == elf.ELFDATA2LSB {
			return arch.MIPSEL, nil
		}
		return arch.MIPS, nil
	}
	return "", &arch.UnsupportedError{Name: fmt.Sprintf("%s/%s", h.Machine, h.Class)}
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		err3 := im.File.Close()
		if err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// ReadMemory returns up to n bytes at va, stopping at the end of the
// containing segment. Unmapped addresses return no bytes and no error.
func (im *Image) ReadMemory(va uint64, n int) ([]byte, error) {
	for _, l := range im.Loads {
		if va < l.Vaddr || va >= l.Vaddr+l.Filesz {
			continue
		}
		off := l.Off + (va - l.Vaddr)
		end := min(off+uint64(n), l.Off+l.Filesz, uint64(len(im.All)))
		if off >= end {
			return nil, nil
		}
		return im.All[off:end], nil
	}
	return nil, nil
}

// IsExec reports whether va lies in an executable segment.
func (im *Image) IsExec(va uint64) bool {
	for _, l := range im.Loads {
		if l.Flags&elf.PF_X != 0 && va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return true
		}
	}
	return false
}

// FunctionSymbols returns the defined function symbols of both tables,
// one per address, ordered by address. Static names win over dynamic ones.
func (im *Image) FunctionSymbols() []Sym {
	seen := make(map[uint64]bool)
	var out []Sym
	for _, sym := range slices.Concat(im.Syms, im.Dynsyms) {
		if !sym.Func || sym.IsPLT || seen[sym.Addr] {
			continue
		}
		seen[sym.Addr] = true
		out = append(out, sym)
	}
	slices.SortFunc(out, func(a, b Sym) int { return cmp.Compare(a.Addr, b.Addr) })
	return out
}

// FindFunctionByName searches for a function by name in the symbol tables.
func (im *Image) FindFunctionByName(name string) (Sym, bool) {
	for _, sym := range slices.Concat(im.Syms, im.Dynsyms) {
		if sym.Name == name && sym.Func {
			return sym, true
		}
	}
	return Sym{}, false
}

func (im *Image) symbols(read func() ([]elf.Symbol, error)) []Sym {
	syms, err := read()
	if err != nil {
		return nil // table absent or stripped
	}
	var out []Sym
	for _, sym := range syms {
		if sym.Value == 0 || sym.Section == elf.SHN_UNDEF {
			continue
		}
		s := Sym{
			Name:  sym.Name,
			Addr:  sym.Value,
			Size:  sym.Size,
			Func:  elf.ST_TYPE(sym.Info) == elf.STT_FUNC,
			IsPLT: strings.HasSuffix(sym.Name, "@plt"),
		}
		if s.Func && im.File.Machine == elf.EM_ARM && s.Addr&1 != 0 {
			s.Addr &^= 1
			s.Thumb = true
		}
		out = append(out, s)
	}
	return out
}

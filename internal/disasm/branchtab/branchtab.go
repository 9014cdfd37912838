// Package branchtab is the secondary decoding backend. It recognizes the
// control-flow encodings of the fixed-width instruction sets directly from
// their bit patterns and reports every other word as data (".word",
// ".short", ".long"), so that exploration can always make progress. Branch
// targets are published as a structured jump list.
package branchtab

import (
	"fmt"
	"strings"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

// Name is the registry name of this backend.
const Name = "branchtab"

// Backend decodes branch encodings for Thumb, ARM, AArch64, PowerPC and
// MIPS. x86 is variable length and is not handled.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return Name }

func (b *Backend) Decode(raw []byte, addr uint64, a arch.Arch) (*disasm.Facts, error) {
	switch a {
	case arch.Thumb:
		f, err := decodeThumb(raw, addr)
		if err != nil {
			return nil, err
		}
		return link(f, "lr"), nil
	case arch.ARM:
		w, err := word(raw, addr, a)
		if err != nil {
			return nil, err
		}
		return link(decodeARM(w, addr), "lr"), nil
	case arch.AArch64:
		w, err := word(raw, addr, a)
		if err != nil {
			return nil, err
		}
		return link(decodeA64(w, addr), "x30"), nil
	case arch.PPC:
		w, err := word(raw, addr, a)
		if err != nil {
			return nil, err
		}
		return decodePPC(w, addr), nil
	case arch.MIPS, arch.MIPSEL:
		w, err := word(raw, addr, a)
		if err != nil {
			return nil, err
		}
		return link(decodeMIPS(w, addr), "$ra"), nil
	}
	return nil, fail(raw, addr, a, fmt.Errorf("%s has no decoder for %s", Name, a))
}

func fail(raw []byte, addr uint64, a arch.Arch, err error) error {
	return &disasm.DecodeError{Backend: Name, Addr: addr, Arch: a, Len: len(raw), Err: err}
}

func word(raw []byte, addr uint64, a arch.Arch) (uint32, error) {
	if len(raw) < 4 {
		return 0, fail(raw, addr, a, fmt.Errorf("need 4 bytes, have %d", len(raw)))
	}
	return a.ByteOrder().Uint32(raw), nil
}

// link records the link register write of a call that has not named its
// own destination register.
func link(f *disasm.Facts, reg string) *disasm.Facts {
	if f.Groups.Has(disasm.GroupCall) && len(f.RegsWritten) == 0 {
		f.RegsWritten = []string{reg}
	}
	return f
}

// data describes a word that is not a recognized control-flow encoding.
func data(addr uint64, size int, directive string, value uint32) *disasm.Facts {
	digits := size * 2
	return &disasm.Facts{
		Address:  addr,
		Size:     size,
		Mnemonic: directive,
		OpStr:    fmt.Sprintf("0x%0*x", digits, value),
		Operands: []disasm.Operand{{Kind: disasm.OpImm, Imm: uint64(value)}},
	}
}

// direct builds facts for a branch with a static target. prefix lists
// register operands printed ahead of the target, as in "cbz r0, 0x10".
func direct(addr uint64, size int, mnemonic string, target uint64, kind disasm.DestKind, g disasm.Group, prefix ...string) *disasm.Facts {
	op := fmt.Sprintf("%#x", target)
	if len(prefix) > 0 {
		op = strings.Join(prefix, ", ") + ", " + op
	}
	f := &disasm.Facts{
		Address:  addr,
		Size:     size,
		Mnemonic: mnemonic,
		OpStr:    op,
		Groups:   g,
		IL:       []disasm.Jump{{Target: target, Kind: kind}},
	}
	if len(prefix) > 0 {
		f.RegsRead = append([]string(nil), prefix...)
	}
	for _, reg := range prefix {
		f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpReg, Reg: reg, Text: reg})
	}
	f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpImm, Imm: target, Text: fmt.Sprintf("%#x", target)})
	return f
}

// indirect builds facts for a register branch; its target is unknown.
func indirect(addr uint64, size int, mnemonic, reg string, g disasm.Group) *disasm.Facts {
	return &disasm.Facts{
		Address:  addr,
		Size:     size,
		Mnemonic: mnemonic,
		OpStr:    reg,
		Operands: []disasm.Operand{{Kind: disasm.OpReg, Reg: reg, Text: reg}},
		RegsRead: []string{reg},
		Groups:   g,
		IL:       []disasm.Jump{},
	}
}

func sext(v uint32, bits uint) int64 {
	return arch.SignExtend(uint64(v), bits)
}

func rel(addr uint64, off int64, a arch.Arch) uint64 {
	return a.Wrap(addr + uint64(off))
}

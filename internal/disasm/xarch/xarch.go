// Package xarch is the primary decoding backend, built on the
// golang.org/x/arch disassemblers. It covers x86, ARM (ARM mode only),
// AArch64 and PowerPC; Thumb and MIPS are reported as decode failures so
// the facade moves on to the next backend.
package xarch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

// Name is the registry name of this backend.
const Name = "xarch"

// Backend decodes with golang.org/x/arch. The zero value is ready to use.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return Name }

func (b *Backend) Decode(raw []byte, addr uint64, a arch.Arch) (*disasm.Facts, error) {
	switch a {
	case arch.X86, arch.X8664:
		return b.decodeX86(raw, addr, a)
	case arch.ARM:
		return b.decodeARM(raw, addr)
	case arch.AArch64:
		return b.decodeARM64(raw, addr)
	case arch.PPC:
		return b.decodePPC(raw, addr)
	}
	return nil, fail(raw, addr, a, fmt.Errorf("%s has no decoder for %s", Name, a))
}

func fail(raw []byte, addr uint64, a arch.Arch, err error) error {
	return &disasm.DecodeError{Backend: Name, Addr: addr, Arch: a, Len: len(raw), Err: err}
}

// relTarget resolves a PC-relative displacement against base, reading the
// displacement at the architecture's word size.
func relTarget(base uint64, disp int64, a arch.Arch) uint64 {
	off := uint64(disp)
	if a.Bits() == 32 {
		off = uint64(uint32(disp))
	}
	return a.Wrap(base + uint64(arch.CalcOffset(off, a)))
}

// splitText separates "mnemonic operands".
func splitText(text string) (string, string) {
	m, ops, _ := strings.Cut(strings.TrimSpace(text), " ")
	return m, strings.TrimSpace(ops)
}

var armImmRe = regexp.MustCompile(`#-?(0x[0-9a-f]+|[0-9]+)`)

// hexImmediates rewrites decimal "#imm" operands as hex so the address
// evaluator, which reads immediates as hex, sees one notation.
func hexImmediates(s string) string {
	return armImmRe.ReplaceAllStringFunc(s, func(m string) string {
		body := strings.TrimPrefix(m, "#")
		neg := strings.HasPrefix(body, "-")
		body = strings.TrimPrefix(body, "-")
		if strings.HasPrefix(body, "0x") {
			return m
		}
		n, err := strconv.ParseUint(body, 10, 64)
		if err != nil {
			return m
		}
		if neg {
			return fmt.Sprintf("#-%#x", n)
		}
		return fmt.Sprintf("#%#x", n)
	})
}

// attachText fills Operand.Text from the rendered operand string when the
// two line up one to one.
func attachText(ops []disasm.Operand, opStr string) []disasm.Operand {
	parts := disasm.SplitOperands(opStr)
	if len(parts) != len(ops) {
		return ops
	}
	for i := range ops {
		ops[i].Text = parts[i]
	}
	return ops
}

// Package disasm turns raw bytes into classified instructions. Backends
// report what they can decode as Facts; Classify applies the per-family
// control-flow rules; Decoder chains backends with fallback and caching.
package disasm

import (
	"errors"

	"staticflow/internal/arch"
)

// Stream is a linear sequence of instructions.
type Stream []*Instruction

// minUnit is how far a linear sweep advances past bytes no backend accepts.
func minUnit(a arch.Arch) int {
	switch {
	case a.Family() == arch.FamilyX86:
		return 1
	case a == arch.Thumb:
		return 2
	default:
		return 4
	}
}

// Sweep decodes code linearly starting at base. Undecodable bytes are
// skipped one minimum instruction unit at a time and reported through
// skipped, which may be nil. Only non-decode errors stop the sweep.
func (d *Decoder) Sweep(code []byte, base uint64, a arch.Arch, skipped func(addr uint64)) (Stream, error) {
	if err := a.Check(); err != nil {
		return nil, err
	}
	var out Stream
	for off := 0; off < len(code); {
		addr := a.Wrap(base + uint64(off))
		end := min(off+a.MaxInsnLen(), len(code))
		insn, err := d.Decode(code[off:end], addr, a)
		if err != nil {
			if !errors.Is(err, ErrDecodeFailure) {
				return out, err
			}
			if skipped != nil {
				skipped(addr)
			}
			off += minUnit(a)
			continue
		}
		out = append(out, insn)
		off += insn.Size()
	}
	return out, nil
}

package analysis

import (
	"fmt"
	"strings"

	"staticflow/internal/addrexpr"
	"staticflow/internal/disasm"
	"staticflow/internal/model"
	"staticflow/internal/tags"
)

// Line is one row of a listing: an instruction, a label, or an undecoded
// address.
type Line struct {
	VA          uint64
	Bytes       []byte
	Mnemonic    string
	Operands    string
	Annotations []string // comments shown after the operands
}

// String formats the line with annotations after column 50.
func (l Line) String() string {
	if strings.HasSuffix(l.Mnemonic, ":") {
		return fmt.Sprintf("%x  %s", l.VA, l.Mnemonic)
	}
	base := fmt.Sprintf("%-10x %-8s %-30s", l.VA, l.Mnemonic, l.Operands)
	if len(l.Annotations) > 0 {
		return fmt.Sprintf("%s ; %s", base, strings.Join(l.Annotations, ", "))
	}
	return strings.TrimRight(base, " ")
}

// Annotate renders insn as a listing line. Branch targets with names are
// annotated with them; regs, when non-nil, resolves memory operands.
func (s *Static) Annotate(insn *disasm.Instruction, regs addrexpr.Snapshot) Line {
	mnemonic, operands, _ := strings.Cut(insn.Text(regs), " ")
	l := Line{
		VA:       insn.Address(),
		Bytes:    insn.Bytes(),
		Mnemonic: mnemonic,
		Operands: operands,
	}
	for _, d := range insn.Dests() {
		if d.Kind == disasm.DestImplicit {
			continue
		}
		if n, ok := s.Name(d.Addr); ok {
			l.Annotations = append(l.Annotations, n)
		}
	}
	if b := insn.Backend(); b != "" && b != s.decoder.Backends()[0] {
		l.Annotations = append(l.Annotations, "via "+b)
	}
	return l
}

// Undecoded renders an address no backend could decode.
func Undecoded(addr uint64) Line {
	return Line{VA: addr, Mnemonic: "??", Annotations: []string{"undecoded"}}
}

// Listing renders the explored blocks of fn in address order, each
// preceded by a label.
func (s *Static) Listing(fn *model.Function, regs addrexpr.Snapshot) []Line {
	var out []Line
	for _, b := range fn.Blocks() {
		out = append(out, Line{VA: b.Start(), Mnemonic: s.label(b.Start()) + ":"})
		for _, addr := range b.Addresses() {
			t := s.Tags(addr)
			if t.Has(tags.Undecoded) {
				out = append(out, Undecoded(addr))
				continue
			}
			insn, err := t.Instruction()
			if err != nil {
				out = append(out, Undecoded(addr))
				continue
			}
			l := s.Annotate(insn, regs)
			if n := t.Crefs().Len(); n > 0 && addr != b.Start() {
				l.Annotations = append(l.Annotations, fmt.Sprintf("%d crefs", n))
			}
			out = append(out, l)
		}
	}
	return out
}

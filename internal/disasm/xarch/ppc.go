package xarch

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/ppc64/ppc64asm"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

func (b *Backend) decodePPC(raw []byte, addr uint64) (*disasm.Facts, error) {
	inst, err := ppc64asm.Decode(raw, binary.BigEndian)
	if err != nil {
		return nil, fail(raw, addr, arch.PPC, err)
	}
	if inst.Op == 0 {
		return nil, fail(raw, addr, arch.PPC, fmt.Errorf("unknown instruction %#08x", inst.Enc))
	}

	f := &disasm.Facts{Address: addr, Size: inst.Len}
	if ppcBranch(inst.Op) {
		ppcBranchFacts(f, inst, addr)
		return f, nil
	}

	f.Mnemonic, f.OpStr = splitText(ppc64asm.GNUSyntax(inst, addr))
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch v := arg.(type) {
		case ppc64asm.Reg:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpReg, Reg: v.String()})
		case ppc64asm.Imm:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpImm, Imm: uint64(v)})
		case ppc64asm.Offset:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpMem, Imm: uint64(v)})
		default:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpInvalid})
		}
	}
	f.RegsRead, f.RegsWritten = ppcRegSets(inst)
	return f, nil
}

func ppcBranch(op ppc64asm.Op) bool {
	switch op {
	case ppc64asm.B, ppc64asm.BA, ppc64asm.BL, ppc64asm.BLA,
		ppc64asm.BC, ppc64asm.BCA, ppc64asm.BCL, ppc64asm.BCLA,
		ppc64asm.BCLR, ppc64asm.BCLRL, ppc64asm.BCCTR, ppc64asm.BCCTRL:
		return true
	}
	return false
}

// ppcBranchFacts renders branches with their extended mnemonics (beq, bdnz,
// blr, bctrl, ...). The target, when static, is the only structured operand.
func ppcBranchFacts(f *disasm.Facts, inst ppc64asm.Inst, addr uint64) {
	op := inst.Op.String()
	mnemonic := op
	var crField int

	if strings.HasPrefix(op, "bc") {
		bo := int(inst.Args[0].(ppc64asm.Imm))
		bi := int(inst.Args[1].(ppc64asm.CondReg) - ppc64asm.Cond0LT)
		mnemonic, crField = disasm.PPCBranchMnemonic(op, bo, bi)
		f.RegsRead, f.RegsWritten = disasm.PPCBranchRegs(op, bo, bi)
		if bo&0x14 != 0x14 {
			f.Groups |= disasm.GroupConditional
		}
	}

	var targetText string
	for _, arg := range inst.Args {
		var target uint64
		switch v := arg.(type) {
		case ppc64asm.PCRel:
			target = relTarget(addr, int64(v), arch.PPC)
		case ppc64asm.Label:
			target = uint64(v)
		default:
			continue
		}
		f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpImm, Imm: target, Text: fmt.Sprintf("%#x", target)})
		targetText = fmt.Sprintf("%#x", target)
	}

	var parts []string
	if crField != 0 {
		parts = append(parts, fmt.Sprintf("cr%d", crField))
	}
	if targetText != "" {
		parts = append(parts, targetText)
	}
	f.Mnemonic = mnemonic
	f.OpStr = strings.Join(parts, ", ")

	switch {
	case mnemonic == "blr":
		f.Groups |= disasm.GroupReturn
	case strings.HasSuffix(op, "l") || strings.HasSuffix(op, "la"):
		f.Groups |= disasm.GroupCall
		if len(f.RegsWritten) == 0 {
			f.RegsWritten = []string{"lr"}
		}
	default:
		f.Groups |= disasm.GroupJump
	}
}

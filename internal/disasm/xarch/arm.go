package xarch

import (
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

func (b *Backend) decodeARM(raw []byte, addr uint64) (*disasm.Facts, error) {
	inst, err := armasm.Decode(raw, armasm.ModeARM)
	if err != nil {
		return nil, fail(raw, addr, arch.ARM, err)
	}
	mnemonic, opStr := splitText(armasm.GNUSyntax(inst))
	f := &disasm.Facts{
		Address:  addr,
		Size:     inst.Len,
		Mnemonic: mnemonic,
		OpStr:    hexImmediates(opStr),
	}

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch v := arg.(type) {
		case armasm.PCRel:
			// PC reads two instructions ahead in ARM mode.
			target := relTarget(addr+8, int64(v), arch.ARM)
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpImm, Imm: target})
			f.OpStr = fmt.Sprintf("#%#x", target)
		case armasm.Imm:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpImm, Imm: uint64(v)})
		case armasm.Reg:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpReg, Reg: strings.ToLower(v.String())})
		case armasm.Mem:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpMem})
		default:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpInvalid})
		}
	}
	f.Operands = attachText(f.Operands, f.OpStr)
	f.RegsRead, f.RegsWritten = armRegSets(inst)
	f.Groups = armGroups(mnemonic, f.OpStr)
	return f, nil
}

func (b *Backend) decodeARM64(raw []byte, addr uint64) (*disasm.Facts, error) {
	inst, err := arm64asm.Decode(raw)
	if err != nil {
		return nil, fail(raw, addr, arch.AArch64, err)
	}

	f := &disasm.Facts{
		Address:  addr,
		Size:     4,
		Mnemonic: strings.ToLower(inst.Op.String()),
	}
	args := inst.Args[:]
	switch inst.Op {
	case arm64asm.RET:
		if r, ok := inst.Args[0].(arm64asm.Reg); ok && r == arm64asm.X30 {
			args = nil
		}
	case arm64asm.B:
		if c, ok := inst.Args[0].(arm64asm.Cond); ok {
			f.Mnemonic = "b." + strings.ToLower(c.String())
			args = args[1:]
		}
	}

	var texts []string
	for _, arg := range args {
		if arg == nil {
			break
		}
		op, text := arm64Operand(inst, arg, addr)
		f.Operands = append(f.Operands, op)
		texts = append(texts, text)
	}
	f.OpStr = hexImmediates(strings.Join(texts, ", "))
	f.Operands = attachText(f.Operands, f.OpStr)
	f.RegsRead, f.RegsWritten = arm64RegSets(inst)
	f.Groups = armGroups(f.Mnemonic, f.OpStr)
	return f, nil
}

func arm64Operand(inst arm64asm.Inst, arg arm64asm.Arg, addr uint64) (disasm.Operand, string) {
	switch v := arg.(type) {
	case arm64asm.PCRel:
		base := addr
		if inst.Op == arm64asm.ADRP {
			base = addr &^ 0xfff
		}
		target := relTarget(base, int64(v), arch.AArch64)
		return disasm.Operand{Kind: disasm.OpImm, Imm: target}, fmt.Sprintf("#%#x", target)
	case arm64asm.Imm:
		return disasm.Operand{Kind: disasm.OpImm, Imm: uint64(v.Imm)}, strings.ToLower(v.String())
	case arm64asm.Imm64:
		return disasm.Operand{Kind: disasm.OpImm, Imm: v.Imm}, strings.ToLower(v.String())
	case arm64asm.Reg:
		name := strings.ToLower(v.String())
		return disasm.Operand{Kind: disasm.OpReg, Reg: name}, name
	case arm64asm.RegSP:
		name := strings.ToLower(v.String())
		return disasm.Operand{Kind: disasm.OpReg, Reg: name}, name
	case arm64asm.MemImmediate, arm64asm.MemExtend:
		return disasm.Operand{Kind: disasm.OpMem}, strings.ToLower(v.String())
	}
	return disasm.Operand{Kind: disasm.OpInvalid}, strings.ToLower(arg.String())
}

// armGroups derives group flags for the ARM family from the rendered text.
func armGroups(mnemonic, opStr string) disasm.Group {
	var g disasm.Group
	switch {
	case mnemonic == "ret" || mnemonic == "bx" && opStr == "lr":
		g |= disasm.GroupReturn
	case strings.HasPrefix(mnemonic, "bl") && mnemonic != "bls" && mnemonic != "blt" && mnemonic != "ble" && mnemonic != "blo":
		g |= disasm.GroupCall
	case mnemonic == "b" || mnemonic == "bx" || mnemonic == "br":
		g |= disasm.GroupJump
	case strings.HasPrefix(mnemonic, "b.") || strings.HasPrefix(mnemonic, "cb") || strings.HasPrefix(mnemonic, "tb"):
		g |= disasm.GroupJump | disasm.GroupConditional
	case mnemonic == "svc" || mnemonic == "hvc" || mnemonic == "smc":
		g |= disasm.GroupInterrupt
	}
	return g
}

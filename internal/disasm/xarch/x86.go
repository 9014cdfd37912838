package xarch

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

// Words IntelSyntax may print ahead of the mnemonic.
var x86Prefixes = map[string]bool{
	"lock": true, "rep": true, "repe": true, "repz": true, "repne": true, "repnz": true,
	"xacquire": true, "xrelease": true, "bnd": true, "notrack": true,
	"data16": true, "data32": true, "addr16": true, "addr32": true, "addr64": true,
	"rex": true, "rex.w": true, "cs": true, "ds": true, "es": true, "fs": true, "gs": true, "ss": true,
	"pt": true, "pn": true,
}

var x86CondCodes = map[string]bool{
	"A": true, "AE": true, "B": true, "BE": true, "E": true, "G": true, "GE": true, "L": true,
	"LE": true, "NE": true, "NO": true, "NP": true, "NS": true, "O": true, "P": true, "S": true,
}

var x86FlagReaders = map[x86asm.Op]bool{
	x86asm.ADC: true, x86asm.SBB: true, x86asm.RCL: true, x86asm.RCR: true,
	x86asm.PUSHF: true, x86asm.PUSHFD: true, x86asm.PUSHFQ: true, x86asm.LAHF: true,
	x86asm.CMC: true, x86asm.INTO: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

var x86FlagWriters = map[x86asm.Op]bool{
	x86asm.ADD: true, x86asm.SUB: true, x86asm.ADC: true, x86asm.SBB: true, x86asm.AND: true,
	x86asm.OR: true, x86asm.XOR: true, x86asm.CMP: true, x86asm.TEST: true, x86asm.INC: true,
	x86asm.DEC: true, x86asm.NEG: true, x86asm.SHL: true, x86asm.SHR: true, x86asm.SAR: true,
	x86asm.ROL: true, x86asm.ROR: true, x86asm.RCL: true, x86asm.RCR: true, x86asm.MUL: true,
	x86asm.IMUL: true, x86asm.DIV: true, x86asm.IDIV: true, x86asm.BT: true, x86asm.BTS: true,
	x86asm.BTR: true, x86asm.BTC: true, x86asm.BSF: true, x86asm.BSR: true, x86asm.POPCNT: true,
	x86asm.LZCNT: true, x86asm.TZCNT: true, x86asm.CMPXCHG: true, x86asm.XADD: true,
	x86asm.STC: true, x86asm.CLC: true, x86asm.CMC: true, x86asm.STD: true, x86asm.CLD: true,
	x86asm.POPF: true, x86asm.POPFD: true, x86asm.POPFQ: true, x86asm.SAHF: true,
	x86asm.COMISS: true, x86asm.COMISD: true, x86asm.UCOMISS: true, x86asm.UCOMISD: true,
}

// Ops whose first operand is only written.
var x86PureWrite = map[x86asm.Op]bool{
	x86asm.MOV: true, x86asm.MOVZX: true, x86asm.MOVSX: true, x86asm.MOVSXD: true,
	x86asm.LEA: true, x86asm.POP: true,
}

// Ops whose first operand is only read.
var x86NoWrite = map[x86asm.Op]bool{
	x86asm.CMP: true, x86asm.TEST: true, x86asm.PUSH: true, x86asm.JMP: true, x86asm.CALL: true,
	x86asm.BT: true, x86asm.LJMP: true, x86asm.LCALL: true,
}

func (b *Backend) decodeX86(raw []byte, addr uint64, a arch.Arch) (*disasm.Facts, error) {
	mode := 32
	if a == arch.X8664 {
		mode = 64
	}
	inst, err := x86asm.Decode(raw, mode)
	if err != nil {
		return nil, fail(raw, addr, a, err)
	}

	mnemonic, opStr := splitX86(x86asm.IntelSyntax(inst, addr, nil))
	f := &disasm.Facts{
		Address:  addr,
		Size:     inst.Len,
		Mnemonic: mnemonic,
		OpStr:    opStr,
		Groups:   x86Groups(inst.Op),
	}

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch v := arg.(type) {
		case x86asm.Rel:
			target := relTarget(addr+uint64(inst.Len), int64(v), a)
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpImm, Imm: target})
		case x86asm.Imm:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpImm, Imm: uint64(v)})
		case x86asm.Reg:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpReg, Reg: x86RegName(v)})
		case x86asm.Mem:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpMem})
		default:
			f.Operands = append(f.Operands, disasm.Operand{Kind: disasm.OpInvalid})
		}
	}
	if len(f.Operands) > 0 && inst.Args[0] != nil {
		if _, ok := inst.Args[0].(x86asm.Rel); ok {
			f.OpStr = fmt.Sprintf("%#x", f.Operands[0].Imm)
		}
	}
	f.Operands = attachText(f.Operands, f.OpStr)
	f.RegsRead, f.RegsWritten = x86Regs(inst, a)
	return f, nil
}

func splitX86(text string) (string, string) {
	words := strings.Fields(text)
	for len(words) > 1 && x86Prefixes[words[0]] {
		words = words[1:]
	}
	if len(words) == 0 {
		return "", ""
	}
	rest := strings.TrimSpace(text[strings.Index(text, words[0])+len(words[0]):])
	return words[0], rest
}

func x86RegName(r x86asm.Reg) string {
	return strings.ToLower(r.String())
}

// x86CondOp reports Jcc/SETcc/CMOVcc style ops that test the flags.
func x86CondOp(op x86asm.Op) bool {
	name := op.String()
	for _, p := range []string{"CMOV", "SET", "J"} {
		if cc, ok := strings.CutPrefix(name, p); ok && x86CondCodes[cc] {
			return true
		}
	}
	return false
}

func x86Groups(op x86asm.Op) disasm.Group {
	var g disasm.Group
	switch op {
	case x86asm.JMP, x86asm.LJMP:
		g |= disasm.GroupJump
	case x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		g |= disasm.GroupJump | disasm.GroupConditional
	case x86asm.CALL, x86asm.LCALL:
		g |= disasm.GroupCall
	case x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ:
		g |= disasm.GroupReturn
	case x86asm.INT, x86asm.INTO, x86asm.SYSCALL, x86asm.SYSENTER:
		g |= disasm.GroupInterrupt
	case x86asm.HLT, x86asm.UD1, x86asm.UD2:
		g |= disasm.GroupTerminator
	}
	if strings.HasPrefix(op.String(), "J") && x86CondOp(op) {
		g |= disasm.GroupJump | disasm.GroupConditional
	}
	return g
}

// x86Regs approximates the register read/write sets. The decoder does not
// model flags, so "eflags" is synthesized from the opcode.
func x86Regs(inst x86asm.Inst, a arch.Arch) (read, written []string) {
	for i, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch v := arg.(type) {
		case x86asm.Reg:
			name := x86RegName(v)
			if i > 0 || !x86PureWrite[inst.Op] {
				addReg(&read, name)
			}
			if i == 0 && !x86NoWrite[inst.Op] {
				addReg(&written, name)
			}
		case x86asm.Mem:
			if v.Base != 0 {
				addReg(&read, x86RegName(v.Base))
			}
			if v.Index != 0 {
				addReg(&read, x86RegName(v.Index))
			}
		}
	}

	switch inst.Op {
	case x86asm.PUSH, x86asm.POP, x86asm.CALL, x86asm.RET, x86asm.PUSHF, x86asm.PUSHFD,
		x86asm.PUSHFQ, x86asm.POPF, x86asm.POPFD, x86asm.POPFQ, x86asm.LEAVE:
		sp := "esp"
		if a == arch.X8664 {
			sp = "rsp"
		}
		addReg(&read, sp)
		addReg(&written, sp)
	}

	if x86FlagReaders[inst.Op] || x86CondOp(inst.Op) {
		addReg(&read, "eflags")
	}
	if x86FlagWriters[inst.Op] {
		addReg(&written, "eflags")
	}
	return read, written
}

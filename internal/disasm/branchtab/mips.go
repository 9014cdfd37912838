package branchtab

import (
	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

var mipsRegs = [32]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

// REGIMM branches keyed by the rt field.
var mipsRegimm = map[uint32]string{
	0x00: "bltz", 0x01: "bgez", 0x02: "bltzl", 0x03: "bgezl",
	0x10: "bltzal", 0x11: "bgezal", 0x12: "bltzall", 0x13: "bgezall",
}

// I-type branches keyed by opcode. Each compares rs (and rt for beq/bne).
var mipsBranches = map[uint32]string{
	0x04: "beq", 0x05: "bne", 0x06: "blez", 0x07: "bgtz",
	0x14: "beql", 0x15: "bnel", 0x16: "blezl", 0x17: "bgtzl",
}

// decodeMIPS recognizes MIPS32 jumps and branches. Targets are relative to
// the delay slot; the fallthrough edge is the delay slot itself.
func decodeMIPS(inst uint32, addr uint64) *disasm.Facts {
	op := inst >> 26
	rs := (inst >> 21) & 0x1f
	rt := (inst >> 16) & 0x1f
	branch := rel(addr, 4+sext((inst&0xffff)<<2, 18), arch.MIPS)
	cond := disasm.GroupJump | disasm.GroupConditional

	switch op {
	case 0x00:
		switch inst & 0x3f {
		case 0x08:
			g := disasm.GroupJump
			if rs == 31 {
				g = disasm.GroupReturn
			}
			return indirect(addr, 4, "jr", mipsRegs[rs], g)
		case 0x09:
			rd := (inst >> 11) & 0x1f
			f := indirect(addr, 4, "jalr", mipsRegs[rs], disasm.GroupCall)
			if rd != 31 {
				f.OpStr = mipsRegs[rd] + ", " + mipsRegs[rs]
			}
			f.RegsWritten = []string{mipsRegs[rd]}
			return f
		case 0x0d:
			return &disasm.Facts{Address: addr, Size: 4, Mnemonic: "break", Groups: disasm.GroupInterrupt}
		case 0x0c:
			return &disasm.Facts{Address: addr, Size: 4, Mnemonic: "syscall", Groups: disasm.GroupInterrupt}
		}
	case 0x02, 0x03:
		target := arch.MIPS.Wrap((addr+4)&0xf0000000 | uint64(inst&0x03ffffff)<<2)
		if op == 0x03 {
			return direct(addr, 4, "jal", target, disasm.DestCall, disasm.GroupCall)
		}
		return direct(addr, 4, "j", target, disasm.DestJump, disasm.GroupJump)
	case 0x01:
		m, ok := mipsRegimm[rt]
		if !ok {
			break
		}
		if m == "bgezal" && rs == 0 {
			return direct(addr, 4, "bal", branch, disasm.DestCJump, disasm.GroupCall)
		}
		f := direct(addr, 4, m, branch, disasm.DestCJump, cond, mipsRegs[rs])
		if rt&0x10 != 0 {
			f.RegsWritten = []string{"$ra"}
		}
		return f
	case 0x04:
		switch {
		case rs == 0 && rt == 0:
			return direct(addr, 4, "b", branch, disasm.DestJump, disasm.GroupJump)
		case rt == 0:
			return direct(addr, 4, "beqz", branch, disasm.DestCJump, cond, mipsRegs[rs])
		}
		return direct(addr, 4, "beq", branch, disasm.DestCJump, cond, mipsRegs[rs], mipsRegs[rt])
	case 0x05:
		if rt == 0 {
			return direct(addr, 4, "bnez", branch, disasm.DestCJump, cond, mipsRegs[rs])
		}
		return direct(addr, 4, "bne", branch, disasm.DestCJump, cond, mipsRegs[rs], mipsRegs[rt])
	default:
		if m, ok := mipsBranches[op]; ok {
			if op == 0x14 || op == 0x15 {
				return direct(addr, 4, m, branch, disasm.DestCJump, cond, mipsRegs[rs], mipsRegs[rt])
			}
			return direct(addr, 4, m, branch, disasm.DestCJump, cond, mipsRegs[rs])
		}
	}
	return data(addr, 4, ".word", inst)
}

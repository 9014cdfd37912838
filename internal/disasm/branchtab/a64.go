package branchtab

import (
	"fmt"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

var a64Conds = [16]string{"eq", "ne", "hs", "lo", "mi", "pl", "vs", "vc", "hi", "ls", "ge", "lt", "gt", "le", "al", "nv"}

func a64Reg(sf bool, n uint32) string {
	if n == 31 {
		if sf {
			return "xzr"
		}
		return "wzr"
	}
	if sf {
		return fmt.Sprintf("x%d", n)
	}
	return fmt.Sprintf("w%d", n)
}

func decodeA64(inst uint32, addr uint64) *disasm.Facts {
	rn := (inst >> 5) & 0x1f
	switch {
	case inst&0xfffffc1f == 0xd65f0000:
		f := &disasm.Facts{Address: addr, Size: 4, Mnemonic: "ret", Groups: disasm.GroupReturn}
		if rn != 30 {
			f.OpStr = a64Reg(true, rn)
		}
		return f
	case inst&0xfffffc1f == 0xd61f0000:
		g := disasm.GroupJump
		if rn == 30 {
			g = disasm.GroupReturn
		}
		return indirect(addr, 4, "br", a64Reg(true, rn), g)
	case inst&0xfffffc1f == 0xd63f0000:
		return indirect(addr, 4, "blr", a64Reg(true, rn), disasm.GroupCall)
	case inst&0xfc000000 == 0x14000000:
		target := rel(addr, sext((inst&0x03ffffff)<<2, 28), arch.AArch64)
		return direct(addr, 4, "b", target, disasm.DestJump, disasm.GroupJump)
	case inst&0xfc000000 == 0x94000000:
		target := rel(addr, sext((inst&0x03ffffff)<<2, 28), arch.AArch64)
		return direct(addr, 4, "bl", target, disasm.DestCall, disasm.GroupCall)
	case inst&0xff000010 == 0x54000000:
		target := rel(addr, sext(((inst>>5)&0x7ffff)<<2, 21), arch.AArch64)
		return direct(addr, 4, "b."+a64Conds[inst&0xf], target, disasm.DestCJump, disasm.GroupJump|disasm.GroupConditional)
	case inst&0x7e000000 == 0x34000000:
		target := rel(addr, sext(((inst>>5)&0x7ffff)<<2, 21), arch.AArch64)
		m := "cbz"
		if inst&0x01000000 != 0 {
			m = "cbnz"
		}
		reg := a64Reg(inst>>31 == 1, inst&0x1f)
		return direct(addr, 4, m, target, disasm.DestCJump, disasm.GroupJump|disasm.GroupConditional, reg)
	case inst&0x7e000000 == 0x36000000:
		target := rel(addr, sext(((inst>>5)&0x3fff)<<2, 16), arch.AArch64)
		m := "tbz"
		if inst&0x01000000 != 0 {
			m = "tbnz"
		}
		bit := (inst>>31)<<5 | (inst>>19)&0x1f
		reg := a64Reg(bit >= 32, inst&0x1f)
		f := direct(addr, 4, m, target, disasm.DestCJump, disasm.GroupJump|disasm.GroupConditional, reg)
		f.OpStr = fmt.Sprintf("%s, #%#x, %#x", reg, bit, target)
		return f
	}
	return data(addr, 4, ".word", inst)
}

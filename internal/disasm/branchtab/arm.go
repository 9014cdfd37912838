package branchtab

import (
	"fmt"
	"strings"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

var armConds = [16]string{"eq", "ne", "hs", "lo", "mi", "pl", "vs", "vc", "hi", "ls", "ge", "lt", "gt", "le", "", ""}

var armRegs = [16]string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "sl", "fp", "ip", "sp", "lr", "pc"}

func regList(mask uint32) string {
	return "{" + strings.Join(maskRegs(mask), ", ") + "}"
}

func maskRegs(mask uint32) []string {
	var regs []string
	for i := 0; i < 16; i++ {
		if mask&(1<<i) != 0 {
			regs = append(regs, armRegs[i])
		}
	}
	return regs
}

// stack builds facts for push and pop, which move sp and the listed
// registers.
func stack(addr uint64, size int, mnemonic string, mask uint32) *disasm.Facts {
	f := &disasm.Facts{Address: addr, Size: size, Mnemonic: mnemonic, OpStr: regList(mask)}
	if strings.HasPrefix(mnemonic, "pop") {
		f.RegsRead = []string{"sp"}
		f.RegsWritten = append([]string{"sp"}, maskRegs(mask)...)
		if mask&0x8000 != 0 {
			f.Groups = disasm.GroupReturn
		}
		return f
	}
	f.RegsRead = append([]string{"sp"}, maskRegs(mask)...)
	f.RegsWritten = []string{"sp"}
	return f
}

func condGroups(cond uint32) disasm.Group {
	if cond < 0xe {
		return disasm.GroupJump | disasm.GroupConditional
	}
	return disasm.GroupJump
}

func decodeARM(inst uint32, addr uint64) *disasm.Facts {
	cond := inst >> 28
	if cond == 0xf {
		// BLX (imm) switches to Thumb; H supplies bit 1 of the target.
		if inst&0xfe000000 == 0xfa000000 {
			off := sext((inst&0xffffff)<<2, 26) | int64((inst>>23)&2)
			return direct(addr, 4, "blx", rel(addr, 8+off, arch.ARM), disasm.DestCall, disasm.GroupCall)
		}
		return data(addr, 4, ".word", inst)
	}
	cc := armConds[cond]

	switch {
	case inst&0x0e000000 == 0x0a000000:
		target := rel(addr, 8+sext((inst&0xffffff)<<2, 26), arch.ARM)
		if inst&0x01000000 != 0 {
			return direct(addr, 4, "bl"+cc, target, disasm.DestCall, disasm.GroupCall)
		}
		kind := disasm.DestJump
		if cc != "" {
			kind = disasm.DestCJump
		}
		return direct(addr, 4, "b"+cc, target, kind, condGroups(cond))
	case inst&0x0ffffff0 == 0x012fff10:
		g := condGroups(cond)
		if inst&0xf == 14 {
			g = disasm.GroupReturn
		}
		return indirect(addr, 4, "bx"+cc, armRegs[inst&0xf], g)
	case inst&0x0ffffff0 == 0x012fff30:
		return indirect(addr, 4, "blx"+cc, armRegs[inst&0xf], disasm.GroupCall)
	case inst&0x0fff0000 == 0x08bd0000:
		return stack(addr, 4, "pop"+cc, inst&0xffff)
	case inst&0x0fff0000 == 0x092d0000:
		return stack(addr, 4, "push"+cc, inst&0xffff)
	}
	return data(addr, 4, ".word", inst)
}

// decodeThumb handles 16-bit and 32-bit Thumb encodings. 32-bit forms are
// packed as hw1<<16 | hw2 before matching.
func decodeThumb(raw []byte, addr uint64) (*disasm.Facts, error) {
	if len(raw) < 2 {
		return nil, fail(raw, addr, arch.Thumb, fmt.Errorf("need 2 bytes, have %d", len(raw)))
	}
	hw1 := uint32(raw[0]) | uint32(raw[1])<<8
	if hw1>>11 >= 0x1d {
		if len(raw) < 4 {
			return nil, fail(raw, addr, arch.Thumb, fmt.Errorf("truncated 32-bit encoding"))
		}
		hw2 := uint32(raw[2]) | uint32(raw[3])<<8
		return decodeThumb32(hw1<<16|hw2, addr), nil
	}
	return decodeThumb16(hw1<<16, addr), nil
}

func decodeThumb16(inst uint32, addr uint64) *disasm.Facts {
	switch {
	case inst&0xf0000000 == 0xd0000000 && inst&0x0e000000 != 0x0e000000:
		// B<c> T1
		cond := (inst >> 24) & 0xf
		target := rel(addr, 4+sext((inst>>16&0xff)<<1, 9), arch.Thumb)
		return direct(addr, 2, "b"+armConds[cond], target, disasm.DestCJump, condGroups(cond))
	case inst&0xf8000000 == 0xe0000000:
		// B T2
		target := rel(addr, 4+sext((inst>>16&0x7ff)<<1, 12), arch.Thumb)
		return direct(addr, 2, "b", target, disasm.DestJump, disasm.GroupJump)
	case inst&0xf5000000 == 0xb1000000:
		// CB(N)Z, always forward
		off := int64(((inst>>25)&1)<<6 | ((inst>>19)&0x1f)<<1)
		target := rel(addr, 4+off, arch.Thumb)
		m := "cbz"
		if inst&0x08000000 != 0 {
			m = "cbnz"
		}
		return direct(addr, 2, m, target, disasm.DestCJump, disasm.GroupJump|disasm.GroupConditional, armRegs[(inst>>16)&7])
	case inst&0xff000000 == 0x47000000:
		// BX, BLX (register)
		reg := armRegs[(inst>>19)&0xf]
		if inst&0x00800000 != 0 {
			return indirect(addr, 2, "blx", reg, disasm.GroupCall)
		}
		g := disasm.GroupJump
		if reg == "lr" {
			g = disasm.GroupReturn
		}
		return indirect(addr, 2, "bx", reg, g)
	case inst&0xfe000000 == 0xbc000000:
		mask := (inst >> 16) & 0xff
		if inst&0x01000000 != 0 {
			mask |= 1 << 15
		}
		return stack(addr, 2, "pop", mask)
	case inst&0xfe000000 == 0xb4000000:
		mask := (inst >> 16) & 0xff
		if inst&0x01000000 != 0 {
			mask |= 1 << 14
		}
		return stack(addr, 2, "push", mask)
	}
	return data(addr, 2, ".short", inst>>16)
}

func decodeThumb32(inst uint32, addr uint64) *disasm.Facts {
	switch {
	case inst&0xf800d000 == 0xf0008000 && inst&0x03800000 != 0x03800000:
		// B<c> T3
		cond := (inst >> 22) & 0xf
		off := inst&0x04000000<<5 | inst&0x0800<<19 | inst&0x2000<<16 | inst&0x003f0000<<7 | inst&0x000007ff<<12
		target := rel(addr, 4+int64(int32(off)>>11), arch.Thumb)
		return direct(addr, 4, "b"+armConds[cond]+".w", target, disasm.DestCJump, condGroups(cond))
	case inst&0xf8009000 == 0xf0009000:
		// B T4, BL T1
		target := rel(addr, 4+thumbOffset24(inst, 0x7ff), arch.Thumb)
		if inst&0x4000 != 0 {
			return direct(addr, 4, "bl", target, disasm.DestCall, disasm.GroupCall)
		}
		return direct(addr, 4, "b.w", target, disasm.DestJump, disasm.GroupJump)
	case inst&0xf800d001 == 0xf000c000:
		// BLX (imm) T2 lands in ARM state on a word boundary.
		target := rel(addr&^3, 4+thumbOffset24(inst, 0x7fe), arch.Thumb)
		return direct(addr, 4, "blx", target, disasm.DestCall, disasm.GroupCall)
	case inst&0xffff0000 == 0xe8bd0000:
		// POP.W / LDMIA sp!
		return stack(addr, 4, "pop.w", inst&0xffff)
	}
	return data(addr, 4, ".word", inst)
}

// thumbOffset24 decodes the S:I1:I2:imm10:imm11 offset shared by B T4, BL
// and BLX. lowMask selects the usable imm11 bits.
func thumbOffset24(inst, lowMask uint32) int64 {
	s := ((inst & 0x04000000) >> 26) - 1
	off := inst&0x04000000<<5 |
		(inst^s)&0x2000<<17 |
		(inst^s)&0x0800<<18 |
		inst&0x03ff0000<<3 |
		inst&lowMask<<8
	return int64(int32(off) >> 7)
}

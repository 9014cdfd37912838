package branchtab

import (
	"fmt"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

func decodePPC(inst uint32, addr uint64) *disasm.Facts {
	aa := inst&2 != 0
	lk := inst&1 != 0
	switch inst >> 26 {
	case 18:
		// I-form: b, ba, bl, bla
		li := sext(inst&0x03fffffc, 26)
		target := arch.PPC.Wrap(uint64(li))
		if !aa {
			target = rel(addr, li, arch.PPC)
		}
		m := "b"
		if lk {
			m += "l"
		}
		if aa {
			m += "a"
		}
		if lk {
			f := direct(addr, 4, m, target, disasm.DestCall, disasm.GroupCall)
			f.RegsWritten = []string{"lr"}
			return f
		}
		return direct(addr, 4, m, target, disasm.DestJump, disasm.GroupJump)
	case 16:
		// B-form: bc and its extended mnemonics
		bo := int(inst>>21) & 0x1f
		bi := int(inst>>16) & 0x1f
		bd := sext(inst&0xfffc, 16)
		target := arch.PPC.Wrap(uint64(bd))
		if !aa {
			target = rel(addr, bd, arch.PPC)
		}
		base := "bc"
		if lk {
			base += "l"
		}
		if aa {
			base += "a"
		}
		m, cr := disasm.PPCBranchMnemonic(base, bo, bi)
		kind, g := disasm.DestCJump, disasm.GroupJump|disasm.GroupConditional
		switch {
		case lk:
			kind, g = disasm.DestCall, disasm.GroupCall
		case bo&0x14 == 0x14:
			kind, g = disasm.DestJump, disasm.GroupJump
		}
		var f *disasm.Facts
		if cr != 0 {
			f = direct(addr, 4, m, target, kind, g, fmt.Sprintf("cr%d", cr))
		} else {
			f = direct(addr, 4, m, target, kind, g)
		}
		f.RegsRead, f.RegsWritten = disasm.PPCBranchRegs(base, bo, bi)
		return f
	case 19:
		// XL-form: bclr, bcctr
		bo := int(inst>>21) & 0x1f
		bi := int(inst>>16) & 0x1f
		var base string
		switch (inst >> 1) & 0x3ff {
		case 16:
			base = "bclr"
		case 528:
			base = "bcctr"
		default:
			return data(addr, 4, ".long", inst)
		}
		if lk {
			base += "l"
		}
		m, cr := disasm.PPCBranchMnemonic(base, bo, bi)
		f := &disasm.Facts{Address: addr, Size: 4, Mnemonic: m, IL: []disasm.Jump{}}
		if cr != 0 {
			f.OpStr = fmt.Sprintf("cr%d", cr)
		}
		f.RegsRead, f.RegsWritten = disasm.PPCBranchRegs(base, bo, bi)
		switch {
		case m == "blr":
			f.Groups = disasm.GroupReturn
		case lk:
			f.Groups = disasm.GroupCall
		default:
			f.Groups = disasm.GroupJump
		}
		return f
	}
	return data(addr, 4, ".long", inst)
}

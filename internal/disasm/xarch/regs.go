package xarch

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/ppc64/ppc64asm"
)

func addReg(set *[]string, name string) {
	if name != "" && !slices.Contains(*set, name) {
		*set = append(*set, name)
	}
}

// armLeadingWrites returns how many leading register operands of an ARM
// instruction are destinations.
func armLeadingWrites(op string) int {
	switch {
	case strings.HasPrefix(op, "STREX"):
		return 1
	case strings.HasPrefix(op, "STR"), strings.HasPrefix(op, "STM"), op == "PUSH",
		op == "CMP", op == "CMN", op == "TST", op == "TEQ",
		op == "B", op == "BL", op == "BX", op == "BLX", op == "BXJ":
		return 0
	case strings.HasPrefix(op, "LDRD"), strings.HasPrefix(op, "LDREXD"),
		op == "UMULL", op == "SMULL", op == "UMLAL", op == "SMLAL":
		return 2
	}
	return 1
}

func armRegSets(inst armasm.Inst) (read, written []string) {
	op, _, _ := strings.Cut(inst.Op.String(), ".")
	n := armLeadingWrites(op)
	name := func(r armasm.Reg) string { return strings.ToLower(r.String()) }

	idx := 0
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch v := arg.(type) {
		case armasm.Reg:
			if idx < n {
				addReg(&written, name(v))
			} else {
				addReg(&read, name(v))
			}
			idx++
		case armasm.RegShift:
			addReg(&read, name(v.Reg))
			idx++
		case armasm.RegShiftReg:
			addReg(&read, name(v.Reg))
			addReg(&read, name(v.RegCount))
			idx++
		case armasm.RegList:
			load := op == "POP" || strings.HasPrefix(op, "LDM")
			for i := 0; i < 16; i++ {
				if v&(1<<i) == 0 {
					continue
				}
				if load {
					addReg(&written, name(armasm.R0+armasm.Reg(i)))
				} else {
					addReg(&read, name(armasm.R0+armasm.Reg(i)))
				}
			}
		case armasm.Mem:
			addReg(&read, name(v.Base))
			if v.Sign != 0 {
				addReg(&read, name(v.Index))
			}
			switch v.Mode {
			case armasm.AddrPreIndex, armasm.AddrPostIndex, armasm.AddrLDM_WB:
				addReg(&written, name(v.Base))
			}
		case armasm.PCRel:
			addReg(&read, "pc")
		}
	}

	switch op {
	case "PUSH", "POP":
		addReg(&read, "sp")
		addReg(&written, "sp")
	case "BL", "BLX":
		addReg(&written, "lr")
	}
	return read, written
}

// arm64LeadingWrites is armLeadingWrites for AArch64.
func arm64LeadingWrites(op string) int {
	switch {
	case strings.HasPrefix(op, "STXR"), strings.HasPrefix(op, "STLXR"),
		strings.HasPrefix(op, "STXP"), strings.HasPrefix(op, "STLXP"):
		return 1
	case strings.HasPrefix(op, "ST"), strings.HasPrefix(op, "CB"), strings.HasPrefix(op, "TB"),
		op == "CMP", op == "CMN", op == "TST", op == "CCMP", op == "CCMN",
		op == "B", op == "BL", op == "BR", op == "BLR", op == "RET", op == "PRFM", op == "MSR":
		return 0
	case op == "LDP", op == "LDNP", op == "LDPSW", op == "LDXP", op == "LDAXP":
		return 2
	}
	return 1
}

func arm64RegSets(inst arm64asm.Inst) (read, written []string) {
	op := inst.Op.String()
	n := arm64LeadingWrites(op)

	idx := 0
	reg := func(text string) {
		text = strings.ToLower(text)
		if text == "xzr" || text == "wzr" {
			idx++
			return
		}
		if idx < n {
			addReg(&written, text)
		} else {
			addReg(&read, text)
		}
		idx++
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch v := arg.(type) {
		case arm64asm.Reg:
			reg(v.String())
		case arm64asm.RegSP:
			reg(v.String())
		case arm64asm.RegExtshiftAmount:
			// The register is only reachable through the rendered form.
			r, _, _ := strings.Cut(v.String(), ",")
			reg(r)
		case arm64asm.MemImmediate:
			base := strings.ToLower(v.Base.String())
			addReg(&read, base)
			if v.Mode == arm64asm.AddrPreIndex || v.Mode == arm64asm.AddrPostIndex {
				addReg(&written, base)
			}
		case arm64asm.MemExtend:
			addReg(&read, strings.ToLower(v.Base.String()))
			addReg(&read, strings.ToLower(v.Index.String()))
		}
	}

	if op == "BL" || op == "BLR" {
		addReg(&written, "x30")
	}
	return read, written
}

// ppcSPR names the special purpose registers moved by mtspr and mfspr.
func ppcSPR(s ppc64asm.SpReg) string {
	switch s {
	case 1:
		return "xer"
	case 8:
		return "lr"
	case 9:
		return "ctr"
	}
	return fmt.Sprintf("spr%d", int(s))
}

func ppcLeadingWrites(op string) int {
	for _, p := range []string{"st", "cmp", "tw", "td", "mt", "dcb", "icb"} {
		if strings.HasPrefix(op, p) {
			return 0
		}
	}
	return 1
}

// ppcRegSets covers the non-branch instructions; branches take their sets
// from the BO field.
func ppcRegSets(inst ppc64asm.Inst) (read, written []string) {
	op := inst.Op.String()
	n := ppcLeadingWrites(op)
	update := (strings.HasPrefix(op, "l") || strings.HasPrefix(op, "st")) &&
		(strings.HasSuffix(op, "u") || strings.HasSuffix(op, "ux"))

	idx := 0
	afterOffset := false
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		switch v := arg.(type) {
		case ppc64asm.Reg:
			switch {
			case afterOffset:
				// A zero base register reads as the literal 0.
				if v != ppc64asm.R0 {
					addReg(&read, v.String())
					if update {
						addReg(&written, v.String())
					}
				}
			case idx < n:
				addReg(&written, v.String())
			default:
				addReg(&read, v.String())
			}
			idx++
		case ppc64asm.Offset:
			afterOffset = true
			continue
		case ppc64asm.SpReg:
			if strings.HasPrefix(op, "mt") {
				addReg(&written, ppcSPR(v))
			} else {
				addReg(&read, ppcSPR(v))
			}
		case ppc64asm.CondReg:
			switch {
			case v >= ppc64asm.CR0 && strings.HasPrefix(op, "cmp"):
				addReg(&written, fmt.Sprintf("cr%d", int(v-ppc64asm.CR0)))
			case v >= ppc64asm.CR0:
				addReg(&read, fmt.Sprintf("cr%d", int(v-ppc64asm.CR0)))
			case v >= ppc64asm.Cond0LT:
				addReg(&read, fmt.Sprintf("cr%d", int(v-ppc64asm.Cond0LT)/4))
			}
		}
		afterOffset = false
	}

	if strings.HasSuffix(op, ".") {
		addReg(&written, "cr0")
	}
	return read, written
}

package disasm

import (
	"slices"
	"strings"

	"staticflow/internal/arch"
)

// ruleTable holds the control-flow vocabulary of one architecture family.
// Mnemonics are compared in lower case exactly as backends emit them.
type ruleTable struct {
	destType    func(f *Facts) DestKind
	isReturn    func(f *Facts) bool
	isHalt      func(f *Facts) bool
	conditional func(f *Facts, dt DestKind) bool
	relativeRef func(opStr string) bool
}

var ruleTables = map[arch.Family]ruleTable{
	arch.FamilyX86: {
		destType:    x86DestType,
		isReturn:    func(f *Facts) bool { return f.Mnemonic == "ret" },
		isHalt:      func(f *Facts) bool { return f.Mnemonic == "hlt" },
		conditional: x86Conditional,
		relativeRef: func(op string) bool { return hasBracketRef(op) && !usesAny(op, "sp", "bp") },
	},
	arch.FamilyARM: {
		destType:    armDestType,
		isReturn:    armIsReturn,
		isHalt:      never,
		conditional: isCJump,
		relativeRef: func(op string) bool { return hasBracketRef(op) && !usesAny(op, "sp") },
	},
	arch.FamilyPPC: {
		destType:    ppcDestType,
		isReturn:    func(f *Facts) bool { return f.Mnemonic == "blr" },
		isHalt:      never,
		conditional: isCJump,
		relativeRef: func(string) bool { return false },
	},
	arch.FamilyMIPS: {
		destType:    mipsDestType,
		isReturn:    func(f *Facts) bool { return f.Mnemonic == "jr" && f.OpStr == "$ra" },
		isHalt:      never,
		conditional: isCJump,
		relativeRef: func(string) bool { return false },
	},
}

func never(*Facts) bool { return false }

func isCJump(_ *Facts, dt DestKind) bool { return dt == DestCJump }

// x86

func x86DestType(f *Facts) DestKind {
	switch {
	case f.Mnemonic == "call":
		return DestCall
	case f.Mnemonic == "jmp":
		return DestJump
	case f.Groups.Has(GroupJump):
		return DestCJump
	}
	return DestNone
}

// x86Conditional treats any reader of the flags register as conditional.
// This over-approximates (cmov, adc, setcc all qualify) and block
// boundaries downstream rely on exactly this behavior.
func x86Conditional(f *Facts, _ DestKind) bool {
	return slices.Contains(f.RegsRead, "eflags")
}

// ARM, Thumb and AArch64

var (
	// Mnemonics starting with "b" that are not branches.
	armNotBranch = []string{"bic", "bf", "bkpt", "bti", "brk", "bif", "bit", "bsl", "bcax"}
	// Conditional branches whose condition code makes them look like "bl".
	armCondBL   = []string{"blt", "ble", "bls", "blo"}
	armJumps    = []string{"b", "bx", "br"}
	armCondOnly = []string{"tbz", "tbnz"}
	armRets     = []string{"ret", "retaa", "retab"}
)

// armBase strips Thumb-2 width qualifiers.
func armBase(m string) string {
	return strings.TrimSuffix(strings.TrimSuffix(m, ".w"), ".n")
}

func armDestType(f *Facts) DestKind {
	m := armBase(f.Mnemonic)
	if !strings.HasPrefix(m, "b") && !strings.HasPrefix(m, "cb") && !slices.Contains(armCondOnly, m) {
		return DestNone
	}
	if hasAnyPrefix(m, armNotBranch) {
		return DestNone
	}
	switch {
	case slices.Contains(armCondBL, m):
		return DestCJump
	case strings.HasPrefix(m, "bl"):
		return DestCall
	case slices.Contains(armJumps, m):
		return DestJump
	}
	return DestCJump
}

func armIsReturn(f *Facts) bool {
	m := armBase(f.Mnemonic)
	switch {
	case slices.Contains(armRets, m):
		return true
	case m == "br" && f.OpStr == "x30":
		return true
	case strings.HasPrefix(m, "b") && f.OpStr == "lr":
		// Any b-prefixed mnemonic naming lr counts, including blx lr.
		return true
	case m == "pop":
		return strings.Contains(f.OpStr, "pc")
	case strings.HasPrefix(m, "ldm") && strings.HasPrefix(f.OpStr, "sp!"):
		return strings.Contains(f.OpStr, "pc")
	}
	return false
}

// PowerPC

var (
	ppcNotBranch = []string{"bpermd", "brd", "brh", "brw"}
	ppcConds     = []string{"lt", "le", "eq", "ge", "gt", "nl", "ne", "ng", "so", "ns", "un", "nu"}
)

func ppcConditional(m string) bool {
	if strings.HasPrefix(m, "bc") || strings.HasPrefix(m, "bd") {
		return true
	}
	return hasAnyPrefix(m[1:], ppcConds)
}

func ppcDestType(f *Facts) DestKind {
	m := strings.TrimRight(f.Mnemonic, "+-")
	switch {
	case m == "bctr" || m == "bctrl":
		return DestNone
	case !strings.HasPrefix(m, "b") || slices.Contains(ppcNotBranch, m):
		return DestNone
	case ppcConditional(m):
		return DestCJump
	case strings.HasPrefix(m, "bl"):
		// blr shares the prefix but returns.
		if m == "blr" {
			return DestNone
		}
		return DestCall
	}
	return DestJump
}

// MIPS

var mipsJumps = []string{"j", "jr", "b"}

func mipsDestType(f *Facts) DestKind {
	m := f.Mnemonic
	switch {
	case strings.HasPrefix(m, "jal"):
		return DestCall
	case slices.Contains(mipsJumps, m):
		return DestJump
	case m == "break":
		return DestNone
	case strings.HasPrefix(m, "b"):
		return DestCJump
	}
	return DestNone
}

// shared helpers

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasBracketRef(op string) bool {
	return strings.Contains(op, "[") && strings.Contains(op, "]")
}

func usesAny(op string, regs ...string) bool {
	op = strings.ToLower(op)
	for _, r := range regs {
		if strings.Contains(op, r) {
			return true
		}
	}
	return false
}

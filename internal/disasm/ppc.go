package disasm

import (
	"fmt"
	"strings"
)

// ppcCondBits names CR bit tests by bit-within-field; row 0 is the
// branch-if-false form.
var ppcCondBits = [2][4]string{
	{"ge", "le", "ne", "ns"},
	{"lt", "gt", "eq", "so"},
}

// PPCBranchMnemonic returns the extended mnemonic for a bc-family branch.
// base is the raw op name (bc, bca, bcl, bcla, bclr, bclrl, bcctr, bcctrl)
// and bo, bi its BO and BI fields. crField is the tested CR field, or 0
// when none is tested. Both backends emit these names so the PowerPC rule
// table sees one vocabulary.
func PPCBranchMnemonic(base string, bo, bi int) (mnemonic string, crField int) {
	sfx := base[2:]
	switch {
	case bo&0x14 == 0x14:
		return "b" + sfx, 0
	case bo&0x04 == 0:
		dec := "dnz"
		if bo&0x02 != 0 {
			dec = "dz"
		}
		if bo&0x10 != 0 {
			return "b" + dec + sfx, 0
		}
		tf := "f"
		if bo&0x08 != 0 {
			tf = "t"
		}
		return "b" + dec + tf + sfx, bi / 4
	}
	return "b" + ppcCondBits[(bo>>3)&1][bi%4] + sfx, bi / 4
}

// PPCBranchRegs returns the registers a bc-family branch reads and writes,
// with the same base, bo and bi arguments as PPCBranchMnemonic.
func PPCBranchRegs(base string, bo, bi int) (read, written []string) {
	if bo&0x10 == 0 {
		read = append(read, fmt.Sprintf("cr%d", bi/4))
	}
	if bo&0x04 == 0 {
		read = append(read, "ctr")
		written = append(written, "ctr")
	}
	switch {
	case strings.HasPrefix(base, "bclr"):
		read = append(read, "lr")
	case strings.HasPrefix(base, "bcctr"):
		read = append(read, "ctr")
	}
	if strings.HasSuffix(base, "l") || strings.HasSuffix(base, "la") {
		written = append(written, "lr")
	}
	return read, written
}

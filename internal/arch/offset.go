package arch

import (
	"github.com/charmbracelet/log"
)

// CalcOffset interprets offset as a two's complement value of the
// architecture's word size. On 32-bit targets only the low 32 bits are
// significant; wider inputs are truncated.
func CalcOffset(offset uint64, a Arch) int64 {
	if a.Bits() == 64 {
		return int64(offset)
	}
	if offset>>32 != 0 {
		log.Debug("offset wider than 32 bits, truncating", "arch", a, "offset", offset)
	}
	return int64(int32(uint32(offset)))
}

// SignExtend sign-extends the low bits of v.
func SignExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

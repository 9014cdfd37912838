package disasm

import "fmt"

// DestKind says why a destination is reachable.
type DestKind int

const (
	DestNone DestKind = iota
	DestCJump
	DestJump
	DestCall
	DestImplicit // fallthrough to the next instruction
)

func (k DestKind) String() string {
	switch k {
	case DestNone:
		return "none"
	case DestCJump:
		return "cjump"
	case DestJump:
		return "jump"
	case DestCall:
		return "call"
	case DestImplicit:
		return "implicit"
	default:
		return fmt.Sprintf("DestKind(%d)", int(k))
	}
}

// Destination is one control-flow successor of an instruction.
type Destination struct {
	Addr uint64
	Kind DestKind
}

func (d Destination) String() string {
	return fmt.Sprintf("%#x(%s)", d.Addr, d.Kind)
}

package disasm

import "staticflow/internal/arch"

// OperandKind classifies a decoded operand.
type OperandKind int

const (
	OpInvalid OperandKind = iota
	OpReg
	OpImm
	OpMem
)

// Operand is one structured operand as reported by a backend. Branch
// operands carry the absolute target in Imm, not the encoded displacement.
type Operand struct {
	Kind OperandKind
	Imm  uint64
	Reg  string
	Text string
}

// Group is a set of architecture-neutral instruction group flags.
type Group uint8

const (
	GroupJump Group = 1 << iota
	GroupCall
	GroupReturn
	GroupConditional
	GroupTerminator
	GroupInterrupt
)

func (g Group) Has(flag Group) bool { return g&flag != 0 }

// Jump is a branch target recovered from a backend's structured form.
// Targets the backend could not compute statically are not listed.
type Jump struct {
	Target uint64
	Kind   DestKind
}

// Facts is everything a backend learned about one instruction. It is the
// only input the classifier needs.
type Facts struct {
	Address     uint64
	Size        int
	Mnemonic    string // lower case, no prefixes
	OpStr       string // lower case operand text
	Operands    []Operand
	RegsRead    []string
	RegsWritten []string
	Groups      Group

	// IL is nil when the backend has no structured form. A non-nil empty
	// slice means the backend looked and found no static targets.
	IL []Jump
}

// Backend decodes one instruction from the front of raw. Failures to
// decode must match ErrDecodeFailure so the facade can fall back.
type Backend interface {
	Name() string
	Decode(raw []byte, addr uint64, a arch.Arch) (*Facts, error)
}

package disasm

import (
	"fmt"
	"slices"
	"strings"

	"staticflow/internal/addrexpr"
	"staticflow/internal/arch"
)

// Kind is the canonical control-flow kind of an instruction.
type Kind int

const (
	KindOrdinary Kind = iota
	KindCondBranch
	KindBranch
	KindCall
	KindReturn
	KindHalt
)

func (k Kind) String() string {
	switch k {
	case KindOrdinary:
		return "ordinary"
	case KindCondBranch:
		return "cbranch"
	case KindBranch:
		return "branch"
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	case KindHalt:
		return "halt"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Instruction is a classified, immutable decoded instruction.
type Instruction struct {
	addr    uint64
	size    int
	arch    arch.Arch
	raw     []byte
	backend string

	mnemonic    string
	opStr       string
	operands    []Operand
	regsRead    []string
	regsWritten []string
	groups      Group

	rules ruleTable
	dtype DestKind
	kind  Kind
	ret   bool
	halt  bool
	dests []Destination
}

// Classify builds an Instruction from backend facts. raw, when non-nil, is
// the byte window the facts were decoded from.
func Classify(f *Facts, a arch.Arch, raw []byte) (*Instruction, error) {
	if err := a.Check(); err != nil {
		return nil, err
	}
	if f == nil || f.Size <= 0 || f.Mnemonic == "" {
		return nil, &DecodeError{Addr: addrOf(f), Arch: a, Len: len(raw), Err: fmt.Errorf("backend returned no instruction")}
	}
	if raw != nil && f.Size > len(raw) {
		return nil, &DecodeError{Addr: f.Address, Arch: a, Len: len(raw), Err: fmt.Errorf("instruction length %d exceeds window", f.Size)}
	}

	rules := ruleTables[a.Family()]
	i := &Instruction{
		addr:        f.Address,
		size:        f.Size,
		arch:        a,
		mnemonic:    f.Mnemonic,
		opStr:       f.OpStr,
		operands:    slices.Clone(f.Operands),
		regsRead:    slices.Clone(f.RegsRead),
		regsWritten: slices.Clone(f.RegsWritten),
		groups:      f.Groups,
		rules:       rules,
	}
	if raw != nil {
		i.raw = slices.Clone(raw[:f.Size])
	}
	i.dtype = rules.destType(f)
	i.ret = rules.isReturn(f)
	i.halt = rules.isHalt(f)
	i.kind = i.classifyKind()
	i.dests = i.computeDests(f.IL)
	return i, nil
}

func addrOf(f *Facts) uint64 {
	if f == nil {
		return 0
	}
	return f.Address
}

func (i *Instruction) classifyKind() Kind {
	switch {
	case i.ret:
		return KindReturn
	case i.halt:
		return KindHalt
	case i.dtype == DestCall:
		return KindCall
	case i.dtype == DestJump:
		return KindBranch
	case i.dtype == DestCJump:
		return KindCondBranch
	}
	return KindOrdinary
}

func (i *Instruction) computeDests(il []Jump) []Destination {
	if i.ret {
		return nil
	}
	var dl []Destination
	if i.CodeFollows() {
		dl = append(dl, Destination{Addr: i.arch.Wrap(i.addr + uint64(i.size)), Kind: DestImplicit})
	}
	if !i.IsJump() && !i.IsCall() {
		return dl
	}
	if il != nil {
		for _, j := range il {
			kind := j.Kind
			if i.IsCall() {
				kind = DestCall
			} else if kind == DestNone || kind == DestImplicit {
				kind = i.dtype
			}
			dl = append(dl, Destination{Addr: j.Target, Kind: kind})
		}
		return dl
	}
	if len(i.operands) > 0 && i.operands[0].Kind == OpImm {
		dl = append(dl, Destination{Addr: i.operands[0].Imm, Kind: i.dtype})
	}
	return dl
}

func (i *Instruction) Address() uint64           { return i.addr }
func (i *Instruction) Size() int                 { return i.size }
func (i *Instruction) Arch() arch.Arch           { return i.arch }
func (i *Instruction) Bytes() []byte             { return slices.Clone(i.raw) }
func (i *Instruction) Backend() string           { return i.backend }
func (i *Instruction) Mnemonic() string          { return i.mnemonic }
func (i *Instruction) OpStr() string             { return i.opStr }
func (i *Instruction) RegsRead() []string        { return slices.Clone(i.regsRead) }
func (i *Instruction) RegsWritten() []string     { return slices.Clone(i.regsWritten) }
func (i *Instruction) Groups() Group             { return i.groups }
func (i *Instruction) DestType() DestKind        { return i.dtype }
func (i *Instruction) Kind() Kind                { return i.kind }
func (i *Instruction) Dests() []Destination      { return slices.Clone(i.dests) }
func (i *Instruction) StructOperands() []Operand { return slices.Clone(i.operands) }

func (i *Instruction) IsJump() bool { return i.dtype == DestJump || i.dtype == DestCJump }
func (i *Instruction) IsCall() bool { return i.dtype == DestCall }
func (i *Instruction) IsRet() bool  { return i.ret }
func (i *Instruction) IsHalt() bool { return i.halt }

// IsEnding reports whether the instruction terminates a basic block.
func (i *Instruction) IsEnding() bool {
	return i.IsJump() || i.ret || i.halt
}

func (i *Instruction) IsConditional() bool {
	return i.rules.conditional(&Facts{RegsRead: i.regsRead, Mnemonic: i.mnemonic}, i.dtype)
}

// CodeFollows reports whether execution can continue at the next
// address. Conditional jumps keep their fallthrough; calls are assumed to
// return.
func (i *Instruction) CodeFollows() bool {
	return !i.ret && (i.IsCall() || i.dtype != DestJump)
}

// HasRelativeReference reports a bracketed memory operand that does not
// involve the stack or frame pointer.
func (i *Instruction) HasRelativeReference() bool {
	return i.rules.relativeRef(i.opStr)
}

// Operands splits the operand text at top level commas. Separators inside
// brackets or register lists stay with their operand.
func (i *Instruction) Operands() []string {
	return SplitOperands(i.opStr)
}

func SplitOperands(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var (
		out   []string
		depth int
		start int
	)
	for pos, c := range s {
		switch c {
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:pos]))
				start = pos + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func (i *Instruction) String() string { return i.Text(nil) }

// Text renders the instruction. Branch targets replace the operand text.
// With a snapshot, resolvable memory references are shown as absolute
// addresses; anything the evaluator rejects is left as decoded.
func (i *Instruction) Text(regs addrexpr.Snapshot) string {
	var targets []string
	for _, d := range i.dests {
		if d.Kind != DestImplicit {
			targets = append(targets, fmt.Sprintf("%#x", d.Addr))
		}
	}
	if len(targets) > 0 {
		return i.mnemonic + " " + strings.Join(targets, ", ")
	}
	ops := i.opStr
	if regs != nil && i.HasRelativeReference() {
		ops = i.resolveOperands(regs)
	}
	if ops == "" {
		return i.mnemonic
	}
	return i.mnemonic + " " + ops
}

func (i *Instruction) resolveOperands(regs addrexpr.Snapshot) string {
	switch i.arch.Family() {
	case arch.FamilyX86:
		parts := i.Operands()
		for n, op := range parts {
			parts[n] = i.resolveBracket(op, regs)
		}
		return strings.Join(parts, ", ")
	case arch.FamilyARM:
		if strings.Count(i.opStr, "[") != 1 || strings.Count(i.opStr, "]") != 1 {
			return i.opStr
		}
		return i.resolveBracket(i.opStr, regs)
	}
	return i.opStr
}

// resolveBracket replaces the inside of the one bracketed reference in s.
func (i *Instruction) resolveBracket(s string, regs addrexpr.Snapshot) string {
	open := strings.IndexByte(s, '[')
	end := strings.IndexByte(s, ']')
	if open < 0 || end < open {
		return s
	}
	v, err := addrexpr.Eval(i.arch, s[open+1:end], regs, uint64(i.size))
	if err != nil {
		return s
	}
	return fmt.Sprintf("%s[%#x]%s", s[:open], v, s[end+1:])
}

// Package addrexpr evaluates addressing-mode operand text against a captured
// register snapshot, turning "[rbp - 0x10]" style references into concrete
// addresses.
package addrexpr

import (
	"errors"
	"fmt"
	"strings"

	"staticflow/internal/arch"
)

var (
	// ErrUnknownRegister is matched by every UnknownRegisterError.
	ErrUnknownRegister = errors.New("unknown register")
	// ErrMalformed reports text outside the supported grammar.
	ErrMalformed = errors.New("malformed address expression")
)

// UnknownRegisterError names a register the snapshot does not carry.
type UnknownRegisterError struct {
	Reg string
}

func (e *UnknownRegisterError) Error() string {
	return fmt.Sprintf("unknown register %q", e.Reg)
}

func (e *UnknownRegisterError) Is(target error) bool { return target == ErrUnknownRegister }

// Snapshot maps lower-cased register names to their values at one
// execution point. Evaluation never modifies it.
type Snapshot map[string]uint64

// Lookup returns the value of reg, ignoring case.
func (s Snapshot) Lookup(reg string) (uint64, error) {
	if v, ok := s[strings.ToLower(reg)]; ok {
		return v, nil
	}
	return 0, &UnknownRegisterError{Reg: reg}
}

// Eval dispatches on the architecture family. size is the byte length of the
// instruction owning the operand; ARM reads of pc observe address+size.
func Eval(a arch.Arch, expr string, regs Snapshot, size uint64) (uint64, error) {
	switch a.Family() {
	case arch.FamilyX86:
		return EvalX86(expr, regs)
	case arch.FamilyARM:
		return EvalARM(expr, regs, size)
	default:
		return 0, fmt.Errorf("%w: no evaluator for %s", ErrMalformed, a)
	}
}

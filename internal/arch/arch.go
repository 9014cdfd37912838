// Package arch enumerates the instruction set architectures understood by
// the analyzer and the per-architecture numeric helpers shared by decoders.
package arch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Arch names a supported instruction set. The string values match the
// names stored in the "arch" tag and accepted on the command line.
type Arch string

const (
	X86     Arch = "i386"
	X8664   Arch = "x86-64"
	Thumb   Arch = "thumb"
	ARM     Arch = "arm"
	AArch64 Arch = "aarch64"
	PPC     Arch = "ppc"
	MIPS    Arch = "mips"
	MIPSEL  Arch = "mipsel"
)

// Family groups architectures that share mnemonic conventions.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyX86
	FamilyARM
	FamilyPPC
	FamilyMIPS
)

func (f Family) String() string {
	switch f {
	case FamilyX86:
		return "x86"
	case FamilyARM:
		return "arm"
	case FamilyPPC:
		return "ppc"
	case FamilyMIPS:
		return "mips"
	default:
		return "unknown"
	}
}

// ErrUnsupported is matched by every UnsupportedError.
var ErrUnsupported = errors.New("unsupported architecture")

// UnsupportedError reports an architecture outside the closed set.
type UnsupportedError struct {
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported architecture %q", e.Name)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

var all = []Arch{X86, X8664, Thumb, ARM, AArch64, PPC, MIPS, MIPSEL}

// aliases maps common spellings (Go, ELF, toolchain triples) to canonical names.
var aliases = map[string]Arch{
	"i386":    X86,
	"x86":     X86,
	"386":     X86,
	"i686":    X86,
	"x86-64":  X8664,
	"x86_64":  X8664,
	"amd64":   X8664,
	"x64":     X8664,
	"thumb":   Thumb,
	"thumb2":  Thumb,
	"arm":     ARM,
	"arm32":   ARM,
	"armv7":   ARM,
	"aarch64": AArch64,
	"arm64":   AArch64,
	"ppc":     PPC,
	"powerpc": PPC,
	"ppc32":   PPC,
	"mips":    MIPS,
	"mipsbe":  MIPS,
	"mipsel":  MIPSEL,
	"mipsle":  MIPSEL,
}

// All returns every supported architecture in a stable order.
func All() []Arch {
	out := make([]Arch, len(all))
	copy(out, all)
	return out
}

// Parse resolves a user supplied name or alias.
func Parse(name string) (Arch, error) {
	if a, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a, nil
	}
	return "", &UnsupportedError{Name: name}
}

// Valid reports whether a is one of the supported architectures.
func (a Arch) Valid() bool {
	return a.Family() != FamilyUnknown
}

// Check returns an UnsupportedError for anything outside the closed set.
func (a Arch) Check() error {
	if !a.Valid() {
		return &UnsupportedError{Name: string(a)}
	}
	return nil
}

func (a Arch) Family() Family {
	switch a {
	case X86, X8664:
		return FamilyX86
	case Thumb, ARM, AArch64:
		return FamilyARM
	case PPC:
		return FamilyPPC
	case MIPS, MIPSEL:
		return FamilyMIPS
	default:
		return FamilyUnknown
	}
}

// Bits is the native word size.
func (a Arch) Bits() int {
	switch a {
	case X8664, AArch64:
		return 64
	default:
		return 32
	}
}

// ByteOrder returns the instruction stream byte order.
func (a Arch) ByteOrder() binary.ByteOrder {
	switch a {
	case PPC, MIPS:
		return binary.BigEndian
	default:
		return binary.LittleEndian
	}
}

// MaxInsnLen is the longest encoding a decoder may need to look at.
func (a Arch) MaxInsnLen() int {
	if a.Family() == FamilyX86 {
		return 15
	}
	return 4
}

// Wrap truncates addr to the architecture word size.
func (a Arch) Wrap(addr uint64) uint64 {
	if a.Bits() == 32 {
		return addr & 0xffffffff
	}
	return addr
}

func (a Arch) String() string { return string(a) }

package disasm

import (
	"errors"
	"fmt"

	"staticflow/internal/arch"
)

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrDecodeFailure = errors.New("decode failure")
)

// EmptyInputError reports a zero length byte window.
type EmptyInputError struct {
	Addr uint64
	Arch arch.Arch
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no bytes to decode at %#x (%s)", e.Addr, e.Arch)
}

func (e *EmptyInputError) Is(target error) bool { return target == ErrEmptyInput }

// DecodeError reports that a backend, or every configured backend, could
// not produce an instruction.
type DecodeError struct {
	Backend string
	Addr    uint64
	Arch    arch.Arch
	Len     int
	Err     error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %#x (%s, %d bytes)", e.Addr, e.Arch, e.Len)
	if e.Backend != "" {
		msg = e.Backend + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecodeFailure }

func (e *DecodeError) Unwrap() error { return e.Err }

package addrexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalX86 evaluates the inside of an x86 memory reference:
//
//	expr   := ['-'] term (('+' | '-') term)*
//	term   := factor ('*' factor)*
//	factor := hexnum | register
//
// Numbers are hexadecimal with an optional 0x prefix and must start with a
// digit. Arithmetic wraps modulo 2^64.
func EvalX86(expr string, regs Snapshot) (uint64, error) {
	p := &x86Parser{src: expr, regs: regs}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return v, nil
}

type x86Parser struct {
	src  string
	pos  int
	regs Snapshot
}

func (p *x86Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", ErrMalformed, fmt.Sprintf(format, args...), p.pos, p.src)
}

func (p *x86Parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *x86Parser) peek() byte {
	p.skipSpace()
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *x86Parser) expr() (uint64, error) {
	neg := false
	if p.peek() == '-' {
		neg = true
		p.pos++
	}
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			t, err := p.term()
			if err != nil {
				return 0, err
			}
			v += t
		case '-':
			p.pos++
			t, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= t
		default:
			return v, nil
		}
	}
}

func (p *x86Parser) term() (uint64, error) {
	v, err := p.factor()
	if err != nil {
		return 0, err
	}
	for p.peek() == '*' {
		p.pos++
		f, err := p.factor()
		if err != nil {
			return 0, err
		}
		v *= f
	}
	return v, nil
}

func (p *x86Parser) factor() (uint64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isWordByte(p.src[p.pos]) {
		p.pos++
	}
	word := p.src[start:p.pos]
	if word == "" {
		return 0, p.errorf("expected register or number")
	}
	if isDigit(word[0]) {
		digits := strings.TrimPrefix(strings.TrimPrefix(word, "0x"), "0X")
		n, err := strconv.ParseUint(digits, 16, 64)
		if err != nil {
			return 0, p.errorf("bad number %q", word)
		}
		return n, nil
	}
	return p.regs.Lookup(word)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordByte(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

package addrexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalARM evaluates the inside of an ARM memory reference such as
// "r1, #0x10" or "x0, x1, lsl #3". Terms are summed; an immediate is
// "#[-]hex". A shift term applies to the term before it. Reading pc yields
// the snapshot value plus size.
func EvalARM(expr string, regs Snapshot, size uint64) (uint64, error) {
	var (
		sum  uint64
		last uint64
		seen bool
	)
	for _, raw := range strings.Split(expr, ",") {
		term := strings.TrimSpace(raw)
		if term == "" {
			return 0, fmt.Errorf("%w: empty term in %q", ErrMalformed, expr)
		}
		if op, amount, ok := strings.Cut(term, " "); ok {
			if !seen {
				return 0, fmt.Errorf("%w: shift without operand in %q", ErrMalformed, expr)
			}
			n, err := armImmediate(strings.TrimSpace(amount))
			if err != nil {
				return 0, err
			}
			var shifted uint64
			switch op {
			case "lsl":
				shifted = last << n
			case "lsr":
				shifted = last >> n
			case "asr":
				shifted = uint64(int64(last) >> n)
			default:
				return 0, fmt.Errorf("%w: unsupported operator %q", ErrMalformed, op)
			}
			sum += shifted - last
			last = shifted
			continue
		}
		v, err := armTerm(term, regs, size)
		if err != nil {
			return 0, err
		}
		sum += v
		last = v
		seen = true
	}
	return sum, nil
}

func armTerm(term string, regs Snapshot, size uint64) (uint64, error) {
	if strings.HasPrefix(term, "#") {
		return armImmediate(term)
	}
	v, err := regs.Lookup(term)
	if err != nil {
		return 0, err
	}
	if strings.EqualFold(term, "pc") {
		v += size
	}
	return v, nil
}

func armImmediate(s string) (uint64, error) {
	body, ok := strings.CutPrefix(s, "#")
	if !ok {
		return 0, fmt.Errorf("%w: immediate %q lacks '#'", ErrMalformed, s)
	}
	body, neg := strings.CutPrefix(body, "-")
	body = strings.TrimPrefix(strings.TrimPrefix(body, "0x"), "0X")
	n, err := strconv.ParseUint(body, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad immediate %q", ErrMalformed, s)
	}
	if neg {
		n = -n
	}
	return n, nil
}

package colorize

import (
	"strings"
	"testing"

	"staticflow/internal/arch"
)

func TestDisabledIsIdentity(t *testing.T) {
	c := New(arch.X8664, false)
	line := "1000       jz       0x1005"
	if got := c.Line(line); got != line {
		t.Errorf("Line() = %q, want unchanged", got)
	}
	if c.Enabled() {
		t.Error("Enabled() = true")
	}
}

func TestLineKeepsText(t *testing.T) {
	for _, a := range []arch.Arch{arch.X8664, arch.ARM, arch.AArch64, arch.MIPS} {
		c := New(a, true)
		for _, line := range []string{
			"1000       mov      eax, dword ptr [ebp+0x8]",
			"1000  loc_1000:",
			"ldr r0, [pc, #0x10] ; via branchtab",
		} {
			got := c.Line(line)
			if c.Enabled() && !strings.Contains(got, "\x1b[") {
				t.Errorf("%s: Line(%q) has no color", a, line)
			}
			if Strip(got) != line {
				t.Errorf("%s: Strip(Line(%q)) = %q", a, line, Strip(got))
			}
		}
	}
}

func TestStrip(t *testing.T) {
	if got := Strip("\x1b[38;2;79;79;79m1000\x1b[0m nop"); got != "1000 nop" {
		t.Errorf("Strip() = %q", got)
	}
}

func TestStyleRegistered(t *testing.T) {
	if DisasmDark.Name != "disasm-dark" || disasmStyle() != DisasmDark {
		t.Errorf("disasm style = %v", disasmStyle().Name)
	}
}

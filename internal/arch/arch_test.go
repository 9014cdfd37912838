package arch

import (
	"errors"
	"testing"
)

func TestCalcOffset(t *testing.T) {
	tests := []struct {
		name   string
		offset uint64
		arch   Arch
		want   int64
	}{
		{"x86 minus one", 0xFFFFFFFF, X86, -1},
		{"x86 minus two", 0xFFFFFFFE, X86, -2},
		{"arm positive", 0x7FFFFFFF, ARM, 0x7FFFFFFF},
		{"mips truncates", 0x1_FFFFFFFF, MIPS, -1},
		{"x86-64 keeps 32-bit", 0xFFFFFFFF, X8664, 0xFFFFFFFF},
		{"x86-64 keeps 32-bit minus two", 0xFFFFFFFE, X8664, 0xFFFFFFFE},
		{"x86-64 minus one", 0xFFFFFFFFFFFFFFFF, X8664, -1},
		{"aarch64 minus two", 0xFFFFFFFFFFFFFFFE, AArch64, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalcOffset(tt.offset, tt.arch); got != tt.want {
				t.Errorf("CalcOffset(%#x, %s) = %d, want %d", tt.offset, tt.arch, got, tt.want)
			}
		})
	}
}

func TestSignExtend(t *testing.T) {
	if got := SignExtend(0x3FFFFFC, 26); got != -4 {
		t.Errorf("SignExtend(imm26) = %d, want -4", got)
	}
	if got := SignExtend(0x100, 26); got != 0x100 {
		t.Errorf("SignExtend(positive) = %d, want 0x100", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Arch
	}{
		{"amd64", X8664},
		{"x86_64", X8664},
		{"386", X86},
		{"arm64", AArch64},
		{"ARM", ARM},
		{"powerpc", PPC},
		{"mipsle", MIPSEL},
		{" thumb ", Thumb},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	_, err := Parse("sparc")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Parse(sparc) error = %v, want ErrUnsupported", err)
	}
	var ue *UnsupportedError
	if !errors.As(err, &ue) || ue.Name != "sparc" {
		t.Errorf("UnsupportedError.Name = %v, want sparc", ue)
	}
}

func TestProperties(t *testing.T) {
	for _, a := range All() {
		if !a.Valid() {
			t.Errorf("%s not valid", a)
		}
	}
	if Arch("z80").Check() == nil {
		t.Error("z80 should not pass Check")
	}
	if X8664.Bits() != 64 || PPC.Bits() != 32 {
		t.Error("unexpected word sizes")
	}
	if MIPS.ByteOrder().String() != "BigEndian" || MIPSEL.ByteOrder().String() != "LittleEndian" {
		t.Error("unexpected mips byte order")
	}
	if got := ARM.Wrap(0x1_0000_0004); got != 4 {
		t.Errorf("Wrap = %#x, want 0x4", got)
	}
	if Thumb.Family() != FamilyARM || MIPSEL.Family() != FamilyMIPS {
		t.Error("unexpected family")
	}
}

package branchtab

import (
	"errors"
	"reflect"
	"testing"

	"staticflow/internal/arch"
	"staticflow/internal/disasm"
)

func classify(t *testing.T, raw []byte, addr uint64, a arch.Arch) *disasm.Instruction {
	t.Helper()
	f, err := New().Decode(raw, addr, a)
	if err != nil {
		t.Fatalf("Decode(% x) error: %v", raw, err)
	}
	insn, err := disasm.Classify(f, a, raw)
	if err != nil {
		t.Fatalf("Classify(% x) error: %v", raw, err)
	}
	return insn
}

func TestDecodeBranches(t *testing.T) {
	tests := []struct {
		name     string
		arch     arch.Arch
		addr     uint64
		raw      []byte
		mnemonic string
		opstr    string
		kind     disasm.Kind
		dests    []disasm.Destination
	}{
		{
			name: "arm bl", arch: arch.ARM, addr: 0x1000,
			raw: []byte{0x01, 0x00, 0x00, 0xeb}, mnemonic: "bl", opstr: "0x100c", kind: disasm.KindCall,
			dests: []disasm.Destination{{Addr: 0x1004, Kind: disasm.DestImplicit}, {Addr: 0x100c, Kind: disasm.DestCall}},
		},
		{
			name: "arm bne self", arch: arch.ARM, addr: 0x1000,
			raw: []byte{0xfe, 0xff, 0xff, 0x1a}, mnemonic: "bne", opstr: "0x1000", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x1004, Kind: disasm.DestImplicit}, {Addr: 0x1000, Kind: disasm.DestCJump}},
		},
		{
			name: "arm bx lr", arch: arch.ARM, addr: 0x1000,
			raw: []byte{0x1e, 0xff, 0x2f, 0xe1}, mnemonic: "bx", opstr: "lr", kind: disasm.KindReturn,
		},
		{
			name: "arm pop pc", arch: arch.ARM, addr: 0x1000,
			raw: []byte{0x10, 0x80, 0xbd, 0xe8}, mnemonic: "pop", opstr: "{r4, pc}", kind: disasm.KindReturn,
		},
		{
			name: "arm data", arch: arch.ARM, addr: 0x1000,
			raw: []byte{0x00, 0x00, 0xa0, 0xe1}, mnemonic: ".word", opstr: "0xe1a00000", kind: disasm.KindOrdinary,
			dests: []disasm.Destination{{Addr: 0x1004, Kind: disasm.DestImplicit}},
		},
		{
			name: "thumb b self", arch: arch.Thumb, addr: 0x2000,
			raw: []byte{0xfe, 0xe7}, mnemonic: "b", opstr: "0x2000", kind: disasm.KindBranch,
			dests: []disasm.Destination{{Addr: 0x2000, Kind: disasm.DestJump}},
		},
		{
			name: "thumb beq", arch: arch.Thumb, addr: 0x2000,
			raw: []byte{0x00, 0xd0}, mnemonic: "beq", opstr: "0x2004", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x2002, Kind: disasm.DestImplicit}, {Addr: 0x2004, Kind: disasm.DestCJump}},
		},
		{
			name: "thumb cbz", arch: arch.Thumb, addr: 0x2000,
			raw: []byte{0x08, 0xb1}, mnemonic: "cbz", opstr: "r0, 0x2006", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x2002, Kind: disasm.DestImplicit}, {Addr: 0x2006, Kind: disasm.DestCJump}},
		},
		{
			name: "thumb bl", arch: arch.Thumb, addr: 0x2000,
			raw: []byte{0x00, 0xf0, 0x00, 0xf8}, mnemonic: "bl", opstr: "0x2004", kind: disasm.KindCall,
			dests: []disasm.Destination{{Addr: 0x2004, Kind: disasm.DestImplicit}, {Addr: 0x2004, Kind: disasm.DestCall}},
		},
		{
			name: "thumb bx lr", arch: arch.Thumb, addr: 0x2000,
			raw: []byte{0x70, 0x47}, mnemonic: "bx", opstr: "lr", kind: disasm.KindReturn,
		},
		{
			name: "thumb pop pc", arch: arch.Thumb, addr: 0x2000,
			raw: []byte{0x10, 0xbd}, mnemonic: "pop", opstr: "{r4, pc}", kind: disasm.KindReturn,
		},
		{
			name: "aarch64 bl", arch: arch.AArch64, addr: 0x4000,
			raw: []byte{0x02, 0x00, 0x00, 0x94}, mnemonic: "bl", opstr: "0x4008", kind: disasm.KindCall,
			dests: []disasm.Destination{{Addr: 0x4004, Kind: disasm.DestImplicit}, {Addr: 0x4008, Kind: disasm.DestCall}},
		},
		{
			name: "aarch64 b.ne", arch: arch.AArch64, addr: 0x4000,
			raw: []byte{0x41, 0x00, 0x00, 0x54}, mnemonic: "b.ne", opstr: "0x4008", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x4004, Kind: disasm.DestImplicit}, {Addr: 0x4008, Kind: disasm.DestCJump}},
		},
		{
			name: "aarch64 cbz", arch: arch.AArch64, addr: 0x4000,
			raw: []byte{0x40, 0x00, 0x00, 0xb4}, mnemonic: "cbz", opstr: "x0, 0x4008", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x4004, Kind: disasm.DestImplicit}, {Addr: 0x4008, Kind: disasm.DestCJump}},
		},
		{
			name: "aarch64 ret", arch: arch.AArch64, addr: 0x4000,
			raw: []byte{0xc0, 0x03, 0x5f, 0xd6}, mnemonic: "ret", kind: disasm.KindReturn,
		},
		{
			name: "aarch64 br", arch: arch.AArch64, addr: 0x4000,
			raw: []byte{0x00, 0x02, 0x1f, 0xd6}, mnemonic: "br", opstr: "x16", kind: disasm.KindBranch,
		},
		{
			name: "ppc bl", arch: arch.PPC, addr: 0x1000,
			raw: []byte{0x48, 0x00, 0x00, 0x05}, mnemonic: "bl", opstr: "0x1004", kind: disasm.KindCall,
			dests: []disasm.Destination{{Addr: 0x1004, Kind: disasm.DestImplicit}, {Addr: 0x1004, Kind: disasm.DestCall}},
		},
		{
			name: "ppc beq", arch: arch.PPC, addr: 0x1000,
			raw: []byte{0x41, 0x82, 0x00, 0x08}, mnemonic: "beq", opstr: "0x1008", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x1004, Kind: disasm.DestImplicit}, {Addr: 0x1008, Kind: disasm.DestCJump}},
		},
		{
			name: "ppc beq cr7", arch: arch.PPC, addr: 0x1000,
			raw: []byte{0x41, 0x9e, 0x00, 0x08}, mnemonic: "beq", opstr: "cr7, 0x1008", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x1004, Kind: disasm.DestImplicit}, {Addr: 0x1008, Kind: disasm.DestCJump}},
		},
		{
			name: "ppc blr", arch: arch.PPC, addr: 0x1000,
			raw: []byte{0x4e, 0x80, 0x00, 0x20}, mnemonic: "blr", kind: disasm.KindReturn,
		},
		{
			name: "ppc bctr", arch: arch.PPC, addr: 0x1000,
			raw: []byte{0x4e, 0x80, 0x04, 0x20}, mnemonic: "bctr", kind: disasm.KindOrdinary,
			dests: []disasm.Destination{{Addr: 0x1004, Kind: disasm.DestImplicit}},
		},
		{
			name: "mips jal", arch: arch.MIPS, addr: 0x400000,
			raw: []byte{0x0c, 0x10, 0x00, 0x40}, mnemonic: "jal", opstr: "0x400100", kind: disasm.KindCall,
			dests: []disasm.Destination{{Addr: 0x400004, Kind: disasm.DestImplicit}, {Addr: 0x400100, Kind: disasm.DestCall}},
		},
		{
			name: "mips jr ra", arch: arch.MIPS, addr: 0x400000,
			raw: []byte{0x03, 0xe0, 0x00, 0x08}, mnemonic: "jr", opstr: "$ra", kind: disasm.KindReturn,
		},
		{
			name: "mipsel beqz", arch: arch.MIPSEL, addr: 0x400000,
			raw: []byte{0x03, 0x00, 0x80, 0x10}, mnemonic: "beqz", opstr: "$a0, 0x400010", kind: disasm.KindCondBranch,
			dests: []disasm.Destination{{Addr: 0x400004, Kind: disasm.DestImplicit}, {Addr: 0x400010, Kind: disasm.DestCJump}},
		},
		{
			name: "mips b", arch: arch.MIPS, addr: 0x400000,
			raw: []byte{0x10, 0x00, 0x00, 0x04}, mnemonic: "b", opstr: "0x400014", kind: disasm.KindBranch,
			dests: []disasm.Destination{{Addr: 0x400014, Kind: disasm.DestJump}},
		},
		{
			name: "mips nop", arch: arch.MIPS, addr: 0x400000,
			raw: []byte{0x00, 0x00, 0x00, 0x00}, mnemonic: ".word", opstr: "0x00000000", kind: disasm.KindOrdinary,
			dests: []disasm.Destination{{Addr: 0x400004, Kind: disasm.DestImplicit}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insn := classify(t, tt.raw, tt.addr, tt.arch)
			if insn.Mnemonic() != tt.mnemonic {
				t.Errorf("Mnemonic() = %q, want %q", insn.Mnemonic(), tt.mnemonic)
			}
			if insn.OpStr() != tt.opstr {
				t.Errorf("OpStr() = %q, want %q", insn.OpStr(), tt.opstr)
			}
			if insn.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", insn.Kind(), tt.kind)
			}
			if got := insn.Dests(); !reflect.DeepEqual(got, tt.dests) {
				t.Errorf("Dests() = %v, want %v", got, tt.dests)
			}
		})
	}
}

func TestDecodeRegisters(t *testing.T) {
	tests := []struct {
		name          string
		arch          arch.Arch
		raw           []byte
		read, written []string
	}{
		{"arm bl", arch.ARM, []byte{0x01, 0x00, 0x00, 0xeb}, nil, []string{"lr"}},
		{"arm pop pc", arch.ARM, []byte{0x10, 0x80, 0xbd, 0xe8}, []string{"sp"}, []string{"sp", "r4", "pc"}},
		{"arm bx lr", arch.ARM, []byte{0x1e, 0xff, 0x2f, 0xe1}, []string{"lr"}, nil},
		{"arm data", arch.ARM, []byte{0x00, 0x00, 0xa0, 0xe1}, nil, nil},
		{"thumb push lr", arch.Thumb, []byte{0x10, 0xb5}, []string{"sp", "r4", "lr"}, []string{"sp"}},
		{"thumb cbz", arch.Thumb, []byte{0x08, 0xb1}, []string{"r0"}, nil},
		{"aarch64 blr", arch.AArch64, []byte{0x00, 0x02, 0x3f, 0xd6}, []string{"x16"}, []string{"x30"}},
		{"aarch64 cbz", arch.AArch64, []byte{0x40, 0x00, 0x00, 0xb4}, []string{"x0"}, nil},
		{"ppc bl", arch.PPC, []byte{0x48, 0x00, 0x00, 0x05}, nil, []string{"lr"}},
		{"ppc bdnz", arch.PPC, []byte{0x42, 0x00, 0x00, 0x08}, []string{"ctr"}, []string{"ctr"}},
		{"ppc blr", arch.PPC, []byte{0x4e, 0x80, 0x00, 0x20}, []string{"lr"}, nil},
		{"mips jalr", arch.MIPS, []byte{0x03, 0x20, 0xf8, 0x09}, []string{"$t9"}, []string{"$ra"}},
		{"mips jal", arch.MIPS, []byte{0x0c, 0x10, 0x00, 0x40}, nil, []string{"$ra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insn := classify(t, tt.raw, 0x1000, tt.arch)
			if got := insn.RegsRead(); !reflect.DeepEqual(got, tt.read) {
				t.Errorf("RegsRead() = %v, want %v", got, tt.read)
			}
			if got := insn.RegsWritten(); !reflect.DeepEqual(got, tt.written) {
				t.Errorf("RegsWritten() = %v, want %v", got, tt.written)
			}
		})
	}
}

func TestThumbOffset24(t *testing.T) {
	tests := []struct {
		name string
		inst uint32
		want int64
	}{
		{"zero", 0xf000f800, 0},
		{"minus two", 0xf7fffffe, -4},
		{"plus 0x1000", 0xf001f800, 0x1000},
	}
	for _, tt := range tests {
		if got := thumbOffset24(tt.inst, 0x7ff); got != tt.want {
			t.Errorf("%s: thumbOffset24(%#x) = %#x, want %#x", tt.name, tt.inst, got, tt.want)
		}
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		arch arch.Arch
	}{
		{"x86 unsupported", []byte{0x90}, arch.X8664},
		{"short word", []byte{0x00, 0x00}, arch.AArch64},
		{"thumb truncated", []byte{0x00, 0xf0}, arch.Thumb},
		{"thumb single byte", []byte{0x00}, arch.Thumb},
	}
	for _, tt := range tests {
		_, err := New().Decode(tt.raw, 0x1000, tt.arch)
		if !errors.Is(err, disasm.ErrDecodeFailure) {
			t.Errorf("%s: error = %v, want ErrDecodeFailure", tt.name, err)
		}
	}
}

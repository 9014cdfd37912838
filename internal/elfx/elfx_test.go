package elfx

import (
	"debug/elf"
	"errors"
	"testing"

	"staticflow/internal/arch"
)

func TestArch(t *testing.T) {
	tests := []struct {
		name    string
		machine elf.Machine
		class   elf.Class
		data    elf.Data
		entry   uint64
		want    arch.Arch
	}{
		{"i386", elf.EM_386, elf.ELFCLASS32, elf.ELFDATA2LSB, 0x8048000, arch.X86},
		{"amd64", elf.EM_X86_64, elf.ELFCLASS64, elf.ELFDATA2LSB, 0x401000, arch.X8664},
		{"arm", elf.EM_ARM, elf.ELFCLASS32, elf.ELFDATA2LSB, 0x10000, arch.ARM},
		{"thumb entry", elf.EM_ARM, elf.ELFCLASS32, elf.ELFDATA2LSB, 0x10001, arch.Thumb},
		{"arm64", elf.EM_AARCH64, elf.ELFCLASS64, elf.ELFDATA2LSB, 0x400000, arch.AArch64},
		{"ppc", elf.EM_PPC, elf.ELFCLASS32, elf.ELFDATA2MSB, 0x10000000, arch.PPC},
		{"mips", elf.EM_MIPS, elf.ELFCLASS32, elf.ELFDATA2MSB, 0x400000, arch.MIPS},
		{"mipsel", elf.EM_MIPS, elf.ELFCLASS32, elf.ELFDATA2LSB, 0x400000, arch.MIPSEL},
	}
	for _, tt := range tests {
		h := elf.FileHeader{Machine: tt.machine, Class: tt.class, Data: tt.data}
		got, err := Arch(h, tt.entry)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: Arch() = %s, want %s", tt.name, got, tt.want)
		}
	}

	unsupported := []elf.FileHeader{
		{Machine: elf.EM_PPC64, Class: elf.ELFCLASS64},
		{Machine: elf.EM_MIPS, Class: elf.ELFCLASS64},
		{Machine: elf.EM_RISCV, Class: elf.ELFCLASS64},
	}
	for _, h := range unsupported {
		if _, err := Arch(h, 0); !errors.Is(err, arch.ErrUnsupported) {
			t.Errorf("%s: error = %v, want ErrUnsupported", h.Machine, err)
		}
	}
}

func testImage() *Image {
	all := make([]byte, 0x40)
	for i := range all {
		all[i] = byte(i)
	}
	return &Image{
		All: all,
		Loads: []Seg{
			{Vaddr: 0x1000, Off: 0x10, Filesz: 0x10, Flags: elf.PF_R | elf.PF_X},
			{Vaddr: 0x2000, Off: 0x20, Filesz: 0x20, Flags: elf.PF_R | elf.PF_W},
		},
	}
}

func TestReadMemory(t *testing.T) {
	im := testImage()
	tests := []struct {
		name  string
		va    uint64
		n     int
		first byte
		size  int
	}{
		{"start of segment", 0x1000, 4, 0x10, 4},
		{"clamped at segment end", 0x100c, 16, 0x1c, 4},
		{"second segment", 0x2008, 8, 0x28, 8},
		{"unmapped", 0x3000, 4, 0, 0},
		{"between segments", 0x1010, 4, 0, 0},
	}
	for _, tt := range tests {
		got, err := im.ReadMemory(tt.va, tt.n)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if len(got) != tt.size {
			t.Errorf("%s: len = %d, want %d", tt.name, len(got), tt.size)
			continue
		}
		if tt.size > 0 && got[0] != tt.first {
			t.Errorf("%s: first byte = %#x, want %#x", tt.name, got[0], tt.first)
		}
	}
	if !im.IsExec(0x1004) || im.IsExec(0x2004) {
		t.Error("IsExec does not follow segment flags")
	}
	if off, ok := im.VA2Off(0x2004); !ok || off != 0x24 {
		t.Errorf("VA2Off(0x2004) = %#x, %v", off, ok)
	}
}

func TestFunctionSymbols(t *testing.T) {
	im := &Image{
		Syms: []Sym{
			{Name: "main", Addr: 0x1010, Func: true},
			{Name: "data", Addr: 0x2000},
			{Name: "helper", Addr: 0x1000, Func: true},
		},
		Dynsyms: []Sym{
			{Name: "main_dyn", Addr: 0x1010, Func: true},
			{Name: "puts@plt", Addr: 0x900, Func: true, IsPLT: true},
			{Name: "exported", Addr: 0x1020, Func: true},
		},
	}
	got := im.FunctionSymbols()
	want := []string{"helper", "main", "exported"}
	if len(got) != len(want) {
		t.Fatalf("FunctionSymbols() = %+v", got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("FunctionSymbols()[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
	if sym, ok := im.FindFunctionByName("exported"); !ok || sym.Addr != 0x1020 {
		t.Errorf("FindFunctionByName(exported) = %+v, %v", sym, ok)
	}
	if _, ok := im.FindFunctionByName("data"); ok {
		t.Error("FindFunctionByName matched a data symbol")
	}
}

package cmd

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// aarch64, loaded at 0x1000:
//
//	1000 cbz x0, 0x100c
//	1004 bl  0x2000
//	1008 b   0x1010
//	100c nop
//	1010 ret
func writeA64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	for _, w := range []uint32{0xb4000060, 0x940003ff, 0x14000002, 0xd503201f, 0xd65f03c0} {
		binary.Write(&buf, binary.LittleEndian, w)
	}
	path := filepath.Join(t.TempDir(), "a64.bin")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("STATICFLOW_LOG_LEVEL", "error")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestDisasmRaw(t *testing.T) {
	path := writeA64(t)
	out := run(t, "disasm", "--raw", "--arch", "arm64", "--base", "0x1000", "--addr", "0x1000", "--count", "5", path)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	for i, want := range []string{"cbz", "bl", "b", "nop", "ret"} {
		fields := strings.Fields(lines[i])
		if len(fields) < 2 || fields[1] != want {
			t.Errorf("line %d = %q, want mnemonic %s", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[1], "0x2000") {
		t.Errorf("call target missing: %q", lines[1])
	}
}

func TestDisasmWithTrace(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "x86.bin")
	// mov eax, dword ptr [ebp+0x8]
	if err := os.WriteFile(bin, []byte{0x8b, 0x45, 0x08}, 0o644); err != nil {
		t.Fatal(err)
	}
	tr := filepath.Join(dir, "trace.yaml")
	doc := "registers: [EBP, ESP]\nsnapshots:\n  - {clnum: 4, values: [0x2000, 0x3000]}\n"
	if err := os.WriteFile(tr, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	out := run(t, "disasm", "--raw", "--arch", "i386", "--base", "0x400", "--addr", "0x400", "--count", "1",
		"--trace", tr, "--clnum", "4", bin)
	if !strings.Contains(out, "[0x2008]") {
		t.Errorf("operand not resolved:\n%s", out)
	}
}

func TestExploreDOT(t *testing.T) {
	path := writeA64(t)
	out := run(t, "explore", "--raw", "--arch", "aarch64", "--base", "0x1000", "--addr", "0x1000", "--dot", path)
	if !strings.Contains(out, "digraph") || !strings.Contains(out, `kind="cjump"`) {
		t.Errorf("DOT output:\n%s", out)
	}
}

func TestExploreListing(t *testing.T) {
	path := writeA64(t)
	out := run(t, "explore", "--raw", "--arch", "aarch64", "--base", "0x1000", "--addr", "0x1000", "--dot=false", path)
	for _, want := range []string{"sub_1000 (4 blocks)", "loc_1010:", "Calls", "0x2000"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing lacks %q:\n%s", want, out)
		}
	}
}

func TestSweepRaw(t *testing.T) {
	path := writeA64(t)
	out := run(t, "sweep", "--raw", "--arch", "aarch64", "--base", "0x1000", "--jobs", "2", path)
	if !strings.Contains(out, "1 functions, 4 blocks, 5 instructions, 0 undecoded") {
		t.Errorf("sweep output:\n%s", out)
	}
}

func TestABI(t *testing.T) {
	out := run(t, "abi", "--yaml", "x64_sysv")
	if !strings.Contains(out, "X64_SYSV:") || !strings.Contains(out, "- RDI") || !strings.Contains(out, "return: RAX") {
		t.Errorf("abi output:\n%s", out)
	}
}

func TestSchema(t *testing.T) {
	out := run(t, "schema")
	if !strings.Contains(out, `"cacheSize"`) {
		t.Errorf("schema output:\n%s", out)
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0x1000", 0x1000, true},
		{"4096", 4096, true},
		{"0o10", 8, true},
		{"main", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := parseAddr(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parseAddr(%q) = %#x, %v", tt.in, got, err)
		}
	}
}

package disasm

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"

	"staticflow/internal/arch"
)

type fakeBackend struct {
	name  string
	facts func(raw []byte, addr uint64) (*Facts, error)
	calls int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Decode(raw []byte, addr uint64, a arch.Arch) (*Facts, error) {
	b.calls++
	return b.facts(raw, addr)
}

func failing(name string) *fakeBackend {
	return &fakeBackend{name: name, facts: func(raw []byte, addr uint64) (*Facts, error) {
		return nil, &DecodeError{Backend: name, Addr: addr, Len: len(raw), Err: errors.New("bad encoding")}
	}}
}

func nop(name string, size int) *fakeBackend {
	return &fakeBackend{name: name, facts: func(raw []byte, addr uint64) (*Facts, error) {
		return &Facts{Address: addr, Size: size, Mnemonic: "nop"}, nil
	}}
}

func quiet() Option {
	return WithLogger(log.New(io.Discard))
}

func TestDecoderFallback(t *testing.T) {
	primary := failing("primary")
	secondary := nop("secondary", 4)
	d, err := NewDecoder([]Backend{primary, secondary}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	insn, err := d.Decode([]byte{1, 2, 3, 4}, 0x1000, arch.ARM)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if insn.Backend() != "secondary" {
		t.Errorf("Backend() = %q, want secondary", insn.Backend())
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", primary.calls, secondary.calls)
	}
	if got := d.Backends(); !reflect.DeepEqual(got, []string{"primary", "secondary"}) {
		t.Errorf("Backends() = %v", got)
	}
}

func TestDecoderAllFail(t *testing.T) {
	d, err := NewDecoder([]Backend{failing("a"), failing("b")}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.Decode([]byte{1, 2, 3, 4}, 0x1000, arch.ARM)
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("error = %v, want ErrDecodeFailure", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Addr != 0x1000 || de.Len != 4 || de.Backend != "" {
		t.Errorf("error = %#v", err)
	}
}

func TestDecoderPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("backend crashed")
	broken := &fakeBackend{name: "broken", facts: func([]byte, uint64) (*Facts, error) { return nil, boom }}
	next := nop("next", 4)
	d, err := NewDecoder([]Backend{broken, next}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Decode([]byte{1, 2, 3, 4}, 0, arch.ARM); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if next.calls != 0 {
		t.Error("fallback backend was tried after a non-decode error")
	}
}

func TestDecoderClassifyFailureFallsBack(t *testing.T) {
	// Claims more bytes than the window holds.
	long := nop("long", 8)
	d, err := NewDecoder([]Backend{long, nop("short", 4)}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	insn, err := d.Decode([]byte{1, 2, 3, 4}, 0, arch.ARM)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if insn.Backend() != "short" {
		t.Errorf("Backend() = %q, want short", insn.Backend())
	}
}

func TestDecoderInputErrors(t *testing.T) {
	b := nop("b", 4)
	d, err := NewDecoder([]Backend{b}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Decode(nil, 0x10, arch.ARM); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("empty window: error = %v, want ErrEmptyInput", err)
	}
	if _, err := d.Decode([]byte{1, 2, 3, 4}, 0, "sparc"); !errors.Is(err, arch.ErrUnsupported) {
		t.Errorf("sparc: error = %v, want ErrUnsupported", err)
	}
	if b.calls != 0 {
		t.Errorf("backend called %d times for rejected input", b.calls)
	}
}

func TestDecoderCache(t *testing.T) {
	b := nop("b", 4)
	d, err := NewDecoder([]Backend{b}, quiet(), WithCacheSize(8))
	if err != nil {
		t.Fatal(err)
	}
	first, _ := d.Decode([]byte{1, 2, 3, 4}, 0x1000, arch.ARM)
	second, _ := d.Decode([]byte{1, 2, 3, 4}, 0x1000, arch.ARM)
	if first != second || b.calls != 1 {
		t.Errorf("cache miss on identical input: calls = %d", b.calls)
	}
	if _, err := d.Decode([]byte{1, 2, 3, 5}, 0x1000, arch.ARM); err != nil || b.calls != 2 {
		t.Errorf("different bytes must decode again: calls = %d, err = %v", b.calls, err)
	}

	uncached, err := NewDecoder([]Backend{b}, quiet(), WithCacheSize(0))
	if err != nil {
		t.Fatal(err)
	}
	uncached.Decode([]byte{1, 2, 3, 4}, 0x1000, arch.ARM)
	uncached.Decode([]byte{1, 2, 3, 4}, 0x1000, arch.ARM)
	if b.calls != 4 {
		t.Errorf("calls = %d, want 4 with caching disabled", b.calls)
	}
}

func TestNewDecoderErrors(t *testing.T) {
	if _, err := NewDecoder(nil); err == nil {
		t.Error("NewDecoder(nil) succeeded")
	}
	if _, err := NewDecoder([]Backend{nop("b", 4)}, WithCacheSize(-1)); err == nil {
		t.Error("negative cache size accepted")
	}
}

func TestSweep(t *testing.T) {
	// Bytes 4..7 are undecodable; everything else is a 4-byte nop.
	b := &fakeBackend{name: "b", facts: func(raw []byte, addr uint64) (*Facts, error) {
		if addr == 0x1004 {
			return nil, &DecodeError{Addr: addr, Err: fmt.Errorf("reserved")}
		}
		return &Facts{Address: addr, Size: 4, Mnemonic: "nop"}, nil
	}}
	d, err := NewDecoder([]Backend{b}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	var skipped []uint64
	stream, err := d.Sweep(make([]byte, 12), 0x1000, arch.ARM, func(addr uint64) { skipped = append(skipped, addr) })
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	var got []uint64
	for _, insn := range stream {
		got = append(got, insn.Address())
	}
	if !reflect.DeepEqual(got, []uint64{0x1000, 0x1008}) {
		t.Errorf("addresses = %#x", got)
	}
	if !reflect.DeepEqual(skipped, []uint64{0x1004}) {
		t.Errorf("skipped = %#x", skipped)
	}
}

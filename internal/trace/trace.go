// Package trace loads register snapshots recorded by a tracer, keyed by
// change number, for substitution into rendered operands.
package trace

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"staticflow/internal/addrexpr"
)

// ErrNoSnapshot is returned by Fetch for a change number the trace lacks.
var ErrNoSnapshot = errors.New("no snapshot for change number")

type snapshot struct {
	Clnum  uint64   `yaml:"clnum" json:"clnum"`
	Values []uint64 `yaml:"values" json:"values"`
}

type file struct {
	Registers []string   `yaml:"registers" json:"registers"`
	Snapshots []snapshot `yaml:"snapshots" json:"snapshots"`
}

// Trace is a set of register snapshots sharing one register list.
type Trace struct {
	registers []string
	byClnum   map[uint64][]uint64
}

// Load reads a YAML or JSON trace file.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading trace file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a trace document. JSON input is accepted as YAML.
func Parse(data []byte) (*Trace, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error unmarshalling trace: %w", err)
	}
	if len(f.Registers) == 0 {
		return nil, fmt.Errorf("trace has no registers")
	}
	t := &Trace{
		registers: make([]string, len(f.Registers)),
		byClnum:   make(map[uint64][]uint64, len(f.Snapshots)),
	}
	for i, r := range f.Registers {
		t.registers[i] = strings.ToLower(strings.TrimSpace(r))
	}
	for _, s := range f.Snapshots {
		if len(s.Values) != len(t.registers) {
			return nil, fmt.Errorf("snapshot %d has %d values for %d registers", s.Clnum, len(s.Values), len(t.registers))
		}
		if _, dup := t.byClnum[s.Clnum]; dup {
			return nil, fmt.Errorf("duplicate snapshot %d", s.Clnum)
		}
		t.byClnum[s.Clnum] = s.Values
	}
	return t, nil
}

// Registers lists the lower-cased register names.
func (t *Trace) Registers() []string { return append([]string(nil), t.registers...) }

// Len is the number of snapshots.
func (t *Trace) Len() int { return len(t.byClnum) }

// Fetch returns the register values at clnum.
func (t *Trace) Fetch(clnum uint64) (addrexpr.Snapshot, error) {
	vals, ok := t.byClnum[clnum]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNoSnapshot, clnum)
	}
	snap := make(addrexpr.Snapshot, len(vals))
	for i, v := range vals {
		snap[t.registers[i]] = v
	}
	return snap, nil
}

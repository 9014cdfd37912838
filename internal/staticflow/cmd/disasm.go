package cmd

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"staticflow/internal/addrexpr"
	"staticflow/internal/analysis"
	"staticflow/internal/tags"
	"staticflow/internal/trace"
	"staticflow/internal/ui/colorize"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm FILE",
	Short: "Linear disassembly with resolved destinations",
	Long: `Disassemble COUNT instructions starting at ADDR. Branch targets with names
are annotated, and bytes no backend can decode are shown as undecoded.
With --trace and --clnum, memory operands are rendered with the register
values recorded at that change number.`,
	Example: `
# 20 instructions at main
staticflow disasm --addr main --count 20 ./a.out

# Substitute registers from a trace
staticflow disasm --addr 0x8048400 --trace regs.yaml --clnum 1200 ./a.out
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		addrFlag, _ := cmd.Flags().GetString("addr")
		start, err := s.resolve(addrFlag)
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		if count <= 0 {
			return fmt.Errorf("count must be positive")
		}

		var regs addrexpr.Snapshot
		if path, _ := cmd.Flags().GetString("trace"); path != "" {
			if !cmd.Flags().Changed("clnum") {
				return fmt.Errorf("--trace needs --clnum")
			}
			tr, err := trace.Load(path)
			if err != nil {
				return err
			}
			clnum, _ := cmd.Flags().GetUint64("clnum")
			if regs, err = tr.Fetch(clnum); err != nil {
				return err
			}
		}

		lines, err := linearListing(s, start, count, regs)
		if err != nil {
			return err
		}
		c := colorize.New(s.arch, s.color)
		out := cmd.OutOrStdout()
		for _, l := range lines {
			fmt.Fprintln(out, c.Line(l.String()))
		}
		return nil
	},
}

// linearListing sweeps count instructions from start. Undecodable units are
// tagged and listed in address order with the decoded ones.
func linearListing(s *session, start uint64, count int, regs addrexpr.Snapshot) ([]analysis.Line, error) {
	code, err := s.mem.ReadMemory(start, count*s.arch.MaxInsnLen())
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("no mapped bytes at %#x", start)
	}

	var lines []analysis.Line
	stream, err := s.decoder.Sweep(code, start, s.arch, func(addr uint64) {
		s.static.Tags(addr).Set(tags.Undecoded, true)
		lines = append(lines, analysis.Undecoded(addr))
	})
	if err != nil {
		return nil, err
	}
	for _, insn := range stream {
		if err := s.static.Tags(insn.Address()).Set(tags.Instruction, insn); err != nil {
			return nil, err
		}
		lines = append(lines, s.static.Annotate(insn, regs))
	}
	slices.SortFunc(lines, func(a, b analysis.Line) int { return cmp.Compare(a.VA, b.VA) })
	if len(lines) > count {
		lines = lines[:count]
	}
	return lines, nil
}

func init() {
	disasmCmd.Flags().String("addr", "", "Start address or symbol (default: entry point)")
	disasmCmd.Flags().IntP("count", "n", 32, "Number of instructions")
	disasmCmd.Flags().String("trace", "", "Register trace file (YAML or JSON)")
	disasmCmd.Flags().Uint64("clnum", 0, "Change number of the snapshot to use")
	rootCmd.AddCommand(disasmCmd)
}

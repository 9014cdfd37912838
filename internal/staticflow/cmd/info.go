package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"staticflow/internal/analysis"
	"staticflow/internal/staticflow/styles"
)

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Show architecture, sections and function symbols",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		section := func(title string) {
			fmt.Fprintln(out, styles.Render(styles.Header, s.color, title))
		}
		field := func(k, v string) {
			fmt.Fprintf(out, "  %-12s %s\n", k, styles.Render(styles.Value, s.color, v))
		}

		section("Image")
		field("arch", s.arch.String())
		field("bits", fmt.Sprint(s.arch.Bits()))
		field("entry", fmt.Sprintf("%#x", s.entry()))
		field("backends", fmt.Sprint(s.decoder.Backends()))
		if s.img == nil {
			field("base", fmt.Sprintf("%#x", s.base))
			field("size", fmt.Sprintf("%#x", s.size))
			return nil
		}

		fmt.Fprintln(out)
		section("Sections")
		for _, sec := range s.img.Sections {
			flag := ""
			if sec.Exec {
				flag = "x"
			}
			fmt.Fprintf(out, "  %-20s %s %8x %s\n", sec.Name,
				styles.Render(styles.Address, s.color, fmt.Sprintf("%#010x", sec.VA)), sec.Size, flag)
		}

		fmt.Fprintln(out)
		section("Functions")
		writeSymbols(out, s)
		return nil
	},
}

func writeSymbols(out io.Writer, s *session) {
	for _, start := range s.starts {
		a, _ := s.static.Tags(start).ArchTag()
		mode := ""
		if a != s.arch {
			mode = " (" + a.String() + ")"
		}
		fmt.Fprintf(out, "  %s %s%s\n",
			styles.Render(styles.Address, s.color, fmt.Sprintf("%#010x", start)),
			styles.Render(styles.Name, s.color, s.name(start)),
			styles.Render(styles.Note, s.color, mode))
	}
	names, hits := analysis.DemangleCacheStats()
	fmt.Fprintln(out, styles.Render(styles.Note, s.color, fmt.Sprintf("  %d symbols, %d demangled names cached, %d hits", len(s.starts), names, hits)))
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

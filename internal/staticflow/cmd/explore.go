package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"staticflow/internal/staticflow/styles"
	"staticflow/internal/ui/colorize"
)

var exploreCmd = &cobra.Command{
	Use:   "explore FILE",
	Short: "Explore one function and print its blocks",
	Long: `Walk the basic blocks reachable from ADDR without following calls, then
print the annotated blocks, or the control-flow graph in Graphviz DOT with --dot.`,
	Example: `
staticflow explore --addr main ./a.out
staticflow explore --addr 0x401000 --dot ./a.out | dot -Tpng > cfg.png
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
		fn, err := s.static.ExploreFunction(start)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if dot, _ := cmd.Flags().GetBool("dot"); dot {
			return s.static.WriteDOT(out, fn)
		}

		fmt.Fprintf(out, "%s %s\n", styles.Render(styles.Header, s.color, s.name(start)),
			styles.Render(styles.Note, s.color, fmt.Sprintf("(%d blocks)", len(fn.Blocks()))))

		c := colorize.New(s.arch, s.color)
		for _, l := range s.static.Listing(fn, nil) {
			fmt.Fprintln(out, c.Line(l.String()))
		}

		if callees := s.static.Callees(start); len(callees) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, styles.Render(styles.Header, s.color, "Calls"))
			for _, a := range callees {
				fmt.Fprintf(out, "  %s %s\n", styles.Render(styles.Address, s.color, fmt.Sprintf("%#x", a)),
					styles.Render(styles.Name, s.color, s.name(a)))
			}
		}
		return nil
	},
}

func init() {
	exploreCmd.Flags().String("addr", "", "Function address or symbol (default: entry point)")
	exploreCmd.Flags().Bool("dot", false, "Print the control-flow graph in DOT")
	rootCmd.AddCommand(exploreCmd)
}

package cmd

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"staticflow/internal/model"
	"staticflow/internal/staticflow/styles"
	"staticflow/internal/tags"
)

type sweepResult struct {
	start     uint64
	blocks    int
	insns     int
	undecoded int
	callees   int
}

var sweepCmd = &cobra.Command{
	Use:   "sweep FILE",
	Short: "Explore every function symbol",
	Long: `Explore the entry point and every function symbol concurrently, then print
per-function block, instruction and callee counts.`,
	Example: `
staticflow sweep --jobs 8 ./a.out
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		starts := s.starts
		if !slices.Contains(starts, s.entry()) {
			starts = append(starts, s.entry())
		}
		slices.Sort(starts)

		jobs, _ := cmd.Flags().GetInt("jobs")
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		results := make([]sweepResult, len(starts))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(jobs)
		for i, start := range starts {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				fn, err := s.static.ExploreFunction(start)
				if err != nil {
					return fmt.Errorf("function %s: %w", s.name(start), err)
				}
				results[i] = summarize(s, fn)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Render(styles.Header, s.color,
			fmt.Sprintf("%-18s %6s %6s %6s %6s  %s", "ADDRESS", "BLOCKS", "INSNS", "CALLS", "UNDEC", "NAME")))
		var total sweepResult
		for _, r := range results {
			fmt.Fprintf(out, "%s %6d %6d %6d %6d  %s\n",
				styles.Render(styles.Address, s.color, fmt.Sprintf("%-#18x", r.start)),
				r.blocks, r.insns, r.callees, r.undecoded,
				styles.Render(styles.Name, s.color, s.name(r.start)))
			total.blocks += r.blocks
			total.insns += r.insns
			total.undecoded += r.undecoded
		}
		fmt.Fprintln(out, styles.Render(styles.Note, s.color,
			fmt.Sprintf("%d functions, %d blocks, %d instructions, %d undecoded", len(results), total.blocks, total.insns, total.undecoded)))
		return nil
	},
}

func summarize(s *session, fn *model.Function) sweepResult {
	r := sweepResult{start: fn.Start(), callees: len(s.static.Callees(fn.Start()))}
	for _, b := range fn.Blocks() {
		r.blocks++
		for _, a := range b.Addresses() {
			if s.static.Tags(a).Has(tags.Undecoded) {
				r.undecoded++
			} else {
				r.insns++
			}
		}
	}
	return r
}

func init() {
	sweepCmd.Flags().IntP("jobs", "j", 0, "Concurrent explorations (default: number of CPUs)")
	rootCmd.AddCommand(sweepCmd)
}

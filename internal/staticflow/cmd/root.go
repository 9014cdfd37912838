package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"staticflow/internal/staticflow/log"
)

var rootCmd = &cobra.Command{
	Use:   "staticflow",
	Short: "Static control-flow recovery for machine code",
	Long: `Staticflow decodes machine code for x86, ARM, AArch64, PowerPC and MIPS,
classifies every instruction by where control goes next, and builds basic
blocks, functions and control-flow graphs from those destinations.`,
	Example: `
# Disassemble from the entry point
staticflow disasm /path/to/binary

# Explore one function and render its graph
staticflow explore --addr 0x401000 --dot /path/to/binary | dot -Tsvg > cfg.svg

# Raw blob loaded at 0x8000
staticflow disasm --raw --arch thumb --base 0x8000 blob.bin
  `,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.Setup(debug)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().StringP("arch", "a", "", "Override the architecture (i386, x86-64, arm, thumb, aarch64, ppc, mips, mipsel)")
	rootCmd.PersistentFlags().StringSlice("backends", nil, "Decoder backends, tried in order")
	rootCmd.PersistentFlags().Int("window", 0, "Bytes handed to the decoder per address")
	rootCmd.PersistentFlags().Bool("raw", false, "Treat FILE as raw bytes instead of an ELF image")
	rootCmd.PersistentFlags().String("base", "0", "Load address of a raw file")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

func Execute() {
	// fang renders help and errors for terminals; plain cobra otherwise
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

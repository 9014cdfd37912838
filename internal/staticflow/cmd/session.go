package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"staticflow/internal/analysis"
	"staticflow/internal/arch"
	"staticflow/internal/config"
	"staticflow/internal/disasm"
	"staticflow/internal/elfx"
	"staticflow/internal/logging"
)

// session is one opened input: the image, the decoder and the analysis
// context over it.
type session struct {
	cfg     *config.Config
	logger  *logging.LoggerCloser
	img     *elfx.Image // nil for raw input
	mem     analysis.Memory
	decoder *disasm.Decoder
	static  *analysis.Static
	arch    arch.Arch
	base    uint64
	size    uint64
	starts  []uint64
	color   bool
}

// loadConfig reads the environment and applies the command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("arch") {
		cfg.Arch, _ = flags.GetString("arch")
	}
	if flags.Changed("backends") {
		cfg.Backends, _ = flags.GetStringSlice("backends")
	}
	if flags.Changed("window") {
		cfg.Window, _ = flags.GetInt("window")
	}
	if flags.Changed("no-color") {
		cfg.NoColor, _ = flags.GetBool("no-color")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseAddr(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}

func openSession(cmd *cobra.Command, path string) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logging.NewLogger()}
	if cfg.Debug {
		s.logger.SetLevel(log.DebugLevel)
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		s.color = !cfg.NoColor && term.IsTerminal(f.Fd())
	}

	raw, _ := cmd.Flags().GetBool("raw")
	if raw {
		err = s.openRaw(cmd, path)
	} else {
		err = s.openELF(path)
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	s.decoder, err = analysis.NewDecoder(cfg.Backends, cfg.CacheSize, s.logger.WithPrefix("disasm"))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.static, err = analysis.New(s.mem, s.decoder, s.arch,
		analysis.WithWindow(cfg.Window),
		analysis.WithLogger(s.logger.WithPrefix("analysis")))
	if err != nil {
		s.Close()
		return nil, err
	}
	if s.img != nil {
		if s.starts, err = s.static.SeedSymbols(s.img.FunctionSymbols()); err != nil {
			s.Close()
			return nil, err
		}
	}
	slog.Debug("opened", "file", path, "arch", s.arch, "backends", cfg.Backends, "symbols", len(s.starts))
	return s, nil
}

func (s *session) openRaw(cmd *cobra.Command, path string) error {
	if s.cfg.Arch == "" {
		return fmt.Errorf("raw input needs --arch")
	}
	a, err := arch.Parse(s.cfg.Arch)
	if err != nil {
		return err
	}
	baseStr, _ := cmd.Flags().GetString("base")
	base, err := parseAddr(baseStr)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}
	s.arch, s.base, s.size = a, base, uint64(len(data))
	s.mem = &analysis.FlatMemory{Base: base, Data: data}
	return nil
}

func (s *session) openELF(path string) error {
	img, err := elfx.Open(path)
	if err != nil {
		return err
	}
	s.img, s.mem, s.arch = img, img, img.Arch
	s.base, s.size = img.Text.VA, img.Text.Size
	if s.cfg.Arch != "" {
		if s.arch, err = arch.Parse(s.cfg.Arch); err != nil {
			return err
		}
	}
	return nil
}

// entry is the default start address: the ELF entry point, or the base of
// a raw file.
func (s *session) entry() uint64 {
	if s.img != nil {
		return s.img.Entry
	}
	return s.base
}

// resolve turns a --addr value, which may be a symbol name, into an address.
func (s *session) resolve(v string) (uint64, error) {
	if v == "" {
		return s.entry(), nil
	}
	if a, ok := s.static.Lookup(v); ok {
		return a, nil
	}
	return parseAddr(v)
}

func (s *session) Close() error {
	if s.img != nil {
		s.img.Close()
	}
	return s.logger.Close()
}

// name is the display name of addr.
func (s *session) name(addr uint64) string {
	if n, ok := s.static.Name(addr); ok {
		return n
	}
	return fmt.Sprintf("sub_%x", addr)
}

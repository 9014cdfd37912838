// Package colorize highlights listing lines for terminal output with chroma.
package colorize

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"staticflow/internal/arch"
)

// Colorizer highlights listing lines written for one architecture.
type Colorizer struct {
	enabled   bool
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter chroma.Formatter
}

// New returns a colorizer for a. A disabled colorizer returns lines
// unchanged.
func New(a arch.Arch, enabled bool) *Colorizer {
	c := &Colorizer{
		enabled:   enabled,
		lexer:     assemblyLexer(a),
		style:     disasmStyle(),
		formatter: terminalFormatter(),
	}
	if c.lexer == nil {
		c.enabled = false
	}
	return c
}

// Enabled reports whether Line adds escape sequences.
func (c *Colorizer) Enabled() bool { return c.enabled }

// assemblyLexer picks a lexer for the family's assembly syntax, with fallbacks
func assemblyLexer(a arch.Arch) chroma.Lexer {
	var candidates []string
	switch a.Family() {
	case arch.FamilyX86:
		candidates = []string{"nasm", "gas"}
	case arch.FamilyARM:
		candidates = []string{"armasm", "gas"}
	default:
		candidates = []string{"gas", "nasm"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

// disasmStyle returns the disassembly style with fallbacks
func disasmStyle() *chroma.Style {
	for _, name := range []string{DisasmDark.Name, "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// terminalFormatter prefers true color, then 256 colors
func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Line colorizes one listing line. The leading address column is shown in
// gray, labels in gold, and the instruction text goes through the lexer.
func (c *Colorizer) Line(line string) string {
	if !c.enabled {
		return line
	}
	addr, rest, ok := strings.Cut(line, " ")
	if !ok || !isHex(addr) {
		return c.highlight(line)
	}
	head := fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m", addr)
	if label := strings.TrimSpace(rest); strings.HasSuffix(label, ":") {
		return fmt.Sprintf("%s \033[38;2;255;215;0m%s\033[0m", head, rest)
	}
	return head + " " + c.highlight(rest)
}

// Code colorizes a multi-line listing.
func (c *Colorizer) Code(code string) (string, error) {
	if !c.enabled {
		return code, nil
	}
	iterator, err := c.lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := c.formatter.Format(&buf, c.style, iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

func (c *Colorizer) highlight(s string) string {
	out, err := c.Code(s)
	if err != nil {
		return s
	}
	// some lexers terminate their input with a newline
	if !strings.Contains(s, "\n") {
		out = strings.ReplaceAll(out, "\n", "")
	}
	return out
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')) {
			return false
		}
	}
	return true
}

// Strip removes ANSI color sequences.
func Strip(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}

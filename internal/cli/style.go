package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	clrBrand = lipgloss.Color("114") // green
	clrRed   = lipgloss.Color("203")
	clrDim   = lipgloss.Color("245")
)

// styles wraps lipgloss renderers that respect TTY detection. When output is
// not a terminal (piped, redirected, --json), styling is disabled and raw
// text is emitted.
type styles struct {
	enabled bool

	Brand lipgloss.Style
	Key   lipgloss.Style
	Error lipgloss.Style
}

func newStyles(w io.Writer, jsonMode bool) styles {
	enabled := false
	if !jsonMode {
		if f, ok := w.(*os.File); ok {
			enabled = term.IsTerminal(int(f.Fd()))
		}
	}

	s := styles{enabled: enabled}
	if !enabled {
		noop := lipgloss.NewStyle()
		s.Brand = noop
		s.Key = noop
		s.Error = noop
		return s
	}

	s.Brand = lipgloss.NewStyle().Foreground(clrBrand).Bold(true)
	s.Key = lipgloss.NewStyle().Foreground(clrDim)
	s.Error = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	return s
}

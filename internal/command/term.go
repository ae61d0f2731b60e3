package command

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/maxmcd/shaderloom/internal/starutil"
	"github.com/moby/term"
)

var (
	moduleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	digestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const defaultWidth = 80

func terminalWidth() int {
	if !term.IsTerminal(os.Stdout.Fd()) {
		return defaultWidth
	}
	ws, err := term.GetWinsize(os.Stdout.Fd())
	if err != nil || ws.Width == 0 {
		return defaultWidth
	}
	return int(ws.Width)
}

// formatError annotates err with script positions and colors it when out is
// a terminal.
func formatError(err error, sources starutil.SourceFunc, out io.Writer) string {
	msg := starutil.AnnotateError(err, sources)
	if f, ok := out.(*os.File); ok && term.IsTerminal(f.Fd()) {
		return errorStyle.Render(msg)
	}
	return msg
}

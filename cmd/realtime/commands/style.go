package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	primary = lipgloss.Color("#00ff9f")
	dim     = lipgloss.Color("#6e7681")
	warn    = lipgloss.Color("#ffb86c")
	bad     = lipgloss.Color("#ff5555")

	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(dim)
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(primary)
	infoStyle      = lipgloss.NewStyle().Foreground(dim)
	warnStyle      = lipgloss.NewStyle().Foreground(warn)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(bad)
)

func printLine(w io.Writer, label lipgloss.Style, who, text string) {
	fmt.Fprintf(w, "%s %s\n", label.Render(fmt.Sprintf("%-9s", who)), text)
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf(format, args...)))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render("! "+fmt.Sprintf(format, args...)))
}

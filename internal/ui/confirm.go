package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirmation describes a destructive operation the user must acknowledge
// by typing Phrase.
type Confirmation struct {
	Title    string
	Warnings []string
	Phrase   string
}

// Render returns the styled warning box
func (c Confirmation) Render(width int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := []string{
		"",
		WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, c.Title)),
		"",
	}
	for _, warning := range c.Warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+warning))
	}
	lines = append(lines, "")

	return boxStyle(WarningColor, width).Render(strings.Join(lines, "\n"))
}

// Ask shows the warning on out and reads one line from in. It returns true
// only if the line equals Phrase.
func (c Confirmation) Ask(in io.Reader, out io.Writer) bool {
	_, _ = fmt.Fprintln(out, c.Render(GetTerminalWidth()))
	_, _ = fmt.Fprintln(out)

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, prompt.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", c.Phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.TrimSpace(input) == c.Phrase {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// FactoryResetConfirmation guards the FACTORY_RESET and RESET_NVS commands
func FactoryResetConfirmation(device string) Confirmation {
	return Confirmation{
		Title: "FACTORY RESET",
		Warnings: []string{
			"This erases the stored network credentials on " + device,
			"The device restarts and comes back in provisioning mode",
			"You will need to run 'fieldlink provision' again",
		},
		Phrase: "RESET",
	}
}

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LogBox displays device log lines captured from the diagnostic channel
type LogBox struct {
	Title    string   // e.g., "Device Log"
	Lines    []string // Lines in arrival order
	Width    int      // Terminal width
	MaxLines int      // Keep only the newest lines (0 = unlimited)
}

// NewLogBox creates a log box over lines
func NewLogBox(lines []string) *LogBox {
	return &LogBox{
		Title: "Device Log",
		Lines: lines,
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (l *LogBox) SetWidth(width int) *LogBox {
	l.Width = width
	return l
}

// SetTitle sets a custom title for the box
func (l *LogBox) SetTitle(title string) *LogBox {
	l.Title = title
	return l
}

// SetMaxLines limits the number of lines displayed to the newest max
func (l *LogBox) SetMaxLines(max int) *LogBox {
	l.MaxLines = max
	return l
}

func (l *LogBox) visible() []string {
	if l.MaxLines > 0 && len(l.Lines) > l.MaxLines {
		return l.Lines[len(l.Lines)-l.MaxLines:]
	}
	return l.Lines
}

// Render returns the styled box as a string
func (l *LogBox) Render() string {
	width := l.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := []string{lipgloss.NewStyle().Foreground(MutedColor).Bold(true).Render(l.Title)}
	visible := l.visible()
	if len(visible) == 0 {
		lines = append(lines, StepNoteStyle.Render("(no output)"))
	}
	for _, line := range visible {
		lines = append(lines, StyleLogLine(line))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width - 4).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (l *LogBox) String() string {
	return l.Render()
}

// StyleLogLine colours a relayed device line by its level prefix
func StyleLogLine(line string) string {
	switch {
	case strings.HasPrefix(line, "[E] "):
		return LogErrorStyle.Render(line)
	case strings.HasPrefix(line, "[W] "):
		return LogWarnStyle.Render(line)
	case strings.HasPrefix(line, "STATE:"):
		return LogStatusStyle.Render(line)
	default:
		return LogInfoStyle.Render(line)
	}
}

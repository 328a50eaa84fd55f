// Package ui renders shellm's console surface: cycle headers, command
// output, notices, and chat prompts.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"shellm/internal/shell"
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	cycleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	stderrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

// Console writes styled events to one writer. It implements
// agent.Observer and doubles as the chat REPL's printer.
type Console struct {
	w io.Writer
}

// NewConsole creates a console over w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Banner prints the startup header.
func (c *Console) Banner(model, host string) {
	fmt.Fprintln(c.w, bannerStyle.Render("shellm"), faintStyle.Render(fmt.Sprintf("%s @ %s", model, host)))
}

// Command reports the command the model issued for this cycle.
func (c *Console) Command(cycle int, command string) {
	fmt.Fprintf(c.w, "%s %s\n", cycleStyle.Render(fmt.Sprintf("[cycle %d] $", cycle)), commandStyle.Render(command))
}

// Result reports a completed execution.
func (c *Console) Result(cycle int, res shell.Result) {
	fmt.Fprintln(c.w, faintStyle.Render(fmt.Sprintf("[cycle %d] exit code %d (%s)", cycle, *res.ExitCode, res.Duration.Round(time.Millisecond))))
	if res.Stdout != "" {
		fmt.Fprint(c.w, res.Stdout)
		c.ensureNewline(res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprint(c.w, stderrStyle.Render(strings.TrimRight(res.Stderr, "\n")))
		fmt.Fprintln(c.w)
	}
	if res.Truncated {
		fmt.Fprintln(c.w, faintStyle.Render("(output truncated)"))
	}
}

// Notice reports a timeout or host-fault recovery message.
func (c *Console) Notice(cycle int, text string) {
	fmt.Fprintf(c.w, "%s %s\n", cycleStyle.Render(fmt.Sprintf("[cycle %d]", cycle)), noticeStyle.Render(text))
}

// Interjections reports operator messages merged into this cycle.
func (c *Console) Interjections(cycle int, msgs []string) {
	for _, msg := range msgs {
		fmt.Fprintf(c.w, "%s %s\n", cycleStyle.Render(fmt.Sprintf("[cycle %d] operator:", cycle)), msg)
	}
}

// Prompt prints the chat input marker.
func (c *Console) Prompt() {
	fmt.Fprint(c.w, promptStyle.Render("you> "))
}

// Fragment prints one streamed reply fragment without a newline.
func (c *Console) Fragment(s string) {
	fmt.Fprint(c.w, s)
}

// EndReply terminates a streamed reply line.
func (c *Console) EndReply() {
	fmt.Fprintln(c.w)
}

// Info prints a faint status line.
func (c *Console) Info(text string) {
	fmt.Fprintln(c.w, faintStyle.Render(text))
}

// Error prints an error line.
func (c *Console) Error(err error) {
	fmt.Fprintln(c.w, stderrStyle.Render("error: "+err.Error()))
}

func (c *Console) ensureNewline(s string) {
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(c.w)
	}
}

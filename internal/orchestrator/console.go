package orchestrator

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
)

var (
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorWarning = lipgloss.Color("#e0af68")
	colorError   = lipgloss.Color("#f7768e")
	colorMuted   = lipgloss.Color("#565f89")
)

// Console prints the interactive session. Colors are dropped when out is
// not a terminal.
type Console struct {
	out      io.Writer
	markdown bool

	title    lipgloss.Style
	progress lipgloss.Style
	agent    lipgloss.Style
	success  lipgloss.Style
	warn     lipgloss.Style
	failure  lipgloss.Style
	label    lipgloss.Style
}

// NewConsole writes to out. With markdown set the final prediction is
// rendered through glamour.
func NewConsole(out io.Writer, markdown bool) *Console {
	if out == nil {
		out = io.Discard
	}
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:      out,
		markdown: markdown,
		title:    r.NewStyle().Foreground(colorPrimary).Bold(true),
		progress: r.NewStyle().Foreground(colorPrimary),
		agent:    r.NewStyle().Foreground(colorWarning),
		success:  r.NewStyle().Foreground(colorSuccess).Bold(true),
		warn:     r.NewStyle().Foreground(colorWarning),
		failure:  r.NewStyle().Foreground(colorError).Bold(true),
		label:    r.NewStyle().Foreground(colorMuted),
	}
}

// Greet asks for the two countries.
func (c *Console) Greet() {
	fmt.Fprintln(c.out, c.title.Render("Welcome! Which two countries do you want to compare?"))
}

// Prompt prints the input marker without a newline.
func (c *Console) Prompt() {
	fmt.Fprint(c.out, "You: ")
}

// Progress redraws the progress line in place.
func (c *Console) Progress(percent float64, description string) {
	fmt.Fprint(c.out, "\r"+c.progress.Render(fmt.Sprintf("Progress: %.1f%% - %s", percent, description)))
}

// AgentMessage prints a question from the requirement phase.
func (c *Console) AgentMessage(text string) {
	fmt.Fprintln(c.out, c.agent.Render(text))
}

// Result prints the final prediction.
func (c *Console) Result(text string) {
	fmt.Fprintln(c.out)
	if c.markdown {
		if rendered, err := renderMarkdown(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

// Generating announces report generation.
func (c *Console) Generating() {
	fmt.Fprintln(c.out, "\nGenerating report...")
}

// Saved prints the written report paths and a short summary.
func (c *Console) Saved(r report.Report, jsonPath, textPath, dir string) {
	fmt.Fprintln(c.out, c.success.Render("Report generated successfully!"))
	fmt.Fprintf(c.out, "Text report saved: %s\n", textPath)
	fmt.Fprintf(c.out, "JSON report saved: %s\n", jsonPath)
	fmt.Fprintln(c.out, "\n"+c.title.Render("Report Summary:"))
	fmt.Fprintf(c.out, "   - %s %s\n", c.label.Render("Generated at:"), r.Metadata.Timestamp)
	fmt.Fprintf(c.out, "   - %s %s\n", c.label.Render("Query analyzed:"), r.Metadata.UserQuery)
	fmt.Fprintf(c.out, "   - %s %s/\n", c.label.Render("Report files created in:"), strings.TrimRight(dir, "/"))
}

// Fallback prints the path of the plain-text fallback report.
func (c *Console) Fallback(path string) {
	fmt.Fprintln(c.out, c.warn.Render("Fallback report saved: "+path))
}

// Error prints err after prefix.
func (c *Console) Error(prefix string, err error) {
	fmt.Fprintln(c.out, c.failure.Render(fmt.Sprintf("%s: %v", prefix, err)))
}

// Farewell closes the session.
func (c *Console) Farewell() {
	fmt.Fprintln(c.out, "\nThank you for using the country comparison tool!")
}

func renderMarkdown(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(80),
		glamour.WithStandardStyle("dark"),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(input)
}

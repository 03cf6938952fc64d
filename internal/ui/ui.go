// Package ui provides console output for vmlauncher
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successColor = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#73F59F"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF6B6B"}
	warningColor = lipgloss.AdaptiveColor{Light: "#EF6C00", Dark: "#FFB347"}
	infoColor    = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#7AB8FF"}
	subtleColor  = lipgloss.AdaptiveColor{Light: "#616161", Dark: "#9E9E9E"}
)

// UI writes styled lines. Colors are dropped when the writer is not a terminal.
type UI struct {
	out io.Writer
	err io.Writer

	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	infoStyle    lipgloss.Style
	subtleStyle  lipgloss.Style
	headerStyle  lipgloss.Style
}

// NewUI writes to stdout and stderr
func NewUI() *UI {
	return newUI(os.Stdout, os.Stderr)
}

// NewUIWithWriter sends all output, errors included, to w
func NewUIWithWriter(w io.Writer) *UI {
	return newUI(w, w)
}

func newUI(out, errOut io.Writer) *UI {
	r := lipgloss.NewRenderer(out)
	return &UI{
		out:          out,
		err:          errOut,
		successStyle: r.NewStyle().Foreground(successColor).Bold(true),
		errorStyle:   r.NewStyle().Foreground(errorColor).Bold(true),
		warningStyle: r.NewStyle().Foreground(warningColor).Bold(true),
		infoStyle:    r.NewStyle().Foreground(infoColor),
		subtleStyle:  r.NewStyle().Foreground(subtleColor),
		headerStyle:  r.NewStyle().Bold(true).Underline(true),
	}
}

// Success prints a success message
func (ui *UI) Success(msg string) {
	fmt.Fprintln(ui.out, ui.successStyle.Render("✓ "+msg))
}

// Error prints an error message
func (ui *UI) Error(msg string) {
	fmt.Fprintln(ui.err, ui.errorStyle.Render("✗ "+msg))
}

// Warning prints a warning message
func (ui *UI) Warning(msg string) {
	fmt.Fprintln(ui.out, ui.warningStyle.Render("⚠ "+msg))
}

// Info prints an info message
func (ui *UI) Info(msg string) {
	fmt.Fprintln(ui.out, ui.infoStyle.Render("ℹ "+msg))
}

// Subtle prints a muted message
func (ui *UI) Subtle(msg string) {
	fmt.Fprintln(ui.out, ui.subtleStyle.Render(msg))
}

// Println prints a regular message
func (ui *UI) Println(msg string) {
	fmt.Fprintln(ui.out, msg)
}

// Header prints a section header
func (ui *UI) Header(title string) {
	fmt.Fprintln(ui.out, ui.headerStyle.Render(title))
}

// Separator prints a visual separator
func (ui *UI) Separator() {
	fmt.Fprintln(ui.out, ui.subtleStyle.Render(strings.Repeat("─", 60)))
}

// KeyValue prints a key-value pair
func (ui *UI) KeyValue(key, value string) {
	fmt.Fprintf(ui.out, "  %s: %s\n", ui.subtleStyle.Render(key), value)
}

// Suggestion prints multi-line operator guidance, indented under an error
func (ui *UI) Suggestion(text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(ui.err, ui.subtleStyle.Render("    "+line))
	}
}

// Table prints aligned columns
type Table struct {
	ui      *UI
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func (ui *UI) NewTable(headers ...string) *Table {
	return &Table{ui: ui, headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the header, a separator and every row
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	t.ui.Println(t.ui.headerStyle.Render(t.line(t.headers, widths, " | ")))

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	t.ui.Println(t.ui.subtleStyle.Render(strings.Join(sep, "─┼─")))

	for _, row := range t.rows {
		t.ui.Println(t.line(row, widths, " │ "))
	}
}

func (t *Table) line(cells []string, widths []int, sep string) string {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = padRight(cell, widths[i])
	}
	return strings.Join(parts, sep)
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

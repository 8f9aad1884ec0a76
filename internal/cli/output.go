package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)

	severityColors = map[string]*color.Color{
		"critical": color.New(color.FgRed, color.Bold),
		"high":     color.New(color.FgRed),
		"medium":   color.New(color.FgYellow),
		"low":      color.New(color.FgCyan),
		"info":     color.New(color.FgWhite),
	}
)

type printer struct {
	out    io.Writer
	errOut io.Writer
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{out: out, errOut: errOut}
}

func (p *printer) Success(format string, a ...any) {
	successColor.Fprintf(p.out, "✓ "+format+"\n", a...)
}

func (p *printer) Error(format string, a ...any) {
	errorColor.Fprintf(p.errOut, "✗ "+format+"\n", a...)
}

func (p *printer) Info(format string, a ...any) {
	infoColor.Fprintf(p.out, format+"\n", a...)
}

func (p *printer) Warn(format string, a ...any) {
	warnColor.Fprintf(p.out, "⚠ "+format+"\n", a...)
}

func (p *printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// severityLabel renders a severity in its color.
func severityLabel(level string) string {
	if c, ok := severityColors[level]; ok {
		return c.Sprint(level)
	}
	return level
}

type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table with columns padded to their widest cell. Widths
// ignore ANSI escapes so colored cells stay aligned.
func (t *table) Render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	for i, h := range t.headers {
		fmt.Fprint(w, pad(headerColor.Sprint(h), h, widths[i]))
	}
	fmt.Fprintln(w)

	for i := range t.headers {
		fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(w)

	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			fmt.Fprint(w, pad(cell, cell, widths[i]))
		}
		fmt.Fprintln(w)
	}
}

func pad(rendered, raw string, width int) string {
	return rendered + strings.Repeat(" ", width-visibleLen(raw)+2)
}

func visibleLen(s string) int {
	n := 0
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
			n++
		}
	}
	return n
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

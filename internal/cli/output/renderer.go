// Package output renders command results as styled text, tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// OutputMode selects how a renderer writes results.
type OutputMode string

// Output modes.
const (
	ModeAuto  OutputMode = "auto" // TTY=table, non-TTY=json
	ModeText  OutputMode = "text"
	ModeTable OutputMode = "table"
	ModeJSON  OutputMode = "json"
	ModeYAML  OutputMode = "yaml"
)

// Mode converts a configuration value to an OutputMode.
// Unknown values fall back to ModeAuto.
func Mode(s string) OutputMode {
	switch m := OutputMode(strings.ToLower(s)); m {
	case ModeText, ModeTable, ModeJSON, ModeYAML:
		return m
	default:
		return ModeAuto
	}
}

// Renderer writes command output.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   OutputMode
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	return &Renderer{out: out, errOut: errOut, isTTY: isTTY, mode: mode}
}

// EffectiveMode resolves ModeAuto against the TTY state.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeTable
	}
	return ModeJSON
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool {
	return r.isTTY
}

// Structured reports whether the effective mode is machine readable.
func (r *Renderer) Structured() bool {
	m := r.EffectiveMode()
	return m == ModeJSON || m == ModeYAML
}

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the error writer.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// status writes human messages. Structured modes keep stdout clean.
func (r *Renderer) status() io.Writer {
	if r.Structured() {
		return r.errOut
	}
	return r.out
}

// Header writes a section header.
func (r *Renderer) Header(level int, title string) {
	_, _ = fmt.Fprintln(r.status(), r.style(headerStyle(level), title))
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.status(), r.style(successStyle, "✓ "+msg))
}

// Warning writes a warning to the error writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.style(warningStyle, "! "+msg))
}

// Error writes an error to the error writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.style(errorStyle, "✗ "+msg))
}

// Muted writes dim secondary text.
func (r *Renderer) Muted(msg string) {
	_, _ = fmt.Fprintln(r.status(), r.style(mutedStyle, msg))
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	_, _ = fmt.Fprintln(r.status(), FormatKeyValue(r.style(keyStyle, key), value))
}

// Table writes rows under headers. Text mode writes aligned columns
// without borders.
func (r *Renderer) Table(headers []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	if r.EffectiveMode() == ModeText {
		t.Style().Options = table.OptionsNoBordersAndSeparators
		t.Style().Format.Header = text.FormatDefault
	}

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}
	t.Render()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Data writes v in the structured mode, or calls human otherwise.
func (r *Renderer) Data(v any, human func()) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(v)
	case ModeYAML:
		return r.YAML(v)
	default:
		human()
		return nil
	}
}

// FormatKeyValue formats a "key: value" line.
func FormatKeyValue(key, value string) string {
	return key + ": " + value
}

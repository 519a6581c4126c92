package main

import (
	"fmt"
	"strings"
)

// MarkdownWriter accumulates a markdown page.
type MarkdownWriter struct {
	b strings.Builder
}

// NewMarkdownWriter creates an empty page.
func NewMarkdownWriter() *MarkdownWriter {
	return &MarkdownWriter{}
}

// Frontmatter writes the YAML frontmatter of the page.
func (w *MarkdownWriter) Frontmatter(title, description string) {
	fmt.Fprintf(&w.b, "---\ntitle: %s\ndescription: %q\n---\n\n", title, description)
}

// GeneratedMarker notes that the page must not be edited by hand.
func (w *MarkdownWriter) GeneratedMarker() {
	w.b.WriteString("<!-- Code generated by scripts/gendocs. DO NOT EDIT. -->\n\n")
}

// Header writes a heading of the given level.
func (w *MarkdownWriter) Header(level int, title string) {
	fmt.Fprintf(&w.b, "%s %s\n\n", strings.Repeat("#", level), title)
}

// Paragraph writes a block of text.
func (w *MarkdownWriter) Paragraph(text string) {
	w.b.WriteString(strings.TrimSpace(text))
	w.b.WriteString("\n\n")
}

// CodeBlock writes a fenced code block.
func (w *MarkdownWriter) CodeBlock(lang, code string) {
	fmt.Fprintf(&w.b, "```%s\n%s\n```\n\n", lang, strings.TrimRight(code, "\n"))
}

// BulletList writes one bullet per item.
func (w *MarkdownWriter) BulletList(items []string) {
	for _, item := range items {
		fmt.Fprintf(&w.b, "- %s\n", item)
	}
	w.b.WriteString("\n")
}

// Table writes a pipe table. Pipes inside cells are escaped.
func (w *MarkdownWriter) Table(headers []string, rows [][]string) {
	w.row(headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	w.row(sep)
	for _, r := range rows {
		w.row(r)
	}
	w.b.WriteString("\n")
}

func (w *MarkdownWriter) row(cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	fmt.Fprintf(&w.b, "| %s |\n", strings.Join(escaped, " | "))
}

// Bytes returns the page content.
func (w *MarkdownWriter) Bytes() []byte {
	return []byte(w.b.String())
}

// InlineCode wraps s in backticks.
func InlineCode(s string) string {
	return "`" + s + "`"
}

// cleanDescription collapses a flag or command description to one line.
func cleanDescription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSuffix(s, ".")
}

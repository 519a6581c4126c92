// Package tree is a terminal browser over the tables of a completion session.
// Expanding a table goes through the session's admission controller, so
// browsing never holds more than the configured number of tables open.
package tree

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
)

// Session is the part of session.Session the browser drives.
type Session interface {
	Snapshot() schema.Snapshot
	OnExpand(table string) ([]string, error)
	OnCollapse(table string) bool
	IsExpanded(table string) bool
	OnRefresh(ctx context.Context) error
	Subscribe() chan schema.Event
	Unsubscribe(ch chan schema.Event)
}

// eventMsg carries a cache event into the update loop.
type eventMsg schema.Event

// refreshDoneMsg is sent when a refresh started with "r" completes.
type refreshDoneMsg struct {
	err error
}

// Model is the Bubble Tea model of the table browser.
type Model struct {
	ctx    context.Context
	sess   Session
	events chan schema.Event

	snap       schema.Snapshot
	selection  int
	refreshing bool
	err        error
	spinner    spinner.Model

	width  int
	height int
}

// NewModel creates a browser over sess. events is the subscription the
// model listens on; it may be nil in tests.
func NewModel(ctx context.Context, sess Session, events chan schema.Event) Model {
	return Model{
		ctx:     ctx,
		sess:    sess,
		events:  events,
		snap:    sess.Snapshot(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(loadingStyle)),
	}
}

// Run shows the browser until the user quits or ctx is done.
func Run(ctx context.Context, sess Session, in io.Reader, out io.Writer) error {
	events := sess.Subscribe()
	defer sess.Unsubscribe(events)

	p := tea.NewProgram(NewModel(ctx, sess, events),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events chan schema.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m.snap = m.sess.Snapshot()
		m.clampSelection()
		return m, waitForEvent(m.events)

	case refreshDoneMsg:
		m.refreshing = false
		m.err = msg.err
		m.snap = m.sess.Snapshot()
		m.clampSelection()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.selection > 0 {
			m.selection--
		}

	case "down", "j":
		if m.selection < len(m.snap.Tables)-1 {
			m.selection++
		}

	case "home", "g":
		m.selection = 0

	case "end", "G":
		m.selection = max(len(m.snap.Tables)-1, 0)

	case "enter", " ", "right", "left", "l", "h":
		m.toggle()

	case "r":
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		m.err = nil
		ctx, sess := m.ctx, m.sess
		return m, func() tea.Msg {
			return refreshDoneMsg{err: sess.OnRefresh(ctx)}
		}
	}
	return m, nil
}

// toggle expands or collapses the selected table.
func (m *Model) toggle() {
	if m.selection >= len(m.snap.Tables) {
		return
	}
	name := m.snap.Tables[m.selection].Name()
	m.err = nil
	if m.sess.IsExpanded(name) {
		m.sess.OnCollapse(name)
	} else if _, err := m.sess.OnExpand(name); err != nil {
		m.err = err
	}
	m.snap = m.sess.Snapshot()
}

func (m *Model) clampSelection() {
	if m.selection >= len(m.snap.Tables) {
		m.selection = max(len(m.snap.Tables)-1, 0)
	}
}

// Selected returns the name of the selected table, or "".
func (m Model) Selected() string {
	if m.selection < len(m.snap.Tables) {
		return m.snap.Tables[m.selection].Name()
	}
	return ""
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	columnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	loadingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title()))
	b.WriteRune('\n')

	lines := m.lines()
	start, end := m.window(lines)
	for _, l := range lines[start:end] {
		b.WriteString(l.text)
		b.WriteRune('\n')
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		b.WriteRune('\n')
	}
	b.WriteString(dimStyle.Render("↑/↓ move · enter expand/collapse · r refresh · q quit"))
	return b.String()
}

func (m Model) title() string {
	source := string(m.snap.Source)
	if source == "" {
		source = "no source"
	}
	switch {
	case m.refreshing || m.snap.ListState == schema.ListLoading:
		return fmt.Sprintf("%s %s loading tables", source, m.spinner.View())
	case m.snap.ListState == schema.ListFailed:
		return fmt.Sprintf("%s: %s", source, errorStyle.Render(m.snap.ListErr.Error()))
	default:
		return fmt.Sprintf("%s (%d tables)", source, len(m.snap.Tables))
	}
}

type line struct {
	text  string
	table int // index of the table the line belongs to
}

// lines renders every table, followed by its columns when expanded.
func (m Model) lines() []line {
	var out []line
	for i, t := range m.snap.Tables {
		name := t.Name()
		expanded := m.sess.IsExpanded(name)

		marker := "▸"
		if expanded {
			marker = "▾"
		}
		style := normalStyle
		cursor := "  "
		if i == m.selection {
			style = selectedStyle
			cursor = "> "
		}
		text := cursor + style.Render(marker+" "+name)
		switch t.State {
		case schema.Loading:
			text += " " + m.spinner.View()
		case schema.Failed:
			text += " " + errorStyle.Render("✗ "+t.Err.Error())
		}
		if t.Stub.Comment != "" {
			text += "  " + dimStyle.Render(t.Stub.Comment)
		}
		out = append(out, line{text: text, table: i})

		if expanded && t.Detail != nil {
			for _, c := range t.Detail.Columns {
				col := fmt.Sprintf("      %s %s", c.Name, c.DataType)
				out = append(out, line{text: columnStyle.Render(col), table: i})
			}
		}
	}
	return out
}

// window returns the visible range of lines keeping the selection in view.
func (m Model) window(lines []line) (int, int) {
	// title, error and help lines
	height := m.height - 3
	if height < 1 || height >= len(lines) {
		return 0, len(lines)
	}

	first := 0
	for i, l := range lines {
		if l.table == m.selection {
			first = i
			break
		}
	}
	start := 0
	if first >= height {
		start = first - height/2
	}
	end := min(start+height, len(lines))
	return start, end
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapcomplete/pkg/completion"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"github.com/spf13/cobra"
)

const replPrompt = "leapcomplete> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive SQL completion shell",
		Long: `Start an interactive shell with schema-aware tab completion.

Typing a partial statement and pressing Enter prints the suggestions for the
end of the line. Tab completes in place. Columns appear once their table is
expanded with .expand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			stop, err := cc.StartWatcher(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			return runREPL(cmd, cc)
		},
	}
}

func runREPL(cmd *cobra.Command, cc *CommandContext) error {
	ctx := cmd.Context()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    newCompleter(cc.Session, func() []string { return cc.Cfg.SourceIDs() }),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	source := cc.Session.Snapshot().Source
	if source == "" {
		source = "none"
	}
	_, _ = fmt.Fprintf(out, "leapcomplete REPL (source: %s)\n", source)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ".") {
			if quit := handleDotCommand(ctx, cc, out, trimmed); quit {
				return nil
			}
			continue
		}
		printSuggestions(out, cc.Session, line)
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "leapcomplete")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// handleDotCommand runs a dot command and reports whether the REPL should exit.
func handleDotCommand(ctx context.Context, cc *CommandContext, w io.Writer, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}
	fail := func(err error) {
		_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	}
	usage := func(u string) {
		_, _ = fmt.Fprintf(w, "Usage: %s\n", u)
	}

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(w)

	case ".sources":
		active := string(cc.Session.Snapshot().Source)
		for _, id := range cc.Cfg.SourceIDs() {
			mark := " "
			if id == active {
				mark = "*"
			}
			_, _ = fmt.Fprintf(w, "%s %s (%s)\n", mark, id, cc.Cfg.Sources[id].Type)
		}

	case ".source":
		if arg == "" {
			usage(".source <id>")
			break
		}
		if err := cc.SelectSource(ctx, arg); err != nil {
			fail(err)
			break
		}
		_, _ = fmt.Fprintf(w, "Using %s (%d tables)\n", arg, len(cc.Session.Snapshot().Tables))

	case ".tables":
		snap := cc.Session.Snapshot()
		for _, t := range snap.Tables {
			mark := " "
			if cc.Session.IsExpanded(t.Name()) {
				mark = "+"
			}
			_, _ = fmt.Fprintf(w, "%s %-30s %s\n", mark, t.Name(), t.State)
		}
		if snap.ListErr != nil {
			fail(snap.ListErr)
		}

	case ".expand":
		if arg == "" {
			usage(".expand <table>")
			break
		}
		evicted, err := cc.Session.OnExpand(arg)
		if err != nil {
			fail(err)
			break
		}
		for _, e := range evicted {
			_, _ = fmt.Fprintf(w, "Collapsed %s\n", e)
		}

	case ".collapse":
		if arg == "" {
			usage(".collapse <table>")
			break
		}
		if !cc.Session.OnCollapse(arg) {
			_, _ = fmt.Fprintf(w, "%s is not expanded\n", arg)
		}

	case ".expanded":
		for _, t := range cc.Session.Expanded() {
			_, _ = fmt.Fprintln(w, t)
		}

	case ".describe":
		if arg == "" {
			usage(".describe <table>")
			break
		}
		detail, err := cc.Session.Describe(ctx, arg)
		if err != nil {
			fail(err)
			break
		}
		for _, c := range detail.Columns {
			_, _ = fmt.Fprintf(w, "  %-30s %s\n", c.Name, c.DataType)
		}

	case ".refresh":
		if err := cc.Session.OnRefresh(ctx); err != nil {
			fail(err)
			break
		}
		_, _ = fmt.Fprintf(w, "Reloaded %d tables\n", len(cc.Session.Snapshot().Tables))

	default:
		_, _ = fmt.Fprintf(w, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .sources           List configured sources
  .source <id>       Switch to another source
  .tables            List tables (+ marks expanded tables)
  .expand <table>    Expand a table and load its columns
  .collapse <table>  Collapse a table
  .expanded          List expanded tables, least recent first
  .describe <table>  Show the columns of a table
  .refresh           Reload the table list
  .quit / .exit      Exit the REPL

Tips:
  - Press Tab to complete at the cursor
  - Press Enter to list the suggestions for the end of the line
`
	_, _ = fmt.Fprintln(w, help)
}

func printSuggestions(w io.Writer, sess *session.Session, line string) {
	a, items := sess.Complete(line, len(line))
	_, _ = fmt.Fprintf(w, "-- %s, %d suggestions\n", a.Context, len(items))
	for _, s := range items {
		_, _ = fmt.Fprintf(w, "  %-32s %-8s %s\n", s.Label, s.Kind, s.Detail)
	}
}

var dotCommands = []string{".help", ".sources", ".source", ".tables", ".expand", ".collapse", ".expanded", ".describe", ".refresh", ".quit", ".exit"}

// completer adapts a session to readline's AutoCompleter.
type completer struct {
	sess *session.Session
	dots *readline.PrefixCompleter
}

var _ readline.AutoCompleter = (*completer)(nil)

func newCompleter(sess *session.Session, sources func() []string) *completer {
	tables := func(string) []string {
		snap := sess.Snapshot()
		names := make([]string, 0, len(snap.Tables))
		for _, t := range snap.Tables {
			names = append(names, t.Name())
		}
		return names
	}
	items := make([]readline.PrefixCompleterInterface, 0, len(dotCommands))
	for _, c := range dotCommands {
		switch c {
		case ".expand", ".collapse", ".describe":
			items = append(items, readline.PcItem(c, readline.PcItemDynamic(tables)))
		case ".source":
			items = append(items, readline.PcItem(c, readline.PcItemDynamic(func(string) []string { return sources() })))
		default:
			items = append(items, readline.PcItem(c))
		}
	}
	return &completer{sess: sess, dots: readline.NewPrefixCompleter(items...)}
}

// Do returns the suffixes that complete the identifier before pos and the
// length of that identifier in runes.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	if strings.HasPrefix(strings.TrimSpace(string(line)), ".") {
		return c.dots.Do(line, pos)
	}

	text := string(line)
	offset := len(string(line[:pos]))
	a, suggestions := c.sess.Complete(text, offset)

	var out [][]rune
	for _, s := range suggestions {
		if cand, ok := candidate(s, a.Prefix); ok {
			out = append(out, []rune(cand))
		}
	}
	return out, utf8.RuneCountInString(a.Prefix)
}

// candidate returns the text to insert after prefix for s.
func candidate(s completion.Suggestion, prefix string) (string, bool) {
	insert := s.InsertText
	if s.Snippet {
		insert = s.Label + "("
	}
	if len(insert) < len(prefix) || !strings.EqualFold(insert[:len(prefix)], prefix) {
		return "", false
	}
	if s.Kind == completion.KindKeyword && prefix != "" && prefix == strings.ToLower(prefix) {
		insert = strings.ToLower(insert)
	}
	return insert[len(prefix):], true
}

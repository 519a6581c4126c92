package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/leapstack-labs/leapcomplete/internal/cli"
	"github.com/leapstack-labs/leapcomplete/internal/cli/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// otherGroup titles the commands that belong to no group.
const otherGroup = "Other Commands"

// generateCLIDocs writes index.md and one page per command to outDir.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rootCmd := cli.NewRootCmd()
	if err := writePage(outDir, "index.md", indexPage(rootCmd)); err != nil {
		return err
	}
	for _, cmd := range documented(rootCmd) {
		if err := writePage(outDir, cmd.Name()+".md", commandPage(cmd)); err != nil {
			return err
		}
	}
	return nil
}

func writePage(outDir, name string, w *MarkdownWriter) error {
	if err := os.WriteFile(filepath.Join(outDir, name), w.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Printf("  Generated %s", name)
	return nil
}

// documented returns the visible subcommands of root.
func documented(root *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.IsAvailableCommand() {
			out = append(out, cmd)
		}
	}
	return out
}

// commandGroup is a section of the command index.
type commandGroup struct {
	Title    string
	Commands []*cobra.Command
}

// groupCommands sorts commands into the root's groups, in declaration
// order, followed by the ungrouped commands.
func groupCommands(root *cobra.Command) []commandGroup {
	byID := make(map[string]*commandGroup)
	var groups []*commandGroup
	for _, g := range root.Groups() {
		cg := &commandGroup{Title: strings.TrimSuffix(g.Title, ":")}
		byID[g.ID] = cg
		groups = append(groups, cg)
	}
	other := &commandGroup{Title: otherGroup}
	groups = append(groups, other)

	for _, cmd := range documented(root) {
		if cg, ok := byID[cmd.GroupID]; ok {
			cg.Commands = append(cg.Commands, cmd)
			continue
		}
		other.Commands = append(other.Commands, cmd)
	}

	out := make([]commandGroup, 0, len(groups))
	for _, cg := range groups {
		if len(cg.Commands) > 0 {
			out = append(out, *cg)
		}
	}
	return out
}

func indexPage(root *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for leapcomplete")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", "go install github.com/leapstack-labs/leapcomplete/cmd/leapcomplete@latest\nleapcomplete <command> [options]")

	w.Header(2, "Commands")
	for _, g := range groupCommands(root) {
		w.Header(3, g.Title)
		var rows [][]string
		for _, cmd := range g.Commands {
			link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
			rows = append(rows, []string{link, cleanDescription(cmd.Short)})
		}
		w.Table([]string{"Command", "Description"}, rows)
	}

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Configuration")
	w.Paragraph(fmt.Sprintf("Settings are read from %s, found in the working directory or a parent. "+
		"Flags override environment variables, which override the file. "+
		"Nested keys are joined with a double underscore in variable names.",
		InlineCode("leapcomplete.yaml")))
	var rows [][]string
	for _, k := range configKeys(reflect.TypeOf(config.Config{}), "") {
		rows = append(rows, configRow(root.PersistentFlags(), k))
	}
	w.Table([]string{"Key", "Environment", "Flag", "Default"}, rows)

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error (check stderr for details)"},
	})
	return w
}

// configKeys lists the dotted keys of a koanf-tagged struct. Map fields
// contribute a placeholder segment, as in sources.<id>.host.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag
		ft := f.Type
		switch {
		case ft.Kind() == reflect.Struct:
			keys = append(keys, configKeys(ft, key+".")...)
		case ft.Kind() == reflect.Map && ft.Elem().Kind() == reflect.Struct:
			keys = append(keys, configKeys(ft.Elem(), key+".<"+placeholder(tag)+">.")...)
		case ft.Kind() == reflect.Map:
			keys = append(keys, key+".<name>")
		default:
			keys = append(keys, key)
		}
	}
	return keys
}

// placeholder names one element of a map key: sources -> id.
func placeholder(tag string) string {
	if tag == "sources" {
		return "id"
	}
	return "name"
}

func configRow(flags *pflag.FlagSet, key string) []string {
	flag := ""
	flags.VisitAll(func(f *pflag.Flag) {
		if k, ok := config.FlagKey(f.Name); ok && k == key {
			flag = InlineCode("--" + f.Name)
		}
	})
	def := ""
	if v, ok := config.Defaults()[key]; ok {
		def = InlineCode(fmt.Sprint(v))
	}
	return []string{InlineCode(key), InlineCode(config.EnvVar(key)), flag, def}
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	useLine := cmd.UseLine()
	if cmd.HasAvailableSubCommands() {
		useLine = fmt.Sprintf("leapcomplete %s <subcommand> [options]", cmd.Name())
	}
	w.CodeBlock("bash", useLine)

	if len(cmd.Aliases) > 0 {
		var aliases []string
		for _, alias := range cmd.Aliases {
			aliases = append(aliases, InlineCode(alias))
		}
		w.Header(2, "Aliases")
		w.BulletList(aliases)
	}

	if cmd.HasAvailableSubCommands() {
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
			}
		}
		w.Header(2, "Subcommands")
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}
	if cmd.HasAvailableInheritedFlags() {
		w.Paragraph("Global options apply as well; see the [CLI reference](/cli/).")
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w
}

// writeFlagsTable writes one row per visible flag.
func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = InlineCode("-" + f.Shorthand)
		}
		def := f.DefValue
		if def != "" && def != "[]" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		}
		if def == "[]" {
			def = ""
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Short", "Default", "Description"}, rows)
}

// cleanExample removes the indentation shared by every example line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent == -1 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.TrimSpace(example)
	}
	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

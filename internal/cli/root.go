// Package cli provides the command-line interface for leapcomplete.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapcomplete/internal/cli/commands"
	"github.com/leapstack-labs/leapcomplete/internal/cli/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	cfgFile = ""

	rootCmd := &cobra.Command{
		Use:   "leapcomplete",
		Short: "leapcomplete - SQL autocompletion against remote catalogs",
		Long: `leapcomplete offers SQL completions from the catalog of a remote database.

Table names are listed once per source; the columns of a table are fetched
only when it is expanded, and only a bounded number of tables stay expanded.
Completions are served to editors over LSP, to browsers over HTTP, and in an
interactive shell.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", slog.String("path", configFile))
			}

			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
SQL autocompletion against remote catalogs
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./leapcomplete.yaml)")
	flags.StringP("source", "s", "", "Catalog source to complete against")
	flags.StringP("output", "o", "", "Output format (auto|text|table|json|yaml)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")
	flags.Int("max-suggestions", 0, "Maximum number of suggestions returned")
	flags.Int("capacity", 0, "Maximum number of tables expanded at once")
	flags.Bool("watch", false, "Refresh when the database file of a file-based source changes")
	flags.String("addr", "", "Listen address of the HTTP server")
	flags.String("session-secret", "", "Secret signing browser session cookies")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Complete source ids from the config file
	_ = rootCmd.RegisterFlagCompletionFunc("source", func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.LoadConfig(cfgFile, nil)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return cfg.SourceIDs(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSchema, Title: "Schema Commands:"},
		&cobra.Group{ID: GroupCompletion, Title: "Completion Commands:"},
		&cobra.Group{ID: GroupServers, Title: "Server Commands:"},
	)
	addGroup(rootCmd, GroupSchema,
		commands.NewSourcesCommand(),
		commands.NewTablesCommand(),
		commands.NewDescribeCommand(),
	)
	addGroup(rootCmd, GroupCompletion,
		commands.NewCompleteCommand(),
		commands.NewREPLCommand(),
		commands.NewTreeCommand(),
	)
	addGroup(rootCmd, GroupServers,
		commands.NewLSPCommand(),
		commands.NewServeCommand(),
	)
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Command groups shown by help and the generated reference.
const (
	GroupSchema     = "schema"
	GroupCompletion = "completion"
	GroupServers    = "servers"
)

func addGroup(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		root.AddCommand(cmd)
	}
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leapcomplete.

To load completions:

Bash:
  $ source <(leapcomplete completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ leapcomplete completion bash > /etc/bash_completion.d/leapcomplete
  # macOS:
  $ leapcomplete completion bash > $(brew --prefix)/etc/bash_completion.d/leapcomplete

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ leapcomplete completion zsh > "${fpath[1]}/_leapcomplete"

Fish:
  $ leapcomplete completion fish | source

PowerShell:
  PS> leapcomplete completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

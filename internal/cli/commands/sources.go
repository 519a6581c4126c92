package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapcomplete/internal/cli/config"
	"github.com/spf13/cobra"
)

// SourceInfo describes a configured source.
type SourceInfo struct {
	ID       string `json:"id" yaml:"id"`
	Type     string `json:"type" yaml:"type"`
	Location string `json:"location" yaml:"location"`
	Default  bool   `json:"default" yaml:"default"`
}

// NewSourcesCommand creates the sources command.
func NewSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured catalog sources",
		Example: `  leapcomplete sources
  leapcomplete sources -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutSession(cmd)
			return runSources(cc)
		},
	}
}

func runSources(cc *CommandContext) error {
	r := cc.Renderer
	infos := make([]SourceInfo, 0, len(cc.Cfg.Sources))
	def := cc.Cfg.DefaultSource()
	for _, id := range cc.Cfg.SourceIDs() {
		sc := cc.Cfg.Sources[id]
		infos = append(infos, SourceInfo{
			ID:       id,
			Type:     sc.Type,
			Location: location(sc),
			Default:  id == def,
		})
	}

	return r.Data(infos, func() {
		if len(infos) == 0 {
			r.Muted("No sources configured. Add sources to leapcomplete.yaml.")
			return
		}
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			mark := ""
			if info.Default {
				mark = "*"
			}
			rows = append(rows, []string{mark, info.ID, info.Type, info.Location})
		}
		r.Table([]string{"", "Source", "Type", "Location"}, rows)
	})
}

// location renders where a source lives, without credentials.
func location(sc config.SourceConfig) string {
	switch {
	case sc.URL != "":
		if sc.DatasourceID != "" {
			return fmt.Sprintf("%s (datasource %s)", sc.URL, sc.DatasourceID)
		}
		return sc.URL
	case sc.IsFileBased():
		return sc.Database
	case sc.Host != "":
		loc := sc.Host
		if sc.Port != 0 {
			loc = fmt.Sprintf("%s:%d", loc, sc.Port)
		}
		if sc.Database != "" {
			loc += "/" + sc.Database
		}
		return loc
	case sc.Database != "":
		return sc.Database
	default:
		return "-"
	}
}

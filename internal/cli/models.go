package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rowkit/internal/record"
)

// ModelInfo describes one installed model.
type ModelInfo struct {
	Name      string   `json:"name"`
	Table     string   `json:"table"`
	PK        []string `json:"pk"`
	Relations []string `json:"relations,omitempty"`
	Together  []string `json:"together,omitempty"`
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the installed models",
		Long: `List every model with its table, primary key and relations.

Example:
  rowkit models --config rowkit.yaml
  rowkit models --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			a, err := openApp(rootOpts, formatter)
			if err != nil {
				return err
			}
			defer a.Close()

			infos := describeModels(a.reg.Models())
			return formatter.Result(infos, func(w io.Writer) {
				for _, info := range infos {
					fmt.Fprintf(w, "%s\ttable=%s\tpk=%s", info.Name, info.Table, strings.Join(info.PK, ","))
					if len(info.Relations) > 0 {
						fmt.Fprintf(w, "\trelations=%s", strings.Join(info.Relations, ","))
					}
					fmt.Fprintln(w)
				}
			})
		},
	}
}

func describeModels(models []*record.ModelType) []ModelInfo {
	infos := make([]ModelInfo, 0, len(models))
	for _, mt := range models {
		info := ModelInfo{Name: mt.Name, Table: mt.Table, PK: mt.PK}
		for name := range mt.Relations {
			info.Relations = append(info.Relations, name)
		}
		sort.Strings(info.Relations)
		for _, c := range mt.Together {
			info.Together = append(info.Together, c.Relation)
		}
		infos = append(infos, info)
	}
	return infos
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

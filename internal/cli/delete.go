package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// DeleteResult reports how many records were deleted.
type DeleteResult struct {
	Model   string `json:"model"`
	Deleted int    `json:"deleted"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <model> <key>...",
		Short: "Delete stored records by primary key",
		Long: `Delete every record whose primary key is given. Each record goes through
its delete lifecycle, so cascaded relations are deleted with it.

Example:
  rowkit delete User 1 2 3`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			formatter := newFormatter(rootOpts, cmd)

			a, err := openApp(rootOpts, formatter)
			if err != nil {
				return err
			}
			defer a.Close()

			mt, err := a.model(formatter, args[0])
			if err != nil {
				return err
			}
			keys := make([]any, 0, len(args)-1)
			for _, k := range args[1:] {
				keys = append(keys, parseKey(k))
			}

			n, err := mt.DestroyKeys(ctx, keys...)
			if err != nil {
				return failRecord(formatter, "delete", err)
			}
			return formatter.Result(DeleteResult{Model: mt.Name, Deleted: n}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted %d %s record(s)\n", n, mt.Name)
			})
		},
	}
}

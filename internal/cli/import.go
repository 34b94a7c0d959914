package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Replace bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <model> <file>",
		Short: "Save a YAML list of records in one transaction",
		Long: `Save every item of a YAML list as a record of the given model.

Items are created, or with --replace updated when they carry their primary
key. The whole file is one transaction: any failure leaves the database
unchanged.

Example:
  rowkit import User users.yaml
  rowkit import User users.yaml --replace`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "update items that carry their primary key")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, model, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fail(formatter, ErrCodeBadInput, ExitCommandError, "failed to read import file", err)
	}
	var items []map[string]any
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return fail(formatter, ErrCodeBadInput, ExitCommandError, "failed to parse YAML", err)
	}

	a, err := openApp(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer a.Close()

	mt, err := a.model(formatter, model)
	if err != nil {
		return err
	}

	formatter.VerboseLog("Importing %d %s record(s) from %s", len(items), mt.Name, path)
	saved, err := mt.SaveAll(ctx, items, opts.Replace)
	if err != nil {
		return failRecord(formatter, "import", err)
	}

	doc, err := saved.ToJSON(ctx)
	if err != nil {
		return failRecord(formatter, "render", err)
	}
	return formatter.Document(doc)
}

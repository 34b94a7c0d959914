package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rowkit/internal/query"
)

// WriteOptions holds flags for the create and update commands.
type WriteOptions struct {
	*RootOptions
	Fields  []string
	Replace bool
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <model> <data>",
		Short: "Insert a record",
		Long: `Insert a record of the given model. Data is a YAML or JSON mapping;
cascaded relations may be given inline.

Example:
  rowkit create User '{name: ada, posts: [{title: engines}]}'
  rowkit create User '{"id": 7, "name": "ada"}' --replace`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, args[0], "", args[1])
		},
	}

	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "restrict the written fields")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "replace a row with the same key")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <model> <key> <data>",
		Short: "Update a stored record",
		Long: `Load the record with the given primary key and save the changed fields.

Example:
  rowkit update User 1 '{email: ada@example.com}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "restrict the written fields")

	return cmd
}

// runWrite creates a record when key is empty and updates the stored one otherwise.
func runWrite(cmd *cobra.Command, opts *WriteOptions, model, key, raw string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	data, err := parseData(raw)
	if err != nil {
		return fail(formatter, ErrCodeBadInput, ExitCommandError, "invalid record data", err)
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

	op := "create"
	rec := mt.New(nil).ReplaceOnInsert(opts.Replace)
	if key != "" {
		op = "update"
		if rec, err = mt.Find(ctx, query.Eq{Field: mt.PK[0], Value: parseKey(key)}); err != nil {
			return failRecord(formatter, op, err)
		}
		if rec == nil {
			return fail(formatter, ErrCodeNotFound, ExitFailure, fmt.Sprintf("%s %s not found", model, key), nil)
		}
	}
	if len(opts.Fields) > 0 {
		rec.AllowField(opts.Fields...)
	}

	ok, err := rec.Save(ctx, data, nil)
	if err != nil {
		return failRecord(formatter, op, err)
	}
	if !ok {
		return fail(formatter, ErrCodeVetoed, ExitFailure, op+" vetoed", nil)
	}

	doc, err := rec.ToJSON(ctx)
	if err != nil {
		return failRecord(formatter, "render", err)
	}
	return formatter.Document(doc)
}

// parseData reads a YAML (or JSON) mapping.
func parseData(raw string) (map[string]any, error) {
	var data map[string]any
	if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("expected a mapping, got %q", raw)
	}
	return data, nil
}

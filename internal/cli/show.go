package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rowkit/internal/ordered"
	"github.com/roach88/rowkit/internal/query"
	"github.com/roach88/rowkit/internal/record"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Visible []string
	Hidden  []string
	Append  []string
	Field   string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <model> <key>",
		Short: "Print a stored record",
		Long: `Load the record with the given primary key and print it as JSON.

--visible, --hidden and --append take field names; "relation.field"
entries shape a nested relation. --field prints a single attribute read
through the model's accessors and relations.

Example:
  rowkit show User 1 --hidden email --append posts.title
  rowkit show Post 3 --field author`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringSliceVar(&opts.Visible, "visible", nil, "only output these fields")
	cmd.Flags().StringSliceVar(&opts.Hidden, "hidden", nil, "omit these fields")
	cmd.Flags().StringSliceVar(&opts.Append, "append", nil, "add accessor or relation output")
	cmd.Flags().StringVar(&opts.Field, "field", "", "print one attribute")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions, model, key string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	a, err := openApp(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer a.Close()

	mt, err := a.model(formatter, model)
	if err != nil {
		return err
	}
	rec, err := mt.Find(ctx, query.Eq{Field: mt.PK[0], Value: parseKey(key)})
	if err != nil {
		return failRecord(formatter, "show", err)
	}
	if rec == nil {
		return fail(formatter, ErrCodeNotFound, ExitFailure, fmt.Sprintf("%s %s not found", model, key), nil)
	}

	if opts.Field != "" {
		val, ok, err := rec.View(ctx).Index(opts.Field)
		if err != nil {
			return failRecord(formatter, "show", err)
		}
		if !ok {
			return fail(formatter, ErrCodeAttribute, ExitCommandError, fmt.Sprintf("%s has no attribute %q", model, opts.Field), nil)
		}
		out, err := renderable(ctx, val)
		if err != nil {
			return failRecord(formatter, "render", err)
		}
		doc, err := ordered.Marshal(out)
		if err != nil {
			return failRecord(formatter, "render", err)
		}
		return formatter.Document(doc)
	}

	if len(opts.Visible) > 0 {
		rec.Visible(opts.Visible, false)
	}
	if len(opts.Hidden) > 0 {
		rec.Hidden(opts.Hidden, false)
	}
	if len(opts.Append) > 0 {
		rec.Append(opts.Append, false)
	}
	doc, err := rec.ToJSON(ctx)
	if err != nil {
		return failRecord(formatter, "show", err)
	}
	return formatter.Document(doc)
}

// renderable turns related records into their output.
func renderable(ctx context.Context, v any) (any, error) {
	switch r := v.(type) {
	case *record.Record:
		return r.ToOutput(ctx)
	case record.Collection:
		return r.ToOutput(ctx)
	}
	return v, nil
}

package record

import (
	"context"

	"github.com/roach88/rowkit/internal/ordered"
)

// Collection is an ordered list of records of one type.
type Collection []*Record

// Visible applies Record.Visible to every record.
func (c Collection) Visible(fields []string, override bool) Collection {
	for _, r := range c {
		r.Visible(fields, override)
	}
	return c
}

// Hidden applies Record.Hidden to every record.
func (c Collection) Hidden(fields []string, override bool) Collection {
	for _, r := range c {
		r.Hidden(fields, override)
	}
	return c
}

// Append applies Record.Append to every record.
func (c Collection) Append(names []string, override bool) Collection {
	for _, r := range c {
		r.Append(names, override)
	}
	return c
}

// ToOutput renders every record. The result is never nil.
func (c Collection) ToOutput(ctx context.Context) ([]any, error) {
	return c.output(ctx, projection{})
}

// ToJSON renders the collection as a JSON array.
func (c Collection) ToJSON(ctx context.Context) ([]byte, error) {
	out, err := c.ToOutput(ctx)
	if err != nil {
		return nil, err
	}
	return ordered.Marshal(out)
}

func (c Collection) output(ctx context.Context, p projection) ([]any, error) {
	out := make([]any, 0, len(c))
	for _, r := range c {
		m, err := r.output(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/record"
)

// Model is a compiled model definition: the record type plus the models
// its relations refer to by name.
type Model struct {
	Type *record.ModelType
	Refs []Ref
}

// Ref is a by-name reference from a relation to another model.
type Ref struct {
	Field string
	Model string
	Pos   token.Pos
}

// generators are the auto-complete value generators a definition may name.
var generators = map[string]func() any{
	"uuid": func() any { return uuid.Must(uuid.NewV7()).String() },
}

// CompileModel parses a CUE value into a Model.
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: User: { table: "users" }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.User")))
func CompileModel(v cue.Value) (*Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	mt := &record.ModelType{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		mt.Name = labels[len(labels)-1].String()
	}
	if mt.Name == "" {
		return nil, &CompileError{Field: "model", Message: "model name is required", Pos: v.Pos()}
	}

	var err error
	strs := []struct {
		name string
		dst  *string
	}{
		{"table", &mt.Table},
		{"sequence", &mt.Sequence},
		{"date_format", &mt.DateFormat},
	}
	for _, s := range strs {
		if *s.dst, err = optString(v, s.name); err != nil {
			return nil, err
		}
	}

	lists := []struct {
		name string
		dst  *[]string
	}{
		{"pk", &mt.PK},
		{"fields", &mt.Fields},
		{"readonly", &mt.Readonly},
		{"disuse", &mt.Disuse},
		{"visible", &mt.Visible},
		{"hidden", &mt.Hidden},
		{"append", &mt.Append},
	}
	for _, l := range lists {
		if *l.dst, err = stringList(v, l.name); err != nil {
			return nil, err
		}
	}

	if mt.Types, err = parseTypes(v); err != nil {
		return nil, err
	}

	autos := []struct {
		name string
		dst  *[]record.AutoField
	}{
		{"auto", &mt.Auto},
		{"insert", &mt.Insert},
		{"update", &mt.UpdateAuto},
	}
	for _, a := range autos {
		if *a.dst, err = parseAuto(v, a.name); err != nil {
			return nil, err
		}
	}

	if mt.Timestamps, err = parseTimestamps(v); err != nil {
		return nil, err
	}

	m := &Model{Type: mt}
	if mt.Relations, m.Refs, err = parseRelations(v); err != nil {
		return nil, err
	}
	if mt.Together, err = parseTogether(v); err != nil {
		return nil, err
	}
	return m, nil
}

// lookup returns the named field of v, if present.
func lookup(v cue.Value, name string) (cue.Value, bool) {
	f := v.LookupPath(cue.ParsePath(name))
	return f, f.Exists()
}

func optString(v cue.Value, name string) (string, error) {
	f, ok := lookup(v, name)
	if !ok {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: "must be a string", Pos: f.Pos()}
	}
	return s, nil
}

// stringList reads a list of strings. A single string is a one-item list.
func stringList(v cue.Value, name string) ([]string, error) {
	f, ok := lookup(v, name)
	if !ok {
		return nil, nil
	}
	return stringValues(f, name)
}

func stringValues(v cue.Value, field string) ([]string, error) {
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a string or a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "list items must be strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// parseTypes reads the "types" block: field name to descriptor string.
func parseTypes(v cue.Value) (map[string]coerce.Descriptor, error) {
	f, ok := lookup(v, "types")
	if !ok {
		return nil, nil
	}
	iter, err := f.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	types := make(map[string]coerce.Descriptor)
	for iter.Next() {
		field := "types." + iter.Label()
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "type descriptor must be a string", Pos: iter.Value().Pos()}
		}
		d := coerce.Parse(s)
		if !d.Known() {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown type descriptor %q", s), Pos: iter.Value().Pos()}
		}
		types[iter.Label()] = d
	}
	return types, nil
}

// parseAuto reads an auto-complete section. Either a list of field names,
// re-applied on every write, or a struct in field order whose values are
// null (re-apply), {generate: "<name>"} or a constant.
func parseAuto(v cue.Value, name string) ([]record.AutoField, error) {
	f, ok := lookup(v, name)
	if !ok {
		return nil, nil
	}

	if f.IncompleteKind() == cue.ListKind {
		names, err := stringValues(f, name)
		if err != nil {
			return nil, err
		}
		out := make([]record.AutoField, len(names))
		for i, n := range names {
			out[i] = record.AutoField{Name: n}
		}
		return out, nil
	}

	iter, err := f.Fields()
	if err != nil {
		return nil, &CompileError{Field: name, Message: "must be a list or a struct", Pos: f.Pos()}
	}
	var out []record.AutoField
	for iter.Next() {
		field := name + "." + iter.Label()
		fv := iter.Value()

		if gen, ok := lookup(fv, "generate"); ok && fv.Kind() == cue.StructKind {
			g, err := gen.String()
			if err != nil {
				return nil, &CompileError{Field: field, Message: "generate must be a string", Pos: gen.Pos()}
			}
			fn, ok := generators[g]
			if !ok {
				return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown generator %q", g), Pos: gen.Pos()}
			}
			out = append(out, record.AutoField{Name: iter.Label(), Value: fn})
			continue
		}

		val, err := valueOf(fv, field)
		if err != nil {
			return nil, err
		}
		out = append(out, record.AutoField{Name: iter.Label(), Value: val})
	}
	return out, nil
}

// parseTimestamps reads "timestamps": a bool, a mode string, or
// {mode, create, update}. Absent leaves the mode empty for the caller's
// default to fill in.
func parseTimestamps(v cue.Value) (record.Timestamps, error) {
	var ts record.Timestamps
	f, ok := lookup(v, "timestamps")
	if !ok {
		return ts, nil
	}

	mode := func(m cue.Value) (string, error) {
		if b, err := m.Bool(); err == nil {
			return fmt.Sprint(b), nil
		}
		s, err := m.String()
		if err != nil {
			return "", &CompileError{Field: "timestamps", Message: "mode must be a bool or a string", Pos: m.Pos()}
		}
		return s, nil
	}

	if f.Kind() != cue.StructKind {
		m, err := mode(f)
		ts.Mode = m
		return ts, err
	}

	if m, ok := lookup(f, "mode"); ok {
		s, err := mode(m)
		if err != nil {
			return ts, err
		}
		ts.Mode = s
	} else {
		ts.Mode = "true"
	}
	var err error
	if ts.CreateField, err = optString(f, "create"); err != nil {
		return ts, err
	}
	if ts.UpdateField, err = optString(f, "update"); err != nil {
		return ts, err
	}
	return ts, nil
}

// parseTogether reads "together": a list of relation names, or a struct
// of relation name to the parent fields routed to it.
func parseTogether(v cue.Value) ([]record.Cascade, error) {
	f, ok := lookup(v, "together")
	if !ok {
		return nil, nil
	}

	if f.IncompleteKind() == cue.ListKind {
		names, err := stringValues(f, "together")
		if err != nil {
			return nil, err
		}
		out := make([]record.Cascade, len(names))
		for i, n := range names {
			out[i] = record.Cascade{Relation: n}
		}
		return out, nil
	}

	iter, err := f.Fields()
	if err != nil {
		return nil, &CompileError{Field: "together", Message: "must be a list or a struct", Pos: f.Pos()}
	}
	var out []record.Cascade
	for iter.Next() {
		fields, err := stringValues(iter.Value(), "together."+iter.Label())
		if err != nil {
			return nil, err
		}
		out = append(out, record.Cascade{Relation: iter.Label(), Fields: fields})
	}
	return out, nil
}

// valueOf converts a concrete CUE value to plain Go values: int64,
// float64, string, bool, nil, []any and map[string]any.
func valueOf(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			item, err := valueOf(iter.Value(), field)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			item, err := valueOf(iter.Value(), field+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = item
		}
		return out, nil
	}
	return nil, &CompileError{Field: field, Message: "value must be concrete", Pos: v.Pos()}
}

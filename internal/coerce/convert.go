package coerce

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/rowkit/internal/ordered"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// Constructor builds a typed value from a raw stored value.
type Constructor func(raw any) (any, error)

// Converter applies descriptors to values.
//
// A Converter is configured once at startup and is safe for concurrent
// reads afterwards; RegisterType must not race with conversions.
type Converter struct {
	// DateFormat is the default read format for temporal kinds.
	DateFormat string

	// Location interprets zone-less stored dates and renders formatted ones.
	Location *time.Location

	// Now supplies the current time for auto timestamps and "now" strings.
	Now func() time.Time

	types map[string]Constructor
}

// NewConverter creates a Converter with DefaultDateFormat, the local zone
// and the wall clock.
func NewConverter() *Converter {
	return &Converter{
		DateFormat: DefaultDateFormat,
		Location:   time.Local,
		Now:        time.Now,
		types:      make(map[string]Constructor),
	}
}

// RegisterType makes ctor available to "@name" descriptors.
func (c *Converter) RegisterType(name string, ctor Constructor) {
	if c.types == nil {
		c.types = make(map[string]Constructor)
	}
	c.types[name] = ctor
}

// HasType reports whether a constructor is registered under name.
func (c *Converter) HasType(name string) bool {
	_, ok := c.types[name]
	return ok
}

// ToStorage converts an attribute value into its stored form.
// nil passes through. Type references and unknown kinds pass through.
// A value that cannot be read as a time stores nil for the temporal kinds.
func (c *Converter) ToStorage(v any, d Descriptor) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch d.Kind {
	case KindInteger:
		return ToInt(v), nil
	case KindFloat:
		return c.float(v, d.Param), nil
	case KindBoolean:
		return Truthy(v), nil
	case KindTimestamp:
		if IsNumeric(v) {
			return ToInt(v), nil
		}
		t, err := c.toTime(v)
		if err != nil {
			return nil, nil
		}
		return t.Unix(), nil
	case KindDatetime, KindDate:
		t, err := c.toTime(v)
		if err != nil {
			return nil, nil
		}
		if d.Kind == KindDate {
			return FormatPHP(t, StorageDate), nil
		}
		return FormatPHP(t, StorageDatetime), nil
	case KindObject:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return encodeJSON(forceObject(v))
	case KindArray:
		return encodeJSON(toList(v))
	case KindJSON:
		return encodeJSON(v)
	case KindSerialize:
		return encodeGob(v)
	}
	return v, nil
}

// FromStorage converts a stored value into its attribute form.
// nil passes through. Unknown kinds pass through; a type reference whose
// constructor is not registered is an error.
func (c *Converter) FromStorage(v any, d Descriptor) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch d.Kind {
	case KindInteger:
		return ToInt(v), nil
	case KindFloat:
		return c.float(v, d.Param), nil
	case KindBoolean:
		return Truthy(v), nil
	case KindTimestamp:
		return c.FormatTime(c.readFormat(d.Param, ""), v, true)
	case KindDatetime:
		return c.FormatTime(c.readFormat(d.Param, ""), v, false)
	case KindDate:
		return c.FormatTime(c.readFormat(d.Param, StorageDate), v, false)
	case KindJSON:
		return decodeJSON(v), nil
	case KindArray:
		if Empty(v) {
			return []any{}, nil
		}
		return decodeJSON(v), nil
	case KindObject:
		if Empty(v) {
			return map[string]any{}, nil
		}
		return decodeJSON(v), nil
	case KindSerialize:
		return decodeGob(v), nil
	}

	if name, ok := d.TypeRef(); ok {
		ctor, found := c.types[name]
		if !found {
			return nil, fmt.Errorf("type %q is not registered", name)
		}
		out, err := ctor(v)
		if err != nil {
			return nil, fmt.Errorf("construct %s: %w", name, err)
		}
		return out, nil
	}
	return v, nil
}

// FormatTime renders v with a PHP-style format. With epoch set, v is read as
// epoch seconds; otherwise as a time.Time or a date string. Empty values
// and strings that are not dates yield nil.
func (c *Converter) FormatTime(format string, v any, epoch bool) (any, error) {
	if Empty(v) {
		return nil, nil
	}
	if format == "" {
		format = c.dateFormat()
	}

	var t time.Time
	if epoch {
		if tv, ok := v.(time.Time); ok {
			t = tv
		} else {
			t = time.Unix(ToInt(v), 0)
		}
	} else {
		var err error
		if t, err = c.toTime(v); err != nil {
			return nil, nil
		}
	}
	return FormatPHP(t.In(c.location()), format), nil
}

// AutoTimestamp returns the value written into an auto-maintained time
// field. A field descriptor wins: datetime and date store a formatted
// string, any other kind stores epoch seconds. Without one, mode decides
// the same way ("datetime", "date" and "timestamp" format; anything else
// is epoch seconds).
func (c *Converter) AutoTimestamp(d *Descriptor, mode string) any {
	now := c.now()
	if d != nil {
		switch d.Kind {
		case KindDatetime, KindDate:
			return FormatPHP(now.In(c.location()), StorageDatetime)
		default:
			return now.Unix()
		}
	}
	if FormattedMode(mode) {
		return FormatPHP(now.In(c.location()), StorageDatetime)
	}
	return now.Unix()
}

// FormattedMode reports whether an auto-timestamp mode stores formatted strings.
func FormattedMode(mode string) bool {
	switch strings.ToLower(mode) {
	case "datetime", "date", "timestamp":
		return true
	}
	return false
}

func (c *Converter) float(v any, param string) float64 {
	f := ToFloat(v)
	if param == "" {
		return f
	}
	places, err := strconv.Atoi(param)
	if err != nil || places <= 0 {
		return f
	}
	return Round(f, places)
}

func (c *Converter) toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case *time.Time:
		if val != nil {
			return *val, nil
		}
	}
	if IsNumeric(v) {
		return time.Unix(ToInt(v), 0).In(c.location()), nil
	}
	s, ok := normalize(v).(string)
	if !ok {
		return time.Time{}, fmt.Errorf("cannot read %T as a time", v)
	}
	return ParseTime(s, c.location(), c.now)
}

func (c *Converter) readFormat(param, fallback string) string {
	if param != "" {
		return param
	}
	if fallback != "" {
		return fallback
	}
	return c.dateFormat()
}

func (c *Converter) dateFormat() string {
	if c.DateFormat == "" {
		return DefaultDateFormat
	}
	return c.DateFormat
}

func (c *Converter) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c *Converter) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// forceObject turns lists into index-keyed maps so they encode as JSON objects.
func forceObject(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	out := ordered.New()
	for i := 0; i < rv.Len(); i++ {
		out.Set(strconv.Itoa(i), rv.Index(i).Interface())
	}
	return out
}

// toList wraps scalars in a one-element list; lists and maps are kept.
func toList(v any) any {
	if _, ok := v.(*ordered.Map); ok {
		return v
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return v
	}
	return []any{v}
}

func encodeJSON(v any) (any, error) {
	out, err := ordered.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return string(out), nil
}

// decodeJSON decodes a stored JSON document. Values that are not text are
// returned unchanged; malformed text yields nil.
func decodeJSON(v any) any {
	var raw []byte
	switch val := v.(type) {
	case string:
		raw = []byte(val)
	case []byte:
		raw = val
	default:
		return v
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return numbersFromJSON(out)
}

func numbersFromJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		return normalize(val)
	case []any:
		for i := range val {
			val[i] = numbersFromJSON(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = numbersFromJSON(val[k])
		}
		return val
	}
	return v
}

type gobEnvelope struct {
	V any
}

func encodeGob(v any) (any, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobEnvelope{V: v}); err != nil {
		return nil, fmt.Errorf("encode serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeGob reverses encodeGob; undecodable input yields nil.
func decodeGob(v any) any {
	var raw []byte
	switch val := v.(type) {
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		return nil
	}
	var env gobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return nil
	}
	return env.V
}

package record

import (
	"maps"
	"slices"
	"sort"

	"github.com/roach88/rowkit/internal/ordered"
	"github.com/roach88/rowkit/internal/query"
)

// Record is one in-memory row of a ModelType.
//
// data holds the current attribute values and origin the values as of the
// last load or successful write; the difference between them is the
// update write-set. A Record is owned by one goroutine at a time.
type Record struct {
	mt *ModelType

	data        *ordered.Map
	origin      *ordered.Map
	intercepted map[string]bool
	relations   *ordered.Map
	withAttr    map[string]Accessor

	exists      bool
	force       bool
	replace     bool
	updateWhere query.Cond

	// Per-instance overrides of the model type's settings.
	fields        []string
	readonly      []string
	together      []Cascade
	hasTogether   bool
	autoTimestamp *string
	sequence      string

	visible []string
	hidden  []string
	appends []appendEntry

	parent *ParentRef
	conn   query.Conn

	pending []pendingCascade
}

// New creates a record that is not yet stored. data becomes both the
// current and the origin values, minus disused fields.
func (mt *ModelType) New(data map[string]any) *Record {
	return mt.newRecord(ordered.FromMap(data), false)
}

// Load creates a record for a stored row.
func (mt *ModelType) Load(data map[string]any) *Record {
	return mt.newRecord(ordered.FromMap(data), true)
}

func (mt *ModelType) newRecord(data *ordered.Map, exists bool) *Record {
	r := &Record{
		mt:          mt,
		data:        data,
		intercepted: make(map[string]bool),
		relations:   ordered.New(),
		exists:      exists,
		visible:     slices.Clone(mt.Visible),
		hidden:      slices.Clone(mt.Hidden),
	}
	r.Append(mt.Append, false)
	for _, f := range mt.Disuse {
		r.data.Delete(f)
	}
	r.origin = r.data.Clone()
	return r
}

// Model returns the record's type.
func (r *Record) Model() *ModelType {
	return r.mt
}

// Data returns the raw stored value of name without accessors or
// conversion. Loaded relations are consulted after attributes.
func (r *Record) Data(name string) (any, bool) {
	if v, ok := r.data.Get(name); ok {
		return v, true
	}
	return r.relations.Get(name)
}

// All returns a copy of the current attributes in order.
func (r *Record) All() *ordered.Map {
	return r.data.Clone()
}

// SetData stores value under name as-is, bypassing mutators and types.
func (r *Record) SetData(name string, value any) *Record {
	r.data.Set(name, value)
	return r
}

// Assign discards the current attributes and loads data. With setters,
// every entry goes through Set; otherwise the values are stored raw.
// Disused fields are dropped first.
func (r *Record) Assign(data map[string]any, setters bool) error {
	r.data = ordered.New()
	clean := r.withoutDisused(data)
	if !setters {
		r.data = ordered.FromMap(clean)
		return nil
	}
	for _, k := range sortedKeys(clean) {
		if err := r.setAttr(k, clean[k], clean); err != nil {
			return err
		}
	}
	return nil
}

// AssignOnly discards the current attributes and keeps only the listed
// non-nil entries of data.
func (r *Record) AssignOnly(data map[string]any, names ...string) {
	r.data = ordered.New()
	clean := r.withoutDisused(data)
	for _, name := range names {
		if v, ok := clean[name]; ok && v != nil {
			r.data.Set(name, v)
		}
	}
}

// Merge adds data to the current attributes, through Set when setters is
// true.
func (r *Record) Merge(data map[string]any, setters bool) error {
	data = r.withoutDisused(data)
	for _, k := range sortedKeys(data) {
		if setters {
			if err := r.setAttr(k, data[k], data); err != nil {
				return err
			}
			continue
		}
		r.data.Set(k, data[k])
	}
	return nil
}

// Origin returns the value of name as last loaded or written, or nil.
func (r *Record) Origin(name string) any {
	v, _ := r.origin.Get(name)
	return v
}

// Unset removes name from the current attributes.
func (r *Record) Unset(name string) {
	r.data.Delete(name)
}

// Has reports whether name is a current attribute with a non-nil value.
func (r *Record) Has(name string) bool {
	v, ok := r.data.Get(name)
	return ok && v != nil
}

// Force makes the next update send every attribute instead of the diff.
func (r *Record) Force(force bool) *Record {
	r.force = force
	return r
}

// IsForce reports whether forced writes are on.
func (r *Record) IsForce() bool {
	return r.force
}

// ReplaceOnInsert makes inserts replace an existing row with the same key.
func (r *Record) ReplaceOnInsert(replace bool) *Record {
	r.replace = replace
	return r
}

// SetExists marks whether the record corresponds to a stored row.
func (r *Record) SetExists(exists bool) *Record {
	r.exists = exists
	return r
}

// Exists reports whether the record corresponds to a stored row.
func (r *Record) Exists() bool {
	return r.exists
}

// IsEmpty reports whether the record holds no attributes.
func (r *Record) IsEmpty() bool {
	return r.data.Len() == 0
}

// IsUpdate sets the exists flag and, when cond is non-empty, the fallback
// condition used by update and delete when the key is unknown.
func (r *Record) IsUpdate(update bool, cond query.Cond) *Record {
	r.exists = update
	if !query.Empty(cond) {
		r.updateWhere = cond
	}
	return r
}

// AllowField replaces the write allow-list for this record.
func (r *Record) AllowField(fields ...string) *Record {
	r.fields = slices.Clone(fields)
	return r
}

// AllowAllFields derives the allow-list from the table schema.
func (r *Record) AllowAllFields() *Record {
	r.fields = []string{}
	return r
}

// Readonly replaces the readonly field list for this record.
func (r *Record) Readonly(fields ...string) *Record {
	r.readonly = slices.Clone(fields)
	return r
}

// Together replaces the cascaded relations for this record.
func (r *Record) Together(cascades ...Cascade) *Record {
	r.together = slices.Clone(cascades)
	r.hasTogether = true
	return r
}

// AutoTimestamp overrides the model's timestamp mode for this record.
func (r *Record) AutoTimestamp(mode string) *Record {
	r.autoTimestamp = &mode
	return r
}

// UseSequence sets the key sequence consulted after an insert.
func (r *Record) UseSequence(name string) *Record {
	r.sequence = name
	return r
}

// UseConn binds the record to conn instead of the model's connection.
func (r *Record) UseConn(conn query.Conn) *Record {
	r.conn = conn
	return r
}

// Conn returns the connection the record persists through.
func (r *Record) Conn() query.Conn {
	if r.conn != nil {
		return r.conn
	}
	return r.mt.conn()
}

// PK returns the primary key field names.
func (r *Record) PK() []string {
	return r.mt.PK
}

// IsPK reports whether name is a primary key field.
func (r *Record) IsPK(name string) bool {
	return r.mt.IsPK(name)
}

// Key returns the primary key value. Composite keys have no single value
// and return nil.
func (r *Record) Key() any {
	if len(r.mt.PK) != 1 {
		return nil
	}
	v, _ := r.data.Get(r.mt.PK[0])
	return v
}

func (r *Record) readonlyFields() []string {
	if r.readonly != nil {
		return r.readonly
	}
	return r.mt.Readonly
}

func (r *Record) allowList() []string {
	if r.fields != nil {
		return r.fields
	}
	return r.mt.Fields
}

func (r *Record) cascades() []Cascade {
	if r.hasTogether {
		return r.together
	}
	return r.mt.Together
}

func (r *Record) timestamps() Timestamps {
	ts := r.mt.Timestamps
	if r.autoTimestamp != nil {
		ts.Mode = *r.autoTimestamp
	}
	return ts
}

func (r *Record) sequenceName() string {
	if r.sequence != "" {
		return r.sequence
	}
	return r.mt.Sequence
}

func (r *Record) withoutDisused(data map[string]any) map[string]any {
	if len(r.mt.Disuse) == 0 {
		return data
	}
	out := maps.Clone(data)
	for _, f := range r.mt.Disuse {
		delete(out, f)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

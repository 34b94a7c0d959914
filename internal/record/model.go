package record

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/query"
)

// Default timestamp field names.
const (
	DefaultCreateField = "create_time"
	DefaultUpdateField = "update_time"
)

// AutoField is a field filled in before a persistence phase.
//
// A nil Value re-applies the field's current value through Set, so its
// mutator or type runs again. A func() any Value is called each time
// (for generated keys); any other Value is assigned as-is.
type AutoField struct {
	Name  string
	Value any
}

// Timestamps configures automatic create/update time fields.
//
// Mode "" or "false" disables them. "datetime", "date" and "timestamp"
// store a formatted "Y-m-d H:i:s.u" string; any other mode ("true", "int")
// stores epoch seconds. A type descriptor on the field itself overrides
// the mode.
type Timestamps struct {
	Mode        string
	CreateField string
	UpdateField string
}

// Enabled reports whether automatic timestamps are on.
func (t Timestamps) Enabled() bool {
	return t.Mode != "" && !strings.EqualFold(t.Mode, "false")
}

// Formatted reports whether the mode stores formatted strings.
func (t Timestamps) Formatted() bool {
	return coerce.FormattedMode(t.Mode)
}

// Governs reports whether name is one of the timestamp fields.
func (t Timestamps) Governs(name string) bool {
	return name != "" && (name == t.CreateField || name == t.UpdateField)
}

// Accessor computes the value read for a field. value is the raw stored
// value, or nil when the field is absent; data is a snapshot of the
// record's current attributes.
type Accessor func(value any, data map[string]any) (any, error)

// Mutator computes the value stored for a field. data merges the record's
// current attributes with the data being assigned. A mutator may set other
// fields on r; if it does and returns nil, nothing is stored for the field.
type Mutator func(r *Record, value any, data map[string]any) (any, error)

// RelationAccessor returns the relation named by its registry key, bound to r.
type RelationAccessor func(r *Record) Relation

// Cascade names a relation written together with its parent.
// Fields lists parent attributes that belong to the related record; they
// are routed to the relation and never written to the parent's table.
type Cascade struct {
	Relation string
	Fields   []string
}

// ModelType is the per-table configuration shared by every Record of that
// type. Build one per table during setup and pass it to Registry.Register;
// after registration it is treated as read-only.
type ModelType struct {
	Name  string
	Table string

	// PK lists the primary key fields. Defaults to ["id"].
	PK []string

	// Sequence names the key sequence for stores that need one.
	Sequence string

	// Fields is the write allow-list. Empty means "every column of Table".
	Fields   []string
	Readonly []string
	Disuse   []string

	Types map[string]coerce.Descriptor

	Auto       []AutoField
	Insert     []AutoField
	UpdateAuto []AutoField

	Timestamps Timestamps

	// DateFormat overrides the converter's read format for this type.
	DateFormat string

	Visible []string
	Hidden  []string
	Append  []string

	Accessors map[string]Accessor
	Mutators  map[string]Mutator
	Relations map[string]RelationAccessor
	Together  []Cascade

	Hooks Hooks

	// Conn overrides the registry's connection for this type.
	Conn query.Conn

	// Converter overrides the registry's converter for this type.
	Converter *coerce.Converter

	registry *Registry

	mu           sync.Mutex
	schemaFields []string
}

// On registers a hook callback. Shorthand for mt.Hooks.On.
func (mt *ModelType) On(h Hook, cb Callback) error {
	return mt.Hooks.On(h, cb)
}

// IsPK reports whether name is a primary key field.
func (mt *ModelType) IsPK(name string) bool {
	return slices.Contains(mt.PK, name)
}

// Registry returns the registry the type was registered with.
func (mt *ModelType) Registry() *Registry {
	return mt.registry
}

func (mt *ModelType) descriptor(name string) (coerce.Descriptor, bool) {
	d, ok := mt.Types[name]
	return d, ok
}

func (mt *ModelType) converter() *coerce.Converter {
	if mt.Converter != nil {
		return mt.Converter
	}
	if mt.registry != nil && mt.registry.conv != nil {
		return mt.registry.conv
	}
	return coerce.NewConverter()
}

func (mt *ModelType) conn() query.Conn {
	if mt.Conn != nil {
		return mt.Conn
	}
	if mt.registry != nil {
		return mt.registry.Conn()
	}
	return nil
}

// tableFields derives the column list once from the live schema.
func (mt *ModelType) tableFields(ctx context.Context, conn query.Conn) ([]string, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.schemaFields != nil {
		return mt.schemaFields, nil
	}
	fields, err := conn.TableFields(ctx, mt.Table)
	if err != nil {
		return nil, err
	}
	mt.schemaFields = fields
	return fields, nil
}

// Registry holds the model types of one application.
//
// Setup happens once at startup: build each ModelType and Register it.
// Lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*ModelType
	conv   *coerce.Converter
	conn   query.Conn
}

// NewRegistry creates a Registry whose types convert values with conv.
// A nil conv uses coerce.NewConverter().
func NewRegistry(conv *coerce.Converter) *Registry {
	if conv == nil {
		conv = coerce.NewConverter()
	}
	return &Registry{
		models: make(map[string]*ModelType),
		conv:   conv,
	}
}

// Converter returns the registry's converter.
func (reg *Registry) Converter() *coerce.Converter {
	return reg.conv
}

// Use sets the connection used by types without their own Conn.
func (reg *Registry) Use(conn query.Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.conn = conn
}

// Conn returns the registry's connection.
func (reg *Registry) Conn() query.Conn {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.conn
}

// Register validates mt, fills in defaults and adds it to the registry.
//
// Defaults:
//   - Table: the snake_case form of Name
//   - PK: ["id"]
//   - Timestamps fields: create_time / update_time
func (reg *Registry) Register(mt *ModelType) error {
	if mt.Name == "" {
		return newInvalidModel("", "", "model name is required")
	}
	if mt.Table == "" {
		mt.Table = snakeCase(mt.Name)
	}
	if len(mt.PK) == 0 {
		mt.PK = []string{"id"}
	}
	if mt.Timestamps.CreateField == "" {
		mt.Timestamps.CreateField = DefaultCreateField
	}
	if mt.Timestamps.UpdateField == "" {
		mt.Timestamps.UpdateField = DefaultUpdateField
	}

	for name, d := range mt.Types {
		if ref, ok := d.TypeRef(); ok && !reg.conv.HasType(ref) && (mt.Converter == nil || !mt.Converter.HasType(ref)) {
			return newInvalidModel(mt.Name, name, fmt.Sprintf("type %q is not registered", ref))
		}
	}
	for _, c := range mt.Together {
		if _, ok := mt.Relations[c.Relation]; !ok {
			return newInvalidModel(mt.Name, c.Relation, "cascaded relation is not defined")
		}
	}
	for _, f := range mt.PK {
		if slices.Contains(mt.Disuse, f) {
			return newInvalidModel(mt.Name, f, "primary key field cannot be disused")
		}
	}

	if mt.DateFormat != "" && mt.Converter == nil {
		c := *reg.conv
		c.DateFormat = mt.DateFormat
		mt.Converter = &c
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.models[mt.Name]; exists {
		return newInvalidModel(mt.Name, "", "model already registered")
	}
	mt.registry = reg
	reg.models[mt.Name] = mt
	return nil
}

// Model looks up a registered type by name.
func (reg *Registry) Model(name string) (*ModelType, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	mt, ok := reg.models[name]
	return mt, ok
}

// MustModel is Model for names known to be registered.
func (reg *Registry) MustModel(name string) *ModelType {
	mt, ok := reg.Model(name)
	if !ok {
		panic(fmt.Sprintf("record: model %q is not registered", name))
	}
	return mt
}

// Models returns every registered type, sorted by name.
func (reg *Registry) Models() []*ModelType {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*ModelType, 0, len(reg.models))
	for _, mt := range reg.models {
		out = append(out, mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// snakeCase converts "UserProfile" to "user_profile".
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

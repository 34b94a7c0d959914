package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowkit/internal/coerce"
)

func TestRegister_Defaults(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	mt := registerModel(t, reg, &ModelType{Name: "UserProfile"})

	assert.Equal(t, "user_profile", mt.Table)
	assert.Equal(t, []string{"id"}, mt.PK)
	assert.Equal(t, DefaultCreateField, mt.Timestamps.CreateField)
	assert.Equal(t, DefaultUpdateField, mt.Timestamps.UpdateField)
	assert.Same(t, reg, mt.Registry())

	got, ok := reg.Model("UserProfile")
	require.True(t, ok)
	assert.Same(t, mt, got)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name  string
		mt    *ModelType
		field string
	}{
		{"missing name", &ModelType{}, ""},
		{"unregistered type", &ModelType{Name: "A", Types: map[string]coerce.Descriptor{"money": coerce.Parse("@money")}}, "money"},
		{"cascade without relation", &ModelType{Name: "B", Together: []Cascade{{Relation: "profile"}}}, "profile"},
		{"disused key", &ModelType{Name: "C", Disuse: []string{"id"}}, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _, _ := createTestRegistry(t)
			err := reg.Register(tt.mt)
			require.Error(t, err)
			assert.True(t, IsInvalidModel(err))

			var re *Error
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.field, re.Field)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	registerModel(t, reg, usersModel())

	err := reg.Register(usersModel())
	assert.True(t, IsInvalidModel(err))
	assert.ErrorContains(t, err, "already registered")
}

func TestRegister_RegisteredTypeRef(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	reg.Converter().RegisterType("upper", func(raw any) (any, error) { return raw, nil })

	err := reg.Register(&ModelType{Name: "A", Types: map[string]coerce.Descriptor{"x": coerce.Parse("@upper")}})
	assert.NoError(t, err)
}

func TestRegister_DateFormatOverride(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	mt := registerModel(t, reg, usersModel(), func(mt *ModelType) {
		mt.DateFormat = "d/m/Y"
		mt.Types = map[string]coerce.Descriptor{"create_time": coerce.Parse("datetime")}
	})

	rec := mt.Load(map[string]any{"create_time": "2024-03-09 14:05:07"})
	got, err := rec.Get(context.Background(), "create_time")
	require.NoError(t, err)
	assert.Equal(t, "09/03/2024", got)

	// The shared converter is untouched.
	assert.Equal(t, coerce.DefaultDateFormat, reg.Converter().DateFormat)
}

func TestRegistry_ModelsSorted(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	registerModel(t, reg, &ModelType{Name: "Post"})
	registerModel(t, reg, &ModelType{Name: "Comment"})

	var names []string
	for _, mt := range reg.Models() {
		names = append(names, mt.Name)
	}
	assert.Equal(t, []string{"Comment", "Post"}, names)
}

func TestRegistry_MustModelPanics(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	assert.Panics(t, func() { reg.MustModel("Nope") })
}

func TestHooks_RejectUnknown(t *testing.T) {
	var hs Hooks
	err := hs.On(Hook("before_lunch"), func(context.Context, *Record) bool { return true })
	assert.ErrorContains(t, err, "unknown hook")
	assert.Equal(t, 0, hs.Len(Hook("before_lunch")))
}

func TestTimestamps_Modes(t *testing.T) {
	tests := []struct {
		mode      string
		enabled   bool
		formatted bool
	}{
		{"", false, false},
		{"false", false, false},
		{"true", true, false},
		{"int", true, false},
		{"datetime", true, true},
		{"DATE", true, true},
		{"timestamp", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			ts := Timestamps{Mode: tt.mode}
			assert.Equal(t, tt.enabled, ts.Enabled())
			assert.Equal(t, tt.formatted, ts.Formatted())
		})
	}
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "user", snakeCase("User"))
	assert.Equal(t, "user_role", snakeCase("UserRole"))
	assert.Equal(t, "already_snake", snakeCase("already_snake"))
}

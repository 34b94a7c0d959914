package coerce

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.UTC)

func newTestConverter() *Converter {
	c := NewConverter()
	c.Location = time.UTC
	c.Now = func() time.Time { return fixedNow }
	return c
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Descriptor
	}{
		{"integer", Descriptor{Kind: KindInteger}},
		{"float:2", Descriptor{Kind: KindFloat, Param: "2"}},
		{"Datetime:Y-m-d H:i", Descriptor{Kind: KindDatetime, Param: "Y-m-d H:i"}},
		{"@Money", Descriptor{Kind: "@Money"}},
		{" json ", Descriptor{Kind: KindJSON}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}

	assert.Equal(t, "float:2", Parse("float:2").String())
	name, ok := Parse("@Money").TypeRef()
	assert.True(t, ok)
	assert.Equal(t, "Money", name)
	_, ok = Parse("@").TypeRef()
	assert.False(t, ok)
	assert.True(t, Parse("date").Temporal())
	assert.False(t, Parse("mystery").Known())
}

func TestNilPassesThrough(t *testing.T) {
	c := newTestConverter()
	kinds := []string{"integer", "float:2", "boolean", "timestamp", "datetime", "date",
		"object", "array", "json", "serialize", "@Missing", "unknown"}

	for _, k := range kinds {
		t.Run(k, func(t *testing.T) {
			out, err := c.ToStorage(nil, Parse(k))
			require.NoError(t, err)
			assert.Nil(t, out)

			out, err = c.FromStorage(nil, Parse(k))
			require.NoError(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestScalarKinds(t *testing.T) {
	c := newTestConverter()

	tests := []struct {
		name string
		in   any
		desc string
		want any
	}{
		{"int from string", "42", "integer", int64(42)},
		{"int from prefix", "12abc", "integer", int64(12)},
		{"int from garbage", "abc", "integer", int64(0)},
		{"int from float", 3.9, "integer", int64(3)},
		{"int from exponent", "1e3", "integer", int64(1000)},
		{"int from bool", true, "integer", int64(1)},
		{"float plain", "3.14159", "float", 3.14159},
		{"float rounded", 3.14159, "float:2", 3.14},
		{"float one place", 2.345, "float:1", 2.3},
		{"float half away", "0.125", "float:2", 0.13},
		{"bool zero string", "0", "boolean", false},
		{"bool empty", "", "boolean", false},
		{"bool text", "no", "boolean", true},
		{"bool int", 2, "boolean", true},
		{"bool empty list", []any{}, "boolean", false},
		{"unknown passthrough", "x", "mystery", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.ToStorage(tt.in, Parse(tt.desc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestTimestampKind(t *testing.T) {
	c := newTestConverter()
	d := Parse("timestamp")

	stored, err := c.ToStorage("2024-03-09 14:05:07", d)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Truncate(time.Second).Unix(), stored)

	stored, err = c.ToStorage(1700000000, d)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), stored)

	read, err := c.FromStorage(stored, d)
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 22:13:20", read)

	read, err = c.FromStorage(stored, Parse("timestamp:Y/m/d"))
	require.NoError(t, err)
	assert.Equal(t, "2023/11/14", read)

	stored, err = c.ToStorage("not a date", d)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestDatetimeKind(t *testing.T) {
	c := newTestConverter()
	d := Parse("datetime")

	stored, err := c.ToStorage(fixedNow, d)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09 14:05:07.123456", stored)

	read, err := c.FromStorage(stored, d)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09 14:05:07", read)

	read, err = c.FromStorage(stored, Parse("datetime:d/m/Y"))
	require.NoError(t, err)
	assert.Equal(t, "09/03/2024", read)

	// Epoch input is accepted on write.
	stored, err = c.ToStorage(int64(0), d)
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01 00:00:00.000000", stored)

	// Empty stored values read as nil.
	read, err = c.FromStorage("", d)
	require.NoError(t, err)
	assert.Nil(t, read)

	// So do values that are not dates, in either direction.
	stored, err = c.ToStorage("not a date", d)
	require.NoError(t, err)
	assert.Nil(t, stored)
	read, err = c.FromStorage("garbage", d)
	require.NoError(t, err)
	assert.Nil(t, read)
}

func TestDateKind(t *testing.T) {
	c := newTestConverter()
	d := Parse("date")

	stored, err := c.ToStorage("2024-03-09 23:59:59", d)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", stored)

	read, err := c.FromStorage(stored, d)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", read)
}

func TestStructuredKinds(t *testing.T) {
	c := newTestConverter()

	t.Run("json", func(t *testing.T) {
		stored, err := c.ToStorage(map[string]any{"b": 1, "a": []any{"x", true}}, Parse("json"))
		require.NoError(t, err)
		assert.Equal(t, `{"a":["x",true],"b":1}`, stored)

		read, err := c.FromStorage(stored, Parse("json"))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": []any{"x", true}, "b": int64(1)}, read)

		read, err = c.FromStorage("{broken", Parse("json"))
		require.NoError(t, err)
		assert.Nil(t, read)
	})

	t.Run("array wraps scalars", func(t *testing.T) {
		stored, err := c.ToStorage("solo", Parse("array"))
		require.NoError(t, err)
		assert.Equal(t, `["solo"]`, stored)

		read, err := c.FromStorage("", Parse("array"))
		require.NoError(t, err)
		assert.Equal(t, []any{}, read)
	})

	t.Run("object", func(t *testing.T) {
		stored, err := c.ToStorage([]any{"a", "b"}, Parse("object"))
		require.NoError(t, err)
		assert.Equal(t, `{"0":"a","1":"b"}`, stored)

		stored, err = c.ToStorage(`{"k":1}`, Parse("object"))
		require.NoError(t, err)
		assert.Equal(t, `{"k":1}`, stored)

		read, err := c.FromStorage(stored, Parse("object"))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"k": int64(1)}, read)

		read, err = c.FromStorage("", Parse("object"))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, read)
	})
}

func TestSerializeKind(t *testing.T) {
	c := newTestConverter()
	d := Parse("serialize")

	in := map[string]any{"n": 1, "tags": []any{"a", "b"}}
	stored, err := c.ToStorage(in, d)
	require.NoError(t, err)
	assert.IsType(t, []byte{}, stored)

	read, err := c.FromStorage(stored, d)
	require.NoError(t, err)
	assert.Equal(t, in, read)

	read, err = c.FromStorage("garbage", d)
	require.NoError(t, err)
	assert.Nil(t, read)
}

type money struct {
	Cents int64
}

func TestTypeReference(t *testing.T) {
	c := newTestConverter()
	c.RegisterType("Money", func(raw any) (any, error) {
		return money{Cents: ToInt(raw)}, nil
	})
	c.RegisterType("Broken", func(raw any) (any, error) {
		return nil, errors.New("boom")
	})
	assert.True(t, c.HasType("Money"))

	read, err := c.FromStorage("1250", Parse("@Money"))
	require.NoError(t, err)
	assert.Equal(t, money{Cents: 1250}, read)

	// Write path passes the value through untouched.
	stored, err := c.ToStorage("1250", Parse("@Money"))
	require.NoError(t, err)
	assert.Equal(t, "1250", stored)

	_, err = c.FromStorage("x", Parse("@Nope"))
	assert.ErrorContains(t, err, `"Nope" is not registered`)

	_, err = c.FromStorage("x", Parse("@Broken"))
	assert.ErrorContains(t, err, "boom")
}

// Writing then reading a value equals reading its coerced form.
func TestRoundTrip(t *testing.T) {
	c := newTestConverter()

	tests := []struct {
		desc string
		in   any
		want any
	}{
		{"integer", "7", int64(7)},
		{"float:1", 1.26, 1.3},
		{"boolean", "yes", true},
		{"timestamp", "2024-03-09 14:05:07", "2024-03-09 14:05:07"},
		{"datetime", "2024-03-09 14:05:07", "2024-03-09 14:05:07"},
		{"json", []any{int64(1), "two"}, []any{int64(1), "two"}},
		{"array", []any{}, []any{}},
		{"serialize", "blob", "blob"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			d := Parse(tt.desc)
			stored, err := c.ToStorage(tt.in, d)
			require.NoError(t, err)
			read, err := c.FromStorage(stored, d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, read)
		})
	}
}

func TestAutoTimestamp(t *testing.T) {
	c := newTestConverter()

	dt := Parse("datetime")
	assert.Equal(t, "2024-03-09 14:05:07.123456", c.AutoTimestamp(&dt, ""))

	it := Parse("integer")
	assert.Equal(t, fixedNow.Unix(), c.AutoTimestamp(&it, "datetime"))

	assert.Equal(t, "2024-03-09 14:05:07.123456", c.AutoTimestamp(nil, "timestamp"))
	assert.Equal(t, fixedNow.Unix(), c.AutoTimestamp(nil, "int"))
	assert.Equal(t, fixedNow.Unix(), c.AutoTimestamp(nil, "true"))
}

func TestFormatTime(t *testing.T) {
	c := newTestConverter()

	out, err := c.FormatTime("", int64(0), true)
	require.NoError(t, err)
	assert.Nil(t, out, "epoch zero is empty")

	out, err = c.FormatTime("Y", "2001-02-03", false)
	require.NoError(t, err)
	assert.Equal(t, "2001", out)

	out, err = c.FormatTime("Y", "not a date", false)
	require.NoError(t, err)
	assert.Nil(t, out)
}

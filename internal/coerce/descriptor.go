package coerce

import "strings"

// Kind names a conversion.
type Kind string

const (
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindTimestamp Kind = "timestamp"
	KindDatetime  Kind = "datetime"
	KindDate      Kind = "date"
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindJSON      Kind = "json"
	KindSerialize Kind = "serialize"
)

// TypeMarker prefixes a kind that names a registered constructor.
const TypeMarker = "@"

// Descriptor is a parsed "kind" or "kind:param" string.
type Descriptor struct {
	Kind  Kind
	Param string
}

// Parse splits s at the first colon. Kinds are case-insensitive except
// for type references, whose name is kept verbatim.
func Parse(s string) Descriptor {
	s = strings.TrimSpace(s)
	kind, param, _ := strings.Cut(s, ":")
	if !strings.HasPrefix(kind, TypeMarker) {
		kind = strings.ToLower(kind)
	}
	return Descriptor{Kind: Kind(kind), Param: param}
}

// String renders the descriptor back to its textual form.
func (d Descriptor) String() string {
	if d.Param == "" {
		return string(d.Kind)
	}
	return string(d.Kind) + ":" + d.Param
}

// TypeRef returns the referenced constructor name and whether d is a type reference.
func (d Descriptor) TypeRef() (string, bool) {
	name, ok := strings.CutPrefix(string(d.Kind), TypeMarker)
	return name, ok && name != ""
}

// Temporal reports whether the kind holds a point in time.
func (d Descriptor) Temporal() bool {
	switch d.Kind {
	case KindTimestamp, KindDatetime, KindDate:
		return true
	}
	return false
}

// Known reports whether the kind is a built-in kind or a type reference.
func (d Descriptor) Known() bool {
	switch d.Kind {
	case KindInteger, KindFloat, KindBoolean, KindTimestamp, KindDatetime,
		KindDate, KindObject, KindArray, KindJSON, KindSerialize:
		return true
	}
	_, ok := d.TypeRef()
	return ok
}

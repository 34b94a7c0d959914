package coerce

import (
	"reflect"
	"strconv"
	"time"
)

// Truthy reports the boolean value of v under loose typing:
// nil, false, 0, 0.0, "", "0" and empty lists or maps are false.
// Every other value, including any struct or pointer, is true.
func Truthy(v any) bool {
	switch val := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		return val != "" && val != "0"
	case time.Time:
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Empty is the negation of Truthy.
func Empty(v any) bool {
	return !Truthy(v)
}

// IsObject reports whether v is an opaque object for comparison purposes:
// a non-nil pointer, a struct, a func or a chan. time.Time is a value.
func IsObject(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(time.Time); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		return !rv.IsNil()
	case reflect.Struct, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// StrictEqual reports whether a and b have the same type and value.
// Integer widths and float widths are unified first, so int(1) and int64(1)
// are identical while int64(1) and float64(1) are not.
func StrictEqual(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	if reflect.TypeOf(na) != reflect.TypeOf(nb) {
		return false
	}
	if ta, ok := na.(time.Time); ok {
		return ta.Equal(nb.(time.Time))
	}
	return reflect.DeepEqual(na, nb)
}

// LooseEqual compares a and b with type juggling:
//  1. nil equals "" and any falsy non-string value
//  2. a bool compares against the other side's truthiness
//  3. numbers and numeric strings compare numerically
//  4. non-numeric strings compare as text
//  5. lists and maps compare element-wise, loosely
//  6. a time equals a date string naming the same instant in its zone
func LooseEqual(a, b any) bool {
	na, nb := normalize(a), normalize(b)

	switch {
	case na == nil && nb == nil:
		return true
	case isBool(na) || isBool(nb):
		return Truthy(na) == Truthy(nb)
	case na == nil:
		return nilEquals(nb)
	case nb == nil:
		return nilEquals(na)
	}

	if ta, ok := na.(time.Time); ok {
		return timeEquals(ta, nb)
	}
	if tb, ok := nb.(time.Time); ok {
		return timeEquals(tb, na)
	}

	if isNumber(na) || isNumber(nb) {
		return numberEquals(na, nb)
	}

	if sa, ok := na.(string); ok {
		if sb, ok := nb.(string); ok {
			if numericPattern.MatchString(sa) && numericPattern.MatchString(sb) {
				return ToFloat(sa) == ToFloat(sb)
			}
			return sa == sb
		}
		return false
	}

	return collectionEquals(a, b)
}

func nilEquals(v any) bool {
	if s, ok := v.(string); ok {
		return s == ""
	}
	return Empty(v)
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func numberEquals(a, b any) bool {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return ai == bi
	}

	// One side may be a string: numeric strings compare as numbers,
	// others compare against the number's text form.
	if s, ok := a.(string); ok {
		if !numericPattern.MatchString(s) {
			return s == numberText(b)
		}
	}
	if s, ok := b.(string); ok {
		if !numericPattern.MatchString(s) {
			return s == numberText(a)
		}
	}
	if !isNumber(a) && !isString(a) || !isNumber(b) && !isString(b) {
		return false
	}
	return ToFloat(a) == ToFloat(b)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func numberText(v any) string {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func collectionEquals(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isList(ra) && isList(rb):
		if ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !LooseEqual(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	case ra.Kind() == reflect.Map && rb.Kind() == reflect.Map:
		if ra.Type().Key() != rb.Type().Key() || ra.Len() != rb.Len() {
			return false
		}
		iter := ra.MapRange()
		for iter.Next() {
			other := rb.MapIndex(iter.Key())
			if !other.IsValid() {
				return false
			}
			if !LooseEqual(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isList(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

// timeEquals compares t with another time, or with a date string read in
// t's zone. Numeric strings are not dates here.
func timeEquals(t time.Time, other any) bool {
	switch o := other.(type) {
	case time.Time:
		return t.Equal(o)
	case string:
		if IsNumeric(o) {
			return false
		}
		parsed, err := ParseTime(o, t.Location(), time.Now)
		return err == nil && t.Equal(parsed)
	}
	return false
}

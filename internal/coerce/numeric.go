package coerce

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericPattern = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?\s*$`)
	numericPrefix  = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	integerPrefix  = regexp.MustCompile(`^\s*[+-]?\d+`)
)

// IsNumeric reports whether v is a number or a string holding exactly one
// (surrounding whitespace allowed).
func IsNumeric(v any) bool {
	switch val := normalize(v).(type) {
	case int64, float64:
		return true
	case string:
		return numericPattern.MatchString(val)
	}
	return false
}

// ToInt converts v to an integer. Strings are parsed by their leading
// numeric prefix; anything unparsable yields 0.
func ToInt(v any) int64 {
	switch val := normalize(v).(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case int64:
		return val
	case float64:
		return floatToInt(val)
	case string:
		return stringToInt(val)
	case time.Time:
		return val.Unix()
	}
	if Truthy(v) {
		return 1
	}
	return 0
}

// ToFloat converts v to a float. Strings are parsed by their leading
// numeric prefix; anything unparsable yields 0.
func ToFloat(v any) float64 {
	switch val := normalize(v).(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case int64:
		return float64(val)
	case float64:
		return val
	case string:
		return stringToFloat(val)
	case time.Time:
		return float64(val.Unix())
	}
	if Truthy(v) {
		return 1
	}
	return 0
}

// Round rounds f to places decimals, halves away from zero.
func Round(f float64, places int) float64 {
	if places <= 0 {
		return math.Round(f)
	}
	pow := math.Pow(10, float64(places))
	return math.Round(f*pow) / pow
}

func floatToInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}

func stringToInt(s string) int64 {
	prefix := numericPrefix.FindString(s)
	if prefix == "" {
		return 0
	}
	// Plain integers parse directly so large values keep full precision.
	if ip := integerPrefix.FindString(prefix); ip == prefix {
		n, err := strconv.ParseInt(strings.TrimSpace(ip), 10, 64)
		if err == nil {
			return n
		}
	}
	return floatToInt(stringToFloat(prefix))
}

func stringToFloat(s string) float64 {
	prefix := strings.TrimSpace(numericPrefix.FindString(s))
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return f
}

// normalize collapses Go's numeric and byte-string variety into the small
// set of shapes the comparison rules reason about: int64, float64, string.
func normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return v
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	}

	// Named types over basic kinds (type Status string).
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

// Normalize exposes normalize for callers that need identity-stable values
// (for example, primary key lookups).
func Normalize(v any) any {
	return normalize(v)
}

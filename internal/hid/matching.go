package hid

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Matching is a device matching dictionary. A device matches when every key
// is present with an equal value.
type Matching map[PropertyKey]any

// ElementMatching is an element matching dictionary.
type ElementMatching map[ElementKey]any

// PropertyFunc looks up one property.
type PropertyFunc func(key PropertyKey) (any, bool)

// Matches reports whether the properties satisfy m.
func (m Matching) Matches(prop PropertyFunc) bool {
	for k, want := range m {
		got, ok := prop(k)
		if !ok || !EqualValues(got, want) {
			return false
		}
	}
	return true
}

// MatchAny reports whether prop satisfies any dictionary in ms. An empty
// list matches everything, as with a NULL matching dictionary.
func MatchAny(ms []Matching, prop PropertyFunc) bool {
	if len(ms) == 0 {
		return true
	}
	for _, m := range ms {
		if m.Matches(prop) {
			return true
		}
	}
	return false
}

// MatchesElement reports whether e satisfies m. Unknown keys never match.
func (m ElementMatching) MatchesElement(e Element) bool {
	for k, want := range m {
		got, ok := elementField(e, k)
		if !ok || !EqualValues(got, want) {
			return false
		}
	}
	return true
}

// MatchAnyElement reports whether e satisfies any dictionary in ms. An empty
// list matches every element.
func MatchAnyElement(ms []ElementMatching, e Element) bool {
	if len(ms) == 0 {
		return true
	}
	for _, m := range ms {
		if m.MatchesElement(e) {
			return true
		}
	}
	return false
}

func elementField(e Element, k ElementKey) (any, bool) {
	switch k {
	case ElementKeyCookie:
		return e.Cookie, true
	case ElementKeyType:
		return uint32(e.Type), true
	case ElementKeyUsage:
		return e.Usage, true
	case ElementKeyUsagePage:
		return e.UsagePage, true
	case ElementKeyMin:
		return e.Min, true
	case ElementKeyMax:
		return e.Max, true
	case ElementKeyReportID:
		return e.ReportID, true
	case ElementKeyReportSize:
		return e.ReportSize, true
	case ElementKeyReportCount:
		return e.ReportCount, true
	case ElementKeyName:
		return e.Name, true
	case ElementKeyCollectionType:
		return uint32(e.CollectionType), true
	case ElementKeyScaledMin:
		return e.PhysicalMin, true
	case ElementKeyScaledMax:
		return e.PhysicalMax, true
	case ElementKeyUnit:
		return e.Unit, true
	case ElementKeyUnitExponent:
		return e.UnitExponent, true
	case ElementKeyIsArray:
		return e.IsArray(), true
	case ElementKeyIsRelative:
		return e.IsRelative(), true
	case ElementKeyIsWrapping:
		return e.IsWrapping(), true
	case ElementKeyIsNonLinear:
		return e.IsNonLinear(), true
	case ElementKeyHasPreferredState:
		return e.HasPreferredState(), true
	case ElementKeyHasNullState:
		return e.HasNullState(), true
	}
	return nil, false
}

// Int64 normalizes the integer representations property values arrive in.
func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case float32:
		if n == float32(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// EqualValues compares property values, treating all integer types as
// numbers so that a matching dictionary built from flags matches values
// decoded from the native property store.
func EqualValues(a, b any) bool {
	if x, ok := Int64(a); ok {
		y, ok := Int64(b)
		return ok && x == y
	}
	if x, ok := a.([]byte); ok {
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}
	return reflect.DeepEqual(a, b)
}

// ParseMatching builds a matching dictionary from key=value pairs. Values
// that parse as integers (decimal or 0x hex) become int64, true/false
// become bool, anything else stays a string.
func ParseMatching(pairs []string) (Matching, error) {
	m := make(Matching, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid match %q: expected key=value", p)
		}
		m[PropertyKey(k)] = ParseScalar(strings.TrimSpace(v))
	}
	return m, nil
}

// ParseScalar converts a flag value to int64, bool or string.
func ParseScalar(s string) any {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

//go:build darwin && cgo

package darwin

/*
#include "hidbridge.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/mj1618/hidbridge/internal/hid"
)

// goValue converts a CoreFoundation value into string, int64, float64,
// bool, []byte, []any or map[string]any. Unknown types become nil. The ref
// is borrowed.
func goValue(ref C.CFTypeRef) any {
	switch C.hb_cf_kind(ref) {
	case C.HB_CF_STRING:
		return goString(ref)
	case C.HB_CF_INT:
		return int64(C.hb_cf_int(ref))
	case C.HB_CF_FLOAT:
		return float64(C.hb_cf_float(ref))
	case C.HB_CF_BOOL:
		return C.hb_cf_bool(ref) != 0
	case C.HB_CF_DATA:
		n := C.hb_cf_data_len(ref)
		if n == 0 {
			return []byte{}
		}
		return C.GoBytes(unsafe.Pointer(C.hb_cf_data_ptr(ref)), C.int(n))
	case C.HB_CF_ARRAY:
		n := int(C.hb_cf_count(ref))
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, goValue(C.hb_cf_array_at(ref, C.CFIndex(i))))
		}
		return out
	case C.HB_CF_DICT:
		keys, values := dictEntries(ref)
		out := make(map[string]any, len(keys))
		for i, k := range keys {
			out[goString(k)] = goValue(values[i])
		}
		return out
	}
	return nil
}

func goString(ref C.CFTypeRef) string {
	p := C.hb_cf_string_copy(ref)
	if p == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p)
}

func dictEntries(ref C.CFTypeRef) (keys, values []C.CFTypeRef) {
	n := int(C.hb_cf_count(ref))
	if n == 0 {
		return nil, nil
	}
	keys = make([]C.CFTypeRef, n)
	values = make([]C.CFTypeRef, n)
	C.hb_cf_dict_entries(ref, &keys[0], &values[0])
	return keys, values
}

func setValues(ref C.CFTypeRef) []C.CFTypeRef {
	n := int(C.hb_cf_count(ref))
	if n == 0 {
		return nil
	}
	out := make([]C.CFTypeRef, n)
	C.hb_cf_set_values(ref, &out[0])
	return out
}

// cfValue converts a Go value into an owned CoreFoundation object. The
// caller releases the result.
func cfValue(v any) (C.CFTypeRef, error) {
	switch x := v.(type) {
	case string:
		cs := C.CString(x)
		defer C.free(unsafe.Pointer(cs))
		return C.hb_cf_new_string(cs), nil
	case bool:
		var b C.int
		if x {
			b = 1
		}
		return C.hb_cf_new_bool(b), nil
	case float32:
		return C.hb_cf_new_float(C.double(x)), nil
	case float64:
		if n, ok := hid.Int64(x); ok {
			return C.hb_cf_new_int(C.int64_t(n)), nil
		}
		return C.hb_cf_new_float(C.double(x)), nil
	case []byte:
		if len(x) == 0 {
			return C.hb_cf_new_data(nil, 0), nil
		}
		return C.hb_cf_new_data((*C.uint8_t)(unsafe.Pointer(&x[0])), C.CFIndex(len(x))), nil
	case []any:
		return cfArray(len(x), func(i int) any { return x[i] })
	case []map[string]any:
		return cfArray(len(x), func(i int) any { return x[i] })
	case map[string]any:
		return cfDict(x)
	}
	if n, ok := hid.Int64(v); ok {
		return C.hb_cf_new_int(C.int64_t(n)), nil
	}
	return 0, fmt.Errorf("unsupported property value type %T", v)
}

func cfArray(n int, at func(i int) any) (C.CFTypeRef, error) {
	items := make([]C.CFTypeRef, 0, n)
	defer func() {
		for _, it := range items {
			C.hb_cf_release(it)
		}
	}()
	for i := 0; i < n; i++ {
		ref, err := cfValue(at(i))
		if err != nil {
			return 0, fmt.Errorf("index %d: %w", i, err)
		}
		items = append(items, ref)
	}
	if n == 0 {
		return C.hb_cf_new_array(nil, 0), nil
	}
	return C.hb_cf_new_array(&items[0], C.CFIndex(n)), nil
}

func cfDict(m map[string]any) (C.CFTypeRef, error) {
	keys := make([]C.CFTypeRef, 0, len(m))
	values := make([]C.CFTypeRef, 0, len(m))
	defer func() {
		for i := range keys {
			C.hb_cf_release(keys[i])
		}
		for i := range values {
			C.hb_cf_release(values[i])
		}
	}()
	for k, v := range m {
		ref, err := cfValue(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", k, err)
		}
		key, _ := cfValue(k)
		keys = append(keys, key)
		values = append(values, ref)
	}
	if len(keys) == 0 {
		return C.hb_cf_new_dict(nil, nil, 0), nil
	}
	return C.hb_cf_new_dict(&keys[0], &values[0], C.CFIndex(len(keys))), nil
}

// cfMatching converts one matching dictionary. A nil dictionary yields a
// NULL ref, which IOKit treats as "match everything".
func cfMatching[M ~map[K]any, K ~string](m M) (C.CFTypeRef, error) {
	if m == nil {
		return 0, nil
	}
	d := make(map[string]any, len(m))
	for k, v := range m {
		d[string(k)] = v
	}
	return cfDict(d)
}

// cfMatchingArray converts a list of matching dictionaries into a CFArray.
// An empty list yields NULL.
func cfMatchingArray[M ~map[K]any, K ~string](ms []M) (C.CFTypeRef, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	return cfArray(len(ms), func(i int) any {
		d := make(map[string]any, len(ms[i]))
		for k, v := range ms[i] {
			d[string(k)] = v
		}
		return d
	})
}

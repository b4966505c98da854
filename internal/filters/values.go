package filters

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Returns whether a value constrains nothing: `nil`, an empty string, or an empty list.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}

	if s, ok := v.(string); ok {
		return len(s) == 0
	}

	if list, ok := AsList(v); ok {
		return len(list) == 0
	}

	return false
}

// Converts a slice or array of any element type to `[]any`. The second result is `false` for other values.
func AsList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// Raw JSON is a value, not a list of bytes.
	if _, ok := v.(json.RawMessage); ok {
		return nil, false
	}

	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

// Returns a canonical textual form of a scalar value, used to compare values coming from different decoders.
// Numbers are formatted the same way regardless of their Go type, so that `1`, `int64(1)` and `1.0` are equal, and so
// is the string "1".
func ValueKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return formatFloat(f)
		}
		return t.String()
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Returns the canonical keys of a selection: one key for a scalar, one per element for a list.
func SelectionKeys(v any) []string {
	if list, ok := AsList(v); ok {
		keys := make([]string, 0, len(list))
		for _, e := range list {
			keys = append(keys, ValueKey(e))
		}
		return keys
	}
	return []string{ValueKey(v)}
}

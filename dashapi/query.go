package dashapi

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"

	"github.com/oapi-codegen/runtime"
)

// Encodes query parameters using the OpenAPI `form` style with `explode` enabled. Slices are serialized as repeated
// keys (`k=v1&k=v2`), which preserves "IN" semantics on the server side. `nil` values are skipped, but slices holding
// `nil` elements are rejected.
func EncodeQuery(query map[string]any) (url.Values, error) {
	values := make(url.Values, len(query))

	for name, value := range query {
		if value == nil {
			continue
		}
		if hasNilElement(value) {
			return nil, fmt.Errorf("encoding query parameter %q: %w", name, ErrNilElement)
		}

		queryFrag, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
		if err != nil {
			return nil, fmt.Errorf("encoding query parameter %q: %w", name, err)
		}

		parsed, err := url.ParseQuery(queryFrag)
		if err != nil {
			return nil, fmt.Errorf("encoding query parameter %q: %w", name, err)
		}

		for k, vs := range parsed {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
	}

	return values, nil
}

// Returned when a query parameter is a slice with a `nil` element, which cannot be serialized.
var ErrNilElement = errors.New("nil element in list value")

func hasNilElement(value any) bool {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}

	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i)
		switch e.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if e.IsNil() {
				return true
			}
		}
	}
	return false
}

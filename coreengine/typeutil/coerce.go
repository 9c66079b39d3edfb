package typeutil

import (
	"fmt"
	"reflect"
)

// CoerceTo converts a loosely-typed decoded value (the shapes a JSON
// round-trip produces: float64, string, bool, []any, map[string]any, or
// nil) into target, a method's statically declared Go parameter or return
// type. Remotable capability-set parameters are not handled here — the
// dispatch package promotes those through the proxy cache before calling
// CoerceTo on anything else.
func CoerceTo(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if v.Type().ConvertibleTo(target) {
		switch target.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64, reflect.String, reflect.Bool:
			return v.Convert(target), nil
		}
	}

	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i, ok := SafeInt(value); ok {
			return reflect.ValueOf(i).Convert(target), nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := SafeFloat64(value); ok {
			return reflect.ValueOf(f).Convert(target), nil
		}
	case reflect.String:
		if s, ok := SafeString(value); ok {
			return reflect.ValueOf(s).Convert(target), nil
		}
	case reflect.Bool:
		if b, ok := SafeBool(value); ok {
			return reflect.ValueOf(b).Convert(target), nil
		}
	case reflect.Slice:
		if s, ok := SafeSlice(value); ok {
			out := reflect.MakeSlice(target, len(s), len(s))
			for i, elem := range s {
				ev, err := CoerceTo(elem, target.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(ev)
			}
			return out, nil
		}
	}

	return reflect.Value{}, fmt.Errorf("typeutil: cannot coerce %T to %s", value, target)
}

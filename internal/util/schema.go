package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// CreateSchema derives a JSON schema object from the exported fields of a
// struct value or pointer. Anything else yields an empty object schema.
//
// Field tags:
//   - json:        property name; omitempty or a pointer type makes it optional
//   - description: property description shown to the model
//   - enum:        comma separated list of allowed values
//
// Nested structs become nested objects and slices carry an items schema.
// Promoted fields of embedded structs are flattened like encoding/json does.
func CreateSchema(v any) map[string]any {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return objectSchema(map[string]any{}, nil)
	}

	return structSchema(t, map[reflect.Type]bool{})
}

// DecodeArgs converts validated tool arguments into a typed struct through
// a JSON round trip.
func DecodeArgs(args map[string]any, out any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}

	return nil
}

func structSchema(t reflect.Type, seen map[reflect.Type]bool) map[string]any {
	if seen[t] {
		return map[string]any{"type": "object"}
	}
	seen[t] = true
	defer delete(seen, t)

	props := map[string]any{}
	var required []any

	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}

		name, optional, ok := propertyName(f)
		if !ok {
			continue
		}

		prop := typeSchema(f.Type, seen)
		if d := f.Tag.Get("description"); d != "" {
			prop["description"] = d
		}
		if e := f.Tag.Get("enum"); e != "" {
			var values []any
			for _, v := range strings.Split(e, ",") {
				values = append(values, strings.TrimSpace(v))
			}
			prop["enum"] = values
		}

		props[name] = prop

		if !optional && f.Type.Kind() != reflect.Pointer {
			required = append(required, name)
		}
	}

	return objectSchema(props, required)
}

func typeSchema(t reflect.Type, seen map[reflect.Type]bool) map[string]any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string"}
		}
		return map[string]any{"type": "array", "items": typeSchema(t.Elem(), seen)}
	case reflect.Map, reflect.Interface:
		return map[string]any{"type": "object"}
	case reflect.Struct:
		if t == timeType {
			return map[string]any{"type": "string", "format": "date-time"}
		}
		return structSchema(t, seen)
	default:
		return map[string]any{"type": "string"}
	}
}

// propertyName resolves the JSON property name of f. ok is false for fields
// tagged json:"-".
func propertyName(f reflect.StructField) (name string, optional, ok bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}

	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}

	optional = slices.ContainsFunc(strings.Split(opts, ","), func(o string) bool {
		return strings.TrimSpace(o) == "omitempty"
	})

	return name, optional, true
}

func objectSchema(props map[string]any, required []any) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

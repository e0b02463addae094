// Package arrays holds the array shape conversions the write path needs:
// boxing arbitrary arrays into []any for driver array creation and unboxing
// pointer-boxed byte slices into their primitive form.
package arrays

import (
	"fmt"
	"reflect"
)

// Box converts any array or slice value into a []any, one element per entry.
// A single reflection loop covers every element kind; no per-primitive
// branching is needed.
func Box(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("arrays: %T is not an array or slice", v)
	}
	boxed := make([]any, rv.Len())
	for i := range boxed {
		boxed[i] = rv.Index(i).Interface()
	}
	return boxed, nil
}

// UnboxBytes converts a pointer-boxed byte slice into its primitive form.
// Nil elements have no binary representation and are rejected.
func UnboxBytes(v []*byte) ([]byte, error) {
	out := make([]byte, len(v))
	for i, b := range v {
		if b == nil {
			return nil, fmt.Errorf("arrays: nil element at index %d cannot be written as a byte", i)
		}
		out[i] = *b
	}
	return out, nil
}

// ComponentType descends through nested slice/array element types and
// returns the innermost component, flattening multi-dimensional shapes.
// Byte slices are treated as terminal binary values.
func ComponentType(t reflect.Type) reflect.Type {
	for (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() != reflect.Uint8 {
		t = t.Elem()
	}
	return t
}

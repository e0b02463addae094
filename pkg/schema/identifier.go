package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// IdentifierPart is one column of an Identifier: the column name, the key
// value to filter by, and the value's declared Go type.
type IdentifierPart struct {
	Column string
	Value  any
	Type   reflect.Type
}

// Identifier is an ordered mapping from column name to key value, used to
// filter the rows of a child table by its parent's key(s). Identifiers are
// immutable; WithPart returns a grown copy.
type Identifier struct {
	parts []IdentifierPart
}

// EmptyIdentifier returns the identifier with no parts.
func EmptyIdentifier() Identifier {
	return Identifier{}
}

// WithPart returns a new Identifier with the given column appended. A
// column already present keeps its position and takes the new value. Nil
// values are never added; the receiver is returned unchanged.
func (i Identifier) WithPart(column string, value any, typ reflect.Type) Identifier {
	if value == nil {
		return i
	}
	for idx, part := range i.parts {
		if part.Column == column {
			parts := make([]IdentifierPart, len(i.parts))
			copy(parts, i.parts)
			parts[idx] = IdentifierPart{Column: column, Value: value, Type: typ}
			return Identifier{parts: parts}
		}
	}
	parts := make([]IdentifierPart, len(i.parts), len(i.parts)+1)
	copy(parts, i.parts)
	return Identifier{parts: append(parts, IdentifierPart{Column: column, Value: value, Type: typ})}
}

// Parts returns the identifier's columns in insertion order. The returned
// slice must not be mutated.
func (i Identifier) Parts() []IdentifierPart {
	return i.parts
}

// Size returns the number of columns.
func (i Identifier) Size() int {
	return len(i.parts)
}

// ValueOf returns the value recorded for the given column.
func (i Identifier) ValueOf(column string) (any, bool) {
	for _, part := range i.parts {
		if part.Column == column {
			return part.Value, true
		}
	}
	return nil, false
}

func (i Identifier) String() string {
	cols := make([]string, len(i.parts))
	for idx, part := range i.parts {
		cols[idx] = fmt.Sprintf("%s=%v", part.Column, part.Value)
	}
	return "Identifier(" + strings.Join(cols, ", ") + ")"
}

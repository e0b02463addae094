package relmap

import (
	"github.com/ghgh415263/relmap/pkg/schema"
)

// RelationResolver fetches the child rows of a nested collection, map or
// child-table entity. Implementations typically issue one SELECT against the
// child table, filtered by the identifier's back-reference columns, and
// return elements already converted to the path's leaf entity type.
//
// For map- and index-qualified properties, elements are MapEntry values
// carrying the key or index column alongside the converted element.
// Ordering is resolver-defined and preserved by the conversion engine.
type RelationResolver interface {
	FindAllByPath(identifier schema.Identifier, path *schema.AggregatePath) ([]any, error)
}

// MapEntry pairs a child row's key or index qualifier with its converted
// value.
type MapEntry struct {
	Key   any
	Value any
}

// Package ref provides typed references between aggregates.
//
// An AggregateReference holds only the identifier of the referenced
// aggregate. It is the mapped representation of a foreign key column: reading
// a row materializes the reference from the raw key value without touching
// the referenced table, and writing unwraps it back to the raw key.
package ref

import "fmt"

// Reference is the type-argument-free view of an AggregateReference. The
// conversion engine uses it to detect and unwrap references without knowing
// their concrete type parameters.
type Reference interface {
	// RawID returns the referenced aggregate's identifier as an untyped value.
	RawID() any
}

// AggregateReference points to the aggregate of type T whose identifier is of
// type ID. Only the identifier is held; the referenced aggregate is never
// loaded through it.
//
// The ID field is exported so the mapping layer can populate references via
// reflection. Application code should treat it as read-only and use Get.
type AggregateReference[T any, ID comparable] struct {
	ID ID
}

// To creates a reference to the aggregate identified by id.
func To[T any, ID comparable](id ID) AggregateReference[T, ID] {
	return AggregateReference[T, ID]{ID: id}
}

// Get returns the referenced aggregate's identifier.
func (r AggregateReference[T, ID]) Get() ID {
	return r.ID
}

// RawID implements Reference.
func (r AggregateReference[T, ID]) RawID() any {
	return r.ID
}

func (r AggregateReference[T, ID]) String() string {
	return fmt.Sprintf("AggregateReference(%v)", r.ID)
}

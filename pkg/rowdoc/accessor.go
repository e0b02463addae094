package rowdoc

import (
	"github.com/ghgh415263/relmap/pkg/schema"
)

// Accessor couples a RowDocument with the entity metadata it was retrieved
// for, exposing property-addressed access to the raw column values.
type Accessor struct {
	entity *schema.Entity
	doc    RowDocument
}

// NewAccessor creates an accessor for doc, interpreted as a row of entity.
func NewAccessor(entity *schema.Entity, doc RowDocument) Accessor {
	return Accessor{entity: entity, doc: doc}
}

// Entity returns the entity the document belongs to.
func (a Accessor) Entity() *schema.Entity { return a.entity }

// Document returns the wrapped RowDocument.
func (a Accessor) Document() RowDocument { return a.doc }

// Get returns the raw value of the property's column.
func (a Accessor) Get(p *schema.Property) (any, bool) {
	return a.doc.Get(p.Column())
}

// HasValue reports whether the property's column carries a non-nil value.
func (a Accessor) HasValue(p *schema.Property) bool {
	return a.doc.HasNonNil(p.Column())
}

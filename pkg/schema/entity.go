package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// TableNamer lets a mapped struct override its derived table name.
type TableNamer interface {
	TableName() string
}

// Entity is the mapping metadata for one persistent struct type: its table
// name, its mapped properties in declaration order and, when present, its
// identifier property.
type Entity struct {
	typ        reflect.Type
	table      string
	properties []*Property
	byName     map[string]*Property
	idProperty *Property
}

// Type returns the mapped struct type.
func (e *Entity) Type() reflect.Type { return e.typ }

// Table returns the table name the entity maps to.
func (e *Entity) Table() string { return e.table }

// Properties returns the mapped properties in struct declaration order.
func (e *Entity) Properties() []*Property { return e.properties }

// Property looks up a mapped property by field name.
func (e *Entity) Property(name string) (*Property, bool) {
	p, ok := e.byName[name]
	return p, ok
}

// HasIDProperty reports whether the entity declares an identifier property.
func (e *Entity) HasIDProperty() bool { return e.idProperty != nil }

// IDProperty returns the identifier property, if any.
func (e *Entity) IDProperty() (*Property, bool) {
	return e.idProperty, e.idProperty != nil
}

// RequiredIDProperty returns the identifier property or an error when the
// entity does not declare one.
func (e *Entity) RequiredIDProperty() (*Property, error) {
	if e.idProperty == nil {
		return nil, fmt.Errorf("%w: entity %s", ErrNoIdentifier, e.typ)
	}
	return e.idProperty, nil
}

func (e *Entity) String() string {
	return fmt.Sprintf("Entity(%s -> %s)", e.typ, e.table)
}

// Property is the mapping metadata for a single struct field: its column
// name, its shape (simple value, nested entity, collection, map, reference)
// and its place inside the owning struct.
type Property struct {
	owner  *Entity
	name   string
	column string
	index  []int
	typ    reflect.Type

	// actualType is the element type for collections and maps, and the
	// pointer-free type otherwise.
	actualType reflect.Type

	keyColumn     string
	backRefColumn string

	isID          bool
	isEntity      bool
	isCollection  bool
	isMap         bool
	isAssociation bool
	embedded      bool
	viaResolver   bool
}

// Owner returns the entity declaring the property.
func (p *Property) Owner() *Entity { return p.owner }

// Name returns the struct field name.
func (p *Property) Name() string { return p.name }

// Column returns the mapped column name.
func (p *Property) Column() string { return p.column }

// FieldIndex returns the reflect field index path, including steps through
// flattened anonymous structs.
func (p *Property) FieldIndex() []int { return p.index }

// Type returns the declared field type.
func (p *Property) Type() reflect.Type { return p.typ }

// ActualType returns the element type for collections and maps, and the
// pointer-free declared type otherwise.
func (p *Property) ActualType() reflect.Type { return p.actualType }

// IsID reports whether the property is its owner's identifier.
func (p *Property) IsID() bool { return p.isID }

// IsEntity reports whether the property's actual type is itself a mapped
// entity rather than a simple column value.
func (p *Property) IsEntity() bool { return p.isEntity }

// IsCollection reports whether the property is slice- or array-shaped.
// Byte slices are column values, not collections.
func (p *Property) IsCollection() bool { return p.isCollection }

// IsMap reports whether the property is map-shaped.
func (p *Property) IsMap() bool { return p.isMap }

// IsAssociation reports whether the property is an aggregate reference,
// holding only the key of another aggregate.
func (p *Property) IsAssociation() bool { return p.isAssociation }

// IsQualified reports whether child rows for this property carry a key or
// index column qualifying each element. Collections of simple values are
// array columns and therefore not qualified.
func (p *Property) IsQualified() bool {
	return p.isMap || (p.isCollection && p.isEntity)
}

// IsEmbedded reports whether the property's entity columns are flattened
// into the owner's row instead of living in their own table.
func (p *Property) IsEmbedded() bool { return p.embedded }

// ResolvesViaRelation reports whether the property is loaded through the
// relation resolver: collections, maps, and to-one relations explicitly
// stored in a child table.
func (p *Property) ResolvesViaRelation() bool {
	return p.viaResolver || p.isMap || (p.isCollection && p.isEntity)
}

// KeyColumn returns the column qualifying elements of keyed or indexed child
// tables.
func (p *Property) KeyColumn() string {
	if p.keyColumn != "" {
		return p.keyColumn
	}
	return p.column + "_key"
}

func (p *Property) String() string {
	return fmt.Sprintf("%s.%s", p.owner.typ.Name(), p.name)
}

// snakeCase derives a column or table name from a Go identifier:
// "OrderLine" becomes "order_line", "CustomerID" becomes "customer_id".
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && isLowerAlnum(runes[i-1])
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Package schema holds the mapping metadata for persistent structs: entities,
// their properties, aggregate paths through nested entities, and the
// identifiers used to filter child tables.
//
// Metadata is derived by reflection over struct fields and their `db` tags:
//
//	type Order struct {
//	    ID       int64       `db:"id,id"`
//	    Note     string      // column "note"
//	    Address  Address     `db:",embedded"`      // columns in the same row
//	    Customer ref.AggregateReference[Customer, int64] `db:"customer"`
//	    Lines    []OrderLine // child table, resolved through the relation resolver
//	    Extra    Attachment  `db:",resolve"`       // to-one child table
//	    Skipped  string      `db:"-"`
//	}
//
// Tag options: "id" marks the identifier property, "embedded" flattens a
// nested entity into the owner's row, "resolve" forces a to-one relation
// through the relation resolver, "key=col" overrides the key/index column of
// keyed child tables and "backref=col" overrides the back-reference column.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/ghgh415263/relmap/pkg/ref"
)

// ErrNoIdentifier indicates an entity is missing the identifier property an
// operation requires. An aggregate root without an identifier is a mapping
// configuration error.
var ErrNoIdentifier = errors.New("schema: no identifier property")

// ErrNotAnEntity indicates a type that cannot be mapped as a persistent
// entity, such as a simple column type or a non-struct.
var ErrNotAnEntity = errors.New("schema: not a persistent entity")

// ErrCyclicMapping indicates an entity type that reaches itself through
// nested entities, collections or maps. Aggregates are finite trees; links
// between aggregates of the same type are modeled with references.
var ErrCyclicMapping = errors.New("schema: cyclic entity mapping")

const tagKey = "db"

var (
	timeType      = reflect.TypeOf(time.Time{})
	uuidType      = reflect.TypeOf(uuid.UUID{})
	byteSliceType = reflect.TypeOf([]byte(nil))
	referenceType = reflect.TypeOf((*ref.Reference)(nil)).Elem()
)

// MappingContext derives and caches entity metadata. It is safe for
// concurrent use; parsed entities are immutable once published.
type MappingContext struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
	isSimple func(reflect.Type) bool
}

// ContextOption configures a MappingContext.
type ContextOption func(*MappingContext)

// WithSimpleTypeCheck replaces the default notion of which types map to a
// single column. The default covers Go's scalar kinds, string, []byte,
// time.Time, time.Duration and uuid.UUID.
func WithSimpleTypeCheck(fn func(reflect.Type) bool) ContextOption {
	return func(c *MappingContext) { c.isSimple = fn }
}

// NewMappingContext creates an empty mapping context.
func NewMappingContext(opts ...ContextOption) *MappingContext {
	c := &MappingContext{
		entities: make(map[reflect.Type]*Entity),
		isSimple: IsSimpleType,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSimpleType is the default single-column type check.
func IsSimpleType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t {
	case timeType, uuidType, byteSliceType:
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	}
	return false
}

// IsSimple reports whether t maps to a single column under this context's
// configuration.
func (c *MappingContext) IsSimple(t reflect.Type) bool {
	return c.isSimple(t)
}

// GetPersistentEntity returns the entity metadata for t, deriving it on first
// use. It returns false for types that do not map to an entity.
func (c *MappingContext) GetPersistentEntity(t reflect.Type) (*Entity, bool) {
	e, err := c.GetRequiredPersistentEntity(t)
	if err != nil {
		return nil, false
	}
	return e, true
}

// GetRequiredPersistentEntity returns the entity metadata for t or an error
// when t cannot be mapped.
func (c *MappingContext) GetRequiredPersistentEntity(t reflect.Type) (*Entity, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || c.isSimple(t) || t.Implements(referenceType) {
		return nil, fmt.Errorf("%w: %s", ErrNotAnEntity, t)
	}

	c.mu.RLock()
	e, ok := c.entities[t]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := c.parseEntity(t)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.entities[t]; ok {
		return cached, nil
	}
	c.entities[t] = e
	return e, nil
}

// GetAggregatePath returns the root aggregate path for e.
func (c *MappingContext) GetAggregatePath(e *Entity) *AggregatePath {
	return &AggregatePath{ctx: c, entity: e, root: e}
}

func (c *MappingContext) parseEntity(t reflect.Type) (*Entity, error) {
	if err := c.checkEntityCycle(t, nil); err != nil {
		return nil, err
	}
	e := &Entity{
		typ:    t,
		table:  tableName(t),
		byName: make(map[string]*Property),
	}
	if err := c.parseFields(e, t, nil); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *MappingContext) parseFields(e *Entity, t reflect.Type, indexPrefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag, opts := splitTag(field.Tag.Get(tagKey))
		if tag == "-" {
			continue
		}

		index := append(append([]int(nil), indexPrefix...), i)

		// Untagged anonymous structs flatten into the owner.
		if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Tag.Get(tagKey) == "" {
			if err := c.parseFields(e, field.Type, index); err != nil {
				return err
			}
			continue
		}

		p, err := c.parseProperty(e, field, tag, opts, index)
		if err != nil {
			return err
		}

		if p.isID {
			if e.idProperty != nil {
				return fmt.Errorf("schema: entity %s declares more than one identifier property (%s, %s)",
					t, e.idProperty.name, p.name)
			}
			e.idProperty = p
		}

		e.properties = append(e.properties, p)
		e.byName[p.name] = p
	}
	return nil
}

func (c *MappingContext) parseProperty(e *Entity, field reflect.StructField, tag string, opts map[string]string, index []int) (*Property, error) {
	p := &Property{
		owner:  e,
		name:   field.Name,
		column: tag,
		index:  index,
		typ:    field.Type,
	}
	if p.column == "" {
		p.column = snakeCase(field.Name)
	}

	for opt, val := range opts {
		switch opt {
		case "id":
			p.isID = true
		case "embedded":
			p.embedded = true
		case "resolve":
			p.viaResolver = true
		case "key":
			p.keyColumn = val
		case "backref":
			p.backRefColumn = val
		default:
			return nil, fmt.Errorf("schema: unknown tag option %q on %s.%s", opt, e.typ, field.Name)
		}
	}

	t := field.Type
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch {
	case t.Implements(referenceType):
		p.isAssociation = true
		p.actualType = t
	case c.isSimple(t):
		p.actualType = t
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		p.isCollection = true
		p.actualType = deref(t.Elem())
		p.isEntity = c.isEntityType(p.actualType)
	case t.Kind() == reflect.Map:
		p.isMap = true
		p.actualType = deref(t.Elem())
		p.isEntity = c.isEntityType(p.actualType)
	case t.Kind() == reflect.Struct:
		p.isEntity = true
		p.actualType = t
	default:
		// Anything else (chan, func, interface) cannot be mapped.
		return nil, fmt.Errorf("schema: unsupported property type %s for %s.%s", field.Type, e.typ, field.Name)
	}

	if p.viaResolver && !p.isEntity {
		return nil, fmt.Errorf("schema: tag option \"resolve\" on non-entity property %s.%s", e.typ, field.Name)
	}
	if p.embedded && !p.isEntity {
		return nil, fmt.Errorf("schema: tag option \"embedded\" on non-entity property %s.%s", e.typ, field.Name)
	}

	return p, nil
}

// checkEntityCycle rejects entity types that reach themselves through
// nested entities. A repetition would make reads unbounded, whether it
// shows up inside one document or across relation resolver round trips.
// References are exempt: they hold only the key of the target aggregate.
func (c *MappingContext) checkEntityCycle(t reflect.Type, stack []reflect.Type) error {
	for _, seen := range stack {
		if seen == t {
			return fmt.Errorf("%w: %s reaches itself", ErrCyclicMapping, t)
		}
	}
	stack = append(stack, t)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if tag, _ := splitTag(field.Tag.Get(tagKey)); tag == "-" {
			continue
		}
		nested := deref(field.Type)
		if nested.Kind() == reflect.Slice || nested.Kind() == reflect.Map {
			nested = deref(nested.Elem())
		}
		if !c.isEntityType(nested) {
			continue
		}
		if err := c.checkEntityCycle(nested, stack); err != nil {
			return err
		}
	}
	return nil
}

func (c *MappingContext) isEntityType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && !c.isSimple(t) && !t.Implements(referenceType)
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func tableName(t reflect.Type) string {
	if t.Implements(reflect.TypeOf((*TableNamer)(nil)).Elem()) {
		return reflect.New(t).Elem().Interface().(TableNamer).TableName()
	}
	return snakeCase(t.Name())
}

// splitTag separates the column name from its options. Options are either
// bare flags ("id") or key=value pairs ("key=position").
func splitTag(tag string) (string, map[string]string) {
	if tag == "" {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	if len(parts) == 1 {
		return parts[0], nil
	}
	opts := make(map[string]string, len(parts)-1)
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			opts[k] = v
		} else {
			opts[part] = ""
		}
	}
	return parts[0], opts
}

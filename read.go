package relmap

import (
	"fmt"
	"reflect"

	"github.com/gofrs/uuid"

	"github.com/ghgh415263/relmap/pkg/ref"
	"github.com/ghgh415263/relmap/pkg/rowdoc"
	"github.com/ghgh415263/relmap/pkg/schema"
)

// ReadAndResolve materializes an aggregate of type t from doc. The base
// identifier carries key columns of ancestor rows when doc is itself a child
// row fetched by a relation resolver; top-level reads pass an empty
// identifier.
func (c *Converter) ReadAndResolve(t reflect.Type, doc rowdoc.RowDocument, base schema.Identifier) (any, error) {
	entity, err := c.ctx.GetRequiredPersistentEntity(t)
	if err != nil {
		return nil, err
	}

	path := c.ctx.GetAggregatePath(entity)
	identifier := appendIdentifier(base, entity, func(idProp *schema.Property) any {
		v, _ := doc.Get(idProp.Column())
		return v
	})

	ctx := conversionContext{
		path:       path,
		identifier: identifier,
		root:       doc,
		resolving:  true,
	}

	c.log.Debug("reading aggregate", "entity", entity.Table(), "identifier", identifier.String())

	result, err := c.readAggregate(ctx, rowdoc.NewAccessor(entity, doc))
	if err != nil {
		return nil, err
	}
	return result.Interface(), nil
}

// appendIdentifier adds the entity's id column to base when the entity
// declares an identifier and the getter yields a non-nil value.
func appendIdentifier(base schema.Identifier, entity *schema.Entity, getter func(*schema.Property) any) schema.Identifier {
	idProp, ok := entity.IDProperty()
	if !ok {
		return base
	}
	value := getter(idProp)
	if value == nil {
		return base
	}
	return base.WithPart(idProp.Column(), value, idProp.ActualType())
}

// readAggregate materializes one entity from the accessor's document,
// recursing into nested entities and delegating relation-backed properties
// to the resolver.
func (c *Converter) readAggregate(ctx conversionContext, accessor rowdoc.Accessor) (reflect.Value, error) {
	entity := accessor.Entity()

	ctx, err := ctx.entering(entity)
	if err != nil {
		return reflect.Value{}, err
	}
	ctx = ctx.withIdentifier(appendIdentifier(ctx.identifier, entity, func(idProp *schema.Property) any {
		v, _ := accessor.Get(idProp)
		return v
	}))

	obj := reflect.New(entity.Type()).Elem()

	for _, prop := range entity.Properties() {
		value, ok, err := c.readProperty(ctx.forProperty(prop), accessor, prop)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("reading %s: %w", prop, err)
		}
		if !ok {
			continue
		}
		if err := setField(obj.FieldByIndex(prop.FieldIndex()), value); err != nil {
			return reflect.Value{}, fmt.Errorf("reading %s: %w", prop, err)
		}
	}

	return obj, nil
}

// readProperty produces the value for a single property. The bool result
// reports presence; absent properties keep their zero value.
func (c *Converter) readProperty(ctx conversionContext, accessor rowdoc.Accessor, prop *schema.Property) (any, bool, error) {
	switch {
	case ctx.resolving && prop.ResolvesViaRelation():
		return c.readRelation(ctx, prop)

	case prop.IsEntity() && !prop.IsCollection() && !prop.IsMap():
		if !c.hasValue(ctx, accessor, prop) {
			return nil, false, nil
		}
		leaf, err := ctx.path.RequiredLeafEntity()
		if err != nil {
			return nil, false, err
		}
		sub := accessor.Document()
		if !prop.IsEmbedded() {
			nested, ok := accessor.Document().Subdocument(prop.Column())
			if !ok {
				return nil, false, nil
			}
			sub = nested
		}
		value, err := c.readAggregate(ctx, rowdoc.NewAccessor(leaf, sub))
		if err != nil {
			return nil, false, err
		}
		return value.Interface(), true, nil

	default:
		raw, ok := accessor.Get(prop)
		if !ok || raw == nil {
			return nil, false, nil
		}
		value, err := c.ReadValue(raw, prop.Type())
		if err != nil {
			return nil, false, err
		}
		return value, value != nil, nil
	}
}

// readRelation fetches and shapes the child rows of a collection, map or
// child-table to-one property. Absence of child rows is a normal outcome:
// collections stay empty and to-one relations stay nil.
func (c *Converter) readRelation(ctx conversionContext, prop *schema.Property) (any, bool, error) {
	identifier, err := c.backReferenceIdentifier(ctx)
	if err != nil {
		return nil, false, err
	}

	c.log.Debug("resolving relation", "path", ctx.path.String(), "identifier", identifier.String())

	elements, err := c.resolver.FindAllByPath(identifier, ctx.path)
	if err != nil {
		return nil, false, err
	}

	switch {
	case prop.IsCollection():
		value, err := c.shapeSlice(elements, prop.Type())
		return value, err == nil, err
	case prop.IsMap():
		value, err := c.shapeMap(elements, prop.Type())
		return value, err == nil, err
	default:
		if len(elements) == 0 {
			return nil, false, nil
		}
		return elements[0], true, nil
	}
}

// backReferenceIdentifier computes the child-table filter for the relation
// at ctx.path: the back-reference column(s) mapped to the id-defining
// parent's key value(s). The key value is read off the originating document
// where possible and falls back to the identifier accumulated during
// descent.
func (c *Converter) backReferenceIdentifier(ctx conversionContext) (schema.Identifier, error) {
	parentPath, err := ctx.path.IDDefiningParentPath()
	if err != nil {
		return schema.Identifier{}, err
	}
	parent, err := parentPath.RequiredLeafEntity()
	if err != nil {
		return schema.Identifier{}, err
	}
	idProp, err := parent.RequiredIDProperty()
	if err != nil {
		return schema.Identifier{}, err
	}
	reverse, err := ctx.path.ReverseColumn()
	if err != nil {
		return schema.Identifier{}, err
	}

	if !idProp.IsEntity() {
		value := c.documentValue(ctx.root, parentPath.Append(idProp))
		if value == nil {
			value, _ = ctx.identifier.ValueOf(idProp.Column())
		}
		if value == nil {
			return schema.Identifier{}, fmt.Errorf("%w: no key value for %s while resolving %s",
				schema.ErrNoIdentifier, parent.Type(), ctx.path)
		}
		return schema.EmptyIdentifier().WithPart(reverse, value, idProp.ActualType()), nil
	}

	// Composite key: the id is itself an entity. One identifier part per id
	// sub-column, each located by reconciling the sub-path captured at the
	// id entity onto the id-defining parent path.
	idEntity, err := c.ctx.GetRequiredPersistentEntity(idProp.ActualType())
	if err != nil {
		return schema.Identifier{}, err
	}
	idPath := parentPath.Append(idProp)

	identifier := schema.EmptyIdentifier()
	for _, sub := range idEntity.Properties() {
		subPath := c.ctx.GetAggregatePath(idEntity).Append(sub)
		full, err := schema.SmartAppend(idPath, subPath)
		if err != nil {
			return schema.Identifier{}, err
		}
		value := c.documentValue(ctx.root, full)
		if value == nil {
			return schema.Identifier{}, fmt.Errorf("%w: no key value for %s.%s while resolving %s",
				schema.ErrNoIdentifier, parent.Type(), sub.Name(), ctx.path)
		}
		identifier = identifier.WithPart(reverse+"_"+sub.Column(), value, sub.ActualType())
	}
	return identifier, nil
}

// documentValue reads the raw value at path from the document the current
// read started from, descending through joined sub-documents. Columns that
// live in other tables yield nil.
func (c *Converter) documentValue(doc rowdoc.RowDocument, path *schema.AggregatePath) any {
	steps := path.Steps()
	if len(steps) == 0 || doc == nil {
		return nil
	}
	for _, step := range steps[:len(steps)-1] {
		if step.IsEmbedded() {
			continue
		}
		if !step.IsEntity() || step.ResolvesViaRelation() {
			return nil
		}
		sub, ok := doc.Subdocument(step.Column())
		if !ok {
			return nil
		}
		doc = sub
	}
	v, _ := doc.Get(steps[len(steps)-1].Column())
	return v
}

// hasValue implements the presence test: relation-backed properties are
// always present (absence is only observable by querying the child table),
// nested entities are present when their id column or back-reference column
// is non-nil, and plain properties are present when their column is non-nil.
func (c *Converter) hasValue(ctx conversionContext, accessor rowdoc.Accessor, prop *schema.Property) bool {
	if prop.ResolvesViaRelation() {
		return true
	}

	if prop.IsEntity() {
		return c.hasEntityValue(ctx, accessor, prop)
	}

	return accessor.HasValue(prop)
}

// hasNonEmptyValue differs from hasValue only for plain direct properties:
// empty strings and zero-length byte slices count as absent.
func (c *Converter) hasNonEmptyValue(ctx conversionContext, accessor rowdoc.Accessor, prop *schema.Property) bool {
	if prop.ResolvesViaRelation() {
		return true
	}

	if prop.IsEntity() {
		return c.hasEntityValue(ctx, accessor, prop)
	}

	raw, ok := accessor.Get(prop)
	if !ok || raw == nil {
		return false
	}
	switch v := raw.(type) {
	case string:
		return v != ""
	case []byte:
		return len(v) > 0
	}
	return true
}

func (c *Converter) hasEntityValue(ctx conversionContext, accessor rowdoc.Accessor, prop *schema.Property) bool {
	entity, ok := c.ctx.GetPersistentEntity(prop.ActualType())
	if !ok {
		return false
	}

	doc := accessor.Document()
	if !prop.IsEmbedded() {
		sub, ok := doc.Subdocument(prop.Column())
		if !ok {
			return false
		}
		doc = sub
	}

	if idProp, ok := entity.IDProperty(); ok {
		return doc.HasNonNil(idProp.Column())
	}

	if !prop.IsEmbedded() {
		if reverse, err := ctx.path.ReverseColumn(); err == nil {
			return doc.HasNonNil(reverse)
		}
	}

	// No identifier to probe: present iff any mapped column carries a value.
	for _, p := range entity.Properties() {
		if doc.HasNonNil(p.Column()) {
			return true
		}
	}
	return false
}

// shapeSlice converts resolver output into the property's declared slice
// type, preserving resolver order.
func (c *Converter) shapeSlice(elements []any, target reflect.Type) (any, error) {
	t := target
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Slice {
		return nil, fmt.Errorf("relmap: cannot shape relation result into %s", target)
	}
	out := reflect.MakeSlice(t, 0, len(elements))
	for _, elem := range elements {
		if entry, ok := elem.(MapEntry); ok {
			elem = entry.Value
		}
		ev, err := c.coerce(elem, t.Elem())
		if err != nil {
			return nil, err
		}
		out = reflect.Append(out, ev)
	}
	return out.Interface(), nil
}

// shapeMap converts resolver output pairs into the property's declared map
// type. Later duplicate keys overwrite earlier ones, in resolver order.
func (c *Converter) shapeMap(elements []any, target reflect.Type) (any, error) {
	t := target
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Map {
		return nil, fmt.Errorf("relmap: cannot shape relation result into %s", target)
	}
	out := reflect.MakeMapWithSize(t, len(elements))
	for _, elem := range elements {
		entry, ok := elem.(MapEntry)
		if !ok {
			return nil, fmt.Errorf("relmap: map-shaped relation returned %T, want MapEntry", elem)
		}
		key, err := c.convertSimple(entry.Key, t.Key())
		if err != nil {
			return nil, fmt.Errorf("converting map key %v: %w", entry.Key, err)
		}
		value, err := c.coerce(entry.Value, t.Elem())
		if err != nil {
			return nil, err
		}
		out.SetMapIndex(reflect.ValueOf(key), value)
	}
	return out.Interface(), nil
}

// coerce adapts an already-converted element to the declared element type,
// allowing pointer wrapping but no further conversion.
func (c *Converter) coerce(elem any, target reflect.Type) (reflect.Value, error) {
	if elem == nil {
		return reflect.Zero(target), nil
	}
	ev := reflect.ValueOf(elem)
	if ev.Type().AssignableTo(target) {
		return ev, nil
	}
	if target.Kind() == reflect.Ptr && ev.Type().AssignableTo(target.Elem()) {
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(ev)
		return ptr, nil
	}
	converted, err := c.convertSimple(elem, target)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("relmap: relation element %T does not fit %s: %w", elem, target, err)
	}
	return reflect.ValueOf(converted), nil
}

// ReadValue converts a single raw driver value to the target type,
// unwrapping driver array handles and reconstructing aggregate references
// from their key value.
func (c *Converter) ReadValue(value any, target reflect.Type) (any, error) {
	if value == nil {
		return nil, nil
	}

	if arr, ok := value.(SQLArray); ok {
		unwrapped, err := arr.Array()
		if err != nil {
			return nil, c.translateError("Array.Array()", "", err)
		}
		value = unwrapped
	}

	t := target
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Implements(referenceType) {
		return c.readReference(value, target, t)
	}

	return c.convertSimple(value, target)
}

// readReference rebuilds an AggregateReference from a raw key value. Only
// the key is converted; the referenced aggregate is never loaded.
func (c *Converter) readReference(value any, target, refType reflect.Type) (any, error) {
	if r, ok := value.(ref.Reference); ok {
		value = r.RawID()
	}

	idField, ok := refType.FieldByName("ID")
	if !ok {
		return nil, fmt.Errorf("relmap: reference type %s has no ID field", refType)
	}
	id, err := c.convertSimple(value, idField.Type)
	if err != nil {
		return nil, fmt.Errorf("converting reference id: %w", err)
	}

	out := reflect.New(refType).Elem()
	out.FieldByIndex(idField.Index).Set(reflect.ValueOf(id))

	if target.Kind() == reflect.Ptr {
		ptr := reflect.New(refType)
		ptr.Elem().Set(out)
		return ptr.Interface(), nil
	}
	return out.Interface(), nil
}

// convertSimple converts a raw value into the target simple type: custom
// conversions first, then assignment, then the narrow set of representation
// conversions drivers force on us (integer widths, []byte-backed strings and
// UUIDs, numeric bools, element-wise slices).
func (c *Converter) convertSimple(value any, target reflect.Type) (any, error) {
	if value == nil {
		return nil, nil
	}

	if fn, ok := c.conversions.reader(target); ok {
		return fn(value)
	}

	if target.Kind() == reflect.Ptr {
		inner, err := c.convertSimple(value, target.Elem())
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(target.Elem())
		if inner != nil {
			ptr.Elem().Set(reflect.ValueOf(inner))
		}
		return ptr.Interface(), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return value, nil
	}

	switch target {
	case reflect.TypeOf(uuid.UUID{}):
		switch v := value.(type) {
		case string:
			id, err := uuid.FromString(v)
			if err != nil {
				return nil, fmt.Errorf("relmap: %q is not a UUID: %w", v, err)
			}
			return id, nil
		case []byte:
			id, err := uuid.FromBytes(v)
			if err != nil {
				return nil, fmt.Errorf("relmap: %d bytes do not form a UUID: %w", len(v), err)
			}
			return id, nil
		}
	}

	switch target.Kind() {
	case reflect.String:
		if b, ok := value.([]byte); ok {
			return string(b), nil
		}
	case reflect.Bool:
		if isNumericKind(rv.Kind()) {
			return rv.Convert(reflect.TypeOf(int64(0))).Int() != 0, nil
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return c.convertSlice(rv, target)
		}
	}

	if isNumericKind(rv.Kind()) && isNumericKind(target.Kind()) {
		return rv.Convert(target).Interface(), nil
	}
	if rv.Kind() == reflect.Bool && isNumericKind(target.Kind()) {
		n := int64(0)
		if rv.Bool() {
			n = 1
		}
		return reflect.ValueOf(n).Convert(target).Interface(), nil
	}

	return nil, fmt.Errorf("relmap: cannot convert %T to %s", value, target)
}

func (c *Converter) convertSlice(rv reflect.Value, target reflect.Type) (any, error) {
	if target.Kind() != reflect.Slice {
		return nil, fmt.Errorf("relmap: cannot convert %s to %s", rv.Type(), target)
	}
	out := reflect.MakeSlice(target, rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		converted, err := c.convertSimple(elem, target.Elem())
		if err != nil {
			return nil, fmt.Errorf("converting element %d: %w", i, err)
		}
		if converted != nil {
			out.Index(i).Set(reflect.ValueOf(converted))
		}
	}
	return out.Interface(), nil
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// setField assigns a converted value into a struct field, allocating through
// pointer fields as needed.
func setField(field reflect.Value, value any) error {
	if value == nil {
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(field.Type()) {
		field.Set(v)
		return nil
	}
	if field.Kind() == reflect.Ptr && v.Type().AssignableTo(field.Type().Elem()) {
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(v)
		field.Set(ptr)
		return nil
	}
	return fmt.Errorf("relmap: cannot assign %T to field of type %s", value, field.Type())
}

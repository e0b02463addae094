package relmap

import (
	"fmt"
	"reflect"

	"github.com/gofrs/uuid"

	"github.com/ghgh415263/relmap/internal/arrays"
	"github.com/ghgh415263/relmap/pkg/ref"
	"github.com/ghgh415263/relmap/pkg/schema"
)

// WriteValue converts a domain value into its database-writable form.
// Aggregate references are unwrapped to their key before conversion.
func (c *Converter) WriteValue(value any, target reflect.Type) (any, error) {
	if value == nil {
		return nil, nil
	}

	if r, ok := value.(ref.Reference); ok {
		return c.WriteValue(r.RawID(), target)
	}

	if fn, ok := c.conversions.writer(reflect.TypeOf(value)); ok {
		return fn(value)
	}

	switch v := value.(type) {
	case uuid.UUID:
		if target == nil || target.Kind() == reflect.String {
			return v.String(), nil
		}
	}

	if target == nil {
		return value, nil
	}

	rv := reflect.ValueOf(value)
	for target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	if rv.Type().AssignableTo(target) {
		return rv.Interface(), nil
	}
	if isNumericKind(rv.Kind()) && isNumericKind(target.Kind()) {
		return rv.Convert(target).Interface(), nil
	}
	if target.Kind() == reflect.String && rv.Kind() == reflect.String {
		return rv.Convert(target).Interface(), nil
	}

	return rv.Interface(), nil
}

// WriteDBValue converts a domain value into a Value envelope carrying its
// target SQL type: references unwrap to their key, existing envelopes pass
// through, byte arrays become BINARY payloads and every other array becomes
// an ARRAY payload built by the type factory.
func (c *Converter) WriteDBValue(value any, columnType reflect.Type, sqlType SQLType) (Value, error) {
	if r, ok := value.(ref.Reference); ok {
		return c.WriteDBValue(r.RawID(), columnType, sqlType)
	}

	if enveloped, ok := value.(Value); ok {
		return enveloped, nil
	}

	converted, err := c.WriteValue(value, columnType)
	if err != nil {
		return Value{}, err
	}
	if converted == nil {
		return ValueOf(nil, sqlType), nil
	}
	if enveloped, ok := converted.(Value); ok {
		return enveloped, nil
	}

	rv := reflect.ValueOf(converted)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return ValueOf(converted, sqlType), nil
	}

	elem := rv.Type().Elem()
	switch {
	case elem.Kind() == reflect.Uint8:
		return ValueOf(converted, SQLTypeBinary), nil

	case elem.Kind() == reflect.Ptr && elem.Elem().Kind() == reflect.Uint8:
		unboxed, err := arrays.UnboxBytes(converted.([]*byte))
		if err != nil {
			return Value{}, err
		}
		return ValueOf(unboxed, SQLTypeBinary), nil

	default:
		boxed, err := arrays.Box(converted)
		if err != nil {
			return Value{}, err
		}
		handle, err := c.typeFactory.CreateArray(boxed)
		if err != nil {
			return Value{}, err
		}
		return ValueOf(handle, SQLTypeArray), nil
	}
}

// ColumnType infers the Go type of the column a property maps to: the
// referenced entity's key type for associations, the own key type for
// entities, and an array of the flattened component type for scalar
// collections.
func (c *Converter) ColumnType(p *schema.Property) (reflect.Type, error) {
	if p.IsAssociation() {
		return c.referenceColumnType(p)
	}

	if p.IsEntity() {
		if t, err := c.entityColumnType(p.ActualType()); err != nil {
			return nil, err
		} else if t != nil {
			return t, nil
		}
	}

	component := arrays.ComponentType(c.resolvePrimitiveType(p.ActualType()))
	if !writableComponent(component) {
		return nil, fmt.Errorf("%w: %s (property %s)", ErrUnsupportedComponentType, component, p)
	}

	if p.IsCollection() && !p.IsEntity() {
		return reflect.SliceOf(component), nil
	}
	return component, nil
}

// referenceColumnType resolves an association's column type from the
// reference's declared key type, which by construction matches the
// referenced entity's identifier.
func (c *Converter) referenceColumnType(p *schema.Property) (reflect.Type, error) {
	idField, ok := p.ActualType().FieldByName("ID")
	if !ok {
		return nil, fmt.Errorf("relmap: reference type %s has no ID field", p.ActualType())
	}
	t := idField.Type
	if entityType, err := c.entityColumnType(t); err != nil {
		return nil, err
	} else if entityType != nil {
		return entityType, nil
	}
	return c.resolvePrimitiveType(t), nil
}

// entityColumnType returns the column type of an entity's identifier, nil
// when t is not an entity or declares no identifier.
func (c *Converter) entityColumnType(t reflect.Type) (reflect.Type, error) {
	entity, ok := c.ctx.GetPersistentEntity(t)
	if !ok {
		return nil, nil
	}
	idProp, ok := entity.IDProperty()
	if !ok {
		return nil, nil
	}
	return c.ColumnType(idProp)
}

// resolvePrimitiveType maps a Go type to the primitive type the driver binds
// it as, honoring registered custom write targets.
func (c *Converter) resolvePrimitiveType(t reflect.Type) reflect.Type {
	if target, ok := c.conversions.CustomWriteTarget(t); ok {
		return target
	}
	if t == reflect.TypeOf(uuid.UUID{}) {
		return reflect.TypeOf("")
	}
	return t
}

func writableComponent(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return false
	}
	return true
}

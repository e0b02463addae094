package relmap

import (
	"reflect"

	"github.com/ghgh415263/relmap/pkg/schema"
)

// ConvertFunc converts a single value. Read converters turn raw driver
// values into domain values; write converters do the reverse.
type ConvertFunc func(value any) (any, error)

// Conversions is the registry of custom per-type conversions plus the
// simple-type check metadata parsing relies on.
type Conversions struct {
	simple       map[reflect.Type]bool
	readers      map[reflect.Type]ConvertFunc
	writers      map[reflect.Type]ConvertFunc
	writeTargets map[reflect.Type]reflect.Type
}

// NewConversions creates an empty registry backed by the default simple-type
// check.
func NewConversions() *Conversions {
	return &Conversions{
		simple:       make(map[reflect.Type]bool),
		readers:      make(map[reflect.Type]ConvertFunc),
		writers:      make(map[reflect.Type]ConvertFunc),
		writeTargets: make(map[reflect.Type]reflect.Type),
	}
}

// RegisterReader installs a custom conversion producing values of target
// from raw driver values.
func (c *Conversions) RegisterReader(target reflect.Type, fn ConvertFunc) *Conversions {
	c.readers[target] = fn
	c.simple[target] = true
	return c
}

// RegisterWriter installs a custom conversion from values of source to
// database-writable values of target.
func (c *Conversions) RegisterWriter(source, target reflect.Type, fn ConvertFunc) *Conversions {
	c.writers[source] = fn
	c.writeTargets[source] = target
	c.simple[source] = true
	return c
}

// IsSimpleType reports whether t maps to a single column, either natively or
// through a registered conversion.
func (c *Conversions) IsSimpleType(t reflect.Type) bool {
	if c.simple[t] {
		return true
	}
	return schema.IsSimpleType(t)
}

// CustomWriteTarget returns the registered write target for t.
func (c *Conversions) CustomWriteTarget(t reflect.Type) (reflect.Type, bool) {
	target, ok := c.writeTargets[t]
	return target, ok
}

func (c *Conversions) reader(t reflect.Type) (ConvertFunc, bool) {
	fn, ok := c.readers[t]
	return fn, ok
}

func (c *Conversions) writer(t reflect.Type) (ConvertFunc, bool) {
	fn, ok := c.writers[t]
	return fn, ok
}

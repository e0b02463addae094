package relmap

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ghgh415263/relmap/pkg/logger"
	"github.com/ghgh415263/relmap/pkg/ref"
	"github.com/ghgh415263/relmap/pkg/rowdoc"
	"github.com/ghgh415263/relmap/pkg/schema"
)

var referenceType = reflect.TypeOf((*ref.Reference)(nil)).Elem()

// Converter converts between aggregates and relational rows. It is
// immutable after construction and safe for concurrent use when its
// collaborators are thread-safe.
type Converter struct {
	ctx         *schema.MappingContext
	conversions *Conversions
	resolver    RelationResolver
	typeFactory TypeFactory
	translator  ExceptionTranslator
	log         logger.Logger
}

// Option configures a Converter at construction time.
type Option func(*Converter)

// WithConversions installs a custom conversion registry.
func WithConversions(conv *Conversions) Option {
	return func(c *Converter) { c.conversions = conv }
}

// WithTypeFactory installs the factory used to build driver-native array
// handles. The default fails when arrays are written.
func WithTypeFactory(f TypeFactory) Option {
	return func(c *Converter) { c.typeFactory = f }
}

// WithExceptionTranslator installs the translator applied to driver errors.
// Untranslatable errors fall back to UncategorizedSQLError.
func WithExceptionTranslator(t ExceptionTranslator) Option {
	return func(c *Converter) { c.translator = t }
}

// WithLogger installs the logger the converter reports through.
func WithLogger(log logger.Logger) Option {
	return func(c *Converter) { c.log = log }
}

// WithMappingContext installs a shared mapping context. By default the
// converter creates its own, wired to the conversion registry's simple-type
// check.
func WithMappingContext(ctx *schema.MappingContext) Option {
	return func(c *Converter) { c.ctx = ctx }
}

// NewConverter creates a Converter that loads nested relations through
// resolver.
func NewConverter(resolver RelationResolver, opts ...Option) (*Converter, error) {
	if resolver == nil {
		return nil, errors.New("relmap: relation resolver must not be nil")
	}
	c := &Converter{
		resolver:    resolver,
		conversions: NewConversions(),
		typeFactory: UnsupportedTypeFactory{},
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ctx == nil {
		c.ctx = schema.NewMappingContext(schema.WithSimpleTypeCheck(c.conversions.IsSimpleType))
	}
	return c, nil
}

// MappingContext returns the metadata context the converter maps with.
func (c *Converter) MappingContext() *schema.MappingContext {
	return c.ctx
}

// Read materializes an aggregate of type T from doc, resolving nested
// relations through the converter's relation resolver.
func Read[T any](c *Converter, doc rowdoc.RowDocument) (T, error) {
	var zero T
	out, err := c.ReadAndResolve(reflect.TypeOf((*T)(nil)).Elem(), doc, schema.EmptyIdentifier())
	if err != nil {
		return zero, err
	}
	result, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("relmap: read produced %T, want %v", out, reflect.TypeOf((*T)(nil)).Elem())
	}
	return result, nil
}

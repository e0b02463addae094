package relmap

import (
	"fmt"

	"github.com/ghgh415263/relmap/pkg/rowdoc"
	"github.com/ghgh415263/relmap/pkg/schema"
)

// conversionContext is the per-node state of a read: the aggregate path of
// the position being materialized, the identifier accumulated for relation
// lookups, the document the read started from, and the entities already
// entered on the way down. Contexts are values; descending derives a new
// context and never mutates the old one.
//
// A resolving context consults the relation resolver for collection, map and
// child-table properties. The plain variant reads every property off the
// document, which is what relation resolvers themselves need when they
// convert already-fetched child rows.
type conversionContext struct {
	path       *schema.AggregatePath
	identifier schema.Identifier
	root       rowdoc.RowDocument
	resolving  bool
	visited    []*schema.Entity
}

// forProperty descends into the given property.
func (ctx conversionContext) forProperty(p *schema.Property) conversionContext {
	next := ctx
	next.path = ctx.path.Append(p)
	return next
}

// withIdentifier replaces the accumulated identifier.
func (ctx conversionContext) withIdentifier(id schema.Identifier) conversionContext {
	next := ctx
	next.identifier = id
	return next
}

// entering records that materialization has entered e. Re-entering an entity
// already on the current descent means the aggregate is self-referential.
func (ctx conversionContext) entering(e *schema.Entity) (conversionContext, error) {
	for _, seen := range ctx.visited {
		if seen == e {
			return ctx, fmt.Errorf("%w: %s revisited at %s", ErrCycleDetected, e.Type(), ctx.path)
		}
	}
	next := ctx
	next.visited = make([]*schema.Entity, len(ctx.visited), len(ctx.visited)+1)
	copy(next.visited, ctx.visited)
	next.visited = append(next.visited, e)
	return next, nil
}

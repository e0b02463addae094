package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPath indicates an aggregate path operation that cannot
// succeed, such as reconciling a suffix whose owners never match the base.
// These are programming errors and surface immediately.
var ErrMalformedPath = errors.New("schema: malformed aggregate path")

// maxPathDepth bounds path reconciliation so malformed input produces a
// diagnostic instead of endless stripping.
const maxPathDepth = 64

// AggregatePath is an immutable path from an aggregate root through a chain
// of properties to a nested position in the table tree. Paths are cheap to
// share; every navigation operation returns a new path.
type AggregatePath struct {
	ctx      *MappingContext
	parent   *AggregatePath
	property *Property

	// entity is the persistent entity at the tail, nil when the tail
	// property is not entity-shaped.
	entity *Entity
	root   *Entity
}

// IsRoot reports whether the path has no property steps.
func (p *AggregatePath) IsRoot() bool { return p.parent == nil }

// Root returns the aggregate root entity the path starts from.
func (p *AggregatePath) Root() *Entity { return p.root }

// Parent returns the path one step shorter, or nil for the root path.
func (p *AggregatePath) Parent() *AggregatePath { return p.parent }

// Property returns the tail property, or nil for the root path.
func (p *AggregatePath) Property() *Property { return p.property }

// IsEntity reports whether the path's tail is entity-shaped.
func (p *AggregatePath) IsEntity() bool { return p.entity != nil }

// LeafEntity returns the entity at the tail, or nil when the tail property
// maps to a plain column.
func (p *AggregatePath) LeafEntity() *Entity { return p.entity }

// RequiredLeafEntity returns the entity at the tail or an error when the
// tail is not entity-shaped.
func (p *AggregatePath) RequiredLeafEntity() (*Entity, error) {
	if p.entity == nil {
		return nil, fmt.Errorf("%w: %s has no leaf entity", ErrMalformedPath, p)
	}
	return p.entity, nil
}

// Length returns the number of property steps.
func (p *AggregatePath) Length() int {
	n := 0
	for cur := p; cur.parent != nil; cur = cur.parent {
		n++
	}
	return n
}

// Steps returns the property steps from the root to the tail.
func (p *AggregatePath) Steps() []*Property {
	steps := make([]*Property, p.Length())
	i := len(steps)
	for cur := p; cur.parent != nil; cur = cur.parent {
		i--
		steps[i] = cur.property
	}
	return steps
}

// RequiredBaseProperty returns the first property step.
func (p *AggregatePath) RequiredBaseProperty() (*Property, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("%w: root path has no base property", ErrMalformedPath)
	}
	cur := p
	for cur.parent.parent != nil {
		cur = cur.parent
	}
	return cur.property, nil
}

// Append extends the path by one property step. The property must be
// declared by the path's leaf entity.
func (p *AggregatePath) Append(prop *Property) *AggregatePath {
	var leaf *Entity
	if prop.IsEntity() {
		if e, ok := p.ctx.GetPersistentEntity(prop.ActualType()); ok {
			leaf = e
		}
	}
	return &AggregatePath{
		ctx:      p.ctx,
		parent:   p,
		property: prop,
		entity:   leaf,
		root:     p.root,
	}
}

// AppendAll extends the path by every step of suffix, in order.
func (p *AggregatePath) AppendAll(suffix *AggregatePath) *AggregatePath {
	result := p
	for _, step := range suffix.Steps() {
		result = result.Append(step)
	}
	return result
}

// Tail returns the path with its first step removed, re-rooted at the first
// step's entity. The first step must be entity-shaped for the remainder to
// stay navigable.
func (p *AggregatePath) Tail() (*AggregatePath, error) {
	steps := p.Steps()
	if len(steps) < 2 {
		return nil, fmt.Errorf("%w: %s has no tail", ErrMalformedPath, p)
	}
	base := steps[0]
	root, err := p.ctx.GetRequiredPersistentEntity(base.ActualType())
	if err != nil {
		return nil, fmt.Errorf("%w: base property %s of %s is not an entity", ErrMalformedPath, base, p)
	}
	tail := p.ctx.GetAggregatePath(root)
	for _, step := range steps[1:] {
		tail = tail.Append(step)
	}
	return tail, nil
}

// IDDefiningParentPath walks toward the root, starting at the parent, and
// returns the first path whose entity declares an identifier property. The
// root path returns itself when it is its own id-defining path.
func (p *AggregatePath) IDDefiningParentPath() (*AggregatePath, error) {
	cur := p.parent
	if cur == nil {
		cur = p
	}
	for ; cur != nil; cur = cur.parent {
		if cur.entity != nil && cur.entity.HasIDProperty() {
			return cur, nil
		}
	}
	return nil, fmt.Errorf("%w: no ancestor of %s declares an identifier", ErrNoIdentifier, p)
}

// ReverseColumn returns the back-reference column of the path's table: the
// column in the child table holding the id-defining parent's key. A
// "backref" tag option on the tail property overrides the derived name.
func (p *AggregatePath) ReverseColumn() (string, error) {
	if p.property != nil && p.property.backRefColumn != "" {
		return p.property.backRefColumn, nil
	}
	parent, err := p.IDDefiningParentPath()
	if err != nil {
		return "", err
	}
	owner, err := parent.RequiredLeafEntity()
	if err != nil {
		return "", err
	}
	return owner.Table(), nil
}

// KeyColumn returns the column qualifying elements of a keyed or indexed
// child table reached through this path.
func (p *AggregatePath) KeyColumn() (string, error) {
	if p.property == nil || !p.property.IsQualified() {
		return "", fmt.Errorf("%w: %s is not qualified", ErrMalformedPath, p)
	}
	return p.property.KeyColumn(), nil
}

func (p *AggregatePath) String() string {
	var b strings.Builder
	b.WriteString(p.root.Table())
	for _, step := range p.Steps() {
		b.WriteByte('.')
		b.WriteString(step.Name())
	}
	return b.String()
}

// SmartAppend reconciles a suffix path captured at a different depth with the
// given base: it strips leading steps of suffix until the remaining base
// property is owned by base's leaf entity, then appends the remainder. A
// suffix whose owners never reach base's leaf entity is malformed.
func SmartAppend(base, suffix *AggregatePath) (*AggregatePath, error) {
	leaf, err := base.RequiredLeafEntity()
	if err != nil {
		return nil, err
	}

	for depth := 0; depth < maxPathDepth; depth++ {
		prop, err := suffix.RequiredBaseProperty()
		if err != nil {
			return nil, fmt.Errorf("%w: no property of %s is owned by %s", ErrMalformedPath, suffix, leaf.Type())
		}
		if prop.Owner() == leaf {
			return base.AppendAll(suffix), nil
		}
		suffix, err = suffix.Tail()
		if err != nil {
			return nil, fmt.Errorf("%w: no property owned by %s while reconciling paths", ErrMalformedPath, leaf.Type())
		}
	}
	return nil, fmt.Errorf("%w: path reconciliation exceeded %d steps", ErrMalformedPath, maxPathDepth)
}

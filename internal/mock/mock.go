// Package mock provides canned collaborators for conversion engine tests: a
// scripted relation resolver, a recording array factory and a configurable
// error translator.
package mock

import (
	"errors"

	"github.com/ghgh415263/relmap/pkg/schema"
)

// Resolution records one relation lookup the resolver served.
type Resolution struct {
	Identifier schema.Identifier
	Path       string
}

// Resolver serves scripted child rows keyed by aggregate path and records
// every lookup.
type Resolver struct {
	Results map[string][]any
	Err     error

	Calls []Resolution
}

// NewResolver creates a resolver with no scripted results; every lookup
// yields an empty result set.
func NewResolver() *Resolver {
	return &Resolver{Results: map[string][]any{}}
}

// On scripts the elements returned for the given aggregate path.
func (r *Resolver) On(path string, elements ...any) *Resolver {
	r.Results[path] = elements
	return r
}

func (r *Resolver) FindAllByPath(identifier schema.Identifier, path *schema.AggregatePath) ([]any, error) {
	r.Calls = append(r.Calls, Resolution{Identifier: identifier, Path: path.String()})
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Results[path.String()], nil
}

// TypeFactory records the element sets handed to CreateArray and returns
// them wrapped in an ArrayHandle.
type TypeFactory struct {
	Created [][]any
	Err     error
}

// ArrayHandle is the stand-in for a driver-native array object.
type ArrayHandle struct {
	Elements []any
}

func (f *TypeFactory) CreateArray(values []any) (any, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.Created = append(f.Created, values)
	return ArrayHandle{Elements: values}, nil
}

// Translator translates every error into Translated, or refuses when
// Translated is nil.
type Translator struct {
	Translated error

	Tasks []string
	SQLs  []string
	Errs  []error
}

func (t *Translator) Translate(task, sql string, err error) error {
	t.Tasks = append(t.Tasks, task)
	t.SQLs = append(t.SQLs, sql)
	t.Errs = append(t.Errs, err)
	return t.Translated
}

// ErrBoom is a generic failure for scripting resolver and factory errors.
var ErrBoom = errors.New("mock: boom")

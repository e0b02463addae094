// Package sqlresolver implements relation resolution over database/sql: one
// SELECT against the child table per nested collection, map or child-table
// entity, filtered by the identifier's back-reference columns.
package sqlresolver

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/ghgh415263/relmap"
	"github.com/ghgh415263/relmap/pkg/logger"
	"github.com/ghgh415263/relmap/pkg/rowdoc"
	"github.com/ghgh415263/relmap/pkg/schema"
)

// AggregateReader converts one fetched child row into its entity. It is the
// narrow converter surface the resolver needs; *relmap.Converter satisfies
// it.
type AggregateReader interface {
	ReadAndResolve(t reflect.Type, doc rowdoc.RowDocument, base schema.Identifier) (any, error)
}

// Resolver loads child rows through a *sql.DB. Construction is two-phase
// because converter and resolver reference each other: create the resolver,
// hand it to the converter, then Bind the converter back.
//
//	res := sqlresolver.New(db)
//	conv, err := relmap.NewConverter(res)
//	res.Bind(conv)
type Resolver struct {
	db     *sql.DB
	reader AggregateReader
	log    logger.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger installs the logger queries are traced through.
func WithLogger(log logger.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// New creates a Resolver reading through db. Bind must be called before the
// first lookup.
func New(db *sql.DB, opts ...ResolverOption) *Resolver {
	r := &Resolver{db: db, log: logger.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind installs the reader converting fetched rows into entities.
func (r *Resolver) Bind(reader AggregateReader) {
	r.reader = reader
}

// FindAllByPath loads and converts all child rows for the relation at path,
// filtered by the identifier's columns. Qualified relations are ordered by
// their key column and returned as relmap.MapEntry values.
func (r *Resolver) FindAllByPath(identifier schema.Identifier, path *schema.AggregatePath) ([]any, error) {
	if r.reader == nil {
		return nil, fmt.Errorf("sqlresolver: no reader bound")
	}

	leaf := path.LeafEntity()
	if leaf == nil {
		return r.findSimpleEntries(identifier, path)
	}

	qualified := path.Property() != nil && path.Property().IsQualified()
	keyColumn := ""
	if qualified {
		var err error
		keyColumn, err = path.KeyColumn()
		if err != nil {
			return nil, err
		}
	}

	query, args := buildQuery(leaf.Table(), identifier, keyColumn)
	r.log.Debug("loading relation", "query", query, "path", path.String())

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlresolver: querying %s: %w", leaf.Table(), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlresolver: reading columns of %s: %w", leaf.Table(), err)
	}

	var elements []any
	for rows.Next() {
		doc, err := scanDocument(rows, columns)
		if err != nil {
			return nil, fmt.Errorf("sqlresolver: scanning %s: %w", leaf.Table(), err)
		}

		element, err := r.reader.ReadAndResolve(leaf.Type(), doc, identifier)
		if err != nil {
			return nil, err
		}

		if qualified {
			key, _ := doc.Get(keyColumn)
			elements = append(elements, relmap.MapEntry{Key: key, Value: element})
		} else {
			elements = append(elements, element)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlresolver: iterating %s: %w", leaf.Table(), err)
	}
	return elements, nil
}

// findSimpleEntries loads a map of simple values. Such maps have no entity
// of their own; their rows live in a table named <owner table>_<column>
// holding the back-reference column, the key column and one value column
// named after the property.
func (r *Resolver) findSimpleEntries(identifier schema.Identifier, path *schema.AggregatePath) ([]any, error) {
	prop := path.Property()
	if prop == nil || !prop.IsMap() {
		return nil, fmt.Errorf("sqlresolver: %s does not map to a child table", path)
	}

	table := prop.Owner().Table() + "_" + prop.Column()
	keyColumn := prop.KeyColumn()

	query, args := buildQuery(table, identifier, keyColumn)
	r.log.Debug("loading entries", "query", query, "path", path.String())

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlresolver: querying %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlresolver: reading columns of %s: %w", table, err)
	}

	var elements []any
	for rows.Next() {
		doc, err := scanDocument(rows, columns)
		if err != nil {
			return nil, fmt.Errorf("sqlresolver: scanning %s: %w", table, err)
		}
		key, _ := doc.Get(keyColumn)
		value, _ := doc.Get(prop.Column())
		elements = append(elements, relmap.MapEntry{Key: key, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlresolver: iterating %s: %w", table, err)
	}
	return elements, nil
}

func buildQuery(table string, identifier schema.Identifier, keyColumn string) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quote(table))

	args := make([]any, 0, identifier.Size())
	for i, part := range identifier.Parts() {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(quote(part.Column))
		b.WriteString(" = ?")
		args = append(args, part.Value)
	}

	if keyColumn != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(quote(keyColumn))
	}
	return b.String(), args
}

// quote sanitizes an identifier with standard double quoting. Identifier
// names come from mapping metadata, not user input; quoting guards against
// reserved words.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// scanDocument reads the current row into a RowDocument. Byte slices are
// copied out of the driver's reusable buffers.
func scanDocument(rows *sql.Rows, columns []string) (rowdoc.RowDocument, error) {
	values := make([]any, len(columns))
	for i := range values {
		values[i] = new(any)
	}
	if err := rows.Scan(values...); err != nil {
		return nil, err
	}

	doc := rowdoc.New()
	for i, column := range columns {
		v := *(values[i].(*any))
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		doc.Set(column, v)
	}
	return doc, nil
}

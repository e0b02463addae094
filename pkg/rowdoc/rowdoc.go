// Package rowdoc provides the flattened, read-side view of one retrieved
// row. A RowDocument maps column names to raw driver values; nested
// RowDocument values represent the joined sub-rows of to-one related
// entities.
package rowdoc

import (
	"fmt"
	"sort"
	"strings"
)

// RowDocument is a key-value view of a single logical row. Lookups are exact
// first, then case-insensitive, matching the loose column naming drivers
// produce. A RowDocument is treated as immutable once handed to the
// conversion engine.
type RowDocument map[string]any

// New creates an empty RowDocument.
func New() RowDocument {
	return RowDocument{}
}

// Get returns the raw value stored under the column, trying an exact match
// before a case-insensitive one.
func (d RowDocument) Get(column string) (any, bool) {
	if v, ok := d[column]; ok {
		return v, true
	}
	for k, v := range d {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}

// HasNonNil reports whether the column is present with a non-nil value.
func (d RowDocument) HasNonNil(column string) bool {
	v, ok := d.Get(column)
	return ok && v != nil
}

// Subdocument returns the nested RowDocument stored under the column, if
// any. Joined to-one rows appear this way.
func (d RowDocument) Subdocument(column string) (RowDocument, bool) {
	v, ok := d.Get(column)
	if !ok || v == nil {
		return nil, false
	}
	switch sub := v.(type) {
	case RowDocument:
		return sub, true
	case map[string]any:
		return RowDocument(sub), true
	}
	return nil, false
}

// Set stores a value. It exists for document builders (row scanning, tests);
// the conversion engine never mutates documents.
func (d RowDocument) Set(column string, value any) {
	d[column] = value
}

// Columns returns the document's column names, sorted for deterministic
// iteration.
func (d RowDocument) Columns() []string {
	cols := make([]string, 0, len(d))
	for k := range d {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func (d RowDocument) String() string {
	var b strings.Builder
	b.WriteString("RowDocument{")
	for i, col := range d.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", col, d[col])
	}
	b.WriteString("}")
	return b.String()
}

// Package relmap converts between Go aggregates and relational rows.
//
// An aggregate is a root struct plus every entity reachable through its
// fields. relmap maps that object graph onto a tree of tables connected by
// back-reference columns and converts in both directions: the read path
// materializes a fresh object graph from a flattened RowDocument, resolving
// nested collections, maps and child-table entities through a pluggable
// RelationResolver; the write path converts property values into
// database-writable values tagged with their SQL type.
//
// # Reading
//
//	conv, err := relmap.NewConverter(resolver)
//	order, err := relmap.Read[Order](conv, doc)
//
// Each read builds a fresh object graph; there is no identity cache and no
// lazy proxying. Nested collections trigger one resolver call per property
// and ancestor row.
//
// # Writing
//
//	v, err := conv.WriteDBValue(order.Tags, colType, relmap.SQLTypeArray)
//
// A Converter is immutable after construction and safe for concurrent use
// as long as its collaborators are.
package relmap

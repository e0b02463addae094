package relmap

import (
	"fmt"
	"reflect"
	"time"

	"github.com/gofrs/uuid"
)

// SQLType identifies the database-side type a converted value targets,
// mirroring the JDBC type constants drivers care about.
type SQLType int

const (
	SQLTypeUnknown SQLType = iota
	SQLTypeNull
	SQLTypeBoolean
	SQLTypeTinyInt
	SQLTypeSmallInt
	SQLTypeInteger
	SQLTypeBigInt
	SQLTypeReal
	SQLTypeDouble
	SQLTypeDecimal
	SQLTypeVarchar
	SQLTypeBinary
	SQLTypeArray
	SQLTypeDate
	SQLTypeTime
	SQLTypeTimestamp
)

var sqlTypeNames = map[SQLType]string{
	SQLTypeUnknown:   "UNKNOWN",
	SQLTypeNull:      "NULL",
	SQLTypeBoolean:   "BOOLEAN",
	SQLTypeTinyInt:   "TINYINT",
	SQLTypeSmallInt:  "SMALLINT",
	SQLTypeInteger:   "INTEGER",
	SQLTypeBigInt:    "BIGINT",
	SQLTypeReal:      "REAL",
	SQLTypeDouble:    "DOUBLE",
	SQLTypeDecimal:   "DECIMAL",
	SQLTypeVarchar:   "VARCHAR",
	SQLTypeBinary:    "BINARY",
	SQLTypeArray:     "ARRAY",
	SQLTypeDate:      "DATE",
	SQLTypeTime:      "TIME",
	SQLTypeTimestamp: "TIMESTAMP",
}

func (t SQLType) String() string {
	if name, ok := sqlTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

// Value is the tagged envelope the write path produces: a converted value
// paired with the SQL type the driver should bind it as.
type Value struct {
	Val  any
	Type SQLType
}

// ValueOf wraps a converted value with its target SQL type.
func ValueOf(v any, t SQLType) Value {
	return Value{Val: v, Type: t}
}

// SQLTypeFor maps a Go column type to the SQL type a driver would bind it
// as.
func SQLTypeFor(t reflect.Type) SQLType {
	if t == nil {
		return SQLTypeNull
	}
	switch t {
	case reflect.TypeOf(time.Time{}):
		return SQLTypeTimestamp
	case reflect.TypeOf([]byte(nil)):
		return SQLTypeBinary
	case reflect.TypeOf(uuid.UUID{}):
		return SQLTypeVarchar
	}
	switch t.Kind() {
	case reflect.Bool:
		return SQLTypeBoolean
	case reflect.Int8, reflect.Uint8:
		return SQLTypeTinyInt
	case reflect.Int16, reflect.Uint16:
		return SQLTypeSmallInt
	case reflect.Int32, reflect.Uint32:
		return SQLTypeInteger
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return SQLTypeBigInt
	case reflect.Float32:
		return SQLTypeReal
	case reflect.Float64:
		return SQLTypeDouble
	case reflect.String:
		return SQLTypeVarchar
	case reflect.Slice, reflect.Array:
		return SQLTypeArray
	}
	return SQLTypeUnknown
}

// TypeFactory constructs driver-native array handles for ARRAY-typed
// payloads.
type TypeFactory interface {
	// CreateArray builds the driver's array representation of the boxed
	// elements.
	CreateArray(values []any) (any, error)
}

// UnsupportedTypeFactory is the default TypeFactory; it fails on use. It is
// a legal default for applications that never write array columns.
type UnsupportedTypeFactory struct{}

func (UnsupportedTypeFactory) CreateArray(values []any) (any, error) {
	return nil, fmt.Errorf("relmap: array creation not supported by this type factory")
}

// SQLArray is the driver-side array handle the read path unwraps. Driver
// errors raised here go through exception translation.
type SQLArray interface {
	Array() (any, error)
}

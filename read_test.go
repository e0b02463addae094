package relmap

import (
	"reflect"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghgh415263/relmap/internal/mock"
	"github.com/ghgh415263/relmap/pkg/ref"
	"github.com/ghgh415263/relmap/pkg/rowdoc"
	"github.com/ghgh415263/relmap/pkg/schema"
)

type testPassport struct {
	ID     int64 `db:"id,id"`
	Number string
}

type testPerson struct {
	ID       int64 `db:"id,id"`
	Name     string
	Passport *testPassport
}

type testProfile struct {
	Bio  string
	Site string
}

type testUser struct {
	ID      int64       `db:"id,id"`
	Profile testProfile `db:",embedded"`
}

type testOrderLine struct {
	ID   int64 `db:"id,id"`
	Item string
}

type testPurchase struct {
	ID    int64 `db:"id,id"`
	Lines []testOrderLine
}

type testSlot struct {
	ID     int64 `db:"id,id"`
	Widget string
}

type testBoard struct {
	ID    int64 `db:"id,id"`
	Slots map[string]testSlot
}

type testInvoice struct {
	ID     int64 `db:"id,id"`
	Amount int64
}

type testShipment struct {
	ID      int64        `db:"id,id"`
	Invoice *testInvoice `db:",resolve"`
}

type testWarehouse struct {
	ID   int64 `db:"id,id"`
	Name string
}

type testStock struct {
	ID        int64                                         `db:"id,id"`
	Warehouse ref.AggregateReference[testWarehouse, int64] `db:"warehouse"`
}

type testAccount struct {
	ID    uuid.UUID `db:"id,id"`
	Email string
}

type testTagged struct {
	ID   int64 `db:"id,id"`
	Tags []string
}

type testCycleB struct {
	ID int64 `db:"id,id"`
	A  *testCycleA
}

type testCycleA struct {
	ID int64 `db:"id,id"`
	B  testCycleB
}

type testNode struct {
	ID       int64 `db:"id,id"`
	Children []testNode
}

type testRegionKey struct {
	Country string
	Code    int64
}

type testCity struct {
	ID   int64 `db:"id,id"`
	Name string
}

type testRegion struct {
	Key    testRegionKey `db:"key,id,embedded"`
	Cities []testCity
}

// fakeArray stands in for a driver array handle.
type fakeArray struct {
	v   any
	err error
}

func (f fakeArray) Array() (any, error) { return f.v, f.err }

func newTestConverter(t *testing.T, opts ...Option) (*Converter, *mock.Resolver) {
	t.Helper()
	resolver := mock.NewResolver()
	conv, err := NewConverter(resolver, opts...)
	require.NoError(t, err)
	return conv, resolver
}

func TestRead_scalars(t *testing.T) {
	conv, _ := newTestConverter(t)

	doc := rowdoc.RowDocument{"id": int64(1), "name": "Ada"}
	person, err := Read[testPerson](conv, doc)
	require.NoError(t, err)

	assert.Equal(t, int64(1), person.ID)
	assert.Equal(t, "Ada", person.Name)
	assert.Nil(t, person.Passport)
}

func TestRead_caseInsensitiveColumns(t *testing.T) {
	conv, _ := newTestConverter(t)

	doc := rowdoc.RowDocument{"ID": int64(1), "NAME": "Ada"}
	person, err := Read[testPerson](conv, doc)
	require.NoError(t, err)

	assert.Equal(t, int64(1), person.ID)
	assert.Equal(t, "Ada", person.Name)
}

func TestRead_nestedEntity(t *testing.T) {
	conv, _ := newTestConverter(t)

	t.Run("joined subdocument", func(t *testing.T) {
		doc := rowdoc.RowDocument{
			"id":       int64(1),
			"name":     "Ada",
			"passport": rowdoc.RowDocument{"id": int64(9), "number": "X-123"},
		}
		person, err := Read[testPerson](conv, doc)
		require.NoError(t, err)

		require.NotNil(t, person.Passport)
		assert.Equal(t, int64(9), person.Passport.ID)
		assert.Equal(t, "X-123", person.Passport.Number)
	})

	t.Run("absent subdocument stays nil", func(t *testing.T) {
		doc := rowdoc.RowDocument{"id": int64(1), "name": "Ada"}
		person, err := Read[testPerson](conv, doc)
		require.NoError(t, err)
		assert.Nil(t, person.Passport)
	})

	t.Run("null id means absent", func(t *testing.T) {
		doc := rowdoc.RowDocument{
			"id":       int64(1),
			"passport": rowdoc.RowDocument{"id": nil, "number": nil},
		}
		person, err := Read[testPerson](conv, doc)
		require.NoError(t, err)
		assert.Nil(t, person.Passport)
	})
}

func TestRead_embeddedEntity(t *testing.T) {
	conv, _ := newTestConverter(t)

	t.Run("reads flat off the same row", func(t *testing.T) {
		doc := rowdoc.RowDocument{"id": int64(1), "bio": "gopher", "site": nil}
		user, err := Read[testUser](conv, doc)
		require.NoError(t, err)
		assert.Equal(t, "gopher", user.Profile.Bio)
	})

	t.Run("all columns null means absent", func(t *testing.T) {
		doc := rowdoc.RowDocument{"id": int64(1), "bio": nil, "site": nil}
		user, err := Read[testUser](conv, doc)
		require.NoError(t, err)
		assert.Equal(t, testProfile{}, user.Profile)
	})
}

func TestRead_collection(t *testing.T) {
	conv, resolver := newTestConverter(t)
	resolver.On("test_purchase.Lines",
		testOrderLine{ID: 10, Item: "keyboard"},
		testOrderLine{ID: 11, Item: "mouse"},
	)

	purchase, err := Read[testPurchase](conv, rowdoc.RowDocument{"id": int64(42)})
	require.NoError(t, err)

	assert.Equal(t, []testOrderLine{
		{ID: 10, Item: "keyboard"},
		{ID: 11, Item: "mouse"},
	}, purchase.Lines)

	t.Run("filters the child table by the back reference", func(t *testing.T) {
		require.Len(t, resolver.Calls, 1)
		call := resolver.Calls[0]
		assert.Equal(t, "test_purchase.Lines", call.Path)
		require.Equal(t, 1, call.Identifier.Size())
		part := call.Identifier.Parts()[0]
		assert.Equal(t, "test_purchase", part.Column)
		assert.Equal(t, int64(42), part.Value)
	})

	t.Run("no child rows yields an empty slice", func(t *testing.T) {
		conv, _ := newTestConverter(t)
		purchase, err := Read[testPurchase](conv, rowdoc.RowDocument{"id": int64(1)})
		require.NoError(t, err)
		assert.Empty(t, purchase.Lines)
	})

	t.Run("resolver failure propagates", func(t *testing.T) {
		conv, resolver := newTestConverter(t)
		resolver.Err = mock.ErrBoom
		_, err := Read[testPurchase](conv, rowdoc.RowDocument{"id": int64(1)})
		assert.ErrorIs(t, err, mock.ErrBoom)
	})
}

func TestRead_map(t *testing.T) {
	conv, resolver := newTestConverter(t)
	resolver.On("test_board.Slots",
		MapEntry{Key: "left", Value: testSlot{ID: 1, Widget: "clock"}},
		MapEntry{Key: "right", Value: testSlot{ID: 2, Widget: "gauge"}},
		MapEntry{Key: "left", Value: testSlot{ID: 3, Widget: "dial"}},
	)

	board, err := Read[testBoard](conv, rowdoc.RowDocument{"id": int64(7)})
	require.NoError(t, err)

	// Later duplicates win, in resolver order.
	assert.Equal(t, map[string]testSlot{
		"left":  {ID: 3, Widget: "dial"},
		"right": {ID: 2, Widget: "gauge"},
	}, board.Slots)

	t.Run("non-entry elements are rejected", func(t *testing.T) {
		conv, resolver := newTestConverter(t)
		resolver.On("test_board.Slots", testSlot{ID: 1})
		_, err := Read[testBoard](conv, rowdoc.RowDocument{"id": int64(7)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MapEntry")
	})
}

func TestRead_resolvedToOne(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		conv, resolver := newTestConverter(t)
		resolver.On("test_shipment.Invoice", testInvoice{ID: 5, Amount: 100})

		shipment, err := Read[testShipment](conv, rowdoc.RowDocument{"id": int64(3)})
		require.NoError(t, err)
		require.NotNil(t, shipment.Invoice)
		assert.Equal(t, int64(100), shipment.Invoice.Amount)
	})

	t.Run("no child row stays nil", func(t *testing.T) {
		conv, _ := newTestConverter(t)
		shipment, err := Read[testShipment](conv, rowdoc.RowDocument{"id": int64(3)})
		require.NoError(t, err)
		assert.Nil(t, shipment.Invoice)
	})
}

func TestRead_reference(t *testing.T) {
	conv, resolver := newTestConverter(t)

	stock, err := Read[testStock](conv, rowdoc.RowDocument{"id": int64(1), "warehouse": int64(7)})
	require.NoError(t, err)

	assert.Equal(t, int64(7), stock.Warehouse.Get())
	assert.Empty(t, resolver.Calls, "references must not load the referenced aggregate")
}

func TestRead_uuidIdentifier(t *testing.T) {
	conv, _ := newTestConverter(t)
	id := uuid.Must(uuid.NewV4())

	t.Run("from string", func(t *testing.T) {
		account, err := Read[testAccount](conv, rowdoc.RowDocument{"id": id.String(), "email": "a@b.c"})
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
	})

	t.Run("from bytes", func(t *testing.T) {
		account, err := Read[testAccount](conv, rowdoc.RowDocument{"id": id.Bytes()})
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Read[testAccount](conv, rowdoc.RowDocument{"id": "not-a-uuid"})
		assert.Error(t, err)
	})
}

func TestRead_arrayColumn(t *testing.T) {
	t.Run("unwraps the driver handle", func(t *testing.T) {
		conv, _ := newTestConverter(t)
		doc := rowdoc.RowDocument{"id": int64(1), "tags": fakeArray{v: []any{"go", "sql"}}}

		tagged, err := Read[testTagged](conv, doc)
		require.NoError(t, err)
		assert.Equal(t, []string{"go", "sql"}, tagged.Tags)
	})

	t.Run("handle failure goes through the translator", func(t *testing.T) {
		translated := assert.AnError
		translator := &mock.Translator{Translated: translated}
		conv, _ := newTestConverter(t, WithExceptionTranslator(translator))

		doc := rowdoc.RowDocument{"id": int64(1), "tags": fakeArray{err: mock.ErrBoom}}
		_, err := Read[testTagged](conv, doc)
		assert.ErrorIs(t, err, translated)
		require.Len(t, translator.Errs, 1)
		assert.ErrorIs(t, translator.Errs[0], mock.ErrBoom)
	})

	t.Run("uncategorized fallback", func(t *testing.T) {
		conv, _ := newTestConverter(t, WithExceptionTranslator(&mock.Translator{}))

		doc := rowdoc.RowDocument{"id": int64(1), "tags": fakeArray{err: mock.ErrBoom}}
		_, err := Read[testTagged](conv, doc)

		var uncategorized *UncategorizedSQLError
		require.ErrorAs(t, err, &uncategorized)
		assert.Equal(t, "Array.Array()", uncategorized.Task)
		assert.ErrorIs(t, uncategorized, mock.ErrBoom)
	})
}

func TestRead_cyclicAggregates(t *testing.T) {
	t.Run("self-referential collection is rejected up front", func(t *testing.T) {
		// A row that is its own parent would otherwise bounce between the
		// converter and the resolver forever.
		conv, resolver := newTestConverter(t)
		resolver.On("test_node.Children", testNode{ID: 1})

		_, err := Read[testNode](conv, rowdoc.RowDocument{"id": int64(1)})
		assert.ErrorIs(t, err, schema.ErrCyclicMapping)
		assert.Empty(t, resolver.Calls)
	})

	t.Run("mutual nesting is rejected", func(t *testing.T) {
		conv, _ := newTestConverter(t)
		doc := rowdoc.RowDocument{
			"id": int64(1),
			"b": rowdoc.RowDocument{
				"id": int64(2),
				"a":  rowdoc.RowDocument{"id": int64(3)},
			},
		}
		_, err := Read[testCycleA](conv, doc)
		assert.ErrorIs(t, err, schema.ErrCyclicMapping)
	})
}

func TestConversionContext_entering(t *testing.T) {
	conv, _ := newTestConverter(t)
	entity, err := conv.ctx.GetRequiredPersistentEntity(reflect.TypeOf(testPerson{}))
	require.NoError(t, err)

	ctx := conversionContext{path: conv.ctx.GetAggregatePath(entity)}
	ctx, err = ctx.entering(entity)
	require.NoError(t, err)

	_, err = ctx.entering(entity)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestRead_compositeKeyRelation(t *testing.T) {
	conv, resolver := newTestConverter(t)
	resolver.On("test_region.Cities", testCity{ID: 5, Name: "Berlin"})

	doc := rowdoc.RowDocument{"country": "DE", "code": int64(10)}
	region, err := Read[testRegion](conv, doc)
	require.NoError(t, err)

	assert.Equal(t, testRegionKey{Country: "DE", Code: 10}, region.Key)
	assert.Equal(t, []testCity{{ID: 5, Name: "Berlin"}}, region.Cities)

	t.Run("one identifier part per key column", func(t *testing.T) {
		require.Len(t, resolver.Calls, 1)
		id := resolver.Calls[0].Identifier
		require.Equal(t, 2, id.Size())

		country, ok := id.ValueOf("test_region_country")
		require.True(t, ok)
		assert.Equal(t, "DE", country)

		code, ok := id.ValueOf("test_region_code")
		require.True(t, ok)
		assert.Equal(t, int64(10), code)
	})

	t.Run("missing key column fails the read", func(t *testing.T) {
		conv, _ := newTestConverter(t)
		_, err := Read[testRegion](conv, rowdoc.RowDocument{"country": "DE"})
		assert.ErrorIs(t, err, schema.ErrNoIdentifier)
	})
}

func TestReadValue_conversions(t *testing.T) {
	conv, _ := newTestConverter(t)

	cases := []struct {
		name   string
		value  any
		target reflect.Type
		want   any
	}{
		{"assignable", "x", reflect.TypeOf(""), "x"},
		{"int64 to int", int64(7), reflect.TypeOf(int(0)), int(7)},
		{"int to float", int64(7), reflect.TypeOf(float64(0)), float64(7)},
		{"bytes to string", []byte("abc"), reflect.TypeOf(""), "abc"},
		{"numeric bool", int64(1), reflect.TypeOf(false), true},
		{"bool to int", true, reflect.TypeOf(int64(0)), int64(1)},
		{"nil stays nil", nil, reflect.TypeOf(""), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := conv.ReadValue(tc.value, tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("pointer target allocates", func(t *testing.T) {
		got, err := conv.ReadValue(int64(7), reflect.TypeOf((*int64)(nil)))
		require.NoError(t, err)
		require.IsType(t, (*int64)(nil), got)
		assert.Equal(t, int64(7), *got.(*int64))
	})

	t.Run("impossible conversion fails", func(t *testing.T) {
		_, err := conv.ReadValue("abc", reflect.TypeOf(int64(0)))
		assert.Error(t, err)
	})

	t.Run("custom reader wins", func(t *testing.T) {
		conversions := NewConversions().RegisterReader(reflect.TypeOf(int64(0)), func(v any) (any, error) {
			return int64(99), nil
		})
		conv, _ := newTestConverter(t, WithConversions(conversions))

		got, err := conv.ReadValue(int64(7), reflect.TypeOf(int64(0)))
		require.NoError(t, err)
		assert.Equal(t, int64(99), got)
	})
}

func TestPresenceChecks(t *testing.T) {
	conv, _ := newTestConverter(t)
	entity, err := conv.ctx.GetRequiredPersistentEntity(reflect.TypeOf(testPassport{}))
	require.NoError(t, err)
	number, ok := entity.Property("Number")
	require.True(t, ok)

	probe := func(doc rowdoc.RowDocument) (bool, bool) {
		accessor := rowdoc.NewAccessor(entity, doc)
		ctx := conversionContext{path: conv.ctx.GetAggregatePath(entity)}
		return conv.hasValue(ctx, accessor, number), conv.hasNonEmptyValue(ctx, accessor, number)
	}

	t.Run("empty string is present but empty", func(t *testing.T) {
		present, nonEmpty := probe(rowdoc.RowDocument{"number": ""})
		assert.True(t, present)
		assert.False(t, nonEmpty)
	})

	t.Run("non-empty string is both", func(t *testing.T) {
		present, nonEmpty := probe(rowdoc.RowDocument{"number": "X-1"})
		assert.True(t, present)
		assert.True(t, nonEmpty)
	})

	t.Run("null is neither", func(t *testing.T) {
		present, nonEmpty := probe(rowdoc.RowDocument{"number": nil})
		assert.False(t, present)
		assert.False(t, nonEmpty)
	})
}

func TestNewConverter(t *testing.T) {
	t.Run("requires a resolver", func(t *testing.T) {
		_, err := NewConverter(nil)
		assert.Error(t, err)
	})

	t.Run("shares an installed mapping context", func(t *testing.T) {
		ctx := schema.NewMappingContext()
		conv, err := NewConverter(mock.NewResolver(), WithMappingContext(ctx))
		require.NoError(t, err)
		assert.Same(t, ctx, conv.MappingContext())
	})
}

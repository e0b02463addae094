package rowdoc

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghgh415263/relmap/pkg/schema"
)

type accessorSubject struct {
	ID   int64  `db:"id,id"`
	Note string `db:"remark"`
}

func TestAccessor(t *testing.T) {
	ctx := schema.NewMappingContext()
	entity, err := ctx.GetRequiredPersistentEntity(reflect.TypeOf(accessorSubject{}))
	require.NoError(t, err)

	doc := RowDocument{"id": int64(7), "remark": nil}
	acc := NewAccessor(entity, doc)

	assert.Same(t, entity, acc.Entity())
	assert.Equal(t, doc, acc.Document())

	idProp, ok := entity.Property("ID")
	require.True(t, ok)
	noteProp, ok := entity.Property("Note")
	require.True(t, ok)

	t.Run("reads by mapped column", func(t *testing.T) {
		v, ok := acc.Get(idProp)
		require.True(t, ok)
		assert.Equal(t, int64(7), v)
	})

	t.Run("nil column has no value", func(t *testing.T) {
		assert.True(t, acc.HasValue(idProp))
		assert.False(t, acc.HasValue(noteProp))
	})
}

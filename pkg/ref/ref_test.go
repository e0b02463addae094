package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type invoice struct {
	ID int64
}

func TestAggregateReference(t *testing.T) {
	r := To[invoice](int64(42))

	assert.Equal(t, int64(42), r.Get())
	assert.Equal(t, any(int64(42)), r.RawID())
	assert.Equal(t, "AggregateReference(42)", r.String())

	t.Run("implements Reference", func(t *testing.T) {
		var iface Reference = r
		assert.Equal(t, any(int64(42)), iface.RawID())
	})

	t.Run("string keys", func(t *testing.T) {
		r := To[invoice]("inv-1")
		assert.Equal(t, "inv-1", r.Get())
	})
}

package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/types"
)

func schema() *Desc {
	return NewDesc(
		FieldDesc{Name: "id", Type: types.IntType},
		FieldDesc{Name: "name", Type: types.StringType(8)},
	)
}

func TestDescEqualsIgnoresNames(t *testing.T) {
	a := NewDesc(FieldDesc{Name: "x", Type: types.IntType})
	b := NewDesc(FieldDesc{Name: "y", Type: types.IntType})
	assert.True(t, a.Equals(b))
}

func TestDescEqualsRejectsDifferentTypes(t *testing.T) {
	a := NewDesc(FieldDesc{Name: "x", Type: types.IntType})
	b := NewDesc(FieldDesc{Name: "x", Type: types.StringType(8)})
	assert.False(t, a.Equals(b))
}

func TestDescHashConsistentWithEquals(t *testing.T) {
	a := NewDesc(FieldDesc{Name: "x", Type: types.IntType})
	b := NewDesc(FieldDesc{Name: "y", Type: types.IntType})
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestTuplePreSizedRejectsOutOfRange(t *testing.T) {
	tup := NewTuple(schema())
	err := tup.SetField(2, types.Int(1))
	assert.Error(t, err)
}

func TestTupleSetFieldAndRead(t *testing.T) {
	d := schema()
	tup := NewTuple(d)
	require.NoError(t, tup.SetField(0, types.Int(7)))
	require.NoError(t, tup.SetField(1, types.String("abc")))
	assert.Equal(t, types.Int(7), tup.Field(0))
	assert.Nil(t, tup.RecordID())
}

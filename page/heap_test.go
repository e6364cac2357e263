package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/dberrors"
	"coredb/storage"
	"coredb/tuple"
	"coredb/types"
)

func testDesc() *tuple.Desc {
	return tuple.NewDesc(
		tuple.FieldDesc{Name: "id", Type: types.IntType},
		tuple.FieldDesc{Name: "name", Type: types.StringType(8)},
	)
}

func newTuple(id int, name string, desc *tuple.Desc) *tuple.Tuple {
	t := tuple.NewTuple(desc)
	_ = t.SetField(0, types.Int(id))
	_ = t.SetField(1, types.String(name))
	return t
}

func TestHeapPageInsertSetsHeaderBitAndRecordID(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	desc := testDesc()
	pid := storage.PageID{TableID: 1, PageNum: 0, Kind: storage.HeapPageKind}
	hp := NewHeapPage(pid, desc)

	before := hp.NumEmptySlots()
	tp := newTuple(1, "a", desc)
	slot, err := hp.Insert(tp)
	require.NoError(t, err)

	assert.True(t, hp.IsSlotUsed(slot))
	assert.Equal(t, before-1, hp.NumEmptySlots())
	assert.Equal(t, pid, tp.RecordID().PageID)
	assert.Equal(t, slot, tp.RecordID().SlotNumber)
}

func TestHeapPageIteratorCountMatchesHeaderBits(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	desc := testDesc()
	pid := storage.PageID{TableID: 1, PageNum: 0, Kind: storage.HeapPageKind}
	hp := NewHeapPage(pid, desc)

	n := 0
	for {
		tp := newTuple(n, "x", desc)
		if _, err := hp.Insert(tp); err != nil {
			break
		}
		n++
	}

	used := 0
	for i := 0; i < hp.Capacity(); i++ {
		if hp.IsSlotUsed(i) {
			used++
		}
	}
	assert.Equal(t, used, len(hp.Iterator()))
	assert.Equal(t, n, len(hp.Iterator()))
}

func TestHeapPageInsertDeleteRoundTrip(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	desc := testDesc()
	pid := storage.PageID{TableID: 1, PageNum: 0, Kind: storage.HeapPageKind}
	hp := NewHeapPage(pid, desc)

	tp := newTuple(5, "bob", desc)
	_, err := hp.Insert(tp)
	require.NoError(t, err)

	require.NoError(t, hp.Delete(tp))
	assert.Nil(t, tp.RecordID())
	assert.Equal(t, 0, len(hp.Iterator()))
}

func TestHeapPageBytesRoundTrip(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	desc := testDesc()
	pid := storage.PageID{TableID: 1, PageNum: 0, Kind: storage.HeapPageKind}
	hp := NewHeapPage(pid, desc)
	tp := newTuple(9, "zzz", desc)
	_, err := hp.Insert(tp)
	require.NoError(t, err)

	encoded := hp.Bytes()
	decoded := DecodeHeapPage(pid, desc, encoded)
	assert.Equal(t, encoded, decoded.Bytes())
	assert.Equal(t, 1, len(decoded.Iterator()))
}

func TestHeapPageFullReturnsPageFullError(t *testing.T) {
	storage.SetPageSize(128)
	defer storage.ResetPageSize()

	desc := testDesc()
	pid := storage.PageID{TableID: 1, PageNum: 0, Kind: storage.HeapPageKind}
	hp := NewHeapPage(pid, desc)

	var lastErr error
	for i := 0; i < hp.Capacity()+1; i++ {
		_, lastErr = hp.Insert(newTuple(i, "x", desc))
	}
	assert.ErrorIs(t, lastErr, dberrors.ErrPageFull)
}

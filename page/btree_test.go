package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/storage"
	"coredb/types"
)

func TestLeafPageInsertKeepsSortedOrder(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	pid := storage.PageID{TableID: 1, PageNum: 1, Kind: storage.LeafPageKind}
	lp := NewBTreeLeafPage(pid, types.IntType)

	require.NoError(t, lp.Insert(types.Int(5), 10, 0))
	require.NoError(t, lp.Insert(types.Int(1), 10, 1))
	require.NoError(t, lp.Insert(types.Int(3), 10, 2))

	entries := lp.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, types.Int(1), entries[0].Key)
	assert.Equal(t, types.Int(3), entries[1].Key)
	assert.Equal(t, types.Int(5), entries[2].Key)
}

func TestLeafPageBytesRoundTrip(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	pid := storage.PageID{TableID: 1, PageNum: 1, Kind: storage.LeafPageKind}
	lp := NewBTreeLeafPage(pid, types.IntType)
	require.NoError(t, lp.Insert(types.Int(7), 2, 3))
	lp.SetParentPageNum(4)
	lp.SetRightSiblingPageNum(9)

	encoded := lp.Bytes()
	decoded := DecodeBTreeLeafPage(pid, types.IntType, encoded)
	assert.Equal(t, 4, decoded.ParentPageNum())
	assert.Equal(t, 9, decoded.RightSiblingPageNum())
	require.Len(t, decoded.Entries(), 1)
	assert.Equal(t, types.Int(7), decoded.Entries()[0].Key)
}

func TestLeafPageTakeUpperHalfSplitsEvenly(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	pid := storage.PageID{TableID: 1, PageNum: 1, Kind: storage.LeafPageKind}
	lp := NewBTreeLeafPage(pid, types.IntType)
	full := lp.Capacity()
	for i := 0; i < full; i++ {
		require.NoError(t, lp.Insert(types.Int(i), 1, i))
	}

	upper := lp.TakeUpperHalf()
	total := lp.NumEntries() + len(upper)
	assert.Equal(t, full, total)
	assert.True(t, full/2 == lp.NumEntries() || full/2+1 == lp.NumEntries())
}

func TestInternalPageInsertEntryAndBytesRoundTrip(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	pid := storage.PageID{TableID: 1, PageNum: 1, Kind: storage.InternalPageKind}
	ip := NewBTreeInternalPage(pid, types.IntType, storage.LeafPageKind)
	ip.InitRoot(types.Int(10), 2, 3)
	require.NoError(t, ip.InsertEntry(1, types.Int(20), 4))

	assert.Equal(t, []types.Value{types.Int(10), types.Int(20)}, ip.Keys())
	assert.Equal(t, []int{2, 3, 4}, ip.Children())

	encoded := ip.Bytes()
	decoded := DecodeBTreeInternalPage(pid, types.IntType, encoded)
	assert.Equal(t, ip.Keys(), decoded.Keys())
	assert.Equal(t, ip.Children(), decoded.Children())
}

func TestRootPointerPageBytesRoundTrip(t *testing.T) {
	storage.SetPageSize(256)
	defer storage.ResetPageSize()

	pid := storage.PageID{TableID: 1, PageNum: 0, Kind: storage.RootPointerPageKind}
	rp := NewBTreeRootPointerPage(pid, 2, storage.LeafPageKind)
	rp.SetEmptyListHead(5)

	decoded := DecodeBTreeRootPointerPage(pid, rp.Bytes())
	assert.Equal(t, 2, decoded.RootPageNum())
	assert.Equal(t, storage.LeafPageKind, decoded.RootKind())
	assert.Equal(t, 5, decoded.EmptyListHead())
}

package btree

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"coredb/storage"
	"coredb/tuple"
	"coredb/txid"
	"coredb/types"
)

type fakePool struct {
	pages map[storage.PageID]storage.Page
	file  *File
}

func newFakePool(bf *File) *fakePool {
	return &fakePool{pages: make(map[storage.PageID]storage.Page), file: bf}
}

func (p *fakePool) GetPage(tid txid.ID, pid storage.PageID, perm storage.Permission) (storage.Page, error) {
	if pg, ok := p.pages[pid]; ok {
		return pg, nil
	}
	pg, err := p.file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	p.pages[pid] = pg
	return pg, nil
}

func (p *fakePool) AdoptDirtyPages(tid txid.ID, pages []storage.Page) error {
	for _, pg := range pages {
		p.pages[pg.ID()] = pg
	}
	return nil
}

func (p *fakePool) DiscardPage(pid storage.PageID) {
	delete(p.pages, pid)
}

func openTestIndex(t *testing.T) (*File, *fakePool) {
	t.Helper()
	storage.SetPageSize(256)
	t.Cleanup(storage.ResetPageSize)

	path := filepath.Join(t.TempDir(), uuid.New().String()+".btree")
	bf, err := Open(path, 1, 2, types.IntType)
	require.NoError(t, err)
	return bf, newFakePool(bf)
}

func rid(n int) tuple.RecordID {
	return tuple.RecordID{PageID: storage.PageID{TableID: 2, PageNum: n, Kind: storage.HeapPageKind}, SlotNumber: 0}
}

func collect(t *testing.T, bf *File, pool *fakePool) []int {
	t.Helper()
	it, err := bf.NewIterator(pool, txid.New(), nil, types.Equals)
	require.NoError(t, err)
	var out []int
	for {
		e, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, int(e.Key.(types.Int)))
	}
	return out
}

func TestInsertManyIteratesInNonDecreasingOrder(t *testing.T) {
	bf, pool := openTestIndex(t)
	tid := txid.New()

	const n = 150
	for i := n - 1; i >= 0; i-- {
		_, err := bf.InsertEntry(pool, tid, types.Int(i), rid(i))
		require.NoError(t, err)
	}

	got := collect(t, bf, pool)
	require.Len(t, got, n)
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1], got[i])
	}
}

func TestInsertTriggersLeafSplit(t *testing.T) {
	bf, pool := openTestIndex(t)
	tid := txid.New()

	var count int
	for i := 0; ; i++ {
		_, err := bf.InsertEntry(pool, tid, types.Int(i), rid(i))
		require.NoError(t, err)
		count++
		numPages, err := bf.NumPages()
		require.NoError(t, err)
		if numPages > 2 {
			break
		}
		if count > 500 {
			t.Fatal("expected a leaf split within 500 inserts")
		}
	}
	got := collect(t, bf, pool)
	require.Len(t, got, count)
}

func TestInsertDeleteRoundTripEmptiesTree(t *testing.T) {
	bf, pool := openTestIndex(t)
	tid := txid.New()

	const n = 120
	for i := 0; i < n; i++ {
		_, err := bf.InsertEntry(pool, tid, types.Int(i), rid(i))
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		_, err := bf.DeleteEntry(pool, tid, types.Int(i), rid(i))
		require.NoError(t, err)
	}

	got := collect(t, bf, pool)
	require.Empty(t, got)
}

func TestDeleteNonexistentEntryErrors(t *testing.T) {
	bf, pool := openTestIndex(t)
	tid := txid.New()

	_, err := bf.InsertEntry(pool, tid, types.Int(1), rid(1))
	require.NoError(t, err)

	_, err = bf.DeleteEntry(pool, tid, types.Int(99), rid(99))
	require.Error(t, err)
}

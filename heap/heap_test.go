package heap

import (
	"os"
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
	files map[int]*File
}

func newFakePool() *fakePool {
	return &fakePool{pages: make(map[storage.PageID]storage.Page), files: make(map[int]*File)}
}

func (p *fakePool) GetPage(tid txid.ID, pid storage.PageID, perm storage.Permission) (storage.Page, error) {
	if pg, ok := p.pages[pid]; ok {
		return pg, nil
	}
	f := p.files[pid.TableID]
	pg, err := f.ReadPage(pid)
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

func openTestHeap(t *testing.T) (*File, *fakePool) {
	t.Helper()
	storage.SetPageSize(512)
	t.Cleanup(storage.ResetPageSize)

	desc := tuple.NewDesc(tuple.FieldDesc{Name: "v", Type: types.IntType})
	path := filepath.Join(t.TempDir(), uuid.New().String()+".heap")
	hf, err := Open(path, 1, desc)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	pool := newFakePool()
	pool.files[1] = hf
	return hf, pool
}

func TestHeapInsertGrowsFileAndScanSeesAll(t *testing.T) {
	hf, pool := openTestHeap(t)
	tid := txid.New()

	const n = 200
	for i := 0; i < n; i++ {
		tp := tuple.NewTuple(hf.Desc())
		require.NoError(t, tp.SetField(0, types.Int(i)))
		_, err := hf.InsertTuple(pool, tid, tp)
		require.NoError(t, err)
	}

	numPages, err := hf.NumPages()
	require.NoError(t, err)
	require.Greater(t, numPages, 1)

	cursor, err := hf.Scan(pool, tid)
	require.NoError(t, err)
	count := 0
	for {
		_, ok, err := cursor.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, n, count)
}

func TestHeapDeleteClearsSlot(t *testing.T) {
	hf, pool := openTestHeap(t)
	tid := txid.New()

	tp := tuple.NewTuple(hf.Desc())
	require.NoError(t, tp.SetField(0, types.Int(42)))
	_, err := hf.InsertTuple(pool, tid, tp)
	require.NoError(t, err)

	_, err = hf.DeleteTuple(pool, tid, tp)
	require.NoError(t, err)

	cursor, err := hf.Scan(pool, tid)
	require.NoError(t, err)
	_, ok, err := cursor.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

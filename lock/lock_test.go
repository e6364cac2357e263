package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coredb/storage"
	"coredb/txid"
)

func testPage() storage.PageID {
	return storage.PageID{TableID: 1, PageNum: 0, Kind: storage.HeapPageKind}
}

func TestSharedLocksAreCompatible(t *testing.T) {
	m := NewManager()
	pid := testPage()
	t1, t2 := txid.New(), txid.New()

	done := make(chan struct{})
	go func() {
		m.Acquire(t2, pid, storage.ReadOnly)
		close(done)
	}()
	m.Acquire(t1, pid, storage.ReadOnly)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second shared acquire should not block")
	}
	assert.True(t, m.Holds(t1, pid))
	assert.True(t, m.Holds(t2, pid))
}

func TestExclusiveExcludesOthers(t *testing.T) {
	m := NewManager()
	pid := testPage()
	t1, t2 := txid.New(), txid.New()

	m.Acquire(t1, pid, storage.ReadWrite)

	acquired := make(chan struct{})
	go func() {
		m.Acquire(t2, pid, storage.ReadWrite)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("exclusive acquire should block while t1 holds the write lock")
	case <-time.After(100 * time.Millisecond):
	}

	m.Release(t1, pid)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("t2 should acquire after t1 releases")
	}
}

func TestSelfUpgradeFromSoleReaderToWriter(t *testing.T) {
	m := NewManager()
	pid := testPage()
	tid := txid.New()

	m.Acquire(tid, pid, storage.ReadOnly)

	done := make(chan struct{})
	go func() {
		m.Acquire(tid, pid, storage.ReadWrite)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sole reader should be able to upgrade to writer")
	}
	assert.True(t, m.Holds(tid, pid))
}

func TestReleaseAllDropsEveryHeldPage(t *testing.T) {
	m := NewManager()
	pid1 := testPage()
	pid2 := storage.PageID{TableID: 1, PageNum: 1, Kind: storage.HeapPageKind}
	tid := txid.New()

	m.Acquire(tid, pid1, storage.ReadOnly)
	m.Acquire(tid, pid2, storage.ReadWrite)
	require.Len(t, m.PagesHeldBy(tid), 2)

	m.ReleaseAll(tid)
	assert.Empty(t, m.PagesHeldBy(tid))
	assert.False(t, m.Holds(tid, pid1))
	assert.False(t, m.Holds(tid, pid2))
}

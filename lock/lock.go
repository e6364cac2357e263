// Package lock implements the page-level shared/exclusive lock manager
// that the buffer pool consults before handing a page to a transaction.
// Unlike the teacher's channel-per-request lock manager, this one follows
// the classic monitor pattern -- a single mutex plus a single condition
// variable shared by all pages -- and carries no deadlock detector: callers that need
// liveness guarantees are expected to apply their own timeout or
// wait-die policy above this package.
package lock

import (
	"sync"

	"coredb/storage"
	"coredb/txid"
)

// entry tracks the current holders of a single page's lock.
type entry struct {
	readers map[txid.ID]bool
	writer  txid.ID // zero means "no writer"
}

func newEntry() *entry {
	return &entry{readers: make(map[txid.ID]bool)}
}

func (e *entry) hasWriter() bool { return e.writer != 0 }

// canGrant reports whether tid can be granted mode given the entry's
// current holders.
func (e *entry) canGrant(tid txid.ID, mode storage.Permission) bool {
	if mode == storage.ReadOnly {
		// Shared is compatible with any set of readers, and with a writer
		// only if that writer is the requester itself (lock upgrade path).
		return !e.hasWriter() || e.writer == tid
	}
	// ReadWrite requires either no other holders, or this transaction
	// already being the sole reader (upgrade).
	if e.hasWriter() {
		return e.writer == tid
	}
	if len(e.readers) == 0 {
		return true
	}
	return len(e.readers) == 1 && e.readers[tid]
}

// Manager is a page-level lock manager. All locks are released together
// through ReleaseAll when a transaction ends, per the NO-STEAL/FORCE
// commit protocol it serves.
type Manager struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[storage.PageID]*entry
	// held indexes, per transaction, which pages it currently locks and at
	// what permission -- used by Holds and ReleaseAll.
	held map[txid.ID]map[storage.PageID]storage.Permission
}

// NewManager constructs an empty lock manager.
func NewManager() *Manager {
	m := &Manager{
		entries: make(map[storage.PageID]*entry),
		held:    make(map[txid.ID]map[storage.PageID]storage.Permission),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Acquire blocks until tid holds pid at at least the requested
// permission, or forever if no other transaction ever releases a
// conflicting lock -- this package performs no deadlock detection.
func (m *Manager) Acquire(tid txid.ID, pid storage.PageID, mode storage.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[pid]
	if !ok {
		e = newEntry()
		m.entries[pid] = e
	}

	for !e.canGrant(tid, mode) {
		m.cond.Wait()
		e = m.entries[pid]
	}

	if mode == storage.ReadWrite {
		if e.hasWriter() && e.writer == tid {
			// already the writer
		} else {
			delete(e.readers, tid)
			e.writer = tid
		}
	} else {
		e.readers[tid] = true
	}

	txLocks, ok := m.held[tid]
	if !ok {
		txLocks = make(map[storage.PageID]storage.Permission)
		m.held[tid] = txLocks
	}
	if cur, held := txLocks[pid]; !held || mode == storage.ReadWrite && cur == storage.ReadOnly {
		txLocks[pid] = mode
	}
}

// Holds reports whether tid currently holds any lock on pid.
func (m *Manager) Holds(tid txid.ID, pid storage.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[tid][pid]
	return ok
}

// Release drops tid's lock on pid, if any, waking any transactions
// waiting on that page.
func (m *Manager) Release(tid txid.ID, pid storage.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(tid, pid)
	m.cond.Broadcast()
}

func (m *Manager) releaseLocked(tid txid.ID, pid storage.PageID) {
	e, ok := m.entries[pid]
	if !ok {
		return
	}
	delete(e.readers, tid)
	if e.writer == tid {
		e.writer = 0
	}
	if txLocks, ok := m.held[tid]; ok {
		delete(txLocks, pid)
		if len(txLocks) == 0 {
			delete(m.held, tid)
		}
	}
}

// ReleaseAll drops every lock tid holds, as is done on transaction commit
// or abort.
func (m *Manager) ReleaseAll(tid txid.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid := range m.held[tid] {
		m.releaseLocked(tid, pid)
	}
	m.cond.Broadcast()
}

// PagesHeldBy returns the set of pages tid currently locks.
func (m *Manager) PagesHeldBy(tid txid.ID) []storage.PageID {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages := make([]storage.PageID, 0, len(m.held[tid]))
	for pid := range m.held[tid] {
		pages = append(pages, pid)
	}
	return pages
}

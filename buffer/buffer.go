// Package buffer implements the NO-STEAL buffer pool: the single choke
// point through which every access method reads and writes pages. It
// acquires page locks, caches pages up to a fixed capacity, tracks each
// transaction's undo before-images, and flushes or rolls back on
// transaction completion.
package buffer

import (
	"sync"

	"github.com/pkg/errors"

	"coredb/dberrors"
	"coredb/lock"
	"coredb/logging"
	"coredb/storage"
	"coredb/txid"
)

// DbFile is the minimal file contract the buffer pool needs from a heap
// or B+Tree file: read/write one page by id, independent of how that
// file lays pages out on disk. Defined here (rather than importing
// catalog or heap/btree) to avoid an import cycle -- catalog implements
// FileRegistry and heap/btree files implement DbFile structurally.
type DbFile interface {
	ReadPage(pid storage.PageID) (storage.Page, error)
	WritePage(p storage.Page) error
}

// FileRegistry resolves a table id to its backing file. The catalog
// package implements this.
type FileRegistry interface {
	Resolve(tableID int) (DbFile, bool)
}

type cacheEntry struct {
	page storage.Page
	seq  int64 // insertion order, for oldest-clean eviction scan
}

// undoEntry pairs a page's identity with the before-image to restore on
// abort.
type undoEntry struct {
	pid    storage.PageID
	before storage.Page
}

// Stats are diagnostic counters, not part of the transactional contract.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Pool is the NO-STEAL buffer pool described in the component design:
// bounded cache, lock-mediated access, per-transaction undo lists.
type Pool struct {
	mu       sync.Mutex
	capacity int
	cache    map[storage.PageID]*cacheEntry
	seqNext  int64

	files FileRegistry
	locks *lock.Manager

	undo map[txid.ID][]undoEntry

	stats Stats
}

// New constructs a buffer pool of the given page capacity, backed by
// files and guarded by locks.
func New(capacity int, files FileRegistry, locks *lock.Manager) *Pool {
	return &Pool{
		capacity: capacity,
		cache:    make(map[storage.PageID]*cacheEntry),
		files:    files,
		locks:    locks,
		undo:     make(map[txid.ID][]undoEntry),
	}
}

func (b *Pool) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// GetPage locks pid at perm for tid, then returns the cached or
// newly-loaded page. The very first time a transaction observes a page,
// its before-image is captured for undo.
func (b *Pool) GetPage(tid txid.ID, pid storage.PageID, perm storage.Permission) (storage.Page, error) {
	b.locks.Acquire(tid, pid, perm)

	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.cache[pid]; ok {
		b.stats.Hits++
		b.recordUndoLocked(tid, pid, entry.page)
		return entry.page, nil
	}
	b.stats.Misses++

	if len(b.cache) >= b.capacity {
		if err := b.evictLocked(); err != nil {
			return nil, err
		}
	}

	file, ok := b.files.Resolve(pid.TableID)
	if !ok {
		return nil, errors.Wrapf(dberrors.ErrNoSuchTable, "table id %d", pid.TableID)
	}
	p, err := file.ReadPage(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "reading page %+v", pid)
	}
	p.SetBeforeImage()

	b.seqNext++
	b.cache[pid] = &cacheEntry{page: p, seq: b.seqNext}
	b.recordUndoLocked(tid, pid, p)
	return p, nil
}

// recordUndoLocked enqueues pid into tid's undo list the first time tid
// sees it in the current transaction. Called with b.mu held.
func (b *Pool) recordUndoLocked(tid txid.ID, pid storage.PageID, page storage.Page) {
	for _, e := range b.undo[tid] {
		if e.pid == pid {
			return
		}
	}
	b.undo[tid] = append(b.undo[tid], undoEntry{pid: pid, before: page.BeforeImage()})
}

// evictLocked evicts the oldest clean page in insertion order. Called
// with b.mu held.
func (b *Pool) evictLocked() error {
	var victim storage.PageID
	var victimSeq int64 = -1
	for pid, entry := range b.cache {
		if entry.page.IsDirty() {
			continue
		}
		if victimSeq == -1 || entry.seq < victimSeq {
			victim = pid
			victimSeq = entry.seq
		}
	}
	if victimSeq == -1 {
		return dberrors.ErrBufferFull
	}
	delete(b.cache, victim)
	b.stats.Evictions++
	logging.Log.WithField("page", victim).Debug("evicted clean page")
	return nil
}

// cachePage inserts p into the cache, evicting first if at capacity, and
// records tid's undo entry. Used by AdoptDirtyPages for pages an
// access method dirtied that were not already resident (e.g. a freshly
// allocated heap page).
func (b *Pool) cachePage(tid txid.ID, p storage.Page) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pid := p.ID()
	if _, ok := b.cache[pid]; ok {
		b.recordUndoLocked(tid, pid, p)
		b.cache[pid].page = p
		return nil
	}
	if len(b.cache) >= b.capacity {
		if err := b.evictLocked(); err != nil {
			return err
		}
	}
	b.seqNext++
	b.cache[pid] = &cacheEntry{page: p, seq: b.seqNext}
	b.recordUndoLocked(tid, pid, p)
	return nil
}

// AdoptDirtyPages is called by an access method after it mutates a set of
// pages (possibly allocating new ones) outside of a prior GetPage call,
// to ensure every dirtied page is cached and its undo image recorded
// before the pages are handed back to the caller.
func (b *Pool) AdoptDirtyPages(tid txid.ID, pages []storage.Page) error {
	for _, p := range pages {
		p.MarkDirty(true)
		if err := b.cachePage(tid, p); err != nil {
			return err
		}
	}
	return nil
}

// FlushAllPages writes every dirty page back through its file and clears
// the dirty flag. Used for checkpoints outside the per-transaction path.
func (b *Pool) FlushAllPages() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for pid, entry := range b.cache {
		if !entry.page.IsDirty() {
			continue
		}
		if err := b.flushLocked(pid, entry); err != nil {
			return err
		}
	}
	return nil
}

// FlushPages flushes and clears tid's undo list without releasing locks.
func (b *Pool) FlushPages(tid txid.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.undo[tid] {
		entry, ok := b.cache[e.pid]
		if !ok {
			continue
		}
		if err := b.flushLocked(e.pid, entry); err != nil {
			return err
		}
	}
	delete(b.undo, tid)
	return nil
}

func (b *Pool) flushLocked(pid storage.PageID, entry *cacheEntry) error {
	file, ok := b.files.Resolve(pid.TableID)
	if !ok {
		return errors.Wrapf(dberrors.ErrNoSuchTable, "table id %d", pid.TableID)
	}
	if err := file.WritePage(entry.page); err != nil {
		return errors.Wrapf(err, "flushing page %+v", pid)
	}
	entry.page.MarkDirty(false)
	entry.page.SetBeforeImage()
	return nil
}

// TransactionComplete ends tid: on commit it flushes tid's dirty pages;
// on abort it writes each page's before-image back through its file and
// replaces the cached copy with that before-image. Either way every lock
// tid holds is released only after the flush/undo has completed.
func (b *Pool) TransactionComplete(tid txid.ID, commit bool) error {
	if commit {
		if err := b.FlushPages(tid); err != nil {
			return err
		}
	} else {
		if err := b.undoLocked(tid); err != nil {
			return err
		}
	}
	b.locks.ReleaseAll(tid)
	return nil
}

func (b *Pool) undoLocked(tid txid.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.undo[tid]
	delete(b.undo, tid)
	for _, e := range entries {
		file, ok := b.files.Resolve(e.pid.TableID)
		if !ok {
			return errors.Wrapf(dberrors.ErrNoSuchTable, "table id %d", e.pid.TableID)
		}
		if err := file.WritePage(e.before); err != nil {
			return errors.Wrapf(err, "restoring before-image for %+v", e.pid)
		}
		e.before.MarkDirty(false)
		if entry, ok := b.cache[e.pid]; ok {
			entry.page = e.before
		}
		logging.Log.WithField("page", e.pid).Debug("restored before-image on abort")
	}
	return nil
}

// DiscardPage drops pid from the cache without flushing. The B+Tree uses
// this when returning a page to the free list.
func (b *Pool) DiscardPage(pid storage.PageID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cache, pid)
}

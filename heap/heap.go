// Package heap implements the unordered, paged table file: a flat
// concatenation of slotted heap pages. Access methods here never touch
// the OS file directly for insert/delete/scan -- only ReadPage/WritePage
// do raw I/O; everything else goes through a buffer pool.
package heap

import (
	"os"
	"sync"

	"github.com/pkg/errors"

	"coredb/dberrors"
	"coredb/page"
	"coredb/storage"
	"coredb/tuple"
	"coredb/txid"
)

// Pool is the slice of buffer.Pool's behavior the heap file needs. A
// locally declared interface, satisfied structurally by *buffer.Pool,
// keeps this package free of a dependency on package buffer.
type Pool interface {
	GetPage(tid txid.ID, pid storage.PageID, perm storage.Permission) (storage.Page, error)
	AdoptDirtyPages(tid txid.ID, pages []storage.Page) error
}

// File is a heap table file backed by an OS file.
type File struct {
	mu      sync.Mutex
	path    string
	tableID int
	desc    *tuple.Desc
	f       *os.File
}

// Open opens (creating if necessary) the heap file at path for the given
// schema, registered under tableID.
func Open(path string, tableID int, desc *tuple.Desc) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(dberrors.ErrIoFailure, "opening heap file %q: %v", path, err)
	}
	return &File{path: path, tableID: tableID, desc: desc, f: f}, nil
}

func (hf *File) TableID() int { return hf.tableID }

func (hf *File) Desc() *tuple.Desc { return hf.desc }

// NumPages returns ceil(file_length / PAGE_SIZE).
func (hf *File) NumPages() (int, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	info, err := hf.f.Stat()
	if err != nil {
		return 0, errors.Wrapf(dberrors.ErrIoFailure, "statting heap file %q: %v", hf.path, err)
	}
	ps := int64(storage.PageSize())
	return int((info.Size() + ps - 1) / ps), nil
}

// ReadPage implements buffer.DbFile. A short file tail is treated as an
// all-empty page.
func (hf *File) ReadPage(pid storage.PageID) (storage.Page, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	ps := storage.PageSize()
	buf := make([]byte, ps)
	off := int64(pid.PageNum) * int64(ps)
	n, err := hf.f.ReadAt(buf, off)
	if err != nil && n == 0 {
		// Short or missing tail: zero-filled empty page.
		return page.DecodeHeapPage(pid, hf.desc, buf), nil
	}
	return page.DecodeHeapPage(pid, hf.desc, buf), nil
}

// WritePage implements buffer.DbFile, extending the file if necessary.
func (hf *File) WritePage(p storage.Page) error {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	ps := storage.PageSize()
	off := int64(p.ID().PageNum) * int64(ps)
	if _, err := hf.f.WriteAt(p.Bytes(), off); err != nil {
		return errors.Wrapf(dberrors.ErrIoFailure, "writing heap page %+v: %v", p.ID(), err)
	}
	return nil
}

// InsertTuple scans pages for the first with room, or allocates a new
// page, and returns the set of dirtied pages.
func (hf *File) InsertTuple(pool Pool, tid txid.ID, t *tuple.Tuple) ([]storage.Page, error) {
	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}

	for i := 0; i < numPages; i++ {
		pid := storage.PageID{TableID: hf.tableID, PageNum: i, Kind: storage.HeapPageKind}
		p, err := pool.GetPage(tid, pid, storage.ReadWrite)
		if err != nil {
			return nil, err
		}
		hp := p.(*page.HeapPage)
		if hp.NumEmptySlots() == 0 {
			continue
		}
		if _, err := hp.Insert(t); err != nil {
			return nil, err
		}
		if err := pool.AdoptDirtyPages(tid, []storage.Page{hp}); err != nil {
			return nil, err
		}
		return []storage.Page{hp}, nil
	}

	// No page had room: allocate a new one, write it immediately so the
	// page count advances for subsequent callers.
	pid := storage.PageID{TableID: hf.tableID, PageNum: numPages, Kind: storage.HeapPageKind}
	hp := page.NewHeapPage(pid, hf.desc)
	if _, err := hp.Insert(t); err != nil {
		return nil, err
	}
	if err := hf.WritePage(hp); err != nil {
		return nil, err
	}
	if err := pool.AdoptDirtyPages(tid, []storage.Page{hp}); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// DeleteTuple clears t's slot via the page named by its RecordId.
func (hf *File) DeleteTuple(pool Pool, tid txid.ID, t *tuple.Tuple) ([]storage.Page, error) {
	rid := t.RecordID()
	if rid == nil {
		return nil, dberrors.ErrSlotEmpty
	}
	p, err := pool.GetPage(tid, rid.PageID, storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := p.(*page.HeapPage)
	if err := hp.Delete(t); err != nil {
		return nil, err
	}
	if err := pool.AdoptDirtyPages(tid, []storage.Page{hp}); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// Cursor is a read-only scan over every tuple in the file, advancing page
// by page.
type Cursor struct {
	hf       *File
	pool     Pool
	tid      txid.ID
	pageNum  int
	numPages int
	buf      []*tuple.Tuple
	pos      int
}

// Scan opens a fresh cursor positioned before the first tuple.
func (hf *File) Scan(pool Pool, tid txid.ID) (*Cursor, error) {
	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}
	return &Cursor{hf: hf, pool: pool, tid: tid, numPages: numPages}, nil
}

// Next returns the next tuple, or (nil, false) when the scan is
// exhausted.
func (c *Cursor) Next() (*tuple.Tuple, bool, error) {
	for {
		if c.pos < len(c.buf) {
			t := c.buf[c.pos]
			c.pos++
			return t, true, nil
		}
		if c.pageNum >= c.numPages {
			return nil, false, nil
		}
		pid := storage.PageID{TableID: c.hf.tableID, PageNum: c.pageNum, Kind: storage.HeapPageKind}
		p, err := c.pool.GetPage(c.tid, pid, storage.ReadOnly)
		if err != nil {
			return nil, false, err
		}
		c.buf = p.(*page.HeapPage).Iterator()
		c.pos = 0
		c.pageNum++
	}
}

// Rewind restarts the cursor at page 0.
func (c *Cursor) Rewind() {
	c.pageNum = 0
	c.buf = nil
	c.pos = 0
}

// Package btree implements the ordered index file: insertion with
// recursive node splits, deletion with redistribution/merge, and
// predicate-filtered range scans. A btree.File indexes a single key
// field and stores, per entry, that key plus the RecordId of the tuple
// it points to in the table being indexed -- the File never holds full
// tuples itself.
package btree

import (
	"os"
	"sync"

	"github.com/pkg/errors"

	"coredb/dberrors"
	"coredb/page"
	"coredb/storage"
	"coredb/tuple"
	"coredb/txid"
	"coredb/types"
)

// Pool is the slice of buffer.Pool behavior this package needs, declared
// locally (as heap.Pool is) to avoid importing package buffer.
type Pool interface {
	GetPage(tid txid.ID, pid storage.PageID, perm storage.Permission) (storage.Page, error)
	AdoptDirtyPages(tid txid.ID, pages []storage.Page) error
	DiscardPage(pid storage.PageID)
}

// dirtySet is the explicit mutable mapping threaded through every
// mutating call, per the dirty-page propagation design: the buffer pool
// fills it via fetch, the access method adds to it on allocation, and the
// caller treats the union as the pin/dirty set.
type dirtySet map[storage.PageID]storage.Page

// Entry is one (key, RecordId) pair an index scan yields. The RecordId
// names a slot in the heap file this index covers; this package stores
// only the heap page number and slot per entry (spec's on-disk entry
// format), so a scan reattaches the indexed heap table's id and
// HeapPageKind when reconstructing the RecordId.
type Entry struct {
	Key types.Value
	RID tuple.RecordID
}

// File is a B+Tree index file over a single key field.
type File struct {
	mu          sync.Mutex
	path        string
	tableID     int
	heapTableID int
	keyField    types.FieldType
	f           *os.File
}

// Open opens (creating and initializing if necessary) the B+Tree file at
// path, indexing a column of type keyField, registered under tableID, and
// pointing into the heap table heapTableID.
func Open(path string, tableID int, heapTableID int, keyField types.FieldType) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(dberrors.ErrIoFailure, "opening btree file %q: %v", path, err)
	}
	bf := &File{path: path, tableID: tableID, heapTableID: heapTableID, keyField: keyField, f: f}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(dberrors.ErrIoFailure, "statting btree file %q: %v", path, err)
	}
	if info.Size() == 0 {
		rp := page.NewBTreeRootPointerPage(bf.pageID(0, storage.RootPointerPageKind), 0, storage.LeafPageKind)
		if err := bf.WritePage(rp); err != nil {
			return nil, err
		}
	}
	return bf, nil
}

func (bf *File) TableID() int { return bf.tableID }

func (bf *File) pageID(num int, kind storage.PageKind) storage.PageID {
	return storage.PageID{TableID: bf.tableID, PageNum: num, Kind: kind}
}

// NumPages returns ceil(file_length / PAGE_SIZE).
func (bf *File) NumPages() (int, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	info, err := bf.f.Stat()
	if err != nil {
		return 0, errors.Wrapf(dberrors.ErrIoFailure, "statting btree file %q: %v", bf.path, err)
	}
	ps := int64(storage.PageSize())
	return int((info.Size() + ps - 1) / ps), nil
}

// ReadPage implements buffer.DbFile.
func (bf *File) ReadPage(pid storage.PageID) (storage.Page, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	ps := storage.PageSize()
	buf := make([]byte, ps)
	off := int64(pid.PageNum) * int64(ps)
	_, _ = bf.f.ReadAt(buf, off) // short/missing tail reads as zero page

	switch pid.Kind {
	case storage.RootPointerPageKind:
		return page.DecodeBTreeRootPointerPage(pid, buf), nil
	case storage.LeafPageKind:
		return page.DecodeBTreeLeafPage(pid, bf.keyField, buf), nil
	case storage.InternalPageKind:
		return page.DecodeBTreeInternalPage(pid, bf.keyField, buf), nil
	default:
		return nil, errors.Errorf("unknown btree page kind %v", pid.Kind)
	}
}

// WritePage implements buffer.DbFile, extending the file if necessary.
func (bf *File) WritePage(p storage.Page) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	ps := storage.PageSize()
	off := int64(p.ID().PageNum) * int64(ps)
	if _, err := bf.f.WriteAt(p.Bytes(), off); err != nil {
		return errors.Wrapf(dberrors.ErrIoFailure, "writing btree page %+v: %v", p.ID(), err)
	}
	return nil
}

// readRawNextPointer reads the 4-byte "next free page" pointer stored in
// the first 4 bytes of a page that has been freed -- valid only for pages
// currently on the free list, whose prior typed content no longer
// matters.
func (bf *File) readRawNextPointer(pageNum int) (int, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	buf := make([]byte, 4)
	off := int64(pageNum) * int64(storage.PageSize())
	if _, err := bf.f.ReadAt(buf, off); err != nil {
		return 0, errors.Wrapf(dberrors.ErrIoFailure, "reading free-list pointer at page %d: %v", pageNum, err)
	}
	return int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3]), nil
}

func (bf *File) writeRawNextPointer(pageNum int, next int) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	buf := make([]byte, storage.PageSize())
	buf[0] = byte(next >> 24)
	buf[1] = byte(next >> 16)
	buf[2] = byte(next >> 8)
	buf[3] = byte(next)
	off := int64(pageNum) * int64(storage.PageSize())
	if _, err := bf.f.WriteAt(buf, off); err != nil {
		return errors.Wrapf(dberrors.ErrIoFailure, "writing free-list pointer at page %d: %v", pageNum, err)
	}
	return nil
}

func (bf *File) fetch(pool Pool, tid txid.ID, dirty dirtySet, pid storage.PageID, perm storage.Permission) (storage.Page, error) {
	if p, ok := dirty[pid]; ok {
		return p, nil
	}
	p, err := pool.GetPage(tid, pid, perm)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (bf *File) rootPointer(pool Pool, tid txid.ID, dirty dirtySet) (*page.BTreeRootPointerPage, error) {
	p, err := bf.fetch(pool, tid, dirty, bf.pageID(0, storage.RootPointerPageKind), storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	return p.(*page.BTreeRootPointerPage), nil
}

// allocatePage returns an unused page number, reusing the free list's
// head before extending the file.
func (bf *File) allocatePage(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage) (int, error) {
	if head := rp.EmptyListHead(); head != page.NoSibling {
		next, err := bf.readRawNextPointer(head)
		if err != nil {
			return 0, err
		}
		rp.SetEmptyListHead(next)
		dirty[rp.ID()] = rp
		return head, nil
	}
	numPages, err := bf.NumPages()
	if err != nil {
		return 0, err
	}
	if numPages == 0 {
		numPages = 1 // page 0 is always the root pointer
	}
	// Reserve the page on disk immediately, the way heap.File.InsertTuple
	// writes a freshly allocated page right away: otherwise NumPages stays
	// unchanged and a second allocation later in the same call would
	// collide on the same page number.
	if err := bf.reservePage(numPages); err != nil {
		return 0, err
	}
	return numPages, nil
}

// reservePage extends the file with a zero-filled page at pageNum so the
// file length -- and therefore NumPages -- advances right away.
func (bf *File) reservePage(pageNum int) error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	buf := make([]byte, storage.PageSize())
	off := int64(pageNum) * int64(storage.PageSize())
	if _, err := bf.f.WriteAt(buf, off); err != nil {
		return errors.Wrapf(dberrors.ErrIoFailure, "reserving btree page %d: %v", pageNum, err)
	}
	return nil
}

// freePage returns pid to the free list and discards it from the pool.
func (bf *File) freePage(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, pid storage.PageID) error {
	if err := bf.writeRawNextPointer(pid.PageNum, rp.EmptyListHead()); err != nil {
		return err
	}
	rp.SetEmptyListHead(pid.PageNum)
	dirty[rp.ID()] = rp
	delete(dirty, pid)
	pool.DiscardPage(pid)
	return nil
}

func (bf *File) newLeafPage(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage) (*page.BTreeLeafPage, error) {
	num, err := bf.allocatePage(pool, tid, dirty, rp)
	if err != nil {
		return nil, err
	}
	pid := bf.pageID(num, storage.LeafPageKind)
	lp := page.NewBTreeLeafPage(pid, bf.keyField)
	dirty[pid] = lp
	return lp, nil
}

func (bf *File) newInternalPage(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, childKind storage.PageKind) (*page.BTreeInternalPage, error) {
	num, err := bf.allocatePage(pool, tid, dirty, rp)
	if err != nil {
		return nil, err
	}
	pid := bf.pageID(num, storage.InternalPageKind)
	ip := page.NewBTreeInternalPage(pid, bf.keyField, childKind)
	dirty[pid] = ip
	return ip, nil
}

// findLeafPage descends from the given page, using op to choose among
// duplicate keys: EQUALS/GREATER* find the first separator greater than
// field (leftmost-duplicate policy); LESS* also descend leftward to
// include equal keys. A nil field forces the leftmost descent, for full
// scans.
func (bf *File) findLeafPage(pool Pool, tid txid.ID, dirty dirtySet, pid storage.PageID, field types.Value, op types.Op) (*page.BTreeLeafPage, error) {
	p, err := bf.fetch(pool, tid, dirty, pid, storage.ReadOnly)
	if err != nil {
		return nil, err
	}
	if pid.Kind == storage.LeafPageKind {
		return p.(*page.BTreeLeafPage), nil
	}
	ip := p.(*page.BTreeInternalPage)

	var childIdx int
	if field == nil {
		childIdx = 0
	} else {
		keys := ip.Keys()
		leftward := op == types.LessThan || op == types.LessThanOrEq
		childIdx = len(keys)
		for i, k := range keys {
			if leftward {
				if k.Compare(types.GreaterThanOrEq, field) {
					childIdx = i
					break
				}
			} else {
				if k.Compare(types.GreaterThan, field) {
					childIdx = i
					break
				}
			}
		}
	}
	children := ip.Children()
	childPid := bf.pageID(children[childIdx], ip.ChildKind())
	return bf.findLeafPage(pool, tid, dirty, childPid, field, op)
}

// getParentWithEmptySlots returns an internal page guaranteed to have
// room for one more entry, materializing a new root if childPid names the
// current root, or recursively splitting the existing parent if it is
// full. childParentNum is the splitting child's own ParentPageNum(),
// read directly off the already-fetched child page by the caller -- not
// re-derived here, since at the moment a split decides it needs a parent
// the child has not necessarily been placed into dirty yet.
func (bf *File) getParentWithEmptySlots(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, childPid storage.PageID, childParentNum int, key types.Value) (*page.BTreeInternalPage, error) {
	if rp.RootKind() == childPid.Kind && rp.RootPageNum() == childPid.PageNum {
		// childPid is currently the root: materialize a brand new root.
		newRoot, err := bf.newInternalPage(pool, tid, dirty, rp, childPid.Kind)
		if err != nil {
			return nil, err
		}
		newRoot.SetParentPageNum(page.NoSibling)
		rp.SetRoot(newRoot.ID().PageNum, storage.InternalPageKind)
		dirty[rp.ID()] = rp
		return newRoot, nil
	}

	parentPid := bf.pageID(childParentNum, storage.InternalPageKind)
	p, err := bf.fetch(pool, tid, dirty, parentPid, storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	parent := p.(*page.BTreeInternalPage)
	if parent.IsFull() {
		return bf.splitInternalPage(pool, tid, dirty, rp, parent, key)
	}
	return parent, nil
}

// splitLeafPage allocates a new right sibling for leaf, moves its upper
// half of entries there, patches sibling pointers, lifts the smallest key
// of the new page as a separator into the parent, and returns whichever
// of the two pages' key range contains key (ties go right).
func (bf *File) splitLeafPage(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, leaf *page.BTreeLeafPage, key types.Value) (*page.BTreeLeafPage, error) {
	newPage, err := bf.newLeafPage(pool, tid, dirty, rp)
	if err != nil {
		return nil, err
	}

	upper := leaf.TakeUpperHalf()
	newPage.AppendAll(upper)

	oldRightNum := leaf.RightSiblingPageNum()
	newPage.SetLeftSiblingPageNum(leaf.ID().PageNum)
	newPage.SetRightSiblingPageNum(oldRightNum)
	leaf.SetRightSiblingPageNum(newPage.ID().PageNum)
	if oldRightNum != page.NoSibling {
		oldRightPid := bf.pageID(oldRightNum, storage.LeafPageKind)
		p, err := bf.fetch(pool, tid, dirty, oldRightPid, storage.ReadWrite)
		if err != nil {
			return nil, err
		}
		oldRight := p.(*page.BTreeLeafPage)
		oldRight.SetLeftSiblingPageNum(newPage.ID().PageNum)
		dirty[oldRightPid] = oldRight
	}

	separator := newPage.Entries()[0].Key
	parent, err := bf.getParentWithEmptySlots(pool, tid, dirty, rp, leaf.ID(), leaf.ParentPageNum(), separator)
	if err != nil {
		return nil, err
	}
	idx := indexOfChild(parent, leaf.ID().PageNum)
	if idx == -1 {
		parent.InitRoot(separator, leaf.ID().PageNum, newPage.ID().PageNum)
	} else if err := parent.InsertEntry(idx, separator, newPage.ID().PageNum); err != nil {
		return nil, err
	}
	leaf.SetParentPageNum(parent.ID().PageNum)
	newPage.SetParentPageNum(parent.ID().PageNum)
	dirty[parent.ID()] = parent
	dirty[leaf.ID()] = leaf
	dirty[newPage.ID()] = newPage

	if separator.Compare(types.LessThanOrEq, key) {
		return newPage, nil
	}
	return leaf, nil
}

// splitInternalPage allocates a new sibling for node, pushes the middle
// key up to the parent (not copied), and returns the side whose range
// contains key (ties go left, per the distinct internal-split rule).
func (bf *File) splitInternalPage(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, node *page.BTreeInternalPage, key types.Value) (*page.BTreeInternalPage, error) {
	newPage, err := bf.newInternalPage(pool, tid, dirty, rp, node.ChildKind())
	if err != nil {
		return nil, err
	}

	middle, rightKeys, rightChildren := node.TakeUpperHalfKeepingMiddle()
	newPage.SetEntries(rightKeys, rightChildren)
	for _, c := range rightChildren {
		if err := bf.reparentChild(pool, tid, dirty, node.ChildKind(), c, newPage.ID().PageNum); err != nil {
			return nil, err
		}
	}

	parent, err := bf.getParentWithEmptySlots(pool, tid, dirty, rp, node.ID(), node.ParentPageNum(), middle)
	if err != nil {
		return nil, err
	}
	idx := indexOfChild(parent, node.ID().PageNum)
	if idx == -1 {
		parent.InitRoot(middle, node.ID().PageNum, newPage.ID().PageNum)
	} else if err := parent.InsertEntry(idx, middle, newPage.ID().PageNum); err != nil {
		return nil, err
	}
	node.SetParentPageNum(parent.ID().PageNum)
	newPage.SetParentPageNum(parent.ID().PageNum)
	dirty[parent.ID()] = parent
	dirty[node.ID()] = node
	dirty[newPage.ID()] = newPage

	if key.Compare(types.LessThanOrEq, middle) {
		return node, nil
	}
	return newPage, nil
}

func (bf *File) reparentChild(pool Pool, tid txid.ID, dirty dirtySet, childKind storage.PageKind, childNum int, newParentNum int) error {
	pid := bf.pageID(childNum, childKind)
	p, err := bf.fetch(pool, tid, dirty, pid, storage.ReadWrite)
	if err != nil {
		return err
	}
	switch c := p.(type) {
	case *page.BTreeLeafPage:
		c.SetParentPageNum(newParentNum)
		dirty[pid] = c
	case *page.BTreeInternalPage:
		c.SetParentPageNum(newParentNum)
		dirty[pid] = c
	}
	return nil
}

func indexOfChild(parent *page.BTreeInternalPage, childNum int) int {
	for i, c := range parent.Children() {
		if c == childNum {
			return i
		}
	}
	return -1
}

// InsertEntry finds the target leaf for key, splitting along the descent
// path as needed to make room, and inserts (key, rid).
func (bf *File) InsertEntry(pool Pool, tid txid.ID, key types.Value, rid tuple.RecordID) ([]storage.Page, error) {
	dirty := dirtySet{}
	rp, err := bf.rootPointer(pool, tid, dirty)
	if err != nil {
		return nil, err
	}
	if rp.RootPageNum() == page.NoSibling {
		leaf, err := bf.newLeafPage(pool, tid, dirty, rp)
		if err != nil {
			return nil, err
		}
		rp.SetRoot(leaf.ID().PageNum, storage.LeafPageKind)
		dirty[rp.ID()] = rp
	}

	rootPid := bf.pageID(rp.RootPageNum(), rp.RootKind())
	leaf, err := bf.findLeafPage(pool, tid, dirty, rootPid, key, types.Equals)
	if err != nil {
		return nil, err
	}
	if leaf.IsFull() {
		leaf, err = bf.splitLeafPage(pool, tid, dirty, rp, leaf, key)
		if err != nil {
			return nil, err
		}
	}
	if err := leaf.Insert(key, rid.PageID.PageNum, rid.SlotNumber); err != nil {
		return nil, err
	}
	dirty[leaf.ID()] = leaf

	pages := make([]storage.Page, 0, len(dirty))
	for _, p := range dirty {
		pages = append(pages, p)
	}
	if err := pool.AdoptDirtyPages(tid, pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// DeleteEntry removes the (key, rid) pair from its leaf, rebalancing by
// redistribution (preferring the left sibling) or merge, and collapsing
// the root if it becomes an internal page with a single child.
func (bf *File) DeleteEntry(pool Pool, tid txid.ID, key types.Value, rid tuple.RecordID) ([]storage.Page, error) {
	dirty := dirtySet{}
	rp, err := bf.rootPointer(pool, tid, dirty)
	if err != nil {
		return nil, err
	}
	if rp.RootPageNum() == page.NoSibling {
		return nil, dberrors.ErrSlotEmpty
	}

	rootPid := bf.pageID(rp.RootPageNum(), rp.RootKind())
	leaf, err := bf.findLeafPage(pool, tid, dirty, rootPid, key, types.Equals)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, e := range leaf.Entries() {
		if e.Key.Compare(types.Equals, key) && e.PageNumber == rid.PageID.PageNum && e.Slot == rid.SlotNumber {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, dberrors.ErrSlotEmpty
	}
	leaf.DeleteAt(idx)
	dirty[leaf.ID()] = leaf

	if err := bf.rebalanceLeaf(pool, tid, dirty, rp, leaf); err != nil {
		return nil, err
	}
	if err := bf.maybeCollapseRoot(pool, tid, dirty, rp); err != nil {
		return nil, err
	}

	pages := make([]storage.Page, 0, len(dirty))
	for _, p := range dirty {
		pages = append(pages, p)
	}
	if err := pool.AdoptDirtyPages(tid, pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func minOccupancy(capacity int) int { return (capacity + 1) / 2 }

func (bf *File) rebalanceLeaf(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, leaf *page.BTreeLeafPage) error {
	if leaf.ParentPageNum() == page.NoSibling {
		return nil // root leaf: no minimum occupancy rule
	}
	if leaf.NumEntries() >= minOccupancy(leaf.Capacity()) {
		return nil
	}

	if leaf.LeftSiblingPageNum() != page.NoSibling {
		leftPid := bf.pageID(leaf.LeftSiblingPageNum(), storage.LeafPageKind)
		p, err := bf.fetch(pool, tid, dirty, leftPid, storage.ReadWrite)
		if err != nil {
			return err
		}
		left := p.(*page.BTreeLeafPage)
		if left.NumEntries() > minOccupancy(left.Capacity()) {
			return bf.redistributeLeaves(pool, tid, dirty, rp, left, leaf)
		}
		return bf.mergeLeaves(pool, tid, dirty, rp, left, leaf)
	}
	if leaf.RightSiblingPageNum() != page.NoSibling {
		rightPid := bf.pageID(leaf.RightSiblingPageNum(), storage.LeafPageKind)
		p, err := bf.fetch(pool, tid, dirty, rightPid, storage.ReadWrite)
		if err != nil {
			return err
		}
		right := p.(*page.BTreeLeafPage)
		if right.NumEntries() > minOccupancy(right.Capacity()) {
			return bf.redistributeLeaves(pool, tid, dirty, rp, leaf, right)
		}
		return bf.mergeLeaves(pool, tid, dirty, rp, leaf, right)
	}
	return nil
}

// redistributeLeaves shifts entries from the fuller of left/right into
// the other so both meet minimum occupancy, then updates the parent's
// separator key to the new boundary (the smallest key of the right page).
func (bf *File) redistributeLeaves(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, left, right *page.BTreeLeafPage) error {
	total := left.NumEntries() + right.NumEntries()
	target := total / 2

	for left.NumEntries() > target {
		e := left.Entries()[left.NumEntries()-1]
		left.DeleteAt(left.NumEntries() - 1)
		_ = right.Insert(e.Key, e.PageNumber, e.Slot)
	}
	for right.NumEntries() > 0 && left.NumEntries() < target {
		e := right.Entries()[0]
		right.DeleteAt(0)
		_ = left.Insert(e.Key, e.PageNumber, e.Slot)
	}

	parentPid := bf.pageID(left.ParentPageNum(), storage.InternalPageKind)
	p, err := bf.fetch(pool, tid, dirty, parentPid, storage.ReadWrite)
	if err != nil {
		return err
	}
	parent := p.(*page.BTreeInternalPage)
	newSeparator := right.Entries()[0].Key
	for i, c := range parent.Children() {
		if c == right.ID().PageNum && i > 0 {
			parent.Keys()[i-1] = newSeparator
		}
	}
	dirty[parent.ID()] = parent
	dirty[left.ID()] = left
	dirty[right.ID()] = right
	return nil
}

// mergeLeaves concatenates right into left, unlinks right from the
// sibling chain, returns it to the free list, and recursively deletes the
// obsolete parent entry.
func (bf *File) mergeLeaves(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, left, right *page.BTreeLeafPage) error {
	left.AppendAll(right.Entries())
	left.SetRightSiblingPageNum(right.RightSiblingPageNum())
	if right.RightSiblingPageNum() != page.NoSibling {
		rrPid := bf.pageID(right.RightSiblingPageNum(), storage.LeafPageKind)
		p, err := bf.fetch(pool, tid, dirty, rrPid, storage.ReadWrite)
		if err != nil {
			return err
		}
		rr := p.(*page.BTreeLeafPage)
		rr.SetLeftSiblingPageNum(left.ID().PageNum)
		dirty[rrPid] = rr
	}
	dirty[left.ID()] = left

	parentPid := bf.pageID(left.ParentPageNum(), storage.InternalPageKind)
	p, err := bf.fetch(pool, tid, dirty, parentPid, storage.ReadWrite)
	if err != nil {
		return err
	}
	parent := p.(*page.BTreeInternalPage)
	idx := indexOfChild(parent, right.ID().PageNum)

	if err := bf.freePage(pool, tid, dirty, rp, right.ID()); err != nil {
		return err
	}

	return bf.deleteParentEntry(pool, tid, dirty, rp, parent, idx-1)
}

// deleteParentEntry removes parent's key/child at keyIdx (the child to
// its right is the one being dropped), then rebalances the parent the
// same way, recursing as needed. A root parent is not rebalanced here;
// collapsing it is left to maybeCollapseRoot.
func (bf *File) deleteParentEntry(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, parent *page.BTreeInternalPage, keyIdx int) error {
	if keyIdx < 0 {
		keyIdx = 0
	}
	if parent.NumKeys() > 0 {
		parent.DeleteKeyAt(keyIdx)
	}
	dirty[parent.ID()] = parent

	if parent.ParentPageNum() == page.NoSibling {
		return nil // root: collapse handled by maybeCollapseRoot
	}
	if parent.NumKeys() >= minOccupancy(parent.Capacity()) {
		return nil
	}
	return bf.rebalanceInternal(pool, tid, dirty, rp, parent)
}

func (bf *File) rebalanceInternal(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, node *page.BTreeInternalPage) error {
	parentPid := bf.pageID(node.ParentPageNum(), storage.InternalPageKind)
	p, err := bf.fetch(pool, tid, dirty, parentPid, storage.ReadWrite)
	if err != nil {
		return err
	}
	grandparent := p.(*page.BTreeInternalPage)
	myIdx := indexOfChild(grandparent, node.ID().PageNum)

	if myIdx > 0 {
		leftPid := bf.pageID(grandparent.Children()[myIdx-1], storage.InternalPageKind)
		lp, err := bf.fetch(pool, tid, dirty, leftPid, storage.ReadWrite)
		if err != nil {
			return err
		}
		left := lp.(*page.BTreeInternalPage)
		if left.NumKeys() > minOccupancy(left.Capacity()) {
			return bf.redistributeInternals(pool, tid, dirty, grandparent, myIdx-1, left, node)
		}
		return bf.mergeInternals(pool, tid, dirty, rp, grandparent, myIdx-1, left, node)
	}
	if myIdx < len(grandparent.Children())-1 {
		rightPid := bf.pageID(grandparent.Children()[myIdx+1], storage.InternalPageKind)
		rp2, err := bf.fetch(pool, tid, dirty, rightPid, storage.ReadWrite)
		if err != nil {
			return err
		}
		right := rp2.(*page.BTreeInternalPage)
		if right.NumKeys() > minOccupancy(right.Capacity()) {
			return bf.redistributeInternals(pool, tid, dirty, grandparent, myIdx, node, right)
		}
		return bf.mergeInternals(pool, tid, dirty, rp, grandparent, myIdx, node, right)
	}
	return nil
}

// redistributeInternals moves entries across the separator at
// grandparent.Keys()[sepIdx] between left and right, pulling the old
// separator down and pushing the new boundary's middle key back up.
func (bf *File) redistributeInternals(pool Pool, tid txid.ID, dirty dirtySet, grandparent *page.BTreeInternalPage, sepIdx int, left, right *page.BTreeInternalPage) error {
	sep := grandparent.Keys()[sepIdx]
	totalKeys := left.NumKeys() + 1 + right.NumKeys()
	targetLeftKeys := totalKeys/2 - 1
	if targetLeftKeys < 0 {
		targetLeftKeys = 0
	}

	leftKeys := append(append([]types.Value(nil), left.Keys()...), sep)
	leftKeys = append(leftKeys, right.Keys()...)
	leftChildren := append(append([]int(nil), left.Children()...), right.Children()...)

	newLeftKeys := append([]types.Value(nil), leftKeys[:targetLeftKeys]...)
	newSep := leftKeys[targetLeftKeys]
	newRightKeys := append([]types.Value(nil), leftKeys[targetLeftKeys+1:]...)

	newLeftChildCount := targetLeftKeys + 1
	newLeftChildren := append([]int(nil), leftChildren[:newLeftChildCount]...)
	newRightChildren := append([]int(nil), leftChildren[newLeftChildCount:]...)

	left.SetEntries(newLeftKeys, newLeftChildren)
	right.SetEntries(newRightKeys, newRightChildren)
	grandparent.Keys()[sepIdx] = newSep

	for _, c := range newLeftChildren {
		if err := bf.reparentChild(pool, tid, dirty, left.ChildKind(), c, left.ID().PageNum); err != nil {
			return err
		}
	}
	for _, c := range newRightChildren {
		if err := bf.reparentChild(pool, tid, dirty, right.ChildKind(), c, right.ID().PageNum); err != nil {
			return err
		}
	}

	dirty[grandparent.ID()] = grandparent
	dirty[left.ID()] = left
	dirty[right.ID()] = right
	return nil
}

// mergeInternals concatenates right into left with the grandparent's
// separator pulled down between them, fixes children's parent pointers,
// frees right, and recursively deletes the obsolete grandparent entry.
func (bf *File) mergeInternals(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage, grandparent *page.BTreeInternalPage, sepIdx int, left, right *page.BTreeInternalPage) error {
	sep := grandparent.Keys()[sepIdx]
	newKeys := append(append(append([]types.Value(nil), left.Keys()...), sep), right.Keys()...)
	newChildren := append(append([]int(nil), left.Children()...), right.Children()...)

	left.SetEntries(newKeys, newChildren)
	for _, c := range right.Children() {
		if err := bf.reparentChild(pool, tid, dirty, right.ChildKind(), c, left.ID().PageNum); err != nil {
			return err
		}
	}
	dirty[left.ID()] = left

	if err := bf.freePage(pool, tid, dirty, rp, right.ID()); err != nil {
		return err
	}
	return bf.deleteParentEntry(pool, tid, dirty, rp, grandparent, sepIdx)
}

// maybeCollapseRoot promotes the root's sole child to be the new root
// when the current root is an internal page with zero keys (one child).
func (bf *File) maybeCollapseRoot(pool Pool, tid txid.ID, dirty dirtySet, rp *page.BTreeRootPointerPage) error {
	if rp.RootKind() != storage.InternalPageKind {
		return nil
	}
	rootPid := bf.pageID(rp.RootPageNum(), storage.InternalPageKind)
	p, err := bf.fetch(pool, tid, dirty, rootPid, storage.ReadWrite)
	if err != nil {
		return err
	}
	root := p.(*page.BTreeInternalPage)
	if root.NumKeys() > 0 || len(root.Children()) != 1 {
		return nil
	}
	onlyChild := root.Children()[0]
	childPid := bf.pageID(onlyChild, root.ChildKind())
	if err := bf.reparentChild(pool, tid, dirty, root.ChildKind(), onlyChild, page.NoSibling); err != nil {
		return err
	}
	rp.SetRoot(childPid.PageNum, childPid.Kind)
	dirty[rp.ID()] = rp
	return bf.freePage(pool, tid, dirty, rp, root.ID())
}

// Iterator walks the leaf chain in key order via right-sibling pointers,
// starting from the leftmost leaf whose range could satisfy (op, field);
// field == nil yields a full scan, and < / <= scans start at the leftmost
// leaf. monotonicStop is consulted after each non-matching entry and ends
// the scan early once the predicate becomes monotonically unsatisfiable.
type Iterator struct {
	bf     *File
	pool   Pool
	tid    txid.ID
	leaf   *page.BTreeLeafPage
	pos    int
	op     types.Op
	field  types.Value
	done   bool
}

func (bf *File) NewIterator(pool Pool, tid txid.ID, field types.Value, op types.Op) (*Iterator, error) {
	dirty := dirtySet{}
	rp, err := bf.rootPointer(pool, tid, dirty)
	if err != nil {
		return nil, err
	}
	if rp.RootPageNum() == page.NoSibling {
		return &Iterator{bf: bf, pool: pool, tid: tid, done: true}, nil
	}
	rootPid := bf.pageID(rp.RootPageNum(), rp.RootKind())
	descend := field
	if op == types.LessThan || op == types.LessThanOrEq {
		descend = nil // every smaller key lies to the left: start at the first leaf
	}
	leaf, err := bf.findLeafPage(pool, tid, dirty, rootPid, descend, op)
	if err != nil {
		return nil, err
	}
	return &Iterator{bf: bf, pool: pool, tid: tid, leaf: leaf, field: field, op: op}, nil
}

// Next returns the next matching entry, or (Entry{}, false) when
// exhausted or the predicate can no longer be satisfied.
func (it *Iterator) Next() (Entry, bool, error) {
	for !it.done {
		if it.leaf == nil {
			return Entry{}, false, nil
		}
		entries := it.leaf.Entries()
		if it.pos >= len(entries) {
			right := it.leaf.RightSiblingPageNum()
			if right == page.NoSibling {
				it.done = true
				return Entry{}, false, nil
			}
			dirty := dirtySet{}
			p, err := it.bf.fetch(it.pool, it.tid, dirty, it.bf.pageID(right, storage.LeafPageKind), storage.ReadOnly)
			if err != nil {
				return Entry{}, false, err
			}
			it.leaf = p.(*page.BTreeLeafPage)
			it.pos = 0
			continue
		}
		e := entries[it.pos]
		it.pos++

		if it.field != nil && !satisfies(e.Key, it.op, it.field) {
			if monotonicStop(e.Key, it.op, it.field) {
				it.done = true
				return Entry{}, false, nil
			}
			continue
		}
		return Entry{Key: e.Key, RID: tuple.RecordID{PageID: storage.PageID{TableID: it.bf.heapTableID, PageNum: e.PageNumber, Kind: storage.HeapPageKind}, SlotNumber: e.Slot}}, true, nil
	}
	return Entry{}, false, nil
}

func satisfies(key types.Value, op types.Op, field types.Value) bool {
	return key.Compare(op, field)
}

// monotonicStop reports whether, having seen a non-matching key, no
// further (ascending) key could match either -- e.g. a "<" predicate
// that has just seen a key past its threshold.
func monotonicStop(key types.Value, op types.Op, field types.Value) bool {
	switch op {
	case types.LessThan, types.LessThanOrEq:
		return !key.Compare(op, field) && key.Compare(types.GreaterThan, field)
	case types.Equals:
		return key.Compare(types.GreaterThan, field)
	default:
		return false
	}
}

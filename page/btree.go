package page

import (
	"sort"

	"coredb/dberrors"
	"coredb/storage"
	"coredb/types"
)

// NoSibling is the sentinel stored for "no left/right sibling" and "no
// parent" -- page 0 of a B+Tree file is always the root-pointer page, so
// 0 is never a legitimate sibling or parent page number.
const NoSibling = 0

// BTreeLeafEntry is one key+RecordId pair held by a leaf page.
type BTreeLeafEntry struct {
	Key        types.Value
	PageNumber int
	Slot       int
}

// BTreeLeafPage holds entries in dense, key-sorted order across its
// first NumEntries() slots; the used-slot header bitmap always reads as
// exactly those leading slots set, matching the external byte format.
type BTreeLeafPage struct {
	id       storage.PageID
	keyField types.FieldType
	capacity int

	parent int
	left   int
	right  int

	entries []BTreeLeafEntry

	dirty  bool
	before []byte
}

var _ storage.Page = (*BTreeLeafPage)(nil)

// LeafCapacity returns the max number of entries a leaf of pageSize can
// hold for a key of keyWidth bytes, and the header bitmap byte length.
func LeafCapacity(pageSize, keyWidth int) (capacity, headerBytes int) {
	const fixed = 12 // parent(4) + left(4) + right(4)
	entryWidth := keyWidth + recordIDWidth
	avail := pageSize - fixed
	capacity = (avail * 8) / (entryWidth*8 + 1)
	headerBytes = (capacity + 7) / 8
	return
}

func NewBTreeLeafPage(id storage.PageID, keyField types.FieldType) *BTreeLeafPage {
	capacity, _ := LeafCapacity(storage.PageSize(), keyField.Width())
	p := &BTreeLeafPage{id: id, keyField: keyField, capacity: capacity}
	p.SetBeforeImage()
	return p
}

// DecodeBTreeLeafPage parses a PageSize()-length byte image.
func DecodeBTreeLeafPage(id storage.PageID, keyField types.FieldType, data []byte) *BTreeLeafPage {
	capacity, headerBytes := LeafCapacity(storage.PageSize(), keyField.Width())
	p := &BTreeLeafPage{id: id, keyField: keyField, capacity: capacity}
	p.parent = int(getUint32(data[0:4]))
	p.left = int(getUint32(data[4:8]))
	p.right = int(getUint32(data[8:12]))

	header := data[12 : 12+headerBytes]
	entryWidth := keyField.Width() + recordIDWidth
	off := 12 + headerBytes
	for i := 0; i < capacity; i++ {
		if !bitSet(header, i) {
			break
		}
		raw := data[off : off+entryWidth]
		key := decodeField(raw[:keyField.Width()], keyField)
		pn, slot := decodeRecordID(raw[keyField.Width():])
		p.entries = append(p.entries, BTreeLeafEntry{Key: key, PageNumber: pn, Slot: slot})
		off += entryWidth
	}
	p.SetBeforeImage()
	return p
}

func (p *BTreeLeafPage) ID() storage.PageID { return p.id }
func (p *BTreeLeafPage) Capacity() int      { return p.capacity }
func (p *BTreeLeafPage) NumEntries() int    { return len(p.entries) }
func (p *BTreeLeafPage) IsFull() bool       { return len(p.entries) >= p.capacity }

func (p *BTreeLeafPage) ParentPageNum() int        { return p.parent }
func (p *BTreeLeafPage) SetParentPageNum(n int)    { p.parent = n; p.dirty = true }
func (p *BTreeLeafPage) LeftSiblingPageNum() int   { return p.left }
func (p *BTreeLeafPage) SetLeftSiblingPageNum(n int) { p.left = n; p.dirty = true }
func (p *BTreeLeafPage) RightSiblingPageNum() int  { return p.right }
func (p *BTreeLeafPage) SetRightSiblingPageNum(n int) { p.right = n; p.dirty = true }

// Entries returns the page's entries in key order.
func (p *BTreeLeafPage) Entries() []BTreeLeafEntry { return p.entries }

// Insert places a new entry in sorted position (ties broken by
// RecordId's slot to keep the strict ordering invariant).
func (p *BTreeLeafPage) Insert(key types.Value, pageNum, slot int) error {
	if p.IsFull() {
		return dberrors.ErrPageFull
	}
	e := BTreeLeafEntry{Key: key, PageNumber: pageNum, Slot: slot}
	idx := sort.Search(len(p.entries), func(i int) bool {
		if p.entries[i].Key.Compare(types.Equals, key) {
			return p.entries[i].Slot >= slot
		}
		return p.entries[i].Key.Compare(types.GreaterThan, key)
	})
	p.entries = append(p.entries, BTreeLeafEntry{})
	copy(p.entries[idx+1:], p.entries[idx:])
	p.entries[idx] = e
	p.dirty = true
	return nil
}

// DeleteAt removes the entry at sorted index idx.
func (p *BTreeLeafPage) DeleteAt(idx int) {
	p.entries = append(p.entries[:idx], p.entries[idx+1:]...)
	p.dirty = true
}

// TakeUpperHalf removes and returns the upper half of entries, for use by
// splitLeafPage.
func (p *BTreeLeafPage) TakeUpperHalf() []BTreeLeafEntry {
	mid := len(p.entries) / 2
	upper := append([]BTreeLeafEntry(nil), p.entries[mid:]...)
	p.entries = p.entries[:mid]
	p.dirty = true
	return upper
}

// AppendAll appends entries (already sorted, all greater than the page's
// current maximum) to the end of the page.
func (p *BTreeLeafPage) AppendAll(entries []BTreeLeafEntry) {
	p.entries = append(p.entries, entries...)
	p.dirty = true
}

func (p *BTreeLeafPage) Bytes() []byte {
	buf := make([]byte, storage.PageSize())
	putUint32(buf[0:4], uint32(p.parent))
	putUint32(buf[4:8], uint32(p.left))
	putUint32(buf[8:12], uint32(p.right))

	_, headerBytes := LeafCapacity(storage.PageSize(), p.keyField.Width())
	header := buf[12 : 12+headerBytes]
	for i := range p.entries {
		bitSetOn(header, i)
	}

	entryWidth := p.keyField.Width() + recordIDWidth
	off := 12 + headerBytes
	for _, e := range p.entries {
		e.Key.Encode(buf[off : off+p.keyField.Width()])
		encodeRecordID(buf[off+p.keyField.Width():off+entryWidth], e.PageNumber, e.Slot)
		off += entryWidth
	}
	return buf
}

func (p *BTreeLeafPage) IsDirty() bool       { return p.dirty }
func (p *BTreeLeafPage) MarkDirty(dirty bool) { p.dirty = dirty }
func (p *BTreeLeafPage) SetBeforeImage()     { p.before = append([]byte(nil), p.Bytes()...) }
func (p *BTreeLeafPage) BeforeImage() storage.Page {
	return DecodeBTreeLeafPage(p.id, p.keyField, p.before)
}

// BTreeInternalPage holds m keys and m+1 children, densely packed: if k
// children are populated (k-1 keys), they occupy child slots 0..k-1 and
// key slots 0..k-2. The header bitmap is over child slots, matching the
// external "m+1 child pointers" layout.
type BTreeInternalPage struct {
	id        storage.PageID
	keyField  types.FieldType
	childKind storage.PageKind
	capacity  int // max keys (m)

	parent   int
	keys     []types.Value
	children []int

	dirty  bool
	before []byte
}

var _ storage.Page = (*BTreeInternalPage)(nil)

// InternalCapacity returns the max number of keys (m) an internal page of
// pageSize can hold for a key of keyWidth bytes.
func InternalCapacity(pageSize, keyWidth int) int {
	const fixed = 5 // parent(4) + child_kind(1)
	avail := pageSize - fixed
	m := avail / (keyWidth + 4)
	for m > 0 {
		headerBytes := (m + 1 + 7) / 8
		total := m*keyWidth + (m+1)*4 + headerBytes
		if total <= avail {
			break
		}
		m--
	}
	return m
}

func NewBTreeInternalPage(id storage.PageID, keyField types.FieldType, childKind storage.PageKind) *BTreeInternalPage {
	capacity := InternalCapacity(storage.PageSize(), keyField.Width())
	p := &BTreeInternalPage{id: id, keyField: keyField, childKind: childKind, capacity: capacity}
	p.SetBeforeImage()
	return p
}

func DecodeBTreeInternalPage(id storage.PageID, keyField types.FieldType, data []byte) *BTreeInternalPage {
	capacity := InternalCapacity(storage.PageSize(), keyField.Width())
	p := &BTreeInternalPage{id: id, keyField: keyField, capacity: capacity}
	p.parent = int(getUint32(data[0:4]))
	p.childKind = storage.PageKind(data[4])

	headerBytes := (capacity + 1 + 7) / 8
	header := data[5 : 5+headerBytes]
	numChildren := 0
	for i := 0; i <= capacity; i++ {
		if !bitSet(header, i) {
			break
		}
		numChildren++
	}

	off := 5 + headerBytes
	kw := keyField.Width()
	for i := 0; i < capacity; i++ {
		key := decodeField(data[off:off+kw], keyField)
		if i < numChildren-1 {
			p.keys = append(p.keys, key)
		}
		off += kw
	}
	for i := 0; i <= capacity; i++ {
		cn := int(getUint32(data[off : off+4]))
		if i < numChildren {
			p.children = append(p.children, cn)
		}
		off += 4
	}
	p.SetBeforeImage()
	return p
}

func (p *BTreeInternalPage) ID() storage.PageID          { return p.id }
func (p *BTreeInternalPage) Capacity() int               { return p.capacity }
func (p *BTreeInternalPage) NumKeys() int                { return len(p.keys) }
func (p *BTreeInternalPage) IsFull() bool                { return len(p.keys) >= p.capacity }
func (p *BTreeInternalPage) ChildKind() storage.PageKind { return p.childKind }
func (p *BTreeInternalPage) ParentPageNum() int          { return p.parent }
func (p *BTreeInternalPage) SetParentPageNum(n int)      { p.parent = n; p.dirty = true }
func (p *BTreeInternalPage) Keys() []types.Value         { return p.keys }
func (p *BTreeInternalPage) Children() []int             { return p.children }

// InsertEntry inserts a (key, rightChild) pair at sorted position idx,
// where rightChild becomes the child immediately to the right of key.
// leftChild must already equal children[idx] (the child being split).
func (p *BTreeInternalPage) InsertEntry(idx int, key types.Value, rightChild int) error {
	if p.IsFull() {
		return dberrors.ErrPageFull
	}
	p.keys = append(p.keys, nil)
	copy(p.keys[idx+1:], p.keys[idx:])
	p.keys[idx] = key

	p.children = append(p.children, 0)
	copy(p.children[idx+2:], p.children[idx+1:])
	p.children[idx+1] = rightChild

	p.dirty = true
	return nil
}

// InitRoot sets this (freshly allocated) page up as a brand new root with
// a single separator key between two children.
func (p *BTreeInternalPage) InitRoot(key types.Value, left, right int) {
	p.keys = []types.Value{key}
	p.children = []int{left, right}
	p.dirty = true
}

// TakeUpperHalfKeepingMiddle removes the upper half of entries for
// splitInternalPage, returning the pushed-up middle key and the entries
// moved to the new right sibling (keys[mid+1:], children[mid+1:]);
// children[mid] stays as this page's last child.
func (p *BTreeInternalPage) TakeUpperHalfKeepingMiddle() (middle types.Value, rightKeys []types.Value, rightChildren []int) {
	mid := len(p.keys) / 2
	middle = p.keys[mid]
	rightKeys = append([]types.Value(nil), p.keys[mid+1:]...)
	rightChildren = append([]int(nil), p.children[mid+1:]...)

	p.keys = p.keys[:mid]
	p.children = p.children[:mid+1]
	p.dirty = true
	return
}

// SetEntries overwrites this page's keys and children wholesale, used
// when assembling a new right sibling or after a merge/redistribute.
func (p *BTreeInternalPage) SetEntries(keys []types.Value, children []int) {
	p.keys = keys
	p.children = children
	p.dirty = true
}

// DeleteKeyAt removes key index idx together with the child immediately
// to its right.
func (p *BTreeInternalPage) DeleteKeyAt(idx int) {
	p.keys = append(p.keys[:idx], p.keys[idx+1:]...)
	p.children = append(p.children[:idx+1], p.children[idx+2:]...)
	p.dirty = true
}

func (p *BTreeInternalPage) Bytes() []byte {
	buf := make([]byte, storage.PageSize())
	putUint32(buf[0:4], uint32(p.parent))
	buf[4] = byte(p.childKind)

	headerBytes := (p.capacity + 1 + 7) / 8
	header := buf[5 : 5+headerBytes]
	for i := range p.children {
		bitSetOn(header, i)
	}

	off := 5 + headerBytes
	kw := p.keyField.Width()
	for i := 0; i < p.capacity; i++ {
		if i < len(p.keys) {
			p.keys[i].Encode(buf[off : off+kw])
		}
		off += kw
	}
	for i := 0; i <= p.capacity; i++ {
		if i < len(p.children) {
			putUint32(buf[off:off+4], uint32(p.children[i]))
		}
		off += 4
	}
	return buf
}

func (p *BTreeInternalPage) IsDirty() bool        { return p.dirty }
func (p *BTreeInternalPage) MarkDirty(dirty bool) { p.dirty = dirty }
func (p *BTreeInternalPage) SetBeforeImage()      { p.before = append([]byte(nil), p.Bytes()...) }
func (p *BTreeInternalPage) BeforeImage() storage.Page {
	return DecodeBTreeInternalPage(p.id, p.keyField, p.before)
}

// BTreeRootPointerPage is the fixed page at page-number 0: it names the
// current root and the head of the free-page list.
type BTreeRootPointerPage struct {
	id            storage.PageID
	rootPageNum   int
	rootKind      storage.PageKind
	emptyListHead int

	dirty  bool
	before []byte
}

var _ storage.Page = (*BTreeRootPointerPage)(nil)

func NewBTreeRootPointerPage(id storage.PageID, rootPageNum int, rootKind storage.PageKind) *BTreeRootPointerPage {
	p := &BTreeRootPointerPage{id: id, rootPageNum: rootPageNum, rootKind: rootKind}
	p.SetBeforeImage()
	return p
}

func DecodeBTreeRootPointerPage(id storage.PageID, data []byte) *BTreeRootPointerPage {
	p := &BTreeRootPointerPage{
		id:            id,
		rootPageNum:   int(getUint32(data[0:4])),
		rootKind:      storage.PageKind(data[4]),
		emptyListHead: int(getUint32(data[5:9])),
	}
	p.SetBeforeImage()
	return p
}

func (p *BTreeRootPointerPage) ID() storage.PageID { return p.id }

func (p *BTreeRootPointerPage) RootPageNum() int           { return p.rootPageNum }
func (p *BTreeRootPointerPage) RootKind() storage.PageKind { return p.rootKind }
func (p *BTreeRootPointerPage) SetRoot(pageNum int, kind storage.PageKind) {
	p.rootPageNum = pageNum
	p.rootKind = kind
	p.dirty = true
}

func (p *BTreeRootPointerPage) EmptyListHead() int { return p.emptyListHead }
func (p *BTreeRootPointerPage) SetEmptyListHead(pageNum int) {
	p.emptyListHead = pageNum
	p.dirty = true
}

func (p *BTreeRootPointerPage) Bytes() []byte {
	buf := make([]byte, storage.PageSize())
	putUint32(buf[0:4], uint32(p.rootPageNum))
	buf[4] = byte(p.rootKind)
	putUint32(buf[5:9], uint32(p.emptyListHead))
	return buf
}

func (p *BTreeRootPointerPage) IsDirty() bool        { return p.dirty }
func (p *BTreeRootPointerPage) MarkDirty(dirty bool) { p.dirty = dirty }
func (p *BTreeRootPointerPage) SetBeforeImage()      { p.before = append([]byte(nil), p.Bytes()...) }
func (p *BTreeRootPointerPage) BeforeImage() storage.Page {
	return DecodeBTreeRootPointerPage(p.id, p.before)
}


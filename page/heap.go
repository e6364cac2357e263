// Package page implements the pure, I/O-free binary codecs for every page
// kind: the heap file's slotted page, and the B+Tree's leaf, internal,
// and root-pointer pages. There is no B+Tree header (allocation bitmap)
// page. Nothing in this package touches a file;
// heap and btree own reading and writing bytes to disk.
package page

import (
	"coredb/dberrors"
	"coredb/storage"
	"coredb/tuple"
)

// HeapCapacity returns the number of tuple slots a heap page of the given
// size can hold for a tuple of tupleWidth bytes, and the header bitmap's
// byte length.
func HeapCapacity(pageSize, tupleWidth int) (capacity, headerBytes int) {
	capacity = (pageSize * 8) / (tupleWidth*8 + 1)
	headerBytes = (capacity + 7) / 8
	return
}

// HeapPage is the slotted layout described for heap files: a used-slot
// bitmap header followed by fixed-size tuple slots.
type HeapPage struct {
	id       storage.PageID
	desc     *tuple.Desc
	capacity int
	header   []byte // ceil(capacity/8) bytes, bit i = slot i occupied
	slots    [][]byte

	dirty  bool
	before []byte
}

var _ storage.Page = (*HeapPage)(nil)

// NewHeapPage builds an empty heap page for id conforming to desc.
func NewHeapPage(id storage.PageID, desc *tuple.Desc) *HeapPage {
	capacity, headerBytes := HeapCapacity(storage.PageSize(), desc.Width())
	hp := &HeapPage{
		id:       id,
		desc:     desc,
		capacity: capacity,
		header:   make([]byte, headerBytes),
		slots:    make([][]byte, capacity),
	}
	for i := range hp.slots {
		hp.slots[i] = make([]byte, desc.Width())
	}
	hp.SetBeforeImage()
	return hp
}

// DecodeHeapPage parses a PageSize()-length byte image into a HeapPage.
func DecodeHeapPage(id storage.PageID, desc *tuple.Desc, data []byte) *HeapPage {
	capacity, headerBytes := HeapCapacity(storage.PageSize(), desc.Width())
	hp := &HeapPage{
		id:       id,
		desc:     desc,
		capacity: capacity,
		header:   append([]byte(nil), data[:headerBytes]...),
		slots:    make([][]byte, capacity),
	}
	tw := desc.Width()
	off := headerBytes
	for i := 0; i < capacity; i++ {
		hp.slots[i] = append([]byte(nil), data[off:off+tw]...)
		off += tw
	}
	hp.SetBeforeImage()
	return hp
}

func bitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<(uint(i)%8)) != 0
}

func bitSetOn(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << (uint(i) % 8)
}

func bitSetOff(bitmap []byte, i int) {
	bitmap[i/8] &^= 1 << (uint(i) % 8)
}

func (h *HeapPage) ID() storage.PageID { return h.id }

func (h *HeapPage) Capacity() int { return h.capacity }

// NumEmptySlots returns the count of slots whose header bit is unset.
func (h *HeapPage) NumEmptySlots() int {
	n := 0
	for i := 0; i < h.capacity; i++ {
		if !bitSet(h.header, i) {
			n++
		}
	}
	return n
}

func (h *HeapPage) IsSlotUsed(slot int) bool { return bitSet(h.header, slot) }

// Insert places t into the lowest-index empty slot and stamps its
// RecordId. Returns the chosen slot number.
func (h *HeapPage) Insert(t *tuple.Tuple) (int, error) {
	if !h.desc.Equals(t.Desc()) {
		return -1, dberrors.ErrSchemaMismatch
	}
	for i := 0; i < h.capacity; i++ {
		if bitSet(h.header, i) {
			continue
		}
		buf := make([]byte, h.desc.Width())
		encodeTuple(buf, h.desc, t)
		h.slots[i] = buf
		bitSetOn(h.header, i)
		t.SetRecordID(&tuple.RecordID{PageID: h.id, SlotNumber: i})
		h.dirty = true
		return i, nil
	}
	return -1, dberrors.ErrPageFull
}

// Delete clears t's slot. t must carry a RecordId naming this page and an
// occupied slot.
func (h *HeapPage) Delete(t *tuple.Tuple) error {
	rid := t.RecordID()
	if rid == nil || rid.PageID != h.id {
		return dberrors.ErrSlotEmpty
	}
	if rid.SlotNumber < 0 || rid.SlotNumber >= h.capacity || !bitSet(h.header, rid.SlotNumber) {
		return dberrors.ErrSlotEmpty
	}
	bitSetOff(h.header, rid.SlotNumber)
	t.SetRecordID(nil)
	h.dirty = true
	return nil
}

// Iterator returns tuples in slot-ascending order, skipping empty slots.
func (h *HeapPage) Iterator() []*tuple.Tuple {
	out := make([]*tuple.Tuple, 0, h.capacity)
	for i := 0; i < h.capacity; i++ {
		if !bitSet(h.header, i) {
			continue
		}
		t := decodeTuple(h.slots[i], h.desc)
		t.SetRecordID(&tuple.RecordID{PageID: h.id, SlotNumber: i})
		out = append(out, t)
	}
	return out
}

func (h *HeapPage) Bytes() []byte {
	buf := make([]byte, storage.PageSize())
	copy(buf, h.header)
	off := len(h.header)
	for _, s := range h.slots {
		copy(buf[off:], s)
		off += len(s)
	}
	return buf
}

func (h *HeapPage) IsDirty() bool { return h.dirty }

func (h *HeapPage) MarkDirty(dirty bool) { h.dirty = dirty }

func (h *HeapPage) SetBeforeImage() {
	h.before = append([]byte(nil), h.Bytes()...)
}

func (h *HeapPage) BeforeImage() storage.Page {
	return DecodeHeapPage(h.id, h.desc, h.before)
}

func encodeTuple(dst []byte, desc *tuple.Desc, t *tuple.Tuple) {
	off := 0
	for i := 0; i < desc.NumFields(); i++ {
		w := desc.FieldType(i).Width()
		t.Field(i).Encode(dst[off : off+w])
		off += w
	}
}

func decodeTuple(src []byte, desc *tuple.Desc) *tuple.Tuple {
	t := tuple.NewTuple(desc)
	off := 0
	for i := 0; i < desc.NumFields(); i++ {
		ft := desc.FieldType(i)
		w := ft.Width()
		t.SetField(i, decodeField(src[off:off+w], ft))
		off += w
	}
	return t
}

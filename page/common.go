package page

import (
	"encoding/binary"

	"coredb/types"
)

func decodeField(src []byte, ft types.FieldType) types.Value {
	if ft.Kind == types.StringKind {
		return types.DecodeString(src, ft.StringLen)
	}
	return types.DecodeInt(src)
}

// recordIDWidth is the fixed on-disk size of a RecordId embedded in a
// B+Tree leaf entry: page-number(4) + slot(4).
const recordIDWidth = 8

func encodeRecordID(dst []byte, pageNum, slotInPage int) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(pageNum))
	binary.BigEndian.PutUint32(dst[4:8], uint32(slotInPage))
}

func decodeRecordID(src []byte) (pageNum, slot int) {
	pageNum = int(binary.BigEndian.Uint32(src[0:4]))
	slot = int(binary.BigEndian.Uint32(src[4:8]))
	return
}

func putUint32(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }
func getUint32(src []byte) uint32    { return binary.BigEndian.Uint32(src) }

// Package tablx reads and rewrites the primary row-slot table of a paged
// tabular store.
//
// The slot table maps a row identifier to the byte offset of its record in
// the main data file. Layout (all integers little-endian):
//
//	Header (16 bytes):  [0:4] reserved, [4:8] count of 1024-row blocks
//	                    physically present, [8:12] max row id, [12:16]
//	                    record width in bytes (4..6).
//	Body:               present blocks x 1024 slots x record width; an
//	                    all-zero slot means the row is absent.
//	Trailer (16 bytes): [0:4] bitmap word count (0 when no bitmap follows),
//	                    [4:8] total block count including omitted blocks,
//	                    [8:12] count of non-empty blocks written, [12:16]
//	                    count of bitmap words containing a set bit.
//	Bitmap (optional):  one bit per block, set = block present and non-empty;
//	                    sized to the total block count rounded up to a
//	                    128-byte boundary on write.
//
// Blocks with no occupied slot are omitted from the file entirely when the
// bitmap is present, so slot positions in the body are indexed by the rank of
// their block among the present ones.
package tablx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/fidsync/blockfile"
)

const (
	headerSize  = 16
	trailerSize = 16
	blockRows   = 1024

	// Bitmap sizes are rounded up to 32 int32 words.
	bitmapAlign = 128

	minRecordSize = 4
	maxRecordSize = 6
)

var (
	// ErrBadHeader is returned when the slot-table header is malformed.
	ErrBadHeader = errors.New("tablx: malformed header")

	// ErrBadTrailer is returned when the trailer contradicts the header.
	ErrBadTrailer = errors.New("tablx: malformed trailer")
)

type header struct {
	reserved   [4]byte
	blocks     int32 // 1024-row blocks physically present in the body
	maxRowID   int32
	recordSize int32
}

// table is a parsed slot table ready for random slot access.
type table struct {
	st     blockfile.Store
	hdr    header
	total  int32  // logical block count, including omitted blocks
	bitmap []byte // nil when every block is present
	rank   []int32
}

func parseHeader(st blockfile.Store) (header, error) {
	var buf [headerSize]byte
	if _, err := st.ReadAt(buf[:], 0); err != nil {
		return header{}, fmt.Errorf("tablx: read header: %w", err)
	}

	h := header{
		blocks:     int32(binary.LittleEndian.Uint32(buf[4:8])),
		maxRowID:   int32(binary.LittleEndian.Uint32(buf[8:12])),
		recordSize: int32(binary.LittleEndian.Uint32(buf[12:16])),
	}
	copy(h.reserved[:], buf[0:4])

	if h.recordSize < minRecordSize || h.recordSize > maxRecordSize {
		return header{}, fmt.Errorf("%w: record size %d", ErrBadHeader, h.recordSize)
	}
	if h.blocks < 0 || h.maxRowID < 0 {
		return header{}, fmt.Errorf("%w: blocks=%d maxRowID=%d", ErrBadHeader, h.blocks, h.maxRowID)
	}
	return h, nil
}

func parseTable(st blockfile.Store) (*table, error) {
	hdr, err := parseHeader(st)
	if err != nil {
		return nil, err
	}

	trailerOff := int64(headerSize) + int64(hdr.blocks)*blockRows*int64(hdr.recordSize)
	var buf [trailerSize]byte
	if _, err := st.ReadAt(buf[:], trailerOff); err != nil {
		return nil, fmt.Errorf("tablx: read trailer: %w", err)
	}

	bitmapWords := int32(binary.LittleEndian.Uint32(buf[0:4]))
	total := int32(binary.LittleEndian.Uint32(buf[4:8]))
	if total < hdr.blocks {
		return nil, fmt.Errorf("%w: total blocks %d < present blocks %d", ErrBadTrailer, total, hdr.blocks)
	}

	t := &table{st: st, hdr: hdr, total: total}

	if bitmapWords != 0 {
		t.bitmap = make([]byte, bitArrayBytes(total))
		if _, err := st.ReadAt(t.bitmap, trailerOff+trailerSize); err != nil {
			return nil, fmt.Errorf("tablx: read block bitmap: %w", err)
		}
		// Precompute block ranks so slot lookups need no bit counting.
		t.rank = make([]int32, total+1)
		for i := int32(0); i < total; i++ {
			t.rank[i+1] = t.rank[i]
			if testBit(t.bitmap, i) {
				t.rank[i+1]++
			}
		}
	}
	return t, nil
}

// blockPresent reports whether the block is physically present in the body.
func (t *table) blockPresent(block int32) bool {
	if block >= t.total {
		return false
	}
	if t.bitmap == nil {
		return true
	}
	return testBit(t.bitmap, block)
}

// readSlot fills buf with the slot bytes for rowID, yielding zeros without
// touching the file when the row's block was omitted.
func (t *table) readSlot(rowID int32, buf []byte) error {
	block := (rowID - 1) / blockRows
	if !t.blockPresent(block) {
		clear(buf)
		return nil
	}

	row := int64(rowID-1) % blockRows
	if t.bitmap != nil {
		row += int64(t.rank[block]) * blockRows
	} else {
		row += int64(block) * blockRows
	}
	if _, err := t.st.ReadAt(buf, headerSize+row*int64(t.hdr.recordSize)); err != nil {
		return fmt.Errorf("tablx: read slot %d: %w", rowID, err)
	}
	return nil
}

func bitArrayBytes(bits int32) int64 {
	return (int64(bits) + 7) / 8
}

func testBit(bitmap []byte, bit int32) bool {
	return bitmap[bit/8]&(1<<(bit%8)) != 0
}

func setBit(bitmap []byte, bit int32) {
	bitmap[bit/8] |= 1 << (bit % 8)
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

package tablx

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/fidsync/blockfile"
)

// Presence scans a slot table and returns the set of row ids whose slot is
// occupied. Omitted blocks contribute nothing and cost no reads.
func Presence(st blockfile.Store) (*roaring.Bitmap, error) {
	t, err := parseTable(st)
	if err != nil {
		return nil, err
	}
	rec := int(t.hdr.recordSize)

	bm := roaring.New()
	page := make([]byte, blockRows*rec)

	for block := int32(0); block < t.total; block++ {
		if !t.blockPresent(block) {
			continue
		}
		row := int64(block) * blockRows
		if t.bitmap != nil {
			row = int64(t.rank[block]) * blockRows
		}
		if _, err := st.ReadAt(page, headerSize+row*int64(rec)); err != nil {
			return nil, fmt.Errorf("tablx: read block %d: %w", block, err)
		}
		for j := int32(0); j < blockRows; j++ {
			rowID := block*blockRows + j + 1
			if rowID > t.hdr.maxRowID {
				break
			}
			if !isZero(page[int(j)*rec : int(j+1)*rec]) {
				bm.Add(uint32(rowID))
			}
		}
	}
	return bm, nil
}

package tablx

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/fidsync/blockfile"
	"github.com/hupe1980/fidsync/remap"
)

// Options configures a slot-table rewrite.
type Options struct {
	// DenseBlocks writes every block and sets every bitmap bit instead of
	// omitting all-zero blocks from the output.
	DenseBlocks bool
}

// Rewrite reads the slot table in src and writes a compacted copy to dst with
// slots relocated according to rm.
//
// For every output row id i in [1, newMaxRowID]:
//   - a caller-assigned id receives the slot of the engine row it maps to,
//   - an engine id that was remapped away is left empty (its slot appears
//     under the caller id instead),
//   - any other id within the old range keeps its slot verbatim,
//   - ids beyond the old range are empty.
//
// The new max row id is the greater of the old one and the highest
// caller-assigned id; engine rows at the tail of the old range that have all
// been remapped away are excluded from the output entirely.
//
// src is never modified. On error dst may hold a partial file; the caller is
// expected to write to a temporary path and discard it on failure.
func Rewrite(src, dst blockfile.Store, rm *remap.Remap, opts Options) error {
	t, err := parseTable(src)
	if err != nil {
		return err
	}
	rec := int(t.hdr.recordSize)

	inMax := t.hdr.maxRowID
	maxExt := rm.MaxExternalID()
	outMax := max(inMax, maxExt)

	// Engine rows past the highest caller id that were all remapped away
	// reappear under their caller ids, so the tail can be dropped.
	for i := inMax; i > maxExt; i-- {
		if _, ok := rm.External(i); !ok {
			break
		}
		outMax--
		inMax--
	}

	blocksOut := int32((int64(outMax) + blockRows - 1) / blockRows)
	bitmapLen := (bitArrayBytes(blocksOut) + bitmapAlign - 1) / bitmapAlign * bitmapAlign
	outBitmap := make([]byte, bitmapLen)

	var hdr [headerSize]byte
	copy(hdr[0:4], t.hdr.reserved[:])
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(blocksOut))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(outMax))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(t.hdr.recordSize))
	if _, err := dst.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("tablx: write header: %w", err)
	}

	extIDs := rm.SortedExternalIDs()
	nextExt := 0

	page := make([]byte, blockRows*rec)
	slot := make([]byte, rec)
	off := int64(headerSize)
	var nonEmpty int32

	for blockStart := int32(1); blockStart <= outMax && blockStart >= 1; blockStart += blockRows {
		blockEnd := min(blockStart+blockRows-1, outMax)
		block := (blockStart - 1) / blockRows

		for nextExt < len(extIDs) && extIDs[nextExt] < blockStart {
			nextExt++
		}
		hasExt := nextExt < len(extIDs) && extIDs[nextExt] <= blockEnd

		// A block with no caller-assigned id copies only verbatim slots; if
		// the matching source block was omitted it stays all zero and can be
		// skipped without any reads.
		if !opts.DenseBlocks && !hasExt && (blockStart > inMax || !t.blockPresent(block)) {
			continue
		}

		lastWritten := 0
		for i := blockStart; i <= blockEnd; i++ {
			srcID := i
			if internal, ok := rm.Internal(i); ok {
				srcID = internal
			} else if _, remapped := rm.External(i); remapped || i > inMax {
				continue
			}

			if err := t.readSlot(srcID, slot); err != nil {
				return err
			}
			if isZero(slot) {
				continue
			}
			slotOff := int(i-blockStart) * rec
			clear(page[lastWritten:slotOff])
			copy(page[slotOff:], slot)
			lastWritten = slotOff + rec
		}

		if lastWritten == 0 && !opts.DenseBlocks {
			continue
		}
		clear(page[lastWritten:])
		if _, err := dst.WriteAt(page, off); err != nil {
			return fmt.Errorf("tablx: write block %d: %w", block, err)
		}
		off += int64(len(page))
		setBit(outBitmap, block)
		nonEmpty++
	}

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(blocksOut))
	binary.LittleEndian.PutUint32(trailer[8:12], uint32(nonEmpty))
	sparse := nonEmpty < blocksOut
	if sparse {
		binary.LittleEndian.PutUint32(trailer[0:4], uint32(bitmapLen/4))
		binary.LittleEndian.PutUint32(trailer[12:16], uint32(((outMax-1)/blockRows+31)/32))
	}
	if _, err := dst.WriteAt(trailer[:], off); err != nil {
		return fmt.Errorf("tablx: write trailer: %w", err)
	}

	if sparse {
		if _, err := dst.WriteAt(outBitmap, off+trailerSize); err != nil {
			return fmt.Errorf("tablx: write block bitmap: %w", err)
		}
		// With blocks omitted, the header block count holds the number of
		// blocks actually written.
		var patched [4]byte
		binary.LittleEndian.PutUint32(patched[:], uint32(nonEmpty))
		if _, err := dst.WriteAt(patched[:], 4); err != nil {
			return fmt.Errorf("tablx: patch header: %w", err)
		}
	}
	return nil
}

package pageidx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/fidsync/blockfile"
	"github.com/hupe1980/fidsync/remap"
)

// Patch walks the ordered index in st top-down, rewrites every leaf row id
// that has an engine-to-caller remap entry, and repairs ascending-row-id
// order within runs of equal indexed values, including runs spanning several
// leaf pages.
//
// The file is mutated in place. On any error the index must be considered
// unusable: ErrCorrupt and ErrRunTooLong as well as plain I/O failures all
// mean the caller should delete the index and rebuild it out of band.
func Patch(st blockfile.Store, rm *remap.Remap) error {
	size, err := st.Size()
	if err != nil {
		return fmt.Errorf("pageidx: stat index: %w", err)
	}
	if size <= trailerOffsetFromEnd {
		return fmt.Errorf("%w: file too small (%d bytes)", ErrCorrupt, size)
	}

	var trailer [trailerOffsetFromEnd]byte
	if _, err := st.ReadAt(trailer[:], size-trailerOffsetFromEnd); err != nil {
		return fmt.Errorf("pageidx: read trailer: %w", err)
	}
	valueWidth := int(trailer[0])
	if valueWidth == 0 {
		return fmt.Errorf("%w: zero indexed-value width", ErrCorrupt)
	}
	depth := int32(binary.LittleEndian.Uint32(trailer[6:10]))
	if depth < 1 {
		return fmt.Errorf("%w: tree depth %d", ErrCorrupt, depth)
	}

	p := &patcher{
		st:         st,
		rm:         rm,
		valueWidth: valueWidth,
		maxPerPage: maxEntriesPerPage(valueWidth),
		lastValue:  make([]byte, valueWidth),
		page:       make([]byte, pageSize),
	}
	return p.walk(1, depth)
}

// patcher threads the duplicate-value run state through the recursive page
// walk. Leaves are visited in forward-link order, so a run that continues
// from one leaf onto the next is recognized by value equality alone.
type patcher struct {
	st         blockfile.Store
	rm         *remap.Remap
	valueWidth int
	maxPerPage int

	// Current duplicate-value run.
	lastValue []byte
	haveValue bool
	runStart  int     // entry index of the run on its first page
	runPages  []int32 // pages the run has touched, in scan order
	sortRun   bool    // run contains at least one remapped row id

	lastLeaf int32  // last leaf processed, to skip doubly-reached pages
	page     []byte // scratch buffer for the current leaf
}

func (p *patcher) walk(pageNo, depth int32) error {
	if depth == 1 {
		return p.patchLeaf(pageNo)
	}

	buf := make([]byte, pageSize)
	if _, err := p.st.ReadAt(buf, pageOffset(pageNo)); err != nil {
		return fmt.Errorf("pageidx: read page %d: %w", pageNo, err)
	}
	children := int32(binary.LittleEndian.Uint32(buf[4:8])) + 1
	if children < 1 || children > (pageSize-branchHeaderSize)/4 {
		return fmt.Errorf("%w: page %d reports %d children", ErrCorrupt, pageNo, children)
	}
	for i := int32(0); i < children; i++ {
		child := int32(binary.LittleEndian.Uint32(buf[branchHeaderSize+4*i:]))
		if child < 1 {
			return fmt.Errorf("%w: page %d references page %d", ErrCorrupt, pageNo, child)
		}
		if err := p.walk(child, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func (p *patcher) patchLeaf(pageNo int32) error {
	if pageNo == p.lastLeaf {
		return nil
	}

	if _, err := p.st.ReadAt(p.page, pageOffset(pageNo)); err != nil {
		return fmt.Errorf("pageidx: read page %d: %w", pageNo, err)
	}
	next := int32(binary.LittleEndian.Uint32(p.page[0:4]))
	count := int32(binary.LittleEndian.Uint32(p.page[4:8]))
	if count < 0 || int(count) > p.maxPerPage {
		return fmt.Errorf("%w: page %d reports %d entries (max %d)", ErrCorrupt, pageNo, count, p.maxPerPage)
	}

	valueBase := leafHeaderSize + 4*p.maxPerPage
	dirty := false

	for i := 0; i < int(count); i++ {
		value := p.page[valueBase+i*p.valueWidth : valueBase+(i+1)*p.valueWidth]
		newVal := !p.haveValue || !bytes.Equal(p.lastValue, value)

		if newVal {
			// The previous run ended at the entry before this one.
			if p.sortRun {
				if err := p.sortCurrentRun(pageNo, i, &dirty); err != nil {
					return err
				}
			}
			p.runStart = i
			p.runPages = append(p.runPages[:0], pageNo)
			copy(p.lastValue, value)
			p.sortRun = false
		} else if i == 0 {
			if len(p.runPages) >= maxRunPages {
				return fmt.Errorf("%w: more than %d pages at one indexed value", ErrRunTooLong, maxRunPages)
			}
			p.runPages = append(p.runPages, pageNo)
		}
		p.haveValue = true

		idOff := leafHeaderSize + 4*i
		rowID := int32(binary.LittleEndian.Uint32(p.page[idOff:]))
		if external, ok := p.rm.External(rowID); ok {
			binary.LittleEndian.PutUint32(p.page[idOff:], uint32(external))
			dirty = true
			p.sortRun = true
		}

		// End of the index closes the current run.
		if i == int(count)-1 && next == 0 && p.sortRun {
			if err := p.sortCurrentRun(pageNo, i+1, &dirty); err != nil {
				return err
			}
			p.sortRun = false
		}
	}

	if dirty {
		if _, err := p.st.WriteAt(p.page, pageOffset(pageNo)); err != nil {
			return fmt.Errorf("pageidx: write page %d: %w", pageNo, err)
		}
	}
	p.lastLeaf = pageNo
	return nil
}

// sortCurrentRun restores ascending row-id order within the run that ends at
// entry index end (exclusive) of the current page. When the run never left
// one page only that page's id slice is sorted; otherwise the id sub-arrays
// of every touched page are gathered, sorted as one sequence, and scattered
// back to the same positions.
func (p *patcher) sortCurrentRun(pageNo int32, end int, dirty *bool) error {
	if len(p.runPages) == 1 && p.runPages[0] == pageNo {
		n := end - p.runStart
		if n > 1 {
			ids := decodeIDs(p.page[leafHeaderSize+4*p.runStart:], n)
			sorted := sortAcrossSegments([][]int32{ids})
			encodeIDs(p.page[leafHeaderSize+4*p.runStart:], sorted[0])
			*dirty = true
		}
		return nil
	}

	segs := make([][]int32, len(p.runPages))
	for j, rp := range p.runPages {
		switch {
		case j == len(p.runPages)-1 && rp == pageNo:
			segs[j] = decodeIDs(p.page[leafHeaderSize:], end)
		case j == 0:
			cnt, err := p.leafCount(rp)
			if err != nil {
				return err
			}
			ids, err := p.readIDs(rp, p.runStart, cnt-p.runStart)
			if err != nil {
				return err
			}
			segs[j] = ids
		default:
			cnt, err := p.leafCount(rp)
			if err != nil {
				return err
			}
			ids, err := p.readIDs(rp, 0, cnt)
			if err != nil {
				return err
			}
			segs[j] = ids
		}
	}

	sorted := sortAcrossSegments(segs)

	for j, rp := range p.runPages {
		switch {
		case j == len(p.runPages)-1 && rp == pageNo:
			encodeIDs(p.page[leafHeaderSize:], sorted[j])
			*dirty = true
		case j == 0:
			if err := p.writeIDs(rp, p.runStart, sorted[j]); err != nil {
				return err
			}
		default:
			if err := p.writeIDs(rp, 0, sorted[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// leafCount reads the entry count of a leaf page other than the current one.
func (p *patcher) leafCount(pageNo int32) (int, error) {
	var buf [4]byte
	if _, err := p.st.ReadAt(buf[:], pageOffset(pageNo)+4); err != nil {
		return 0, fmt.Errorf("pageidx: read page %d: %w", pageNo, err)
	}
	count := int32(binary.LittleEndian.Uint32(buf[:]))
	if count < 0 || int(count) > p.maxPerPage {
		return 0, fmt.Errorf("%w: page %d reports %d entries (max %d)", ErrCorrupt, pageNo, count, p.maxPerPage)
	}
	return int(count), nil
}

func (p *patcher) readIDs(pageNo int32, start, n int) ([]int32, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, 4*n)
	off := pageOffset(pageNo) + leafHeaderSize + int64(4*start)
	if _, err := p.st.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("pageidx: read ids of page %d: %w", pageNo, err)
	}
	return decodeIDs(buf, n), nil
}

func (p *patcher) writeIDs(pageNo int32, start int, ids []int32) error {
	if len(ids) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(ids))
	encodeIDs(buf, ids)
	off := pageOffset(pageNo) + leafHeaderSize + int64(4*start)
	if _, err := p.st.WriteAt(buf, off); err != nil {
		return fmt.Errorf("pageidx: write ids of page %d: %w", pageNo, err)
	}
	return nil
}

func decodeIDs(buf []byte, n int) []int32 {
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return ids
}

func encodeIDs(buf []byte, ids []int32) {
	for i, id := range ids {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(id))
	}
}

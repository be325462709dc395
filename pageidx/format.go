// Package pageidx patches row identifiers inside paged ordered-index files
// (attribute and spatial sidecar indexes) in place.
//
// An index file is a flat sequence of fixed 4096-byte pages with 1-based page
// numbers; page 1 is the root. A 22-byte trailer before end-of-file carries
// the width of the indexed value (byte 0) and the tree depth (int32 at bytes
// [6:10]). Pages at depth 1 are leaves holding parallel arrays of row ids and
// indexed values plus a forward link to the next leaf; deeper pages hold
// child page-number arrays.
//
// Leaf page layout (little-endian):
//
//	[0:4]  next leaf page number (0 = last)
//	[4:8]  entry count
//	[12:]  row-id array, 4 bytes per entry, maxPerPage slots
//	[12+4*maxPerPage:] indexed-value array, valueWidth bytes per entry
//
// where maxPerPage = (4096-12)/(4+valueWidth). Non-leaf pages store the child
// count minus one at [4:8] and child page numbers from offset 8.
//
// Entries are ordered by indexed value, and entries sharing a value must be
// ordered by ascending row id across page boundaries. Patching rewrites
// remapped row ids and re-sorts the affected duplicate-value runs to restore
// that invariant.
package pageidx

import "errors"

const (
	pageSize = 4096

	// trailerOffsetFromEnd locates the trailer relative to end-of-file.
	trailerOffsetFromEnd = 22

	leafHeaderSize   = 12
	branchHeaderSize = 8

	// maxRunPages bounds the number of pages a single duplicate-value run
	// may touch before the in-memory gather is abandoned and the index
	// declared invalid.
	maxRunPages = 100_000
)

var (
	// ErrCorrupt is returned when a page reports counts beyond its capacity
	// or the trailer is inconsistent. The index cannot be trusted and should
	// be deleted and rebuilt.
	ErrCorrupt = errors.New("pageidx: structural inconsistency")

	// ErrRunTooLong is returned when a duplicate-value run touches more than
	// maxRunPages pages. The index is valid on disk but cannot be patched
	// within bounded memory and should be deleted and rebuilt.
	ErrRunTooLong = errors.New("pageidx: duplicate-value run spans too many pages")
)

func maxEntriesPerPage(valueWidth int) int {
	return (pageSize - leafHeaderSize) / (4 + valueWidth)
}

func pageOffset(pageNo int32) int64 {
	return int64(pageNo-1) * pageSize
}

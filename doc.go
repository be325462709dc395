// Package fidsync rewrites the row-id plumbing of a paged table in place
// after its externally visible row identifiers have been remapped.
//
// A table keeps three kinds of id-bearing files next to its data file: a
// slot file (.gdbtablx) mapping row ids to record offsets, and any number of
// attribute (.atx) and spatial (.spx) sidecar indexes whose leaf pages store
// row ids ordered by indexed value. When a bulk load or an explicit id
// assignment leaves the engine-assigned ids out of step with the ids the
// caller expects, fidsync brings the files back in line:
//
//   - the slot file is rewritten into a sibling temp file with every slot
//     moved to its caller-visible row id, then swapped in atomically
//   - every sidecar index is patched in place: remapped leaf ids are
//     overwritten and duplicate-value runs re-sorted; an index that cannot
//     be patched is deleted so it can be rebuilt out of band
//
// # Quick Start
//
//	ctx := context.Background()
//
//	rm := remap.New()
//	if err := rm.Assign(callerID, engineID); err != nil { ... }
//
//	r := fidsync.New(
//	    fidsync.WithBackup(true),
//	    fidsync.WithVerify(true),
//	)
//	if err := r.Resync(ctx, "/data/a00000009.gdbtable", rm); err != nil { ... }
//
// # Durability Model
//
// The slot file is never modified in place: the rewrite targets a temp file
// and the swap is rename-based, restoring the original on failure. Sidecar
// indexes are patched in place but are derived data; any patch failure
// degrades to deleting the index.
//
// # Key Features
//
//   - Trailing remapped rows shrink the slot table instead of leaving holes
//   - Sparse block bitmaps are preserved (or densified via WithDenseBlocks)
//   - Optional zstd backup of the slot file before rewriting
//   - Optional row-presence verification (Roaring bitmap) before the swap
//   - Concurrency and I/O throttling via resource.Controller
package fidsync

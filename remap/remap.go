// Package remap maintains the bidirectional mapping between caller-assigned
// row identifiers and the identifiers the storage engine allocated natively.
//
// The engine always numbers inserted rows sequentially. When a caller insists
// on its own identifier for a row, the pair (external, internal) is recorded
// here and the on-disk indexes are reconciled later by a resync pass. The
// rewrite components consult the table read-only; ownership stays with the
// calling layer, which appends on renumbering and removes entries when rows
// are deleted.
//
// A Remap is not safe for concurrent use. The resync protocol assumes a
// single exclusive writer (held by the caller via a table-level lock), so no
// internal locking is done.
package remap

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNonPositiveID is returned when an identifier is zero or negative.
	ErrNonPositiveID = errors.New("remap: identifier must be strictly positive")

	// ErrDuplicateID is returned when either side of a pair is already mapped.
	ErrDuplicateID = errors.New("remap: identifier already mapped")
)

// Remap is the bidirectional external<->internal identifier table.
// Both directions are kept inverse of each other at all times.
type Remap struct {
	extToInt map[int32]int32
	intToExt map[int32]int32
}

// New creates an empty Remap.
func New() *Remap {
	return &Remap{
		extToInt: make(map[int32]int32),
		intToExt: make(map[int32]int32),
	}
}

// Assign records that the row stored under engine identifier internal is
// visible to callers as external. Both identifiers must be strictly positive
// and unused on their respective side.
func (rm *Remap) Assign(external, internal int32) error {
	if external <= 0 || internal <= 0 {
		return fmt.Errorf("%w: external=%d internal=%d", ErrNonPositiveID, external, internal)
	}
	if _, ok := rm.extToInt[external]; ok {
		return fmt.Errorf("%w: external=%d", ErrDuplicateID, external)
	}
	if _, ok := rm.intToExt[internal]; ok {
		return fmt.Errorf("%w: internal=%d", ErrDuplicateID, internal)
	}
	rm.extToInt[external] = internal
	rm.intToExt[internal] = external
	return nil
}

// Internal returns the engine identifier behind an external identifier.
func (rm *Remap) Internal(external int32) (int32, bool) {
	id, ok := rm.extToInt[external]
	return id, ok
}

// External returns the caller-visible identifier for an engine identifier.
func (rm *Remap) External(internal int32) (int32, bool) {
	id, ok := rm.intToExt[internal]
	return id, ok
}

// RemoveByExternal drops the pair addressed by its external identifier.
func (rm *Remap) RemoveByExternal(external int32) {
	if internal, ok := rm.extToInt[external]; ok {
		delete(rm.extToInt, external)
		delete(rm.intToExt, internal)
	}
}

// RemoveByInternal drops the pair addressed by its internal identifier.
func (rm *Remap) RemoveByInternal(internal int32) {
	if external, ok := rm.intToExt[internal]; ok {
		delete(rm.intToExt, internal)
		delete(rm.extToInt, external)
	}
}

// Len returns the number of remapped rows.
func (rm *Remap) Len() int {
	return len(rm.extToInt)
}

// MaxExternalID returns the greatest caller-assigned identifier, or 0 when
// the table is empty.
func (rm *Remap) MaxExternalID() int32 {
	var maxID int32
	for id := range rm.extToInt {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// SortedExternalIDs returns all caller-assigned identifiers in ascending
// order. The slot-table rewriter uses this to detect remapped regions without
// probing every candidate row.
func (rm *Remap) SortedExternalIDs() []int32 {
	ids := make([]int32, 0, len(rm.extToInt))
	for id := range rm.extToInt {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

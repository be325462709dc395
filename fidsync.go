package fidsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/fidsync/blockfile"
	"github.com/hupe1980/fidsync/pageidx"
	"github.com/hupe1980/fidsync/remap"
	"github.com/hupe1980/fidsync/resource"
	"github.com/hupe1980/fidsync/tablx"
)

const (
	slotFileExt = ".gdbtablx"

	tmpSuffix = ".tmp"
	oldSuffix = ".old"
)

// Resyncer applies a row-id remap to a table's slot file and sidecar indexes.
//
// A Resyncer is safe for concurrent use, but two resyncs of the same table
// must not overlap; use WithResourceController to bound concurrency across
// tables.
type Resyncer struct {
	opts options
}

// New creates a Resyncer.
func New(optFns ...Option) *Resyncer {
	return &Resyncer{opts: applyOptions(optFns)}
}

// ShouldResync reports whether the pending remap has grown large enough that
// the caller should resync now instead of letting it accumulate further.
func (r *Resyncer) ShouldResync(rm *remap.Remap) bool {
	return rm.Len() >= r.opts.resyncThreshold
}

// Resync rewrites the slot file of the table at tablePath so that every
// remapped row lives at its caller-visible id, then patches every attribute
// and spatial index found next to the table. An empty remap is a no-op.
//
// tablePath is the path of the table's data file; the slot file and index
// paths are derived from it. The slot file swap is atomic: on any failure the
// original file is left in place. An index that cannot be patched is deleted
// so it can be rebuilt; the remaining indexes are still patched and the
// failures are returned joined.
func (r *Resyncer) Resync(ctx context.Context, tablePath string, rm *remap.Remap) (err error) {
	if rm.Len() == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		r.opts.metrics.RecordResync(rm.Len(), time.Since(start), err)
	}()

	if rc := r.opts.controller; rc != nil {
		if err := rc.AcquireResync(ctx); err != nil {
			return fmt.Errorf("fidsync: acquire resync slot: %w", err)
		}
		defer rc.ReleaseResync()
	}

	logger := r.opts.logger.WithTable(tablePath)
	slotPath := slotFilePath(tablePath)

	if r.opts.backup {
		backupPath, err := backupFile(slotPath)
		logger.LogBackup(ctx, backupPath, err)
		if err != nil {
			return fmt.Errorf("fidsync: backup slot file: %w", err)
		}
	}

	if err := r.rewriteSlotFile(ctx, slotPath, rm); err != nil {
		logger.LogRewrite(ctx, slotPath, rm.Len(), err)
		return err
	}
	logger.LogRewrite(ctx, slotPath, rm.Len(), nil)

	return r.patchIndexes(ctx, logger, tablePath, rm)
}

// slotFilePath derives the slot-file path from the table's data-file path.
func slotFilePath(tablePath string) string {
	return strings.TrimSuffix(tablePath, filepath.Ext(tablePath)) + slotFileExt
}

func (r *Resyncer) rewriteSlotFile(ctx context.Context, path string, rm *remap.Remap) error {
	src, err := r.openSlotSource(path)
	if err != nil {
		return fmt.Errorf("fidsync: open slot file: %w", err)
	}
	defer src.Close()

	tmpPath := path + tmpSuffix
	dst, err := blockfile.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("fidsync: create temp slot file: %w", err)
	}
	defer dst.Close()
	defer os.Remove(tmpPath)

	rc := r.opts.controller
	err = tablx.Rewrite(
		resource.NewLimitedStore(ctx, src, rc),
		resource.NewLimitedStore(ctx, dst, rc),
		rm,
		tablx.Options{DenseBlocks: r.opts.denseBlocks},
	)
	if err != nil {
		return err
	}

	if r.opts.verify {
		if err := verifyPresence(src, dst, rm); err != nil {
			return err
		}
	}

	if err := dst.Sync(); err != nil {
		return fmt.Errorf("fidsync: sync temp slot file: %w", err)
	}

	// Both files must be closed before the rename-based swap.
	if err := dst.Close(); err != nil {
		return fmt.Errorf("fidsync: close temp slot file: %w", err)
	}
	if err := src.Close(); err != nil {
		return fmt.Errorf("fidsync: close slot file: %w", err)
	}
	return replaceFile(path, tmpPath)
}

// verifyPresence checks that the rewrite moved rows without creating or
// losing any: same number of occupied slots, and every remapped row that was
// occupied in the source is occupied at its caller id in the destination.
func verifyPresence(src, dst blockfile.Store, rm *remap.Remap) error {
	before, err := tablx.Presence(src)
	if err != nil {
		return fmt.Errorf("fidsync: scan source presence: %w", err)
	}
	after, err := tablx.Presence(dst)
	if err != nil {
		return fmt.Errorf("fidsync: scan rewritten presence: %w", err)
	}

	if before.GetCardinality() != after.GetCardinality() {
		return fmt.Errorf("%w: %d occupied rows before, %d after",
			ErrVerifyFailed, before.GetCardinality(), after.GetCardinality())
	}
	for _, external := range rm.SortedExternalIDs() {
		internal, _ := rm.Internal(external)
		if before.Contains(uint32(internal)) != after.Contains(uint32(external)) {
			return fmt.Errorf("%w: row %d does not mirror source row %d",
				ErrVerifyFailed, external, internal)
		}
	}
	return nil
}

// replaceFile swaps tmpPath into path via a staging rename, restoring the
// original file if the install rename fails.
func replaceFile(path, tmpPath string) error {
	stagedPath := path + oldSuffix
	if err := os.Rename(path, stagedPath); err != nil {
		return fmt.Errorf("fidsync: stage current slot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		err = fmt.Errorf("fidsync: install rewritten slot file: %w", err)
		if restoreErr := os.Rename(stagedPath, path); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("fidsync: restore slot file: %w", restoreErr))
		}
		return err
	}
	if err := os.Remove(stagedPath); err != nil {
		return fmt.Errorf("fidsync: remove staged slot file: %w", err)
	}
	if err := syncDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("fidsync: sync table directory: %w", err)
	}
	return nil
}

// syncDir makes preceding renames in dir durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}

func (r *Resyncer) patchIndexes(ctx context.Context, logger *Logger, tablePath string, rm *remap.Remap) error {
	dir := filepath.Dir(tablePath)
	base := strings.TrimSuffix(filepath.Base(tablePath), filepath.Ext(tablePath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("fidsync: list table directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, base+".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".atx", ".spx":
		default:
			continue
		}

		path := filepath.Join(dir, name)
		start := time.Now()
		err := r.patchIndex(ctx, path, rm)
		r.opts.metrics.RecordIndexPatch(time.Since(start), err != nil)
		logger.LogPatch(ctx, path, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("fidsync: patch index %s: %w", name, err))
			if removeErr := os.Remove(path); removeErr != nil {
				errs = append(errs, fmt.Errorf("fidsync: drop unpatchable index %s: %w", name, removeErr))
			}
		}
	}
	return errors.Join(errs...)
}

// syncStore is a Store that can flush to stable storage.
type syncStore interface {
	blockfile.Store
	Sync() error
}

func (r *Resyncer) patchIndex(ctx context.Context, path string, rm *remap.Remap) error {
	st, err := r.openIndex(path)
	if err != nil {
		return fmt.Errorf("fidsync: open index: %w", err)
	}
	defer st.Close()

	if err := pageidx.Patch(resource.NewLimitedStore(ctx, st, r.opts.controller), rm); err != nil {
		return err
	}
	if err := st.Sync(); err != nil {
		return fmt.Errorf("fidsync: sync index: %w", err)
	}
	return st.Close()
}

func (r *Resyncer) openSlotSource(path string) (syncStore, error) {
	if r.opts.useMmap {
		return blockfile.OpenMapped(path)
	}
	return blockfile.OpenReadOnly(path)
}

func (r *Resyncer) openIndex(path string) (syncStore, error) {
	if r.opts.useMmap {
		return blockfile.OpenMapped(path)
	}
	return blockfile.Open(path)
}

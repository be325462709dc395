package fidsync

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

const backupSuffix = ".bak.zst"

// backupFile writes a zstd-compressed copy of the file at path next to it
// and returns the backup path. An existing backup is overwritten.
func backupFile(path string) (string, error) {
	backupPath := path + backupSuffix

	src, err := os.Open(path)
	if err != nil {
		return backupPath, err
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return backupPath, err
	}

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		_ = dst.Close()
		return backupPath, err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		_ = dst.Close()
		return backupPath, fmt.Errorf("compress %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = dst.Close()
		return backupPath, err
	}
	return backupPath, dst.Close()
}

// RestoreBackup decompresses the backup written for the slot file of the
// table at tablePath back over the slot file.
func RestoreBackup(tablePath string) error {
	slotPath := slotFilePath(tablePath)

	src, err := os.Open(slotPath + backupSuffix)
	if err != nil {
		return fmt.Errorf("fidsync: open backup: %w", err)
	}
	defer src.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return fmt.Errorf("fidsync: open backup: %w", err)
	}
	defer dec.Close()

	tmpPath := slotPath + tmpSuffix
	dst, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("fidsync: create temp slot file: %w", err)
	}
	if _, err := io.Copy(dst, dec); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fidsync: decompress backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fidsync: close temp slot file: %w", err)
	}
	if err := os.Rename(tmpPath, slotPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fidsync: install restored slot file: %w", err)
	}
	return nil
}

// Package hostfs reads host files and directories into memory. It is the
// only component that touches the host filesystem; everything downstream
// works on owned byte slices.
package hostfs

import (
	"os"
	"sort"

	"github.com/dargueta/mkimg/internal/mkerrors"
)

// EntryKind distinguishes the two kinds of directory entry this tool cares
// about. Symlinks, devices, and anything else are never produced by
// IterDir.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

// Entry is one (name, kind) pair returned by IterDir.
type Entry struct {
	Name string
	Kind EntryKind
}

// ReadAll reads the entire contents of path into memory. It fails with
// mkerrors.IO if the file cannot be opened or read.
func ReadAll(path string) ([]byte, *mkerrors.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mkerrors.Wrap(mkerrors.IO, "unable to read "+path, err)
	}
	return data, nil
}

// ReadOptional is ReadAll but a missing file is reported as (nil, false,
// nil) instead of an error — the disk assembler treats several of its
// inputs (stage-1 loader, stage-2 fallback) as optional and falls back to
// a non-bootable image rather than failing outright, matching the
// original tool's readfileall()-returns-NULL handling.
func ReadOptional(path string) ([]byte, bool, *mkerrors.Error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, mkerrors.Wrap(mkerrors.IO, "unable to read "+path, err)
	}
	return data, true, nil
}

// IterDir returns the entries of a directory, excluding names beginning
// with '.'. Order is unspecified (the FAT layout does not depend on it);
// entries are sorted by name only so builds are reproducible, not because
// any invariant requires a particular order.
func IterDir(path string) ([]Entry, *mkerrors.Error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, mkerrors.Wrap(mkerrors.Resource, "unable to read directory "+path, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if len(name) == 0 || name[0] == '.' {
			continue
		}
		kind := KindFile
		if de.IsDir() {
			kind = KindDir
		}
		entries = append(entries, Entry{Name: name, Kind: kind})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

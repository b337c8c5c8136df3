// Package cache computes the on-disk layout of the checkpoint cache:
// per-dataset directories under a descriptor's job root, the hidden
// sibling where redundancy artifacts live, and the per-rank filemap
// location. Pure path algebra; nothing here touches the filesystem.
package cache

import (
	"fmt"
	"path/filepath"
)

// hiddenName is the directory component that keeps redundancy state out
// of the user-visible dataset listing.
const hiddenName = ".scr"

// JobDir derives a descriptor's job root under a store:
// <store>/<username>/scr.<jobid>, path-reduced.
func JobDir(storeName, username, jobID string) string {
	return filepath.Clean(filepath.Join(storeName, username, "scr."+jobID))
}

// DatasetDir is the user-visible directory for one checkpoint id under
// a descriptor's job root.
func DatasetDir(jobDir string, id int) string {
	return filepath.Join(jobDir, fmt.Sprintf("scr.dataset.%d", id))
}

// HiddenDir is the hidden sibling of DatasetDir holding redundancy
// artifacts and the filemap for one checkpoint id.
func HiddenDir(jobDir string, id int) string {
	return filepath.Join(jobDir, hiddenName, fmt.Sprintf("scr.dataset.%d", id))
}

// RedPrefix is the path prefix handed to the erasure library for one
// dataset's redundancy files.
func RedPrefix(hiddenDir string) string {
	return filepath.Join(hiddenDir, "reddesc")
}

// MapPath is the per-rank filemap database inside a hidden dataset
// directory.
func MapPath(hiddenDir string, rank int) string {
	return filepath.Join(hiddenDir, fmt.Sprintf("filemap_%d.db", rank))
}

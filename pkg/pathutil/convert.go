// Package pathutil converts between absolute and relative paths.
//
// The indexing and search pipelines work in absolute paths internally for
// consistency and to avoid ambiguity; RPC-facing output uses paths relative
// to the indexed project root for readability and portability. This package
// is the conversion layer between internal (absolute) and external
// (relative) representations.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative rewrites an absolute path as relative to rootDir. Inputs that
// are empty, already relative, outside rootDir, or on a different volume
// come back unchanged, so callers can hand the result straight to an RPC
// response without re-checking.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return absPath
	}
	rel, err := filepath.Rel(filepath.Clean(rootDir), filepath.Clean(absPath))
	if err != nil || strings.HasPrefix(rel, "..") {
		return absPath
	}
	return rel
}

// ToAbsolute converts a path relative to root into an absolute path, leaving
// already-absolute paths untouched. Used when an RPC caller supplies a
// project-relative path and the indexer needs to read the underlying file.
func ToAbsolute(path, rootDir string) string {
	if path == "" || rootDir == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Clean(filepath.Join(rootDir, path))
}

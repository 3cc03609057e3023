//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers sqlite-vec as an auto-loadable extension for every
	// connection opened through the mattn/go-sqlite3 driver. Building
	// without the sqlite_vec tag (the default) still works; the vector
	// store falls back to a brute-force cosine scan over the
	// embedding_blob column.
	vec.Auto()
}

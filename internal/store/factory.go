// Factory selection of the vector or keyword backend per configuration,
// falling back from vector to keyword on connection failure when allowed,
// and recording the degradation through the process-wide
// degradation.Tracker.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/degradation"
)

// New selects and initializes a backend:
//
//  1. Try the configured backend (default vector).
//  2. On connection failure and allowFallback=true, log a structured
//     degradation record and return the keyword backend.
//  3. On allowFallback=false, surface the connection error.
func New(ctx context.Context, cfg config.Storage, dimension int, allowFallback bool) (Store, error) {
	switch cfg.Backend {
	case config.BackendKeyword:
		return openKeyword(ctx, cfg)
	default:
		vs, err := openVectorBackend(ctx, cfg, dimension)
		if err == nil {
			return vs, nil
		}
		if !allowFallback {
			return nil, err
		}
		degradation.Global().AddWarning(
			"store_factory",
			fmt.Sprintf("vector backend unavailable: %v", err),
			"install/enable the sqlite-vec extension and retry with storage_backend=vector",
			"search falls back to full-text relevance; no semantic similarity until the vector backend is restored",
		)
		ks, kerr := openKeyword(ctx, cfg)
		if kerr != nil {
			return nil, kerr
		}
		return ks, nil
	}
}

func openVectorBackend(ctx context.Context, cfg config.Storage, dimension int) (Store, error) {
	vs, err := OpenVector(filepath.Join(cfg.SQLiteDir, "vectors.db"), dimension)
	if err != nil {
		return nil, err
	}
	if err := vs.Initialize(ctx); err != nil {
		vs.Close()
		return nil, err
	}
	return vs, nil
}

func openKeyword(ctx context.Context, cfg config.Storage) (Store, error) {
	ks, err := OpenKeyword(filepath.Join(cfg.SQLiteDir, "keyword.db"))
	if err != nil {
		return nil, err
	}
	if err := ks.Initialize(ctx); err != nil {
		ks.Close()
		return nil, err
	}
	return ks, nil
}

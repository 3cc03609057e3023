// Package store implements the uniform storage interface: the vector store
// (primary) and keyword store (fallback) both satisfy Store, selected by
// the factory in New. Both backends share a single-writer SQLite
// connection with WAL pragmas.
package store

import (
	"context"
	"time"

	"github.com/standardbeagle/semcode/internal/types"
)

// Scored pairs a retrieved Memory with its relevance score in [0,1]:
// cosine similarity for the vector backend, normalized full-text relevance
// for the keyword backend.
type Scored struct {
	Memory *types.Memory
	Score  float64
}

// Page is the paginated envelope shared by get_indexed_files and
// list_indexed_units.
type Page struct {
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// IndexedFile summarizes one file's indexing state for get_indexed_files.
type IndexedFile struct {
	FilePath    string
	Language    string
	UnitCount   int
	IndexedAt   time.Time
	FileSize    int64
	ProjectName string
}

// IndexedFilesResult is get_indexed_files' response envelope.
type IndexedFilesResult struct {
	Page
	Files []IndexedFile
}

// IndexedUnitsResult is list_indexed_units' response envelope.
type IndexedUnitsResult struct {
	Page
	Units []*types.Memory
}

// ScrollFunc is invoked once per matching Memory during a scroll. Returning
// false stops the scroll early.
type ScrollFunc func(*types.Memory) bool

// Store is the uniform interface both the vector and keyword backends
// satisfy. Every multi-step method honors a caller-supplied context for
// the store-call deadline; callers wrap with context.WithTimeout, not the
// store itself, so the store stays transport/timeout-agnostic.
type Store interface {
	Initialize(ctx context.Context) error

	// StoreOne persists one item and returns its id. Code units arrive with
	// their deterministic id already assigned; StoreOne generates a uuid
	// when id is absent, for non-code memory records.
	StoreOne(ctx context.Context, id, content string, embedding []float32, metadata map[string]any) (string, error)

	// BatchStore stores multiple items, preserving input order in the
	// returned ids, atomic at item granularity: a failure on one item does
	// not corrupt already-inserted items; the returned error (if any) wraps
	// an *errs.StorageError carrying WrittenSoFar.
	BatchStore(ctx context.Context, items []BatchItem) ([]string, error)

	Retrieve(ctx context.Context, queryEmbedding []float32, filter *types.MetadataFilter, limit int) ([]Scored, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*types.Memory, error)
	Count(ctx context.Context, filter *types.MetadataFilter) (int, error)
	Update(ctx context.Context, id string, patch map[string]any) (bool, error)

	Scroll(ctx context.Context, filter *types.MetadataFilter, pageSize int, fn ScrollFunc) error

	DeleteCodeUnitsByProject(ctx context.Context, project string) (int, error)
	DeleteCodeUnitsByFile(ctx context.Context, project, filePath string) (int, error)

	GetIndexedFiles(ctx context.Context, project string, limit, offset int) (*IndexedFilesResult, error)
	ListIndexedUnits(ctx context.Context, project, language, filePattern, unitType string, limit, offset int) (*IndexedUnitsResult, error)

	HealthCheck(ctx context.Context) bool
	Close() error
}

// BatchItem is one element of a BatchStore call.
type BatchItem struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]any
}

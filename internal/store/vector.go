// VectorStore is the primary backend: go-sqlite3 (cgo) plus the sqlite-vec
// extension for approximate nearest-neighbor search over embeddings, when
// the binary is built with the sqlite_vec tag (see vector_init.go);
// otherwise it degrades to an in-process brute-force cosine scan over the
// same rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/types"
)

// VectorStore is the primary, vector-search backend.
type VectorStore struct {
	db        *sql.DB
	dimension int
	vecIndex  bool // true once a vec0 virtual table was created successfully
}

// OpenVector opens (or creates) the vector store database at path for
// embeddings of the given dimension.
func OpenVector(path string, dimension int) (*VectorStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.NewStorageError("open_vector_store", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errs.NewStorageError("vector_store_pragma", err)
		}
	}

	return &VectorStore{db: db, dimension: dimension}, nil
}

const vectorSchema = `
CREATE TABLE IF NOT EXISTS memories (
	rowid_key      INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT UNIQUE NOT NULL,
	content        TEXT NOT NULL,
	category       TEXT NOT NULL,
	context_level  TEXT NOT NULL DEFAULT '',
	scope          TEXT NOT NULL,
	project_name   TEXT NOT NULL DEFAULT '',
	importance     REAL NOT NULL DEFAULT 0,
	embedding_model TEXT NOT NULL DEFAULT '',
	embedding_blob BLOB,
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL,
	tags_json      TEXT NOT NULL DEFAULT '[]',
	metadata_json  TEXT NOT NULL DEFAULT '{}',
	file_path      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_vmemories_project ON memories(project_name);
CREATE INDEX IF NOT EXISTS idx_vmemories_file ON memories(file_path);
`

func (s *VectorStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, vectorSchema); err != nil {
		return errs.NewStorageError("vector_store_schema", err)
	}
	s.vecIndex = s.tryCreateVecIndex(ctx)
	return nil
}

// tryCreateVecIndex attempts to create the vec0 virtual table; failure
// (extension unavailable, built without the sqlite_vec tag) is not fatal.
// The store continues to operate, just without ANN acceleration.
func (s *VectorStore) tryCreateVecIndex(ctx context.Context) bool {
	q := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[%d])`, s.dimension)
	_, err := s.db.ExecContext(ctx, q)
	return err == nil
}

func (s *VectorStore) Close() error { return s.db.Close() }

func (s *VectorStore) HealthCheck(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func (s *VectorStore) StoreOne(ctx context.Context, id, content string, embedding []float32, metadata map[string]any) (string, error) {
	if id == "" {
		id = newID()
	}
	r, err := encodeRow(id, content, metadata)
	if err != nil {
		return "", errs.NewStorageError("encode_row", err)
	}
	blob := encodeVector(embedding)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, category, context_level, scope, project_name, importance, embedding_model, embedding_blob, created_at, updated_at, tags_json, metadata_json, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content, category = excluded.category, context_level = excluded.context_level,
			scope = excluded.scope, project_name = excluded.project_name, importance = excluded.importance,
			embedding_model = excluded.embedding_model, embedding_blob = excluded.embedding_blob,
			updated_at = excluded.updated_at, tags_json = excluded.tags_json, metadata_json = excluded.metadata_json,
			file_path = excluded.file_path
	`, r.ID, r.Content, r.Category, r.ContextLevel, r.Scope, r.ProjectName, r.Importance, r.EmbeddingModel, blob, r.CreatedAt, r.UpdatedAt, r.TagsJSON, r.MetadataJSON, filePathOf(metadata))
	if err != nil {
		return "", errs.NewStorageError("vector_store_one", err)
	}

	if s.vecIndex && len(embedding) > 0 {
		rowID, _ := res.LastInsertId()
		if rowID == 0 {
			s.db.QueryRowContext(ctx, `SELECT rowid_key FROM memories WHERE id = ?`, id).Scan(&rowID)
		}
		_, _ = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO vec_index (rowid, embedding) VALUES (?, ?)`, rowID, blob)
	}

	return id, nil
}

func (s *VectorStore) BatchStore(ctx context.Context, items []BatchItem) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, err := s.StoreOne(ctx, item.ID, item.Content, item.Embedding, item.Metadata)
		if err != nil {
			return ids, errs.NewStorageError("vector_batch_store", err).WithWrittenSoFar(i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *VectorStore) Retrieve(ctx context.Context, queryEmbedding []float32, filter *types.MetadataFilter, limit int) ([]Scored, error) {
	if limit <= 0 {
		limit = 10
	}
	if s.vecIndex {
		if scored, err := s.searchVec(ctx, queryEmbedding, filter, limit); err == nil {
			return scored, nil
		}
		// ANN path failed at query time (e.g. dimension mismatch); degrade
		// to brute force for this call rather than erroring the caller out.
	}
	return s.searchBruteForce(ctx, queryEmbedding, filter, limit)
}

func (s *VectorStore) searchVec(ctx context.Context, queryEmbedding []float32, filter *types.MetadataFilter, limit int) ([]Scored, error) {
	where, args := whereClause(filter)
	blob := encodeVector(queryEmbedding)

	query := fmt.Sprintf(`
		SELECT m.id, m.content, m.category, m.context_level, m.scope, m.project_name, m.importance, m.embedding_model, m.created_at, m.updated_at, m.tags_json, m.metadata_json, v.distance
		FROM vec_index v
		JOIN memories m ON m.rowid_key = v.rowid
		WHERE v.embedding MATCH ? AND k = ? AND %s
		ORDER BY v.distance
	`, where)
	rows, err := s.db.QueryContext(ctx, query, append([]any{blob, limit}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scored
	for rows.Next() {
		var r row
		var distance float64
		if err := rows.Scan(&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON, &distance); err != nil {
			continue
		}
		// sqlite-vec's vec_distance_cosine is 1-cosine; map back to [0,1]
		// similarity the same way the brute-force path does.
		score := 1 - distance/2
		out = append(out, Scored{Memory: decodeRow(r), Score: score})
	}
	return out, rows.Err()
}

func (s *VectorStore) searchBruteForce(ctx context.Context, queryEmbedding []float32, filter *types.MetadataFilter, limit int) ([]Scored, error) {
	where, args := whereClause(filter)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, category, context_level, scope, project_name, importance, embedding_model, created_at, updated_at, tags_json, metadata_json, embedding_blob
		FROM memories WHERE %s AND embedding_blob IS NOT NULL
	`, where), args...)
	if err != nil {
		return nil, errs.NewRetrievalError("vector_search", err)
	}
	defer rows.Close()

	var candidates []Scored
	for rows.Next() {
		var r row
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON, &blob); err != nil {
			continue
		}
		vec := decodeVector(blob)
		candidates = append(candidates, Scored{Memory: decodeRow(r), Score: cosineSimilarity(queryEmbedding, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewRetrievalError("vector_search", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (s *VectorStore) Delete(ctx context.Context, id string) (bool, error) {
	var rowID int64
	if err := s.db.QueryRowContext(ctx, `SELECT rowid_key FROM memories WHERE id = ?`, id).Scan(&rowID); err == sql.ErrNoRows {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, errs.NewStorageError("vector_delete", err)
	}
	if s.vecIndex {
		s.db.ExecContext(ctx, `DELETE FROM vec_index WHERE rowid = ?`, rowID)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *VectorStore) GetByID(ctx context.Context, id string) (*types.Memory, error) {
	var r row
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, category, context_level, scope, project_name, importance, embedding_model, created_at, updated_at, tags_json, metadata_json
		FROM memories WHERE id = ?
	`, id).Scan(&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON)
	if err == sql.ErrNoRows {
		return nil, errs.NewMemoryNotFoundError(id)
	}
	if err != nil {
		return nil, errs.NewStorageError("vector_get_by_id", err)
	}
	return decodeRow(r), nil
}

func (s *VectorStore) Count(ctx context.Context, filter *types.MetadataFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM memories WHERE %s`, where), args...).Scan(&n); err != nil {
		return 0, errs.NewStorageError("vector_count", err)
	}
	return n, nil
}

func (s *VectorStore) Update(ctx context.Context, id string, patch map[string]any) (bool, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	for k, v := range patch {
		if existing.Metadata == nil {
			existing.Metadata = map[string]any{}
		}
		existing.Metadata[k] = v
	}
	content := existing.Content
	if c, ok := patch["content"].(string); ok {
		content = c
	}
	var blob []byte
	_ = s.db.QueryRowContext(ctx, `SELECT embedding_blob FROM memories WHERE id = ?`, id).Scan(&blob)
	embedding := decodeVector(blob)
	if _, err := s.StoreOne(ctx, id, content, embedding, existing.Metadata); err != nil {
		return false, err
	}
	return true, nil
}

func (s *VectorStore) Scroll(ctx context.Context, filter *types.MetadataFilter, pageSize int, fn ScrollFunc) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	where, args := whereClause(filter)
	offset := 0
	for {
		// Payload-only scroll: embedding_blob is not selected here, so
		// callers that only need metadata don't pay for the vectors.
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, content, category, context_level, scope, project_name, importance, embedding_model, created_at, updated_at, tags_json, metadata_json
			FROM memories WHERE %s ORDER BY rowid_key LIMIT ? OFFSET ?
		`, where), append(append([]any{}, args...), pageSize, offset)...)
		if err != nil {
			return errs.NewStorageError("vector_scroll", err)
		}
		n := 0
		stop := false
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON); err != nil {
				continue
			}
			n++
			if !fn(decodeRow(r)) {
				stop = true
				break
			}
		}
		rows.Close()
		if stop || n < pageSize {
			return nil
		}
		offset += pageSize
	}
}

func (s *VectorStore) DeleteCodeUnitsByProject(ctx context.Context, project string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE project_name = ? AND category = 'code'`, project)
	if err != nil {
		return 0, errs.NewStorageError("vector_delete_project", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *VectorStore) DeleteCodeUnitsByFile(ctx context.Context, project, filePath string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE project_name = ? AND file_path = ? AND category = 'code'`, project, filePath)
	if err != nil {
		return 0, errs.NewStorageError("vector_delete_file", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *VectorStore) GetIndexedFiles(ctx context.Context, project string, limit, offset int) (*IndexedFilesResult, error) {
	if limit <= 0 {
		limit = 50
	}
	var args []any
	where := "category = 'code'"
	if project != "" {
		where += " AND project_name = ?"
		args = append(args, project)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(DISTINCT file_path) FROM memories WHERE %s`, where), args...).Scan(&total); err != nil {
		return nil, errs.NewStorageError("vector_get_indexed_files_count", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT file_path, MAX(metadata_json), COUNT(*), MAX(updated_at), project_name
		FROM memories WHERE %s GROUP BY file_path, project_name ORDER BY file_path LIMIT ? OFFSET ?
	`, where), append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, errs.NewStorageError("vector_get_indexed_files", err)
	}
	defer rows.Close()

	var files []IndexedFile
	for rows.Next() {
		var fp, metaJSON, proj string
		var count int
		var updatedAt int64
		if err := rows.Scan(&fp, &metaJSON, &count, &updatedAt, &proj); err != nil {
			continue
		}
		lang, size := languageAndSizeFromMetadataJSON(metaJSON)
		files = append(files, IndexedFile{FilePath: fp, Language: lang, UnitCount: count, IndexedAt: unixToTime(updatedAt), FileSize: size, ProjectName: proj})
	}

	return &IndexedFilesResult{Page: Page{Total: total, Limit: limit, Offset: offset, HasMore: offset+len(files) < total}, Files: files}, nil
}

func (s *VectorStore) ListIndexedUnits(ctx context.Context, project, language, filePattern, unitType string, limit, offset int) (*IndexedUnitsResult, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "category = 'code'"
	var args []any
	if project != "" {
		where += " AND project_name = ?"
		args = append(args, project)
	}
	if filePattern != "" {
		where += " AND file_path LIKE ?"
		args = append(args, "%"+filePattern+"%")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, category, context_level, scope, project_name, importance, embedding_model, created_at, updated_at, tags_json, metadata_json
		FROM memories WHERE %s ORDER BY rowid_key
	`, where), args...)
	if err != nil {
		return nil, errs.NewStorageError("vector_list_units", err)
	}
	defer rows.Close()

	var all []*types.Memory
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON); err != nil {
			continue
		}
		m := decodeRow(r)
		if language != "" && !strings.EqualFold(fmt.Sprint(m.Metadata["language"]), language) {
			continue
		}
		if unitType != "" && fmt.Sprint(m.Metadata["unit_type"]) != unitType {
			continue
		}
		all = append(all, m)
	}

	total := len(all)
	lo := offset
	if lo > total {
		lo = total
	}
	hi := lo + limit
	if hi > total {
		hi = total
	}

	return &IndexedUnitsResult{Page: Page{Total: total, Limit: limit, Offset: offset, HasMore: hi < total}, Units: all[lo:hi]}, nil
}

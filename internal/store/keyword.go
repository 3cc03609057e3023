// KeywordStore is the fallback backend: a pure-Go sqlite
// (modernc.org/sqlite, no cgo) table of memories with an FTS5 full-text
// index on content. It offers no semantic similarity; scores are
// normalized full-text relevance. The gitstore package reuses the same
// single-writer connection shape for its git_commits/git_file_changes
// tables.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/types"
)

// KeywordStore is the fallback, full-text backend.
type KeywordStore struct {
	db *sql.DB
}

// OpenKeyword opens (or creates) the keyword store database at path.
func OpenKeyword(path string) (*KeywordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.NewStorageError("open_keyword_store", err)
	}
	db.SetMaxOpenConns(1) // single writer

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errs.NewStorageError("keyword_store_pragma", err)
		}
	}

	return &KeywordStore{db: db}, nil
}

const keywordSchema = `
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
CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project_name);
CREATE INDEX IF NOT EXISTS idx_memories_file ON memories(file_path);
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	content, content='memories', content_rowid='rowid_key'
);
CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, content) VALUES (new.rowid_key, new.content);
END;
CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content) VALUES ('delete', old.rowid_key, old.content);
END;
CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, content) VALUES ('delete', old.rowid_key, old.content);
	INSERT INTO memories_fts(rowid, content) VALUES (new.rowid_key, new.content);
END;
`

func (s *KeywordStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, keywordSchema); err != nil {
		return errs.NewStorageError("keyword_store_schema", err)
	}
	return nil
}

func (s *KeywordStore) Close() error { return s.db.Close() }

func (s *KeywordStore) HealthCheck(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func filePathOf(m map[string]any) string {
	fp, _ := m["file_path"].(string)
	return fp
}

func (s *KeywordStore) StoreOne(ctx context.Context, id, content string, embedding []float32, metadata map[string]any) (string, error) {
	if id == "" {
		id = newID()
	}
	r, err := encodeRow(id, content, metadata)
	if err != nil {
		return "", errs.NewStorageError("encode_row", err)
	}
	var blob []byte
	if len(embedding) > 0 {
		blob = encodeVector(embedding)
	}

	_, err = s.db.ExecContext(ctx, `
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
		return "", errs.NewStorageError("keyword_store_one", err)
	}
	return id, nil
}

func (s *KeywordStore) BatchStore(ctx context.Context, items []BatchItem) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, err := s.StoreOne(ctx, item.ID, item.Content, item.Embedding, item.Metadata)
		if err != nil {
			return ids, errs.NewStorageError("keyword_batch_store", err).WithWrittenSoFar(i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Retrieve implements Store.Retrieve for the keyword backend.
// queryEmbedding is ignored and no text query is applied: it returns the
// filter's matches ordered by importance (RetrieveText with empty text).
// Full-text search goes through RetrieveText.
func (s *KeywordStore) Retrieve(ctx context.Context, queryEmbedding []float32, filter *types.MetadataFilter, limit int) ([]Scored, error) {
	return s.RetrieveText(ctx, "", filter, limit)
}

// RetrieveText is the keyword store's native entry point: full-text query
// against FTS5, ranked by bm25(), restricted by the same metadata filter
// fields as the vector backend.
func (s *KeywordStore) RetrieveText(ctx context.Context, queryText string, filter *types.MetadataFilter, limit int) ([]Scored, error) {
	where, args := whereClause(filter)

	var query string
	var queryArgs []any
	if strings.TrimSpace(queryText) == "" {
		query = fmt.Sprintf(`
			SELECT m.id, m.content, m.category, m.context_level, m.scope, m.project_name, m.importance, m.embedding_model, m.created_at, m.updated_at, m.tags_json, m.metadata_json
			FROM memories m
			WHERE %s
			ORDER BY m.importance DESC
			LIMIT ?
		`, where)
		queryArgs = append(append([]any{}, args...), limit)
	} else {
		query = fmt.Sprintf(`
			SELECT m.id, m.content, m.category, m.context_level, m.scope, m.project_name, m.importance, m.embedding_model, m.created_at, m.updated_at, m.tags_json, m.metadata_json,
			       bm25(memories_fts) AS rank
			FROM memories m
			JOIN memories_fts ON memories_fts.rowid = m.rowid_key
			WHERE memories_fts MATCH ? AND %s
			ORDER BY rank
			LIMIT ?
		`, where)
		queryArgs = append(append([]any{ftsEscape(queryText)}, args...), limit)
	}

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, errs.NewRetrievalError(queryText, err)
	}
	defer rows.Close()

	var out []Scored
	var maxAbsRank float64 = 1
	type raw struct {
		r    row
		rank float64
	}
	var raws []raw
	for rows.Next() {
		var r row
		var rank sql.NullFloat64
		var cols []any
		if strings.TrimSpace(queryText) == "" {
			cols = []any{&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON}
		} else {
			cols = []any{&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON, &rank}
		}
		if err := rows.Scan(cols...); err != nil {
			continue
		}
		rv := 0.0
		if rank.Valid {
			rv = -rank.Float64 // bm25() is lower-is-better; negate for a maximize-able score
			if -rank.Float64 > maxAbsRank {
				maxAbsRank = -rank.Float64
			}
		}
		raws = append(raws, raw{r: r, rank: rv})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewRetrievalError(queryText, err)
	}

	for _, rw := range raws {
		score := rw.r.Importance
		if strings.TrimSpace(queryText) != "" && maxAbsRank > 0 {
			score = normalize01(rw.rank, maxAbsRank)
		}
		out = append(out, Scored{Memory: decodeRow(rw.r), Score: score})
	}
	return out, nil
}

func normalize01(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	n := v / max
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return n
}

// ftsEscape wraps each whitespace-separated term in double quotes so FTS5's
// query syntax treats punctuation in the raw search text literally rather
// than as operators; the quoted terms are joined by FTS5's implicit AND.
func ftsEscape(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func (s *KeywordStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, errs.NewStorageError("keyword_delete", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *KeywordStore) GetByID(ctx context.Context, id string) (*types.Memory, error) {
	var r row
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, category, context_level, scope, project_name, importance, embedding_model, created_at, updated_at, tags_json, metadata_json
		FROM memories WHERE id = ?
	`, id).Scan(&r.ID, &r.Content, &r.Category, &r.ContextLevel, &r.Scope, &r.ProjectName, &r.Importance, &r.EmbeddingModel, &r.CreatedAt, &r.UpdatedAt, &r.TagsJSON, &r.MetadataJSON)
	if err == sql.ErrNoRows {
		return nil, errs.NewMemoryNotFoundError(id)
	}
	if err != nil {
		return nil, errs.NewStorageError("keyword_get_by_id", err)
	}
	return decodeRow(r), nil
}

func (s *KeywordStore) Count(ctx context.Context, filter *types.MetadataFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM memories WHERE %s`, where), args...).Scan(&n)
	if err != nil {
		return 0, errs.NewStorageError("keyword_count", err)
	}
	return n, nil
}

func (s *KeywordStore) Update(ctx context.Context, id string, patch map[string]any) (bool, error) {
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
	if _, err := s.StoreOne(ctx, id, content, decodeVector(blob), existing.Metadata); err != nil {
		return false, err
	}
	return true, nil
}

func (s *KeywordStore) Scroll(ctx context.Context, filter *types.MetadataFilter, pageSize int, fn ScrollFunc) error {
	if pageSize <= 0 {
		pageSize = 100
	}
	where, args := whereClause(filter)
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, content, category, context_level, scope, project_name, importance, embedding_model, created_at, updated_at, tags_json, metadata_json
			FROM memories WHERE %s ORDER BY rowid_key LIMIT ? OFFSET ?
		`, where), append(append([]any{}, args...), pageSize, offset)...)
		if err != nil {
			return errs.NewStorageError("keyword_scroll", err)
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

func (s *KeywordStore) DeleteCodeUnitsByProject(ctx context.Context, project string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE project_name = ? AND category = 'code'`, project)
	if err != nil {
		return 0, errs.NewStorageError("keyword_delete_project", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *KeywordStore) DeleteCodeUnitsByFile(ctx context.Context, project, filePath string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE project_name = ? AND file_path = ? AND category = 'code'`, project, filePath)
	if err != nil {
		return 0, errs.NewStorageError("keyword_delete_file", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *KeywordStore) GetIndexedFiles(ctx context.Context, project string, limit, offset int) (*IndexedFilesResult, error) {
	if limit <= 0 {
		limit = 50
	}
	args := []any{}
	where := "category = 'code'"
	if project != "" {
		where += " AND project_name = ?"
		args = append(args, project)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(DISTINCT file_path) FROM memories WHERE %s`, where), args...).Scan(&total); err != nil {
		return nil, errs.NewStorageError("keyword_get_indexed_files_count", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT file_path, MAX(metadata_json), COUNT(*), MAX(updated_at), project_name
		FROM memories WHERE %s GROUP BY file_path, project_name ORDER BY file_path LIMIT ? OFFSET ?
	`, where), append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, errs.NewStorageError("keyword_get_indexed_files", err)
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
		files = append(files, IndexedFile{
			FilePath:    fp,
			Language:    lang,
			UnitCount:   count,
			IndexedAt:   time.Unix(updatedAt, 0).UTC(),
			FileSize:    size,
			ProjectName: proj,
		})
	}

	return &IndexedFilesResult{
		Page:  Page{Total: total, Limit: limit, Offset: offset, HasMore: offset+len(files) < total},
		Files: files,
	}, nil
}

func (s *KeywordStore) ListIndexedUnits(ctx context.Context, project, language, filePattern, unitType string, limit, offset int) (*IndexedUnitsResult, error) {
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
		FROM memories WHERE %s ORDER BY rowid_key LIMIT ? OFFSET ?
	`, where), append(append([]any{}, args...), limit*4, 0)...) // overselect, filter language/unit_type client-side below
	if err != nil {
		return nil, errs.NewStorageError("keyword_list_units", err)
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
	page := all[lo:hi]

	return &IndexedUnitsResult{
		Page:  Page{Total: total, Limit: limit, Offset: offset, HasMore: hi < total},
		Units: page,
	}, nil
}

func languageAndSizeFromMetadataJSON(metaJSON string) (string, int64) {
	var m map[string]any
	_ = json.Unmarshal([]byte(metaJSON), &m)
	lang, _ := m["language"].(string)
	var size int64
	if sz, ok := m["file_size_bytes"].(float64); ok {
		size = int64(sz)
	}
	return lang, size
}

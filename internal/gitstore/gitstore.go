// Package gitstore implements the commit store: a pure storage shape for
// git_commits/git_file_changes with store_commit/get_commit operations
// only. No history walking, diffing, or ingestion pipeline happens here;
// callers supply already-extracted commit and file-change records.
//
// Shares store.KeywordStore's single-writer sqlite shape: same
// modernc.org/sqlite driver, WAL pragmas, FTS5 content table over message.
package gitstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/semcode/internal/errs"
)

// ChangeType is the set of accepted git_file_changes.change_type values.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// FileChange is one row of git_file_changes.
type FileChange struct {
	FilePath      string
	ChangeType    ChangeType
	LinesAdded    int
	LinesDeleted  int
	DiffContent   string
	DiffEmbedding []float32
}

// Commit is one row of git_commits plus its associated file changes.
type Commit struct {
	Hash             string
	RepositoryPath   string
	AuthorName       string
	AuthorEmail      string
	AuthorDate       int64
	CommitterName    string
	CommitterDate    int64
	Message          string
	MessageEmbedding []float32
	BranchNames      []string
	Tags             []string
	ParentHashes     []string
	Stats            map[string]any
	FileChanges      []FileChange
}

func (c ChangeType) valid() bool {
	switch c {
	case ChangeAdded, ChangeModified, ChangeDeleted, ChangeRenamed:
		return true
	default:
		return false
	}
}

// Store is the C-adjacent commit-store backend.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the commit store database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.NewStorageError("open_gitstore", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errs.NewStorageError("gitstore_pragma", err)
		}
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS git_commits (
	commit_hash         TEXT PRIMARY KEY,
	repository_path     TEXT NOT NULL,
	author_name         TEXT NOT NULL DEFAULT '',
	author_email        TEXT NOT NULL DEFAULT '',
	author_date         INTEGER NOT NULL DEFAULT 0,
	committer_name      TEXT NOT NULL DEFAULT '',
	committer_date      INTEGER NOT NULL DEFAULT 0,
	message             TEXT NOT NULL DEFAULT '',
	message_embedding_blob BLOB,
	branch_names_json   TEXT NOT NULL DEFAULT '[]',
	tags_json           TEXT NOT NULL DEFAULT '[]',
	parent_hashes_json  TEXT NOT NULL DEFAULT '[]',
	stats_json          TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_git_commits_repo ON git_commits(repository_path);
CREATE VIRTUAL TABLE IF NOT EXISTS git_commits_fts USING fts5(
	message, content='git_commits', content_rowid='rowid'
);
CREATE TRIGGER IF NOT EXISTS git_commits_ai AFTER INSERT ON git_commits BEGIN
	INSERT INTO git_commits_fts(rowid, message) VALUES (new.rowid, new.message);
END;
CREATE TRIGGER IF NOT EXISTS git_commits_ad AFTER DELETE ON git_commits BEGIN
	INSERT INTO git_commits_fts(git_commits_fts, rowid, message) VALUES ('delete', old.rowid, old.message);
END;
CREATE TRIGGER IF NOT EXISTS git_commits_au AFTER UPDATE ON git_commits BEGIN
	INSERT INTO git_commits_fts(git_commits_fts, rowid, message) VALUES ('delete', old.rowid, old.message);
	INSERT INTO git_commits_fts(rowid, message) VALUES (new.rowid, new.message);
END;

CREATE TABLE IF NOT EXISTS git_file_changes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	commit_hash    TEXT NOT NULL REFERENCES git_commits(commit_hash) ON DELETE CASCADE,
	file_path      TEXT NOT NULL,
	change_type    TEXT NOT NULL,
	lines_added    INTEGER NOT NULL DEFAULT 0,
	lines_deleted  INTEGER NOT NULL DEFAULT 0,
	diff_content   TEXT,
	diff_embedding_blob BLOB
);
CREATE INDEX IF NOT EXISTS idx_git_file_changes_commit ON git_file_changes(commit_hash);
CREATE INDEX IF NOT EXISTS idx_git_file_changes_path ON git_file_changes(file_path);
`

func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errs.NewStorageError("gitstore_schema", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		b[i*4+0] = byte(bits)
		b[i*4+1] = byte(bits >> 8)
		b[i*4+2] = byte(bits >> 16)
		b[i*4+3] = byte(bits >> 24)
	}
	return b
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// StoreCommit upserts a commit and replaces its associated file changes.
// No history walking happens here; the caller supplies the fully-populated
// Commit.
func (s *Store) StoreCommit(ctx context.Context, c Commit) error {
	if c.Hash == "" {
		return errs.NewValidationError("hash", "commit hash must not be empty")
	}
	for _, fc := range c.FileChanges {
		if !fc.ChangeType.valid() {
			return errs.NewValidationError("change_type", "unknown change_type "+string(fc.ChangeType))
		}
	}

	branchJSON, _ := json.Marshal(nonNilStrings(c.BranchNames))
	tagsJSON, _ := json.Marshal(nonNilStrings(c.Tags))
	parentsJSON, _ := json.Marshal(nonNilStrings(c.ParentHashes))
	statsJSON, err := json.Marshal(nonNilMap(c.Stats))
	if err != nil {
		return errs.NewStorageError("encode_commit_stats", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewStorageError("gitstore_begin_tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO git_commits (commit_hash, repository_path, author_name, author_email, author_date, committer_name, committer_date, message, message_embedding_blob, branch_names_json, tags_json, parent_hashes_json, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(commit_hash) DO UPDATE SET
			repository_path = excluded.repository_path, author_name = excluded.author_name,
			author_email = excluded.author_email, author_date = excluded.author_date,
			committer_name = excluded.committer_name, committer_date = excluded.committer_date,
			message = excluded.message, message_embedding_blob = excluded.message_embedding_blob,
			branch_names_json = excluded.branch_names_json, tags_json = excluded.tags_json,
			parent_hashes_json = excluded.parent_hashes_json, stats_json = excluded.stats_json
	`, c.Hash, c.RepositoryPath, c.AuthorName, c.AuthorEmail, c.AuthorDate, c.CommitterName, c.CommitterDate,
		c.Message, encodeEmbedding(c.MessageEmbedding), string(branchJSON), string(tagsJSON), string(parentsJSON), string(statsJSON))
	if err != nil {
		return errs.NewStorageError("gitstore_store_commit", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM git_file_changes WHERE commit_hash = ?`, c.Hash); err != nil {
		return errs.NewStorageError("gitstore_clear_file_changes", err)
	}
	for _, fc := range c.FileChanges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO git_file_changes (commit_hash, file_path, change_type, lines_added, lines_deleted, diff_content, diff_embedding_blob)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.Hash, fc.FilePath, string(fc.ChangeType), fc.LinesAdded, fc.LinesDeleted, nullableString(fc.DiffContent), encodeEmbedding(fc.DiffEmbedding))
		if err != nil {
			return errs.NewStorageError("gitstore_store_file_change", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.NewStorageError("gitstore_commit_tx", err)
	}
	return nil
}

// GetCommit retrieves a commit and its file changes by hash. Returns
// ok=false when absent.
func (s *Store) GetCommit(ctx context.Context, hash string) (*Commit, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT commit_hash, repository_path, author_name, author_email, author_date, committer_name, committer_date, message, message_embedding_blob, branch_names_json, tags_json, parent_hashes_json, stats_json
		FROM git_commits WHERE commit_hash = ?
	`, hash)

	var c Commit
	var embBlob []byte
	var branchJSON, tagsJSON, parentsJSON, statsJSON string
	if err := row.Scan(&c.Hash, &c.RepositoryPath, &c.AuthorName, &c.AuthorEmail, &c.AuthorDate, &c.CommitterName, &c.CommitterDate, &c.Message, &embBlob, &branchJSON, &tagsJSON, &parentsJSON, &statsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errs.NewStorageError("gitstore_get_commit", err)
	}
	c.MessageEmbedding = decodeEmbedding(embBlob)
	_ = json.Unmarshal([]byte(branchJSON), &c.BranchNames)
	_ = json.Unmarshal([]byte(tagsJSON), &c.Tags)
	_ = json.Unmarshal([]byte(parentsJSON), &c.ParentHashes)
	_ = json.Unmarshal([]byte(statsJSON), &c.Stats)

	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, change_type, lines_added, lines_deleted, diff_content, diff_embedding_blob
		FROM git_file_changes WHERE commit_hash = ? ORDER BY id
	`, hash)
	if err != nil {
		return nil, false, errs.NewStorageError("gitstore_get_file_changes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fc FileChange
		var diffContent sql.NullString
		var diffBlob []byte
		var changeType string
		if err := rows.Scan(&fc.FilePath, &changeType, &fc.LinesAdded, &fc.LinesDeleted, &diffContent, &diffBlob); err != nil {
			return nil, false, errs.NewStorageError("gitstore_scan_file_change", err)
		}
		fc.ChangeType = ChangeType(changeType)
		fc.DiffContent = diffContent.String
		fc.DiffEmbedding = decodeEmbedding(diffBlob)
		c.FileChanges = append(c.FileChanges, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, false, errs.NewStorageError("gitstore_iterate_file_changes", err)
	}
	return &c, true, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

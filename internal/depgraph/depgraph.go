// Package depgraph persists the per-project dependency graph: a directed
// graph over files derived from each file's extracted ImportInfo records.
// It shares internal/callgraph's SQLite-backed node/edge store shape (same
// single-writer WAL setup, same project-scoped primary keys) with a
// file-path key in place of the function-qualified-name key.
// FindDependencyPath runs the same BFS as callgraph.Store.FindCallChain
// against a file-edge map instead of a call-edge map.
package depgraph

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/types"
)

// Store is the dependency-graph backend.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the dependency-graph database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.NewStorageError("open_dependency_graph_store", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errs.NewStorageError("dependency_graph_store_pragma", err)
		}
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS dependency_edges (
			project    TEXT NOT NULL,
			from_file  TEXT NOT NULL,
			to_module  TEXT NOT NULL,
			resolved   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (project, from_file, to_module)
		);
		CREATE INDEX IF NOT EXISTS idx_dep_edges_to ON dependency_edges(project, resolved);
	`)
	if err != nil {
		return errs.NewStorageError("dependency_graph_store_schema", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// DependencyEdge is one (module-level) import recorded for a file.
type DependencyEdge struct {
	ToModule string
	Resolved string // resolved file path within the project, empty if external/unresolved
}

// StoreFileDependencies replaces the full set of outgoing edges for
// fromFile (reconciliation: a re-indexed file's old edges never linger,
// matching the indexer's delete-then-store discipline for units).
func (s *Store) StoreFileDependencies(ctx context.Context, project, fromFile string, edges []DependencyEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewStorageError("store_file_dependencies_begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependency_edges WHERE project = ? AND from_file = ?`, project, fromFile); err != nil {
		return errs.NewStorageError("store_file_dependencies_delete", err)
	}
	for _, e := range edges {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO dependency_edges (project, from_file, to_module, resolved)
			VALUES (?, ?, ?, ?)
		`, project, fromFile, e.ToModule, e.Resolved); err != nil {
			return errs.NewStorageError("store_file_dependencies_insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewStorageError("store_file_dependencies_commit", err)
	}
	return nil
}

// DeleteFileDependencies removes every outgoing edge recorded for a file,
// used when a file is removed from the project.
func (s *Store) DeleteFileDependencies(ctx context.Context, project, file string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dependency_edges WHERE project = ? AND from_file = ?`, project, file)
	if err != nil {
		return errs.NewStorageError("delete_file_dependencies", err)
	}
	return nil
}

// GetDependencies returns the resolved file paths fromFile imports.
// Unresolved (external) imports are omitted since they name no in-project
// file.
func (s *Store) GetDependencies(ctx context.Context, project, file string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resolved FROM dependency_edges WHERE project = ? AND from_file = ? AND resolved != ''
	`, project, file)
	if err != nil {
		return nil, errs.NewRetrievalError("get_file_dependencies", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetDependents returns every file that imports file: the reverse edge
// direction of GetDependencies.
func (s *Store) GetDependents(ctx context.Context, project, file string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT from_file FROM dependency_edges WHERE project = ? AND resolved = ?
	`, project, file)
	if err != nil {
		return nil, errs.NewRetrievalError("get_file_dependents", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const maxDependencyPaths = 5

// FindDependencyPath returns shortest chains of resolved file paths from
// src to dst: BFS over the resolved edge set, capped at maxDependencyPaths,
// the same shape as callgraph.Store.FindCallChain generalized to file
// nodes. As there, each node is expanded once, so the result need not hold
// every shortest chain.
func (s *Store) FindDependencyPath(ctx context.Context, project, src, dst string) ([][]string, error) {
	edges, err := s.loadEdgeMap(ctx, project)
	if err != nil {
		return nil, err
	}
	if src == dst {
		return [][]string{{src}}, nil
	}

	type queueItem struct{ path []string }
	visited := map[string]bool{src: true}
	queue := []queueItem{{path: []string{src}}}
	var results [][]string
	foundAtDepth := -1

	for len(queue) > 0 && len(results) < maxDependencyPaths {
		item := queue[0]
		queue = queue[1:]
		last := item.path[len(item.path)-1]

		if foundAtDepth >= 0 && len(item.path) > foundAtDepth {
			break
		}

		for _, next := range edges[last] {
			if next == dst {
				full := append(append([]string{}, item.path...), next)
				results = append(results, full)
				if foundAtDepth < 0 {
					foundAtDepth = len(full)
				}
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, queueItem{path: append(append([]string{}, item.path...), next)})
		}
	}
	return results, nil
}

func (s *Store) loadEdgeMap(ctx context.Context, project string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_file, resolved FROM dependency_edges WHERE project = ? AND resolved != ''
	`, project)
	if err != nil {
		return nil, errs.NewRetrievalError("find_dependency_path", err)
	}
	defer rows.Close()
	edges := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			continue
		}
		edges[from] = append(edges[from], to)
	}
	return edges, rows.Err()
}

// Stats is get_dependency_stats' response envelope.
type Stats struct {
	TotalFiles int
	TotalEdges int
	Cycles     [][]string
}

// GetStats computes node/edge counts plus cycle detection via
// types.DependencyGraph.FindCycles, run against a snapshot loaded fresh
// from the store.
func (s *Store) GetStats(ctx context.Context, project string) (*Stats, error) {
	edges, err := s.loadEdgeMap(ctx, project)
	if err != nil {
		return nil, err
	}
	g := types.NewDependencyGraph()
	nodes := make(map[string]bool)
	edgeCount := 0
	for from, tos := range edges {
		nodes[from] = true
		for _, to := range tos {
			nodes[to] = true
			edgeCount++
			g.AddEdge(from, to)
		}
	}
	return &Stats{
		TotalFiles: len(nodes),
		TotalEdges: edgeCount,
		Cycles:     g.FindCycles(),
	}, nil
}

// DeleteProjectDependencies removes every edge scoped to project.
func (s *Store) DeleteProjectDependencies(ctx context.Context, project string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dependency_edges WHERE project = ?`, project)
	if err != nil {
		return 0, errs.NewStorageError("delete_project_dependencies", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}


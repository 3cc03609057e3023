// Package callgraph implements the call-graph store: persisted function
// nodes and directed call edges, scoped per project, queried via BFS for
// shortest call chains. Nodes key on (project, qualified_name); edges
// reference callees by qualified name, and a callee node need not exist
// when an edge is recorded.
package callgraph

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/types"
)

// Store persists call-graph nodes and edges.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the call-graph database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.NewStorageError("open_call_graph_store", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errs.NewStorageError("call_graph_store_pragma", err)
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
		CREATE TABLE IF NOT EXISTS call_nodes (
			project        TEXT NOT NULL,
			qualified_name TEXT NOT NULL,
			name           TEXT NOT NULL,
			file_path      TEXT NOT NULL,
			language       TEXT NOT NULL,
			start_line     INTEGER NOT NULL,
			end_line       INTEGER NOT NULL,
			is_exported    INTEGER NOT NULL,
			is_async       INTEGER NOT NULL,
			parameters_json TEXT NOT NULL DEFAULT '[]',
			return_type    TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (project, qualified_name)
		);
		CREATE TABLE IF NOT EXISTS call_edges (
			project TEXT NOT NULL,
			caller  TEXT NOT NULL,
			callee  TEXT NOT NULL,
			line    INTEGER NOT NULL DEFAULT 0,
			column  INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 1.0,
			PRIMARY KEY (project, caller, callee, line, column)
		);
		CREATE TABLE IF NOT EXISTS implementations (
			project   TEXT NOT NULL,
			interface_name TEXT NOT NULL,
			type_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			line      INTEGER NOT NULL,
			PRIMARY KEY (project, interface_name, type_name, file_path, line)
		);
		CREATE INDEX IF NOT EXISTS idx_call_edges_callee ON call_edges(project, callee);
		CREATE INDEX IF NOT EXISTS idx_call_edges_caller ON call_edges(project, caller);
	`)
	if err != nil {
		return errs.NewStorageError("call_graph_store_schema", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// StoreFunctionNode upserts a node and inserts one edge (line 0, column 0,
// confidence 1.0) per callsTo callee and per calledBy caller. Per-site edges
// with positions are added by StoreCallSites.
func (s *Store) StoreFunctionNode(ctx context.Context, node types.FunctionNode, project string, callsTo, calledBy []string) error {
	params, _ := json.Marshal(node.Parameters)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_nodes (project, qualified_name, name, file_path, language, start_line, end_line, is_exported, is_async, parameters_json, return_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, qualified_name) DO UPDATE SET
			name = excluded.name, file_path = excluded.file_path, language = excluded.language,
			start_line = excluded.start_line, end_line = excluded.end_line, is_exported = excluded.is_exported,
			is_async = excluded.is_async, parameters_json = excluded.parameters_json, return_type = excluded.return_type
	`, project, node.QualifiedName, node.Name, node.FilePath, node.Language, node.StartLine, node.EndLine, boolToInt(node.IsExported), boolToInt(node.IsAsync), string(params), node.ReturnType)
	if err != nil {
		return errs.NewStorageError("store_function_node", err)
	}
	for _, callee := range callsTo {
		s.db.ExecContext(ctx, `INSERT OR IGNORE INTO call_edges (project, caller, callee, line, column, confidence) VALUES (?, ?, ?, 0, 0, 1.0)`, project, node.QualifiedName, callee)
	}
	for _, caller := range calledBy {
		s.db.ExecContext(ctx, `INSERT OR IGNORE INTO call_edges (project, caller, callee, line, column, confidence) VALUES (?, ?, ?, 0, 0, 1.0)`, project, caller, node.QualifiedName)
	}
	return nil
}

// StoreCallSites persists call edges for fn, one row per site. Dangling
// callee references (calls to functions outside the project) are
// permitted: no foreign key enforces callee existence.
func (s *Store) StoreCallSites(ctx context.Context, fn string, sites []types.CallSite, project string) error {
	for _, site := range sites {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO call_edges (project, caller, callee, line, column, confidence)
			VALUES (?, ?, ?, ?, ?, ?)
		`, project, fn, site.CalleeName, site.Line, site.Column, site.Confidence)
		if err != nil {
			return errs.NewStorageError("store_call_sites", err)
		}
	}
	return nil
}

// StoreImplementations persists interface/trait implementation records.
func (s *Store) StoreImplementations(ctx context.Context, interfaceName string, impls []types.Implementation, project string) error {
	for _, impl := range impls {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO implementations (project, interface_name, type_name, file_path, line)
			VALUES (?, ?, ?, ?, ?)
		`, project, interfaceName, impl.TypeName, impl.FilePath, impl.Line)
		if err != nil {
			return errs.NewStorageError("store_implementations", err)
		}
	}
	return nil
}

// LoadCallGraph returns the full in-memory graph for a project.
func (s *Store) LoadCallGraph(ctx context.Context, project string) (*types.Graph, error) {
	g := types.NewGraph()

	rows, err := s.db.QueryContext(ctx, `
		SELECT qualified_name, name, file_path, language, start_line, end_line, is_exported, is_async, parameters_json, return_type
		FROM call_nodes WHERE project = ?
	`, project)
	if err != nil {
		return nil, errs.NewStorageError("load_call_graph_nodes", err)
	}
	for rows.Next() {
		var n types.FunctionNode
		var isExported, isAsync int
		var paramsJSON string
		if err := rows.Scan(&n.QualifiedName, &n.Name, &n.FilePath, &n.Language, &n.StartLine, &n.EndLine, &isExported, &isAsync, &paramsJSON, &n.ReturnType); err != nil {
			continue
		}
		n.IsExported = isExported != 0
		n.IsAsync = isAsync != 0
		json.Unmarshal([]byte(paramsJSON), &n.Parameters)
		node := n
		g.AddNode(&node)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError("load_call_graph_nodes", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT DISTINCT caller, callee FROM call_edges WHERE project = ?`, project)
	if err != nil {
		return nil, errs.NewStorageError("load_call_graph_edges", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var caller, callee string
		if err := edgeRows.Scan(&caller, &callee); err != nil {
			continue
		}
		g.AddEdge(caller, callee)
	}
	return g, edgeRows.Err()
}

// FindCallers returns every node with a recorded edge into name.
func (s *Store) FindCallers(ctx context.Context, project, name string) ([]*types.FunctionNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.qualified_name, n.name, n.file_path, n.language, n.start_line, n.end_line, n.is_exported, n.is_async, n.parameters_json, n.return_type
		FROM call_edges e
		JOIN call_nodes n ON n.project = e.project AND n.qualified_name = e.caller
		WHERE e.project = ? AND e.callee = ?
	`, project, name)
	if err != nil {
		return nil, errs.NewRetrievalError("find_callers", err)
	}
	defer rows.Close()

	var out []*types.FunctionNode
	for rows.Next() {
		var n types.FunctionNode
		var isExported, isAsync int
		var paramsJSON string
		if err := rows.Scan(&n.QualifiedName, &n.Name, &n.FilePath, &n.Language, &n.StartLine, &n.EndLine, &isExported, &isAsync, &paramsJSON, &n.ReturnType); err != nil {
			continue
		}
		n.IsExported = isExported != 0
		n.IsAsync = isAsync != 0
		json.Unmarshal([]byte(paramsJSON), &n.Parameters)
		node := n
		out = append(out, &node)
	}
	return out, rows.Err()
}

// maxChainResults bounds find_call_chain's BFS output.
const maxChainResults = 5

// FindCallChain returns shortest paths of qualified names from src to dst
// via a level-by-level BFS over the project's edges, capped at
// maxChainResults paths. Each node is expanded once, so when several
// shortest paths pass through the same intermediate node only one of them
// is extended from it; the result need not hold every shortest path.
func (s *Store) FindCallChain(ctx context.Context, project, src, dst string) ([][]string, error) {
	edges, err := s.loadEdgeMap(ctx, project)
	if err != nil {
		return nil, err
	}
	if src == dst {
		return [][]string{{src}}, nil
	}

	type queueItem struct {
		path []string
	}
	visited := map[string]bool{src: true}
	queue := []queueItem{{path: []string{src}}}
	var results [][]string
	foundAtDepth := -1

	for len(queue) > 0 && len(results) < maxChainResults {
		item := queue[0]
		queue = queue[1:]
		last := item.path[len(item.path)-1]

		if foundAtDepth >= 0 && len(item.path) > foundAtDepth {
			break // BFS guarantees all remaining items are >= this depth too
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
	rows, err := s.db.QueryContext(ctx, `SELECT caller, callee FROM call_edges WHERE project = ?`, project)
	if err != nil {
		return nil, errs.NewRetrievalError("find_call_chain", err)
	}
	defer rows.Close()
	edges := make(map[string][]string)
	for rows.Next() {
		var caller, callee string
		if err := rows.Scan(&caller, &callee); err != nil {
			continue
		}
		edges[caller] = append(edges[caller], callee)
	}
	return edges, rows.Err()
}

// DeleteProjectCallGraph removes every node, edge and implementation record
// scoped to project, returning the number of node rows removed.
func (s *Store) DeleteProjectCallGraph(ctx context.Context, project string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM call_nodes WHERE project = ?`, project)
	if err != nil {
		return 0, errs.NewStorageError("delete_project_call_graph", err)
	}
	s.db.ExecContext(ctx, `DELETE FROM call_edges WHERE project = ?`, project)
	s.db.ExecContext(ctx, `DELETE FROM implementations WHERE project = ?`, project)
	n, _ := res.RowsAffected()
	return int(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

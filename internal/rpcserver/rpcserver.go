// Package rpcserver implements the service's RPC surface as plain Go
// methods on a Service: store_memory, retrieve_memories, delete_memory,
// get_status, search_code, find_similar_code, index_codebase,
// reindex_project, get_indexed_files, list_indexed_units,
// get_file_dependencies, get_file_dependents, find_dependency_path,
// get_dependency_stats, get_dashboard_stats, get_recent_activity. There is
// no MCP/JSON wire protocol here; Service is the thing a transport adapter
// would wrap. It composes the already-built stores, search service,
// embedding pipeline and indexers rather than introducing storage or
// business logic of its own.
package rpcserver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/standardbeagle/semcode/internal/callgraph"
	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/degradation"
	"github.com/standardbeagle/semcode/internal/depgraph"
	"github.com/standardbeagle/semcode/internal/embedding"
	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/indexing"
	"github.com/standardbeagle/semcode/internal/parser"
	"github.com/standardbeagle/semcode/internal/search"
	"github.com/standardbeagle/semcode/internal/store"
	"github.com/standardbeagle/semcode/internal/types"
)

// Service composes every core component behind the RPC surface's named
// operations. One Service instance serves every registered project.
type Service struct {
	Store     store.Store
	CallGraph *callgraph.Store
	DepGraph  *depgraph.Store
	Search    *search.Service
	Generator *embedding.Generator
	Cache     *embedding.Cache
	Config    *config.Config

	// ReadOnly rejects any write RPC with errs.ReadOnlyError.
	ReadOnly bool

	mu       sync.Mutex
	indexers map[string]*indexing.Indexer // project name -> its indexer
}

// New builds a Service wired to every already-constructed component.
func New(st store.Store, cg *callgraph.Store, dg *depgraph.Store, gen *embedding.Generator, cache *embedding.Cache, cfg *config.Config, readOnly bool) *Service {
	return &Service{
		Store:     st,
		CallGraph: cg,
		DepGraph:  dg,
		Search:    search.New(st, gen, cache, cfg),
		Generator: gen,
		Cache:     cache,
		Config:    cfg,
		ReadOnly:  readOnly,
		indexers:  make(map[string]*indexing.Indexer),
	}
}

func (s *Service) requireWrite(op string) error {
	if s.ReadOnly {
		return errs.NewReadOnlyError(op)
	}
	return nil
}

// --- Memory CRUD (store_memory, retrieve_memories, delete_memory) ---

// StoreMemory implements store_memory: embeds content and persists a
// Memory record. Code-category records are expected to already carry their
// deterministic id in id; every other category gets a generated one when
// id is empty (internal/store/common.go's newID).
func (s *Service) StoreMemory(ctx context.Context, id, content string, category types.Category, scope types.Scope, projectName string, contextLevel types.ContextLevel, importance float64, tags []string, metadata map[string]any) (string, error) {
	if err := s.requireWrite("store_memory"); err != nil {
		return "", err
	}
	if content == "" {
		return "", errs.NewValidationError("content", "must not be empty")
	}
	vec, err := s.Cache.GetOrGenerate(content, s.Generator.Model(), s.Generator.Generate)
	if err != nil {
		return "", errs.NewEmbeddingError("store_memory embedding failed", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["category"] = string(category)
	metadata["scope"] = string(scope)
	metadata["project_name"] = projectName
	metadata["context_level"] = string(contextLevel)
	metadata["importance"] = importance
	metadata["tags"] = tags
	return s.Store.StoreOne(ctx, id, content, vec, metadata)
}

// RetrieveMemories implements retrieve_memories: embeds query and retrieves
// scored matches under filter.
func (s *Service) RetrieveMemories(ctx context.Context, query string, filter *types.MetadataFilter, limit int) ([]store.Scored, error) {
	if query == "" {
		return nil, errs.NewValidationError("query", "must not be empty")
	}
	vec, err := s.Cache.GetOrGenerate(query, s.Generator.Model(), s.Generator.Generate)
	if err != nil {
		return nil, errs.NewEmbeddingError("retrieve_memories embedding failed", err)
	}
	return s.Store.Retrieve(ctx, vec, filter, limit)
}

// DeleteMemory implements delete_memory.
func (s *Service) DeleteMemory(ctx context.Context, id string) (bool, error) {
	if err := s.requireWrite("delete_memory"); err != nil {
		return false, err
	}
	ok, err := s.Store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errs.NewMemoryNotFoundError(id)
	}
	return true, nil
}

// --- Search (search_code, find_similar_code) ---

// SearchCode implements search_code by delegating to the code search
// service.
func (s *Service) SearchCode(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
	return s.Search.SearchCode(ctx, query, opts)
}

// FindSimilarCode implements find_similar_code.
func (s *Service) FindSimilarCode(ctx context.Context, snippet string, opts search.Options) (*search.Response, error) {
	return s.Search.FindSimilarCode(ctx, snippet, opts)
}

// --- Indexing (index_codebase, reindex_project) ---

// indexerFor returns the registered Indexer for project, building and
// registering one rooted at rootDir the first time project is seen.
// Subsequent calls for the same project reuse the same Indexer regardless
// of rootDir (a project's root is fixed once it is first indexed).
func (s *Service) indexerFor(project, rootDir string) *indexing.Indexer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ix, ok := s.indexers[project]; ok {
		return ix
	}
	ix := indexing.New(project, rootDir, parser.New(), s.Generator, s.Cache, s.Store, s.CallGraph, s.DepGraph, s.Config)
	s.indexers[project] = ix
	return ix
}

// IndexCodebase implements index_codebase(project, root_dir) ->
// index_directory's result envelope.
func (s *Service) IndexCodebase(ctx context.Context, project, rootDir string, maxConcurrent int, progress indexing.ProgressFunc) (*indexing.DirectoryResult, error) {
	if err := s.requireWrite("index_codebase"); err != nil {
		return nil, err
	}
	if project == "" || rootDir == "" {
		return nil, errs.NewValidationError("project/root_dir", "must not be empty")
	}
	ix := s.indexerFor(project, rootDir)
	return ix.IndexDirectory(ctx, maxConcurrent, progress)
}

// ReindexProject implements reindex_project(project): re-runs
// index_directory for an already-registered project, which reconciles
// stale entries the same way a fresh index_codebase call would.
func (s *Service) ReindexProject(ctx context.Context, project string, maxConcurrent int, progress indexing.ProgressFunc) (*indexing.DirectoryResult, error) {
	if err := s.requireWrite("reindex_project"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	ix, ok := s.indexers[project]
	s.mu.Unlock()
	if !ok {
		return nil, errs.NewValidationError("project", fmt.Sprintf("%q has not been indexed yet", project))
	}
	return ix.IndexDirectory(ctx, maxConcurrent, progress)
}

// --- Store introspection (get_indexed_files, list_indexed_units) ---

// GetIndexedFiles implements get_indexed_files.
func (s *Service) GetIndexedFiles(ctx context.Context, project string, limit, offset int) (*store.IndexedFilesResult, error) {
	return s.Store.GetIndexedFiles(ctx, project, limit, offset)
}

// ListIndexedUnits implements list_indexed_units.
func (s *Service) ListIndexedUnits(ctx context.Context, project, language, filePattern, unitType string, limit, offset int) (*store.IndexedUnitsResult, error) {
	return s.Store.ListIndexedUnits(ctx, project, language, filePattern, unitType, limit, offset)
}

// --- Dependency graph (get_file_dependencies, get_file_dependents, find_dependency_path, get_dependency_stats) ---

func (s *Service) GetFileDependencies(ctx context.Context, project, file string) ([]string, error) {
	if s.DepGraph == nil {
		return nil, nil
	}
	return s.DepGraph.GetDependencies(ctx, project, file)
}

func (s *Service) GetFileDependents(ctx context.Context, project, file string) ([]string, error) {
	if s.DepGraph == nil {
		return nil, nil
	}
	return s.DepGraph.GetDependents(ctx, project, file)
}

func (s *Service) FindDependencyPath(ctx context.Context, project, src, dst string) ([][]string, error) {
	if s.DepGraph == nil {
		return nil, nil
	}
	return s.DepGraph.FindDependencyPath(ctx, project, src, dst)
}

func (s *Service) GetDependencyStats(ctx context.Context, project string) (*depgraph.Stats, error) {
	if s.DepGraph == nil {
		return &depgraph.Stats{}, nil
	}
	return s.DepGraph.GetStats(ctx, project)
}

// --- Status and dashboard (get_status, get_dashboard_stats, get_recent_activity) ---

// Status is get_status's response envelope: the storage/cache/degradation
// health triad plus the registered-project count.
type Status struct {
	StorageBackend  string
	StorageHealthy  bool
	CacheStats      embedding.Stats
	Degraded        bool
	Degradations    []degradation.Warning
	RegisteredCount int
}

// GetStatus implements get_status.
func (s *Service) GetStatus(ctx context.Context) *Status {
	s.mu.Lock()
	registered := len(s.indexers)
	s.mu.Unlock()
	return &Status{
		StorageBackend:  string(s.Config.Storage.Backend),
		StorageHealthy:  s.Store.HealthCheck(ctx),
		CacheStats:      s.Cache.Stats(),
		Degraded:        degradation.Global().HasDegradations(),
		Degradations:    degradation.Global().GetSummary(),
		RegisteredCount: registered,
	}
}

// DashboardStats is get_dashboard_stats' response envelope: totals plus
// per-category and per-project memory counts.
type DashboardStats struct {
	TotalMemories  int
	NumProjects    int
	GlobalMemories int // memories with scope=global
	Categories     map[string]int
	Projects       []ProjectStats
}

// ProjectStats is one project's contribution to DashboardStats.
type ProjectStats struct {
	ProjectName   string
	TotalMemories int
	Categories    map[string]int
}

// GetDashboardStats implements get_dashboard_stats by scrolling the full
// store once and aggregating in memory.
func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	totals := map[string]*ProjectStats{}
	categories := map[string]int{}
	total := 0
	global := 0

	err := s.Store.Scroll(ctx, nil, 500, func(m *types.Memory) bool {
		total++
		categories[string(m.Category)]++
		if m.Scope == types.ScopeGlobal || m.ProjectName == "" {
			global++
			return true
		}
		p, ok := totals[m.ProjectName]
		if !ok {
			p = &ProjectStats{ProjectName: m.ProjectName, Categories: map[string]int{}}
			totals[m.ProjectName] = p
		}
		p.TotalMemories++
		p.Categories[string(m.Category)]++
		return true
	})
	if err != nil {
		return nil, errs.NewRetrievalError("get_dashboard_stats", err)
	}

	projects := make([]ProjectStats, 0, len(totals))
	for _, p := range totals {
		projects = append(projects, *p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ProjectName < projects[j].ProjectName })

	return &DashboardStats{
		TotalMemories:  total,
		NumProjects:    len(totals),
		GlobalMemories: global,
		Categories:     categories,
		Projects:       projects,
	}, nil
}

// GetRecentActivity implements get_recent_activity: the limit most
// recently updated memories across every project, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, limit int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	var all []*types.Memory
	err := s.Store.Scroll(ctx, nil, 500, func(m *types.Memory) bool {
		all = append(all, m)
		return true
	})
	if err != nil {
		return nil, errs.NewRetrievalError("get_recent_activity", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

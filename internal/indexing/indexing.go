// Package indexing implements the incremental indexer, the orchestrator
// tying together the parser, extractors, analyzers, embedding pipeline,
// store and call-graph store: semaphore-bounded directory walks, a
// per-file pipeline, and stale-entry reconciliation. Glob-based
// include/exclude matching uses github.com/bmatcuk/doublestar/v4.
package indexing

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/semcode/internal/analysis"
	"github.com/standardbeagle/semcode/internal/callextract"
	"github.com/standardbeagle/semcode/internal/callgraph"
	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/degradation"
	"github.com/standardbeagle/semcode/internal/depgraph"
	"github.com/standardbeagle/semcode/internal/embedding"
	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/imports"
	"github.com/standardbeagle/semcode/internal/parser"
	"github.com/standardbeagle/semcode/internal/store"
	"github.com/standardbeagle/semcode/internal/types"
	"github.com/standardbeagle/semcode/pkg/pathutil"
)

// defaultExcludedDirs is evaluated on the path relative to root so the
// root itself may share one of these names.
var defaultExcludedDirs = map[string]bool{
	".git": true, ".venv": true, "venv": true, ".virtualenv": true,
	"__pycache__": true, "node_modules": true, ".pytest_cache": true,
	".mypy_cache": true, ".tox": true, ".worktrees": true,
}

// IndexFileResult is index_file's return envelope.
type IndexFileResult struct {
	Skipped                  bool
	UnitsIndexed              int
	ParseTimeMs              float64
	Language                 string
	UnitIDs                  []string
	ImportsExtracted         int
	Dependencies             []string
	CallSitesExtracted       int
	ImplementationsExtracted int
}

// DirectoryResult is index_directory's return envelope.
type DirectoryResult struct {
	TotalFiles     int
	IndexedFiles   int
	TotalUnits     int
	SkippedFiles   int
	FailedFiles    []FailedFile
	CleanedEntries int
}

// FailedFile records one file that failed index_file, with its cause.
type FailedFile struct {
	Path  string
	Error string
}

// ProgressFunc is called at least once per file, with currentFile/errInfo
// empty/nil on the very first "totals known" call.
type ProgressFunc func(done, total int, currentFile string, errInfo error)

// Indexer is the per-file pipeline orchestrator. One Indexer is built per
// project.
type Indexer struct {
	Project string
	RootDir string

	Parser     *parser.Parser
	Generator  *embedding.Generator
	Cache      *embedding.Cache
	Store      store.Store
	CallGraph  *callgraph.Store
	DepGraph   *depgraph.Store

	Weights    config.Weights
	Thresholds config.Thresholds
	Include    []string
	Exclude    []string
	MaxFileSize int64
}

// New builds an Indexer wired to every already-constructed component.
// dg (the dependency-graph store) may be nil: dependency-edge persistence is
// then skipped, matching the rest of this orchestrator's nil-store
// tolerance for optional components.
func New(project, rootDir string, p *parser.Parser, gen *embedding.Generator, cache *embedding.Cache, st store.Store, cg *callgraph.Store, dg *depgraph.Store, cfg *config.Config) *Indexer {
	return &Indexer{
		Project:     project,
		RootDir:     rootDir,
		Parser:      p,
		Generator:   gen,
		Cache:       cache,
		Store:       st,
		CallGraph:   cg,
		DepGraph:    dg,
		Weights:     cfg.Weights,
		Thresholds:  cfg.Thresholds,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
		MaxFileSize: cfg.Index.MaxFileSize,
	}
}

// IndexFile runs the full per-file pipeline: parse, extract imports and
// calls, embed, delete stale units, score, store, persist the call graph.
// absPath must be an absolute path; relPath (used for metadata and
// call-graph keys) is computed against ix.RootDir.
func (ix *Indexer) IndexFile(ctx context.Context, absPath string) (*IndexFileResult, error) {
	ext := filepath.Ext(absPath)
	language := ix.Parser.LanguageFor(ext)
	if language == "unknown" {
		return &IndexFileResult{Skipped: true}, nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, errs.NewStorageError("index_file_stat", err)
	}
	if ix.MaxFileSize > 0 && info.Size() > ix.MaxFileSize {
		return &IndexFileResult{Skipped: true}, nil
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errs.NewStorageError("index_file_read", err)
	}
	source := []byte(strings.ToValidUTF8(string(raw), "�"))

	relPath := pathutil.ToRelative(absPath, ix.RootDir)

	parseResult, err := ix.Parser.Parse(ctx, absPath, source)
	if err != nil {
		// Parser failure degrades to zero units; indexing continues with an empty unit set.
		parseResult = &types.ParseResult{Language: language, FilePath: absPath}
	}
	units := parseResult.Units

	importInfos := imports.Extract(absPath, source)

	var calls []types.CallSite
	var impls []types.Implementation
	func() {
		defer func() {
			if r := recover(); r != nil {
				degradation.Global().AddWarning("call_extractor", fmt.Sprintf("call extraction panicked on %s", relPath), "", "call sites for this file are absent from the graph")
			}
		}()
		calls, impls = callextract.Extract(absPath, source, units, parseResult.Language)
	}()

	if ix.DepGraph != nil {
		ix.storeDependencyEdges(ctx, relPath, importInfos)
	}

	if len(units) == 0 {
		// Nothing to embed or store; still reconcile any stale entries for
		// this file so a file that lost all its units doesn't leave ghosts.
		if ix.Store != nil {
			ix.Store.DeleteCodeUnitsByFile(ctx, ix.Project, relPath)
		}
		return &IndexFileResult{
			Language:         language,
			ParseTimeMs:      parseResult.ParseTimeMs,
			ImportsExtracted: len(importInfos),
			Dependencies:     dependencyList(importInfos),
		}, nil
	}

	indexableContents := make([]string, len(units))
	for i, u := range units {
		indexableContents[i] = buildIndexableContent(relPath, u)
	}

	embeddings, err := ix.batchEmbed(ctx, indexableContents)
	if err != nil {
		// Embedding failure on a batch fails the whole file; no partial
		// insert.
		return nil, errs.NewEmbeddingError(fmt.Sprintf("batch embedding failed for %s", relPath), err)
	}

	// Step 8: reconciliation deletion, only now that fresh embeddings are
	// ready (the indexer's per-file state machine never leaves a file
	// partially indexed).
	if ix.Store != nil {
		if _, err := ix.Store.DeleteCodeUnitsByFile(ctx, ix.Project, relPath); err != nil {
			return nil, err
		}
	}

	importanceResults := analysis.ScoreFile(units, source, parseResult.Language, absPath, ix.Weights)

	deps := dependencyList(importInfos)
	items := make([]store.BatchItem, len(units))
	unitIDs := make([]string, len(units))
	for i, u := range units {
		id := u.ID
		if id == "" {
			id = types.ComputeID(ix.Project, absPath, u.StartLine, u.Name)
		}
		unitIDs[i] = id

		ir := importanceResults[i]
		meta := map[string]any{
			"category":        string(types.CategoryCode),
			"scope":           string(types.ScopeProject),
			"project_name":    ix.Project,
			"file_path":       relPath,
			"language":        parseResult.Language,
			"unit_type":       string(u.UnitType),
			"unit_name":       u.Name,
			"qualified_name":  u.QualifiedName(),
			"parent_name":     u.ParentName,
			"signature":       u.Signature,
			"start_line":      u.StartLine,
			"end_line":        u.EndLine,
			"importance":      ir.Importance,
			"complexity":      ir.Complexity.ComplexityScore,
			"cyclomatic":      ir.Complexity.Cyclomatic,
			"maintainability": 100 - 2*float64(ir.Complexity.Cyclomatic) - float64(ir.Complexity.LineCount)/10,
			"dependencies":    deps,
			"file_size":       info.Size(),
			"indexed_at":      time.Now().UTC().Format(time.RFC3339),
		}
		items[i] = store.BatchItem{ID: id, Content: indexableContents[i], Embedding: embeddings[i], Metadata: meta}
	}

	if ix.Store != nil {
		if _, err := ix.Store.BatchStore(ctx, items); err != nil {
			return nil, err
		}
	}

	if ix.CallGraph != nil {
		ix.storeCallGraph(ctx, units, importanceResults, calls, impls, relPath, parseResult.Language)
	}

	return &IndexFileResult{
		UnitsIndexed:              len(units),
		ParseTimeMs:               parseResult.ParseTimeMs,
		Language:                  parseResult.Language,
		UnitIDs:                   unitIDs,
		ImportsExtracted:          len(importInfos),
		Dependencies:              deps,
		CallSitesExtracted:        len(calls),
		ImplementationsExtracted:  len(impls),
	}, nil
}

// storeCallGraph implements step 11's two-pass order: every node first
// (without edges), then call sites grouped by caller.
func (ix *Indexer) storeCallGraph(ctx context.Context, units []types.Unit, importance []analysis.ImportanceResult, calls []types.CallSite, impls []types.Implementation, relPath, language string) {
	for i, u := range units {
		node := types.FunctionNode{
			Name:          u.Name,
			QualifiedName: u.QualifiedName(),
			FilePath:      relPath,
			Language:      language,
			StartLine:     u.StartLine,
			EndLine:       u.EndLine,
			IsExported:    importance[i].Usage.IsExported,
		}
		if err := ix.CallGraph.StoreFunctionNode(ctx, node, ix.Project, nil, nil); err != nil {
			degradation.Global().AddWarning("call_graph_store", fmt.Sprintf("failed to store node %s: %v", node.QualifiedName, err), "", "this function is absent from call-graph queries")
		}
	}

	byCaller := make(map[string][]types.CallSite)
	for _, c := range calls {
		byCaller[c.CallerFunction] = append(byCaller[c.CallerFunction], c)
	}
	for caller, sites := range byCaller {
		if err := ix.CallGraph.StoreCallSites(ctx, caller, sites, ix.Project); err != nil {
			degradation.Global().AddWarning("call_graph_store", fmt.Sprintf("failed to store call sites for %s: %v", caller, err), "", "some call edges are missing from the graph")
		}
	}

	byInterface := make(map[string][]types.Implementation)
	for _, impl := range impls {
		byInterface[impl.InterfaceName] = append(byInterface[impl.InterfaceName], impl)
	}
	for iface, group := range byInterface {
		if err := ix.CallGraph.StoreImplementations(ctx, iface, group, ix.Project); err != nil {
			degradation.Global().AddWarning("call_graph_store", fmt.Sprintf("failed to store implementations of %s: %v", iface, err), "", "implementation lookups for this interface are incomplete")
		}
	}
}

// storeDependencyEdges resolves each extracted import to an in-project file
// where static pattern matching makes that possible and persists the edge set
// for relPath, replacing whatever was recorded on a prior index of this
// file.
func (ix *Indexer) storeDependencyEdges(ctx context.Context, relPath string, infos []types.ImportInfo) {
	edges := make([]depgraph.DependencyEdge, 0, len(infos))
	seen := make(map[string]bool, len(infos))
	for _, imp := range infos {
		if imp.ImportedModule == "" || seen[imp.ImportedModule] {
			continue
		}
		seen[imp.ImportedModule] = true
		resolved := ix.resolveImport(relPath, imp)
		edges = append(edges, depgraph.DependencyEdge{ToModule: imp.ImportedModule, Resolved: resolved})
	}
	if err := ix.DepGraph.StoreFileDependencies(ctx, ix.Project, relPath, edges); err != nil {
		degradation.Global().AddWarning("dependency_graph_store", fmt.Sprintf("failed to store dependencies for %s: %v", relPath, err), "", "dependency-graph queries for this file are stale")
	}
}

// resolveImport maps an import statement to a project-relative file path
// using only the information the statement itself carries: relative imports
// resolve against the importing file's directory, trying each supported
// extension in turn; non-relative imports are tried verbatim as a
// root-relative path. Anything that doesn't stat to a real file under the
// project root is left unresolved (empty string); no module-resolution
// algorithm (package manager lookups, tsconfig path aliases, Go module
// proxies) is attempted.
func (ix *Indexer) resolveImport(fromRelPath string, imp types.ImportInfo) string {
	module := strings.TrimPrefix(imp.ImportedModule, "./")
	module = strings.ReplaceAll(module, ".", string(filepath.Separator))
	if module == "" {
		return ""
	}

	var base string
	if imp.IsRelative {
		base = filepath.Dir(fromRelPath)
	} else {
		base = "."
	}
	candidate := filepath.Clean(filepath.Join(base, module))
	if candidate == "." || strings.HasPrefix(candidate, "..") {
		return ""
	}

	tryExts := []string{"", ".py", ".js", ".jsx", ".ts", ".tsx", ".go", ".rs", ".rb", ".java", "/index.js", "/index.ts", "/__init__.py"}
	for _, ext := range tryExts {
		rel := candidate + ext
		if _, err := os.Stat(filepath.Join(ix.RootDir, rel)); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return ""
}

// batchEmbed implements "EmbeddingGenerator.batch(...) via the cache": cache
// hits are resolved without touching the generator; misses are dispatched
// together through Generator.BatchGenerate so order preservation and bounded
// parallelism apply to exactly the texts that need real work.
func (ix *Indexer) batchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	model := ix.Generator.Model()

	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if vec, ok := ix.Cache.Get(t, model); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	generated, err := ix.Generator.BatchGenerate(ctx, missTexts, false, nil)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = generated[j]
		ix.Cache.Set(missTexts[j], model, generated[j])
	}
	return out, nil
}

func buildIndexableContent(relPath string, u types.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s:%d-%d\n", relPath, u.StartLine, u.EndLine)
	fmt.Fprintf(&b, "%s: %s\n", u.UnitType, u.Name)
	if u.Signature != "" {
		fmt.Fprintf(&b, "Signature: %s\n", u.Signature)
	}
	b.WriteString("\nContent:\n")
	b.WriteString(u.Content)
	return b.String()
}

func dependencyList(infos []types.ImportInfo) []string {
	seen := make(map[string]bool, len(infos))
	var out []string
	for _, i := range infos {
		if i.ImportedModule == "" || seen[i.ImportedModule] {
			continue
		}
		seen[i.ImportedModule] = true
		out = append(out, i.ImportedModule)
	}
	return out
}

// DeleteFileIndex implements delete_file_index(path) -> n_deleted.
func (ix *Indexer) DeleteFileIndex(ctx context.Context, absPath string) (int, error) {
	relPath := pathutil.ToRelative(absPath, ix.RootDir)
	if ix.DepGraph != nil {
		ix.DepGraph.DeleteFileDependencies(ctx, ix.Project, relPath)
	}
	return ix.Store.DeleteCodeUnitsByFile(ctx, ix.Project, relPath)
}

// IndexDirectory runs bounded-concurrency enumeration, per-file indexing,
// then stale-entry reconciliation against the store's current file list
// for this project.
func (ix *Indexer) IndexDirectory(ctx context.Context, maxConcurrent int, progress ProgressFunc) (*DirectoryResult, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	files, err := ix.enumerateFiles()
	if err != nil {
		return nil, errs.NewStorageError("index_directory_enumerate", err)
	}

	total := len(files)
	if progress != nil {
		progress(0, total, "", nil)
	}

	result := &DirectoryResult{TotalFiles: total}
	var mu sync.Mutex
	var done int
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for _, f := range files {
		if ctx.Err() != nil {
			break // stop dispatching new files; in-flight ones still drain below
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(absPath string) {
			defer wg.Done()
			defer func() { <-sem }()

			fileErr := func() error {
				r, err := ix.IndexFile(ctx, absPath)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if r.Skipped {
					result.SkippedFiles++
				} else {
					result.IndexedFiles++
					result.TotalUnits += r.UnitsIndexed
				}
				return nil
			}()

			mu.Lock()
			done++
			if fileErr != nil {
				result.FailedFiles = append(result.FailedFiles, FailedFile{Path: absPath, Error: fileErr.Error()})
			}
			doneSnapshot, totalSnapshot := done, total
			mu.Unlock()

			if progress != nil {
				progress(doneSnapshot, totalSnapshot, absPath, fileErr)
			}
		}(f)
	}
	wg.Wait()

	cleaned, err := ix.reconcileStale(ctx, files)
	if err != nil {
		return result, err
	}
	result.CleanedEntries = cleaned

	return result, nil
}

// reconcileStale deletes every previously-indexed file under this project
// whose path is absent from the current enumeration, returning the number of unit rows removed.
func (ix *Indexer) reconcileStale(ctx context.Context, enumerated []string) (int, error) {
	if ix.Store == nil {
		return 0, nil
	}
	current := make(map[string]bool, len(enumerated))
	for _, f := range enumerated {
		current[pathutil.ToRelative(f, ix.RootDir)] = true
	}

	cleaned := 0
	const pageSize = 500
	offset := 0
	for {
		page, err := ix.Store.GetIndexedFiles(ctx, ix.Project, pageSize, offset)
		if err != nil {
			return cleaned, err
		}
		for _, f := range page.Files {
			if current[f.FilePath] {
				continue
			}
			n, err := ix.Store.DeleteCodeUnitsByFile(ctx, ix.Project, f.FilePath)
			if err != nil {
				return cleaned, err
			}
			cleaned += n
			if ix.DepGraph != nil {
				ix.DepGraph.DeleteFileDependencies(ctx, ix.Project, f.FilePath)
			}
		}
		if !page.HasMore || len(page.Files) == 0 {
			break
		}
		offset += pageSize
	}
	return cleaned, nil
}

// enumerateFiles walks ix.RootDir, excluding hidden entries, the fixed
// directory-name set, and anything matched by ix.Exclude; when ix.Include is
// non-empty a file must also match one of its glob patterns.
func (ix *Indexer) enumerateFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(ix.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(ix.RootDir, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if (strings.HasPrefix(name, ".") && rel != ".") || defaultExcludedDirs[name] {
				return filepath.SkipDir
			}
			for _, pattern := range ix.Exclude {
				if matched, _ := doublestar.Match(pattern, rel); matched {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		for _, pattern := range ix.Exclude {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return nil
			}
		}
		if len(ix.Include) > 0 {
			matched := false
			for _, pattern := range ix.Include {
				if ok, _ := doublestar.Match(pattern, rel); ok {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}
		}

		ext := filepath.Ext(path)
		if ix.Parser.LanguageFor(ext) == "unknown" {
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

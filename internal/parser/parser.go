// Package parser implements the parser adapter: it wraps tree-sitter
// grammars and returns a ParseResult{Units, Language, FilePath, ParseTimeMs}
// for a single file. Each primary tree-sitter adapter holds one
// *tree_sitter.Parser and one *tree_sitter.Query per grammar, shared by that
// grammar's extensions, built once at construction and reused across files.
//
// Must never fail on syntactically invalid input: tree-sitter's
// error-recovery grammar always returns a tree, so the query walk below
// simply yields whatever it can find, possibly nothing.
package parser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/semcode/internal/types"
)

// Adapter is satisfied by both the primary tree-sitter adapter and the
// smacker-backed secondary adapter (for languages the primary grammar set
// doesn't cover), so the parser table in Parser can dispatch uniformly.
type Adapter interface {
	// Extensions lists the file extensions this adapter handles, including
	// the leading dot.
	Extensions() []string
	// Parse returns the semantic units found in source. Must not error on
	// malformed input; return a best-effort (possibly empty) unit slice.
	Parse(ctx context.Context, filePath string, source []byte) ([]types.Unit, error)
}

// Parser dispatches to a language-specific Adapter by file extension; an
// extension with no registered adapter yields an empty "unknown" result.
type Parser struct {
	mu       sync.RWMutex
	adapters map[string]Adapter // extension -> adapter
}

// New builds a Parser with the primary tree-sitter adapter set and the
// smacker-backed secondary set registered for the extensions the primary
// set doesn't cover.
func New() *Parser {
	p := &Parser{adapters: make(map[string]Adapter)}
	p.register(newTreeSitterAdapters()...)
	p.register(newSmackerAdapters()...)
	return p
}

func (p *Parser) register(adapters ...Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range adapters {
		for _, ext := range a.Extensions() {
			if _, exists := p.adapters[ext]; exists {
				continue // first registrant (tree-sitter primary set) wins
			}
			p.adapters[ext] = a
		}
	}
}

// LanguageFor returns the language name tied to a file extension, or
// "unknown" if no adapter is registered.
func (p *Parser) LanguageFor(ext string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if a, ok := p.adapters[ext]; ok {
		if named, ok := a.(interface{ Language() string }); ok {
			return named.Language()
		}
	}
	return "unknown"
}

// Parse never fails: language inferred from extension, unknown
// extensions return an empty unit set and language "unknown", malformed
// source yields a best-effort (possibly empty) result rather than an error.
func (p *Parser) Parse(ctx context.Context, filePath string, source []byte) (*types.ParseResult, error) {
	start := time.Now()
	ext := extOf(filePath)

	p.mu.RLock()
	adapter, ok := p.adapters[ext]
	p.mu.RUnlock()

	if !ok {
		return &types.ParseResult{
			Units:       nil,
			Language:    "unknown",
			FilePath:    filePath,
			ParseTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		}, nil
	}

	units, err := adapter.Parse(ctx, filePath, source)
	if err != nil {
		// Best-effort: treat as zero units rather than propagating.
		units = nil
	}

	lang := "unknown"
	if named, ok := adapter.(interface{ Language() string }); ok {
		lang = named.Language()
	}

	return &types.ParseResult{
		Units:       units,
		Language:    lang,
		FilePath:    filePath,
		ParseTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

func extOf(filePath string) string {
	idx := strings.LastIndexByte(filePath, '.')
	if idx < 0 {
		return ""
	}
	return filePath[idx:]
}

// newQueryCursorMatches is a small helper shared by the tree-sitter adapters
// to walk every match of a compiled query against a parsed tree.
func newQueryCursorMatches(query *tree_sitter.Query, root *tree_sitter.Node, content []byte, visit func(captureName string, node *tree_sitter.Node, captured map[string]string)) {
	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(query, root, content)
	names := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		captured := make(map[string]string, 4)
		for _, c := range match.Captures {
			name := names[c.Index]
			if strings.Contains(name, ".name") {
				captured[name] = string(content[c.Node.StartByte():c.Node.EndByte()])
			}
		}
		for _, c := range match.Captures {
			name := names[c.Index]
			node := c.Node
			visit(name, &node, captured)
		}
	}
}

func contentSlice(content []byte, start, end uint) string {
	if int(end) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

func lineOf(content []byte, byteOffset uint) int {
	line := 1
	for i := uint(0); i < byteOffset && int(i) < len(content); i++ {
		if content[i] == '\n' {
			line++
		}
	}
	return line
}

// sanityCheckRange guards against degenerate ranges the grammar's error
// recovery can occasionally produce.
func sanityCheckRange(startLine, endLine int) error {
	if startLine > endLine {
		return fmt.Errorf("invalid line range %d..%d", startLine, endLine)
	}
	return nil
}

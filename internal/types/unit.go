// Package types holds the data model shared across the indexing pipeline:
// semantic units, memory records, import/call metadata and graph shapes.
package types

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// UnitType enumerates the kinds of semantic unit the parser extracts.
type UnitType string

const (
	UnitFunction UnitType = "function"
	UnitClass    UnitType = "class"
	UnitMethod   UnitType = "method"
)

// Unit is the atomic indexed entity: a function, class or method extracted
// from a single file by the parser adapter.
type Unit struct {
	ID         string
	UnitType   UnitType
	Name       string
	Signature  string
	Content    string
	Language   string
	FilePath   string
	StartLine  int
	EndLine    int
	StartByte  int
	EndByte    int
	ParentName string // enclosing class/interface, empty for top-level units
}

// QualifiedName returns the dotted name used for call-graph identity:
// "Parent.Name" for nested units, "Name" otherwise.
func (u *Unit) QualifiedName() string {
	if u.ParentName == "" {
		return u.Name
	}
	return u.ParentName + "." + u.Name
}

// ComputeID derives a unit's deterministic identity: a stable hash of
// (project, resolved file path, start line, name). Re-indexing the same
// unit must always produce the same id.
func ComputeID(project, resolvedFilePath string, startLine int, name string) string {
	h := xxhash.New()
	_, _ = h.WriteString(project)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(resolvedFilePath)
	_, _ = h.Write([]byte{0})
	_, _ = fmt.Fprintf(h, "%d", startLine)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(name)
	return fmt.Sprintf("%016x", h.Sum64())
}

// ParseResult is the output of the parser adapter for a single file.
type ParseResult struct {
	Units       []Unit
	Language    string
	FilePath    string
	ParseTimeMs float64
}

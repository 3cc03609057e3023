package types

import "time"

// Category enumerates the kind of content a Memory holds.
type Category string

const (
	CategoryCode       Category = "code"
	CategoryPreference Category = "preference"
	CategoryFact       Category = "fact"
	CategoryEvent      Category = "event"
	CategoryWorkflow   Category = "workflow"
	CategoryContext    Category = "context"
)

// Scope controls whether a Memory is visible across all projects or scoped
// to a single one.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

// ContextLevel classifies the durability/audience of a memory record.
type ContextLevel string

const (
	ContextUserPreference ContextLevel = "USER_PREFERENCE"
	ContextProject        ContextLevel = "PROJECT_CONTEXT"
	ContextSession        ContextLevel = "SESSION_STATE"
)

// Memory is the generalization of Unit plus free-form notes. A
// code unit is stored as a Memory with Category=code, Scope=project and
// Metadata carrying the Unit fields plus extracted metrics.
type Memory struct {
	ID             string
	Content        string
	Category       Category
	ContextLevel   ContextLevel
	Scope          Scope
	ProjectName    string
	Importance     float64
	EmbeddingModel string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tags           map[string]struct{}
	Metadata       map[string]any
}

// HasTag reports whether the memory carries the given tag.
func (m *Memory) HasTag(tag string) bool {
	_, ok := m.Tags[tag]
	return ok
}

// AddTag adds a tag, creating the tag set if necessary.
func (m *Memory) AddTag(tag string) {
	if m.Tags == nil {
		m.Tags = make(map[string]struct{})
	}
	m.Tags[tag] = struct{}{}
}

// Clone returns a deep-enough copy so callers never share a mutable handle
// with the store.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	out := *m
	out.Tags = make(map[string]struct{}, len(m.Tags))
	for k := range m.Tags {
		out.Tags[k] = struct{}{}
	}
	out.Metadata = make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

// MetadataFilter restricts a store query: every zero-valued field is
// ignored.
type MetadataFilter struct {
	Scope         Scope
	ProjectName   string
	Category      Category
	ContextLevel  ContextLevel
	Tags          []string // all-of
	MinImportance float64
}

// Matches reports whether m satisfies the filter. An empty field is treated
// as "don't care".
func (f *MetadataFilter) Matches(m *Memory) bool {
	if f == nil {
		return true
	}
	if f.Scope != "" && m.Scope != f.Scope {
		return false
	}
	if f.ProjectName != "" && m.ProjectName != f.ProjectName {
		return false
	}
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.ContextLevel != "" && m.ContextLevel != f.ContextLevel {
		return false
	}
	if m.Importance < f.MinImportance {
		return false
	}
	for _, tag := range f.Tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

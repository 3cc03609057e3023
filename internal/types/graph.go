package types

// ImportType enumerates the forms an import statement can take across
// supported languages.
type ImportType string

const (
	ImportStandard ImportType = "import"
	ImportFrom     ImportType = "from_import"
	ImportRequire  ImportType = "require"
	ImportDynamic  ImportType = "dynamic_import"
	ImportUse      ImportType = "use"
	ImportMod      ImportType = "mod"
)

// ImportInfo is a single import/require/use statement extracted from a file.
type ImportInfo struct {
	SourceFile     string
	ImportedModule string
	ImportedItems  []string
	ImportType     ImportType
	LineNumber     int
	IsRelative     bool
	Alias          string
	RawStatement   string
}

// CallSite records a single call expression found inside a unit.
type CallSite struct {
	CallerFunction string // qualified name of the enclosing unit
	CalleeName     string // unqualified callee name
	Line           int
	Column         int
	Confidence     float64
}

// Implementation records an interface/trait declaration observed in a file.
type Implementation struct {
	InterfaceName string
	TypeName      string
	FilePath      string
	Line          int
}

// FunctionNode is a call-graph node.
type FunctionNode struct {
	Name          string
	QualifiedName string
	FilePath      string
	Language      string
	StartLine     int
	EndLine       int
	IsExported    bool
	IsAsync       bool
	Parameters    []string
	ReturnType    string
}

// Graph is an in-memory snapshot of a project's call graph: nodes keyed by
// qualified name plus directed caller->callee edges. Dangling callee
// references (calls to functions outside the project) are permitted.
type Graph struct {
	Nodes map[string]*FunctionNode
	Edges map[string][]string // caller qualified name -> callee qualified names
}

// NewGraph returns an empty call graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*FunctionNode),
		Edges: make(map[string][]string),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n *FunctionNode) {
	g.Nodes[n.QualifiedName] = n
}

// AddEdge records a caller->callee edge. The callee need not have a node.
func (g *Graph) AddEdge(caller, callee string) {
	for _, existing := range g.Edges[caller] {
		if existing == callee {
			return
		}
	}
	g.Edges[caller] = append(g.Edges[caller], callee)
}

// Callers returns every node that has an edge into name.
func (g *Graph) Callers(name string) []*FunctionNode {
	var out []*FunctionNode
	for caller, callees := range g.Edges {
		for _, callee := range callees {
			if callee == name {
				if node, ok := g.Nodes[caller]; ok {
					out = append(out, node)
				}
				break
			}
		}
	}
	return out
}

// DependencyEdge is a directed edge in the per-project dependency graph:
// fromFile imports toFile (resolved where possible, otherwise the raw
// module string).
type DependencyEdge struct {
	FromFile string
	ToModule string
	Resolved string // resolved file path, empty when unresolved
}

// DependencyGraph is a per-project graph over files derived from ImportInfo.
// Cycles are permitted in the data; FindCycles detects them.
type DependencyGraph struct {
	Edges map[string][]string // file path -> imported (resolved) file paths
}

// NewDependencyGraph returns an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{Edges: make(map[string][]string)}
}

// AddEdge records that `from` depends on `to`.
func (g *DependencyGraph) AddEdge(from, to string) {
	for _, existing := range g.Edges[from] {
		if existing == to {
			return
		}
	}
	g.Edges[from] = append(g.Edges[from], to)
}

// FindCycles returns every simple cycle detected via DFS with three-coloring
// (white/gray/black).
func (g *DependencyGraph) FindCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []string
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range g.Edges[node] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				// found a back edge: extract the cycle from the stack
				for i, n := range stack {
					if n == next {
						cycle := append([]string{}, stack[i:]...)
						cycle = append(cycle, next)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for node := range g.Edges {
		if color[node] == white {
			visit(node)
		}
	}
	return cycles
}

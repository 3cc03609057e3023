package parser

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/yaml"

	"github.com/standardbeagle/semcode/internal/types"
)

// smackerAdapter covers the languages the primary grammar set doesn't
// carry bindings for, walking the AST by hand
// (ChildByFieldName/Type/recursive descent), which is the idiom smacker's
// API calls for instead of tree-sitter's query/capture interface.
type smackerAdapter struct {
	language   string
	exts       []string
	lang       *sitter.Language
	nodeKinds  map[string]types.UnitType
	classKinds map[string]bool
}

func (a *smackerAdapter) Extensions() []string { return a.exts }
func (a *smackerAdapter) Language() string     { return a.language }

func (a *smackerAdapter) Parse(ctx context.Context, filePath string, source []byte) ([]types.Unit, error) {
	if a.lang == nil {
		return nil, nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(a.lang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil {
		return nil, nil
	}
	defer tree.Close()

	var units []types.Unit
	currentClass := ""
	a.walk(tree.RootNode(), source, filePath, &currentClass, &units)
	return units, nil
}

func (a *smackerAdapter) walk(node *sitter.Node, source []byte, filePath string, currentClass *string, units *[]types.Unit) {
	if node == nil {
		return
	}

	kind := node.Type()
	if a.classKinds[kind] {
		if name := fieldName(node, source, "name"); name != "" {
			*currentClass = name
			*units = append(*units, a.buildUnit(types.UnitClass, name, "", node, source, filePath))
		}
	} else if ut, ok := a.nodeKinds[kind]; ok {
		if name := fieldName(node, source, "name"); name != "" {
			parent := ""
			if ut == types.UnitMethod {
				parent = *currentClass
			}
			*units = append(*units, a.buildUnit(ut, name, parent, node, source, filePath))
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		a.walk(node.Child(i), source, filePath, currentClass, units)
	}
}

func (a *smackerAdapter) buildUnit(ut types.UnitType, name, parent string, node *sitter.Node, source []byte, filePath string) types.Unit {
	start := node.StartByte()
	end := node.EndByte()
	return types.Unit{
		UnitType:   ut,
		Name:       name,
		Content:    contentSlice(source, uint(start), uint(end)),
		Language:   a.language,
		FilePath:   filePath,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(start),
		EndByte:    int(end),
		ParentName: parent,
	}
}

func fieldName(node *sitter.Node, source []byte, field string) string {
	n := node.ChildByFieldName(field)
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}

// newSmackerAdapters builds the secondary adapter table: Ruby, Swift and
// Kotlin for semantic units, plus SQL/TOML/YAML/JSON registered so those
// files get a non-"unknown" language tag even though no function/class
// units are extracted from them. JSON has no grammar binding here; a nil lang makes
// Parse a no-op while still claiming the extension.
func newSmackerAdapters() []Adapter {
	return []Adapter{
		&smackerAdapter{
			language: "ruby",
			exts:     []string{".rb"},
			lang:     ruby.GetLanguage(),
			nodeKinds: map[string]types.UnitType{
				"method": types.UnitMethod,
			},
			classKinds: map[string]bool{"class": true, "module": true},
		},
		&smackerAdapter{
			language: "swift",
			exts:     []string{".swift"},
			lang:     swift.GetLanguage(),
			nodeKinds: map[string]types.UnitType{
				"function_declaration": types.UnitFunction,
			},
			classKinds: map[string]bool{"class_declaration": true, "protocol_declaration": true},
		},
		&smackerAdapter{
			language: "kotlin",
			exts:     []string{".kt", ".kts"},
			lang:     kotlin.GetLanguage(),
			nodeKinds: map[string]types.UnitType{
				"function_declaration": types.UnitFunction,
			},
			classKinds: map[string]bool{"class_declaration": true, "object_declaration": true},
		},
		&smackerAdapter{
			language:   "sql",
			exts:       []string{".sql"},
			lang:       sql.GetLanguage(),
			nodeKinds:  map[string]types.UnitType{},
			classKinds: map[string]bool{},
		},
		&smackerAdapter{
			language:   "toml",
			exts:       []string{".toml"},
			lang:       toml.GetLanguage(),
			nodeKinds:  map[string]types.UnitType{},
			classKinds: map[string]bool{},
		},
		&smackerAdapter{
			language:   "yaml",
			exts:       []string{".yaml", ".yml"},
			lang:       yaml.GetLanguage(),
			nodeKinds:  map[string]types.UnitType{},
			classKinds: map[string]bool{},
		},
		&smackerAdapter{
			language:   "json",
			exts:       []string{".json"},
			nodeKinds:  map[string]types.UnitType{},
			classKinds: map[string]bool{},
		},
	}
}

package parser

import (
	"context"
	"unsafe"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/semcode/internal/types"
)

// treeSitterAdapter wraps a single compiled *tree_sitter.Parser/Query pair
// shared by one or more extensions of the same grammar (e.g. .cpp/.h/.hpp).
type treeSitterAdapter struct {
	language   string
	exts       []string
	parser     *tree_sitter.Parser
	query      *tree_sitter.Query
	methodCapt string // capture name treated as UnitMethod instead of UnitFunction
	classCapts []string
}

func (a *treeSitterAdapter) Extensions() []string { return a.exts }
func (a *treeSitterAdapter) Language() string     { return a.language }

func (a *treeSitterAdapter) Parse(ctx context.Context, filePath string, source []byte) ([]types.Unit, error) {
	if a.parser == nil || a.query == nil {
		return nil, nil
	}

	tree := a.parser.Parse(source, nil)
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	var units []types.Unit
	currentClass := "" // most recently seen enclosing class name, by source order

	newQueryCursorMatches(a.query, tree.RootNode(), source, func(captureName string, node *tree_sitter.Node, captured map[string]string) {
		isClass := false
		for _, cc := range a.classCapts {
			if captureName == cc {
				isClass = true
				break
			}
		}

		switch {
		case isClass:
			name := captured[captureName+".name"]
			if name == "" {
				return
			}
			currentClass = name
			units = append(units, a.buildUnit(types.UnitClass, name, "", node, source, filePath))
		case captureName == a.methodCapt:
			name := captured[captureName+".name"]
			if name == "" {
				return
			}
			units = append(units, a.buildUnit(types.UnitMethod, name, currentClass, node, source, filePath))
		case captureName == "function":
			name := captured["function.name"]
			if name == "" {
				return
			}
			units = append(units, a.buildUnit(types.UnitFunction, name, "", node, source, filePath))
		}
	})

	return units, nil
}

func (a *treeSitterAdapter) buildUnit(ut types.UnitType, name, parent string, node *tree_sitter.Node, source []byte, filePath string) types.Unit {
	start := node.StartByte()
	end := node.EndByte()
	return types.Unit{
		UnitType:   ut,
		Name:       name,
		Content:    contentSlice(source, uint(start), uint(end)),
		Language:   a.language,
		FilePath:   filePath,
		StartLine:  lineOf(source, uint(start)),
		EndLine:    lineOf(source, uint(end)),
		StartByte:  int(start),
		EndByte:    int(end),
		ParentName: parent,
	}
}

// newTreeSitterAdapters builds the primary adapter table: Python, JS/TS,
// Java, Go, Rust, C#, C/C++, PHP, plus Zig.
func newTreeSitterAdapters() []Adapter {
	return []Adapter{
		mustAdapter("javascript", []string{".js", ".jsx"}, tree_sitter_javascript.Language(), "method", nil, `
			(function_declaration name: (identifier) @function.name) @function
			(generator_function_declaration name: (identifier) @function.name) @function
			(variable_declarator
				name: (identifier) @function.name
				value: [(arrow_function) (function_expression) (generator_function)]) @function
			(method_definition name: (property_identifier) @method.name) @method
			(class_declaration name: (identifier) @class.name) @class
		`),
		mustAdapter("typescript", []string{".ts", ".tsx"}, tree_sitter_typescript.LanguageTypescript(), "method", nil, `
			(function_declaration name: (identifier) @function.name) @function
			(generator_function_declaration name: (identifier) @function.name) @function
			(method_definition name: (property_identifier) @method.name) @method
			(function_expression name: (identifier) @function.name) @function
			(class_declaration name: (type_identifier) @class.name) @class
			(interface_declaration name: (type_identifier) @class.name) @class
		`),
		mustAdapter("go", []string{".go"}, tree_sitter_go.Language(), "method", nil, `
			(function_declaration name: (identifier) @function.name) @function
			(method_declaration name: (field_identifier) @method.name) @method
			(func_literal) @function
		`),
		mustAdapter("python", []string{".py"}, tree_sitter_python.Language(), "method", nil, `
			(class_definition
				body: (block
					(function_definition name: (identifier) @method.name))) @method
			(function_definition name: (identifier) @function.name) @function
			(class_definition name: (identifier) @class.name) @class
		`),
		mustAdapter("rust", []string{".rs"}, tree_sitter_rust.Language(), "method", []string{"struct", "interface"}, `
			(impl_item
				body: (declaration_list
					(function_item name: (identifier) @method.name))) @method
			(trait_item
				body: (declaration_list
					(function_item name: (identifier) @method.name))) @method
			(function_item name: (identifier) @function.name) @function
			(struct_item name: (type_identifier) @struct.name) @struct
			(trait_item name: (type_identifier) @interface.name) @interface
		`),
		mustAdapter("cpp", []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp"}, tree_sitter_cpp.Language(), "", []string{"class", "struct"}, `
			(function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
			(class_specifier name: (type_identifier) @class.name) @class
			(struct_specifier name: (type_identifier) @struct.name) @struct
		`),
		mustAdapter("java", []string{".java"}, tree_sitter_java.Language(), "method", []string{"class", "interface"}, `
			(method_declaration name: (identifier) @method.name) @method
			(constructor_declaration name: (identifier) @method.name) @method
			(class_declaration name: (identifier) @class.name) @class
			(record_declaration name: (identifier) @class.name) @class
			(interface_declaration name: (identifier) @interface.name) @interface
		`),
		mustAdapter("csharp", []string{".cs"}, tree_sitter_csharp.Language(), "method", []string{"class", "interface", "struct"}, `
			(method_declaration name: (identifier) @method.name) @method
			(constructor_declaration name: (identifier) @method.name) @method
			(class_declaration name: (identifier) @class.name) @class
			(interface_declaration name: (identifier) @interface.name) @interface
			(struct_declaration name: (identifier) @struct.name) @struct
		`),
		mustAdapter("php", []string{".php", ".phtml"}, tree_sitter_php.LanguagePHP(), "method", []string{"class", "interface", "trait"}, `
			(class_declaration name: (name) @class.name) @class
			(interface_declaration name: (name) @interface.name) @interface
			(trait_declaration name: (name) @trait.name) @trait
			(function_definition name: (name) @function.name) @function
			(method_declaration name: (name) @method.name) @method
		`),
		mustAdapter("zig", []string{".zig"}, tree_sitter_zig.Language(), "", nil, `
			(function_declaration (identifier) @function.name) @function
		`),
	}
}

func mustAdapter(language string, exts []string, languagePtr unsafe.Pointer, methodCapt string, classCapts []string, queryStr string) Adapter {
	parser := tree_sitter.NewParser()
	lang := tree_sitter.NewLanguage(languagePtr)
	if err := parser.SetLanguage(lang); err != nil {
		return &treeSitterAdapter{language: language, exts: exts}
	}

	query, _ := tree_sitter.NewQuery(lang, queryStr)
	// The tree-sitter Go binding can return a typed-nil error; check query
	// directly rather than trusting err.
	if query == nil {
		return &treeSitterAdapter{language: language, exts: exts}
	}

	if classCapts == nil {
		classCapts = []string{"class"}
	}
	return &treeSitterAdapter{
		language:   language,
		exts:       exts,
		parser:     parser,
		query:      query,
		methodCapt: methodCapt,
		classCapts: classCapts,
	}
}

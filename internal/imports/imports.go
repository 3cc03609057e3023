// Package imports implements import extraction: a per-language regex/token
// scan over source text that yields types.ImportInfo records, independent
// of the tree-sitter parser. Each language carries precompiled
// per-construct *regexp.Regexp fields in the rules table below.
package imports

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/standardbeagle/semcode/internal/types"
)

// languageRule holds the precompiled patterns for one language's import
// syntax. A rule's regexes are tried in order against every non-comment
// line; the first to match wins.
type languageRule struct {
	language    string
	lineComment string // empty if the language has no single-line comment form
	patterns    []importPattern
}

type importPattern struct {
	re         *regexp.Regexp
	importType types.ImportType
	// build turns a regex match into an ImportInfo, filling everything but
	// SourceFile/LineNumber/RawStatement (set by the caller).
	build func(m []string) types.ImportInfo
}

var rules = map[string]languageRule{
	".py": {
		language:    "python",
		lineComment: "#",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*from\s+(\.*)([\w.]*)\s+import\s+(.+)$`),
				importType: types.ImportFrom,
				build: func(m []string) types.ImportInfo {
					items, alias := splitImportedItems(m[3])
					return types.ImportInfo{
						ImportedModule: m[2],
						ImportedItems:  items,
						IsRelative:     m[1] != "",
						Alias:          alias,
					}
				},
			},
			{
				re:         regexp.MustCompile(`^\s*import\s+([\w.]+)(?:\s+as\s+(\w+))?\s*$`),
				importType: types.ImportStandard,
				build: func(m []string) types.ImportInfo {
					return types.ImportInfo{
						ImportedModule: m[1],
						ImportedItems:  nil,
						Alias:          m[2],
					}
				},
			},
		},
	},
	".js": {language: "javascript", lineComment: "//", patterns: jsPatterns()},
	".jsx": {language: "javascript", lineComment: "//", patterns: jsPatterns()},
	".ts": {language: "typescript", lineComment: "//", patterns: jsPatterns()},
	".tsx": {language: "typescript", lineComment: "//", patterns: jsPatterns()},
	".java": {
		language:    "java",
		lineComment: "//",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*import\s+(static\s+)?([\w.]+?)(\.\*)?\s*;`),
				importType: types.ImportStandard,
				build: func(m []string) types.ImportInfo {
					items := []string(nil)
					if m[3] != "" {
						items = []string{"*"}
					}
					return types.ImportInfo{ImportedModule: m[2], ImportedItems: items}
				},
			},
		},
	},
	".go": {
		language:    "go",
		lineComment: "//",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*(?:_\s+)?(?:(\w+)\s+)?"([^"]+)"\s*$`),
				importType: types.ImportStandard,
				build: func(m []string) types.ImportInfo {
					return types.ImportInfo{ImportedModule: m[2], Alias: m[1]}
				},
			},
		},
	},
	".rs": {
		language:    "rust",
		lineComment: "//",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*use\s+([\w:]+)(?:::\{([^}]+)\})?(?:\s+as\s+(\w+))?\s*;`),
				importType: types.ImportUse,
				build: func(m []string) types.ImportInfo {
					var items []string
					if m[2] != "" {
						items, _ = splitImportedItems(m[2])
					}
					return types.ImportInfo{ImportedModule: m[1], ImportedItems: items, Alias: m[3]}
				},
			},
			{
				re:         regexp.MustCompile(`^\s*mod\s+(\w+)\s*;`),
				importType: types.ImportMod,
				build: func(m []string) types.ImportInfo {
					return types.ImportInfo{ImportedModule: m[1]}
				},
			},
		},
	},
	".rb": {
		language:    "ruby",
		lineComment: "#",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`),
				importType: types.ImportRequire,
				build: func(m []string) types.ImportInfo {
					return types.ImportInfo{ImportedModule: m[1]}
				},
			},
		},
	},
	".php": {
		language:    "php",
		lineComment: "//",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*use\s+([\w\\]+)(?:\s+as\s+(\w+))?\s*;`),
				importType: types.ImportUse,
				build: func(m []string) types.ImportInfo {
					return types.ImportInfo{ImportedModule: m[1], Alias: m[2]}
				},
			},
		},
	},
	".cs": {
		language:    "csharp",
		lineComment: "//",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*using\s+(?:static\s+)?([\w.]+)\s*;`),
				importType: types.ImportStandard,
				build: func(m []string) types.ImportInfo {
					return types.ImportInfo{ImportedModule: m[1]}
				},
			},
		},
	},
	".cpp": cFamilyRule(), ".cc": cFamilyRule(), ".cxx": cFamilyRule(),
	".c": cFamilyRule(), ".h": cFamilyRule(), ".hpp": cFamilyRule(),
}

func cFamilyRule() languageRule {
	return languageRule{
		language:    "cpp",
		lineComment: "//",
		patterns: []importPattern{
			{
				re:         regexp.MustCompile(`^\s*#\s*include\s+[<"]([^>"]+)[>"]`),
				importType: types.ImportStandard,
				build: func(m []string) types.ImportInfo {
					return types.ImportInfo{ImportedModule: m[1]}
				},
			},
		},
	}
}

func jsPatterns() []importPattern {
	return []importPattern{
		{
			re:         regexp.MustCompile(`^\s*import\s+(?:\*\s+as\s+(\w+)|(\w+)|\{([^}]+)\}|(?:(\w+)\s*,\s*\{([^}]+)\}))\s+from\s+['"]([^'"]+)['"]`),
			importType: types.ImportStandard,
			build: func(m []string) types.ImportInfo {
				switch {
				case m[1] != "":
					return types.ImportInfo{ImportedModule: m[6], ImportedItems: []string{"*"}, Alias: m[1]}
				case m[2] != "":
					return types.ImportInfo{ImportedModule: m[6], ImportedItems: []string{"default"}, Alias: m[2]}
				case m[3] != "":
					items, _ := splitImportedItems(m[3])
					return types.ImportInfo{ImportedModule: m[6], ImportedItems: items}
				default:
					items, _ := splitImportedItems(m[5])
					return types.ImportInfo{ImportedModule: m[6], ImportedItems: append([]string{"default:" + m[4]}, items...)}
				}
			},
		},
		{
			re:         regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`),
			importType: types.ImportRequire,
			build: func(m []string) types.ImportInfo {
				return types.ImportInfo{ImportedModule: m[1]}
			},
		},
		{
			re:         regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`),
			importType: types.ImportDynamic,
			build: func(m []string) types.ImportInfo {
				return types.ImportInfo{ImportedModule: m[1]}
			},
		},
	}
}

// splitImportedItems turns "a, b as c, *" into its item list, also
// returning the first "as"-aliased name if present (covers Python's
// "from x import y as z").
func splitImportedItems(raw string) (items []string, alias string) {
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if idx := strings.Index(p, " as "); idx >= 0 {
			name := strings.TrimSpace(p[:idx])
			if alias == "" {
				alias = strings.TrimSpace(p[idx+4:])
			}
			items = append(items, name)
			continue
		}
		items = append(items, p)
	}
	return items, alias
}

// Extract dispatches on the file extension,
// returns an empty slice for unrecognized languages, skips comment lines,
// and never errors on malformed statements (a line simply matches nothing
// and is skipped).
func Extract(filePath string, source []byte) []types.ImportInfo {
	ext := extOf(filePath)
	rule, ok := rules[ext]
	if !ok {
		return nil
	}

	var out []types.ImportInfo
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if rule.lineComment != "" && strings.HasPrefix(trimmed, rule.lineComment) {
			continue
		}

		for _, pat := range rule.patterns {
			m := pat.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			info := pat.build(m)
			info.SourceFile = filePath
			info.LineNumber = lineNo
			info.ImportType = pat.importType
			info.RawStatement = trimmed
			if info.ImportedModule != "" {
				info.IsRelative = info.IsRelative || strings.HasPrefix(info.ImportedModule, ".")
			}
			out = append(out, info)
			break
		}
	}

	return out
}

func extOf(filePath string) string {
	idx := strings.LastIndexByte(filePath, '.')
	if idx < 0 {
		return ""
	}
	return filePath[idx:]
}

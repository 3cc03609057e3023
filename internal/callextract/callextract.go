// Package callextract implements per-file call-site and interface/trait
// implementation extraction: a comment/string-aware scan for identifiers
// followed by "(" (with keyword exclusion), generalized across languages
// instead of hand-walking a language-specific AST per call site. A call is
// attributed to its innermost enclosing unit by position range rather than
// by AST descent.
package callextract

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/semcode/internal/types"
)

// Extract returns every call site found in source, attributed to the
// innermost unit (by line range) that contains it, plus every
// interface/trait implementation declared in the file. units is the
// parser's output for this same file - used purely for caller attribution,
// never re-parsed.
func Extract(filePath string, source []byte, units []types.Unit, language string) ([]types.CallSite, []types.Implementation) {
	calls := scanCalls(source, language)

	var sites []types.CallSite
	declSkipped := make(map[*types.Unit]bool)
	for _, c := range calls {
		unit := innermostUnit(units, c.line)
		if unit == nil {
			continue // module-level call, no enclosing unit to attribute it to
		}
		if c.line == unit.StartLine && c.name == unit.Name && !declSkipped[unit] {
			declSkipped[unit] = true
			continue // the unit's own declaration, not a call
		}
		if isLanguageKeyword(language, c.name) {
			continue
		}
		sites = append(sites, types.CallSite{
			CallerFunction: unit.QualifiedName(),
			CalleeName:     c.name,
			Line:           c.line,
			Column:         c.column,
			Confidence:     0.7, // token-scan attribution, not full AST resolution
		})
	}

	return sites, extractImplementations(filePath, source, language)
}

func innermostUnit(units []types.Unit, line int) *types.Unit {
	var best *types.Unit
	bestSpan := -1
	for i := range units {
		u := &units[i]
		if line < u.StartLine || line > u.EndLine {
			continue
		}
		span := u.EndLine - u.StartLine
		if best == nil || span < bestSpan {
			best = u
			bestSpan = span
		}
	}
	return best
}

type rawCall struct {
	name   string
	line   int
	column int
}

// scanCalls walks source byte-by-byte, skipping string/comment content, and
// records every `identifier(` occurrence with its 1-indexed line/column.
// Mirrors findGoCalls's state machine but is language-agnostic: every
// language in scope uses C-family or Python-family comment/string syntax.
func scanCalls(source []byte, language string) []rawCall {
	lineComment, blockStart, blockEnd := commentMarkers(language)

	var calls []rawCall
	line, col := 1, 1

	inString := byte(0)
	inLineComment := false
	inBlockComment := false

	i := 0
	n := len(source)
	nextLine := func() { line++; col = 1 }

	for i < n {
		c := source[i]

		if c == '\n' {
			if inLineComment {
				inLineComment = false
			}
			nextLine()
			i++
			continue
		}

		if inLineComment || inBlockComment {
			if inBlockComment && blockEnd != "" && strings.HasPrefix(string(source[i:min(i+len(blockEnd), n)]), blockEnd) {
				inBlockComment = false
				i += len(blockEnd)
				col += len(blockEnd)
				continue
			}
			i++
			col++
			continue
		}

		if inString != 0 {
			if c == '\\' && i+1 < n {
				i += 2
				col += 2
				continue
			}
			if c == inString {
				inString = 0
			}
			i++
			col++
			continue
		}

		if lineComment != "" && strings.HasPrefix(string(source[i:min(i+len(lineComment), n)]), lineComment) {
			inLineComment = true
			i += len(lineComment)
			col += len(lineComment)
			continue
		}
		if blockStart != "" && strings.HasPrefix(string(source[i:min(i+len(blockStart), n)]), blockStart) {
			inBlockComment = true
			i += len(blockStart)
			col += len(blockStart)
			continue
		}
		if c == '"' || c == '\'' || c == '`' {
			inString = c
			i++
			col++
			continue
		}

		if isIdentStart(c) {
			start := i
			startCol := col
			for i < n && isIdentChar(source[i]) {
				i++
				col++
			}
			name := string(source[start:i])

			j, jc := i, col
			for j < n && (source[j] == ' ' || source[j] == '\t') {
				j++
				jc++
			}
			if j < n && source[j] == '(' {
				calls = append(calls, rawCall{name: name, line: line, column: startCol})
			}
			continue
		}

		i++
		col++
	}

	return calls
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func commentMarkers(language string) (lineComment, blockStart, blockEnd string) {
	switch language {
	case "python", "ruby":
		return "#", "", ""
	default:
		return "//", "/*", "*/"
	}
}

var keywordsByLanguage = map[string]map[string]bool{
	"go":         {"if": true, "for": true, "switch": true, "select": true, "func": true, "return": true, "range": true, "defer": true, "go": true},
	"python":     {"if": true, "for": true, "while": true, "def": true, "return": true, "elif": true, "print": true, "with": true},
	"javascript": {"if": true, "for": true, "while": true, "switch": true, "function": true, "return": true, "catch": true},
	"typescript": {"if": true, "for": true, "while": true, "switch": true, "function": true, "return": true, "catch": true},
	"java":       {"if": true, "for": true, "while": true, "switch": true, "return": true, "catch": true, "new": true},
	"csharp":     {"if": true, "for": true, "foreach": true, "while": true, "switch": true, "return": true, "catch": true, "new": true},
	"rust":       {"if": true, "for": true, "while": true, "match": true, "return": true, "fn": true},
	"cpp":        {"if": true, "for": true, "while": true, "switch": true, "return": true, "catch": true, "sizeof": true},
	"ruby":       {"if": true, "unless": true, "while": true, "def": true, "puts": true},
	"php":        {"if": true, "for": true, "foreach": true, "while": true, "switch": true, "return": true, "function": true},
}

func isLanguageKeyword(language, name string) bool {
	return keywordsByLanguage[language][name]
}

var implementationPatterns = map[string][]*regexp.Regexp{
	"java": {
		regexp.MustCompile(`class\s+(\w+)(?:<[^>]*>)?(?:\s+extends\s+\w+(?:<[^>]*>)?)?\s+implements\s+([\w,\s<>]+)\s*\{`),
	},
	"typescript": {
		regexp.MustCompile(`class\s+(\w+)(?:<[^>]*>)?(?:\s+extends\s+\w+(?:<[^>]*>)?)?\s+implements\s+([\w,\s<>]+)\s*\{`),
	},
	"php": {
		regexp.MustCompile(`class\s+(\w+)(?:\s+extends\s+\w+)?\s+implements\s+([\w,\s\\]+)\s*\{`),
	},
	"csharp": {
		regexp.MustCompile(`class\s+(\w+)(?:<[^>]*>)?\s*:\s*([\w,\s<>]+)\s*\{?`),
	},
	"rust": {
		regexp.MustCompile(`impl(?:<[^>]*>)?\s+(\w+)(?:<[^>]*>)?\s+for\s+(\w+)`),
	},
	"python": {
		regexp.MustCompile(`class\s+(\w+)\s*\(([^)]+)\)\s*:`),
	},
}

func extractImplementations(filePath string, source []byte, language string) []types.Implementation {
	patterns, ok := implementationPatterns[language]
	if !ok {
		return nil
	}

	var out []types.Implementation
	lines := strings.Split(string(source), "\n")
	for lineIdx, line := range lines {
		for _, re := range patterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			typeName, interfaceList := m[1], m[2]
			if language == "rust" {
				// impl Trait for Type: group 1 is the trait, group 2 is the type.
				typeName, interfaceList = m[2], m[1]
			}
			for _, iface := range strings.Split(interfaceList, ",") {
				iface = strings.TrimSpace(iface)
				if iface == "" || iface == "object" {
					continue
				}
				out = append(out, types.Implementation{
					InterfaceName: iface,
					TypeName:      typeName,
					FilePath:      filePath,
					Line:          lineIdx + 1,
				})
			}
		}
	}
	return out
}

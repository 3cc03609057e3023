package analysis

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/semcode/internal/types"
)

const (
	maxCyclo  = 40 // 2 * MAX_CYCLO
	maxNest   = 10 // 2 * MAX_NEST
	maxParams = 10 // 2 * MAX_PARAMS
)

// decisionTokens covers if/for/while/case/ternary/catch/logical-and-or as
// whole-word regexes over unit text, since the analyzer operates on
// already-extracted unit content rather than a live AST.
var decisionTokens = regexp.MustCompile(`\b(if|elif|else if|for|foreach|while|do|case|catch|except|rescue|and|or)\b|&&|\|\||\?\s*[^:]+\s*:`)

var commentPrefixByLanguage = map[string]string{
	"python": "#", "ruby": "#",
}

var docCommentPattern = map[string]*regexp.Regexp{
	"python": regexp.MustCompile(`(?s)"""(.*?)"""|'''(.*?)'''`),
	"go":     regexp.MustCompile(`(?m)^\s*//.*$`),
}

// ComputeComplexity measures an already-extracted
// Unit: cyclomatic via decision-token counting, line_count over non-empty
// non-comment lines, nesting_depth via indent/brace delta, parameter_count
// parsed out of signature, has_documentation via a language-aware doc
// pattern. Never fails; even for empty content Cyclomatic is at least 1
// and ComplexityScore at least 0.3.
func ComputeComplexity(u types.Unit) ComplexityMetrics {
	m := ComplexityMetrics{}

	m.Cyclomatic = clamp(1+len(decisionTokens.FindAllString(u.Content, -1)), 1, maxCyclo)
	m.LineCount = countCodeLines(u.Content, u.Language)
	m.NestingDepth = clamp(nestingDepth(u.Content, u.Language), 0, maxNest)
	m.ParameterCount = clamp(countParameters(u.Signature), 0, maxParams)
	m.HasDocumentation = hasDocumentation(u.Content, u.Language)

	normCyclo := float64(m.Cyclomatic) / maxCyclo
	normLines := float64(m.LineCount) / 200.0
	if normLines > 1 {
		normLines = 1
	}
	normNest := float64(m.NestingDepth) / maxNest
	normParams := float64(m.ParameterCount) / maxParams

	weighted := 0.4*normCyclo + 0.3*normLines + 0.2*normNest + 0.1*normParams
	score := 0.3 + weighted*0.4
	if m.HasDocumentation {
		score += 0.05
	}
	m.ComplexityScore = clampFloat(score, 0.3, 0.7)

	return m
}

func countCodeLines(content, language string) int {
	prefix := commentPrefixByLanguage[language]
	if prefix == "" {
		prefix = "//"
	}
	n := 0
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, prefix) {
			continue
		}
		n++
	}
	return n
}

// nestingDepth uses indentation for indent-sensitive languages, otherwise
// tracks a running brace delta.
func nestingDepth(content, language string) int {
	if language == "python" {
		return indentNestingDepth(content)
	}
	return braceNestingDepth(content)
}

func indentNestingDepth(content string) int {
	baseIndent := -1
	maxDepth := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := 0
		for _, r := range line {
			if r == ' ' {
				indent++
			} else if r == '\t' {
				indent += 4
			} else {
				break
			}
		}
		if baseIndent == -1 {
			baseIndent = indent
			continue
		}
		depth := (indent - baseIndent) / 4
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

func braceNestingDepth(content string) int {
	depth, maxDepth := 0, 0
	for _, r := range content {
		switch r {
		case '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	// First brace opens the function body itself; exclude it from nesting.
	if maxDepth > 0 {
		maxDepth--
	}
	return maxDepth
}

var selfParams = map[string]bool{"self": true, "cls": true, "this": true}

func countParameters(signature string) int {
	start := strings.Index(signature, "(")
	end := strings.LastIndex(signature, ")")
	if start == -1 || end == -1 || end <= start {
		return 0
	}
	inner := strings.TrimSpace(signature[start+1 : end])
	if inner == "" {
		return 0
	}

	count := 0
	depth := 0
	paramStart := 0
	params := []string{}
	for i, r := range inner {
		switch r {
		case '(', '[', '<':
			depth++
		case ')', ']', '>':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, inner[paramStart:i])
				paramStart = i + 1
			}
		}
	}
	params = append(params, inner[paramStart:])

	for _, p := range params {
		name := strings.TrimSpace(p)
		name = strings.TrimPrefix(name, "*")
		name = strings.TrimPrefix(name, "&")
		if idx := strings.IndexAny(name, " :"); idx > 0 {
			name = name[:idx]
		}
		if selfParams[strings.ToLower(name)] {
			continue
		}
		if name == "" {
			continue
		}
		count++
	}
	return count
}

func hasDocumentation(content, language string) bool {
	re, ok := docCommentPattern[language]
	if !ok {
		re = docCommentPattern["go"]
	}
	m := re.FindString(content)
	return len(strings.TrimSpace(m)) > 10
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/standardbeagle/semcode/internal/errs"
)

// PatternLocation is one regex match site within a candidate's content.
type PatternLocation struct {
	Line   int
	Column int
	Text   string
}

// presets are the named regular expressions maintained by the service,
// referenced via pattern="@preset:<name>".
var presets = map[string]*regexp.Regexp{
	"bare_except":       regexp.MustCompile(`except\s*:`),
	"security_keywords": regexp.MustCompile(`(?i)\b(password|secret|token|api[_-]?key|auth)\b`),
	"todo_comments":     regexp.MustCompile(`(?i)\b(TODO|FIXME)\b`),
}

const presetPrefix = "@preset:"

// resolvePattern compiles pattern as a raw regex, or resolves it as a named
// preset if prefixed with "@preset:". Unknown presets and invalid regexes
// both surface a ValidationError.
func resolvePattern(pattern string) (*regexp.Regexp, error) {
	if strings.HasPrefix(pattern, presetPrefix) {
		name := strings.TrimPrefix(pattern, presetPrefix)
		re, ok := presets[name]
		if !ok {
			return nil, errs.NewValidationError("pattern", fmt.Sprintf("unknown preset %q", name))
		}
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.NewValidationError("pattern", fmt.Sprintf("invalid regex: %v", err))
	}
	return re, nil
}

// matchPattern scans content for every occurrence of re, returning 1-indexed
// line/column locations.
func matchPattern(re *regexp.Regexp, content string) []PatternLocation {
	var locs []PatternLocation
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		for _, idx := range re.FindAllStringIndex(line, -1) {
			locs = append(locs, PatternLocation{Line: i + 1, Column: idx[0] + 1, Text: line[idx[0]:idx[1]]})
		}
	}
	return locs
}

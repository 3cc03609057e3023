package analysis

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/semcode/internal/types"
)

// identifierCallPattern finds "identifier(" tokens, the same token shape
// the call extractor scans for.
var identifierCallPattern = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*\(`)

var entryPointFilenames = map[string]bool{
	"main": true, "index": true, "app": true, "server": true,
	"api": true, "cli": true, "__init__": true,
}

var entryPointPathFragments = []string{"api", "core", "routes", "endpoints", "handlers"}

// UsageAnalyzer builds a per-file call graph over already-extracted units
// and scores caller counts and visibility. Stateful: Reset clears the
// per-file working state and must run between files.
type UsageAnalyzer struct {
	callsOut map[string]map[string]bool // unit qualified name -> callee names
}

// NewUsageAnalyzer returns a ready-to-use analyzer; call Reset between
// files.
func NewUsageAnalyzer() *UsageAnalyzer {
	a := &UsageAnalyzer{}
	a.Reset()
	return a
}

// Reset clears per-file state so a fresh AnalyzeFile call starts empty.
func (a *UsageAnalyzer) Reset() {
	a.callsOut = make(map[string]map[string]bool)
}

// AnalyzeFile computes per-unit UsageMetrics for every unit in the file.
// filePath is used for is_entry_point; is_exported is matched against the
// source content.
func (a *UsageAnalyzer) AnalyzeFile(units []types.Unit, source []byte, language, filePath string) map[string]UsageMetrics {
	a.Reset()

	names := make(map[string]bool, len(units))
	for _, u := range units {
		names[u.Name] = true
	}

	for _, u := range units {
		out := make(map[string]bool)
		for _, m := range identifierCallPattern.FindAllStringSubmatch(u.Content, -1) {
			callee := m[1]
			if callee == u.Name {
				continue // self-edges removed
			}
			if names[callee] {
				out[callee] = true
			}
		}
		a.callsOut[u.QualifiedName()] = out
	}

	callerCount := make(map[string]int)
	for _, u := range units {
		for callee := range a.callsOut[u.QualifiedName()] {
			callerCount[callee]++
		}
	}

	content := string(source)
	results := make(map[string]UsageMetrics, len(units))
	for _, u := range units {
		callers := callerCount[u.Name]
		results[u.QualifiedName()] = UsageMetrics{
			CallerCount:  callers,
			IsPublic:     isPublic(u.Name, language),
			IsExported:   isExported(u.Name, content, language),
			IsEntryPoint: isEntryPoint(filePath),
			UsageBoost:   usageBoost(callers, isPublic(u.Name, language), isExported(u.Name, content, language), isEntryPoint(filePath)),
		}
	}
	return results
}

func isPublic(name, language string) bool {
	if name == "" {
		return false
	}
	switch language {
	case "python", "javascript", "typescript":
		return !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "#")
	case "go":
		r := []rune(name)[0]
		return r >= 'A' && r <= 'Z'
	default:
		return true
	}
}

func isExported(name, content, language string) bool {
	switch language {
	case "python":
		return strings.Contains(content, "__all__") &&
			(strings.Contains(content, "'"+name+"'") || strings.Contains(content, "\""+name+"\""))
	case "javascript", "typescript":
		return regexp.MustCompile(`export\s+(default\s+)?(function|class|const|let|var)?\s*`+regexp.QuoteMeta(name)+`\b`).MatchString(content) ||
			strings.Contains(content, "export { "+name) || strings.Contains(content, "export {"+name)
	case "go":
		if len(name) == 0 {
			return false
		}
		r := []rune(name)[0]
		return r >= 'A' && r <= 'Z'
	case "java":
		return regexp.MustCompile(`public\s+[\w<>\[\],\s]*\b`+regexp.QuoteMeta(name)+`\s*\(`).MatchString(content)
	default:
		return false
	}
}

func isEntryPoint(filePath string) bool {
	if filePath == "" {
		return false
	}
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	if entryPointFilenames[strings.ToLower(base)] {
		return true
	}
	lowerPath := strings.ToLower(filepath.ToSlash(filePath))
	for _, frag := range entryPointPathFragments {
		if strings.Contains(lowerPath, "/"+frag+"/") || strings.HasPrefix(lowerPath, frag+"/") {
			return true
		}
	}
	return false
}

// usageBoost applies the piecewise caller-count curve plus the visibility
// bonuses, clamped to [0, 0.2].
func usageBoost(callers int, public, exported, entryPoint bool) float64 {
	var boost float64
	switch {
	case callers <= 2:
		boost = float64(callers) / 2 * 0.03
	case callers < 10:
		boost = 0.03 + (float64(callers-2)/7)*(0.10-0.03)
	default:
		boost = 0.10
	}
	if public {
		boost += 0.03
	}
	if exported {
		boost += 0.03
	}
	if entryPoint {
		boost += 0.04
	}
	return clampFloat(boost, 0, 0.2)
}

package analysis

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/semcode/internal/types"
)

// securityLexicon is the whole-word security keyword list scanned against
// unit names and content: the conventional OWASP-adjacent vocabulary of
// auth, crypto, secrets and injection surfaces.
var securityLexicon = buildWordPatterns(
	"password", "passwd", "secret", "token", "apikey", "api_key", "credential",
	"auth", "authenticate", "authorization", "oauth", "jwt", "session",
	"encrypt", "decrypt", "cipher", "hash", "salt", "sign", "signature",
	"privatekey", "private_key", "publickey", "certificate", "ssl", "tls",
	"sanitize", "escape", "sql", "query", "exec", "eval", "injection",
	"csrf", "xss", "cors", "permission", "role", "admin", "sudo",
	"vulnerable", "exploit", "firewall", "acl",
)

var errorHandlingTokens = map[string][]string{
	"python":     {"try:", "except", "raise"},
	"go":         {"if err != nil", "panic(", "recover("},
	"javascript": {"try {", "catch", "throw"},
	"typescript": {"try {", "catch", "throw"},
	"java":       {"try {", "catch", "throw"},
	"rust":       {"Result<", "?;", "unwrap()"},
}

var criticalDecoratorPattern = map[string]*regexp.Regexp{
	"python": regexp.MustCompile(`@(transaction|atomic|requires_auth|login_required|permission_required|critical)`),
	"java":   regexp.MustCompile(`@(Transactional|Secured|PreAuthorize|Critical)`),
	"csharp": regexp.MustCompile(`\[(Authorize|Transaction|Critical)\]`),
}

var criticalPathNames = map[string]bool{
	"main": true, "index": true, "app": true, "init": true,
	"__init__": true, "server": true, "core": true,
}

// ComputeCriticality combines keyword/error/decorator scanning with a
// file-proximity score, never failing on an empty or non-path filePath.
func ComputeCriticality(u types.Unit, filePath string) CriticalityMetrics {
	lowerName := strings.ToLower(u.Name)
	lowerContent := strings.ToLower(u.Content)

	hits := 0
	for _, re := range securityLexicon {
		if re.MatchString(lowerName) || re.MatchString(lowerContent) {
			hits++
		}
	}

	hasErrHandling := false
	for _, tok := range errorHandlingTokens[u.Language] {
		if strings.Contains(u.Content, tok) {
			hasErrHandling = true
			break
		}
	}

	hasDecorator := false
	if re, ok := criticalDecoratorPattern[u.Language]; ok {
		hasDecorator = re.MatchString(u.Content)
	}

	proximity := proximityScore(filePath, u.Name)

	m := CriticalityMetrics{
		SecurityKeywordHits:  hits,
		HasErrorHandling:     hasErrHandling,
		HasCriticalDecorator: hasDecorator,
		ProximityScore:       proximity,
	}

	var boost float64
	switch {
	case hits == 1:
		boost += 0.02
	case hits == 2:
		boost += 0.06
	case hits >= 3:
		boost += 0.10
	}
	if hasErrHandling {
		boost += 0.03
	}
	if hasDecorator {
		boost += 0.05
	}
	boost += proximity * 0.02

	m.CriticalityBoost = clampFloat(boost, 0, 0.3)
	return m
}

// proximityScore tolerates empty/non-path inputs by treating every
// sub-component that can't be computed as 0.
func proximityScore(filePath, unitName string) float64 {
	var score float64

	if filePath != "" {
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)))
		if criticalPathNames[base] {
			score += 0.5
		}
		depth := strings.Count(filepath.ToSlash(filePath), "/")
		if depth > 10 {
			depth = 10
		}
		score += (1 - float64(depth)/10) * 0.2
	}

	if unitName != "" && criticalPathNames[strings.ToLower(unitName)] {
		score += 0.3
	}

	return clampFloat(score, 0, 1.0)
}

func buildWordPatterns(words ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return patterns
}

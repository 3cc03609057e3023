package config

import (
	"fmt"
	"os"
	"path/filepath"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads configuration from "<projectRoot>/.semcode.kdl" via
// node-name dispatch over doc.Nodes / n.Children / n.Arguments rather than
// properties. Returns (nil, nil) when the file does not exist so callers
// fall back to Default().
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".semcode.kdl")
	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .semcode.kdl: %w", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root == "" {
		cfg.Project.Root = projectRoot
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}
	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	doc, err := kdl.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .semcode.kdl: %w", err)
	}

	cfg := Default()

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
				case "max_total_size_mb":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxTotalSizeMB = int64(v)
					}
				case "max_file_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileCount = v
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "storage":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "backend":
					if s, ok := firstStringArg(cn); ok {
						cfg.Storage.Backend = StorageBackend(s)
					}
				case "allow_fallback":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Storage.AllowFallback = b
					}
				case "sqlite_dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Storage.SQLiteDir = s
					}
				}
			}
		case "embedding":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "model":
					if s, ok := firstStringArg(cn); ok {
						cfg.Embedding.Model = s
					}
				case "dimension":
					if v, ok := firstIntArg(cn); ok {
						cfg.Embedding.Dimension = v
					}
				case "batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Embedding.BatchSize = v
					}
				case "cache_enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Embedding.CacheEnabled = b
					}
				case "cache_ttl_days":
					if v, ok := firstIntArg(cn); ok {
						cfg.Embedding.CacheTTLDays = v
					}
				}
			}
		case "weights":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "importance_complexity":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Weights.ImportanceComplexity = v
					}
				case "importance_usage":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Weights.ImportanceUsage = v
					}
				case "importance_criticality":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Weights.ImportanceCriticality = v
					}
				case "hybrid_search_alpha":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Weights.HybridSearchAlpha = v
					}
				case "retrieval_gate_threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Weights.RetrievalGateThreshold = v
					}
				}
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

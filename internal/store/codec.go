package store

import (
	"encoding/json"
	"math"
	"time"

	"github.com/standardbeagle/semcode/internal/types"
)

// row is the flat representation both backends persist a Memory as; the
// vector backend additionally keeps an embedding blob, the keyword backend
// additionally indexes content via FTS5.
type row struct {
	ID             string
	Content        string
	Category       string
	ContextLevel   string
	Scope          string
	ProjectName    string
	Importance     float64
	EmbeddingModel string
	CreatedAt      int64
	UpdatedAt      int64
	TagsJSON       string
	MetadataJSON   string
}

func encodeRow(id, content string, m map[string]any) (row, error) {
	now := time.Now().Unix()

	category, _ := m["category"].(string)
	if category == "" {
		category = string(types.CategoryCode)
	}
	contextLevel, _ := m["context_level"].(string)
	scope, _ := m["scope"].(string)
	if scope == "" {
		scope = string(types.ScopeProject)
	}
	project, _ := m["project_name"].(string)
	importance, _ := m["importance"].(float64)
	model, _ := m["embedding_model"].(string)

	var tags []string
	switch t := m["tags"].(type) {
	case []string:
		tags = t
	case map[string]struct{}:
		for k := range t {
			tags = append(tags, k)
		}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return row{}, err
	}
	metaJSON, err := json.Marshal(m)
	if err != nil {
		return row{}, err
	}

	return row{
		ID:             id,
		Content:        content,
		Category:       category,
		ContextLevel:   contextLevel,
		Scope:          scope,
		ProjectName:    project,
		Importance:     importance,
		EmbeddingModel: model,
		CreatedAt:      now,
		UpdatedAt:      now,
		TagsJSON:       string(tagsJSON),
		MetadataJSON:   string(metaJSON),
	}, nil
}

func decodeRow(r row) *types.Memory {
	var tags []string
	_ = json.Unmarshal([]byte(r.TagsJSON), &tags)
	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	var meta map[string]any
	_ = json.Unmarshal([]byte(r.MetadataJSON), &meta)

	return &types.Memory{
		ID:             r.ID,
		Content:        r.Content,
		Category:       types.Category(r.Category),
		ContextLevel:   types.ContextLevel(r.ContextLevel),
		Scope:          types.Scope(r.Scope),
		ProjectName:    r.ProjectName,
		Importance:     r.Importance,
		EmbeddingModel: r.EmbeddingModel,
		CreatedAt:      time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:      time.Unix(r.UpdatedAt, 0).UTC(),
		Tags:           tagSet,
		Metadata:       meta,
	}
}

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4+0] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// map cosine's [-1,1] range to a [0,1] score
	return (cos + 1) / 2
}

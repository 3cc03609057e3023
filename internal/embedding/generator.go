// Generator implements a deterministic text->vector function of fixed
// dimension: a hashed bag-of-tokens projection rather than a network call
// to a model server, keeping embeddings fixed-dimension, order-preserving,
// L2-normalized and bit-reproducible with no model weights to ship.
package embedding

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/semcode/internal/errs"
)

// Generator produces L2-normalized vectors of a fixed dimension from text,
// via a hashed bag-of-tokens projection: every token votes, with a
// hash-derived sign, into D buckets selected by a second hash. Same model
// name + same input always yields bit-identical output.
type Generator struct {
	model       string
	dimension   int
	parallelism int // 0 = sequential batch_generate
}

// New returns a Generator producing vectors of the given dimension under
// the named model. parallelism<=1 disables the worker pool.
func New(model string, dimension, parallelism int) *Generator {
	if dimension <= 0 {
		dimension = 384
	}
	return &Generator{model: model, dimension: dimension, parallelism: parallelism}
}

// Model returns the model identifier recorded alongside cached/stored vectors.
func (g *Generator) Model() string { return g.model }

// Dimension returns the fixed vector length every output satisfies.
func (g *Generator) Dimension() int { return g.dimension }

func tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// Generate maps text to a fixed-dimension vector. Empty text is
// an EmbeddingError. The output satisfies ‖v‖2 ≈ 1±1e-2.
func (g *Generator) Generate(text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.NewEmptyInputError()
	}

	vec := make([]float64, g.dimension)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		// Text was non-empty but contained no word characters (e.g. pure
		// punctuation); fold the raw bytes in as a single token so the
		// output is still a function of the input, not the zero vector.
		tokens = []string{text}
	}

	for _, tok := range tokens {
		h := xxhash.Sum64String(g.model + "\x00" + tok)
		bucket := int(h % uint64(g.dimension))
		// The low bit of a second, differently-salted hash selects the sign,
		// giving roughly balanced +/- contributions across buckets.
		signHash := xxhash.Sum64String(tok + "\x00" + g.model)
		sign := 1.0
		if signHash&1 == 1 {
			sign = -1.0
		}
		weight := 1.0 + float64(len(tok))/16.0 // longer tokens carry slightly more signal
		vec[bucket] += sign * weight
	}

	return l2Normalize(vec), nil
}

func l2Normalize(vec []float64) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	out := make([]float32, len(vec))
	if sumSquares == 0 {
		// All-zero accumulator (degenerate input): return a fixed unit
		// vector along the first axis rather than dividing by zero, so the
		// L2-normalization invariant still holds for pathological input.
		if len(out) > 0 {
			out[0] = 1
		}
		return out
	}
	norm := math.Sqrt(sumSquares)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// BatchGenerate implements batch_generate(texts, show_progress?) -> vectors,
// preserving input order regardless of whether the parallel worker pool is
// used. progress, if non-nil, is invoked once per completed item (not
// guaranteed in input order) when showProgress is true.
func (g *Generator) BatchGenerate(ctx context.Context, texts []string, showProgress bool, progress func(done, total int)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	if g.parallelism <= 1 {
		for i, t := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err // cancellation frees resources, returns no partial results
			}
			v, err := g.Generate(t)
			if err != nil {
				return nil, err
			}
			out[i] = v
			if showProgress && progress != nil {
				progress(i+1, len(texts))
			}
		}
		return out, nil
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.parallelism)
	var done int32
	for i, t := range texts {
		i, t := i, t
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := g.Generate(t)
			if err != nil {
				return err
			}
			out[i] = v
			if showProgress && progress != nil {
				n := atomic.AddInt32(&done, 1)
				progress(int(n), len(texts))
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err // a cancelled/failed batch returns no partial results
	}
	return out, nil
}

package keyword

import (
	"log/slog"
	"math"
	"sort"

	"github.com/poiesic/newsrank/core"
)

// Scoring defaults.
const (
	DefaultK1            = 1.2
	DefaultB             = 0.75
	DefaultMaxCandidates = 2000

	// repeatBoost scales a term's contribution per extra occurrence in the query.
	repeatBoost = 0.1
	epsilon     = 1e-9
)

// Posting is one (document position, term frequency) pair.
type Posting struct {
	Doc int `msgpack:"d"`
	TF  int `msgpack:"f"`
}

// Hit is a scored document position.
type Hit struct {
	Position int
	Score    float64
}

// Options are the tunable scoring parameters.
type Options struct {
	K1            float64 `msgpack:"k1" yaml:"k1"`
	B             float64 `msgpack:"b" yaml:"b"`
	MaxCandidates int     `msgpack:"max_candidates" yaml:"max_candidates"`
	Stem          bool    `msgpack:"stem" yaml:"stem"`
}

// DefaultOptions returns the BM25 defaults without stemming.
func DefaultOptions() Options {
	return Options{K1: DefaultK1, B: DefaultB, MaxCandidates: DefaultMaxCandidates}
}

// Option configures an Index.
type Option func(*Index)

func WithK1(k1 float64) Option { return func(ix *Index) { ix.opts.K1 = k1 } }

func WithB(b float64) Option { return func(ix *Index) { ix.opts.B = b } }

// WithMaxCandidates caps the number of scored documents returned; values
// below 1 disable the cap.
func WithMaxCandidates(n int) Option { return func(ix *Index) { ix.opts.MaxCandidates = n } }

// WithStemming enables English stemming of ASCII tokens.
func WithStemming(enabled bool) Option { return func(ix *Index) { ix.opts.Stem = enabled } }

// WithOptions replaces all scoring options.
func WithOptions(opts Options) Option { return func(ix *Index) { ix.opts = opts } }

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// Index is an immutable BM25 inverted index. It is safe for concurrent use.
type Index struct {
	opts     Options
	postings map[string][]Posting
	df       map[string]int
	docLen   []int
	avgLen   float64
	logger   *slog.Logger
}

// New returns an empty index.
func New(opts ...Option) *Index {
	ix := &Index{
		opts:     DefaultOptions(),
		postings: map[string][]Posting{},
		df:       map[string]int{},
		logger:   slog.Default().With("component", "keyword"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build indexes the markup-stripped title and summary of every document,
// replacing any previous content.
func Build(docs []core.DocumentRecord, opts ...Option) *Index {
	ix := New(opts...)
	ix.docLen = make([]int, len(docs))

	total := 0
	for pos := range docs {
		doc := &docs[pos]
		toks := ix.tokens(core.StripHTML(doc.Title) + " " + core.StripHTML(doc.Summary))
		ix.docLen[pos] = len(toks)
		total += len(toks)
		if len(toks) == 0 {
			continue
		}

		tf := make(map[string]int, len(toks))
		order := make([]string, 0, len(toks))
		for _, t := range toks {
			if tf[t] == 0 {
				order = append(order, t)
			}
			tf[t]++
		}
		for _, t := range order {
			ix.postings[t] = append(ix.postings[t], Posting{Doc: pos, TF: tf[t]})
			ix.df[t]++
		}
	}
	if len(docs) > 0 {
		ix.avgLen = float64(total) / float64(len(docs))
	}

	ix.logger.Debug("built keyword index", "documents", len(docs), "terms", len(ix.postings), "avgLen", ix.avgLen)
	return ix
}

func (ix *Index) tokens(text string) []string {
	toks := Tokenize(text)
	if ix.opts.Stem {
		toks = stemTokens(toks)
	}
	return toks
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.docLen) }

// Terms returns the vocabulary size.
func (ix *Index) Terms() int { return len(ix.postings) }

// Options returns the scoring options.
func (ix *Index) Options() Options { return ix.opts }

// AverageLength returns the mean document length in tokens.
func (ix *Index) AverageLength() float64 { return ix.avgLen }

// Score ranks the documents matching any query token, best first. A term
// repeated in the query weighs 1 + 0.1 per extra occurrence. At most
// MaxCandidates hits are returned.
func (ix *Index) Score(query string) []Hit {
	n := len(ix.docLen)
	if n == 0 {
		return nil
	}
	qtoks := ix.tokens(query)
	if len(qtoks) == 0 {
		return nil
	}

	qtf := make(map[string]int, len(qtoks))
	order := make([]string, 0, len(qtoks))
	for _, t := range qtoks {
		if qtf[t] == 0 {
			order = append(order, t)
		}
		qtf[t]++
	}

	k1, b := ix.opts.K1, ix.opts.B
	scores := make(map[int]float64)
	for _, term := range order {
		postings := ix.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := float64(ix.df[term])
		idf := math.Log((float64(n)-df+0.5)/(df+0.5) + 1)
		boost := 1 + repeatBoost*float64(qtf[term]-1)

		for _, p := range postings {
			tf := float64(p.TF)
			dl := float64(ix.docLen[p.Doc])
			denom := tf + k1*(1-b+b*(dl/(ix.avgLen+epsilon)))
			scores[p.Doc] += idf * (tf * (k1 + 1) / (denom + epsilon)) * boost
		}
	}

	hits := make([]Hit, 0, len(scores))
	for pos, s := range scores {
		hits = append(hits, Hit{Position: pos, Score: s})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if limit := ix.opts.MaxCandidates; limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

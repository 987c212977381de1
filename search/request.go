package search

import (
	"fmt"
	"strings"
)

// Mode selects which candidate sources a request uses.
type Mode int

const (
	ModeHybrid Mode = iota
	ModeSemantic
	ModeKeyword
)

func (m Mode) String() string {
	switch m {
	case ModeHybrid:
		return "hybrid"
	case ModeSemantic:
		return "semantic"
	case ModeKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a mode name to a Mode. The empty name is hybrid.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hybrid":
		return ModeHybrid, nil
	case "semantic":
		return ModeSemantic, nil
	case "keyword":
		return ModeKeyword, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, name)
	}
}

// Sort selects the result order.
type Sort int

const (
	SortRelevance Sort = iota
	SortNewest
)

func (s Sort) String() string {
	switch s {
	case SortRelevance:
		return "relevance"
	case SortNewest:
		return "newest"
	default:
		return fmt.Sprintf("sort(%d)", int(s))
	}
}

// ParseSort maps a sort name to a Sort. The empty name is relevance.
func ParseSort(name string) (Sort, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "relevance":
		return SortRelevance, nil
	case "newest":
		return SortNewest, nil
	default:
		return 0, fmt.Errorf("%w: unknown sort %q", ErrInvalidRequest, name)
	}
}

// Request is a search request as received from a client.
type Request struct {
	Query string `json:"query"`
	TopK  int    `json:"topk,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Sort  string `json:"sort,omitempty"`
	// Source restricts results to one source. When empty, a source named in
	// the query is used instead.
	Source string `json:"source,omitempty"`
}

// Result is one displayed article.
type Result struct {
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	Category  string  `json:"category"`
	Summary   string  `json:"summary"`
	Link      string  `json:"link"`
	Published string  `json:"published"`
	Score     float64 `json:"score"`
}

// Response is a successful search response.
type Response struct {
	Results []Result `json:"results"`
	TookMS  int64    `json:"took_ms"`
}

// ErrorResponse is the payload returned instead of Response on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	TookMS  int64  `json:"took_ms"`
}

// params is a validated Request.
type params struct {
	query  string
	topK   int
	mode   Mode
	sort   Sort
	source string
}

func (r *Ranker) parse(req Request) (params, error) {
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return params{}, err
	}
	sort, err := ParseSort(req.Sort)
	if err != nil {
		return params{}, err
	}
	topK := req.TopK
	if topK == 0 {
		topK = r.opts.DefaultTopK
	}
	if topK < 1 || topK > r.opts.MaxTopK {
		return params{}, fmt.Errorf("%w: topk %d outside 1..%d", ErrInvalidRequest, topK, r.opts.MaxTopK)
	}
	return params{
		query:  strings.TrimSpace(req.Query),
		topK:   topK,
		mode:   mode,
		sort:   sort,
		source: strings.TrimSpace(req.Source),
	}, nil
}

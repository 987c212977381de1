package merge

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/newsrank/core"
)

// DefaultSummaryGrowth is the factor by which an incoming summary must be
// longer than the stored one to replace it.
const DefaultSummaryGrowth = 1.2

// FallbackKey identifies a record that has no link.
type FallbackKey struct {
	Title     string
	Source    string
	Published string
	Category  string
}

// KeyOf returns the trimmed fallback key for a record.
func KeyOf(doc *core.DocumentRecord) FallbackKey {
	return FallbackKey{
		Title:     strings.TrimSpace(doc.Title),
		Source:    strings.TrimSpace(doc.Source),
		Published: strings.TrimSpace(doc.Published),
		Category:  strings.TrimSpace(doc.Category),
	}
}

// Result is the outcome of a merge.
type Result struct {
	// Documents is the merged collection; existing records keep their positions.
	Documents []core.DocumentRecord
	// Added counts records appended to the collection.
	Added int
	// Duplicates counts incoming records folded into a previous record.
	Duplicates int
	// AddedPositions lists the positions of appended records, ascending.
	AddedPositions []int
	// EnrichedPositions lists positions of pre-existing records touched by a merge.
	EnrichedPositions []int
}

// Engine merges document collections. The zero value is not usable; call New.
type Engine struct {
	summaryGrowth float64
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSummaryGrowth overrides DefaultSummaryGrowth.
func WithSummaryGrowth(factor float64) Option {
	return func(e *Engine) {
		if factor > 0 {
			e.summaryGrowth = factor
		}
	}
}

// WithClock sets the time source used for missing ingestion times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a merge engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		summaryGrowth: DefaultSummaryGrowth,
		now:           time.Now,
		logger:        slog.Default().With("component", "merge"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Normalize fills defaults on a raw record: empty strings stay empty, blank
// category, language and source become "Unknown", and a missing ingestion
// time becomes now.
func Normalize(doc core.DocumentRecord, now time.Time) core.DocumentRecord {
	if doc.Category == "" {
		doc.Category = core.UnknownValue
	}
	if doc.Language == "" {
		doc.Language = core.UnknownValue
	}
	if doc.Source == "" {
		doc.Source = core.UnknownValue
	}
	if doc.IngestedAt == "" {
		doc.IngestedAt = core.FormatISO(now)
	}
	return doc
}

// Normalize applies package Normalize with the engine clock.
func (e *Engine) Normalize(doc core.DocumentRecord) core.DocumentRecord {
	return Normalize(doc, e.now())
}

// Merge folds incoming into existing. Neither input is modified. Incoming
// records are matched against existing records and against records appended
// earlier in the same call.
func (e *Engine) Merge(existing, incoming []core.DocumentRecord) Result {
	merged := make([]core.DocumentRecord, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	byLink := make(map[string]int, len(merged))
	byKey := make(map[FallbackKey]int)
	maxID := core.IDUnassigned
	for i := range merged {
		doc := &merged[i]
		if doc.Link != "" {
			byLink[doc.Link] = i
		} else {
			byKey[KeyOf(doc)] = i
		}
		maxID = max(maxID, doc.ID)
	}

	var result Result
	enriched := make(map[int]bool)

	for _, raw := range incoming {
		doc := e.Normalize(raw)

		hit, found := -1, false
		if doc.Link != "" {
			hit, found = byLink[doc.Link]
		} else {
			hit, found = byKey[KeyOf(&doc)]
		}

		if found {
			merged[hit] = e.mergeRecords(merged[hit], doc)
			if link := merged[hit].Link; link != "" {
				if _, ok := byLink[link]; !ok {
					byLink[link] = hit
				}
			}
			result.Duplicates++
			if hit < len(existing) && !enriched[hit] {
				enriched[hit] = true
				result.EnrichedPositions = append(result.EnrichedPositions, hit)
			}
			continue
		}

		maxID++
		doc.ID = maxID
		merged = append(merged, doc)
		pos := len(merged) - 1
		if doc.Link != "" {
			byLink[doc.Link] = pos
		} else {
			byKey[KeyOf(&doc)] = pos
		}
		result.Added++
		result.AddedPositions = append(result.AddedPositions, pos)
	}

	result.Documents = merged
	e.logger.Debug("merged documents",
		"existing", len(existing), "incoming", len(incoming),
		"added", result.Added, "duplicates", result.Duplicates)
	return result
}

// mergeRecords enriches old with values from new. The id always comes from old.
func (e *Engine) mergeRecords(old, new core.DocumentRecord) core.DocumentRecord {
	out := old

	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" && strings.TrimSpace(src) != "" {
			*dst = src
		}
	}
	fill(&out.Title, new.Title)
	fill(&out.Summary, new.Summary)
	fill(&out.Link, new.Link)
	fill(&out.Published, new.Published)
	fill(&out.Category, new.Category)
	fill(&out.Language, new.Language)
	fill(&out.Source, new.Source)

	if float64(utf8.RuneCountInString(new.Summary)) > float64(utf8.RuneCountInString(old.Summary))*e.summaryGrowth {
		out.Summary = new.Summary
	}

	out.IngestedAt = e.newerTimestamp(old.IngestedAt, new.IngestedAt)
	return out
}

// newerTimestamp keeps the later of two ISO timestamps, falling back to
// whichever parses, then to whichever is set, then to now.
func (e *Engine) newerTimestamp(old, new string) string {
	ot, oldOK := core.ParseTimestamp(old)
	nt, newOK := core.ParseTimestamp(new)

	switch {
	case oldOK && newOK:
		if !nt.Before(ot) {
			return new
		}
		return old
	case newOK:
		return new
	case oldOK:
		return old
	case new != "":
		return new
	case old != "":
		return old
	default:
		return core.FormatISO(e.now())
	}
}

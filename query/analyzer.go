package query

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/newsrank/core"
)

// minContentLen is the shortest residual, in runes, treated as content.
const minContentLen = 3

// Kind classifies a query.
type Kind int

const (
	// KindContent is a query with no recognized source.
	KindContent Kind = iota
	// KindSource is a query naming only a source.
	KindSource
	// KindMixed is a query naming a source plus content.
	KindMixed
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindMixed:
		return "mixed"
	default:
		return "content"
	}
}

// Alias maps the spellings of a source to its canonical name.
type Alias struct {
	Canonical string
	Names     []string
}

// DefaultAliases covers the feeds the crawler knows about.
var DefaultAliases = []Alias{
	{"VnExpress", []string{"vnexpress"}},
	{"Dân Trí", []string{"dân trí", "dantri"}},
	{"Thanh Niên", []string{"thanh niên", "thanhnien"}},
	{"Tuổi Trẻ", []string{"tuổi trẻ", "tuoitre"}},
	{"Lao Động", []string{"lao động", "laodong"}},
	{"VietnamNet", []string{"vietnamnet"}},
	{"ZingNews", []string{"zingnews", "zing news"}},
	{"24h.com.vn", []string{"24h", "24h.com.vn"}},
	{"BBC", []string{"bbc"}},
	{"Reuters", []string{"reuters"}},
	{"CNN", []string{"cnn"}},
	{"The Guardian", []string{"the guardian", "guardian"}},
	{"ESPN", []string{"espn"}},
	{"Sky Sports", []string{"sky sports", "skysports"}},
	{"Goal.com", []string{"goal", "goal.com"}},
}

// DefaultPrefixes are the words that introduce a source name.
var DefaultPrefixes = []string{"báo", "trang", "nguồn", "từ", "của"}

// Analysis is the result of Analyze.
type Analysis struct {
	Kind Kind
	// Source is the canonical source name, empty for KindContent.
	Source string
	// Content is the query text without the source reference.
	Content string
}

type aliasEntry struct {
	name      string
	canonical string
}

// Analyzer detects source references. It is immutable and safe for
// concurrent use.
type Analyzer struct {
	entries  []aliasEntry
	prefixes map[string]struct{}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithAliases replaces the alias table.
func WithAliases(aliases []Alias) Option {
	return func(a *Analyzer) {
		a.entries = a.entries[:0]
		for _, al := range aliases {
			for _, n := range al.Names {
				a.entries = append(a.entries, aliasEntry{name: strings.ToLower(n), canonical: al.Canonical})
			}
		}
	}
}

// WithPrefixes replaces the prefix words.
func WithPrefixes(prefixes []string) Option {
	return func(a *Analyzer) {
		a.prefixes = make(map[string]struct{}, len(prefixes))
		for _, p := range prefixes {
			a.prefixes[strings.ToLower(p)] = struct{}{}
		}
	}
}

// NewAnalyzer builds an analyzer over DefaultAliases and DefaultPrefixes.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{}
	WithAliases(DefaultAliases)(a)
	WithPrefixes(DefaultPrefixes)(a)
	for _, opt := range opts {
		opt(a)
	}
	// Longest alias wins.
	sort.SliceStable(a.entries, func(i, j int) bool {
		return utf8.RuneCountInString(a.entries[i].name) > utf8.RuneCountInString(a.entries[j].name)
	})
	return a
}

// Sources returns the canonical names known to the analyzer, sorted.
func (a *Analyzer) Sources() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range a.entries {
		if _, ok := seen[e.canonical]; !ok {
			seen[e.canonical] = struct{}{}
			out = append(out, e.canonical)
		}
	}
	sort.Strings(out)
	return out
}

// Analyze classifies q.
func (a *Analyzer) Analyze(q string) Analysis {
	text := core.CollapseSpaces(q)
	lower := strings.ToLower(text)
	// Offsets found in lower are only valid in text when lowering kept byte lengths.
	if len(lower) != len(text) {
		text = lower
	}

	for _, e := range a.entries {
		start, end, ok := findWord(lower, e.name)
		if !ok {
			continue
		}
		before := strings.TrimRightFunc(text[:start], unicode.IsSpace)
		if p := lastWord(before); p != "" {
			if _, isPrefix := a.prefixes[strings.ToLower(p)]; isPrefix {
				before = before[:len(before)-len(p)]
			}
		}
		residual := trimPunct(core.CollapseSpaces(before + " " + text[end:]))

		kind := KindMixed
		if utf8.RuneCountInString(residual) < minContentLen {
			kind = KindSource
			residual = ""
		}
		return Analysis{Kind: kind, Source: e.canonical, Content: residual}
	}

	return Analysis{Kind: KindContent, Content: text}
}

// findWord returns the first occurrence of word in s that is not part of a
// longer word.
func findWord(s, word string) (int, int, bool) {
	from := 0
	for from <= len(s) {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return 0, 0, false
		}
		start := from + i
		end := start + len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return start, end, true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return 0, 0, false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.M, r)
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func lastWord(s string) string {
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	return s[i+1:]
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return !isWordRune(r) })
}

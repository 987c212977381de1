package search

import (
	"sort"
	"time"

	"github.com/poiesic/newsrank/core"
)

// flatRange is the score spread below which a set normalizes to zero.
const flatRange = 1e-9

// normalize min-max scales scores into [0, 1]. A set without spread maps
// every score to 0.
func normalize(scores map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := 0.0, 0.0
	first := true
	for _, v := range scores {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	spread := hi - lo
	for pos, v := range scores {
		if spread < flatRange {
			out[pos] = 0
			continue
		}
		out[pos] = (v - lo) / spread
	}
	return out
}

// fuse combines two normalized score sets over the union of their
// positions. A side without a score contributes 0.
func fuse(semantic, lexical map[int]float64, wSemantic, wKeyword float64) map[int]float64 {
	out := make(map[int]float64, len(semantic)+len(lexical))
	for pos, v := range semantic {
		out[pos] = wSemantic * v
	}
	for pos, v := range lexical {
		out[pos] += wKeyword * v
	}
	return out
}

// threshold keeps the scores at or above floor.
func threshold(scores map[int]float64, floor float64) map[int]float64 {
	out := make(map[int]float64, len(scores))
	for pos, v := range scores {
		if v >= floor {
			out[pos] = v
		}
	}
	return out
}

type item struct {
	pos       int
	score     float64
	doc       *core.DocumentRecord
	published time.Time
	dated     bool
}

func newItem(pos int, score float64, doc *core.DocumentRecord) item {
	t, ok := core.ParseTimestamp(doc.Published)
	return item{pos: pos, score: score, doc: doc, published: t, dated: ok}
}

// sortItems orders by score, or by publish date with undated items last and
// score breaking ties. Remaining ties keep position order.
func sortItems(items []item, order Sort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		if order == SortNewest {
			if a.dated != b.dated {
				return a.dated
			}
			if !a.published.Equal(b.published) {
				return a.published.After(b.published)
			}
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.pos < b.pos
	})
}

package search

import (
	"math"

	"github.com/poiesic/newsrank/core"
)

// project turns the first topK items into display records.
func (r *Ranker) project(items []item, topK int) []Result {
	if len(items) > topK {
		items = items[:topK]
	}
	out := make([]Result, len(items))
	for i, it := range items {
		doc := it.doc
		var published string
		if it.dated {
			published = core.FormatDisplayDate(it.published)
		}
		out[i] = Result{
			Title:     core.StripHTML(doc.Title),
			Source:    core.StripHTML(doc.Source),
			Category:  core.StripHTML(doc.Category),
			Summary:   core.Truncate(core.StripHTML(doc.Summary), r.opts.SummaryMaxLen),
			Link:      core.SafeLink(doc.Link),
			Published: published,
			Score:     roundScore(it.score),
		}
	}
	return out
}

func roundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

package ingestion

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/poiesic/newsrank/core"
)

// Accepted field names, in order of preference.
var (
	summaryKeys   = []string{"summary", "description"}
	linkKeys      = []string{"link", "url"}
	publishedKeys = []string{"published", "pubDate", "date", "datetime", "time", "timestamp",
		"created_at", "updated_at", "createdAt", "updatedAt"}
	ingestedKeys = []string{"ingested_at", "crawled_time", "crawled_at"}
)

// rawArticle is an article object as found in crawler output.
type rawArticle map[string]any

func (a rawArticle) field(keys ...string) string {
	for _, k := range keys {
		v, ok := a[k]
		if !ok || v == nil {
			continue
		}
		if s := stringify(v); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// record maps a raw article onto a DocumentRecord. The id is left
// unassigned; ids are given by the index.
func (a rawArticle) record() core.DocumentRecord {
	return core.DocumentRecord{
		ID:         core.IDUnassigned,
		Title:      a.field("title"),
		Summary:    a.field(summaryKeys...),
		Link:       strings.TrimSpace(a.field(linkKeys...)),
		Published:  a.field(publishedKeys...),
		Category:   a.field("category"),
		Language:   a.field("language"),
		Source:     a.field("source"),
		IngestedAt: a.field(ingestedKeys...),
	}
}

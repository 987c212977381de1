package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newsrank/core"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.Local)

func newTestEngine() *Engine {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestMerge_EmptyExisting(t *testing.T) {
	e := newTestEngine()
	res := e.Merge(nil, []core.DocumentRecord{{Title: "A", Link: "http://a"}})

	require.Len(t, res.Documents, 1)
	assert.Equal(t, int64(0), res.Documents[0].ID)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 0, res.Duplicates)
	assert.Equal(t, []int{0}, res.AddedPositions)
	assert.Equal(t, core.UnknownValue, res.Documents[0].Source)
	assert.Equal(t, core.UnknownValue, res.Documents[0].Category)
	assert.Equal(t, core.UnknownValue, res.Documents[0].Language)
	assert.Equal(t, core.FormatISO(fixedNow), res.Documents[0].IngestedAt)
}

func TestMerge_SameLinkLongerSummary(t *testing.T) {
	e := newTestEngine()
	existing := []core.DocumentRecord{{ID: 7, Title: "A", Link: "http://a", Summary: "short"}}
	incoming := []core.DocumentRecord{{Title: "A2", Link: "http://a", Summary: "a much longer summary"}}

	res := e.Merge(existing, incoming)

	require.Len(t, res.Documents, 1)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, int64(7), res.Documents[0].ID)
	assert.Equal(t, "A", res.Documents[0].Title, "non-empty title is kept")
	assert.Equal(t, "a much longer summary", res.Documents[0].Summary)
	assert.Equal(t, []int{0}, res.EnrichedPositions)
	assert.Equal(t, "short", existing[0].Summary, "input must not be modified")
}

func TestMerge_SummaryGrowthThreshold(t *testing.T) {
	e := newTestEngine()
	existing := []core.DocumentRecord{{Link: "l", Title: "t", Summary: "0123456789"}}

	res := e.Merge(existing, []core.DocumentRecord{{Link: "l", Summary: "012345678901"}})
	assert.Equal(t, "0123456789", res.Documents[0].Summary, "12 is not more than 12")

	res = e.Merge(existing, []core.DocumentRecord{{Link: "l", Summary: "0123456789012"}})
	assert.Equal(t, "0123456789012", res.Documents[0].Summary)
}

func TestMerge_FallbackKey(t *testing.T) {
	e := newTestEngine()
	existing := []core.DocumentRecord{{ID: 0, Title: "Storm", Source: "bbc", Published: "2025-01-01", Category: "world"}}
	incoming := []core.DocumentRecord{{Title: " Storm ", Source: "bbc", Published: "2025-01-01 ", Category: "world", Summary: "details"}}

	res := e.Merge(existing, incoming)

	require.Len(t, res.Documents, 1)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, "details", res.Documents[0].Summary)
}

func TestMerge_WithinBatchDuplicates(t *testing.T) {
	e := newTestEngine()
	incoming := []core.DocumentRecord{
		{Title: "one", Link: "http://x"},
		{Title: "two", Link: "http://y"},
		{Summary: "filled later", Link: "http://x"},
	}
	res := e.Merge([]core.DocumentRecord{{ID: 4, Title: "old", Link: "http://old"}}, incoming)

	require.Len(t, res.Documents, 3)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, []int{1, 2}, res.AddedPositions)
	assert.Empty(t, res.EnrichedPositions)
	assert.Equal(t, int64(5), res.Documents[1].ID)
	assert.Equal(t, int64(6), res.Documents[2].ID)
	assert.Equal(t, "filled later", res.Documents[1].Summary)
}

func TestMerge_FillIfEmpty(t *testing.T) {
	e := newTestEngine()
	existing := []core.DocumentRecord{{Link: "l", Title: "   ", Category: "news"}}
	incoming := []core.DocumentRecord{{Link: "l", Title: "Real title", Category: "sport", Published: "  "}}

	res := e.Merge(existing, incoming)
	doc := res.Documents[0]
	assert.Equal(t, "Real title", doc.Title)
	assert.Equal(t, "news", doc.Category)
	assert.Equal(t, "", doc.Published, "blank incoming value does not fill")
}

func TestNewerTimestamp(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		name     string
		old, new string
		want     string
	}{
		{"new is later", "2025-01-01T10:00:00", "2025-01-02T10:00:00", "2025-01-02T10:00:00"},
		{"old is later", "2025-01-03T10:00:00", "2025-01-02T10:00:00", "2025-01-03T10:00:00"},
		{"equal prefers new", "2025-01-01 10:00:00", "2025-01-01T10:00:00", "2025-01-01T10:00:00"},
		{"only new parses", "garbage", "2025-01-02T10:00:00", "2025-01-02T10:00:00"},
		{"only old parses", "2025-01-02T10:00:00", "garbage", "2025-01-02T10:00:00"},
		{"neither parses", "old-garbage", "new-garbage", "new-garbage"},
		{"only old set", "old-garbage", "", "old-garbage"},
		{"nothing set", "", "", core.FormatISO(fixedNow)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.newerTimestamp(tt.old, tt.new))
		})
	}
}

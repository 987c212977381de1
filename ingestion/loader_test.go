package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/newsrank/core"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader(WithClock(func() time.Time { return fixedNow }), WithPoolSize(2))
	require.NoError(t, err)
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"list", `[{"title":"A","link":"a"},{"title":"B","link":"b"}]`, 2},
		{"wrapped", `{"articles":[{"title":"A"},{"title":"B"},{"title":"C"}]}`, 3},
		{"single object", `{"title":"A","link":"a"}`, 1},
		{"jsonl", "{\"title\":\"A\"}\n\n{\"title\":\"B\"}\n", 2},
		{"empty", "   ", 0},
		{"null entries", `[null, {"title":"A"}]`, 1},
	}
	l := newTestLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := l.Decode(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	l := newTestLoader(t)
	for _, input := range []string{
		`"just a string"`,
		`[{"title":"A"}`,
		`{"articles": 3}`,
		`{"articles": [1, 2]}`,
		"{\"title\":\"A\"}\n{broken\n",
	} {
		_, err := l.Decode(strings.NewReader(input))
		assert.True(t, errors.Is(err, ErrMalformedInput), "input %q: %v", input, err)
	}
}

func TestDecode_FieldMapping(t *testing.T) {
	l := newTestLoader(t)
	input := `[{
		"title": "Giá vàng tăng",
		"description": "Tóm tắt",
		"url": "  https://vnexpress.net/a  ",
		"pubDate": 1717200000,
		"category": "Kinh doanh",
		"language": "vi",
		"source": "VnExpress",
		"crawled_time": "2024-06-01T10:00:00"
	}, {
		"title": "Không có nguồn",
		"published": "",
		"date": "2024-05-30"
	}]`

	docs, err := l.Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Equal(t, core.IDUnassigned, first.ID)
	assert.Equal(t, "Giá vàng tăng", first.Title)
	assert.Equal(t, "Tóm tắt", first.Summary)
	assert.Equal(t, "https://vnexpress.net/a", first.Link)
	assert.Equal(t, "1717200000", first.Published)
	assert.Equal(t, "Kinh doanh", first.Category)
	assert.Equal(t, "vi", first.Language)
	assert.Equal(t, "VnExpress", first.Source)
	assert.Equal(t, "2024-06-01T10:00:00", first.IngestedAt)

	second := docs[1]
	assert.Equal(t, "2024-05-30", second.Published, "blank values fall through to the next name")
	assert.Equal(t, core.UnknownValue, second.Category)
	assert.Equal(t, core.UnknownValue, second.Language)
	assert.Equal(t, core.UnknownValue, second.Source)
	assert.Equal(t, core.FormatISO(fixedNow), second.IngestedAt)
	assert.Empty(t, second.Link)
}

func TestLoadFiles_Order(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[{"title":"A1"},{"title":"A2"}]`)
	b := writeFile(t, dir, "b.jsonl", "{\"title\":\"B1\"}\n")
	c := writeFile(t, dir, "c.json", `{"articles":[{"title":"C1"}]}`)

	docs, err := newTestLoader(t).LoadFiles(context.Background(), a, b, c)
	require.NoError(t, err)
	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
	}
	assert.Equal(t, []string{"A1", "A2", "B1", "C1"}, titles)
}

func TestLoadFiles_Errors(t *testing.T) {
	l := newTestLoader(t)

	_, err := l.LoadFiles(context.Background())
	assert.Equal(t, ErrNoInput, err)

	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `[{"title":"A"}]`)
	bad := writeFile(t, dir, "bad.json", `[{"title":`)
	_, err = l.LoadFiles(context.Background(), good, bad)
	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.Contains(t, err.Error(), "bad.json")

	_, err = l.LoadFiles(context.Background(), filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.LoadFiles(ctx, good)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadFile_Default(t *testing.T) {
	path := writeFile(t, t.TempDir(), "one.json", `[{"title":"A","source":"BBC"}]`)
	docs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "BBC", docs[0].Source)
}

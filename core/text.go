package core

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Limits applied when turning a record into embedding input.
const (
	MaxEmbeddingTextLen = 2000
	MinEmbeddingTextLen = 10
)

var (
	urlPattern        = regexp.MustCompile(`http\S+`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s_,.!?;:()\-]`)
)

// CollapseSpaces trims s and replaces every whitespace run with one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripHTML removes markup from feed text. Entities are decoded, each tag
// boundary becomes a space and whitespace is collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return CollapseSpaces(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CollapseSpaces(html.UnescapeString(s))
	}

	var parts []string
	for _, n := range doc.Selection.Nodes {
		collectText(n, &parts)
	}
	return CollapseSpaces(strings.Join(parts, " "))
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		*parts = append(*parts, n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// SafeLink returns the trimmed link when it uses http or https, else "".
func SafeLink(link string) string {
	l := strings.TrimSpace(link)
	lower := strings.ToLower(l)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return l
	}
	return ""
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// PreprocessText prepares free text for the embedding model: markup and URLs
// are removed, only letters, digits and basic punctuation are kept.
func PreprocessText(s string) string {
	s = StripHTML(s)
	s = urlPattern.ReplaceAllString(s, "")
	s = disallowedPattern.ReplaceAllString(s, " ")
	return CollapseSpaces(s)
}

// EmbeddingText builds the text embedded for a record: "title. summary", or
// whichever of the two exists, capped at MaxEmbeddingTextLen runes.
func EmbeddingText(doc *DocumentRecord) string {
	title := PreprocessText(doc.Title)
	summary := PreprocessText(doc.Summary)

	var text string
	switch {
	case title != "" && summary != "":
		text = title + ". " + summary
	case title != "":
		text = title
	case summary != "":
		text = summary
	default:
		return ""
	}
	return Truncate(text, MaxEmbeddingTextLen)
}

// HasUsableText reports whether the record produces embedding input long
// enough to carry meaning.
func HasUsableText(doc *DocumentRecord) bool {
	return utf8.RuneCountInString(EmbeddingText(doc)) > MinEmbeddingTextLen
}

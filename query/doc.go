// Package query finds source-filter intent in free-text search queries.
//
// A query such as "báo VnExpress" names only a source, "bóng đá từ BBC"
// names a source and content, and anything else is plain content. Sources
// are recognized through an alias table; an optional prefix word ("báo",
// "trang", "nguồn", "từ", "của") directly before the alias is consumed with
// it.
package query

// Package ingestion loads crawled articles from disk.
//
// A file holds either a JSON list of articles, an object with an "articles"
// list, a single article object, or one article object per line (JSONL).
// Field names follow the crawler output; several alternative names are
// accepted for the publish and crawl times. Every loaded record is normalized:
// blank category, language and source become "Unknown" and a missing crawl
// time becomes the load time.
//
// Loader decodes several files concurrently on a worker pool and returns the
// records in argument order.
package ingestion

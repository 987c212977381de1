package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Default values for DocumentRecord fields that arrive blank.
const (
	UnknownValue = "Unknown"
)

// IDUnassigned marks a record that has not been given an id by the merge engine.
const IDUnassigned int64 = -1

// LinkKey is a fixed-size digest of a document link used for index lookups.
type LinkKey uint64

// LinkKeyFromLink hashes a link with BLAKE2b so that arbitrary-length URLs map
// to fixed-size keys. Identical links produce identical keys.
func LinkKeyFromLink(link string) LinkKey {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(link))
	sum := h.Sum(nil)
	return LinkKey(binary.LittleEndian.Uint64(sum))
}

// DocumentRecord is a single news article. Records are created by ingestion,
// enriched by merge and never removed; the position of a record in the corpus
// is its vector label.
type DocumentRecord struct {
	ID         int64
	Title      string
	Summary    string
	Link       string // Primary natural key; may be empty
	Published  string // Free-form publish timestamp as delivered by the feed
	Category   string
	Language   string
	Source     string
	IngestedAt string // ISO-8601 time the record was crawled
}

// HasLink reports whether the record carries a non-blank link.
func (d *DocumentRecord) HasLink() bool {
	return strings.TrimSpace(d.Link) != ""
}

// Metric identifies the distance function used by vector search.
type Metric int

const (
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = iota + 1
	// MetricEuclidean is the L2 distance.
	MetricEuclidean
)

// String returns the canonical metric name.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric maps a metric name to a Metric.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cosine", "":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMetric, name)
	}
}

// ValidateMetric rejects values outside the closed Metric set.
func ValidateMetric(m Metric) error {
	switch m {
	case MetricCosine, MetricEuclidean:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMetric, m)
	}
}

// IndexMetadata describes a persisted index. DocumentCount must match the
// vector matrix rows and the approximate index size.
type IndexMetadata struct {
	Dimension      int
	DocumentCount  int
	Capacity       int
	Metric         Metric
	BuildTimestamp time.Time
}

// SearchHit is one vector-search result: a label (document position) and its distance.
type SearchHit struct {
	Label    int
	Distance float32
}

package indexstore

import (
	"time"

	"github.com/poiesic/newsrank/core"
)

// Info summarizes the loaded index.
type Info struct {
	Dir            string         `json:"dir"`
	Dimension      int            `json:"dimension"`
	Documents      int            `json:"documents"`
	Vectors        int            `json:"vectors"`
	Indexed        int            `json:"indexed"`
	Capacity       int            `json:"capacity"`
	Metric         string         `json:"metric"`
	BuildTimestamp time.Time      `json:"build_timestamp"`
	Sources        map[string]int `json:"sources"`
}

// Info describes the current snapshot.
func (s *Store) Info() (*Info, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.info(s.dir), nil
}

func (snap *Snapshot) info(dir string) *Info {
	return &Info{
		Dir:            dir,
		Dimension:      snap.meta.Dimension,
		Documents:      len(snap.docs),
		Vectors:        len(snap.vectors),
		Indexed:        snap.index.Len(),
		Capacity:       snap.index.Capacity(),
		Metric:         snap.meta.Metric.String(),
		BuildTimestamp: snap.meta.BuildTimestamp,
		Sources:        snap.SourceCounts(),
	}
}

// Sources returns the distinct sources of the loaded documents, sorted.
func (s *Store) Sources() ([]string, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Sources(), nil
}

// Metadata returns the metadata of the current snapshot.
func (s *Store) Metadata() (core.IndexMetadata, error) {
	snap, err := s.snapshot()
	if err != nil {
		return core.IndexMetadata{}, err
	}
	return snap.meta, nil
}

package keyword

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/poiesic/newsrank/core"
)

const snapshotVersion = 1

type snapshot struct {
	Version  int                  `msgpack:"version"`
	Options  Options              `msgpack:"options"`
	Postings map[string][]Posting `msgpack:"postings"`
	DF       map[string]int       `msgpack:"df"`
	DocLen   []int                `msgpack:"doc_len"`
	AvgLen   float64              `msgpack:"avg_len"`
}

// Save writes the index to path as msgpack through a temporary file.
func (ix *Index) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	snap := snapshot{
		Version:  snapshotVersion,
		Options:  ix.opts,
		Postings: ix.postings,
		DF:       ix.df,
		DocLen:   ix.docLen,
		AvgLen:   ix.avgLen,
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode keyword snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Load reads an index written by Save.
func Load(path string, logger *slog.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingArtifact, path)
		}
		return nil, err
	}
	defer f.Close()

	var snap snapshot
	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode keyword snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Version)
	}

	ix := New(WithOptions(snap.Options), WithLogger(logger))
	if snap.Postings != nil {
		ix.postings = snap.Postings
	}
	if snap.DF != nil {
		ix.df = snap.DF
	}
	ix.docLen = snap.DocLen
	ix.avgLen = snap.AvgLen
	return ix, nil
}

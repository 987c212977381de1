// Package vecfile reads and writes the dense vector matrix persisted next to
// the approximate index.
//
// The layout is a little-endian header of two uint32 values, rows and
// dimension, followed by rows*dimension float32 values in row-major order.
// Row i is the vector of the document at position i.
package vecfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/storage"
)

const headerSize = 8

// Write stores rows at path through a temporary file and rename. Every row
// must have dim values.
func Write(path string, rows [][]float32, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", core.ErrDimensionMismatch, dim)
	}
	for i, row := range rows {
		if len(row) != dim {
			return fmt.Errorf("%w: row %d has %d values, expected %d", core.ErrDimensionMismatch, i, len(row), dim)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:], uint32(len(rows)))
	binary.LittleEndian.PutUint32(header[4:], uint32(dim))
	if _, err := w.Write(header[:]); err != nil {
		tmp.Close()
		return err
	}

	buf := make([]byte, 4*dim)
	for _, row := range rows {
		for j, v := range row {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Read loads the matrix at path. A missing file is core.ErrMissingArtifact;
// a short file is storage.ErrTruncatedData.
func Read(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", core.ErrMissingArtifact, path)
		}
		return nil, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, 0, truncated(path, err)
	}
	n := int(binary.LittleEndian.Uint32(header[0:]))
	dim := int(binary.LittleEndian.Uint32(header[4:]))
	if dim == 0 && n > 0 {
		return nil, 0, fmt.Errorf("%w: %s has zero dimension", core.ErrInconsistentIndex, path)
	}

	if info, err := f.Stat(); err == nil {
		if want := int64(headerSize) + int64(n)*int64(dim)*4; info.Size() < want {
			return nil, 0, fmt.Errorf("%w: %s is %d bytes, expected %d", storage.ErrTruncatedData, path, info.Size(), want)
		}
	}

	rows := make([][]float32, n)
	flat := make([]float32, n*dim)
	buf := make([]byte, 4*dim)
	for i := range rows {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, truncated(path, err)
		}
		row := flat[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		rows[i] = row
	}
	return rows, dim, nil
}

func truncated(path string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", storage.ErrTruncatedData, path)
	}
	return err
}

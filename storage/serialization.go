package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/newsrank/core"
)

func MarshalPosition(pos int) []byte {
	buf := make([]byte, varint.Int.Size(pos))
	varint.Int.Marshal(pos, buf)
	return buf
}

func UnmarshalPosition(data []byte) (int, error) {
	pos, _, err := varint.Int.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: position: %w", ErrSerializationFailed, err)
	}
	return pos, nil
}

func MarshalDocumentRecord(record *core.DocumentRecord) []byte {
	buf := make([]byte, core.DocumentRecordMUS.Size(*record))
	core.DocumentRecordMUS.Marshal(*record, buf)
	return buf
}

func UnmarshalDocumentRecord(data []byte) (*core.DocumentRecord, error) {
	record, _, err := core.DocumentRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: document record: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

func MarshalIndexMetadata(meta *core.IndexMetadata) []byte {
	buf := make([]byte, core.IndexMetadataMUS.Size(*meta))
	core.IndexMetadataMUS.Marshal(*meta, buf)
	return buf
}

func UnmarshalIndexMetadata(data []byte) (*core.IndexMetadata, error) {
	meta, _, err := core.IndexMetadataMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: index metadata: %w", ErrSerializationFailed, err)
	}
	return &meta, nil
}

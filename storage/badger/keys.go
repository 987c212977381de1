package badger

import (
	"encoding/binary"

	"github.com/poiesic/newsrank/core"
)

const (
	documentPrefix = "docrec:"
	linkPrefix     = "doclnk:"
	metadataKey    = "idxmeta"
)

func makeDocumentKey(pos int) []byte {
	buf := make([]byte, len(documentPrefix)+8)
	offset := copy(buf, documentPrefix)
	// BigEndian keeps iteration in position order
	binary.BigEndian.PutUint64(buf[offset:], uint64(pos))
	return buf
}

func positionFromDocumentKey(key []byte) int {
	return int(binary.BigEndian.Uint64(key[len(documentPrefix):]))
}

func makeLinkKey(link string) []byte {
	buf := make([]byte, len(linkPrefix)+8)
	offset := copy(buf, linkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.LinkKeyFromLink(link)))
	return buf
}

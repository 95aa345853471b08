package page

import (
	"hash/crc32"

	"hareql.dev/hareerr"
)

// FileType discriminates the kind of page file a header page belongs
// to, stored as the discriminant at header bytes 8..11.
type FileType int32

const (
	FileTypeColumnFixed    FileType = 1
	FileTypeColumnVariable FileType = 2
	FileTypeCatalogue      FileType = 3
)

// Consistency is the header page's one-byte clean-close flag.
type Consistency byte

const (
	ConsistencyOK    Consistency = 0x00
	ConsistencyCheck Consistency = 0xFF
)

const (
	identifier = "HARE"

	offIdentifier   = 0  // 8 bytes: four 16-bit chars
	offFileType     = 8  // 4 bytes
	offVersion      = 12 // 1 byte
	offConsistency  = 13 // 1 byte
	offPageCount    = 14 // 8 bytes
	offFreedCount   = 22 // 4 bytes
	offChecksum     = 26 // 8 bytes
	offFreelistHead = 34 // 8 bytes: head of the freed-page list

	// CurrentVersion is written into every new header page.
	CurrentVersion byte = 1
)

// castagnoli is the CRC32C polynomial table used for header checksums.
// hash/crc32's Castagnoli implementation is the canonical one; no
// third-party package in the pack improves on it for this.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Header is the in-memory view of a page file's header page (page 1).
type Header struct {
	FileType    FileType
	Version     byte
	Consistency Consistency
	PageCount   int64
	FreedCount  int32
	Checksum    int64
	FreelistHead Id
}

// NewHeader returns a freshly initialized header for a new file of the
// given type. PageCount starts at 1 (the header page itself).
func NewHeader(ft FileType) *Header {
	return &Header{
		FileType:     ft,
		Version:      CurrentVersion,
		Consistency:  ConsistencyOK,
		PageCount:    1,
		FreedCount:   0,
		FreelistHead: NoPage,
	}
}

// writeFields writes every header field except the checksum into p.
func (h *Header) writeFields(p *Page) {
	p.Reset()
	// Identifier is stored as four 16-bit characters, little-endian.
	for i := 0; i < 4; i++ {
		lo := byte(identifier[i])
		p.PutByte(offIdentifier+i*2, lo)
		p.PutByte(offIdentifier+i*2+1, 0)
	}
	p.PutInt(offFileType, int32(h.FileType))
	p.PutByte(offVersion, h.Version)
	p.PutByte(offConsistency, byte(h.Consistency))
	p.PutLong(offPageCount, h.PageCount)
	p.PutInt(offFreedCount, h.FreedCount)
	p.PutLong(offFreelistHead, int64(h.FreelistHead))
}

// ComputeChecksum returns the CRC32C that would cover h's current
// fields, without mutating h.Checksum. Used by DiskManager.Validate /
// CalculateChecksum to compare against the last-persisted checksum.
func (h *Header) ComputeChecksum() int64 {
	var scratch Page
	h.writeFields(&scratch)
	return checksumOf(&scratch)
}

// Encode writes h into p, computing and storing the checksum over the
// rest of the written fields.
func (h *Header) Encode(p *Page) {
	h.writeFields(p)
	h.Checksum = checksumOf(p)
	p.PutLong(offChecksum, h.Checksum)
}

// Decode reads a header out of p, validating the identifier and
// version but not the checksum (callers call Validate separately so
// they can treat a CHECK-flagged file as recoverable).
func Decode(p *Page) (*Header, error) {
	for i := 0; i < 4; i++ {
		if p.GetByte(offIdentifier+i*2) != identifier[i] {
			return nil, hareerr.Newf(hareerr.KindDataCorruption, "", "header identifier mismatch at page file open")
		}
	}
	h := &Header{
		FileType:     FileType(p.GetInt(offFileType)),
		Version:      p.GetByte(offVersion),
		Consistency:  Consistency(p.GetByte(offConsistency)),
		PageCount:    p.GetLong(offPageCount),
		FreedCount:   p.GetInt(offFreedCount),
		Checksum:     p.GetLong(offChecksum),
		FreelistHead: Id(p.GetLong(offFreelistHead)),
	}
	return h, nil
}

// Validate reports whether the header's stored checksum matches the
// checksum recomputed from the page's current bytes.
func Validate(p *Page, h *Header) bool {
	return h.Checksum == checksumOf(p)
}

// checksumOf computes the CRC32C over the header page excluding the
// checksum field itself (so it is stable across Encode/Decode round
// trips).
func checksumOf(p *Page) int64 {
	buf := p.Bytes()
	crc := crc32.New(castagnoli)
	_, _ = crc.Write(buf[:offChecksum])
	_, _ = crc.Write(buf[offChecksum+8:])
	return int64(crc.Sum32())
}

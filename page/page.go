// Package page implements the fixed-size page file that every other
// storage layer in the engine is built on: raw pages, the file header
// page, and the two interchangeable DiskManager implementations
// (direct and write-ahead-logged).
package page

import "encoding/binary"

// Size is the fixed page size in bytes. 4096 matches the recommended
// size in the format description and the common native page size.
const Size = 4096

// Id is a 1-based page identifier. 0 is reserved and never addresses a
// real page; 1 is always the header page of a file.
type Id int64

// NoPage is the sentinel used by chained structures (directory
// previous/next pointers, freelist links) to mean "no page".
const NoPage Id = 0

// Page is a fixed-size block of raw bytes with primitive accessors.
// Pages are the unit of I/O; they carry no identity of their own (the
// BufferPool's PageRef binds a Page's bytes to a PageId).
type Page struct {
	buf [Size]byte
}

// Bytes returns the page's backing array as a slice, for I/O.
func (p *Page) Bytes() []byte { return p.buf[:] }

// Reset zeroes the page in place.
func (p *Page) Reset() { p.buf = [Size]byte{} }

func (p *Page) GetByte(off int) byte { return p.buf[off] }

func (p *Page) PutByte(off int, v byte) { p.buf[off] = v }

func (p *Page) GetInt(off int) int32 {
	return int32(binary.LittleEndian.Uint32(p.buf[off : off+4]))
}

func (p *Page) PutInt(off int, v int32) {
	binary.LittleEndian.PutUint32(p.buf[off:off+4], uint32(v))
}

func (p *Page) GetLong(off int) int64 {
	return int64(binary.LittleEndian.Uint64(p.buf[off : off+8]))
}

func (p *Page) PutLong(off int, v int64) {
	binary.LittleEndian.PutUint64(p.buf[off:off+8], uint64(v))
}

func (p *Page) GetFloat(off int) float32 {
	return float32FromBits(binary.LittleEndian.Uint32(p.buf[off : off+4]))
}

func (p *Page) PutFloat(off int, v float32) {
	binary.LittleEndian.PutUint32(p.buf[off:off+4], float32Bits(v))
}

func (p *Page) GetDouble(off int) float64 {
	return float64FromBits(binary.LittleEndian.Uint64(p.buf[off : off+8]))
}

func (p *Page) PutDouble(off int, v float64) {
	binary.LittleEndian.PutUint64(p.buf[off:off+8], float64Bits(v))
}

// GetBytes returns a copy of n bytes at off.
func (p *Page) GetBytes(off, n int) []byte {
	out := make([]byte, n)
	copy(out, p.buf[off:off+n])
	return out
}

// PutBytes copies b into the page starting at off.
func (p *Page) PutBytes(off int, b []byte) {
	copy(p.buf[off:off+len(b)], b)
}

func (p *Page) Clone() *Page {
	out := &Page{}
	out.buf = p.buf
	return out
}

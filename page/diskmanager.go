package page

import (
	"time"

	"hareql.dev/hareerr"
)

// log2PageSize is used by pageIdToPosition; Size must stay a power of
// two for the shift to be valid (enforced by the const check below).
var _ = func() bool {
	if Size&(Size-1) != 0 {
		panic("page.Size must be a power of two")
	}
	return true
}()

var log2PageSize = bitLen(Size) - 1

func bitLen(n int) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l + 1
}

// DiskManager is the interface both the direct and write-ahead-logged
// page file implementations satisfy. read and update bypass any
// buffer pool cache and synchronize directly with the backing file.
type DiskManager interface {
	Read(id Id, p *Page) error
	Update(id Id, p *Page) error
	Allocate(initial *Page) (Id, error)
	Free(id Id) error
	Commit() error
	Rollback() error
	CalculateChecksum() int64
	Validate() error
	Close() error
	Delete() error
	PageCount() int64
	Path() string
}

// Options configures how a page file is opened.
type Options struct {
	LockTimeout time.Duration
	FileType    FileType
}

func DefaultOptions(ft FileType) Options {
	return Options{LockTimeout: 5 * time.Second, FileType: ft}
}

// pageIdToPosition converts a 1-based PageId to a byte offset in the
// file, validating it against the header's current page count.
func pageIdToPosition(id Id, pageCount int64) (int64, error) {
	if id < 1 || int64(id) > pageCount {
		return 0, hareerr.Newf(hareerr.KindDataCorruption, "", "page id %d out of bounds [1,%d]", id, pageCount)
	}
	return int64(id) << uint(log2PageSize), nil
}

package column

import "hareql.dev/page"

// Directory pages chain together to map a contiguous TupleId range to
// (address, flags) entries for the variable column layout. Each page
// holds as many entries as fit after its fixed header; a tuple's
// position within its directory page is always tid-first, so pages
// never need an explicit slot count field.
const (
	dirOffPrev  = 4
	dirOffNext  = 12
	dirOffFirst = 20
	dirOffLast  = 28
	dirHeaderSize = 36
	dirEntrySize  = 12

	dirFlagDeleted int32 = 1 << 0
	dirFlagNull    int32 = 1 << 1
)

var entriesPerDirPage = (page.Size - dirHeaderSize) / dirEntrySize

func initDirectoryPage(p *page.Page, prev, next page.Id) {
	p.PutInt(0, pageTypeDirectory)
	p.PutLong(dirOffPrev, int64(prev))
	p.PutLong(dirOffNext, int64(next))
	p.PutLong(dirOffFirst, 0)
	p.PutLong(dirOffLast, -1)
}

func dirPrev(p *page.Page) page.Id { return page.Id(p.GetLong(dirOffPrev)) }
func dirNext(p *page.Page) page.Id { return page.Id(p.GetLong(dirOffNext)) }
func dirSetNext(p *page.Page, next page.Id) { p.PutLong(dirOffNext, int64(next)) }
func dirFirst(p *page.Page) int64 { return p.GetLong(dirOffFirst) }
func dirLast(p *page.Page) int64  { return p.GetLong(dirOffLast) }

func dirEntryOffset(position int) int { return dirHeaderSize + position*dirEntrySize }

// dirPut writes the (flags, addr) entry for tid into p, which must
// already be the directory page owning tid (or be empty, becoming its
// owner). ok is false if p is full and tid would start a new position
// beyond its capacity.
func dirPut(p *page.Page, tid int64, flags int32, addr address) bool {
	last := dirLast(p)
	var position int
	if last == -1 {
		p.PutLong(dirOffFirst, tid)
		position = 0
	} else {
		position = int(tid - dirFirst(p))
		if position < 0 || position >= entriesPerDirPage {
			return false
		}
	}
	off := dirEntryOffset(position)
	p.PutInt(off, flags)
	p.PutLong(off+4, int64(addr))
	if tid > last {
		p.PutLong(dirOffLast, tid)
	}
	return true
}

// dirGet reads the entry for tid, which must lie within [first, last]
// of p.
func dirGet(p *page.Page, tid int64) (flags int32, addr address) {
	position := int(tid - dirFirst(p))
	off := dirEntryOffset(position)
	return p.GetInt(off), address(p.GetLong(off + 4))
}

func dirSetFlags(p *page.Page, tid int64, flags int32) {
	position := int(tid - dirFirst(p))
	p.PutInt(dirEntryOffset(position), flags)
}

func dirSetAddr(p *page.Page, tid int64, addr address) {
	position := int(tid - dirFirst(p))
	p.PutLong(dirEntryOffset(position)+4, int64(addr))
}

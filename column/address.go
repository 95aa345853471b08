package column

import "hareql.dev/page"

// address packs a (pageId, slotId) pair into a single int64 for
// storage in a directory entry. NoAddress marks an empty slot.
type address int64

const noAddress address = -1

func packAddress(pageID page.Id, slotID int32) address {
	return address((int64(pageID) << 32) | int64(uint32(slotID)))
}

func (a address) pageID() page.Id { return page.Id(int64(a) >> 32) }
func (a address) slotID() int32   { return int32(uint32(int64(a))) }

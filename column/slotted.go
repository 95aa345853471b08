package column

import "hareql.dev/page"

// Slotted data pages hold variable-length payloads for the variable
// column layout. The slot directory grows backward from the end of the
// page; payloads grow forward from slottedHeaderSize. Deleting a slot
// only flips its length negative (a tombstone) so that the (pageId,
// slotId) addresses directory pages hold remain valid; reclaiming the
// hole is deferred to compact, which repacks payloads without ever
// renumbering slots.
const (
	slottedHeaderSize = 12
	slotEntrySize     = 8
)

func initSlottedPage(p *page.Page) {
	p.PutInt(0, pageTypeSlottedData)
	p.PutInt(4, 0)
	p.PutInt(8, int32(slottedHeaderSize))
}

func slottedSlotCount(p *page.Page) int32  { return p.GetInt(4) }
func slottedPayloadEnd(p *page.Page) int32 { return p.GetInt(8) }

func slotDirOffset(slotID int32) int {
	return page.Size - (int(slotID)+1)*slotEntrySize
}

func slottedFreeSpace(p *page.Page) int {
	dirStart := slotDirOffset(slottedSlotCount(p) - 1)
	if slottedSlotCount(p) == 0 {
		dirStart = page.Size
	}
	return dirStart - int(slottedPayloadEnd(p))
}

// slottedInsert appends payload to p, returning its new slotId. ok is
// false if there isn't enough contiguous free space; the caller should
// try compact or move on to a fresh page.
func slottedInsert(p *page.Page, payload []byte) (slotID int32, ok bool) {
	count := slottedSlotCount(p)
	needed := len(payload) + slotEntrySize
	if slottedFreeSpace(p) < needed {
		return 0, false
	}
	payloadOff := slottedPayloadEnd(p)
	p.PutBytes(int(payloadOff), payload)

	dirOff := slotDirOffset(count)
	p.PutInt(dirOff, payloadOff)
	p.PutInt(dirOff+4, int32(len(payload)))

	p.PutInt(4, count+1)
	p.PutInt(8, payloadOff+int32(len(payload)))
	return count, true
}

// slottedRead returns the payload for slotID, or ok=false if the slot
// is out of range or has been deleted.
func slottedRead(p *page.Page, slotID int32) ([]byte, bool) {
	if slotID < 0 || slotID >= slottedSlotCount(p) {
		return nil, false
	}
	dirOff := slotDirOffset(slotID)
	off := p.GetInt(dirOff)
	length := p.GetInt(dirOff + 4)
	if length < 0 {
		return nil, false
	}
	return p.GetBytes(int(off), int(length)), true
}

// slottedDelete tombstones slotID. It reports whether the slot existed
// and was not already deleted.
func slottedDelete(p *page.Page, slotID int32) bool {
	if slotID < 0 || slotID >= slottedSlotCount(p) {
		return false
	}
	dirOff := slotDirOffset(slotID)
	length := p.GetInt(dirOff + 4)
	if length < 0 {
		return false
	}
	if length == 0 {
		length = -1 // distinguish a zero-length tombstone from "never written"
	} else {
		length = -length
	}
	p.PutInt(dirOff+4, length)
	return true
}

// slottedCompact repacks live payloads contiguously from
// slottedHeaderSize, updating every surviving slot's offset in place.
// Slot ids and the directory's size never change, so addresses held by
// directory pages remain valid across a compaction.
func slottedCompact(p *page.Page) {
	count := slottedSlotCount(p)
	write := int32(slottedHeaderSize)
	for i := int32(0); i < count; i++ {
		dirOff := slotDirOffset(i)
		off := p.GetInt(dirOff)
		length := p.GetInt(dirOff + 4)
		if length < 0 {
			p.PutInt(dirOff, 0)
			continue
		}
		if off != write {
			payload := p.GetBytes(int(off), int(length))
			p.PutBytes(int(write), payload)
			p.PutInt(dirOff, write)
		}
		write += length
	}
	p.PutInt(8, write)
}

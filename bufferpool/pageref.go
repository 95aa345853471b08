package bufferpool

import (
	"sync"
	"sync/atomic"
	"time"

	"hareql.dev/page"
)

// PageRef is a buffer-pool-managed reference to a page: the logical
// PageId currently bound to this frame, a priority hint, access
// bookkeeping, and a dirty flag. PageRefs are reference-counted; once
// the pin count falls to zero the frame becomes eligible for eviction
// and may be rebound to a different PageId.
type PageRef struct {
	mu sync.RWMutex

	id       page.Id
	priority Priority
	dirty    bool

	page *page.Page

	pinCount    int32
	accessCount int64
	lastAccess  time.Time

	// heapIndex is maintained by the eviction queue's container/heap
	// implementation; -1 when the ref isn't currently queued.
	heapIndex int
}

func newPageRef() *PageRef {
	return &PageRef{page: &page.Page{}, heapIndex: -1}
}

// Id returns the PageId currently bound to this frame.
func (r *PageRef) Id() page.Id {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

// Page returns the frame's backing page. Callers must hold the pin
// they obtained from BufferPool.Get for the duration of any access.
func (r *PageRef) Page() *page.Page { return r.page }

// MarkDirty flags the frame as needing write-back before eviction or
// flush.
func (r *PageRef) MarkDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

func (r *PageRef) isDirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

func (r *PageRef) pinCountValue() int32 { return atomic.LoadInt32(&r.pinCount) }

func (r *PageRef) pin() int32 {
	n := atomic.AddInt32(&r.pinCount, 1)
	r.mu.Lock()
	r.accessCount++
	r.lastAccess = time.Now()
	r.mu.Unlock()
	return n
}

func (r *PageRef) unpin() int32 {
	return atomic.AddInt32(&r.pinCount, -1)
}

func (r *PageRef) snapshot() (priority Priority, lastAccess time.Time, accessed int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priority, r.lastAccess, r.accessCount
}

func (r *PageRef) rebind(id page.Id, priority Priority, contents *page.Page) {
	r.mu.Lock()
	r.id = id
	r.priority = priority
	r.dirty = false
	r.accessCount = 0
	r.lastAccess = time.Now()
	r.mu.Unlock()
	*r.page = *contents
}

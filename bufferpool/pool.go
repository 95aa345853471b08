// Package bufferpool implements the fixed-capacity, pin-counted buffer
// pool that sits between column files and the disk manager, with a
// pluggable eviction policy (container/heap-backed priority LRU by
// default).
package bufferpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"hareql.dev/page"
)

// Pool is a fixed-capacity set of PageRef slots backed by a
// page.DiskManager. Get pins a page (loading it if necessary,
// evicting another frame if the pool is full); the caller must call
// Release on every exit path.
type Pool struct {
	dm       page.DiskManager
	capacity int
	queue    EvictionQueue
	log      *logrus.Entry

	mu    sync.Mutex
	byId  map[page.Id]*PageRef
	free  []*PageRef
	count int
}

// New creates a Pool of the given capacity (number of pages) over dm.
// A nil logger falls back to a discard logger.
func New(dm page.DiskManager, capacity int, log *logrus.Entry) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(discardWriter{})
		log = logrus.NewEntry(discard)
	}
	frames := make([]*PageRef, capacity)
	for i := range frames {
		frames[i] = newPageRef()
	}
	return &Pool{
		dm:       dm,
		capacity: capacity,
		queue:    newPriorityLRU(),
		log:      log,
		byId:     make(map[page.Id]*PageRef, capacity),
		free:     frames,
	}
}

// Capacity returns the number of frames the pool manages.
func (p *Pool) Capacity() int { return p.capacity }

// Resident returns the number of frames currently bound to a page.
func (p *Pool) Resident() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byId)
}

// Get pins the page identified by id, loading it from the disk
// manager if it isn't already resident, evicting the least-valuable
// unpinned frame if the pool is at capacity. Callers must call
// Release exactly once per successful Get.
func (p *Pool) Get(ctx context.Context, id page.Id, priority Priority) (*PageRef, error) {
	p.mu.Lock()
	if ref, ok := p.byId[id]; ok {
		p.queue.removeCandidate(ref)
		ref.pin()
		p.mu.Unlock()
		return ref, nil
	}
	p.mu.Unlock()

	for {
		ref, fromFree, err := p.acquireFrame(ctx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		if existing, ok := p.byId[id]; ok {
			// Another goroutine loaded id while we were securing a frame.
			if fromFree {
				p.free = append(p.free, ref)
			} else {
				p.returnFrameLocked(ref)
			}
			p.queue.removeCandidate(existing)
			existing.pin()
			p.mu.Unlock()
			return existing, nil
		}
		p.mu.Unlock()

		var contents page.Page
		if err := p.dm.Read(id, &contents); err != nil {
			p.mu.Lock()
			p.returnFrameLocked(ref)
			p.mu.Unlock()
			return nil, fmt.Errorf("bufferpool: load page %d: %w", id, err)
		}
		ref.rebind(id, priority, &contents)
		ref.pin()

		p.mu.Lock()
		p.byId[id] = ref
		p.mu.Unlock()
		return ref, nil
	}
}

// acquireFrame returns a frame ready to be rebound: either a never-used
// frame from the free list, or an evicted (written-back if dirty,
// unmapped) frame taken from the eviction queue.
func (p *Pool) acquireFrame(ctx context.Context) (ref *PageRef, fromFree bool, err error) {
	p.mu.Lock()
	if len(p.free) > 0 {
		ref = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		p.mu.Unlock()
		return ref, true, nil
	}
	p.mu.Unlock()

	ref, err = p.queue.poll(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("bufferpool: evict for new page: %w", err)
	}
	if ref.isDirty() {
		if err := p.dm.Update(ref.Id(), ref.Page()); err != nil {
			return nil, false, fmt.Errorf("bufferpool: write back page %d on eviction: %w", ref.Id(), err)
		}
		p.log.WithField("page_id", ref.Id()).Debug("wrote back dirty page on eviction")
	}
	p.mu.Lock()
	delete(p.byId, ref.Id())
	p.mu.Unlock()
	return ref, false, nil
}

// returnFrameLocked puts an evicted-but-unused frame back into the
// free list. Callers must hold p.mu.
func (p *Pool) returnFrameLocked(ref *PageRef) {
	p.free = append(p.free, ref)
}

// Release unpins ref. A ref whose pin count falls to zero becomes
// eligible for eviction.
func (p *Pool) Release(ref *PageRef) {
	if n := ref.unpin(); n == 0 {
		p.queue.offerCandidate(ref)
	} else if n < 0 {
		p.log.WithField("page_id", ref.Id()).Error("bufferpool: Release called without a matching Get")
	}
}

// Prefetch best-effort loads id into the pool without blocking the
// caller on the result; failures are logged, not returned.
func (p *Pool) Prefetch(id page.Id) {
	go func() {
		ref, err := p.Get(context.Background(), id, PriorityLow)
		if err != nil {
			p.log.WithError(err).WithField("page_id", id).Debug("prefetch failed")
			return
		}
		p.Release(ref)
	}()
}

// Flush writes every dirty resident frame back to the disk manager.
func (p *Pool) Flush() error {
	p.mu.Lock()
	refs := make([]*PageRef, 0, len(p.byId))
	for _, ref := range p.byId {
		refs = append(refs, ref)
	}
	p.mu.Unlock()

	for _, ref := range refs {
		if !ref.isDirty() {
			continue
		}
		if err := p.dm.Update(ref.Id(), ref.Page()); err != nil {
			return fmt.Errorf("bufferpool: flush page %d: %w", ref.Id(), err)
		}
		ref.mu.Lock()
		ref.dirty = false
		ref.mu.Unlock()
	}
	return nil
}

// Close flushes all dirty frames. The underlying disk manager's
// lifecycle belongs to the caller (typically a ColumnFile), not the
// pool.
func (p *Pool) Close() error { return p.Flush() }

type discardWriter struct{}

func (discardWriter) Write(b []byte) (int, error) { return len(b), nil }

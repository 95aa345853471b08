package bufferpool

import (
	"container/heap"
	"context"
	"sync"

	"hareql.dev/hareerr"
)

// EvictionQueue decides which unpinned frame the pool should reclaim
// next. Implementations must be safe for concurrent use.
type EvictionQueue interface {
	// offerCandidate registers ref as eligible for eviction. Called
	// whenever a frame's pin count falls to zero.
	offerCandidate(ref *PageRef)
	// removeCandidate withdraws ref from eligibility, e.g. because it
	// was just pinned again before being evicted.
	removeCandidate(ref *PageRef)
	// poll blocks until a disposable ref is available or ctx is done,
	// returning the chosen candidate with its index-within-the-queue
	// bookkeeping cleared.
	poll(ctx context.Context) (*PageRef, error)
	// len reports the number of currently-eligible candidates.
	len() int
}

// priorityLRU is the concrete EvictionQueue: candidates are ordered by
// (priority, lastAccess, accessed) ascending, so low-priority,
// long-idle, rarely-accessed frames are evicted first.
type priorityLRU struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items lruHeap
}

func newPriorityLRU() *priorityLRU {
	q := &priorityLRU{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *priorityLRU) offerCandidate(ref *PageRef) {
	q.mu.Lock()
	if ref.heapIndex >= 0 {
		q.mu.Unlock()
		return
	}
	heap.Push(&q.items, ref)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *priorityLRU) removeCandidate(ref *PageRef) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ref.heapIndex >= 0 {
		heap.Remove(&q.items, ref.heapIndex)
	}
}

func (q *priorityLRU) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *priorityLRU) poll(ctx context.Context) (*PageRef, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.cond.Broadcast()
		case <-done:
		}
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 {
		if ctx.Err() != nil {
			return nil, hareerr.New(hareerr.KindTimeout, "", ctx.Err())
		}
		q.cond.Wait()
	}
	ref := heap.Pop(&q.items).(*PageRef)
	return ref, nil
}

// lruHeap implements container/heap.Interface over *PageRef, ordering
// by (priority, lastAccess, accessed) ascending.
type lruHeap []*PageRef

func (h lruHeap) Len() int { return len(h) }

func (h lruHeap) Less(i, j int) bool {
	pi, ti, ai := h[i].snapshot()
	pj, tj, aj := h[j].snapshot()
	if pi != pj {
		return pi < pj
	}
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return ai < aj
}

func (h lruHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *lruHeap) Push(x any) {
	ref := x.(*PageRef)
	ref.heapIndex = len(*h)
	*h = append(*h, ref)
}

func (h *lruHeap) Pop() any {
	old := *h
	n := len(old)
	ref := old[n-1]
	old[n-1] = nil
	ref.heapIndex = -1
	*h = old[:n-1]
	return ref
}

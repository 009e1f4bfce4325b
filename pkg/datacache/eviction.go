package datacache

import "container/heap"

// item is an entry as tracked by the cache: the public fields plus the
// bookkeeping the eviction heap and size accounting need.
type item[V any] struct {
	Entry[V]

	seq   uint64 // stamped on insert and on every hit
	size  int64  // len(key) + len(encoded value), 0 if unencodable
	index int    // position in the eviction heap
}

// evictionQueue is a min-heap of items ordered by an eviction policy; the
// root is always the next victim.
type evictionQueue[V any] struct {
	items []*item[V]
	less  func(a, b *item[V]) bool
}

func newEvictionQueue[V any](policy EvictionPolicy) *evictionQueue[V] {
	q := &evictionQueue[V]{}
	switch policy {
	case EvictLFU:
		q.less = lessLFU[V]
	case EvictFIFO:
		q.less = lessFIFO[V]
	default:
		q.less = lessLRU[V]
	}
	return q
}

// lessLRU orders by last access. Equal timestamps fall back to the access
// sequence, then creation time and key, so the victim is deterministic even
// under a frozen clock.
func lessLRU[V any](a, b *item[V]) bool {
	if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Key < b.Key
}

func lessLFU[V any](a, b *item[V]) bool {
	if a.AccessCount != b.AccessCount {
		return a.AccessCount < b.AccessCount
	}
	return lessLRU(a, b)
}

func lessFIFO[V any](a, b *item[V]) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.Key < b.Key
}

// heap.Interface

func (q *evictionQueue[V]) Len() int           { return len(q.items) }
func (q *evictionQueue[V]) Less(i, j int) bool { return q.less(q.items[i], q.items[j]) }

func (q *evictionQueue[V]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *evictionQueue[V]) Push(x any) {
	it := x.(*item[V])
	it.index = len(q.items)
	q.items = append(q.items, it)
}

func (q *evictionQueue[V]) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	q.items = old[:n-1]
	return it
}

// Typed helpers

func (q *evictionQueue[V]) add(it *item[V])    { heap.Push(q, it) }
func (q *evictionQueue[V]) update(it *item[V]) { heap.Fix(q, it.index) }

func (q *evictionQueue[V]) remove(it *item[V]) {
	if it.index >= 0 && it.index < len(q.items) && q.items[it.index] == it {
		heap.Remove(q, it.index)
	}
}

// peek returns the next victim without removing it.
func (q *evictionQueue[V]) peek() *item[V] {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *evictionQueue[V]) reset() {
	q.items = nil
}

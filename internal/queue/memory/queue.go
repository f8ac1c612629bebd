// Package memory provides the bounded in-memory discovery queue.
package memory

import (
	"container/heap"
	"sync"

	"github.com/JakeFAU/match-crawler/internal/crawler"
)

// Result reports what Enqueue did with an entry.
type Result int

// Enqueue results.
const (
	Added Result = iota
	Duplicate
	Dropped
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 10000

// Queue is a bounded, deduplicating priority queue of players to crawl.
// Entries are served highest priority first and FIFO within a priority.
// Every PUUID is accepted at most once per process; entries dropped because
// the queue was full are not remembered and may be added again later.
type Queue struct {
	mu       sync.Mutex
	items    entryHeap
	seen     map[string]struct{}
	capacity int
	seq      uint64
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		seen:     make(map[string]struct{}),
		capacity: capacity,
	}
}

// Enqueue adds entry unless it was seen before or the queue is full. It never blocks.
func (q *Queue) Enqueue(entry crawler.QueueEntry) Result {
	if entry.PUUID == "" {
		return Duplicate
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.seen[entry.PUUID]; ok {
		return Duplicate
	}
	if len(q.items) >= q.capacity {
		return Dropped
	}
	q.seen[entry.PUUID] = struct{}{}
	q.seq++
	heap.Push(&q.items, queued{entry: entry, seq: q.seq})
	return Added
}

// Dequeue pops the next entry. ok is false when the queue is empty.
func (q *Queue) Dequeue() (crawler.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return crawler.QueueEntry{}, false
	}
	item := heap.Pop(&q.items).(queued)
	return item.entry, true
}

// Seen reports whether puuid was ever accepted by the queue.
func (q *Queue) Seen(puuid string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[puuid]
	return ok
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Drain removes and returns all pending entries in dequeue order.
func (q *Queue) Drain() []crawler.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]crawler.QueueEntry, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(queued).entry)
	}
	return out
}

type queued struct {
	entry crawler.QueueEntry
	seq   uint64
}

type entryHeap []queued

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].entry.Priority != h[j].entry.Priority {
		return h[i].entry.Priority > h[j].entry.Priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ABOUTME: Timestamp-ordered jitter buffer for incoming audio chunks
// ABOUTME: Min-heap on server timestamp with late-drop eviction and snapshot statistics
package jitter

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// Chunk is one encoded audio unit stamped with its server play time (µs)
type Chunk struct {
	Timestamp int64
	Payload   []byte
}

// Snapshot is a point-in-time view of the buffer
type Snapshot struct {
	Queued    int
	AheadMs   int64  // how far the head lies ahead of estimated server now; 0 if empty
	LateDrops int64  // chunks evicted for lateness since the buffer was created
	Head      *int64 // server timestamp of the earliest chunk, nil if empty
}

// Buffer is safe for one producer and one consumer (or more) at once.
// All heap access happens under a single mutex; LateDrops can be read without it.
type Buffer struct {
	mu        sync.Mutex
	q         chunkQueue
	lateDrops atomic.Int64
	now       func() int64
}

// Option configures a Buffer
type Option func(*Buffer)

// WithClock sets the local clock (µs) used by Snapshot
func WithClock(now func() int64) Option {
	return func(b *Buffer) {
		b.now = now
	}
}

// NewBuffer creates an empty buffer
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		now: func() int64 { return time.Now().UnixMicro() },
	}
	for _, opt := range opts {
		opt(b)
	}
	heap.Init(&b.q)
	return b
}

// Push queues a chunk; the buffer takes ownership of payload
func (b *Buffer) Push(timestamp int64, payload []byte) {
	b.mu.Lock()
	heap.Push(&b.q, Chunk{Timestamp: timestamp, Payload: payload})
	b.mu.Unlock()
}

// IsEmpty reports whether no chunk is queued
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Len() == 0
}

// Len returns the number of queued chunks
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Len()
}

// Clear drops every queued chunk without touching the late-drop counter
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.q.items = nil
	b.mu.Unlock()
}

// LateDrops returns the number of chunks evicted for lateness
func (b *Buffer) LateDrops() int64 {
	return b.lateDrops.Load()
}

// Snapshot reports queue depth and how far ahead the head is, given the
// current local→server offset
func (b *Buffer) Snapshot(offset int64) Snapshot {
	serverNow := b.now() + offset

	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Queued:    b.q.Len(),
		LateDrops: b.lateDrops.Load(),
	}
	if b.q.Len() > 0 {
		head := b.q.items[0].Timestamp
		snap.Head = &head
		snap.AheadMs = (head - serverNow) / 1000
	}
	return snap
}

// DropWhileLate evicts head chunks lying more than keepWithinUs behind server
// now and returns how many were dropped
func (b *Buffer) DropWhileLate(nowLocal, offset, keepWithinUs int64) int {
	serverNow := nowLocal + offset

	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for b.q.Len() > 0 && serverNow-b.q.items[0].Timestamp > keepWithinUs {
		heap.Pop(&b.q)
		dropped++
	}
	b.lateDrops.Add(int64(dropped))
	return dropped
}

// PollPlayable evicts chunks later than lateDropThresholdUs and removes and
// returns the earliest remaining one. ok is false when the buffer runs dry.
func (b *Buffer) PollPlayable(nowLocal, offset, lateDropThresholdUs int64) (chunk Chunk, ok bool) {
	serverNow := nowLocal + offset

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.q.Len() > 0 {
		c := heap.Pop(&b.q).(Chunk)
		if serverNow-c.Timestamp > lateDropThresholdUs {
			b.lateDrops.Add(1)
			continue
		}
		return c, true
	}
	return Chunk{}, false
}

// chunkQueue implements heap.Interface ordered by timestamp
type chunkQueue struct {
	items []Chunk
}

func (q *chunkQueue) Len() int { return len(q.items) }

func (q *chunkQueue) Less(i, j int) bool {
	return q.items[i].Timestamp < q.items[j].Timestamp
}

func (q *chunkQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *chunkQueue) Push(x interface{}) {
	q.items = append(q.items, x.(Chunk))
}

func (q *chunkQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items[n-1] = Chunk{}
	q.items = q.items[:n-1]
	return item
}

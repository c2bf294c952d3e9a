package queue

import (
	"container/heap"

	"github.com/google/uuid"
)

// readyQueue holds ids of tasks that are eligible to run right now. It stores
// only ids; the authoritative task records live in the queue's task table.
// Implementations are not safe for concurrent use; the queue mutex guards
// all access.
type readyQueue interface {
	Push(id uuid.UUID, priority Priority)
	// Pop removes and returns the next id. ok is false when empty.
	Pop() (id uuid.UUID, ok bool)
	Len() int
}

func newReadyQueue(mode Mode) readyQueue {
	if mode == ModePriority {
		return newPriorityReady()
	}
	return &fifoReady{}
}

// fifoReady dequeues in strict insertion order, ignoring priorities.
type fifoReady struct {
	ids []uuid.UUID
}

func (f *fifoReady) Push(id uuid.UUID, _ Priority) {
	f.ids = append(f.ids, id)
}

func (f *fifoReady) Pop() (uuid.UUID, bool) {
	if len(f.ids) == 0 {
		return uuid.Nil, false
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, true
}

func (f *fifoReady) Len() int {
	return len(f.ids)
}

// priorityReady dequeues by ascending priority value. Ties break on a
// monotonic sequence number so equal-priority tasks keep submission order.
type priorityReady struct {
	h   readyHeap
	seq uint64
}

func newPriorityReady() *priorityReady {
	p := &priorityReady{}
	heap.Init(&p.h)
	return p
}

func (p *priorityReady) Push(id uuid.UUID, priority Priority) {
	p.seq++
	heap.Push(&p.h, readyItem{id: id, priority: priority, seq: p.seq})
}

func (p *priorityReady) Pop() (uuid.UUID, bool) {
	if p.h.Len() == 0 {
		return uuid.Nil, false
	}
	item := heap.Pop(&p.h).(readyItem)
	return item.id, true
}

func (p *priorityReady) Len() int {
	return p.h.Len()
}

type readyItem struct {
	id       uuid.UUID
	priority Priority
	seq      uint64
}

type readyHeap []readyItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) {
	*h = append(*h, x.(readyItem))
}

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Package timerqueue schedules one-shot callbacks ordered by an explicit
// priority (a UnixNano deadline). It is the generalized replacement for
// per-packet threading.Timer objects: a single background goroutine services
// every pending deadline from a min-heap instead of spawning one OS timer
// per outstanding DATA packet.
//
// The shape mirrors the TimerQueue used by the katzenpost client's ARQ
// (Push(priority, value), Peek, Pop, Len, Start, Halt, Wait) so retransmission
// code reads the same way whether it is driving one retransmission timer per
// stream (Stop-and-Wait) or WINDOW_SIZE-many of them (Selective Repeat).
package timerqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/dstainton-labs/rudp/internal/workerutil"
)

type entry struct {
	priority uint64
	value    interface{}
	index    int
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerQueue services pending deadlines with a single worker goroutine.
type TimerQueue struct {
	workerutil.Worker

	mu       sync.Mutex
	heap     entryHeap
	callback func(interface{})
	wake     chan struct{}
}

// NewTimerQueue creates a queue that invokes callback with the pushed value
// when its deadline elapses. Start must be called before use.
func NewTimerQueue(callback func(interface{})) *TimerQueue {
	return &TimerQueue{
		callback: callback,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the background worker goroutine.
func (q *TimerQueue) Start() {
	q.Go(q.worker)
}

// Stop halts the worker and waits for it to exit.
func (q *TimerQueue) Stop() {
	q.Halt()
	q.Wait()
}

// Push schedules value to be delivered to the callback at the given
// UnixNano priority (deadline).
func (q *TimerQueue) Push(priority uint64, value interface{}) {
	q.mu.Lock()
	heap.Push(&q.heap, &entry{priority: priority, value: value})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Peek returns the earliest-scheduled value without removing it.
func (q *TimerQueue) Peek() (priority uint64, value interface{}, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return 0, nil, false
	}
	top := q.heap[0]
	return top.priority, top.value, true
}

// Pop removes the earliest-scheduled value.
func (q *TimerQueue) Pop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return
	}
	heap.Pop(&q.heap)
}

// Len reports the number of pending deadlines.
func (q *TimerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

func (q *TimerQueue) worker() {
	const idle = time.Hour
	for {
		q.mu.Lock()
		var wait time.Duration
		var due *entry
		if len(q.heap) == 0 {
			wait = idle
		} else {
			now := uint64(time.Now().UnixNano())
			top := q.heap[0]
			if top.priority <= now {
				due = heap.Pop(&q.heap).(*entry)
			} else {
				wait = time.Duration(top.priority-now) * time.Nanosecond
			}
		}
		q.mu.Unlock()

		if due != nil {
			q.callback(due.value)
			continue
		}

		select {
		case <-q.HaltCh():
			return
		case <-time.After(wait):
		case <-q.wake:
		}
	}
}

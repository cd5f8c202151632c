// Package worker implements the Decoder Worker (spec §4.6): a single
// task servicing all decoder chains serially, chosen because a
// disk-bound pipeline benefits from cache coherency over parallelism.
package worker

import (
	"container/heap"
	"sync"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/playback/buffermanager"
	"github.com/wkmp/core/internal/playback/chain"
)

// Priority orders pending decode requests. Higher values run first.
type Priority int

const (
	PriorityPrefetch Priority = iota
	PriorityNext
	PriorityImmediate
)

// Request asks the worker to build and admit a chain for queueEntryID
// once drained from the pending queue. Build is deferred so that
// expensive decoder/resampler/fader construction happens on the
// worker's own schedule rather than at submission time.
type Request struct {
	QueueEntryID uuid.UUID
	Priority     Priority
	Build        func() (*chain.Chain, error)
}

// OnChunkError is invoked when a ready chain's ProcessChunk returns an
// error; by the time a chain exists, open-errors have already been
// surfaced at construction, so any error here is treated as
// unrecoverable for that chain and it is dropped from the worker.
type OnChunkError func(queueEntryID uuid.UUID, err error)

type readyEntry struct {
	chain    *chain.Chain
	priority Priority
	seq      int64
}

// requestHeap orders pending Requests by priority desc, then
// submission order asc (tie-break by earliest submission).
type requestHeap struct {
	items []*pendingRequest
}

type pendingRequest struct {
	req Request
	seq int64
}

func (h *requestHeap) Len() int { return len(h.items) }
func (h *requestHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.req.Priority != b.req.Priority {
		return a.req.Priority > b.req.Priority
	}
	return a.seq < b.seq
}
func (h *requestHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *requestHeap) Push(x any)    { h.items = append(h.items, x.(*pendingRequest)) }
func (h *requestHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Worker holds pending requests, ready chains, and yielded
// (buffer-full) chains under one lock.
type Worker struct {
	mu sync.Mutex

	pending requestHeap
	seq     int64

	ready   map[uuid.UUID]*readyEntry
	yielded map[uuid.UUID]*readyEntry

	bufferManager *buffermanager.Manager
	onError       OnChunkError
}

// New constructs a Worker. bufferManager is consulted for resume
// hysteresis and buffer cleanup on cancellation.
func New(bufferManager *buffermanager.Manager, onError OnChunkError) *Worker {
	return &Worker{
		ready:         make(map[uuid.UUID]*readyEntry),
		yielded:       make(map[uuid.UUID]*readyEntry),
		bufferManager: bufferManager,
		onError:       onError,
	}
}

// Submit enqueues a pending decode request.
func (w *Worker) Submit(req Request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	heap.Push(&w.pending, &pendingRequest{req: req, seq: w.seq})
}

// CancelDecode removes id from every internal set and frees its ring
// buffer, per the cancellation contract.
func (w *Worker) CancelDecode(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	filtered := w.pending.items[:0]
	for _, p := range w.pending.items {
		if p.req.QueueEntryID != id {
			filtered = append(filtered, p)
		}
	}
	w.pending.items = filtered
	heap.Init(&w.pending)

	if entry, ok := w.ready[id]; ok {
		_ = entry.chain.Close()
		delete(w.ready, id)
	}
	if entry, ok := w.yielded[id]; ok {
		_ = entry.chain.Close()
		delete(w.yielded, id)
	}

	if w.bufferManager != nil {
		w.bufferManager.RemoveBuffer(id)
	}
}

// Tick runs one iteration of the worker's main loop: re-admit yielded
// chains whose buffer has drained below hysteresis, drain pending
// requests into the ready set, then process one chunk from the
// highest-priority ready chain. Returns false if there was no ready
// chain to process.
func (w *Worker) Tick() bool {
	w.mu.Lock()

	w.readmitYielded()
	w.drainPending()

	best := w.pickHighestPriorityReady()
	if best == nil {
		w.mu.Unlock()
		return false
	}
	c := best.chain
	id := c.QueueEntryID
	w.mu.Unlock()

	result, err := c.ProcessChunk()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		delete(w.ready, id)
		if w.onError != nil {
			w.onError(id, err)
		}
		return true
	}

	switch result.Kind {
	case chain.BufferFull:
		entry := w.ready[id]
		delete(w.ready, id)
		w.yielded[id] = entry
	case chain.Finished:
		delete(w.ready, id)
	case chain.Processed:
		// remains ready for the next tick
	}
	return true
}

func (w *Worker) readmitYielded() {
	if w.bufferManager == nil {
		return
	}
	for id, entry := range w.yielded {
		if w.bufferManager.CanDecoderResume(id) {
			delete(w.yielded, id)
			w.ready[id] = entry
		}
	}
}

func (w *Worker) drainPending() {
	for w.pending.Len() > 0 {
		p := heap.Pop(&w.pending).(*pendingRequest)
		c, err := p.req.Build()
		if err != nil {
			if w.onError != nil {
				w.onError(p.req.QueueEntryID, err)
			}
			continue
		}
		w.ready[p.req.QueueEntryID] = &readyEntry{chain: c, priority: p.req.Priority, seq: p.seq}
	}
}

func (w *Worker) pickHighestPriorityReady() *readyEntry {
	var best *readyEntry
	for _, entry := range w.ready {
		if best == nil ||
			entry.priority > best.priority ||
			(entry.priority == best.priority && entry.seq < best.seq) {
			best = entry
		}
	}
	return best
}

// ReadyCount and YieldedCount expose internal set sizes for tests and
// diagnostics.
func (w *Worker) ReadyCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ready)
}

func (w *Worker) YieldedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.yielded)
}

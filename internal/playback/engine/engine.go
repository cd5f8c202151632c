// Package engine implements the Playback Engine (spec §4.9): it owns the
// queue, the chain assignments, the marker schedule, and the lifecycle
// events, driving the worker and mixer to turn a sequence of queue entries
// into one continuous, crossfaded audio stream.
package engine

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/curve"
	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/events"
	"github.com/wkmp/core/internal/model"
	"github.com/wkmp/core/internal/playback/buffermanager"
	"github.com/wkmp/core/internal/playback/chain"
	"github.com/wkmp/core/internal/playback/decoder"
	"github.com/wkmp/core/internal/playback/fader"
	"github.com/wkmp/core/internal/playback/mixer"
	"github.com/wkmp/core/internal/playback/resampler"
	"github.com/wkmp/core/internal/playback/ringbuffer"
	"github.com/wkmp/core/internal/playback/validation"
	"github.com/wkmp/core/internal/playback/worker"
	"github.com/wkmp/core/internal/store"
	"github.com/wkmp/core/internal/tick"
)

// defaultMaxChains is maximum_decode_streams (spec §4.5 default: 12).
const defaultMaxChains = 12

// defaultResumeFadeDurationMs is the configurable resume-fade duration
// used when play() resumes mid-passage outside of a crossfade.
const defaultResumeFadeDurationMs = 500

// positionUpdateIntervalSeconds is the periodic PositionUpdate marker
// spacing (spec §4.9: "1 Hz or coarser").
const positionUpdateIntervalSeconds = 1

// ChainFactory builds a fully wired decoder/resampler/fader chain for
// entry, bound to chainIndex and buf. originTick is the absolute tick the
// chain's first produced sample represents (entry.StartTick on normal
// assignment, or the seek target on a reseek).
type ChainFactory func(entry model.QueueEntry, chainIndex int, originTick tick.Tick, buf *ringbuffer.RingBuffer) (*chain.Chain, error)

// outputSampleRate is the mixer/resampler target; every chain resamples to
// this regardless of its source file's native rate.
const outputSampleRate = 44100

// DefaultChainFactory builds chains the way a live engine does: opening the
// file through decoder.Open, resampling to outputSampleRate, and applying a
// fader over the entry's own fade bounds.
func DefaultChainFactory(entry model.QueueEntry, chainIndex int, originTick tick.Tick, buf *ringbuffer.RingBuffer) (*chain.Chain, error) {
	startMs := originTick.ToMillis()
	var endMs int64
	if entry.EndTick != nil {
		endMs = tick.Tick(*entry.EndTick).ToMillis()
	}

	dec, err := decoder.Open(entry.FilePath, startMs, endMs)
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("engine").
			Category(wkmperrors.CategoryDecode).
			Context("operation", "open_chain_decoder").
			Context("file_path", entry.FilePath).
			Build()
	}

	rs := resampler.New(dec.SampleRate(), outputSampleRate, 2, 4096)
	fd := fader.New(
		tick.Tick(entry.StartTick),
		tick.Tick(entry.FadeInTick),
		tick.Tick(entry.FadeOutTick),
		faderEndTick(entry),
		entry.FadeInCurve, entry.FadeOutCurve,
		outputSampleRate,
	)
	fd.Seek(originTick)

	c := chain.New(chainIndex, entry.ID, dec, rs, fd, buf)
	return c, nil
}

// faderEndTick resolves the fader's end bound. A nil EndTick means "play to
// the file's natural end" (ingest left it open); in that case there's no
// fixed tick to ramp a fade-out against, so the envelope holds at the
// fade-out curve's starting gain from fade_out_tick onward rather than
// targeting an unknown endpoint.
func faderEndTick(entry model.QueueEntry) tick.Tick {
	if entry.EndTick != nil {
		return tick.Tick(*entry.EndTick)
	}
	return tick.Tick(1<<63 - 1)
}

// Engine wires the store, worker, buffer manager, and mixer together into
// the playback pipeline described by spec §4.9.
type Engine struct {
	mu sync.Mutex

	store         *store.Store
	worker        *worker.Worker
	bufferManager *buffermanager.Manager
	mixer         *mixer.Mixer
	bus           *events.EventBus
	chainFactory  ChainFactory

	maxChains  int
	freeChains []int // ascending; popped lowest-first

	queue      []model.QueueEntry
	chains     map[uuid.UUID]*chain.Chain
	entryChain map[uuid.UUID]int

	resumeFadeDurationSamples int64
	resumeFadeCurve           curve.FadeCurve
}

// New constructs an Engine. chainFactory may be nil to use
// DefaultChainFactory; maxChains 0 uses the spec default of 12.
func New(st *store.Store, w *worker.Worker, bm *buffermanager.Manager, mx *mixer.Mixer, bus *events.EventBus, chainFactory ChainFactory, maxChains int) *Engine {
	if chainFactory == nil {
		chainFactory = DefaultChainFactory
	}
	if maxChains <= 0 {
		maxChains = defaultMaxChains
	}
	free := make([]int, maxChains)
	for i := range free {
		free[i] = i
	}
	return &Engine{
		store:                     st,
		worker:                    w,
		bufferManager:             bm,
		mixer:                     mx,
		bus:                       bus,
		chainFactory:              chainFactory,
		maxChains:                 maxChains,
		freeChains:                free,
		chains:                    make(map[uuid.UUID]*chain.Chain),
		entryChain:                make(map[uuid.UUID]int),
		resumeFadeDurationSamples: int64(defaultResumeFadeDurationMs) * outputSampleRate / 1000,
		resumeFadeCurve:           curve.EqualPower,
	}
}

// LoadQueue (re)loads the ordered queue from the store and assigns chains
// to as many leading entries as free chains allow. Call once at startup.
func (e *Engine) LoadQueue() error {
	entries, err := e.store.ListQueueOrdered()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = entries
	e.assignChainsLocked()
	return nil
}

// Enqueue appends a new queue entry derived from p and assigns it a chain
// if one is free.
func (e *Engine) Enqueue(p *model.Passage, filePath string) (*model.QueueEntry, error) {
	entry, err := e.store.EnqueuePassage(p, filePath)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, *entry)
	e.assignChainsLocked()
	return entry, nil
}

// DriveDecodeWorker runs one iteration of the decoder worker's main loop.
// The caller is expected to invoke this repeatedly from its own scheduling
// loop (a ticker, or between audio-callback renders).
func (e *Engine) DriveDecodeWorker() bool {
	return e.worker.Tick()
}

// RenderAudio pulls n frames from the mixer and reacts to any signals it
// reports (markers due, crossfade triggers, end-of-file reconciliation).
func (e *Engine) RenderAudio(n int) []float32 {
	out, signals := e.mixer.MixFrames(n)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sig := range signals {
		e.handleSignalLocked(sig)
	}
	return out
}

func (e *Engine) handleSignalLocked(sig mixer.Signal) {
	switch sig.Kind {
	case mixer.SignalPositionUpdate:
		if len(e.queue) > 0 {
			e.bus.TryPublish(events.NewPositionUpdateEvent(e.queue[0].ID, sig.PositionMs))
		}
	case mixer.SignalStartCrossfade:
		e.mixer.ActivateCrossfade()
	case mixer.SignalPassageComplete:
		if e.mixer.IsCrossfading() {
			e.advanceAfterCrossfadeLocked()
		} else {
			e.advanceQueueNormallyLocked("completed")
		}
	case mixer.SignalEndOfFileBeforeLeadOut:
		if e.mixer.IsCrossfading() {
			e.advanceAfterCrossfadeLocked()
		} else {
			// Truncation before the scheduled lead-out: start the
			// crossfade immediately with whatever the next chain has
			// buffered so far.
			e.mixer.ActivateCrossfade()
		}
	case mixer.SignalEndOfFile:
		if e.mixer.IsCrossfading() {
			e.advanceAfterCrossfadeLocked()
		} else {
			e.advanceQueueNormallyLocked("end-of-file")
		}
	}
}

// assignChainsLocked sweeps the queue head-to-tail, assigning a free chain
// (lowest index first) to every entry that doesn't already have one, in
// order, stopping once chains run out. Chains never migrate and are never
// assigned out of order (spec §4.5 invariant c/d).
func (e *Engine) assignChainsLocked() {
	for i := range e.queue {
		entry := &e.queue[i]
		if _, ok := e.entryChain[entry.ID]; ok {
			continue
		}
		if len(e.freeChains) == 0 {
			return
		}

		chainIndex := e.freeChains[0]
		e.freeChains = e.freeChains[1:]

		buf := e.bufferManager.RegisterDecoding(entry.ID)
		priority := priorityForPosition(i)
		origin := tick.Tick(entry.StartTick)

		entryCopy := *entry
		c, err := e.chainFactory(entryCopy, chainIndex, origin, buf)
		if err != nil {
			// Construction failed (bad file, unsupported format, ...);
			// give the chain back and leave the entry chain-less so a
			// future sweep can retry after the operator intervenes.
			e.freeChains = append(e.freeChains, chainIndex)
			sort.Ints(e.freeChains)
			e.bufferManager.RemoveBuffer(entry.ID)
			continue
		}

		e.chains[entry.ID] = c
		e.entryChain[entry.ID] = chainIndex
		_ = e.store.SetChainIndex(entry.ID, &chainIndex)

		e.worker.Submit(worker.Request{
			QueueEntryID: entry.ID,
			Priority:     priority,
			Build:        func() (*chain.Chain, error) { return c, nil },
		})

		if i == 0 {
			e.mixer.SetCurrentChain(c, origin)
			e.emitPassageStartedLocked(entryCopy)
			e.scheduleMarkersForCurrentLocked(entryCopy, e.nextEntryLocked())
		}
	}
	e.wireNextChainLocked()
}

// wireNextChainLocked points the mixer's next-chain slot at whichever
// chain belongs to queue[1], independent of whether that chain was built
// just now or was already prefetching — queue position shifts (advance,
// skip) can promote an already-decoding entry straight to "next" without
// assignChainsLocked building anything new for it.
func (e *Engine) wireNextChainLocked() {
	if len(e.queue) < 2 {
		e.mixer.SetNextChain(nil)
		return
	}
	if c, ok := e.chains[e.queue[1].ID]; ok {
		e.mixer.SetNextChain(c)
	}
}

func priorityForPosition(i int) worker.Priority {
	switch i {
	case 0:
		return worker.PriorityImmediate
	case 1:
		return worker.PriorityNext
	default:
		return worker.PriorityPrefetch
	}
}

func (e *Engine) nextEntryLocked() *model.QueueEntry {
	if len(e.queue) > 1 {
		return &e.queue[1]
	}
	return nil
}

// scheduleMarkersForCurrentLocked implements spec §4.9's marker schedule
// for the entry that has just become "current".
func (e *Engine) scheduleMarkersForCurrentLocked(entry model.QueueEntry, next *model.QueueEntry) {
	e.mixer.ClearMarkers()

	if entry.EndTick != nil {
		e.mixer.ScheduleMarker(mixer.Marker{Tick: tick.Tick(*entry.EndTick), Kind: mixer.MarkerPassageComplete})
	}

	horizon := tick.Tick(entry.LeadOutTick)
	if entry.EndTick != nil && tick.Tick(*entry.EndTick) < horizon {
		horizon = tick.Tick(*entry.EndTick)
	}

	if next != nil && nextHasLeadIn(next) && thisHasLeadOut(&entry) {
		e.mixer.ScheduleMarker(mixer.Marker{
			Tick:             tick.Tick(entry.LeadOutTick),
			Kind:             mixer.MarkerStartCrossfade,
			NextQueueEntryID: next.ID,
		})
	}

	interval := tick.Tick(tick.Rate * positionUpdateIntervalSeconds)
	for t := tick.Tick(entry.StartTick) + interval; t < horizon; t += interval {
		e.mixer.ScheduleMarker(mixer.Marker{Tick: t, Kind: mixer.MarkerPositionUpdate})
	}
}

func nextHasLeadIn(next *model.QueueEntry) bool {
	return next.LeadInTick > next.StartTick
}

func thisHasLeadOut(entry *model.QueueEntry) bool {
	return entry.FadeOutTick > entry.LeadOutTick
}

// advanceAfterCrossfadeLocked promotes the mixer's next chain to current
// (no mixer restart), finalizes the outgoing entry, and assigns a chain to
// the new "next" entry.
func (e *Engine) advanceAfterCrossfadeLocked() {
	if len(e.queue) == 0 {
		return
	}
	outgoing := e.queue[0]
	e.queue = e.queue[1:]

	var newOrigin tick.Tick
	if len(e.queue) > 0 {
		newOrigin = tick.Tick(e.queue[0].StartTick)
	}
	e.mixer.AdvancePastCrossfade(newOrigin)

	e.finalizeEntryLocked(outgoing, "crossfade-complete")

	if len(e.queue) > 0 {
		e.emitPassageStartedLocked(e.queue[0])
		e.scheduleMarkersForCurrentLocked(e.queue[0], e.nextEntryLocked())
	}
	e.assignChainsLocked()
}

// advanceQueueNormallyLocked finalizes the current entry and promotes the
// next entry (if any) directly into single-passage playback, used when no
// crossfade was in progress (EndOfFile / PassageComplete with no pending
// crossfade).
func (e *Engine) advanceQueueNormallyLocked(reason string) {
	if len(e.queue) == 0 {
		return
	}
	outgoing := e.queue[0]
	e.queue = e.queue[1:]
	e.finalizeEntryLocked(outgoing, reason)

	if len(e.queue) == 0 {
		e.mixer.SetCurrentChain(nil, 0)
		return
	}

	newCurrent := e.queue[0]
	if c, ok := e.chains[newCurrent.ID]; ok {
		e.mixer.SetCurrentChain(c, tick.Tick(newCurrent.StartTick))
		e.emitPassageStartedLocked(newCurrent)
		e.scheduleMarkersForCurrentLocked(newCurrent, e.nextEntryLocked())
	}
	// If newCurrent has no chain yet (maxChains == 1 or a prior build
	// failure), assignChainsLocked below will build one; SetCurrentChain
	// and marker scheduling then happen the next time a chain becomes
	// ready — callers should re-invoke assignChainsLocked via Enqueue or
	// a periodic reconciliation pass in that degenerate configuration.
	e.assignChainsLocked()
}

// finalizeEntryLocked emits PassageCompleted, releases the entry's chain,
// and removes it from the store.
func (e *Engine) finalizeEntryLocked(entry model.QueueEntry, reason string) {
	chainIndex := -1
	if idx, ok := e.entryChain[entry.ID]; ok {
		chainIndex = idx
	}
	e.bus.TryPublish(events.NewPassageCompletedEvent(entry.ID, entry.PassageID, chainIndex, reason))
	e.releaseChainLocked(entry.ID)
	_ = e.store.RemoveQueueEntry(entry.ID)
}

func (e *Engine) emitPassageStartedLocked(entry model.QueueEntry) {
	chainIndex := -1
	if idx, ok := e.entryChain[entry.ID]; ok {
		chainIndex = idx
	}
	e.bus.TryPublish(events.NewPassageStartedEvent(entry.ID, entry.PassageID, chainIndex))
}

// releaseChainLocked cancels id's decode in the worker, frees its chain
// index back to the pool, and forgets its chain/buffer.
func (e *Engine) releaseChainLocked(id uuid.UUID) {
	idx, ok := e.entryChain[id]
	if !ok {
		return
	}
	e.worker.CancelDecode(id)
	delete(e.chains, id)
	delete(e.entryChain, id)
	e.freeChains = append(e.freeChains, idx)
	sort.Ints(e.freeChains)
}

// Play sets the mixer to Playing; if playback had been paused mid-passage
// (not mid-crossfade), it begins a resume-fade. Idempotent.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	wasPaused := e.mixer.State() == mixer.Paused
	e.mixer.Play()
	if wasPaused && !e.mixer.IsCrossfading() {
		e.mixer.StartResumeFade(e.resumeFadeDurationSamples, e.resumeFadeCurve)
	}
	e.bus.TryPublish(events.NewPlaybackStateEvent(events.StatePlaying, e.currentEntryIDLocked(), e.currentPositionMsLocked()))
}

// Pause sets the mixer to Paused. Idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mixer.Pause()
	e.bus.TryPublish(events.NewPlaybackStateEvent(events.StatePaused, e.currentEntryIDLocked(), e.currentPositionMsLocked()))
}

func (e *Engine) currentEntryIDLocked() *uuid.UUID {
	if len(e.queue) == 0 {
		return nil
	}
	id := e.queue[0].ID
	return &id
}

func (e *Engine) currentPositionMsLocked() int64 {
	return e.mixer.CurrentTick().ToMillis()
}

// ErrNoCurrentPassage is returned by Seek when nothing is currently
// playing.
var ErrNoCurrentPassage = wkmperrors.Newf("no current passage to seek").
	Component("engine").
	Category(wkmperrors.CategoryState).
	Build()

// SkipNext removes the current passage, advancing to whatever follows
// (normal advance flow, no crossfade). Idempotent when the queue is empty.
func (e *Engine) SkipNext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return
	}
	e.advanceQueueNormallyLocked("skipped")
}

// Seek recreates the current passage's chain bound to (start_tick +
// position_ms, end_tick), flushing decoder/resampler/fader state, and
// reschedules markers relative to the new origin (spec §4.9 seek()).
func (e *Engine) Seek(positionMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return ErrNoCurrentPassage
	}
	current := e.queue[0]
	chainIndex, ok := e.entryChain[current.ID]
	if !ok {
		return ErrNoCurrentPassage
	}

	newOrigin := tick.Tick(current.StartTick) + tick.FromMillis(positionMs)

	e.worker.CancelDecode(current.ID) // drops the stale chain/buffer registration
	if old, ok := e.chains[current.ID]; ok {
		_ = old.Close() // no-op if the worker already closed it above
	}
	buf := e.bufferManager.RegisterDecoding(current.ID)
	newChain, err := e.chainFactory(current, chainIndex, newOrigin, buf)
	if err != nil {
		return err
	}

	e.chains[current.ID] = newChain
	e.mixer.SetCurrentChain(newChain, newOrigin)
	e.scheduleMarkersForCurrentLocked(current, e.nextEntryLocked())

	e.worker.Submit(worker.Request{
		QueueEntryID: current.ID,
		Priority:     worker.PriorityImmediate,
		Build:        func() (*chain.Chain, error) { return newChain, nil },
	})
	return nil
}

// QueueSnapshot returns a copy of the in-memory queue ordering, for
// diagnostics and tests.
func (e *Engine) QueueSnapshot() []model.QueueEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.QueueEntry, len(e.queue))
	copy(out, e.queue)
	return out
}

// ValidationSnapshot gathers every tracked chain's decode/buffer counters
// plus the mixer's own cumulative total, for the validation service's
// periodic conservation check (spec §4.10). Call this instead of reaching
// into chains/mixer directly — they're private to preserve the
// assignment-policy invariants above.
func (e *Engine) ValidationSnapshot() validation.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	chains := make([]validation.ChainCounters, 0, len(e.chains))
	for _, c := range e.chains {
		chains = append(chains, validation.ChainCounters{
			ChainIndex:          c.ChainIndex,
			DecoderFrames:       c.DecodedFrames(),
			BufferFramesWritten: c.PushedFrames(),
			BufferFramesRead:    c.Buffer().FramesPopped(),
		})
	}

	return validation.Snapshot{
		Chains:        chains,
		MixerFrames:   e.mixer.TotalFramesMixed(),
		AudioExpected: e.mixer.State() == mixer.Playing && len(e.queue) > 0,
	}
}

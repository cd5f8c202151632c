// Package mixer implements the Mixer (spec §4.8): runs in the audio
// callback path, summing pre-faded chain buffers into the output
// stream. It performs zero fade arithmetic of its own — the fader
// stage already baked gain into every sample it pushed.
package mixer

import (
	"container/heap"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/playback/chain"
	"github.com/wkmp/core/internal/tick"
)

// State is the mixer's transport state.
type State int

const (
	Playing State = iota
	Paused
)

const (
	defaultDecayFactor float32 = 0.96875 // 31/32
	defaultDecayFloor  float32 = 0.0001778
)

// MarkerKind identifies what a scheduled marker signals when reached.
type MarkerKind int

const (
	MarkerPositionUpdate MarkerKind = iota
	MarkerStartCrossfade
	MarkerPassageComplete
)

// Marker is scheduled at an absolute tick on the current chain's
// timeline.
type Marker struct {
	Tick             tick.Tick
	Kind             MarkerKind
	NextQueueEntryID uuid.UUID // valid only for MarkerStartCrossfade
}

// SignalKind identifies what MixFrames is reporting back to the
// engine for this callback.
type SignalKind int

const (
	SignalPositionUpdate SignalKind = iota
	SignalStartCrossfade
	SignalPassageComplete
	SignalEndOfFileBeforeLeadOut
	SignalEndOfFile
)

// Signal is one event MixFrames reports for the engine to act on.
type Signal struct {
	Kind                 SignalKind
	PositionMs           int64
	NextQueueEntryID     uuid.UUID
	PlannedCrossfadeTick tick.Tick
	UnreachableMarkers   []Marker
}

type markerHeap []Marker

func (h markerHeap) Len() int           { return len(h) }
func (h markerHeap) Less(i, j int) bool { return h[i].Tick < h[j].Tick }
func (h markerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *markerHeap) Push(x any)        { *h = append(*h, x.(Marker)) }
func (h *markerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type resumeFade struct {
	durationSamples int64
	curve           curve.FadeCurve
	samplesSince    int64
}

// Mixer owns transport state, the current/next chain pair, the
// marker schedule for the current chain, and the pause-decay/
// resume-fade envelopes.
type Mixer struct {
	mu sync.Mutex

	state        State
	sampleRate   int
	masterVolume float32
	decayFactor  float32
	decayFloor   float32

	lastSample [2]float32
	resume     *resumeFade

	currentChain *chain.Chain
	nextChain    *chain.Chain
	crossfading  bool

	// originTick is the absolute passage tick corresponding to
	// currentSampleIndex == 0. Needed because currentChain rarely
	// starts at the passage's own tick zero (non-zero start_tick,
	// or a seek into the middle of the passage).
	originTick         tick.Tick
	currentSampleIndex int64
	markers            markerHeap

	// totalFramesMixed is a session-lifetime counter of frames actually
	// read from chain buffers (not pause-decay silence), independent of
	// currentSampleIndex, which resets on every chain transition. The
	// validation service compares this against decoder/buffer counters.
	totalFramesMixed int64
}

// New constructs a Mixer at sampleRate. decayFactor/decayFloor of 0
// use the resolved defaults (31/32 and 1.778e-4).
func New(sampleRate int, decayFactor, decayFloor float32) *Mixer {
	if decayFactor == 0 {
		decayFactor = defaultDecayFactor
	}
	if decayFloor == 0 {
		decayFloor = defaultDecayFloor
	}
	return &Mixer{
		sampleRate:   sampleRate,
		masterVolume: 1.0,
		decayFactor:  decayFactor,
		decayFloor:   decayFloor,
	}
}

func (m *Mixer) SetMasterVolume(v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masterVolume = v
}

func (m *Mixer) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Playing
}

func (m *Mixer) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Paused
}

func (m *Mixer) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetCurrentChain binds the chain the mixer reads from in single-
// passage mode, resetting position and markers. originTick is the
// absolute passage tick the chain's first sample represents (the
// passage's start_tick on normal assignment, or the seek target on a
// seek).
func (m *Mixer) SetCurrentChain(c *chain.Chain, originTick tick.Tick) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentChain = c
	m.originTick = originTick
	m.currentSampleIndex = 0
	m.markers = nil
	m.crossfading = false
	m.nextChain = nil
}

// SetNextChain assigns the chain to read from once a crossfade
// activates, without activating it.
func (m *Mixer) SetNextChain(c *chain.Chain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChain = c
}

// ActivateCrossfade switches the mixer into crossfade-overlap mode,
// reading from both currentChain and nextChain. Takes effect as of
// the next MixFrames call.
func (m *Mixer) ActivateCrossfade() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextChain != nil {
		m.crossfading = true
	}
}

// AdvancePastCrossfade promotes nextChain to currentChain, clears
// crossfade mode, and resets the position/marker schedule for the
// (now current) chain. originTick is the new current chain's own
// start_tick. The engine is responsible for assigning a new nextChain
// and markers afterward.
func (m *Mixer) AdvancePastCrossfade(originTick tick.Tick) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentChain = m.nextChain
	m.nextChain = nil
	m.crossfading = false
	m.originTick = originTick
	m.currentSampleIndex = 0
	m.markers = nil
}

// IsCrossfading reports whether the mixer is currently in
// crossfade-overlap mode.
func (m *Mixer) IsCrossfading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crossfading
}

// ScheduleMarker adds a marker to the current chain's schedule.
func (m *Mixer) ScheduleMarker(marker Marker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	heap.Push(&m.markers, marker)
}

// ClearMarkers discards all scheduled markers (used on seek).
func (m *Mixer) ClearMarkers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = nil
}

// StartResumeFade begins a mixer-level multiplicative fade applied
// after master volume, orthogonal to per-passage baked-in fades.
func (m *Mixer) StartResumeFade(durationSamples int64, fadeCurve curve.FadeCurve) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if durationSamples <= 0 {
		m.resume = nil
		return
	}
	m.resume = &resumeFade{durationSamples: durationSamples, curve: fadeCurve}
}

// TotalFramesMixed returns the session-lifetime count of frames actually
// sourced from chain buffers (excludes pause-decay silence).
func (m *Mixer) TotalFramesMixed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalFramesMixed
}

// CurrentTick returns the current passage's absolute playhead position.
func (m *Mixer) CurrentTick() tick.Tick {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.originTick + tick.FromSampleIndex(m.currentSampleIndex, m.sampleRate)
}

// MixFrames renders n output frames (interleaved stereo), returning
// any signals the engine should act on.
func (m *Mixer) MixFrames(n int) ([]float32, []Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Paused {
		return m.renderPauseDecay(n), nil
	}

	signals := m.collectDueMarkers(n)

	var out []float32
	if m.crossfading && m.nextChain != nil {
		out, signals = m.mixCrossfadeLocked(n, signals)
	} else {
		out, signals = m.mixSingleLocked(n, signals)
	}

	m.applyMasterVolumeAndResumeFadeLocked(out)

	if len(out) >= 2 {
		m.lastSample[0] = out[len(out)-2]
		m.lastSample[1] = out[len(out)-1]
	}
	m.currentSampleIndex += int64(n)
	return out, signals
}

func (m *Mixer) renderPauseDecay(n int) []float32 {
	out := make([]float32, n*2)
	l, r := m.lastSample[0], m.lastSample[1]
	for i := 0; i < n; i++ {
		l *= m.decayFactor
		r *= m.decayFactor
		if float32(math.Abs(float64(l))) < m.decayFloor {
			l = 0
		}
		if float32(math.Abs(float64(r))) < m.decayFloor {
			r = 0
		}
		out[2*i] = l
		out[2*i+1] = r
	}
	m.lastSample[0], m.lastSample[1] = l, r
	return out
}

// collectDueMarkers pops markers whose tick falls within
// [currentTick, currentTick+n) and converts them to signals.
func (m *Mixer) collectDueMarkers(n int) []Signal {
	endTick := m.originTick + tick.FromSampleIndex(m.currentSampleIndex+int64(n), m.sampleRate)

	var signals []Signal
	for len(m.markers) > 0 && m.markers[0].Tick < endTick {
		marker := heap.Pop(&m.markers).(Marker)
		switch marker.Kind {
		case MarkerPositionUpdate:
			signals = append(signals, Signal{Kind: SignalPositionUpdate, PositionMs: marker.Tick.ToMillis()})
		case MarkerStartCrossfade:
			signals = append(signals, Signal{Kind: SignalStartCrossfade, NextQueueEntryID: marker.NextQueueEntryID})
		case MarkerPassageComplete:
			signals = append(signals, Signal{Kind: SignalPassageComplete})
		}
	}
	return signals
}

func (m *Mixer) mixSingleLocked(n int, signals []Signal) ([]float32, []Signal) {
	out := make([]float32, n*2)
	if m.currentChain == nil {
		return out, signals
	}
	buf := m.currentChain.Buffer()
	popped := buf.Pop(n)
	copy(out, popped)

	framesRead := len(popped) / 2
	m.totalFramesMixed += int64(framesRead)
	if framesRead < n && buf.Drained() {
		signals = append(signals, m.eofSignals()...)
	}
	return out, signals
}

func (m *Mixer) mixCrossfadeLocked(n int, signals []Signal) ([]float32, []Signal) {
	out := make([]float32, n*2)
	if m.currentChain == nil || m.nextChain == nil {
		return out, signals
	}

	a := m.currentChain.Buffer().Pop(n)
	b := m.nextChain.Buffer().Pop(n)

	framesA := len(a) / 2
	framesB := len(b) / 2
	minFrames := framesA
	if framesB < minFrames {
		minFrames = framesB
	}

	for i := 0; i < minFrames*2; i++ {
		out[i] = a[i] + b[i]
	}
	m.totalFramesMixed += int64(minFrames)

	if framesA < n && m.currentChain.Buffer().Drained() {
		signals = append(signals, m.eofSignals()...)
	}
	return out, signals
}

// eofSignals computes the end-of-file reconciliation signal for the
// current chain's exhausted, finalized buffer: any markers still
// pending are unreachable; if one of them is a StartCrossfade, signal
// EndOfFileBeforeLeadOut, otherwise EndOfFile.
func (m *Mixer) eofSignals() []Signal {
	if len(m.markers) == 0 {
		return []Signal{{Kind: SignalEndOfFile}}
	}

	unreachable := make([]Marker, len(m.markers))
	copy(unreachable, m.markers)
	m.markers = nil

	for _, marker := range unreachable {
		if marker.Kind == MarkerStartCrossfade {
			return []Signal{{
				Kind:                 SignalEndOfFileBeforeLeadOut,
				PlannedCrossfadeTick: marker.Tick,
				UnreachableMarkers:   unreachable,
				NextQueueEntryID:     marker.NextQueueEntryID,
			}}
		}
	}
	return []Signal{{Kind: SignalEndOfFile, UnreachableMarkers: unreachable}}
}

func (m *Mixer) applyMasterVolumeAndResumeFadeLocked(out []float32) {
	if m.resume == nil {
		if m.masterVolume == 1.0 {
			return
		}
		for i := range out {
			out[i] *= m.masterVolume
		}
		return
	}

	for i := 0; i+1 < len(out); i += 2 {
		p := float32(m.resume.samplesSince) / float32(m.resume.durationSamples)
		if p > 1 {
			p = 1
		}
		gain := m.masterVolume * m.resume.curve.CalculateFadeIn(p)
		out[i] *= gain
		out[i+1] *= gain
		m.resume.samplesSince++
	}
	if m.resume.samplesSince >= m.resume.durationSamples {
		m.resume = nil
	}
}

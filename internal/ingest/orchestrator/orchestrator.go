// Package orchestrator implements the Workflow Orchestrator (spec §4.17):
// it sequences one import session through scanning, segmenting,
// fingerprinting, identifying, analyzing, and flavoring, wiring together
// every other internal/ingest package and persisting the result through
// internal/store. Per-song failures are isolated so one bad file never
// aborts the session; only orchestrator-level failures (e.g. the database
// going away) transition the session itself to Failed.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/acousticbrainz"
	"github.com/wkmp/core/internal/acoustid"
	"github.com/wkmp/core/internal/cpuspec"
	"github.com/wkmp/core/internal/curve"
	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/events"
	"github.com/wkmp/core/internal/ingest/amplitude"
	"github.com/wkmp/core/internal/ingest/boundary"
	"github.com/wkmp/core/internal/ingest/extractors"
	"github.com/wkmp/core/internal/ingest/fusion"
	"github.com/wkmp/core/internal/ingest/loader"
	"github.com/wkmp/core/internal/ingest/scanner"
	"github.com/wkmp/core/internal/ingest/session"
	"github.com/wkmp/core/internal/ingest/validators"
	"github.com/wkmp/core/internal/logging"
	"github.com/wkmp/core/internal/model"
	"github.com/wkmp/core/internal/musicbrainz"
	"github.com/wkmp/core/internal/store"
	"github.com/wkmp/core/internal/tick"
)

// Config parameterizes one Orchestrator.
type Config struct {
	RootFolder         string
	ExtractionWorkers  int // 0 uses cpuspec's optimal thread count, or runtime.NumCPU()+1 when that is unknown
	ProgressThrottle   events.ThrottleConfig
	SilenceThresholdDB float64
	MinGapSeconds      float64
	MinPassageSeconds  float64
	LeadInThresholdDB  float64
	LeadOutThresholdDB float64
}

func (c *Config) applyDefaults() {
	if c.ExtractionWorkers <= 0 {
		if cores := cpuspec.GetCPUSpec().GetOptimalThreadCount(); cores > 0 {
			c.ExtractionWorkers = cores
		} else {
			c.ExtractionWorkers = runtime.NumCPU() + 1
		}
	}
	if c.ProgressThrottle.Interval <= 0 {
		c.ProgressThrottle = events.DefaultThrottleConfig()
	}
}

// Orchestrator sequences import sessions. Its fallible network extractors
// (AcoustID, MusicBrainz, AcousticBrainz) are optional: a nil client simply
// means that extractor contributes nothing, rather than failing the run.
type Orchestrator struct {
	cfg      Config
	store    *store.Store
	sessions *session.Manager
	bus      *events.EventBus
	log      *slog.Logger
	throttle *events.IntervalThrottler
	fingerPr *extractors.Fingerprinter
	acoustID *extractors.AcoustIDExtractor
	mbExt    *extractors.MusicBrainzExtractor
	abExt    *extractors.AcousticBrainzExtractor
	passive  []extractors.Extractor // id3, genre mapper, audio features, essentia
}

// New builds an Orchestrator. acoustIDClient/mbClient/abClient may each be
// nil when the corresponding network service isn't configured; the
// orchestrator degrades gracefully to the passive, file-local extractors.
func New(cfg Config, st *store.Store, bus *events.EventBus, acoustIDClient *acoustid.Client, mbClient *musicbrainz.Client, abClient *acousticbrainz.Client) *Orchestrator {
	cfg.applyDefaults()

	o := &Orchestrator{
		cfg:      cfg,
		store:    st,
		sessions: session.New(st.DB),
		bus:      bus,
		log:      logging.ForService("ingest-orchestrator"),
		throttle: events.NewIntervalThrottler(cfg.ProgressThrottle),
		fingerPr: extractors.NewFingerprinter(),
		passive: []extractors.Extractor{
			extractors.NewID3Reader(),
			extractors.NewGenreMapper(),
			extractors.NewAudioFeatures(),
			extractors.NewEssentia(),
		},
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if acoustIDClient != nil {
		o.acoustID = extractors.NewAcoustIDExtractor(acoustIDClient)
	}
	if mbClient != nil {
		o.mbExt = extractors.NewMusicBrainzExtractor(mbClient)
	}
	if abClient != nil {
		o.abExt = extractors.NewAcousticBrainzExtractor(abClient)
	}
	return o
}

// ForceCancelOrphaned force-cancels any session left non-terminal from a
// previous process that died mid-run. Call once at startup, before Run.
func (o *Orchestrator) ForceCancelOrphaned() (int, error) {
	return o.sessions.ForceCancelOrphaned()
}

// Run drives one import session over rootFolder from Scanning through
// Completed (or Failed on an orchestrator-level error).
func (o *Orchestrator) Run(ctx context.Context, rootFolder string) (*model.ImportSession, error) {
	sess, err := o.sessions.Create(rootFolder)
	if err != nil {
		return nil, err
	}
	o.bus.TryPublish(events.NewSessionStartedEvent(sess.ID, rootFolder))
	o.log.Info("import session started", "session_id", sess.ID, "root", rootFolder)

	scanResult, err := o.runScanning(ctx, sess)
	if err != nil {
		o.fail(sess, err)
		return sess, err
	}

	var totalSuccess, totalFailure, totalSkip int
	for _, vf := range scanResult.Verified {
		success, failure, skip := o.processFile(ctx, sess, vf)
		totalSuccess += success
		totalFailure += failure
		totalSkip += skip
	}

	if err := o.sessions.TransitionTo(sess, model.ImportCompleted); err != nil {
		o.fail(sess, err)
		return sess, err
	}
	o.bus.TryPublish(events.NewSessionCompleteEvent(sess.ID, len(scanResult.Verified)))
	o.log.Info("import session complete", "session_id", sess.ID, "success", totalSuccess, "failure", totalFailure, "skip", totalSkip)
	return sess, nil
}

// publishThrottled emits an intra-song progress event at most once per
// o.cfg.ProgressThrottle.Interval per (session, kind) pair, so a session
// with thousands of passages doesn't flood subscribers with per-passage
// fusion/validation chatter. Session- and song-boundary events bypass this
// and publish immediately via o.bus.TryPublish directly.
func (o *Orchestrator) publishThrottled(sessionID uuid.UUID, kind string, ev events.Event) {
	key := sessionID.String() + ":" + kind
	if o.throttle.Allow(key) {
		o.bus.TryPublish(ev)
	}
}

func (o *Orchestrator) fail(sess *model.ImportSession, cause error) {
	_ = o.sessions.AppendError(sess, cause.Error())
	_ = o.sessions.TransitionTo(sess, model.ImportFailed)
	o.bus.TryPublish(events.NewSessionFailedEvent(sess.ID, cause.Error()))
	o.log.Error("import session failed", "session_id", sess.ID, "error", cause)
}

func (o *Orchestrator) runScanning(ctx context.Context, sess *model.ImportSession) (scanner.Result, error) {
	sc := scanner.New(scanner.Config{RootFolder: sess.RootFolder}, o.bus)
	result, err := sc.Scan(ctx, sess.ID)
	if err != nil {
		return scanner.Result{}, err
	}
	if err := o.sessions.TransitionTo(sess, model.ImportExtracting); err != nil {
		return scanner.Result{}, err
	}
	return result, nil
}

// processFile segments one verified file into passages and runs each
// through the full per-song pipeline, isolating failures per passage. It
// returns the success/failure/skip counts for the FileCompleteEvent.
func (o *Orchestrator) processFile(ctx context.Context, sess *model.ImportSession, vf scanner.VerifiedFile) (success, failure, skip int) {
	hash, err := hashFile(vf.Path)
	if err != nil {
		_ = o.sessions.AppendError(sess, fmt.Sprintf("%s: %v", vf.Path, err))
		o.log.Warn("failed to hash file, skipping", "path", vf.Path, "error", err)
		return 0, 0, 1
	}

	fullLoad, err := loader.Load(vf.Path, 0, 0, loader.Config{})
	if err != nil {
		_ = o.sessions.AppendError(sess, fmt.Sprintf("%s: %v", vf.Path, err))
		o.log.Warn("failed to decode file, skipping", "path", vf.Path, "error", err)
		return 0, 0, 1
	}

	audioFile := &model.AudioFile{
		Hash:       hash,
		Path:       vf.Path,
		Format:     vf.Format,
		SampleRate: fullLoad.SampleRate,
		Channels:   2,
		ByteSize:   vf.Size,
	}
	if err := o.store.UpsertAudioFile(audioFile); err != nil {
		_ = o.sessions.AppendError(sess, fmt.Sprintf("%s: %v", vf.Path, err))
		return 0, 0, 1
	}

	if err := o.sessions.TransitionTo(sess, model.ImportSegmenting); err != nil {
		o.log.Warn("session transition failed", "error", err)
	}
	segments := boundary.Detect(fullLoad.Samples, fullLoad.SampleRate, fullLoad.StartTick, boundary.Config{
		SilenceThresholdDB: o.cfg.SilenceThresholdDB,
		MinGapSeconds:      o.cfg.MinGapSeconds,
		MinPassageSeconds:  o.cfg.MinPassageSeconds,
	})
	o.bus.TryPublish(events.NewPassagesDiscoveredEvent(sess.ID, vf.Path, len(segments)))

	for _, seg := range segments {
		if err := o.processPassage(ctx, sess, audioFile, fullLoad, seg); err != nil {
			failure++
			continue
		}
		success++
	}

	o.bus.TryPublish(events.NewFileCompleteEvent(sess.ID, vf.Path, success, failure, skip))
	return success, failure, skip
}

// processPassage runs fingerprinting, identification (two extraction
// passes around MBID resolution), fusion, validation, and amplitude
// analysis for a single candidate passage, then persists the result.
func (o *Orchestrator) processPassage(ctx context.Context, sess *model.ImportSession, audioFile *model.AudioFile, fullLoad loader.Result, seg boundary.Passage) (err error) {
	passageID := uuid.New()
	o.bus.TryPublish(events.NewSongStartedEvent(sess.ID, passageID))
	defer func() {
		if err != nil {
			o.bus.TryPublish(events.NewSongFailedEvent(sess.ID, passageID, err.Error()))
			_ = o.sessions.AppendError(sess, fmt.Sprintf("passage %s: %v", passageID, err))
		} else {
			o.bus.TryPublish(events.NewSongCompleteEvent(sess.ID, passageID))
		}
	}()

	pcm := slicePCM(fullLoad, seg.StartTick, seg.EndTick)
	durationSec := int((seg.EndTick - seg.StartTick).ToSeconds())

	if err := o.sessions.TransitionTo(sess, model.ImportFingerprinting); err != nil {
		o.log.Warn("session transition failed", "error", err)
	}
	pctx := extractors.Context{
		PassageID:   passageID,
		FilePath:    audioFile.Path,
		StartTick:   int64(seg.StartTick),
		EndTick:     int64(seg.EndTick),
		SampleRate:  fullLoad.SampleRate,
		PCM:         pcm,
		DurationSec: durationSec,
	}
	if fp, _, fpErr := o.fingerPr.Fingerprint(ctx, audioFile.Path, seg.StartTick.ToSeconds(), (seg.EndTick - seg.StartTick).ToSeconds()); fpErr == nil {
		pctx.Fingerprint = fp
	} else {
		o.log.Debug("fingerprinting unavailable", "path", audioFile.Path, "error", fpErr)
	}

	if err := o.sessions.TransitionTo(sess, model.ImportIdentifying); err != nil {
		o.log.Warn("session transition failed", "error", err)
	}
	firstPass := o.runExtractors(ctx, sess.ID, pctx, true)
	fused := fusion.Fuse(firstPass)

	// Second pass: once fusion resolves an MBID, MusicBrainz and
	// AcousticBrainz get a chance to contribute (spec §4.13).
	allResults := firstPass
	if fused.Identity.Resolved {
		pctx.KnownMBID = fused.Identity.MusicBrainzID
		secondPass := o.runExtractors(ctx, sess.ID, pctx, false)
		allResults = append(allResults, secondPass...)
		fused = fusion.Fuse(allResults)
	}
	o.publishThrottled(sess.ID, "fusion-complete", events.NewFusionCompleteEvent(sess.ID, passageID, validators.Quality(validators.InputFromFused(fused, fusion.FlavorCompleteness(allResults)))))

	if err := o.sessions.TransitionTo(sess, model.ImportAnalyzing); err != nil {
		o.log.Warn("session transition failed", "error", err)
	}
	ampResult := amplitude.Analyze(pcm, fullLoad.SampleRate, seg.StartTick, amplitude.Config{
		LeadInThresholdDB:  o.cfg.LeadInThresholdDB,
		LeadOutThresholdDB: o.cfg.LeadOutThresholdDB,
	})

	if err := o.sessions.TransitionTo(sess, model.ImportFlavoring); err != nil {
		o.log.Warn("session transition failed", "error", err)
	}
	flavorCompleteness := fusion.FlavorCompleteness(allResults)
	valResult := validators.Validate(validators.InputFromFused(fused, flavorCompleteness))
	o.publishThrottled(sess.ID, "validation-complete", events.NewValidationCompleteEvent(sess.ID, passageID, string(valResult.Status)))

	if valResult.Status == validators.StatusFail {
		o.log.Warn("passage failed validation, persisting with low quality score",
			"passage_id", passageID, "quality", valResult.Quality)
	}

	return o.persistPassage(sess, passageID, audioFile, seg, ampResult, fused, allResults)
}

// runExtractors fans out the passive extractors (and, when configured, the
// network identity extractor on the first pass or the MusicBrainz/
// AcousticBrainz extractors once an MBID is known) across ExtractionWorkers
// goroutines, collecting whichever succeed. A failing extractor never
// blocks the others (spec §4.13).
func (o *Orchestrator) runExtractors(ctx context.Context, sessionID uuid.UUID, pctx extractors.Context, firstPass bool) []extractors.Result {
	var list []extractors.Extractor
	list = append(list, o.passive...)
	if firstPass {
		if o.acoustID != nil && pctx.Fingerprint != "" {
			list = append(list, o.acoustID)
		}
	} else {
		if o.mbExt != nil {
			list = append(list, o.mbExt)
		}
		if o.abExt != nil {
			list = append(list, o.abExt)
		}
	}

	sem := make(chan struct{}, o.cfg.ExtractionWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []extractors.Result
	succeeded, failed := 0, 0

	for _, ex := range list {
		ex := ex
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := ex.Extract(ctx, pctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				o.log.Debug("extractor failed", "extractor", ex.Name(), "error", err)
				return
			}
			succeeded++
			results = append(results, res)
		}()
	}
	wg.Wait()
	o.publishThrottled(sessionID, "extraction-complete", events.NewExtractionCompleteEvent(sessionID, pctx.PassageID, succeeded, failed))
	return results
}

// persistPassage writes the passage, its source audio file link, and the
// fused song (with provenance) to the store.
func (o *Orchestrator) persistPassage(sess *model.ImportSession, passageID uuid.UUID, audioFile *model.AudioFile, seg boundary.Passage, amp amplitude.Result, fused fusion.Fused, results []extractors.Result) error {
	passage := &model.Passage{
		ID:           passageID,
		FileHash:     audioFile.Hash,
		StartTick:    int64(seg.StartTick),
		EndTick:      endTickPtr(seg.EndTick),
		FadeInTick:   int64(seg.StartTick),
		LeadInTick:   int64(amp.LeadInTick),
		LeadOutTick:  int64(amp.LeadOutTick),
		FadeOutTick:  int64(seg.EndTick),
		FadeInCurve:  curve.Default,
		FadeOutCurve: curve.Default,
	}
	if err := o.store.CreatePassage(passage); err != nil {
		return err
	}

	songID := uuid.New()
	if fused.Identity.Resolved {
		if existing, err := o.store.FindSongByMBID(fused.Identity.MusicBrainzID); err == nil {
			songID = existing.ID
		}
	}
	flavorJSON, err := json.Marshal(fused.Flavor)
	if err != nil {
		return err
	}
	song := &model.Song{
		ID:            songID,
		Title:         fused.Metadata.Title,
		Artist:        fused.Metadata.Artist,
		Album:         fused.Metadata.Album,
		MusicBrainzID: fused.Identity.MusicBrainzID,
		FlavorVector:  string(flavorJSON),
		QualityScore:  validators.Quality(validators.InputFromFused(fused, fusion.FlavorCompleteness(results))),
	}
	if err := o.store.UpsertSong(song); err != nil {
		return err
	}
	if err := o.store.LinkPassageSong(passage.ID, song.ID, passage.StartTick, passage.EndTick, 0); err != nil {
		return err
	}

	for _, r := range results {
		if r.Metadata != nil {
			if r.Metadata.Title != "" {
				_ = o.sessions.RecordProvenance(sess.ID, passageID, r.Source, "title", r.Metadata.Title, r.Confidence, r.Metadata.Title == fused.Metadata.Title)
			}
			if r.Metadata.Artist != "" {
				_ = o.sessions.RecordProvenance(sess.ID, passageID, r.Source, "artist", r.Metadata.Artist, r.Confidence, r.Metadata.Artist == fused.Metadata.Artist)
			}
		}
		if r.Identity != nil && r.Identity.MusicBrainzID != "" {
			_ = o.sessions.RecordProvenance(sess.ID, passageID, r.Source, "musicbrainz_id", r.Identity.MusicBrainzID, r.Confidence, r.Identity.MusicBrainzID == fused.Identity.MusicBrainzID)
		}
	}

	return nil
}

func endTickPtr(t tick.Tick) *int64 {
	v := int64(t)
	return &v
}

// slicePCM extracts the interleaved-stereo frame range [start, end) of
// fullLoad's buffer corresponding to a passage's absolute tick bounds.
func slicePCM(fullLoad loader.Result, start, end tick.Tick) []float32 {
	startFrame := (start - fullLoad.StartTick).ToSampleIndex(fullLoad.SampleRate)
	endFrame := (end - fullLoad.StartTick).ToSampleIndex(fullLoad.SampleRate)
	totalFrames := int64(len(fullLoad.Samples) / 2)
	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame > totalFrames {
		endFrame = totalFrames
	}
	if endFrame <= startFrame {
		return nil
	}
	return fullLoad.Samples[startFrame*2 : endFrame*2]
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", wkmperrors.New(err).Component("ingest-orchestrator").Category(wkmperrors.CategoryFileIO).Context("operation", "hash_file").Context("path", path).Build()
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", wkmperrors.New(err).Component("ingest-orchestrator").Category(wkmperrors.CategoryFileIO).Context("operation", "hash_file").Context("path", path).Build()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

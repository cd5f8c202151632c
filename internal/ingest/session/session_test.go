package session

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/wkmp/core/internal/model"
	"github.com/wkmp/core/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "wkmp.db")
	s, err := store.Open(dbPath, 1, false)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s.DB)
}

func TestCreatePersistsInitialScanningState(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.Create("/music")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.State != model.ImportScanning {
		t.Errorf("expected initial state Scanning, got %v", sess.State)
	}
	if sess.EndedAt != nil {
		t.Error("expected EndedAt nil for a fresh session")
	}
}

func TestTransitionToMovesForward(t *testing.T) {
	m := newTestManager(t)
	sess, _ := m.Create("/music")

	if err := m.TransitionTo(sess, model.ImportExtracting); err != nil {
		t.Fatalf("forward transition failed: %v", err)
	}
	if sess.State != model.ImportExtracting {
		t.Errorf("expected Extracting, got %v", sess.State)
	}
}

func TestTransitionToRejectsBackwardMove(t *testing.T) {
	m := newTestManager(t)
	sess, _ := m.Create("/music")
	_ = m.TransitionTo(sess, model.ImportAnalyzing)

	if err := m.TransitionTo(sess, model.ImportExtracting); err == nil {
		t.Error("expected backward transition to be rejected")
	}
}

func TestTransitionToCompletedStampsEndedAt(t *testing.T) {
	m := newTestManager(t)
	sess, _ := m.Create("/music")
	_ = m.TransitionTo(sess, model.ImportExtracting)
	_ = m.TransitionTo(sess, model.ImportSegmenting)
	_ = m.TransitionTo(sess, model.ImportFingerprinting)
	_ = m.TransitionTo(sess, model.ImportIdentifying)
	_ = m.TransitionTo(sess, model.ImportAnalyzing)
	_ = m.TransitionTo(sess, model.ImportFlavoring)

	if err := m.TransitionTo(sess, model.ImportCompleted); err != nil {
		t.Fatalf("transition to Completed failed: %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("expected EndedAt to be set on reaching a terminal state")
	}
}

func TestTransitionToRejectsMovingOutOfTerminalState(t *testing.T) {
	m := newTestManager(t)
	sess, _ := m.Create("/music")
	_ = m.TransitionTo(sess, model.ImportFailed)

	if err := m.TransitionTo(sess, model.ImportExtracting); err == nil {
		t.Error("expected transition out of a terminal state to be rejected")
	}
}

func TestAppendErrorAccumulates(t *testing.T) {
	m := newTestManager(t)
	sess, _ := m.Create("/music")

	if err := m.AppendError(sess, "first failure"); err != nil {
		t.Fatalf("AppendError failed: %v", err)
	}
	if err := m.AppendError(sess, "second failure"); err != nil {
		t.Fatalf("AppendError failed: %v", err)
	}

	errs, err := Errors(sess)
	if err != nil {
		t.Fatalf("Errors decode failed: %v", err)
	}
	if len(errs) != 2 || errs[0] != "first failure" || errs[1] != "second failure" {
		t.Errorf("unexpected error list: %v", errs)
	}
}

func TestPhasesRoundTrip(t *testing.T) {
	sess := &model.ImportSession{Phases: "{}"}
	phases, err := Phases(sess)
	if err != nil {
		t.Fatalf("Phases decode failed: %v", err)
	}
	phases["scanning"] = model.PhaseCounters{Success: 5, Failure: 1}

	if err := SetPhases(sess, phases); err != nil {
		t.Fatalf("SetPhases failed: %v", err)
	}

	roundTripped, err := Phases(sess)
	if err != nil {
		t.Fatalf("Phases re-decode failed: %v", err)
	}
	if roundTripped["scanning"].Success != 5 || roundTripped["scanning"].Failure != 1 {
		t.Errorf("unexpected round-tripped phase counters: %+v", roundTripped["scanning"])
	}
}

func TestRecordProvenancePersists(t *testing.T) {
	m := newTestManager(t)
	sess, _ := m.Create("/music")
	passageID := uuid.New()

	if err := m.RecordProvenance(sess.ID, passageID, "id3", "title", "Song Title", 0.7, true); err != nil {
		t.Fatalf("RecordProvenance failed: %v", err)
	}

	var rows []model.ImportProvenance
	if err := m.db.Where("passage_id = ?", passageID).Find(&rows).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 || rows[0].SourceName != "id3" || rows[0].Confidence != 0.7 {
		t.Errorf("unexpected provenance rows: %+v", rows)
	}
}

func TestForceCancelOrphanedCancelsNonTerminalSessions(t *testing.T) {
	m := newTestManager(t)
	sess1, _ := m.Create("/music/a")
	sess2, _ := m.Create("/music/b")
	_ = m.TransitionTo(sess2, model.ImportCompleted)

	count, err := m.ForceCancelOrphaned()
	if err != nil {
		t.Fatalf("ForceCancelOrphaned failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one orphaned session cancelled, got %d", count)
	}

	var reloaded model.ImportSession
	if err := m.db.First(&reloaded, "id = ?", sess1.ID).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.State != model.ImportCancelled {
		t.Errorf("expected orphaned session to be Cancelled, got %v", reloaded.State)
	}
}

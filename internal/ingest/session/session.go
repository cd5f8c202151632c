// Package session wraps persistence of the ingest pipeline's Import
// Session and Import Provenance rows (spec's "Session Store" component):
// forward-only state transitions, phase counters, the accumulated error
// list, and crash-recovery of sessions orphaned by a process that died
// mid-run.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/model"
)

// forwardStates is the strictly-forward order sessions move through;
// TransitionTo rejects any move that isn't to a later (or equal) index,
// mirroring the invariant spec's Import Session data-model entry states:
// "state transitions move strictly forward to a terminal state."
var forwardStates = []model.ImportSessionState{
	model.ImportScanning,
	model.ImportExtracting,
	model.ImportSegmenting,
	model.ImportFingerprinting,
	model.ImportIdentifying,
	model.ImportAnalyzing,
	model.ImportFlavoring,
	model.ImportCompleted,
}

func stateIndex(s model.ImportSessionState) int {
	for i, candidate := range forwardStates {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Manager persists and advances import sessions. It takes the shared
// *gorm.DB handle directly (the same one internal/store.Store.DB exposes)
// rather than the whole store package, so tests can exercise it against a
// bare in-memory database.
type Manager struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Create persists a new session in the initial Scanning state.
func (m *Manager) Create(rootFolder string) (*model.ImportSession, error) {
	sess := &model.ImportSession{
		ID:         uuid.New(),
		RootFolder: rootFolder,
		State:      model.ImportScanning,
		Phases:     "{}",
		Errors:     "[]",
		StartedAt:  time.Now(),
	}
	if err := m.db.Create(sess).Error; err != nil {
		return nil, wkmperrors.New(err).Component("ingest-session").Category(wkmperrors.CategoryDatabase).Context("operation", "create_session").Build()
	}
	return sess, nil
}

// Save persists the session row as-is (used after in-place mutation of
// phase counters or the errors list that doesn't itself change state).
func (m *Manager) Save(sess *model.ImportSession) error {
	if err := m.db.Save(sess).Error; err != nil {
		return wkmperrors.New(err).Component("ingest-session").Category(wkmperrors.CategoryDatabase).Context("operation", "save_session").Context("session_id", sess.ID.String()).Build()
	}
	return nil
}

// TransitionTo moves sess to newState, rejecting any backward or
// terminal-to-nonterminal move, stamping EndedAt the moment the new state
// is itself terminal, and persisting the row.
func (m *Manager) TransitionTo(sess *model.ImportSession, newState model.ImportSessionState) error {
	if sess.State.IsTerminal() {
		return wkmperrors.Newf("session %s already in terminal state %s", sess.ID, sess.State).
			Component("ingest-session").Category(wkmperrors.CategoryIngestPhase).
			Context("operation", "transition_session").
			Build()
	}
	if newState != model.ImportFailed && newState != model.ImportCancelled {
		curIdx, newIdx := stateIndex(sess.State), stateIndex(newState)
		if curIdx < 0 || newIdx < 0 || newIdx < curIdx {
			return wkmperrors.Newf("invalid session transition %s -> %s", sess.State, newState).
				Component("ingest-session").Category(wkmperrors.CategoryIngestPhase).
				Context("operation", "transition_session").
				Context("session_id", sess.ID.String()).
				Build()
		}
	}

	sess.State = newState
	if newState.IsTerminal() {
		now := time.Now()
		sess.EndedAt = &now
	}
	return m.Save(sess)
}

// Phases decodes the session's JSON-encoded per-phase counters.
func Phases(sess *model.ImportSession) (map[string]model.PhaseCounters, error) {
	out := map[string]model.PhaseCounters{}
	if sess.Phases == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(sess.Phases), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetPhases encodes phases back onto the session row (call Save afterward
// to persist).
func SetPhases(sess *model.ImportSession, phases map[string]model.PhaseCounters) error {
	b, err := json.Marshal(phases)
	if err != nil {
		return err
	}
	sess.Phases = string(b)
	return nil
}

// Errors decodes the session's JSON-encoded error list.
func Errors(sess *model.ImportSession) ([]string, error) {
	var out []string
	if sess.Errors == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(sess.Errors), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendError appends msg to the session's error list and re-encodes it.
func (m *Manager) AppendError(sess *model.ImportSession, msg string) error {
	errs, err := Errors(sess)
	if err != nil {
		return err
	}
	errs = append(errs, msg)
	b, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	sess.Errors = string(b)
	return m.Save(sess)
}

// RecordProvenance persists one extractor's contribution to a fused
// passage, for audit and confidence-weighted fusion review (spec's
// Import Provenance attributes).
func (m *Manager) RecordProvenance(sessionID, passageID uuid.UUID, sourceName, field, value string, confidence float64, accepted bool) error {
	rec := &model.ImportProvenance{
		ImportSession: sessionID,
		PassageID:     passageID,
		SourceName:    sourceName,
		Field:         field,
		Value:         value,
		Confidence:    confidence,
		Accepted:      accepted,
		CreatedAt:     time.Now(),
	}
	if err := m.db.Create(rec).Error; err != nil {
		return wkmperrors.New(err).Component("ingest-session").Category(wkmperrors.CategoryDatabase).Context("operation", "record_provenance").Build()
	}
	return nil
}

// ForceCancelOrphaned finds every non-terminal session left behind by a
// process that died mid-run and marks it Cancelled (spec's Import Session
// lifecycle note: "a non-terminal session found on ingest startup is
// force-cancelled"). Returns the number of sessions cancelled.
func (m *Manager) ForceCancelOrphaned() (int, error) {
	var orphaned []model.ImportSession
	nonTerminal := []model.ImportSessionState{
		model.ImportScanning, model.ImportExtracting, model.ImportSegmenting,
		model.ImportFingerprinting, model.ImportIdentifying, model.ImportAnalyzing,
		model.ImportFlavoring,
	}
	if err := m.db.Where("state IN ?", nonTerminal).Find(&orphaned).Error; err != nil {
		return 0, wkmperrors.New(err).Component("ingest-session").Category(wkmperrors.CategoryDatabase).Context("operation", "find_orphaned_sessions").Build()
	}

	now := time.Now()
	for i := range orphaned {
		orphaned[i].State = model.ImportCancelled
		orphaned[i].EndedAt = &now
		if err := m.db.Save(&orphaned[i]).Error; err != nil {
			return 0, wkmperrors.New(err).Component("ingest-session").Category(wkmperrors.CategoryDatabase).Context("operation", "force_cancel_session").Context("session_id", orphaned[i].ID.String()).Build()
		}
	}
	return len(orphaned), nil
}

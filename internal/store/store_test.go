package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/wkmp/core/internal/curve"
	"github.com/wkmp/core/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "wkmp.db")
	s, err := Open(dbPath, 2, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenAutoMigratesAllTables(t *testing.T) {
	s := openTestStore(t)
	var tables []string
	if err := s.DB.Raw("SELECT name FROM sqlite_master WHERE type='table'").Scan(&tables).Error; err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	want := []string{"files", "passages", "queue", "settings", "import_sessions", "import_provenance", "songs", "passage_songs"}
	for _, w := range want {
		found := false
		for _, got := range tables {
			if got == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected table %q to exist after AutoMigrate, tables=%v", w, tables)
		}
	}
}

func TestEnqueueAssignsIncreasingPlayOrder(t *testing.T) {
	s := openTestStore(t)
	end := int64(1000)
	p := &model.Passage{
		ID: uuid.New(), FileHash: "abc", StartTick: 0, EndTick: &end,
		FadeInTick: 10, LeadInTick: 20, LeadOutTick: 900, FadeOutTick: 950,
		FadeInCurve: curve.Exponential, FadeOutCurve: curve.Logarithmic,
	}
	if err := s.DB.Create(p).Error; err != nil {
		t.Fatalf("failed to create passage: %v", err)
	}

	e1, err := s.EnqueuePassage(p, "/music/a.flac")
	if err != nil {
		t.Fatalf("enqueue 1 failed: %v", err)
	}
	e2, err := s.EnqueuePassage(p, "/music/a.flac")
	if err != nil {
		t.Fatalf("enqueue 2 failed: %v", err)
	}
	if e2.PlayOrder <= e1.PlayOrder {
		t.Errorf("expected increasing play order, got %d then %d", e1.PlayOrder, e2.PlayOrder)
	}

	entries, err := s.ListQueueOrdered()
	if err != nil {
		t.Fatalf("list queue failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != e1.ID || entries[1].ID != e2.ID {
		t.Errorf("expected queue ordered [e1, e2], got %+v", entries)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutSetting("master_volume", "0.8", false); err != nil {
		t.Fatalf("put setting failed: %v", err)
	}
	val, ok, err := s.GetSetting("master_volume")
	if err != nil {
		t.Fatalf("get setting failed: %v", err)
	}
	if !ok || val != "0.8" {
		t.Errorf("expected master_volume=0.8, got %q, ok=%v", val, ok)
	}

	_, ok, err = s.GetSetting("does_not_exist")
	if err != nil {
		t.Fatalf("unexpected error for missing setting: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing setting")
	}
}

func TestOptimizeRespectsContextCancellation(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Optimize(ctx); err == nil {
		t.Error("expected Optimize to fail with a cancelled context")
	}
}

package store

import (
	"github.com/google/uuid"
	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/model"
	"gorm.io/gorm"
)

// playOrderGap is the spacing reserved between adjacent queue entries so
// most insertions need no renumbering (spec §3 Queue Entry: "gaps of 10").
const playOrderGap = 10

// EnqueuePassage appends a queue entry derived from passage p at the tail
// of the current queue, denormalising the owning file's path.
func (s *Store) EnqueuePassage(p *model.Passage, filePath string) (*model.QueueEntry, error) {
	var maxOrder int64
	if err := s.DB.Model(&model.QueueEntry{}).Select("COALESCE(MAX(play_order), 0)").Scan(&maxOrder).Error; err != nil {
		return nil, wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "enqueue_max_order").Build()
	}

	entry := &model.QueueEntry{
		ID:           uuid.New(),
		PassageID:    p.ID,
		FilePath:     filePath,
		StartTick:    p.StartTick,
		EndTick:      p.EndTick,
		FadeInTick:   p.FadeInTick,
		LeadInTick:   p.LeadInTick,
		LeadOutTick:  p.LeadOutTick,
		FadeOutTick:  p.FadeOutTick,
		FadeInCurve:  p.FadeInCurve,
		FadeOutCurve: p.FadeOutCurve,
		PlayOrder:    maxOrder + playOrderGap,
	}
	if err := s.DB.Create(entry).Error; err != nil {
		return nil, wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "enqueue_create").Build()
	}
	return entry, nil
}

// ListQueueOrdered returns every queue entry ordered by PlayOrder ascending
// (entry[0] is "current", entry[1] is "next", per spec §3).
func (s *Store) ListQueueOrdered() ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	if err := s.DB.Order("play_order ASC").Find(&entries).Error; err != nil {
		return nil, wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "list_queue").Build()
	}
	return entries, nil
}

// RemoveQueueEntry deletes one queue entry by ID.
func (s *Store) RemoveQueueEntry(id uuid.UUID) error {
	if err := s.DB.Delete(&model.QueueEntry{}, "queue_entry_id = ?", id).Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "remove_queue_entry").Build()
	}
	return nil
}

// ClearQueue deletes every queue entry.
func (s *Store) ClearQueue() error {
	if err := s.DB.Where("1 = 1").Delete(&model.QueueEntry{}).Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "clear_queue").Build()
	}
	return nil
}

// SetChainIndex binds or releases (nil) a queue entry's decoder chain index.
func (s *Store) SetChainIndex(id uuid.UUID, chainIndex *int) error {
	if err := s.DB.Model(&model.QueueEntry{}).Where("queue_entry_id = ?", id).Update("chain_index", chainIndex).Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "set_chain_index").Build()
	}
	return nil
}

// Reorder rewrites PlayOrder for the given ordered slice of entry IDs,
// re-gapping by playOrderGap; used when gaps have been exhausted by many
// insertions at the same point.
func (s *Store) Reorder(orderedIDs []uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			newOrder := int64(i+1) * playOrderGap
			if err := tx.Model(&model.QueueEntry{}).Where("queue_entry_id = ?", id).Update("play_order", newOrder).Error; err != nil {
				return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "reorder").Build()
			}
		}
		return nil
	})
}

package store

import (
	"github.com/google/uuid"
	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/model"
)

// UpdatePassageLeadPoints persists the lead-in/lead-out ticks the Amplitude
// Analyzer computed for a passage (spec §4.16). It touches only those two
// columns, reacquiring the connection for this single write after the
// expensive decode/analyze step has already released it.
func (s *Store) UpdatePassageLeadPoints(passageID uuid.UUID, leadInTick, leadOutTick int64) error {
	err := s.DB.Model(&model.Passage{}).
		Where("id = ?", passageID).
		Updates(map[string]interface{}{
			"lead_in_tick":  leadInTick,
			"lead_out_tick": leadOutTick,
		}).Error
	if err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "update_passage_lead_points").Context("passage_id", passageID.String()).Build()
	}
	return nil
}

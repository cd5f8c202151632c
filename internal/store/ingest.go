package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/model"
)

// UpsertAudioFile inserts or refreshes the scanned-file row keyed by
// content hash (spec's Audio File invariant: "hash uniquely identifies
// content; path uniquely identifies a filesystem record").
func (s *Store) UpsertAudioFile(f *model.AudioFile) error {
	f.UpdatedAt = time.Now()
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "duration_ticks", "format", "sample_rate", "channels", "byte_size", "mod_time", "updated_at"}),
	}).Create(f).Error
	if err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "upsert_audio_file").Context("hash", f.Hash).Build()
	}
	return nil
}

// CreatePassage persists a newly-segmented passage row.
func (s *Store) CreatePassage(p *model.Passage) error {
	if err := s.DB.Create(p).Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "create_passage").Build()
	}
	return nil
}

// UpsertSong inserts or refreshes a fused song identity, keyed by its
// MusicBrainz ID when resolved, or by the caller-supplied ID otherwise (an
// "unresolved" song has no natural external key to deduplicate on).
func (s *Store) UpsertSong(song *model.Song) error {
	song.UpdatedAt = time.Now()
	if err := s.DB.Save(song).Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "upsert_song").Context("song_id", song.ID.String()).Build()
	}
	return nil
}

// FindSongByMBID looks up an existing fused song by its resolved
// MusicBrainz ID, so repeated imports of the same recording converge onto
// one song row instead of duplicating it.
func (s *Store) FindSongByMBID(mbid string) (*model.Song, error) {
	var song model.Song
	err := s.DB.First(&song, "music_brainz_id = ?", mbid).Error
	if err != nil {
		return nil, err // gorm.ErrRecordNotFound is a valid, expected outcome here
	}
	return &song, nil
}

// LinkPassageSong records which song occupies a sub-range of a passage's
// timeline (spec's Passage Song: "a passage may cover more than one song").
func (s *Store) LinkPassageSong(passageID, songID uuid.UUID, startTick int64, endTick *int64, sequenceNo int) error {
	link := &model.PassageSong{
		PassageID:  passageID,
		SongID:     songID,
		StartTick:  startTick,
		EndTick:    endTick,
		SequenceNo: sequenceNo,
	}
	if err := s.DB.Create(link).Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "link_passage_song").Build()
	}
	return nil
}

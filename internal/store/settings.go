package store

import (
	"errors"
	"time"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/model"
	"gorm.io/gorm"
)

// GetSetting returns a setting's value and whether it was present.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var row model.Setting
	err := s.DB.First(&row, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "get_setting").Context("key", key).Build()
	}
	return row.Value, true, nil
}

// PutSetting upserts a setting value.
func (s *Store) PutSetting(key, value string, restartRequired bool) error {
	row := model.Setting{Key: key, Value: value, RestartRequired: restartRequired, UpdatedAt: time.Now().UTC()}
	if err := s.DB.Save(&row).Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "put_setting").Context("key", key).Build()
	}
	return nil
}

// AllSettings returns every persisted setting row.
func (s *Store) AllSettings() ([]model.Setting, error) {
	var rows []model.Setting
	if err := s.DB.Find(&rows).Error; err != nil {
		return nil, wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "all_settings").Build()
	}
	return rows, nil
}

package data

import (
	"errors"
	"sync"

	"gorm.io/gorm"
)

// Setting is one row of the key/value settings table.
type Setting struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:128;uniqueIndex"`
	Value string `gorm:"type:text"`
}

// Settings is an in-memory snapshot of the settings table.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
}

// LoadSettings loads all settings from the database into a snapshot.
func LoadSettings(db *gorm.DB) (*Settings, error) {
	var rows []Setting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	s := &Settings{values: make(map[string]string, len(rows))}
	for _, row := range rows {
		s.values[row.Name] = row.Value
	}
	return s, nil
}

// Get returns a setting value, or "" when unset. A nil snapshot is empty.
func (s *Settings) Get(name string) string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// PutSetting inserts or replaces a setting row.
func PutSetting(db *gorm.DB, name, value string) error {
	var row Setting
	err := db.Where("name = ?", name).First(&row).Error
	switch {
	case err == nil:
		return db.Model(&row).Update("value", value).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(&Setting{Name: name, Value: value}).Error
	default:
		return err
	}
}

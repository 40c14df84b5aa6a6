package identity

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/store"
)

const settingsDBKey = "identity/settings"

// currentSettingsVersion is bumped whenever Settings' on-disk shape
// changes, so future loaders can migrate older records.
const currentSettingsVersion = 1

// Settings is the settings.json-equivalent record spec §6 describes:
// nickname, a stable per-account userId, and a schema version.
type Settings struct {
	Nickname string `json:"nickname"`
	UserID   string `json:"userId"`
	Version  int    `json:"version"`
}

// LoadOrCreateSettings loads persisted settings, or creates a fresh
// record (with a new random userId) if none exists yet.
func LoadOrCreateSettings(db *store.DB, nickname string) (*Settings, error) {
	raw, found, err := db.Get([]byte(settingsDBKey))
	if err != nil {
		return nil, common.ErrStorageIO
	}
	if found {
		var s Settings
		if err := json.Unmarshal(raw, &s); err == nil && s.UserID != "" {
			if nickname != "" {
				s.Nickname = nickname
			}
			return &s, nil
		}
	}

	s := &Settings{
		Nickname: nickname,
		UserID:   uuid.New().String(),
		Version:  currentSettingsVersion,
	}
	if err := SaveSettings(db, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveSettings persists s.
func SaveSettings(db *store.DB, s *Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := db.Put([]byte(settingsDBKey), raw); err != nil {
		return common.ErrStorageIO
	}
	return nil
}

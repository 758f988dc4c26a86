package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// Flat files written by the first releases, before state moved into the
// database. They are imported once and left on disk untouched.
const (
	legacySettingsFile      = "settings.json"
	legacySystemMessageFile = "system_message.txt"
	legacyMemoryFile        = "memory.txt"
)

type legacySettings struct {
	Model string `json:"model"`
	// Missing in the oldest files, which only stored the model.
	UseMemory *bool `json:"use_memory"`
}

func importLegacyFiles(db *bolt.DB, dir string) error {
	var done bool
	err := db.View(func(tx *bolt.Tx) error {
		done = tx.Bucket([]byte(metaBucket)).Get([]byte(legacyImportedKey)) != nil
		return nil
	})
	if err != nil || done {
		return err
	}

	s, hasSettings, err := readLegacySettings(filepath.Join(dir, legacySettingsFile))
	if err != nil {
		return err
	}
	notes := map[string]string{}
	for key, name := range map[string]string{
		systemMessageKey: legacySystemMessageFile,
		memoryKey:        legacyMemoryFile,
	} {
		content, err := readLegacyText(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if content != "" {
			notes[key] = content
		}
	}

	return db.Update(func(tx *bolt.Tx) error {
		sb := tx.Bucket([]byte(settingsBucket))
		if hasSettings && sb.Get([]byte(settingsKey)) == nil {
			data, err := json.Marshal(s)
			if err != nil {
				return err
			}
			if err := sb.Put([]byte(settingsKey), data); err != nil {
				return err
			}
			slog.Info("imported legacy settings", slog.String("model", s.Model))
		}

		nb := tx.Bucket([]byte(notesBucket))
		for key, content := range notes {
			if nb.Get([]byte(key)) != nil {
				continue
			}
			if err := nb.Put([]byte(key), []byte(content)); err != nil {
				return err
			}
			slog.Info("imported legacy note", slog.String("key", key))
		}

		return tx.Bucket([]byte(metaBucket)).Put([]byte(legacyImportedKey), []byte("1"))
	})
}

func readLegacySettings(path string) (settings, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings{}, false, nil
	}
	if err != nil {
		return settings{}, false, fmt.Errorf("error reading %s: %w", path, err)
	}

	var ls legacySettings
	if err := json.Unmarshal(data, &ls); err != nil {
		return settings{}, false, fmt.Errorf("error decoding %s: %w", path, err)
	}

	s := defaultSettings()
	if ls.Model != "" {
		s.Model = ls.Model
	}
	if ls.UseMemory != nil {
		s.UseMemory = *ls.UseMemory
	}

	return s, true, nil
}

func readLegacyText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

package main

import (
	"encoding/json"
	"errors"
	"strings"

	bolt "go.etcd.io/bbolt"
)

const (
	settingsBucket = "settings"
	notesBucket    = "notes"
	metaBucket     = "meta"

	settingsKey       = "settings"
	systemMessageKey  = "systemMessage"
	memoryKey         = "memory"
	legacyImportedKey = "legacyImported"

	memorySeparator = "\n\n"
)

var errEmptyNote = errors.New("note is empty")

type settings struct {
	Model     string `json:"model"`
	UseMemory bool   `json:"useMemory"`
}

func defaultSettings() settings {
	return settings{
		Model:     defaultModel,
		UseMemory: true,
	}
}

func initKVDB(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{settingsBucket, notesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadSettings(db *bolt.DB) (settings, error) {
	s := defaultSettings()

	err := db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(settingsBucket)).Get([]byte(settingsKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &s)
	})

	return s, err
}

func saveSettings(db *bolt.DB, s settings) error {
	return db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(settingsBucket)).Put([]byte(settingsKey), data)
	})
}

func loadSystemMessage(db *bolt.DB) (string, error) {
	return loadNote(db, systemMessageKey)
}

func saveSystemMessage(db *bolt.DB, msg string) error {
	return saveNote(db, systemMessageKey, strings.TrimSpace(msg))
}

func loadMemory(db *bolt.DB) (string, error) {
	return loadNote(db, memoryKey)
}

func saveMemory(db *bolt.DB, memory string) error {
	return saveNote(db, memoryKey, strings.TrimSpace(memory))
}

// appendMemory adds entry to the end of the memory, separated from what was
// there by a blank line.
func appendMemory(db *bolt.DB, entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return errEmptyNote
	}

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(notesBucket))

		memory := string(b.Get([]byte(memoryKey)))
		if memory != "" {
			memory += memorySeparator
		}
		memory += entry

		return b.Put([]byte(memoryKey), []byte(memory))
	})
}

func loadNote(db *bolt.DB, key string) (string, error) {
	var note string

	err := db.View(func(tx *bolt.Tx) error {
		note = string(tx.Bucket([]byte(notesBucket)).Get([]byte(key)))
		return nil
	})

	return note, err
}

func saveNote(db *bolt.DB, key, note string) error {
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(notesBucket)).Put([]byte(key), []byte(note))
	})
}

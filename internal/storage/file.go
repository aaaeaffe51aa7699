package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// FileStore keeps each record as an indented JSON file:
//
//	<root>/history/<user>_slot_<n>.json       [{"role":"user","parts":[...]}, ...]
//	<root>/diary/<user>_slot_<n>_diary.json   ["note", ...]
type FileStore struct {
	historyDir string
	diaryDir   string
}

// NewFileStore creates the directory layout under root.
func NewFileStore(root string) (*FileStore, error) {
	s := &FileStore{
		historyDir: filepath.Join(root, "history"),
		diaryDir:   filepath.Join(root, "diary"),
	}
	for _, dir := range []string{s.historyDir, s.diaryDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return s, nil
}

func (s *FileStore) historyPath(userID int64, slot int) string {
	return filepath.Join(s.historyDir, slotKey(userID, slot)+".json")
}

func (s *FileStore) diaryPath(userID int64, slot int) string {
	return filepath.Join(s.diaryDir, slotKey(userID, slot)+"_diary.json")
}

func (s *FileStore) LoadHistory(_ context.Context, userID int64, slot int) ([]schema.Message, bool, error) {
	var history []schema.Message
	found, err := readJSON(s.historyPath(userID, slot), &history)
	if err != nil {
		return nil, found, fmt.Errorf("load history %s: %w", slotKey(userID, slot), err)
	}
	return history, found, nil
}

func (s *FileStore) SaveHistory(_ context.Context, userID int64, slot int, history []schema.Message) error {
	if history == nil {
		history = []schema.Message{}
	}
	return writeJSON(s.historyPath(userID, slot), history)
}

func (s *FileStore) LoadDiary(_ context.Context, userID int64, slot int) ([]string, error) {
	var entries []string
	if _, err := readJSON(s.diaryPath(userID, slot), &entries); err != nil {
		return nil, fmt.Errorf("load diary %s: %w", slotKey(userID, slot), err)
	}
	return entries, nil
}

func (s *FileStore) SaveDiary(_ context.Context, userID int64, slot int, entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	return writeJSON(s.diaryPath(userID, slot), entries)
}

func (s *FileStore) DeleteSlot(_ context.Context, userID int64, slot int) error {
	var errs []error
	for _, p := range []string{s.historyPath(userID, slot), s.diaryPath(userID, slot)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *FileStore) Close() error { return nil }

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, err
	}
	return true, nil
}

// writeJSON replaces path atomically via a temp file and rename.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep non-ASCII and tags readable
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Keys of the persisted state. Every component funnels its state through one
// of these; each key holds one JSON document and every write replaces the
// key's full value.
const (
	KeyBookmarks   = "bookmarks"
	KeyCategories  = "bookmark_categories"
	KeyClicks      = "bookmarkClicks"
	KeyUndoNode    = "lastDeletedBookmark"
	KeyUndoExpire  = "undoExpire"
	KeyUndoBatch   = "lastDeletedBatch"
	KeyBatchExpire = "batchUndoExpire"
)

// Supported backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store is the minimal key-value contract the rest of the app persists
// through. Values are arbitrary JSON-serializable data.
type Store interface {
	// Get decodes the value stored under key into v. It returns false and
	// leaves v untouched when the key is absent.
	Get(key string, v any) (bool, error)
	// Set replaces the full value stored under key.
	Set(key string, v any) error
	// Delete removes key. Removing an absent key is not an error.
	Delete(key string) error
	// Clear removes every key.
	Clear() error
	Close() error
}

// JSONStore implements Store using a single JSON file holding a key->value
// object.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSONStore with the given file path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the storage file path.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}

	var kv map[string]json.RawMessage
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, err
	}
	if kv == nil {
		kv = map[string]json.RawMessage{}
	}
	return kv, nil
}

func (s *JSONStore) save(kv map[string]json.RawMessage) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Get reads one key from the JSON file.
func (s *JSONStore) Get(key string, v any) (bool, error) {
	kv, err := s.load()
	if err != nil {
		return false, err
	}
	raw, ok := kv[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

// Set replaces one key and rewrites the file.
func (s *JSONStore) Set(key string, v any) error {
	kv, err := s.load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	kv[key] = raw
	return s.save(kv)
}

// Delete removes one key and rewrites the file.
func (s *JSONStore) Delete(key string) error {
	kv, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := kv[key]; !ok {
		return nil
	}
	delete(kv, key)
	return s.save(kv)
}

// Clear rewrites the file with an empty object.
func (s *JSONStore) Clear() error {
	return s.save(map[string]json.RawMessage{})
}

// Close is a no-op for the file-backed store.
func (s *JSONStore) Close() error {
	return nil
}

// DefaultJSONPath returns the default store path: ~/.config/marks/marks.json
func DefaultJSONPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "marks", "marks.json"), nil
}

// Open opens the store for the given backend and path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendJSON:
		return NewJSONStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

// OpenDefault opens the store at the default location. It prefers SQLite if
// the database file already exists, otherwise falls back to the JSON file.
func OpenDefault() (Store, error) {
	sqlitePath, err := DefaultSQLitePath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(sqlitePath); err == nil {
		return NewSQLiteStore(sqlitePath)
	}

	jsonPath, err := DefaultJSONPath()
	if err != nil {
		return nil, err
	}
	return NewJSONStore(jsonPath), nil
}

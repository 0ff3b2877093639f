package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/veridianlabs/leadvault/internal/core/domain"
)

// FileStore is the durable local tier: a single JSON record collection keyed
// by lead ID. Every mutation rewrites the collection to a temporary file and
// atomically renames it over the old one, so a crash mid-write never leaves
// a half-written collection. A single mutex serializes writers.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the store at path, creating parent directories as
// needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("filestore: failed to create directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Put stores or replaces a lead.
func (f *FileStore) Put(lead domain.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	records[lead.ID] = lead
	return f.write(records)
}

// Get returns the stored lead or domain.ErrNotFound.
func (f *FileStore) Get(id string) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	lead, ok := records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &lead, nil
}

// Delete removes a lead and reports whether it was present.
func (f *FileStore) Delete(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return false, err
	}
	if _, ok := records[id]; !ok {
		return false, nil
	}
	delete(records, id)
	if err := f.write(records); err != nil {
		return false, err
	}
	return true, nil
}

// All returns every stored lead.
func (f *FileStore) All() ([]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Lead, 0, len(records))
	for _, lead := range records {
		out = append(out, lead)
	}
	return out, nil
}

// load reads the collection from disk. A missing file is an empty collection.
func (f *FileStore) load() (map[string]domain.Lead, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]domain.Lead), nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: failed to read collection: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]domain.Lead), nil
	}
	var records map[string]domain.Lead
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("filestore: corrupt collection: %w", err)
	}
	return records, nil
}

// write replaces the collection atomically: marshal to a temp file in the
// same directory, then rename over the target.
func (f *FileStore) write(records map[string]domain.Lead) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: failed to marshal collection: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: failed to replace collection: %w", err)
	}
	return nil
}

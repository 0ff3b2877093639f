// Package audit persists access log entries as line-delimited JSON.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/veridianlabs/leadvault/internal/core/domain"
)

// FileSink appends one JSON line per gate decision to a log file. Entries are
// never mutated or deleted; rotation and archival are external concerns.
// A single mutex serializes appends so concurrent decisions cannot interleave
// partial lines.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates the sink at path, creating parent directories as
// needed.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("audit: failed to create directory: %w", err)
	}
	return &FileSink{path: path}, nil
}

// Append writes one entry. The file is opened in append mode per call so an
// external rotation between calls is picked up automatically.
func (s *FileSink) Append(_ context.Context, entry domain.AccessLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to append entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries from the tail of the log, oldest first.
func (s *FileSink) Recent(_ context.Context, limit int) ([]domain.AccessLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open log: %w", err)
	}
	defer f.Close()

	var entries []domain.AccessLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.AccessLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Skip torn or foreign lines rather than failing the read.
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to scan log: %w", err)
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

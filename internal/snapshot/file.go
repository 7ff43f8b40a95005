package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Mode selects how a FileSink treats earlier snapshots.
type Mode string

const (
	// Overwrite keeps only the most recent snapshot in the file.
	Overwrite Mode = "overwrite"
	// Append accumulates snapshots as a growing JSON array.
	Append Mode = "append"
)

// FileSink writes snapshots to a JSON file. The file always holds a JSON
// array; in Overwrite mode it is a one-element array replaced wholesale on
// every write, in Append mode entries accumulate. All writes are serialized
// by a mutex so concurrent searches cannot interleave a partial record.
type FileSink struct {
	mu   sync.Mutex
	path string
	mode Mode
}

// NewFileSink creates a file sink, creating the parent directory and an
// empty-array file if they do not exist.
func NewFileSink(path string, mode Mode) (*FileSink, error) {
	if mode != Overwrite && mode != Append {
		return nil, fmt.Errorf("unknown snapshot mode %q", mode)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("init snapshot file: %w", err)
		}
	}
	return &FileSink{path: path, mode: mode}, nil
}

// Write implements Sink.
func (s *FileSink) Write(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	if s.mode == Append {
		// Tolerate a missing or corrupt file: restart the array.
		if data, err := os.ReadFile(s.path); err == nil {
			_ = json.Unmarshal(data, &entries)
		}
	}
	entries = append(entries, e)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	// Write-then-rename keeps readers from observing a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *FileSink) Close() error { return nil }

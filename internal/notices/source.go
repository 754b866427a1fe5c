// Package notices provides a file-backed airspace notice source. Operators
// maintain a JSON file of already-parsed notices; the file is re-read when
// its modification time changes.
package notices

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/pkg/logger"
)

// FileSource serves notices from a JSON file on disk.
type FileSource struct {
	path   string
	logger *logger.Logger

	mu      sync.Mutex
	modTime time.Time
	notices []tracking.Notice
}

// NewFileSource creates a source for the given path and performs an initial
// load so configuration errors surface at startup.
func NewFileSource(path string, log *logger.Logger) (*FileSource, error) {
	s := &FileSource{
		path:   path,
		logger: log.Named("notices"),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// GetActive returns the current notice set, reloading the file first if it
// changed on disk. A reload failure serves the last good set.
func (s *FileSource) GetActive(ctx context.Context) ([]tracking.Notice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err == nil && info.ModTime().After(s.modTime) {
		if err := s.reloadLocked(info.ModTime()); err != nil {
			s.logger.Warn("Failed to reload notice file, serving previous set",
				logger.String("path", s.path),
				logger.Error(err))
		}
	}

	out := make([]tracking.Notice, len(s.notices))
	copy(out, s.notices)
	return out, nil
}

func (s *FileSource) reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("failed to stat notice file: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(info.ModTime())
}

func (s *FileSource) reloadLocked(modTime time.Time) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read notice file: %w", err)
	}

	var notices []tracking.Notice
	if err := json.Unmarshal(data, &notices); err != nil {
		return fmt.Errorf("failed to parse notice file: %w", err)
	}

	s.notices = notices
	s.modTime = modTime
	s.logger.Info("Loaded notices", logger.String("path", s.path), logger.Int("count", len(notices)))
	return nil
}

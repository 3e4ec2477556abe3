package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/printzone/internal/utils"
)

// FileStore keeps one JSON file per draft in a directory
type FileStore struct {
	mu  sync.Mutex
	dir string
	now Clock
	log zerolog.Logger
}

// NewFileStore creates the directory if needed. A nil clock uses time.Now.
func NewFileStore(dir string, now Clock) (*FileStore, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create draft directory: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &FileStore{
		dir: dir,
		now: now,
		log: log.With().Str("module", "persistence").Str("backend", "file").Logger(),
	}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, utils.SanitizeFilename(key)+".json")
}

func (s *FileStore) Save(_ context.Context, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(stamp(d, s.now), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path(d.Key), data, 0644); err != nil {
		return fmt.Errorf("failed to write draft %s: %w", d.Key, err)
	}
	s.log.Debug().Str("key", d.Key).Msg("draft written")
	return nil
}

func (s *FileStore) Load(_ context.Context, key string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.path(key))
}

func (s *FileStore) read(path string) (Draft, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("failed to read draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("failed to parse draft %s: %w", filepath.Base(path), err)
	}
	return d, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete draft %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) ListAll(ctx context.Context) ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx)
}

func (s *FileStore) list(ctx context.Context) ([]Draft, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	var out []Draft
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		d, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable draft")
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *FileStore) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.list(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxAge)
	n := 0
	for _, d := range drafts {
		if !d.SavedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.path(d.Key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return n, fmt.Errorf("failed to purge draft %s: %w", d.Key, err)
		}
		n++
	}
	return n, nil
}

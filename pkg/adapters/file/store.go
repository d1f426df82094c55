package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"

	"github.com/aretw0/redo/pkg/domain"
)

// DefaultDir is the log directory used when none is configured.
const DefaultDir = ".redo"

const (
	ext       = ".json"
	tmpPrefix = ".tmp-"
)

// Store implements ports.LogStore using the local filesystem.
// Each workflow log is a JSON file named after the workflow.
type Store struct {
	BasePath string
}

// New creates a new Store rooted at basePath.
// If basePath is empty, it defaults to ".redo" in the working directory.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath}
}

// Path returns the file that holds the log of the named workflow.
func (s *Store) Path(name string) string {
	return filepath.Join(s.BasePath, name+ext)
}

// Save persists the log atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, name string, log domain.Log) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("%w: ensure log directory: %v", domain.ErrPersistence, err)
	}

	data, err := domain.EncodeLog(log)
	if err != nil {
		return fmt.Errorf("%w: marshal log %q: %v", domain.ErrPersistence, name, err)
	}

	// Same directory, so the rename stays on one filesystem. The leading dot
	// keeps temp files apart from logs: workflow names cannot start with one.
	tmpFile, err := os.CreateTemp(s.BasePath, tmpPrefix+name+"-*"+ext)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrPersistence, err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("%w: write temp file: %v", domain.ErrPersistence, err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("%w: fsync temp file: %v", domain.ErrPersistence, err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", domain.ErrPersistence, err)
	}

	dest := s.Path(name)
	if goruntime.GOOS == "windows" {
		// os.Rename does not replace an existing file there.
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: replace %s: %v", domain.ErrPersistence, dest, err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", domain.ErrPersistence, dest, err)
	}
	return nil
}

// Load retrieves the log from its JSON file.
func (s *Store) Load(ctx context.Context, name string) (domain.Log, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLogNotFound, name)
		}
		return nil, fmt.Errorf("%w: read log %q: %v", domain.ErrPersistence, name, err)
	}
	log, err := domain.DecodeLog(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode log %q: %v", domain.ErrPersistence, name, err)
	}
	return log, nil
}

// Delete removes the log file.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete log %q: %v", domain.ErrPersistence, name, err)
	}
	return nil
}

// List returns the names of all stored logs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: list logs: %v", domain.ErrPersistence, err)
	}

	names := []string{}
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || filepath.Ext(file) != ext || strings.HasPrefix(file, tmpPrefix) {
			continue
		}
		names = append(names, strings.TrimSuffix(file, ext))
	}
	sort.Strings(names)
	return names, nil
}

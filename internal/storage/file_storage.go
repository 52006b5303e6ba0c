package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

const tempMarker = ".part-"

// FileStorage manages archive files under an output root.
// Paths passed to its methods are full paths produced by the resolver.
type FileStorage struct {
	root string
}

// NewFileStorage creates a new FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{root: filepath.Clean(dir)}
}

// Exists reports whether a non-empty regular file is present at path.
func (s *FileStorage) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// ShouldFetch is the existence filter: a candidate is fetched unless its file
// is already present, or when force is set.
func (s *FileStorage) ShouldFetch(c domain.FetchCandidate, force bool) bool {
	return force || !s.Exists(c.LocalPath)
}

// CreateTemp creates a uniquely named temporary file next to finalPath,
// creating parent directories as needed.
func (s *FileStorage) CreateTemp(finalPath string) (*os.File, error) {
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(finalPath)+tempMarker+"*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Commit atomically moves a finished temp file to its final path.
func (s *FileStorage) Commit(tmpPath, finalPath string) error {
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(tmpPath), err)
	}
	return nil
}

// Discard removes a temp file. Missing files are not an error.
func (s *FileStorage) Discard(tmpPath string) error {
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// WriteAtomic writes data to path through a temp file and rename.
func (s *FileStorage) WriteAtomic(path string, data []byte) error {
	f, err := s.CreateTemp(path)
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.Discard(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = s.Discard(tmp)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := s.Commit(tmp, path); err != nil {
		_ = s.Discard(tmp)
		return err
	}
	return nil
}

// CleanTemp removes temp files left behind by interrupted runs and returns how many were removed.
// Only files unmodified for longer than olderThan are touched, so temp files
// another process is still writing survive.
func (s *FileStorage) CleanTemp(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.Contains(d.Name(), tempMarker) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

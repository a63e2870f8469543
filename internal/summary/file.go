package summary

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes each summary as a plain UTF-8 file under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore returns a store rooted at baseDir. An empty baseDir means the
// current working directory.
func NewFileStore(baseDir string) *FileStore {
	if strings.TrimSpace(baseDir) == "" {
		baseDir = "."
	}
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) WriteSummary(ctx context.Context, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(destination)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write summary file: %w", err)
	}
	return nil
}

func (s *FileStore) ReadSummary(ctx context.Context, destination string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(destination)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read summary file: %w", err)
	}
	return string(data), nil
}

func (s *FileStore) Close() error { return nil }

// resolve keeps destinations inside baseDir.
func (s *FileStore) resolve(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" || filepath.IsAbs(destination) {
		return "", ErrInvalidDestination
	}
	clean := filepath.Clean(destination)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrInvalidDestination
	}
	return filepath.Join(s.baseDir, clean), nil
}

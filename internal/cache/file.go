package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"idschooldata/pkg/contracts/domain"
)

var entryFileName = regexp.MustCompile(`^enr_(wide|tidy)_(\d+)\.json$`)

// FileStore keeps one JSON file per entry under a directory
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the cache directory if needed
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, logger: logger.With(slog.String("component", "file_cache"))}, nil
}

// Path returns the file backing an entry
func (s *FileStore) Path(endYear int, shape domain.Shape) string {
	return filepath.Join(s.dir, fmt.Sprintf("enr_%s_%d.json", shape, endYear))
}

func (s *FileStore) Exists(ctx context.Context, endYear int, shape domain.Shape) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(endYear, shape))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *FileStore) Read(ctx context.Context, endYear int, shape domain.Shape) (*domain.EnrollmentTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(endYear, shape)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	s.logger.DebugContext(ctx, "cache read",
		slog.String("path", path),
		slog.Int("bytes", len(data)))
	return Decode(data)
}

// Write stages the entry in a temporary file in the same directory, then
// renames it over the final name.
func (s *FileStore) Write(ctx context.Context, table *domain.EnrollmentTable, endYear int, shape domain.Shape) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(endYear, shape); err != nil {
		return err
	}
	data, err := Encode(table)
	if err != nil {
		return err
	}

	path := s.Path(endYear, shape)
	tmp, err := os.CreateTemp(s.dir, ".enr-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}

	s.logger.DebugContext(ctx, "cache write",
		slog.String("path", path),
		slog.Int("bytes", len(data)))
	return nil
}

func (s *FileStore) Delete(ctx context.Context, endYear int, shape domain.Shape) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.Path(endYear, shape))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	var keys []Key
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := entryFileName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		keys = append(keys, Key{EndYear: year, Shape: domain.Shape(m[1])})
	}
	sortKeys(keys)
	return keys, nil
}

func (s *FileStore) Close() error { return nil }

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application paths.
// This is the single source of truth for file locations at runtime.
type Paths struct {
	BaseDir      string
	DataDir      string
	CacheDir     string
	DownloadsDir string
	LogsDir      string
	BoltFile     string
}

// ResolvePaths turns the configured paths into absolute ones
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	p := &Paths{
		BaseDir:      base,
		DataDir:      resolve(base, c.Paths.DataDir),
		CacheDir:     resolve(base, c.Paths.CacheDir),
		DownloadsDir: resolve(base, c.Paths.DownloadsDir),
		LogsDir:      resolve(base, c.Paths.LogsDir),
	}
	if c.Cache.BoltFile != "" {
		// a bare bolt file name lives in the cache directory
		p.BoltFile = c.Cache.BoltFile
		if !filepath.IsAbs(p.BoltFile) {
			p.BoltFile = filepath.Join(p.CacheDir, p.BoltFile)
		}
	}
	return p, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.CacheDir,
		p.DownloadsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DownloadPath returns where a downloaded source file named name is kept
func (p *Paths) DownloadPath(name string) string {
	return filepath.Join(p.DownloadsDir, filepath.Base(name))
}

// LogPathResolution logs every resolved path at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("resolved paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("cache_dir", p.CacheDir),
		slog.String("downloads_dir", p.DownloadsDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("bolt_file", p.BoltFile))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

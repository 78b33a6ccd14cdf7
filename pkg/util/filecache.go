package util

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// SourceCache memory-maps source files so that parsing reads straight from
// the page cache.
//
// Mapped files must be released with Evict before they are rewritten in
// place: truncating a file while it is mapped faults on the next read.
// All methods are safe for concurrent use.
type SourceCache interface {
	// Get maps filePath on first access and returns the cached mapping
	// afterwards.
	Get(filePath string) (*MappedFile, error)

	// Slice returns source[start:end] of a cached file. (0, 0) selects the
	// whole file.
	Slice(filePath string, start, end uint32) ([]byte, error)

	// Evict unmaps one file. Evicting an uncached path is a no-op.
	Evict(filePath string) error

	Size() int
	Stats() SourceCacheStats

	// Close unmaps every file.
	Close() error
}

// SourceCacheConfig bounds a SourceCache. Zero limits are unbounded.
type SourceCacheConfig struct {
	MaxFiles int
	MaxBytes int64
	Logger   *slog.Logger
}

// DefaultSourceCacheConfig holds up to 10k files and 2 GiB of mapped source.
func DefaultSourceCacheConfig() SourceCacheConfig {
	return SourceCacheConfig{
		MaxFiles: 10000,
		MaxBytes: 2 << 30,
	}
}

// MappedFile is one cached source. Data aliases the mapping and is only
// valid until the file is evicted.
type MappedFile struct {
	Path string
	Data mmap.MMap
	Size int64

	file   *os.File
	mapped bool
}

// SourceCacheStats are cumulative counters plus the current footprint.
type SourceCacheStats struct {
	Loads        int64
	Hits         int64
	Misses       int64
	Evictions    int64
	MmapFailures int64
	Cached       int
	MappedBytes  int64
}

// ErrCacheFull is returned by Get when loading a file would exceed a limit.
var ErrCacheFull = errors.New("source cache full")

type sourceCache struct {
	config SourceCacheConfig
	logger *slog.Logger

	mu    sync.RWMutex
	files map[string]*MappedFile
	bytes int64

	statsMu sync.Mutex
	stats   SourceCacheStats
}

func NewSourceCache(config SourceCacheConfig) SourceCache {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &sourceCache{
		config: config,
		logger: logger,
		files:  make(map[string]*MappedFile),
	}
}

func (c *sourceCache) Get(filePath string) (*MappedFile, error) {
	c.mu.RLock()
	mf, ok := c.files[filePath]
	c.mu.RUnlock()
	if ok {
		c.count(func(s *SourceCacheStats) { s.Hits++ })
		return mf, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if mf, ok := c.files[filePath]; ok {
		c.count(func(s *SourceCacheStats) { s.Hits++ })
		return mf, nil
	}
	c.count(func(s *SourceCacheStats) { s.Misses++ })

	mf, err := c.load(filePath)
	if err != nil {
		return nil, err
	}

	c.files[filePath] = mf
	c.bytes += mf.Size
	c.count(func(s *SourceCacheStats) { s.Loads++ })

	return mf, nil
}

// load must be called with mu held.
func (c *sourceCache) load(filePath string) (*MappedFile, error) {
	if c.config.MaxFiles > 0 && len(c.files) >= c.config.MaxFiles {
		return nil, fmt.Errorf("%w: %d files (limit %d)", ErrCacheFull, len(c.files), c.config.MaxFiles)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", filePath, err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%q is a directory", filePath)
	}

	size := stat.Size()
	if c.config.MaxBytes > 0 && c.bytes+size > c.config.MaxBytes {
		file.Close()
		return nil, fmt.Errorf("%w: %d + %d bytes (limit %d)", ErrCacheFull, c.bytes, size, c.config.MaxBytes)
	}

	// Zero-length files cannot be mapped.
	if size == 0 {
		file.Close()
		return &MappedFile{Path: filePath}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		c.logger.Warn("mmap failed, reading file instead",
			"file", filePath,
			"size", size,
			"error", err)
		c.count(func(s *SourceCacheStats) { s.MmapFailures++ })

		buf, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read %q: %w", filePath, readErr)
		}
		return &MappedFile{Path: filePath, Data: mmap.MMap(buf), Size: int64(len(buf))}, nil
	}

	return &MappedFile{
		Path:   filePath,
		Data:   data,
		Size:   size,
		file:   file,
		mapped: true,
	}, nil
}

func (c *sourceCache) Slice(filePath string, start, end uint32) ([]byte, error) {
	mf, err := c.Get(filePath)
	if err != nil {
		return nil, err
	}

	if start == 0 && end == 0 {
		return mf.Data, nil
	}
	if end <= start {
		return nil, fmt.Errorf("invalid byte range [%d, %d)", start, end)
	}
	if int(end) > len(mf.Data) {
		return nil, fmt.Errorf("invalid byte range [%d, %d) for %q of %d bytes", start, end, filePath, len(mf.Data))
	}

	return mf.Data[start:end], nil
}

func (c *sourceCache) Evict(filePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mf, ok := c.files[filePath]
	if !ok {
		return nil
	}
	delete(c.files, filePath)
	c.bytes -= mf.Size
	c.count(func(s *SourceCacheStats) { s.Evictions++ })

	return mf.release()
}

func (c *sourceCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

func (c *sourceCache) Stats() SourceCacheStats {
	c.mu.RLock()
	cached, mapped := len(c.files), c.bytes
	c.mu.RUnlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	stats := c.stats
	stats.Cached = cached
	stats.MappedBytes = mapped
	return stats
}

func (c *sourceCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for path, mf := range c.files {
		if err := mf.release(); err != nil {
			c.logger.Warn("Failed to release source", "path", path, "error", err)
			errs = append(errs, err)
		}
	}
	c.files = make(map[string]*MappedFile)
	c.bytes = 0

	c.statsMu.Lock()
	stats := c.stats
	c.statsMu.Unlock()
	c.logger.Debug("Source cache closed",
		"loads", stats.Loads,
		"hits", stats.Hits,
		"mmap_failures", stats.MmapFailures)

	return errors.Join(errs...)
}

func (c *sourceCache) count(update func(*SourceCacheStats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}

func (mf *MappedFile) release() error {
	var errs []error
	if mf.mapped {
		if err := mf.Data.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap %q: %w", mf.Path, err))
		}
	}
	if mf.file != nil {
		if err := mf.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", mf.Path, err))
		}
	}
	mf.Data = nil
	return errors.Join(errs...)
}

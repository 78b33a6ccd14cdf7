package workspace

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FileStatus is the conversion state of a file.
type FileStatus uint8

const (
	FileUnchanged FileStatus = iota
	FileChanged
	FilePartial
	FileFailed
)

func (s FileStatus) String() string {
	switch s {
	case FileChanged:
		return "changed"
	case FilePartial:
		return "partial"
	case FileFailed:
		return "failed"
	default:
		return "unchanged"
	}
}

// FileRecord is the last conversion of one file.
type FileRecord struct {
	FilePath    string
	OutputPath  string
	SourceHash  string
	OutputHash  string
	Status      FileStatus
	Rewritten   int
	Failed      int
	ConvertedAt time.Time
}

// Ledger remembers the last conversion of each file so the watcher can tell
// its own writes and no-op saves from real edits.
//
// Records live in an LRU cache; a file whose record was evicted is simply
// converted again. Safe for concurrent use.
type Ledger struct {
	records *lru.Cache[string, *FileRecord]
	dirty   map[string]bool
	mu      sync.RWMutex

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	logger *slog.Logger
}

// DefaultLedgerSize is the record capacity used when NewLedger gets zero.
const DefaultLedgerSize = 10000

// LedgerStats are ledger counters.
type LedgerStats struct {
	Files     int
	Dirty     int
	Hits      int64
	Misses    int64
	Evictions int64
}

func NewLedger(maxFiles int, logger *slog.Logger) (*Ledger, error) {
	if maxFiles <= 0 {
		maxFiles = DefaultLedgerSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		dirty:  make(map[string]bool),
		logger: logger,
	}

	records, err := lru.NewWithEvict(maxFiles, func(path string, _ *FileRecord) {
		l.evictions.Add(1)
		logger.Debug("Ledger evicted record", "file", path)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger cache: %w", err)
	}
	l.records = records

	return l, nil
}

// Record stores rec and clears the file's dirty mark.
func (l *Ledger) Record(rec *FileRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.ConvertedAt.IsZero() {
		rec.ConvertedAt = time.Now()
	}
	l.records.Add(rec.FilePath, rec)
	delete(l.dirty, rec.FilePath)
}

// Get returns the record for path.
func (l *Ledger) Get(path string) (*FileRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records.Get(path)
	if ok {
		l.hits.Add(1)
	} else {
		l.misses.Add(1)
	}
	return rec, ok
}

// Seen reports whether content with hash was the input or the output of the
// last conversion of path.
func (l *Ledger) Seen(path, hash string) bool {
	rec, ok := l.Get(path)
	if !ok {
		return false
	}
	return hash == rec.SourceHash || hash == rec.OutputHash
}

// Invalidate marks path as needing conversion.
func (l *Ledger) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirty[path] = true
}

// IsDirty reports whether path was invalidated since its last record.
func (l *Ledger) IsDirty(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty[path]
}

// Remove forgets path.
func (l *Ledger) Remove(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records.Remove(path)
	delete(l.dirty, path)
}

// All returns every record sorted by path.
func (l *Ledger) All() []*FileRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.records.Values()
	sort.Slice(records, func(i, j int) bool {
		return records[i].FilePath < records[j].FilePath
	})
	return records
}

func (l *Ledger) Stats() LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LedgerStats{
		Files:     l.records.Len(),
		Dirty:     len(l.dirty),
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Evictions: l.evictions.Load(),
	}
}

// Package workspace converts whole directory trees and keeps them converted
// as files change.
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/cjs2esm/pkg/converter"
	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/util"
)

// Scanner converts the files of a workspace in parallel.
//
// Usage:
//
//	scanner := NewScanner(conv, sources, ledger, logger)
//	stats, err := scanner.ConvertWorkspace(ctx, "/path/to/repo", opts,
//	    func(done, total int, file string) {
//	        fmt.Printf("%d/%d %s\n", done, total, file)
//	    })
type Scanner struct {
	converter *converter.Converter
	sources   util.SourceCache
	ledger    *Ledger
	recorder  Recorder
	logger    *slog.Logger
}

// NewScanner creates a scanner. ledger may be nil.
func NewScanner(conv *converter.Converter, sources util.SourceCache, ledger *Ledger, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		converter: conv,
		sources:   sources,
		ledger:    ledger,
		logger:    logger,
	}
}

// SetRecorder attaches a metrics recorder.
func (s *Scanner) SetRecorder(r Recorder) {
	s.recorder = r
}

// Ledger returns the scanner's ledger, which may be nil.
func (s *Scanner) Ledger() *Ledger {
	return s.ledger
}

// ConvertWorkspace discovers the files under root and converts them. A
// failing file never aborts the run; it is listed in ScanStats.Errors.
//
// When ctx is cancelled, queued files are skipped and the partial stats are
// returned together with ctx.Err().
func (s *Scanner) ConvertWorkspace(ctx context.Context, root string, opts ScanOptions, progress ProgressCallback) (*ScanStats, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if opts.OutDir != "" {
		if opts.OutDir, err = filepath.Abs(opts.OutDir); err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", opts.OutDir, err)
		}
	}

	stats := &ScanStats{StartTime: time.Now()}
	s.logger.Info("Starting workspace conversion", "root", root, "dry_run", opts.DryRun)

	m, err := newMatcher(root, opts)
	if err != nil {
		return nil, err
	}
	files, err := m.discover()
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)

	if len(files) == 0 {
		s.logger.Warn("No files found matching criteria", "root", root)
		stats.finish()
		return stats, nil
	}

	pool := NewWorkerPool(opts.Workers, func(ctx context.Context, job FileJob) FileResult {
		return s.convertFile(ctx, root, job.FilePath, opts)
	}, s.logger)
	stats.WorkerCount = pool.numWorkers
	pool.Start(ctx)

	go func() {
		defer pool.FinishSubmitting()
		for i, file := range files {
			if err := pool.Submit(ctx, FileJob{FilePath: file, JobID: i}); err != nil {
				return
			}
		}
	}()

	done := 0
	for result := range pool.Results() {
		done++
		stats.add(result)
		if opts.OnResult != nil {
			opts.OnResult(result)
		}
		if progress != nil {
			progress(done, len(files), result.FilePath)
		}
	}

	stats.Cancelled = ctx.Err() != nil
	stats.finish()

	s.logger.Info("Workspace conversion complete",
		"files", stats.FilesDiscovered,
		"changed", stats.FilesChanged,
		"partial", stats.FilesPartial,
		"failed", stats.FilesFailed,
		"written", stats.FilesWritten,
		"duration", stats.Duration)

	if stats.Cancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

// ConvertFile converts a single file of the workspace rooted at root with
// the same output rules as ConvertWorkspace.
func (s *Scanner) ConvertFile(ctx context.Context, root, path string, opts ScanOptions) FileResult {
	return s.convertFile(ctx, root, path, opts)
}

func (s *Scanner) convertFile(ctx context.Context, root, path string, opts ScanOptions) (res FileResult) {
	start := time.Now()
	res.FilePath = path
	defer func() { res.Elapsed = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	mf, err := s.sources.Get(path)
	if err != nil {
		res.Err = err
		s.recordError(path)
		return res
	}
	defer s.sources.Evict(path)

	source := mf.Data
	res.InputBytes = len(source)
	if opts.OnResult != nil {
		res.Source = bytes.Clone(source)
	}

	result, err := s.converter.Convert(path, source)
	res.Result = result
	if err != nil {
		res.Err = err
		s.recordError(path)
		if s.ledger != nil {
			rec := &FileRecord{FilePath: path, Status: FileFailed}
			if result != nil {
				rec.SourceHash = result.ContentHash
				rec.Failed = result.Report.Failed
			}
			s.ledger.Record(rec)
		}
		return res
	}

	out, content, err := plannedOutput(root, path, opts, result, source)
	if err != nil {
		res.Err = err
		s.recordError(path)
		return res
	}
	res.OutputPath = out

	if content != nil {
		// Writing in place truncates the mapped file.
		content = bytes.Clone(content)
		if err := s.sources.Evict(path); err != nil {
			s.logger.Warn("Failed to release source", "file", path, "error", err)
		}
		if err := writeOutput(path, out, content); err != nil {
			res.Err = err
			s.recordError(path)
			return res
		}
		res.Written = true
		res.OutputBytes = len(content)
	}

	if s.ledger != nil {
		s.ledger.Record(&FileRecord{
			FilePath:   path,
			OutputPath: out,
			SourceHash: result.ContentHash,
			OutputHash: converter.ComputeContentHash(result.Output),
			Status:     statusOf(result),
			Rewritten:  result.Report.Rewritten,
			Failed:     result.Report.Failed,
		})
	}
	if s.recorder != nil {
		s.recorder.RecordConversion(result, res.InputBytes, time.Since(start))
	}

	return res
}

func (s *Scanner) recordError(path string) {
	if s.recorder != nil {
		s.recorder.RecordError(path)
	}
}

// plannedOutput returns the output path of a file and the bytes to write
// there. A nil content means nothing is written.
func plannedOutput(root, path string, opts ScanOptions, result *converter.Result, source []byte) (string, []byte, error) {
	switch {
	case opts.OutDir != "":
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", nil, fmt.Errorf("%s is outside %s", path, root)
		}
		out := filepath.Join(opts.OutDir, parser.ESMPath(rel))
		if opts.DryRun {
			return out, nil, nil
		}
		if !result.Changed {
			return out, source, nil
		}
		return out, result.Output, nil

	default:
		out := parser.ESMPath(path)
		if opts.DryRun || !opts.Write || !result.Changed {
			return out, nil, nil
		}
		return out, result.Output, nil
	}
}

func writeOutput(src, out string, content []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(src); err == nil {
		mode = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(out, content, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}

func statusOf(result *converter.Result) FileStatus {
	switch {
	case result.Report.Failed > 0:
		return FilePartial
	case result.Changed:
		return FileChanged
	default:
		return FileUnchanged
	}
}

func (st *ScanStats) add(r FileResult) {
	st.BytesRead += int64(r.InputBytes)

	if r.Result != nil && r.Result.Report != nil {
		for _, failure := range r.Result.Report.Failures {
			st.ItemFailures = append(st.ItemFailures, ItemFailure{FilePath: r.FilePath, Err: failure})
		}
	}

	if r.Err != nil {
		if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
			return
		}
		st.FilesFailed++
		st.Errors = append(st.Errors, FileError{FilePath: r.FilePath, Error: r.Err})
		return
	}

	report := r.Result.Report
	st.ItemsRewritten += report.Rewritten
	st.ItemsFailed += report.Failed
	if r.Result.FromCache {
		st.CacheHits++
	}

	switch statusOf(r.Result) {
	case FilePartial:
		st.FilesPartial++
	case FileChanged:
		st.FilesChanged++
	default:
		st.FilesUnchanged++
	}

	if r.Written {
		st.FilesWritten++
		st.BytesWritten += int64(r.OutputBytes)
	}
}

func (st *ScanStats) finish() {
	st.EndTime = time.Now()
	st.Duration = st.EndTime.Sub(st.StartTime)

	processed := st.FilesChanged + st.FilesUnchanged + st.FilesPartial + st.FilesFailed
	if secs := st.Duration.Seconds(); secs > 0 {
		st.FilesPerSecond = float64(processed) / secs
	}

	sort.Slice(st.Errors, func(i, j int) bool {
		return st.Errors[i].FilePath < st.Errors[j].FilePath
	})
	sort.SliceStable(st.ItemFailures, func(i, j int) bool {
		return st.ItemFailures[i].FilePath < st.ItemFailures[j].FilePath
	})
}

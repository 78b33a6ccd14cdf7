package workspace

import (
	"time"

	"github.com/gnana997/cjs2esm/pkg/converter"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
)

// ScanOptions configures a workspace conversion.
type ScanOptions struct {
	// Include patterns (doublestar syntax, relative to the root). Empty
	// uses DefaultInclude.
	Include []string

	// Exclude patterns, added to DefaultExclude.
	Exclude []string

	// OutDir receives converted files, mirroring their path relative to the
	// root. Files without changes are copied so the tree is complete.
	OutDir string

	// Write converts files in place when OutDir is empty. .cjs and .cts
	// files are written next to the original as .mjs and .mts.
	Write bool

	// DryRun converts without writing anything.
	DryRun bool

	// Workers caps the number of files converted concurrently. Zero uses
	// the CPU-based default.
	Workers int

	// OnResult is called once per processed file from a single goroutine.
	OnResult func(FileResult)
}

// DefaultInclude matches every file the parsers support.
var DefaultInclude = []string{
	"**/*.js",
	"**/*.cjs",
	"**/*.jsx",
	"**/*.ts",
	"**/*.cts",
	"**/*.tsx",
}

// DefaultExclude skips dependency, VCS and build directories.
var DefaultExclude = []string{
	"**/node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
	"coverage/**",
	"out/**",
	".next/**",
	"**/*.min.js",
	"**/*.d.ts",
}

// DefaultScanOptions converts to a dry run over the default patterns.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include: append([]string(nil), DefaultInclude...),
		DryRun:  true,
	}
}

// ScanStats summarizes a workspace conversion.
type ScanStats struct {
	FilesDiscovered int
	FilesChanged    int
	FilesUnchanged  int

	// FilesPartial counts files written with at least one item left in
	// CommonJS form.
	FilesPartial int

	// FilesFailed counts files that could not be converted at all.
	FilesFailed  int
	FilesWritten int

	ItemsRewritten int
	ItemsFailed    int
	CacheHits      int

	BytesRead    int64
	BytesWritten int64

	WorkerCount    int
	Duration       time.Duration
	FilesPerSecond float64

	Errors       []FileError
	ItemFailures []ItemFailure

	Cancelled bool
	StartTime time.Time
	EndTime   time.Time
}

// FileError is a file that could not be converted.
type FileError struct {
	FilePath string
	Error    error
}

// ItemFailure is one item that a rule matched but could not rewrite.
type ItemFailure struct {
	FilePath string
	Err      *rewrite.ItemError
}

// FileResult is the outcome for one file.
type FileResult struct {
	FilePath   string
	OutputPath string

	// Source is a copy of the input, kept only when ScanOptions.OnResult is
	// set.
	Source []byte
	Result *converter.Result

	Written     bool
	InputBytes  int
	OutputBytes int
	Elapsed     time.Duration
	Err         error
	JobID       int
}

// ProgressCallback is called after each file with the number processed so
// far and the total discovered.
type ProgressCallback func(done, total int, currentFile string)

// Recorder receives one call per processed file. *metrics.Metrics satisfies
// it.
type Recorder interface {
	RecordConversion(result *converter.Result, inputBytes int, elapsed time.Duration)
	RecordError(filePath string)
}

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// Debounce delays conversion until a file has been quiet this long.
	Debounce time.Duration

	// IgnorePatterns are matched against base names of changed files.
	IgnorePatterns []string
}

// DefaultDebounce is used when WatchOptions.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// DefaultWatchOptions ignores editor swap and backup files.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce: DefaultDebounce,
		IgnorePatterns: []string{
			"*.swp",
			"*.tmp",
			"*~",
			".#*",
		},
	}
}

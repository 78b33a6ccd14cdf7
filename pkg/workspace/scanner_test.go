package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjs2esm/pkg/converter"
	"github.com/gnana997/cjs2esm/pkg/parser"
	"github.com/gnana997/cjs2esm/pkg/rewrite"
	"github.com/gnana997/cjs2esm/pkg/util"
)

var testFiles = map[string]string{
	"src/index.cjs":             "const foo = require(\"./foo\");\n",
	"src/plain.js":              "console.log(\"hi\");\n",
	"src/partial.js":            "const [a] = require(\"./x\");\nexports.y = \"y\";\n",
	"node_modules/dep/index.js": "module.exports = 1;\n",
	"README.md":                 "# fixture\n",
}

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range testFiles {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestScanner(t *testing.T, mode rewrite.Mode) *Scanner {
	t.Helper()
	logger := util.DiscardLogger()

	pm := parser.NewParserManager(logger)
	t.Cleanup(func() { pm.Close() })

	conv, err := converter.NewConverter(pm, converter.Options{Mode: mode, CacheSize: -1, BlankLines: true}, logger)
	require.NoError(t, err)

	sources := util.NewSourceCache(util.DefaultSourceCacheConfig())
	t.Cleanup(func() { sources.Close() })

	ledger, err := NewLedger(0, logger)
	require.NoError(t, err)

	return NewScanner(conv, sources, ledger, logger)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestConvertWorkspace_DryRun(t *testing.T) {
	root := writeWorkspace(t)
	scanner := newTestScanner(t, rewrite.BestEffort)

	stats, err := scanner.ConvertWorkspace(context.Background(), root, DefaultScanOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesDiscovered)
	assert.Equal(t, 1, stats.FilesChanged)
	assert.Equal(t, 1, stats.FilesUnchanged)
	assert.Equal(t, 1, stats.FilesPartial)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 0, stats.FilesWritten)
	assert.Equal(t, 2, stats.ItemsRewritten)
	assert.Equal(t, 1, stats.ItemsFailed)
	assert.False(t, stats.Cancelled)

	require.Len(t, stats.ItemFailures, 1)
	assert.Equal(t, filepath.Join(root, "src", "partial.js"), stats.ItemFailures[0].FilePath)
	assert.ErrorIs(t, stats.ItemFailures[0].Err, rewrite.ErrUnsupportedPattern)

	assert.NoFileExists(t, filepath.Join(root, "src", "index.mjs"))
	assert.Equal(t, testFiles["src/partial.js"], readFile(t, filepath.Join(root, "src", "partial.js")))
}

func TestConvertWorkspace_OutDir(t *testing.T) {
	root := writeWorkspace(t)
	out := filepath.Join(root, "esm")
	scanner := newTestScanner(t, rewrite.BestEffort)

	opts := ScanOptions{OutDir: out, Workers: 2}
	stats, err := scanner.ConvertWorkspace(context.Background(), root, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesWritten)
	assert.Equal(t, "import foo from \"./foo\";\n", readFile(t, filepath.Join(out, "src", "index.mjs")))
	assert.Equal(t, testFiles["src/plain.js"], readFile(t, filepath.Join(out, "src", "plain.js")))
	assert.Equal(t, "const [a] = require(\"./x\");\nexport const y = \"y\";\n", readFile(t, filepath.Join(out, "src", "partial.js")))
	assert.NoFileExists(t, filepath.Join(out, "node_modules", "dep", "index.js"))

	// The output directory is never scanned as input.
	stats, err = scanner.ConvertWorkspace(context.Background(), root, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FilesDiscovered)
}

func TestConvertWorkspace_InPlace(t *testing.T) {
	root := writeWorkspace(t)
	scanner := newTestScanner(t, rewrite.BestEffort)

	stats, err := scanner.ConvertWorkspace(context.Background(), root, ScanOptions{Write: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesWritten)
	assert.Equal(t, "import foo from \"./foo\";\n", readFile(t, filepath.Join(root, "src", "index.mjs")))
	assert.Equal(t, testFiles["src/index.cjs"], readFile(t, filepath.Join(root, "src", "index.cjs")), "the .cjs source is kept")
	assert.Equal(t, "const [a] = require(\"./x\");\nexport const y = \"y\";\n", readFile(t, filepath.Join(root, "src", "partial.js")))
	assert.Equal(t, testFiles["src/plain.js"], readFile(t, filepath.Join(root, "src", "plain.js")))
}

func TestConvertWorkspace_FailFast(t *testing.T) {
	root := writeWorkspace(t)
	scanner := newTestScanner(t, rewrite.FailFast)

	stats, err := scanner.ConvertWorkspace(context.Background(), root, ScanOptions{Write: true}, nil)
	require.NoError(t, err, "a failing file does not abort the run")

	partial := filepath.Join(root, "src", "partial.js")
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 1, stats.FilesChanged)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, partial, stats.Errors[0].FilePath)
	assert.ErrorIs(t, stats.Errors[0].Error, rewrite.ErrUnsupportedPattern)

	assert.Equal(t, testFiles["src/partial.js"], readFile(t, partial), "failed files are not written")

	rec, ok := scanner.Ledger().Get(partial)
	require.True(t, ok)
	assert.Equal(t, FileFailed, rec.Status)
	assert.Equal(t, 1, rec.Failed)
}

func TestConvertWorkspace_Cancelled(t *testing.T) {
	root := writeWorkspace(t)
	scanner := newTestScanner(t, rewrite.BestEffort)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := scanner.ConvertWorkspace(ctx, root, ScanOptions{Write: true}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.True(t, stats.Cancelled)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 0, stats.FilesWritten)
	assert.NoFileExists(t, filepath.Join(root, "src", "index.mjs"))
}

func TestConvertWorkspace_Callbacks(t *testing.T) {
	root := writeWorkspace(t)
	scanner := newTestScanner(t, rewrite.BestEffort)

	var mu sync.Mutex
	var results []FileResult
	opts := DefaultScanOptions()
	opts.OnResult = func(r FileResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	}

	var progress []int
	_, err := scanner.ConvertWorkspace(context.Background(), root, opts, func(done, total int, _ string) {
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, progress)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, testFiles[filepathRel(t, root, r.FilePath)], string(r.Source))
		assert.Equal(t, len(r.Source), r.InputBytes)
		assert.Positive(t, r.Elapsed)
	}
}

func filepathRel(t *testing.T, root, path string) string {
	t.Helper()
	rel, err := filepath.Rel(root, path)
	require.NoError(t, err)
	return filepath.ToSlash(rel)
}

type fakeRecorder struct {
	mu          sync.Mutex
	conversions int
	errors      []string
}

func (r *fakeRecorder) RecordConversion(*converter.Result, int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversions++
}

func (r *fakeRecorder) RecordError(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, path)
}

func TestConvertWorkspace_Recorder(t *testing.T) {
	root := writeWorkspace(t)
	scanner := newTestScanner(t, rewrite.FailFast)
	recorder := &fakeRecorder{}
	scanner.SetRecorder(recorder)

	_, err := scanner.ConvertWorkspace(context.Background(), root, DefaultScanOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, recorder.conversions)
	assert.Equal(t, []string{filepath.Join(root, "src", "partial.js")}, recorder.errors)
}

func TestConvertWorkspace_LedgerRecords(t *testing.T) {
	root := writeWorkspace(t)
	scanner := newTestScanner(t, rewrite.BestEffort)

	_, err := scanner.ConvertWorkspace(context.Background(), root, ScanOptions{Write: true}, nil)
	require.NoError(t, err)

	records := scanner.Ledger().All()
	require.Len(t, records, 3)
	assert.Equal(t, filepath.Join(root, "src", "index.cjs"), records[0].FilePath)
	assert.Equal(t, FileChanged, records[0].Status)
	assert.Equal(t, filepath.Join(root, "src", "index.mjs"), records[0].OutputPath)
	assert.Equal(t, FilePartial, records[1].Status)
	assert.Equal(t, FileUnchanged, records[2].Status)

	partial := filepath.Join(root, "src", "partial.js")
	written := []byte(readFile(t, partial))
	assert.True(t, scanner.Ledger().Seen(partial, converter.ComputeContentHash(written)))
	assert.True(t, scanner.Ledger().Seen(partial, converter.ComputeContentHash([]byte(testFiles["src/partial.js"]))))
	assert.False(t, scanner.Ledger().Seen(partial, converter.ComputeContentHash([]byte("edited"))))
}

func TestConvertWorkspace_Errors(t *testing.T) {
	scanner := newTestScanner(t, rewrite.BestEffort)

	_, err := scanner.ConvertWorkspace(context.Background(), t.TempDir(), ScanOptions{Include: []string{"[oops"}}, nil)
	assert.Error(t, err)

	_, err = scanner.ConvertWorkspace(context.Background(), filepath.Join(t.TempDir(), "missing"), DefaultScanOptions(), nil)
	assert.Error(t, err)

	stats, err := scanner.ConvertWorkspace(context.Background(), t.TempDir(), DefaultScanOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesDiscovered)
}

func TestConvertFile_MissingFile(t *testing.T) {
	root := t.TempDir()
	scanner := newTestScanner(t, rewrite.BestEffort)

	res := scanner.ConvertFile(context.Background(), root, filepath.Join(root, "gone.js"), DefaultScanOptions())
	assert.Error(t, res.Err)
	assert.Nil(t, res.Result)
}

func TestScanStats_CancelledFilesAreNotFailures(t *testing.T) {
	var stats ScanStats
	stats.add(FileResult{FilePath: "a.js", Err: context.Canceled})
	stats.add(FileResult{FilePath: "b.js", Err: errors.New("boom")})

	assert.Equal(t, 1, stats.FilesFailed)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "b.js", stats.Errors[0].FilePath)
}

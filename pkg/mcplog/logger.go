// Package mcplog writes one JSONL record per MCP tool call.
package mcplog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// LogEntry is one JSONL line.
type LogEntry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	SourceBytes   int            `json:"source_bytes"`
	SourceLines   int            `json:"source_lines"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	TokensEst     int            `json:"tokens_est"`
	ToolError     bool           `json:"tool_error"`
	Error         *string        `json:"error"`
}

// Logger appends entries to a file or writer. Safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	enc *json.Encoder
}

// NewLogger opens path for appending, creating parent directories. An empty
// path returns nil, nil; callers treat a nil Logger as disabled.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	return &Logger{w: f, c: f, enc: json.NewEncoder(f)}, nil
}

// NewWriterLogger logs to w. Close does not close w.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{w: w, enc: json.NewEncoder(w)}
}

// Write appends one entry. Callers usually ignore the error so that logging
// never changes a tool result.
func (l *Logger) Write(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}

// sourceKeys carry module source and are never logged verbatim.
var sourceKeys = map[string]bool{"code": true, "source": true}

const shortStringMax = 64

// SanitizeParams returns a copy of args safe for logging. Source arguments
// and strings longer than 64 bytes become a "<key>_len" entry.
func SanitizeParams(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if ok && (sourceKeys[k] || len(s) > shortStringMax) {
			out[k+"_len"] = len(s)
			continue
		}
		out[k] = v
	}
	return out
}

// SourceBytes returns the size of the module source passed to a tool.
func SourceBytes(args map[string]any) int {
	total := 0
	for k := range sourceKeys {
		if s, ok := args[k].(string); ok {
			total += len(s)
		}
	}
	return total
}

// SourceLines counts the lines of the module source passed to a tool.
func SourceLines(args map[string]any) int {
	for k := range sourceKeys {
		if s, ok := args[k].(string); ok && s != "" {
			return strings.Count(s, "\n") + 1
		}
	}
	return 0
}

// ResponseBytes returns the JSON size of a result's content, or zero.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}

// Now is replaced in tests.
var Now = func() time.Time { return time.Now() }

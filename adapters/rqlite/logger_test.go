package rqlite

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/preslavrachev/rqlitestore/core"
)

type capturedLog struct {
	mu    sync.Mutex
	lines []string
}

func (c *capturedLog) logf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func (c *capturedLog) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func newCapturingLogger(enabled bool) (*Logger, *capturedLog) {
	captured := &capturedLog{}
	logger := NewLogger(enabled)
	logger.logf = captured.logf
	return logger, captured
}

func TestLoggerFormatsStatements(t *testing.T) {
	logger, captured := newCapturingLogger(true)

	stmt := NewStatement("SELECT *\n\tFROM  mybase_test WHERE id = ?", "007", nil, int64(3))
	logger.LogQuery(stmt, 1500*time.Microsecond, 1)

	lines := captured.all()
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	want := `[RQLITE] [1.50ms] [rows:1] SELECT * FROM mybase_test WHERE id = ? [Args: ["007", NULL, 3]]`
	if lines[0] != want {
		t.Errorf("Expected %q, got %q", want, lines[0])
	}
}

func TestLoggerDisabled(t *testing.T) {
	logger, captured := newCapturingLogger(false)

	logger.LogExec(NewStatement("DELETE FROM t"), time.Millisecond, 1)
	logger.LogRedirect("a", "b", 1)
	if len(captured.all()) != 0 {
		t.Error("Expected nothing to be logged while disabled")
	}

	logger.SetEnabled(true)
	logger.LogRedirect("http://a/db/query", "http://b/db/query", 1)
	lines := captured.all()
	if len(lines) != 1 || !strings.Contains(lines[0], "[REDIRECT 1] http://a/db/query -> http://b/db/query") {
		t.Errorf("Unexpected log lines %v", lines)
	}
}

func TestNilLoggerIsDisabled(t *testing.T) {
	var logger *Logger
	if logger.IsEnabled() {
		t.Error("Expected a nil logger to be disabled")
	}
	logger.LogError(NewStatement("SELECT 1"), time.Millisecond, fmt.Errorf("boom"))
}

func TestAdapterLogsErrorsAndRedirects(t *testing.T) {
	node := setupTestTable(t)
	follower := setupTestTable(t)
	follower.RedirectTo(node, 1)

	logger, captured := newCapturingLogger(true)
	adapter := newTestAdapter(t, follower, nil, WithLogger(logger))
	ctx := context.Background()

	if _, err := adapter.List(ctx, testRef, nil); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, err := adapter.List(ctx, testRef, core.NewQuery().Where("nickname", "x")); err == nil {
		t.Fatal("Expected unknown column error")
	}

	var redirect, rows, failure bool
	for _, line := range captured.all() {
		switch {
		case strings.Contains(line, "[REDIRECT 1]"):
			redirect = true
		case strings.Contains(line, "[rows:0] SELECT * FROM mybase_test"):
			rows = true
		case strings.Contains(line, "[ERROR]") && strings.Contains(line, "no such column"):
			failure = true
		}
	}
	if !redirect || !rows || !failure {
		t.Errorf("Expected redirect, query and error lines, got %v", captured.all())
	}
}

package rqlite

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Logger provides SQL debug logging for requests sent to rqlite
type Logger struct {
	enabled bool
	mu      sync.RWMutex
	logf    func(format string, args ...any)
}

// NewLogger creates a new logger
func NewLogger(enabled bool) *Logger {
	return &Logger{
		enabled: enabled,
		logf:    log.Printf,
	}
}

// IsEnabled returns whether logging is enabled
func (l *Logger) IsEnabled() bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// SetEnabled enables or disables logging
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// LogQuery logs a statement sent to /db/query with its row count
func (l *Logger) LogQuery(stmt Statement, duration time.Duration, rowCount int) {
	if !l.IsEnabled() {
		return
	}

	l.logf("[RQLITE] [%.2fms] [rows:%d] %s %s",
		float64(duration.Nanoseconds())/1e6,
		rowCount,
		l.formatQuery(stmt.SQL),
		l.formatArgs(stmt.Args))
}

// LogExec logs a statement sent to /db/execute with the affected rows
func (l *Logger) LogExec(stmt Statement, duration time.Duration, rowsAffected int64) {
	if !l.IsEnabled() {
		return
	}

	l.logf("[RQLITE] [%.2fms] [rows:%d] %s %s",
		float64(duration.Nanoseconds())/1e6,
		rowsAffected,
		l.formatQuery(stmt.SQL),
		l.formatArgs(stmt.Args))
}

// LogError logs a statement that resulted in an error
func (l *Logger) LogError(stmt Statement, duration time.Duration, err error) {
	if !l.IsEnabled() {
		return
	}

	l.logf("[RQLITE] [%.2fms] [ERROR] %s %s - %v",
		float64(duration.Nanoseconds())/1e6,
		l.formatQuery(stmt.SQL),
		l.formatArgs(stmt.Args),
		err)
}

// LogRedirect logs a redirect to another node
func (l *Logger) LogRedirect(from, to string, attempt int) {
	if !l.IsEnabled() {
		return
	}

	l.logf("[RQLITE] [REDIRECT %d] %s -> %s", attempt, from, to)
}

// formatQuery cleans up the SQL query for better readability
func (l *Logger) formatQuery(query string) string {
	query = strings.TrimSpace(query)
	query = strings.ReplaceAll(query, "\n", " ")
	query = strings.ReplaceAll(query, "\t", " ")

	for strings.Contains(query, "  ") {
		query = strings.ReplaceAll(query, "  ", " ")
	}

	return query
}

// formatArgs formats the query arguments for logging
func (l *Logger) formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}

	var formatted []string
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			formatted = append(formatted, fmt.Sprintf(`"%s"`, v))
		case nil:
			formatted = append(formatted, "NULL")
		default:
			formatted = append(formatted, fmt.Sprintf("%v", v))
		}
	}

	return fmt.Sprintf("[Args: [%s]]", strings.Join(formatted, ", "))
}

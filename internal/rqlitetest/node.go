// Package rqlitetest provides an in-process fake rqlite node for tests.
//
// The node speaks the subset of the rqlite data API used by the adapter
// (POST /db/query and POST /db/execute with JSON statement arrays) and runs
// every statement against an in-memory SQLite database, so callers observe
// genuine SQLite error text such as "no such table: mybase_test".
package rqlitetest

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Statement is a decoded parameterized statement
type Statement struct {
	SQL  string
	Args []any
}

// Request records a request served by the node
type Request struct {
	Method      string
	Path        string
	Level       string
	Transaction bool
	Statements  []Statement
}

// Node is a fake rqlite node
type Node struct {
	db     *sql.DB
	server *httptest.Server

	mu         sync.Mutex
	requests   []Request
	leader     *Node
	redirects  int // remaining redirects, negative means forever
	redirected int
	failures   []failure
}

type failure struct {
	status int
	body   string
}

type queryResult struct {
	Columns []string `json:"columns,omitempty"`
	Types   []string `json:"types,omitempty"`
	Values  [][]any  `json:"values,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type executeResult struct {
	LastInsertID int64  `json:"last_insert_id,omitempty"`
	RowsAffected int64  `json:"rows_affected,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NewNode starts a node; it is shut down when the test finishes
func NewNode(t testing.TB) *Node {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	n := &Node{db: db}
	n.server = httptest.NewServer(n)

	t.Cleanup(func() {
		n.server.Close()
		db.Close()
	})

	return n
}

// URL returns the node's base URL
func (n *Node) URL() string {
	return n.server.URL
}

// Host returns the host part of the node's address
func (n *Node) Host() string {
	host, _, _ := net.SplitHostPort(n.server.Listener.Addr().String())
	return host
}

// Port returns the port part of the node's address
func (n *Node) Port() int {
	_, port, _ := net.SplitHostPort(n.server.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// DB returns the node's database
func (n *Node) DB() *sql.DB {
	return n.db
}

// MustExec runs a statement directly against the database, bypassing HTTP
func (n *Node) MustExec(t testing.TB, query string, args ...any) {
	t.Helper()
	if _, err := n.db.Exec(query, args...); err != nil {
		t.Fatalf("Failed to execute %q: %v", query, err)
	}
}

// RedirectTo makes the node answer the next times requests with a redirect to
// leader. A negative times redirects forever.
func (n *Node) RedirectTo(leader *Node, times int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leader = leader
	n.redirects = times
}

// FailNext makes the next request fail with a plain-text HTTP error
func (n *Node) FailNext(status int, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, failure{status: status, body: body})
}

// Requests returns the requests served so far (redirects excluded)
func (n *Node) Requests() []Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Request(nil), n.requests...)
}

// Redirected returns how many redirects the node has issued
func (n *Node) Redirected() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.redirected
}

// ResetRequests forgets the recorded requests
func (n *Node) ResetRequests() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = nil
	n.redirected = 0
}

// ServeHTTP implements the rqlite data API subset
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	if n.leader != nil && n.redirects != 0 {
		if n.redirects > 0 {
			n.redirects--
		}
		n.redirected++
		location := n.leader.URL() + r.URL.RequestURI()
		n.mu.Unlock()
		http.Redirect(w, r, location, http.StatusMovedPermanently)
		return
	}
	if len(n.failures) > 0 {
		f := n.failures[0]
		n.failures = n.failures[1:]
		n.mu.Unlock()
		http.Error(w, f.body, f.status)
		return
	}
	n.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statements, err := decodeStatements(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := r.URL.Query()
	n.mu.Lock()
	n.requests = append(n.requests, Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		Level:       params.Get("level"),
		Transaction: params.Has("transaction"),
		Statements:  statements,
	})
	n.mu.Unlock()

	start := time.Now()
	var results any
	switch r.URL.Path {
	case "/db/query":
		results = n.query(statements)
	case "/db/execute":
		results = n.execute(statements, params.Has("transaction"))
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"results": results,
		"time":    time.Since(start).Seconds(),
	})
}

func (n *Node) query(statements []Statement) []queryResult {
	results := make([]queryResult, 0, len(statements))
	for _, stmt := range statements {
		results = append(results, n.queryOne(stmt))
	}
	return results
}

func (n *Node) queryOne(stmt Statement) queryResult {
	rows, err := n.db.Query(stmt.SQL, stmt.Args...)
	if err != nil {
		return queryResult{Error: err.Error()}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return queryResult{Error: err.Error()}
	}
	result := queryResult{Columns: columns, Types: make([]string, len(columns))}
	if columnTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range columnTypes {
			result.Types[i] = strings.ToLower(ct.DatabaseTypeName())
		}
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return queryResult{Error: err.Error()}
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Values = append(result.Values, values)
	}
	if err := rows.Err(); err != nil {
		return queryResult{Error: err.Error()}
	}
	return result
}

func (n *Node) execute(statements []Statement, transaction bool) []executeResult {
	results := make([]executeResult, 0, len(statements))

	if !transaction {
		for _, stmt := range statements {
			res, err := n.db.Exec(stmt.SQL, stmt.Args...)
			results = append(results, toExecuteResult(res, err))
		}
		return results
	}

	tx, err := n.db.Begin()
	if err != nil {
		return append(results, executeResult{Error: err.Error()})
	}
	for _, stmt := range statements {
		res, err := tx.Exec(stmt.SQL, stmt.Args...)
		results = append(results, toExecuteResult(res, err))
		if err != nil {
			tx.Rollback()
			return results
		}
	}
	if err := tx.Commit(); err != nil {
		results = append(results, executeResult{Error: err.Error()})
	}
	return results
}

func toExecuteResult(res sql.Result, err error) executeResult {
	if err != nil {
		return executeResult{Error: err.Error()}
	}
	id, _ := res.LastInsertId()
	affected, _ := res.RowsAffected()
	return executeResult{LastInsertID: id, RowsAffected: affected}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return val
	}
}

// decodeStatements decodes the rqlite statement array: each element is either
// a SQL string or an array whose first element is the SQL and the rest are args.
func decodeStatements(body io.Reader) ([]Statement, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("invalid statement array: %w", err)
	}

	statements := make([]Statement, 0, len(elements))
	for _, element := range elements {
		var sqlText string
		if err := json.Unmarshal(element, &sqlText); err == nil {
			statements = append(statements, Statement{SQL: sqlText})
			continue
		}

		var parts []any
		dec := json.NewDecoder(bytes.NewReader(element))
		dec.UseNumber()
		if err := dec.Decode(&parts); err != nil || len(parts) == 0 {
			return nil, fmt.Errorf("invalid statement %s", string(element))
		}
		sqlText, ok := parts[0].(string)
		if !ok {
			return nil, fmt.Errorf("statement must start with SQL text: %s", string(element))
		}
		args := parts[1:]
		for i, arg := range args {
			if num, ok := arg.(json.Number); ok {
				if i64, err := num.Int64(); err == nil {
					args[i] = i64
				} else if f64, err := num.Float64(); err == nil {
					args[i] = f64
				}
			}
		}
		statements = append(statements, Statement{SQL: sqlText, Args: args})
	}
	return statements, nil
}

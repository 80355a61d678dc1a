package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/preslavrachev/rqlitestore/config"
	"github.com/preslavrachev/rqlitestore/internal/rqlitetest"
)

func setupCLITest(t *testing.T) (*rqlitetest.Node, func(stdin string, args ...string) (int, string, string)) {
	t.Helper()

	node := rqlitetest.NewNode(t)
	node.MustExec(t, `CREATE TABLE crm_contacts (id TEXT PRIMARY KEY, firstname TEXT, lastname TEXT, age INTEGER)`)

	run := func(stdin string, args ...string) (int, string, string) {
		var stdout, stderr bytes.Buffer
		full := append([]string{"--host", node.Host(), "--port", strconv.Itoa(node.Port())}, args...)
		rc := Run(full, strings.NewReader(stdin), &stdout, &stderr)
		return rc, stdout.String(), stderr.String()
	}
	return node, run
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", line, err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestCLISaveLoadRemove(t *testing.T) {
	_, run := setupCLITest(t)

	rc, out, errOut := run("", "save", "crm", "contacts", `{"id":"007","firstname":"John","lastname":"Doo","age":42}`)
	if rc != exitOK {
		t.Fatalf("save exited with %d: %s", rc, errOut)
	}
	if rows := decodeLines(t, out); len(rows) != 1 || rows[0]["id"] != "007" {
		t.Errorf("Unexpected save output %q", out)
	}

	rc, out, errOut = run("", "load", "crm", "contacts", "007")
	if rc != exitOK {
		t.Fatalf("load exited with %d: %s", rc, errOut)
	}
	rows := decodeLines(t, out)
	if len(rows) != 1 || rows[0]["firstname"] != "John" || rows[0]["age"] != float64(42) {
		t.Errorf("Unexpected load output %q", out)
	}

	rc, out, _ = run("", "remove", "crm", "contacts", "007")
	if rc != exitOK || strings.TrimSpace(out) != `{"removed":true}` {
		t.Errorf("Unexpected remove result %d %q", rc, out)
	}

	rc, out, _ = run("", "load", "crm", "contacts", "007")
	if rc != exitOK || strings.TrimSpace(out) != "null" {
		t.Errorf("Expected null for a removed entity, got %d %q", rc, out)
	}
}

func TestCLISaveFromStdin(t *testing.T) {
	_, run := setupCLITest(t)

	rc, out, errOut := run(`{"firstname":"Jane"}`, "save", "crm", "contacts")
	if rc != exitOK {
		t.Fatalf("save exited with %d: %s", rc, errOut)
	}
	rows := decodeLines(t, out)
	if len(rows) != 1 || rows[0]["id"] == "" || rows[0]["firstname"] != "Jane" {
		t.Errorf("Unexpected save output %q", out)
	}
}

func TestCLIList(t *testing.T) {
	node, run := setupCLITest(t)
	node.MustExec(t, `INSERT INTO crm_contacts (id, firstname, lastname, age) VALUES
		('1', 'Alice', 'Smith', 30), ('2', 'Bob', 'Smith', 25), ('3', 'Carol', NULL, 35)`)

	rc, out, errOut := run("", "list", "crm", "contacts", "--where", "lastname=Smith", "--sort", "age", "--desc")
	if rc != exitOK {
		t.Fatalf("list exited with %d: %s", rc, errOut)
	}
	rows := decodeLines(t, out)
	if len(rows) != 2 || rows[0]["firstname"] != "Alice" || rows[1]["firstname"] != "Bob" {
		t.Errorf("Unexpected list output %q", out)
	}

	rc, out, _ = run("", "list", "crm", "contacts", "-w", "lastname=null")
	if rows := decodeLines(t, out); rc != exitOK || len(rows) != 1 || rows[0]["firstname"] != "Carol" {
		t.Errorf("Unexpected null filter output %d %q", rc, out)
	}

	rc, out, _ = run("", "list", "crm", "contacts", "--limit", "1", "--offset", "1", "--sort", "id", "-f", "id")
	rows = decodeLines(t, out)
	if rc != exitOK || len(rows) != 1 || rows[0]["id"] != "2" || len(rows[0]) != 1 {
		t.Errorf("Unexpected paginated output %d %q", rc, out)
	}
}

func TestCLIPurgeAndDescribe(t *testing.T) {
	node, run := setupCLITest(t)
	node.MustExec(t, `INSERT INTO crm_contacts (id, lastname) VALUES ('1', 'Smith'), ('2', 'Smith'), ('3', 'Jones')`)

	rc, out, _ := run("", "purge", "crm", "contacts", "-w", "lastname=Smith")
	if rc != exitOK || strings.TrimSpace(out) != `{"removed":2}` {
		t.Errorf("Unexpected purge result %d %q", rc, out)
	}

	rc, out, errOut := run("", "describe", "crm", "contacts")
	if rc != exitOK {
		t.Fatalf("describe exited with %d: %s", rc, errOut)
	}
	if !strings.Contains(out, `"table_name":"crm_contacts"`) || !strings.Contains(out, `"primary_key":"id"`) {
		t.Errorf("Unexpected describe output %q", out)
	}
}

func TestCLIExitCodes(t *testing.T) {
	_, run := setupCLITest(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing arguments", []string{"load", "crm"}, exitUsage},
		{"unknown command", []string{"frobnicate"}, exitUsage},
		{"bad level", []string{"--level", "eventual", "list", "crm", "contacts"}, exitUsage},
		{"bad filter", []string{"list", "crm", "contacts", "-w", "nonsense"}, exitUsage},
		{"bad entity json", []string{"save", "crm", "contacts", "{"}, exitUsage},
		{"missing table", []string{"load", "crm", "missing", "1"}, exitError},
		{"missing table ignored", []string{"--ignore-missing-tables", "load", "crm", "missing", "1"}, exitOK},
		{"unknown column", []string{"list", "crm", "contacts", "-w", "nickname=x"}, exitError},
		{"help", []string{"--help"}, exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, _, errOut := run("", tt.args...)
			if rc != tt.want {
				t.Errorf("Expected exit code %d, got %d (stderr: %s)", tt.want, rc, errOut)
			}
		})
	}
}

func TestCLIErrorMessage(t *testing.T) {
	_, run := setupCLITest(t)

	rc, _, errOut := run("", "load", "crm", "missing", "1")
	if rc != exitError {
		t.Fatalf("Expected exit code %d, got %d", exitError, rc)
	}
	if !strings.Contains(errOut, "no such table") {
		t.Errorf("Expected the database error on stderr, got %q", errOut)
	}
}

func TestCLINoMerge(t *testing.T) {
	_, run := setupCLITest(t)

	run("", "save", "crm", "contacts", `{"id":"1","firstname":"John","lastname":"Doo"}`)
	if rc, _, errOut := run("", "--no-merge", "save", "crm", "contacts", `{"id":"1","lastname":"Doe"}`); rc != exitOK {
		t.Fatalf("save exited with %d: %s", rc, errOut)
	}

	_, out, _ := run("", "load", "crm", "contacts", "1")
	rows := decodeLines(t, out)
	if len(rows) != 1 || rows[0]["firstname"] != nil || rows[0]["lastname"] != "Doe" {
		t.Errorf("Expected the row to be replaced, got %q", out)
	}
}

func TestServeHandler(t *testing.T) {
	node := rqlitetest.NewNode(t)
	node.MustExec(t, `CREATE TABLE crm_contacts (id TEXT PRIMARY KEY, firstname TEXT)`)
	node.MustExec(t, `INSERT INTO crm_contacts (id, firstname) VALUES ('1', 'Ann')`)

	cli := &cliArgs{}
	cli.Serve.Addr = ":0"
	cli.Serve.Entities = []string{"crm/contacts"}

	cfg := config.DefaultConfig()
	cfg.Host = node.Host()
	cfg.Port = node.Port()
	r := &runner{cli: cli, cfg: cfg, stdout: io.Discard, stderr: io.Discard}

	server, err := r.newServer()
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rqlite-store/dump/crm/contacts?format=json", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"firstname":"Ann"`) {
		t.Errorf("Unexpected dump response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rqlite-store/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("Expected Go runtime metrics, got %d", rec.Code)
	}

	cli.Serve.Entities = []string{"a/b/c"}
	if _, err := r.newServer(); err == nil {
		t.Error("Expected an invalid entity reference to be rejected")
	}
}

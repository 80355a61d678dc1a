package rqlite

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/preslavrachev/rqlitestore/core"
)

func TestBuilderSelectQuery(t *testing.T) {
	b, err := newBuilder("mybase_test")
	if err != nil {
		t.Fatalf("newBuilder failed: %v", err)
	}

	tests := []struct {
		name     string
		query    *core.Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "nil query",
			query:   nil,
			wantSQL: "SELECT * FROM mybase_test",
		},
		{
			name:     "filters in sorted order",
			query:    core.NewQuery().Where("lastname", "Doo").Where("age", 42).Where("deleted", nil),
			wantSQL:  "SELECT * FROM mybase_test WHERE age = ? AND deleted IS NULL AND lastname = ?",
			wantArgs: []any{int64(42), "Doo"},
		},
		{
			name:     "sort and pagination",
			query:    core.NewQuery().WithSort("age", core.SortDesc).WithSort("id", "").WithPagination(10, 20),
			wantSQL:  "SELECT * FROM mybase_test ORDER BY age DESC, id ASC LIMIT ? OFFSET ?",
			wantArgs: []any{int64(10), int64(20)},
		},
		{
			name:     "offset only",
			query:    core.NewQuery().WithPagination(0, 5),
			wantSQL:  "SELECT * FROM mybase_test LIMIT -1 OFFSET ?",
			wantArgs: []any{int64(5)},
		},
		{
			name:    "projection",
			query:   core.NewQuery().WithFields("id", "firstname"),
			wantSQL: "SELECT id, firstname FROM mybase_test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := b.selectQuery(tt.query)
			if err != nil {
				t.Fatalf("selectQuery failed: %v", err)
			}
			if stmt.SQL != tt.wantSQL {
				t.Errorf("Expected SQL %q, got %q", tt.wantSQL, stmt.SQL)
			}
			if len(stmt.Args) != len(tt.wantArgs) || (len(tt.wantArgs) > 0 && !reflect.DeepEqual(stmt.Args, tt.wantArgs)) {
				t.Errorf("Expected args %v, got %v", tt.wantArgs, stmt.Args)
			}
		})
	}
}

func TestBuilderInsertAndUpdate(t *testing.T) {
	b, _ := newBuilder("mybase_test")
	entity := core.Entity{"id": "007", "lastname": "Doo", "firstname": "John", "id$": "ignored"}

	insert, err := b.insert(entity)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if want := "INSERT INTO mybase_test (firstname, id, lastname) VALUES (?, ?, ?)"; insert.SQL != want {
		t.Errorf("Expected %q, got %q", want, insert.SQL)
	}
	if !reflect.DeepEqual(insert.Args, []any{"John", "007", "Doo"}) {
		t.Errorf("Unexpected insert args %v", insert.Args)
	}

	update, err := b.update(entity)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if want := "UPDATE mybase_test SET firstname = ?, lastname = ? WHERE id = ?"; update.SQL != want {
		t.Errorf("Expected %q, got %q", want, update.SQL)
	}
	if !reflect.DeepEqual(update.Args, []any{"John", "Doo", "007"}) {
		t.Errorf("Unexpected update args %v", update.Args)
	}

	idOnly, err := b.update(core.Entity{"id": "007"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if want := "UPDATE mybase_test SET id = id WHERE id = ?"; idOnly.SQL != want {
		t.Errorf("Expected %q, got %q", want, idOnly.SQL)
	}
}

func TestBuilderDeleteAndPragma(t *testing.T) {
	b, _ := newBuilder("mybase_test")

	if got := b.deleteByID("1").SQL; got != "DELETE FROM mybase_test WHERE id = ?" {
		t.Errorf("Unexpected delete %q", got)
	}

	stmt, err := b.deleteQuery(core.NewQuery().Where("lastname", "Doo"))
	if err != nil {
		t.Fatalf("deleteQuery failed: %v", err)
	}
	if stmt.SQL != "DELETE FROM mybase_test WHERE lastname = ?" {
		t.Errorf("Unexpected delete %q", stmt.SQL)
	}

	all, _ := b.deleteQuery(nil)
	if all.SQL != "DELETE FROM mybase_test" {
		t.Errorf("Unexpected delete %q", all.SQL)
	}

	if got := b.tableInfo().SQL; got != "PRAGMA table_info(mybase_test)" {
		t.Errorf("Unexpected pragma %q", got)
	}
}

func TestBuilderRejectsInvalidIdentifiers(t *testing.T) {
	if _, err := newBuilder("users; DROP TABLE users"); err == nil {
		t.Error("Expected invalid table name to be rejected")
	}

	b, _ := newBuilder("mybase_test")
	if _, err := b.insert(core.Entity{"bad-name": 1}); err == nil {
		t.Error("Expected invalid field name to be rejected")
	}
	if _, err := b.insert(core.Entity{"id$": "x"}); err == nil {
		t.Error("Expected an entity with only metadata to be rejected")
	}
	if _, err := b.selectQuery(core.NewQuery().WithFields("*")); err == nil {
		t.Error("Expected invalid projection to be rejected")
	}
}

func TestBindValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{"text", "text"},
		{true, true},
		{7, int64(7)},
		{int32(7), int64(7)},
		{uint8(7), int64(7)},
		{uint(7), int64(7)},
		{uint64(math.MaxInt64), int64(math.MaxInt64)},
		{float32(1.5), float64(1.5)},
		{ts, "2024-03-01T12:00:00Z"},
	}

	for _, tt := range tests {
		got, err := bindValue("f", tt.in)
		if err != nil {
			t.Errorf("bindValue(%#v) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("bindValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}

	if _, err := bindValue("f", map[string]any{}); err == nil {
		t.Error("Expected maps to be rejected")
	}
	if got, err := bindValue("f", uint64(1<<63)); err == nil {
		t.Errorf("Expected uint64 above MaxInt64 to be rejected, got %#v", got)
	}
}

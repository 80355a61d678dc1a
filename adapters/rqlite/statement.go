package rqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/preslavrachev/rqlitestore/core"
)

// Statement is a parameterized SQL statement in rqlite's JSON form
type Statement struct {
	SQL  string
	Args []any
}

// NewStatement creates a statement
func NewStatement(sql string, args ...any) Statement {
	return Statement{SQL: sql, Args: args}
}

// MarshalJSON renders "SQL" or ["SQL", arg1, ...]
func (s Statement) MarshalJSON() ([]byte, error) {
	if len(s.Args) == 0 {
		return json.Marshal(s.SQL)
	}
	parts := make([]any, 0, len(s.Args)+1)
	parts = append(parts, s.SQL)
	parts = append(parts, s.Args...)
	return json.Marshal(parts)
}

// String returns the statement for logging
func (s Statement) String() string {
	return s.SQL
}

// QueryResult is the result of one statement sent to /db/query
type QueryResult struct {
	Columns []string `json:"columns"`
	Types   []string `json:"types"`
	Values  [][]any  `json:"values"`
	Error   string   `json:"error"`
	Time    float64  `json:"time"`
}

// Entities converts the rows into entities keyed by column name
func (r QueryResult) Entities() []core.Entity {
	entities := make([]core.Entity, 0, len(r.Values))
	for _, row := range r.Values {
		entity := make(core.Entity, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				entity[column] = row[i]
			}
		}
		entities = append(entities, entity)
	}
	return entities
}

// ExecuteResult is the result of one statement sent to /db/execute
type ExecuteResult struct {
	LastInsertID int64   `json:"last_insert_id"`
	RowsAffected int64   `json:"rows_affected"`
	Error        string  `json:"error"`
	Time         float64 `json:"time"`
}

type response[T any] struct {
	Results []T     `json:"results"`
	Error   string  `json:"error"`
	Time    float64 `json:"time"`
}

// decodeResponse decodes an rqlite response keeping numbers exact
func decodeResponse[T any](body []byte) (*response[T], error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, core.NewError(core.KindGeneric, "", "", "empty response body")
	}

	var resp response[T]
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// normalizeRows turns json.Number cells into int64 or float64
func normalizeRows(rows [][]any) {
	for _, row := range rows {
		for i, v := range row {
			row[i] = normalizeNumber(v)
		}
	}
}

func normalizeNumber(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if !strings.ContainsAny(num.String(), ".eE") {
		if i, err := num.Int64(); err == nil {
			return i
		}
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}

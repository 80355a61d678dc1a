package rqlite

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/preslavrachev/rqlitestore/core"
)

// builder renders parameterized statements for a single table. Identifiers are
// validated and never quoted; values are always bound as arguments.
type builder struct {
	table string
}

func newBuilder(table string) (builder, error) {
	if !core.ValidIdentifier(table) {
		return builder{}, fmt.Errorf("invalid table name %q", table)
	}
	return builder{table: table}, nil
}

func (b builder) selectByID(id string) Statement {
	return NewStatement(fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", b.table, core.IDField), id)
}

func (b builder) selectQuery(query *core.Query) (Statement, error) {
	columns := "*"
	if query != nil && len(query.Fields) > 0 {
		for _, field := range query.Fields {
			if !core.ValidIdentifier(field) {
				return Statement{}, fmt.Errorf("invalid field name %q", field)
			}
		}
		columns = strings.Join(query.Fields, ", ")
	}

	queryStr := fmt.Sprintf("SELECT %s FROM %s", columns, b.table)

	where, args, err := b.whereClause(query)
	if err != nil {
		return Statement{}, err
	}
	queryStr += where

	if query == nil {
		return NewStatement(queryStr, args...), nil
	}

	// Build ORDER BY clause
	if query.HasSort() {
		var orderClauses []string
		for _, sf := range query.Sort {
			if !core.ValidIdentifier(sf.Field) {
				return Statement{}, fmt.Errorf("invalid sort field %q", sf.Field)
			}
			direction := sf.Direction
			if direction == "" {
				direction = core.SortAsc
			}
			if !direction.IsValid() {
				return Statement{}, fmt.Errorf("invalid sort direction %q", sf.Direction)
			}
			orderClauses = append(orderClauses, fmt.Sprintf("%s %s", sf.Field, strings.ToUpper(direction.String())))
		}
		queryStr += " ORDER BY " + strings.Join(orderClauses, ", ")
	}

	// SQLite needs a LIMIT before OFFSET; -1 means no limit
	limit, offset := query.Pagination.Limit, query.Pagination.Offset
	switch {
	case limit > 0:
		queryStr += " LIMIT ? OFFSET ?"
		args = append(args, int64(limit), int64(offset))
	case offset > 0:
		queryStr += " LIMIT -1 OFFSET ?"
		args = append(args, int64(offset))
	}

	return NewStatement(queryStr, args...), nil
}

func (b builder) insert(entity core.Entity) (Statement, error) {
	fields := entity.Fields()
	if len(fields) == 0 {
		return Statement{}, fmt.Errorf("entity has no fields")
	}

	placeholders := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		if !core.ValidIdentifier(field) {
			return Statement{}, fmt.Errorf("invalid field name %q", field)
		}
		value, err := bindValue(field, entity[field])
		if err != nil {
			return Statement{}, err
		}
		placeholders[i] = "?"
		args[i] = value
	}

	queryStr := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		b.table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
	)
	return NewStatement(queryStr, args...), nil
}

func (b builder) update(entity core.Entity) (Statement, error) {
	var setClauses []string
	var args []any
	for _, field := range entity.Fields() {
		if field == core.IDField {
			continue
		}
		if !core.ValidIdentifier(field) {
			return Statement{}, fmt.Errorf("invalid field name %q", field)
		}
		value, err := bindValue(field, entity[field])
		if err != nil {
			return Statement{}, err
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", field))
		args = append(args, value)
	}

	// Nothing besides the id: touch the row so rows_affected still reports existence
	if len(setClauses) == 0 {
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", core.IDField, core.IDField))
	}

	// Add ID to values for WHERE clause
	id, err := bindValue(core.IDField, entity[core.IDField])
	if err != nil {
		return Statement{}, err
	}
	args = append(args, id)

	queryStr := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		b.table,
		strings.Join(setClauses, ", "),
		core.IDField,
	)
	return NewStatement(queryStr, args...), nil
}

func (b builder) deleteByID(id string) Statement {
	return NewStatement(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", b.table, core.IDField), id)
}

func (b builder) deleteQuery(query *core.Query) (Statement, error) {
	where, args, err := b.whereClause(query)
	if err != nil {
		return Statement{}, err
	}
	return NewStatement(fmt.Sprintf("DELETE FROM %s", b.table)+where, args...), nil
}

func (b builder) tableInfo() Statement {
	return NewStatement(fmt.Sprintf("PRAGMA table_info(%s)", b.table))
}

// whereClause renders the exact-match filters in sorted field order
func (b builder) whereClause(query *core.Query) (string, []any, error) {
	if query == nil || !query.HasFilters() {
		return "", nil, nil
	}

	var whereConditions []string
	var args []any
	for _, field := range query.FilterFields() {
		if !core.ValidIdentifier(field) {
			return "", nil, fmt.Errorf("invalid filter field %q", field)
		}
		value := query.Filters[field]
		if value == nil {
			whereConditions = append(whereConditions, fmt.Sprintf("%s IS NULL", field))
			continue
		}
		bound, err := bindValue(field, value)
		if err != nil {
			return "", nil, err
		}
		whereConditions = append(whereConditions, fmt.Sprintf("%s = ?", field))
		args = append(args, bound)
	}

	return " WHERE " + strings.Join(whereConditions, " AND "), args, nil
}

// bindValue accepts the scalar types rqlite can bind
func bindValue(field string, value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return unsignedValue(field, uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return unsignedValue(field, v)
	case float32:
		return float64(v), nil
	case json.Number:
		return normalizeNumber(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T for field %q", value, field)
	}
}

// unsignedValue binds v as an SQLite integer, which is a signed 64-bit value
func unsignedValue(field string, v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, fmt.Errorf("value %d for field %q overflows a 64-bit integer", v, field)
	}
	return int64(v), nil
}

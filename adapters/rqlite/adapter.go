// Package rqlite stores framework entities in an rqlite cluster over its HTTP
// data API. Each entity reference maps to one table; each entity to one row.
package rqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/preslavrachev/rqlitestore/config"
	"github.com/preslavrachev/rqlitestore/core"
)

// Adapter implements core.Store on top of rqlite
type Adapter struct {
	cfg        config.Config
	client     *Client
	logger     *Logger
	metrics    *Metrics
	newID      func() string
	classifier classifier
}

var _ core.Store = (*Adapter)(nil)

// New creates an adapter. The configuration is copied and never changes afterwards.
func New(cfg config.Config, opts ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Auth != nil {
		auth := *cfg.Auth
		cfg.Auth = &auth
	}

	o := buildOptions(cfg, opts)
	return &Adapter{
		cfg:        cfg,
		client:     newClient(cfg, o),
		logger:     o.logger,
		metrics:    o.metrics,
		newID:      o.newID,
		classifier: classifier{messages: cfg.Messages},
	}, nil
}

// Config returns a copy of the adapter configuration
func (a *Adapter) Config() config.Config {
	return a.cfg
}

// Client returns the underlying rqlite client
func (a *Adapter) Client() *Client {
	return a.client
}

// SetDebugEnabled enables or disables SQL debug logging at runtime
func (a *Adapter) SetDebugEnabled(enabled bool) {
	a.logger.SetEnabled(enabled)
}

// Load returns the entity with the given id, or nil when there is none
func (a *Adapter) Load(ctx context.Context, ref core.EntityRef, id string) (entity core.Entity, err error) {
	const op = "load"
	defer a.observe(op, time.Now(), &err)

	if id == "" {
		return nil, nil
	}

	table := ref.TableName()
	b, err := newBuilder(table)
	if err != nil {
		return nil, a.classifier.badArguments(op, table, err.Error())
	}

	results, err := a.client.Query(ctx, b.selectByID(id))
	if err != nil {
		if a.ignored(err) {
			return nil, nil
		}
		return nil, wrap(op, table, err)
	}

	return firstEntity(results), nil
}

// Save inserts or updates the entity and returns what was stored.
//
// Without an id, the id is taken from the "id$" field or generated. With an id
// and merging enabled, the stored row is loaded and the incoming fields are
// merged into it; the load and the update are separate requests, so a
// concurrent writer may interleave and the last write wins. With merging
// disabled, the row is replaced by the incoming fields in one transaction.
func (a *Adapter) Save(ctx context.Context, ref core.EntityRef, entity core.Entity) (saved core.Entity, err error) {
	const op = "save"
	defer a.observe(op, time.Now(), &err)

	table := ref.TableName()
	if entity == nil {
		return nil, a.classifier.badArguments(op, table, "entity is nil")
	}

	b, err := newBuilder(table)
	if err != nil {
		return nil, a.classifier.badArguments(op, table, err.Error())
	}

	if !entity.HasID() {
		return a.insert(ctx, op, b, a.assignID(entity))
	}
	if a.cfg.Merge {
		return a.merge(ctx, op, b, entity)
	}
	return a.replace(ctx, op, b, entity)
}

// List returns the rows matching the query, never nil
func (a *Adapter) List(ctx context.Context, ref core.EntityRef, query *core.Query) (entities []core.Entity, err error) {
	const op = "list"
	defer a.observe(op, time.Now(), &err)

	table := ref.TableName()
	b, err := newBuilder(table)
	if err != nil {
		return nil, a.classifier.badArguments(op, table, err.Error())
	}

	stmt, err := b.selectQuery(query)
	if err != nil {
		return nil, a.classifier.badArguments(op, table, err.Error())
	}

	results, err := a.client.Query(ctx, stmt)
	if err != nil {
		if a.ignored(err) {
			return []core.Entity{}, nil
		}
		return nil, wrap(op, table, err)
	}

	if len(results) == 0 {
		return []core.Entity{}, nil
	}
	return results[0].Entities(), nil
}

// Remove deletes the entity with the given id and reports whether a row was removed
func (a *Adapter) Remove(ctx context.Context, ref core.EntityRef, id string) (removed bool, err error) {
	const op = "remove"
	defer a.observe(op, time.Now(), &err)

	table := ref.TableName()
	if id == "" {
		return false, a.classifier.badArguments(op, table, "id is empty")
	}

	b, err := newBuilder(table)
	if err != nil {
		return false, a.classifier.badArguments(op, table, err.Error())
	}

	results, err := a.client.Execute(ctx, false, b.deleteByID(id))
	if err != nil {
		if a.ignored(err) {
			return false, nil
		}
		return false, wrap(op, table, err)
	}

	return rowsAffected(results) > 0, nil
}

// RemoveWhere deletes every row matching the query's filters and returns the count
func (a *Adapter) RemoveWhere(ctx context.Context, ref core.EntityRef, query *core.Query) (count int64, err error) {
	const op = "remove_all"
	defer a.observe(op, time.Now(), &err)

	table := ref.TableName()
	b, err := newBuilder(table)
	if err != nil {
		return 0, a.classifier.badArguments(op, table, err.Error())
	}

	stmt, err := b.deleteQuery(query)
	if err != nil {
		return 0, a.classifier.badArguments(op, table, err.Error())
	}

	results, err := a.client.Execute(ctx, false, stmt)
	if err != nil {
		if a.ignored(err) {
			return 0, nil
		}
		return 0, wrap(op, table, err)
	}

	return rowsAffected(results), nil
}

// Describe returns the columns of the table backing ref
func (a *Adapter) Describe(ctx context.Context, ref core.EntityRef) (schema *core.Schema, err error) {
	const op = "describe"
	defer a.observe(op, time.Now(), &err)

	table := ref.TableName()
	b, err := newBuilder(table)
	if err != nil {
		return nil, a.classifier.badArguments(op, table, err.Error())
	}

	results, err := a.client.Query(ctx, b.tableInfo())
	if err != nil {
		return nil, wrap(op, table, err)
	}

	var rows []core.Entity
	if len(results) > 0 {
		rows = results[0].Entities()
	}
	// PRAGMA table_info yields no rows for a missing table
	if len(rows) == 0 {
		return nil, core.NewError(core.KindNoSuchTable, op, table, a.cfg.Messages.NoSuchTable+": "+table)
	}

	schema = &core.Schema{
		TableName: table,
		Fields:    make([]core.FieldInfo, 0, len(rows)),
		Metadata:  map[string]any{"ref": ref.String()},
	}
	for _, row := range rows {
		field := core.FieldInfo{
			Name:       fmt.Sprintf("%v", row["name"]),
			Type:       fmt.Sprintf("%v", row["type"]),
			Required:   isTruthy(row["notnull"]),
			PrimaryKey: isTruthy(row["pk"]),
			DefaultVal: row["dflt_value"],
		}
		if field.PrimaryKey && schema.PrimaryKey == "" {
			schema.PrimaryKey = field.Name
		}
		schema.Fields = append(schema.Fields, field)
	}

	return schema, nil
}

func (a *Adapter) assignID(entity core.Entity) core.Entity {
	row := entity.Data()
	id := ""
	if v, ok := entity.Meta(core.IDField); ok && v != nil {
		id = fmt.Sprintf("%v", v)
	}
	if id == "" {
		id = a.newID()
	}
	row[core.IDField] = id
	return row
}

func (a *Adapter) insert(ctx context.Context, op string, b builder, row core.Entity) (core.Entity, error) {
	stmt, err := b.insert(row)
	if err != nil {
		return nil, a.classifier.badArguments(op, b.table, err.Error())
	}

	if _, err := a.client.Execute(ctx, false, stmt); err != nil {
		return nil, wrap(op, b.table, err)
	}
	return row, nil
}

func (a *Adapter) merge(ctx context.Context, op string, b builder, entity core.Entity) (core.Entity, error) {
	results, err := a.client.Query(ctx, b.selectByID(entity.ID()))
	if err != nil {
		return nil, wrap(op, b.table, err)
	}

	incoming := entity.Data()
	existing := firstEntity(results)
	if existing == nil {
		return a.insert(ctx, op, b, incoming)
	}

	merged := existing.Merge(incoming)
	stmt, err := b.update(merged)
	if err != nil {
		return nil, a.classifier.badArguments(op, b.table, err.Error())
	}

	updated, err := a.client.Execute(ctx, false, stmt)
	if err != nil {
		return nil, wrap(op, b.table, err)
	}
	// Removed between the load and the update
	if rowsAffected(updated) == 0 {
		return a.insert(ctx, op, b, merged)
	}
	return merged, nil
}

func (a *Adapter) replace(ctx context.Context, op string, b builder, entity core.Entity) (core.Entity, error) {
	row := entity.Data()
	stmt, err := b.insert(row)
	if err != nil {
		return nil, a.classifier.badArguments(op, b.table, err.Error())
	}

	if _, err := a.client.Execute(ctx, true, b.deleteByID(entity.ID()), stmt); err != nil {
		return nil, wrap(op, b.table, err)
	}
	return row, nil
}

func (a *Adapter) ignored(err error) bool {
	return a.cfg.IgnoreNoSuchTableError && errors.Is(err, core.ErrNoSuchTable)
}

func (a *Adapter) observe(op string, start time.Time, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = core.KindOf(*err).String()
	}
	a.metrics.observeOperation(op, outcome, time.Since(start))
}

// wrap attaches the operation and table to an error
func wrap(op, table string, err error) error {
	var e *core.Error
	if errors.As(err, &e) {
		wrapped := *e
		if wrapped.Op == "" {
			wrapped.Op = op
		}
		if wrapped.Table == "" {
			wrapped.Table = table
		}
		return &wrapped
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}

func firstEntity(results []QueryResult) core.Entity {
	if len(results) == 0 {
		return nil
	}
	entities := results[0].Entities()
	if len(entities) == 0 {
		return nil
	}
	return entities[0]
}

func rowsAffected(results []ExecuteResult) int64 {
	var total int64
	for _, r := range results {
		total += r.RowsAffected
	}
	return total
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case int64:
		return val != 0
	case float64:
		return val != 0
	case bool:
		return val
	case string:
		return val != "" && val != "0"
	}
	return false
}

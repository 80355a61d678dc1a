package core

import (
	"sort"
)

// SortDirection represents the sort order
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortField represents a field to sort by
type SortField struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Pagination represents pagination parameters. A zero Limit means no limit.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Query represents exact-match filters, sorting, pagination and projection
type Query struct {
	Filters    map[string]any `json:"filters"`
	Sort       []SortField    `json:"sort"`
	Pagination Pagination     `json:"pagination"`
	Fields     []string       `json:"fields"`
}

// NewQuery creates a new Query matching all rows
func NewQuery() *Query {
	return &Query{
		Filters: make(map[string]any),
		Sort:    []SortField{},
	}
}

// WithFilters adds filters to the query
func (q *Query) WithFilters(filters map[string]any) *Query {
	if q.Filters == nil {
		q.Filters = make(map[string]any, len(filters))
	}
	for k, v := range filters {
		q.Filters[k] = v
	}
	return q
}

// Where adds a single exact-match filter
func (q *Query) Where(field string, value any) *Query {
	return q.WithFilters(map[string]any{field: value})
}

// WithSort adds a sort field to the query
func (q *Query) WithSort(field string, direction SortDirection) *Query {
	q.Sort = append(q.Sort, SortField{
		Field:     field,
		Direction: direction,
	})
	return q
}

// WithPagination sets pagination parameters
func (q *Query) WithPagination(limit, offset int) *Query {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	q.Pagination.Limit = limit
	q.Pagination.Offset = offset
	return q
}

// WithFields restricts the returned fields
func (q *Query) WithFields(fields ...string) *Query {
	q.Fields = append(q.Fields, fields...)
	return q
}

// NextPage creates a new query for the next page
func (q *Query) NextPage() *Query {
	nextQuery := &Query{
		Filters:    make(map[string]any, len(q.Filters)),
		Sort:       make([]SortField, len(q.Sort)),
		Pagination: q.Pagination,
		Fields:     append([]string(nil), q.Fields...),
	}

	for k, v := range q.Filters {
		nextQuery.Filters[k] = v
	}
	copy(nextQuery.Sort, q.Sort)

	nextQuery.Pagination.Offset += nextQuery.Pagination.Limit

	return nextQuery
}

// HasFilters returns true if the query has any filters
func (q *Query) HasFilters() bool {
	return len(q.Filters) > 0
}

// HasSort returns true if the query has sorting
func (q *Query) HasSort() bool {
	return len(q.Sort) > 0
}

// FilterFields returns the filter field names in sorted order
func (q *Query) FilterFields() []string {
	fields := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// String returns a string representation of the sort direction
func (sd SortDirection) String() string {
	return string(sd)
}

// IsValid checks if the sort direction is valid
func (sd SortDirection) IsValid() bool {
	return sd == SortAsc || sd == SortDesc
}

// Opposite returns the opposite sort direction
func (sd SortDirection) Opposite() SortDirection {
	if sd == SortAsc {
		return SortDesc
	}
	return SortAsc
}

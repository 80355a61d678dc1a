package core

import (
	"errors"
	"fmt"
)

var (
	// ErrBadArguments is returned when the caller supplied a malformed request.
	ErrBadArguments = errors.New("rqlite-store: bad arguments")

	// ErrNoSuchTable is returned when the database reports a missing table.
	ErrNoSuchTable = errors.New("rqlite-store: no such table")

	// ErrNoSuchColumn is returned when the database reports a missing column.
	ErrNoSuchColumn = errors.New("rqlite-store: no such column")

	// ErrUniqueViolation is returned when a write violates a uniqueness constraint.
	ErrUniqueViolation = errors.New("rqlite-store: unique constraint violated")

	// ErrTooManyRedirects is returned when redirect-following exhausted its limit.
	ErrTooManyRedirects = errors.New("rqlite-store: too many redirects")

	// ErrDatabase is returned for any database error text that could not be classified.
	ErrDatabase = errors.New("rqlite-store: database error")
)

// Kind tags a normalized error
type Kind int

const (
	KindGeneric Kind = iota
	KindBadArguments
	KindNoSuchTable
	KindNoSuchColumn
	KindUniqueViolation
	KindTooManyRedirects
)

// String returns the kind's name
func (k Kind) String() string {
	switch k {
	case KindBadArguments:
		return "bad_arguments"
	case KindNoSuchTable:
		return "no_such_table"
	case KindNoSuchColumn:
		return "no_such_column"
	case KindUniqueViolation:
		return "unique_violation"
	case KindTooManyRedirects:
		return "too_many_redirects"
	default:
		return "generic"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindBadArguments:
		return ErrBadArguments
	case KindNoSuchTable:
		return ErrNoSuchTable
	case KindNoSuchColumn:
		return ErrNoSuchColumn
	case KindUniqueViolation:
		return ErrUniqueViolation
	case KindTooManyRedirects:
		return ErrTooManyRedirects
	default:
		return ErrDatabase
	}
}

// Error is the normalized error returned by stores.
// Message carries the original database text (or the configured fragment).
type Error struct {
	Kind    Kind
	Op      string
	Table   string
	Message string
}

// NewError creates a normalized error
func NewError(kind Kind, op, table, message string) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Message: message}
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Table != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Table, e.Message)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return e.Message
	}
}

// Unwrap exposes the sentinel matching the error's kind, so errors.Is works
func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

// KindOf returns the kind of a normalized error, or KindGeneric for any other error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// BadArguments creates a KindBadArguments error
func BadArguments(op, table, message string) *Error {
	return NewError(KindBadArguments, op, table, message)
}

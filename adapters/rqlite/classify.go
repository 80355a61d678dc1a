package rqlite

import (
	"strings"

	"github.com/preslavrachev/rqlitestore/config"
	"github.com/preslavrachev/rqlitestore/core"
)

// classifier maps rqlite's plain-text errors to tagged errors by substring
type classifier struct {
	messages config.Messages
}

func (c classifier) classify(text string) *core.Error {
	text = strings.TrimSpace(text)

	kind := core.KindGeneric
	switch {
	case contains(text, c.messages.NoSuchColumn):
		kind = core.KindNoSuchColumn
	case contains(text, c.messages.NoSuchTable):
		kind = core.KindNoSuchTable
	case contains(text, c.messages.Unique):
		kind = core.KindUniqueViolation
	}

	return core.NewError(kind, "", "", text)
}

func (c classifier) tooManyRedirects() *core.Error {
	return core.NewError(core.KindTooManyRedirects, "", "", c.messages.TooManyRedirects)
}

func (c classifier) badArguments(op, table, detail string) *core.Error {
	message := c.messages.BadArguments
	if detail != "" {
		message += ": " + detail
	}
	return core.BadArguments(op, table, message)
}

// contains never matches an empty fragment
func contains(text, fragment string) bool {
	return fragment != "" && strings.Contains(text, fragment)
}

package ui

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/preslavrachev/rqlitestore/core"
)

// DumpURLBuilder provides a fluent interface for building dump URLs
type DumpURLBuilder struct {
	basePath string
	params   url.Values
}

// NewDumpURL creates a new URL builder for the given entity ref under prefix
func NewDumpURL(prefix string, ref core.EntityRef) *DumpURLBuilder {
	path := strings.TrimSuffix(prefix, "/") + "/dump/"
	if ref.Base != "" {
		path += url.PathEscape(ref.Base) + "/"
	}
	path += url.PathEscape(ref.Name)

	return &DumpURLBuilder{
		basePath: path,
		params:   make(url.Values),
	}
}

// PreserveFromRequest copies the filters, sorting and format of the current request.
// Pagination is dropped so the caller can set a new page.
func (b *DumpURLBuilder) PreserveFromRequest(r *http.Request) *DumpURLBuilder {
	for k, v := range r.URL.Query() {
		if k == "limit" || k == "offset" {
			continue
		}
		b.params[k] = v
	}
	return b
}

// WithSort sets sorting parameters
func (b *DumpURLBuilder) WithSort(field, direction string) *DumpURLBuilder {
	if field != "" {
		b.params.Set("sort", field)
		if direction != "" {
			b.params.Set("direction", direction)
		}
	}
	return b
}

// WithPagination sets pagination parameters
func (b *DumpURLBuilder) WithPagination(offset, limit int) *DumpURLBuilder {
	b.params.Set("offset", strconv.Itoa(offset))
	b.params.Set("limit", strconv.Itoa(limit))
	return b
}

// WithFilter adds an exact-match filter parameter
func (b *DumpURLBuilder) WithFilter(key, value string) *DumpURLBuilder {
	if key != "" && !isReservedParam(key) {
		b.params.Set(key, value)
	}
	return b
}

// WithFormat selects the response format ("json" or "html")
func (b *DumpURLBuilder) WithFormat(format string) *DumpURLBuilder {
	if format != "" {
		b.params.Set("format", format)
	}
	return b
}

// String builds and returns the final URL
func (b *DumpURLBuilder) String() string {
	if len(b.params) == 0 {
		return b.basePath
	}
	return b.basePath + "?" + b.params.Encode()
}

package ui

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/preslavrachev/rqlitestore/config"
	"github.com/preslavrachev/rqlitestore/core"
	"github.com/preslavrachev/rqlitestore/middleware/auth"
)

// DefaultPageSize is the number of rows shown when no limit is requested
const DefaultPageSize = 100

// Handler returns the administrative HTTP handler mounted under cfg.Prefix.
// The dump routes answer 404 unless cfg.Web.Dump is set; the metrics route is
// only registered when gatherer is not nil.
func Handler(entities *core.Entities, cfg config.Config, gatherer prometheus.Gatherer) http.Handler {
	handler := &DumpHandler{entities: entities, cfg: cfg.Redacted()}
	prefix := strings.TrimSuffix(cfg.Prefix, "/")

	mux := http.NewServeMux()

	if cfg.Web.Dump {
		mux.HandleFunc("GET "+prefix+"/dump", handler.indexHandler)
		mux.HandleFunc("GET "+prefix+"/dump/{name}", handler.entityHandler)
		mux.HandleFunc("GET "+prefix+"/dump/{base}/{name}", handler.entityHandler)
	}

	if gatherer != nil {
		mux.Handle("GET "+prefix+"/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Apply auth middleware
	authConfig := auth.WithBasicAuthFromConfig(cfg)
	return auth.CreateAuthMiddleware(&authConfig)(mux)
}

// DumpHandler serves the read-only dump of the registered entities
type DumpHandler struct {
	entities *core.Entities
	cfg      config.Config
}

// EntitySummary describes a registered entity reference
type EntitySummary struct {
	Ref   string `json:"ref"`
	Base  string `json:"base"`
	Name  string `json:"name"`
	Table string `json:"table"`
	URL   string `json:"url"`
}

// IndexDump is the content of the dump index
type IndexDump struct {
	Config   config.Config   `json:"config"`
	Entities []EntitySummary `json:"entities"`
}

// EntityDump is one page of rows of an entity
type EntityDump struct {
	Ref     string        `json:"ref"`
	Table   string        `json:"table"`
	Columns []string      `json:"columns"`
	Rows    []core.Entity `json:"rows"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	Next    string        `json:"next,omitempty"`
	Prev    string        `json:"prev,omitempty"`
}

// indexHandler serves the configuration and the registered entity refs
func (h *DumpHandler) indexHandler(w http.ResponseWriter, r *http.Request) {
	dump := IndexDump{Config: h.cfg, Entities: []EntitySummary{}}
	for _, ref := range h.entities.Refs() {
		dump.Entities = append(dump.Entities, EntitySummary{
			Ref:   ref.String(),
			Base:  ref.Base,
			Name:  ref.Name,
			Table: ref.TableName(),
			URL:   NewDumpURL(h.cfg.Prefix, ref).String(),
		})
	}

	if wantsJSON(r) {
		h.writeJSON(w, http.StatusOK, dump)
		return
	}
	templ.Handler(indexPage(dump)).ServeHTTP(w, r)
}

// entityHandler serves one page of rows of a registered entity
func (h *DumpHandler) entityHandler(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.entities.Ref(r.PathValue("base"), r.PathValue("name"))
	if !ok {
		h.writeHTTPError(w, r, "unknown entity "+core.NewEntityRef(r.PathValue("base"), r.PathValue("name")).String(), http.StatusNotFound)
		return
	}

	query := parseQueryFromRequest(r)
	ctx := r.Context()

	rows, err := h.entities.Store().List(ctx, ref, query)
	if err != nil {
		log.Printf("[DUMP] Failed to list %s: %v", ref, err)
		h.writeHTTPError(w, r, err.Error(), statusFor(err))
		return
	}

	dump := EntityDump{
		Ref:    ref.String(),
		Table:  ref.TableName(),
		Rows:   rows,
		Limit:  query.Pagination.Limit,
		Offset: query.Pagination.Offset,
	}

	// Prefer the declared column order, fall back to the fields seen in the rows
	if schema, err := h.entities.Store().Describe(ctx, ref); err == nil {
		for _, field := range schema.Fields {
			dump.Columns = append(dump.Columns, field.Name)
		}
	} else {
		dump.Columns = columnsOf(rows)
	}

	if len(rows) == query.Pagination.Limit && query.Pagination.Limit > 0 {
		next := query.NextPage()
		dump.Next = NewDumpURL(h.cfg.Prefix, ref).PreserveFromRequest(r).
			WithPagination(next.Pagination.Offset, next.Pagination.Limit).String()
	}
	if query.Pagination.Offset > 0 {
		prevOffset := max(query.Pagination.Offset-query.Pagination.Limit, 0)
		dump.Prev = NewDumpURL(h.cfg.Prefix, ref).PreserveFromRequest(r).
			WithPagination(prevOffset, query.Pagination.Limit).String()
	}

	if wantsJSON(r) {
		h.writeJSON(w, http.StatusOK, dump)
		return
	}
	templ.Handler(entityPage(h.cfg.Prefix, dump)).ServeHTTP(w, r)
}

func (h *DumpHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[DUMP] Failed to encode response: %v", err)
	}
}

func (h *DumpHandler) writeHTTPError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	if wantsJSON(r) {
		h.writeJSON(w, statusCode, map[string]string{"error": message})
		return
	}
	templ.Handler(errorPage(statusCode, message), templ.WithStatus(statusCode)).ServeHTTP(w, r)
}

// statusFor maps store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrBadArguments), errors.Is(err, core.ErrNoSuchColumn):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoSuchTable):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// wantsJSON reports whether the client asked for JSON via ?format=json or Accept
func wantsJSON(r *http.Request) bool {
	if format := r.URL.Query().Get("format"); format != "" {
		return format == "json"
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// parseQueryFromRequest parses HTTP request parameters into a Query struct
func parseQueryFromRequest(r *http.Request) *core.Query {
	query := core.NewQuery()

	// Parse filters (exclude UI and pagination parameters)
	filters := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) > 0 && !isReservedParam(key) {
			filters[key] = values[0]
		}
	}
	query.WithFilters(filters)

	// Parse sorting
	if sortBy := r.URL.Query().Get("sort"); sortBy != "" {
		direction := core.SortAsc // default
		if sortDir := r.URL.Query().Get("direction"); sortDir == "desc" {
			direction = core.SortDesc
		}
		query.WithSort(sortBy, direction)
	}

	// Parse pagination
	limit := DefaultPageSize
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil {
			offset = parsedOffset
		}
	}

	query.WithPagination(limit, offset)

	return query
}

// isReservedParam checks if a parameter is reserved for the dump surface itself
func isReservedParam(param string) bool {
	reserved := []string{"limit", "offset", "sort", "direction", "format"}

	for _, r := range reserved {
		if param == r {
			return true
		}
	}
	return false
}

// columnsOf returns the sorted union of the rows' field names, id first
func columnsOf(rows []core.Entity) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for field := range row {
			seen[field] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for field := range seen {
		if field != core.IDField {
			columns = append(columns, field)
		}
	}
	sort.Strings(columns)
	if seen[core.IDField] {
		columns = append([]string{core.IDField}, columns...)
	}
	return columns
}

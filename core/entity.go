package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// IDField is the name of the identifier field carried by every stored entity
const IDField = "id"

// metaSuffix marks framework metadata fields (e.g. "id$") that are never stored
const metaSuffix = "$"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Entity is a record managed by the framework, backed by one table row.
// A nil Entity means "absent".
type Entity map[string]any

// ID returns the identifier as a string, or "" when the entity has none
func (e Entity) ID() string {
	v, ok := e[IDField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// HasID reports whether the entity carries a non-empty identifier
func (e Entity) HasID() bool {
	return e.ID() != ""
}

// Clone returns a shallow copy of the entity
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	clone := make(Entity, len(e))
	for k, v := range e {
		clone[k] = v
	}
	return clone
}

// Merge returns a new entity holding the fields of e overridden by the fields of other.
// Fields only present in e are preserved.
func (e Entity) Merge(other Entity) Entity {
	merged := e.Clone()
	if merged == nil {
		merged = make(Entity, len(other))
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Data returns the storable fields, i.e. everything except metadata fields
func (e Entity) Data() Entity {
	data := make(Entity, len(e))
	for k, v := range e {
		if IsMetaField(k) {
			continue
		}
		data[k] = v
	}
	return data
}

// Fields returns the storable field names in sorted order
func (e Entity) Fields() []string {
	fields := make([]string, 0, len(e))
	for k := range e {
		if IsMetaField(k) {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Meta returns the value of a metadata field such as "id$"
func (e Entity) Meta(name string) (any, bool) {
	v, ok := e[strings.TrimSuffix(name, metaSuffix)+metaSuffix]
	return v, ok
}

// IsMetaField reports whether a field is framework metadata
func IsMetaField(name string) bool {
	return strings.HasSuffix(name, metaSuffix)
}

// ValidIdentifier reports whether name can be used as a table or column name
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// EntityRef identifies a storage table by base (namespace) and entity name
type EntityRef struct {
	Base string `json:"base"`
	Name string `json:"name"`
}

// NewEntityRef creates an EntityRef
func NewEntityRef(base, name string) EntityRef {
	return EntityRef{Base: base, Name: name}
}

// TableName returns the storage table name: base_name, or name when base is empty.
// Both parts are used verbatim; invalid names are rejected by the store.
func (r EntityRef) TableName() string {
	if r.Base == "" {
		return r.Name
	}
	return r.Base + "_" + r.Name
}

// String returns the canonical base/name form
func (r EntityRef) String() string {
	if r.Base == "" {
		return r.Name
	}
	return r.Base + "/" + r.Name
}

// ParseEntityRef parses "base/name" or "name"
func ParseEntityRef(s string) (EntityRef, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return EntityRef{}, fmt.Errorf("empty entity reference")
		}
		return EntityRef{Name: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return EntityRef{}, fmt.Errorf("invalid entity reference %q", s)
		}
		return EntityRef{Base: parts[0], Name: parts[1]}, nil
	default:
		return EntityRef{}, fmt.Errorf("invalid entity reference %q", s)
	}
}

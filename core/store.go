package core

import "context"

// Store defines the interface for entity storage adapters
type Store interface {
	// Entity operations
	Load(ctx context.Context, ref EntityRef, id string) (Entity, error)
	Save(ctx context.Context, ref EntityRef, entity Entity) (Entity, error)
	List(ctx context.Context, ref EntityRef, query *Query) ([]Entity, error)
	Remove(ctx context.Context, ref EntityRef, id string) (bool, error)
	RemoveWhere(ctx context.Context, ref EntityRef, query *Query) (int64, error)

	// Metadata operations
	Describe(ctx context.Context, ref EntityRef) (*Schema, error)
}

// Schema represents the structure of a table
type Schema struct {
	Fields     []FieldInfo    `json:"fields"`
	PrimaryKey string         `json:"primary_key"`
	TableName  string         `json:"table_name"`
	Metadata   map[string]any `json:"metadata"`
}

// FieldInfo represents metadata about a column
type FieldInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Required   bool   `json:"required"`
	PrimaryKey bool   `json:"primary_key"`
	DefaultVal any    `json:"default_value,omitempty"`
}

// Field returns the named field, or nil
func (s *Schema) Field(name string) *FieldInfo {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

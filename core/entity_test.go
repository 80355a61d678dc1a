package core

import (
	"reflect"
	"testing"
)

func TestEntityID(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		want   string
	}{
		{"string id", Entity{"id": "007"}, "007"},
		{"integer id", Entity{"id": int64(42)}, "42"},
		{"nil id", Entity{"id": nil}, ""},
		{"missing id", Entity{"firstname": "John"}, ""},
		{"nil entity", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entity.ID(); got != tt.want {
				t.Errorf("Expected ID %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEntityMerge(t *testing.T) {
	existing := Entity{"id": "007", "firstname": "John", "lastname": "Doo"}
	incoming := Entity{"id": "007", "lastname": "Bond"}

	merged := existing.Merge(incoming)

	want := Entity{"id": "007", "firstname": "John", "lastname": "Bond"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("Expected %v, got %v", want, merged)
	}

	// Merge must not modify its receiver
	if existing["lastname"] != "Doo" {
		t.Error("Merge should not modify the existing entity")
	}
}

func TestEntityMergeIntoNil(t *testing.T) {
	var existing Entity
	merged := existing.Merge(Entity{"id": "1"})

	if merged.ID() != "1" {
		t.Errorf("Expected merged id 1, got %q", merged.ID())
	}
}

func TestEntityDataSkipsMetaFields(t *testing.T) {
	entity := Entity{"id$": "007", "firstname": "John", "native$": true}

	data := entity.Data()
	if len(data) != 1 || data["firstname"] != "John" {
		t.Errorf("Expected only firstname, got %v", data)
	}

	if fields := entity.Fields(); !reflect.DeepEqual(fields, []string{"firstname"}) {
		t.Errorf("Expected [firstname], got %v", fields)
	}

	v, ok := entity.Meta("id")
	if !ok || v != "007" {
		t.Errorf("Expected id$ meta value 007, got %v (%t)", v, ok)
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"id", "first_name", "_x", "Col9"}
	invalid := []string{"", "9col", "first-name", "a b", "x;DROP TABLE y", `"quoted"`}

	for _, name := range valid {
		if !ValidIdentifier(name) {
			t.Errorf("Expected %q to be valid", name)
		}
	}
	for _, name := range invalid {
		if ValidIdentifier(name) {
			t.Errorf("Expected %q to be invalid", name)
		}
	}
}

func TestEntityRefTableName(t *testing.T) {
	tests := []struct {
		ref  EntityRef
		want string
	}{
		{NewEntityRef("mybase", "test"), "mybase_test"},
		{NewEntityRef("", "test"), "test"},
		{NewEntityRef("mybase", "test2"), "mybase_test2"},
		{NewEntityRef("shop2", "items"), "shop2_items"},
		{NewEntityRef("", "v1users"), "v1users"},
		{NewEntityRef("crm", "userProfiles"), "crm_userProfiles"},
		{NewEntityRef("MyBase", "UserProfile"), "MyBase_UserProfile"},
	}

	for _, tt := range tests {
		if got := tt.ref.TableName(); got != tt.want {
			t.Errorf("TableName(%v): expected %q, got %q", tt.ref, tt.want, got)
		}
	}
}

func TestParseEntityRef(t *testing.T) {
	ref, err := ParseEntityRef("mybase/test")
	if err != nil {
		t.Fatalf("ParseEntityRef failed: %v", err)
	}
	if ref.Base != "mybase" || ref.Name != "test" {
		t.Errorf("Expected mybase/test, got %+v", ref)
	}

	ref, err = ParseEntityRef("test")
	if err != nil {
		t.Fatalf("ParseEntityRef failed: %v", err)
	}
	if ref.Base != "" || ref.Name != "test" {
		t.Errorf("Expected name-only ref, got %+v", ref)
	}

	for _, bad := range []string{"", "/test", "a/", "a/b/c"} {
		if _, err := ParseEntityRef(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

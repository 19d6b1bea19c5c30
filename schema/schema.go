// Package schema models the field schema returned by the Lynkr schema endpoint
// and validates candidate data against it.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field describes a single schema field.
type Field struct {
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Optional    bool      `json:"optional"`
	Sensitive   bool      `json:"sensitive"`
}

// Schema wraps a server-provided schema document. It is immutable once built;
// accessors return copies.
type Schema struct {
	doc       map[string]interface{}
	fields    map[string]Field
	required  []string
	optional  []string
	sensitive []string
}

// New builds a Schema from a decoded schema document. Every name listed in
// required_fields, optional_fields or sensitive_fields must be declared in
// fields.
func New(doc map[string]interface{}) (*Schema, error) {
	if doc == nil {
		return nil, fmt.Errorf("schema document is empty")
	}

	s := &Schema{
		doc:    deepCopyMap(doc),
		fields: make(map[string]Field),
	}

	if raw, ok := doc["fields"]; ok && raw != nil {
		fieldMap, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("schema fields must be an object, got %T", raw)
		}
		for name, spec := range fieldMap {
			field, err := parseField(spec)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			s.fields[name] = field
		}
	}

	var err error
	if s.required, err = s.nameList(doc, "required_fields"); err != nil {
		return nil, err
	}
	if s.optional, err = s.nameList(doc, "optional_fields"); err != nil {
		return nil, err
	}
	if s.sensitive, err = s.nameList(doc, "sensitive_fields"); err != nil {
		return nil, err
	}

	return s, nil
}

// Parse decodes a JSON schema document and builds a Schema from it.
func Parse(data []byte) (*Schema, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode schema document: %w", err)
	}
	return New(doc)
}

func parseField(spec interface{}) (Field, error) {
	m, ok := spec.(map[string]interface{})
	if !ok {
		return Field{}, fmt.Errorf("field spec must be an object, got %T", spec)
	}

	var f Field
	if t, ok := m["type"].(string); ok {
		f.Type = FieldType(t)
	}
	if d, ok := m["description"].(string); ok {
		f.Description = d
	}
	f.Optional, _ = m["optional"].(bool)
	f.Sensitive, _ = m["sensitive"].(bool)
	return f, nil
}

// nameList reads a list of field names and checks each against the declared fields.
func (s *Schema) nameList(doc map[string]interface{}, key string) ([]string, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var names []string
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must contain strings, got %T", key, item)
			}
			names = append(names, name)
		}
	case []string:
		names = append(names, v...)
	default:
		return nil, fmt.Errorf("%s must be a list, got %T", key, raw)
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, declared := s.fields[name]; !declared {
			return nil, fmt.Errorf("%s references undeclared field %q", key, name)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// RequiredFields returns the declared required field names, sorted.
func (s *Schema) RequiredFields() []string {
	return append([]string(nil), s.required...)
}

// OptionalFields returns the declared optional field names, sorted.
func (s *Schema) OptionalFields() []string {
	return append([]string(nil), s.optional...)
}

// SensitiveFields returns the declared sensitive field names, sorted.
func (s *Schema) SensitiveFields() []string {
	return append([]string(nil), s.sensitive...)
}

// Fields returns a copy of the declared fields.
func (s *Schema) Fields() map[string]Field {
	out := make(map[string]Field, len(s.fields))
	for name, f := range s.fields {
		out[name] = f
	}
	return out
}

// Field looks up a single declared field.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// ToSerializable returns the schema document as it was received.
func (s *Schema) ToSerializable() map[string]interface{} {
	return deepCopyMap(s.doc)
}

// ToJSON renders the schema document as indented JSON.
func (s *Schema) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return string(data), nil
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.doc)
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		if val == nil {
			return val
		}
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		if val == nil {
			return val
		}
		return append([]string{}, val...)
	default:
		return val
	}
}

package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// IssueKind classifies a validation issue.
type IssueKind string

const (
	IssueMissingRequired IssueKind = "missing_required"
	IssueTypeMismatch    IssueKind = "type_mismatch"
)

// ValidationIssue describes one problem found in a candidate mapping.
type ValidationIssue struct {
	Field    string    `json:"field"`
	Kind     IssueKind `json:"kind"`
	Expected FieldType `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
}

func (i ValidationIssue) String() string {
	switch i.Kind {
	case IssueMissingRequired:
		return fmt.Sprintf("missing required field: %s", i.Field)
	case IssueTypeMismatch:
		return fmt.Sprintf("type mismatch for field %s: expected %s, got %s", i.Field, i.Expected, i.Actual)
	default:
		return fmt.Sprintf("%s: %s", i.Kind, i.Field)
	}
}

// Validate checks candidate against the schema. Missing required fields and
// declared fields holding a value of the wrong type are reported; undeclared
// fields are accepted. A nil candidate reports every required field missing.
// Issues are ordered by field name.
func (s *Schema) Validate(candidate map[string]interface{}) []ValidationIssue {
	var issues []ValidationIssue

	for _, name := range s.required {
		if _, ok := candidate[name]; !ok {
			issues = append(issues, ValidationIssue{Field: name, Kind: IssueMissingRequired})
		}
	}

	names := make([]string, 0, len(candidate))
	for name := range candidate {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field, declared := s.fields[name]
		if !declared {
			continue
		}
		value := candidate[name]
		if !Matches(field.Type, value) {
			issues = append(issues, ValidationIssue{
				Field:    name,
				Kind:     IssueTypeMismatch,
				Expected: field.Type,
				Actual:   typeName(value),
			})
		}
	}

	sort.SliceStable(issues, func(a, b int) bool {
		return issues[a].Field < issues[b].Field
	})
	return issues
}

// Matches reports whether value satisfies the declared type. Unknown or empty
// types accept anything; nil matches no declared type.
func Matches(t FieldType, value interface{}) bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray:
	default:
		return true
	}
	if value == nil {
		return false
	}

	if n, ok := value.(json.Number); ok {
		switch t {
		case TypeNumber:
			_, err := n.Float64()
			return err == nil
		case TypeInteger:
			_, err := n.Int64()
			return err == nil
		}
		return false
	}

	rv := reflect.ValueOf(value)
	switch t {
	case TypeString:
		return rv.Kind() == reflect.String
	case TypeBoolean:
		return rv.Kind() == reflect.Bool
	case TypeNumber:
		return isInteger(rv.Kind()) || isFloat(rv.Kind())
	case TypeInteger:
		if isInteger(rv.Kind()) {
			return true
		}
		if isFloat(rv.Kind()) {
			f := rv.Float()
			return !math.IsInf(f, 0) && f == math.Trunc(f)
		}
		return false
	case TypeObject:
		return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
	case TypeArray:
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	}
	return false
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func typeName(value interface{}) string {
	if value == nil {
		return "null"
	}
	if _, ok := value.(json.Number); ok {
		return string(TypeNumber)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Kind() == reflect.String:
		return string(TypeString)
	case rv.Kind() == reflect.Bool:
		return string(TypeBoolean)
	case isInteger(rv.Kind()), isFloat(rv.Kind()):
		return string(TypeNumber)
	case rv.Kind() == reflect.Map:
		return string(TypeObject)
	case rv.Kind() == reflect.Slice, rv.Kind() == reflect.Array:
		return string(TypeArray)
	}
	return fmt.Sprintf("%T", value)
}

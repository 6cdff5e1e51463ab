package entity

import (
	"fmt"
	"strings"
)

// Schema describes the shape of a document and directs both facet merging
// (per-field merge strategies) and validation (required keys, declared
// types). Schemas nest: object properties and array items each carry their
// own sub-schema.
type Schema struct {
	// Type is the declared type of this node: object, array, string,
	// integer, number, boolean. Empty means untyped.
	Type string `yaml:"type,omitempty"`

	// Default is the value used to populate this node before the first
	// facet is applied.
	Default interface{} `yaml:"default,omitempty"`

	// Required lists keys that must be present on an object node.
	Required []string `yaml:"required,omitempty"`

	// MergeStrategy overrides the default merge behavior for this node.
	MergeStrategy Strategy `yaml:"mergeStrategy,omitempty"`

	// MergeID names the id field used by the arrayMergeById strategy.
	MergeID string `yaml:"mergeId,omitempty"`

	// Properties holds sub-schemas for object keys.
	Properties map[string]*Schema `yaml:"properties,omitempty"`

	// Items holds the sub-schema for array elements.
	Items *Schema `yaml:"items,omitempty"`
}

func (s *Schema) property(key string) *Schema {
	if s == nil || s.Properties == nil {
		return nil
	}
	return s.Properties[key]
}

func (s *Schema) items() *Schema {
	if s == nil {
		return nil
	}
	return s.Items
}

func (s *Schema) strategy() Strategy {
	if s == nil || s.MergeStrategy == "" {
		return StrategyReplace
	}
	return s.MergeStrategy
}

// Defaults builds the default document for this schema. Object leaves get
// empty objects, arrays and strings fall back to empty values unless an
// explicit default is declared; other types appear only with an explicit
// default.
func (s *Schema) Defaults() map[string]interface{} {
	out := make(map[string]interface{})
	if s == nil {
		return out
	}
	for key, prop := range s.Properties {
		if prop == nil {
			continue
		}
		switch prop.Type {
		case "object":
			out[key] = prop.Defaults()
		case "array":
			if prop.Default != nil {
				out[key] = deepCopy(prop.Default)
			} else {
				out[key] = []interface{}{}
			}
		case "string":
			if prop.Default != nil {
				out[key] = deepCopy(prop.Default)
			} else {
				out[key] = ""
			}
		default:
			if prop.Default != nil {
				out[key] = deepCopy(prop.Default)
			}
		}
	}
	return out
}

// SchemaIssue records a single validation failure with the dotted path of
// the offending value.
type SchemaIssue struct {
	Path    string
	Message string
}

// SchemaError aggregates the validation failures found in one document.
type SchemaError struct {
	Issues []SchemaIssue
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		if issue.Path != "" {
			msgs[i] = fmt.Sprintf("%s: %s", issue.Path, issue.Message)
		} else {
			msgs[i] = issue.Message
		}
	}
	return "schema validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks doc against the schema. It returns a *SchemaError listing
// every violation, or nil when the document conforms.
func (s *Schema) Validate(doc map[string]interface{}) error {
	if s == nil {
		return nil
	}
	var issues []SchemaIssue
	s.validateValue(doc, "", &issues)
	if len(issues) > 0 {
		return &SchemaError{Issues: issues}
	}
	return nil
}

func (s *Schema) validateValue(v interface{}, path string, issues *[]SchemaIssue) {
	if s == nil {
		return
	}
	if s.Type != "" && v != nil && !typeMatches(s.Type, v) {
		*issues = append(*issues, SchemaIssue{
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %s", s.Type, TypeOf(v)),
		})
		return
	}

	switch val := v.(type) {
	case map[string]interface{}:
		for _, req := range s.Required {
			if _, ok := val[req]; !ok {
				*issues = append(*issues, SchemaIssue{
					Path:    joinPath(path, req),
					Message: "required key missing",
				})
			}
		}
		for key, prop := range s.Properties {
			if sub, ok := val[key]; ok {
				prop.validateValue(sub, joinPath(path, key), issues)
			}
		}
	case []interface{}:
		if s.Items != nil {
			for i, item := range val {
				s.Items.validateValue(item, fmt.Sprintf("%s[%d]", path, i), issues)
			}
		}
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// TypeOf reports the schema type name of a Go value decoded from YAML or
// JSON: object, array, string, integer, number, boolean or null.
func TypeOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func typeMatches(declared string, v interface{}) bool {
	actual := TypeOf(v)
	if declared == actual {
		return true
	}
	// Integers satisfy a declared number type.
	return declared == "number" && actual == "integer"
}

// Package jsonschema holds the JSON-schema type used to declare tool
// parameters and response-format constraints, plus a reflection-based
// generator so tool authors can derive the schema from their argument
// struct instead of writing it by hand.
package jsonschema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema is the subset of JSON Schema the adapters serialize: enough for
// tool parameter declarations and structured-output constraints. Adapters
// marshal it verbatim into their vendor wire shapes.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`

	// Items describes array elements.
	Items *Schema `json:"items,omitempty"`

	// AdditionalProperties carries the value schema for map types.
	AdditionalProperties *Schema `json:"additionalProperties,omitempty"`

	// Enum restricts a field to a fixed set of values.
	Enum []any `json:"enum,omitempty"`

	// Minimum and Maximum bound numeric fields.
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`
}

// GenerateJSONSchema derives the schema for T by reflection. Field names
// come from json tags; a field is required unless it is a pointer or tagged
// omitempty, and jsonschema tags refine the result (see parseTag).
// Self-referential types are an error: tool arguments are flat documents and
// a recursive schema would not survive the vendor wire formats anyway.
func GenerateJSONSchema[T any]() (*Schema, error) {
	return schemaFor(reflect.TypeFor[T](), make(map[reflect.Type]bool))
}

func schemaFor(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	switch t.Kind() {
	case reflect.Pointer:
		return schemaFor(t.Elem(), visiting)

	case reflect.String:
		return &Schema{Type: "string"}, nil

	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}, nil

	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil

	case reflect.Slice, reflect.Array:
		items, err := schemaFor(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil

	case reflect.Map:
		values, err := schemaFor(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: values}, nil

	case reflect.Struct:
		return structSchema(t, visiting)

	case reflect.Interface:
		// An any-typed field accepts whatever the model sends.
		return &Schema{}, nil

	default:
		return nil, fmt.Errorf("cannot express %s in a JSON schema", t)
	}
}

func structSchema(t reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	if visiting[t] {
		return nil, fmt.Errorf("recursive type %s cannot be expressed in a JSON schema", t)
	}
	visiting[t] = true
	defer delete(visiting, t)

	schema := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema, t.NumField()),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitEmpty := jsonName(field)
		if name == "" {
			continue
		}

		fieldSchema, err := schemaFor(field.Type, visiting)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		requiredByTag, err := parseTag(field, fieldSchema)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		schema.Properties[name] = fieldSchema
		if requiredByTag || (field.Type.Kind() != reflect.Pointer && !omitEmpty) {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema, nil
}

// jsonName resolves the wire name of a field from its json tag. An empty
// name means the field is skipped (json:"-").
func jsonName(field reflect.StructField) (name string, omitEmpty bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if tag == "" {
		return field.Name, false
	}

	name, options, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, strings.Contains(options, "omitempty")
}

// parseTag applies the jsonschema struct tag to a field schema. Supported
// entries, comma separated: description=..., enum=... (repeatable, converted
// to the field's Go type), minimum=..., maximum=..., and the bare word
// required. Descriptions therefore cannot contain commas; tool descriptions
// that need prose belong on the tool, not the field.
func parseTag(field reflect.StructField, schema *Schema) (required bool, err error) {
	tag := field.Tag.Get("jsonschema")
	if tag == "" {
		return false, nil
	}

	for _, entry := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(entry, "=")
		switch {
		case key == "required" && !hasValue:
			required = true

		case key == "description":
			schema.Description = value

		case key == "enum":
			enumValue, err := convertEnum(field.Type, value)
			if err != nil {
				return false, err
			}
			schema.Enum = append(schema.Enum, enumValue)

		case key == "minimum":
			bound, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return false, fmt.Errorf("invalid minimum %q: %w", value, err)
			}
			schema.Minimum = &bound

		case key == "maximum":
			bound, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return false, fmt.Errorf("invalid maximum %q: %w", value, err)
			}
			schema.Maximum = &bound
		}
	}

	return required, nil
}

// convertEnum parses an enum tag value into the field's Go type so the
// serialized schema carries typed values, not strings.
func convertEnum(t reflect.Type, value string) (any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer enum %q: %w", value, err)
		}
		return parsed, nil
	case reflect.Float32, reflect.Float64:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number enum %q: %w", value, err)
		}
		return parsed, nil
	case reflect.Bool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid bool enum %q: %w", value, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for %s fields", t)
	}
}

// Package parse converts model-supplied argument strings into typed Go
// values. Models emit imperfect payloads: single-quoted JSON, bare primitives
// where an object was asked for, or values wrapped in a schema-shaped
// {"type": ..., "value": ...} envelope. The conversion is deliberately
// lenient, repairing what it can before giving up.
package parse

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/kaptinlin/jsonrepair"
)

// As parses content into T. Primitive targets accept both bare literals
// ("42", "true") and schema-wrapped envelopes; composite targets go through
// json.Unmarshal with a jsonrepair retry and a final envelope-unwrapping
// pass.
func As[T any](content string) (T, error) {
	var result T

	switch reflect.TypeFor[T]().Kind() {
	case reflect.String:
		if len(content) > 0 && content[0] == '{' {
			if unwrapped, ok := unwrapPrimitive(content); ok {
				reflect.ValueOf(&result).Elem().SetString(unwrapped)
				return result, nil
			}
		}
		reflect.ValueOf(&result).Elem().SetString(content)
		return result, nil

	case reflect.Bool:
		value, err := strconv.ParseBool(primitiveText(content))
		if err != nil {
			return result, fmt.Errorf("failed to parse %q as bool: %w", content, err)
		}
		reflect.ValueOf(&result).Elem().SetBool(value)
		return result, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := strconv.ParseInt(primitiveText(content), 10, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse %q as int: %w", content, err)
		}
		reflect.ValueOf(&result).Elem().SetInt(value)
		return result, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value, err := strconv.ParseUint(primitiveText(content), 10, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse %q as uint: %w", content, err)
		}
		reflect.ValueOf(&result).Elem().SetUint(value)
		return result, nil

	case reflect.Float32, reflect.Float64:
		value, err := strconv.ParseFloat(primitiveText(content), 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse %q as float: %w", content, err)
		}
		reflect.ValueOf(&result).Elem().SetFloat(value)
		return result, nil

	default:
		return unmarshalLenient[T](content)
	}
}

// unmarshalLenient decodes a composite value: strict JSON first, then a
// jsonrepair pass, then schema-envelope unwrapping of the repaired document.
func unmarshalLenient[T any](content string) (T, error) {
	var result T

	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return result, fmt.Errorf("failed to parse %q as %T: %w", content, result, repairErr)
	}

	err := json.Unmarshal([]byte(repaired), &result)
	if err == nil {
		return result, nil
	}

	if unwrapped, ok := unwrapEnvelopes(repaired); ok {
		if json.Unmarshal([]byte(unwrapped), &result) == nil {
			return result, nil
		}
	}

	return result, fmt.Errorf("failed to parse %q as %T: %w", content, result, err)
}

// primitiveText returns the literal to hand to strconv: the content itself,
// or the inner value when the model wrapped it in a schema envelope.
func primitiveText(content string) string {
	if len(content) > 0 && content[0] == '{' {
		if unwrapped, ok := unwrapPrimitive(content); ok {
			return unwrapped
		}
	}
	return content
}

// unwrapPrimitive extracts the value from one {"type": ..., "value": ...}
// envelope as text.
func unwrapPrimitive(content string) (string, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return "", false
	}
	if _, hasType := data["type"]; !hasType || len(data) != 2 {
		return "", false
	}
	value, hasValue := data["value"]
	if !hasValue {
		return "", false
	}

	switch v := value.(type) {
	case string:
		return v, true
	case float64, bool:
		return fmt.Sprintf("%v", v), true
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}

// unwrapEnvelopes rewrites a document in which the model confused the schema
// with the data, turning every {"type": ..., "value": X} node into X.
func unwrapEnvelopes(document string) (string, bool) {
	var data any
	if err := json.Unmarshal([]byte(document), &data); err != nil {
		return "", false
	}
	encoded, err := json.Marshal(unwrapValue(data))
	if err != nil {
		return "", false
	}
	return string(encoded), true
}

func unwrapValue(data any) any {
	switch v := data.(type) {
	case map[string]any:
		if _, hasType := v["type"]; hasType && len(v) == 2 {
			if value, hasValue := v["value"]; hasValue {
				return unwrapValue(value)
			}
		}
		result := make(map[string]any, len(v))
		for key, value := range v {
			result[key] = unwrapValue(value)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, value := range v {
			result[i] = unwrapValue(value)
		}
		return result

	default:
		return data
	}
}

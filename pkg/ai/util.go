package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// Some extraction models emit the opening brace of the graph object twice.
// Dropping the outer one leaves input jsonrepair can finish.
func stripDuplicateLeadingBrace(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		rest := strings.TrimSpace(raw[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return raw
}

// GenerateSchema reflects a JSON Schema from a Go type, with additional
// properties disallowed and all definitions inlined, the form structured
// output endpoints accept. It backs the graph extraction response format
// and derives the same shape from a pointer or a value.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// UnmarshalFlexible parses model output into out, tolerating the damage
// models routinely do to JSON even under a schema-constrained format. It
// tries strict parsing first, then unwraps a double-encoded string, then
// repairs the payload (unquoted keys, single quotes, trailing commas,
// truncated closings, doubled braces) before giving up.
//
// A graph update response like
//
//	{nodes: [{id: 1, name: 'Sam', node_type: 'PERSON'}], edges: [],}
//
// parses the same as its strict equivalent.
func UnmarshalFlexible(raw string, out any) error {
	raw = strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}

	var unwrapped string
	if err := json.Unmarshal([]byte(raw), &unwrapped); err == nil {
		unwrapped = strings.TrimSpace(unwrapped)
		if err := json.Unmarshal([]byte(unwrapped), out); err == nil {
			return nil
		}
		raw = unwrapped
	}

	raw = stripDuplicateLeadingBrace(raw)
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return fmt.Errorf("repairing model output failed: %w (input: %s)", err, raw)
	}

	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	return fmt.Errorf(
		"unmarshal failed after repair: input=%s repaired=%s",
		raw, repaired,
	)
}
